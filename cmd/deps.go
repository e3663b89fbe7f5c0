package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/vibast-solutions/ms-go-uptask/app/mailer"
	"github.com/vibast-solutions/ms-go-uptask/config"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err = configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}
	return cfg
}

func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, err
	}
	if err = db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func openRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func mailComposer(cfg *config.Config) mailer.Composer {
	return mailer.Composer{FrontendURL: cfg.App.FrontendURL, TokenTTL: cfg.Tokens.TTL}
}

// deliverySender is the Sender that actually reaches a mailbox: SES, or the
// log when running locally.
func deliverySender(ctx context.Context, cfg *config.Config) (mailer.Sender, error) {
	if cfg.Mail.Driver == config.MailDriverSES {
		client, err := mailer.NewSESClient(ctx, cfg.Mail.AWSRegion)
		if err != nil {
			return nil, err
		}
		return mailer.NewSESSender(client, cfg.Mail.FromEmail, cfg.Mail.FromName, mailComposer(cfg)), nil
	}
	return mailer.NewLogSender(mailComposer(cfg)), nil
}

// requestSender is the Sender used while serving requests. With the queue
// driver mail is only enqueued and the mailer worker delivers it. The closer
// is nil unless a broker connection was opened.
func requestSender(ctx context.Context, cfg *config.Config) (mailer.Sender, io.Closer, error) {
	if cfg.Mail.Driver == config.MailDriverQueue {
		sender, err := mailer.DialQueueSender(cfg.AMQP.URL, cfg.AMQP.Queue)
		if err != nil {
			return nil, nil, err
		}
		return sender, sender, nil
	}

	sender, err := deliverySender(ctx, cfg)
	return sender, nil, err
}
