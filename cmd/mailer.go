package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/vibast-solutions/ms-go-uptask/app/mailer"
	"github.com/vibast-solutions/ms-go-uptask/config"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var mailerCmd = &cobra.Command{
	Use:   "mailer",
	Short: "Deliver queued emails",
	Long:  `Consume the mail queue and deliver each message through SES, or the log outside production.`,
	RunE:  runMailer,
}

func init() {
	rootCmd.AddCommand(mailerCmd)
}

func runMailer(_ *cobra.Command, _ []string) error {
	cfg := loadConfig()
	if cfg.Mail.Driver != config.MailDriverQueue {
		logrus.WithField("driver", cfg.Mail.Driver).Warn("MAIL_DRIVER is not queue, nothing will be published to the mail queue")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sender, err := deliverySender(ctx, cfg)
	if err != nil {
		return err
	}

	logrus.WithField("queue", cfg.AMQP.Queue).Info("Starting mail consumer")
	err = mailer.NewConsumer(cfg.AMQP.URL, cfg.AMQP.Queue, sender).Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logrus.Info("Mail consumer stopped")
	return nil
}
