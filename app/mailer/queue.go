package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Publisher is the subset of *amqp.Channel used to enqueue mail.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// PublisherDialer opens a fresh channel to the broker together with whatever
// has to be closed when that channel is dropped.
type PublisherDialer func() (Publisher, io.Closer, error)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// QueueSender hands messages to RabbitMQ. The mailer worker delivers them.
// A sender built with a dialer reopens its channel after the broker closed it.
type QueueSender struct {
	mu        sync.Mutex
	publisher Publisher
	closer    io.Closer
	queue     string
	dial      PublisherDialer
}

func NewQueueSender(publisher Publisher, queue string) *QueueSender {
	return &QueueSender{publisher: publisher, queue: queue}
}

// NewRedialingQueueSender dials once up front so a wrong broker URL fails at
// startup, then redials whenever publishing hits a closed channel.
func NewRedialingQueueSender(queue string, dial PublisherDialer) (*QueueSender, error) {
	sender := &QueueSender{queue: queue, dial: dial}
	if err := sender.connect(); err != nil {
		return nil, err
	}
	return sender, nil
}

// DialQueueSender connects to the broker and declares the durable mail queue.
func DialQueueSender(url, queue string) (*QueueSender, error) {
	return NewRedialingQueueSender(queue, func() (Publisher, io.Closer, error) {
		conn, err := amqp.Dial(url)
		if err != nil {
			return nil, nil, fmt.Errorf("dial broker: %w", err)
		}

		ch, err := conn.Channel()
		if err != nil {
			_ = conn.Close()
			return nil, nil, fmt.Errorf("channel open: %w", err)
		}

		if _, err = ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, nil, fmt.Errorf("queue declare: %w", err)
		}

		return ch, closerFunc(func() error {
			_ = ch.Close()
			return conn.Close()
		}), nil
	})
}

func (s *QueueSender) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.publisher == nil {
		if err = s.connect(); err != nil {
			return fmt.Errorf("publish mail: %w", err)
		}
	}

	err = s.publisher.PublishWithContext(ctx, "", s.queue, false, false, pub)
	if errors.Is(err, amqp.ErrClosed) && s.dial != nil {
		logrus.WithField("queue", s.queue).Warn("Mail queue channel closed, redialing broker")
		s.drop()
		if err = s.connect(); err != nil {
			return fmt.Errorf("publish mail: %w", err)
		}
		err = s.publisher.PublishWithContext(ctx, "", s.queue, false, false, pub)
	}
	if err != nil {
		return fmt.Errorf("publish mail: %w", err)
	}
	return nil
}

func (s *QueueSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closer == nil {
		return nil
	}
	err := s.closer.Close()
	s.publisher, s.closer = nil, nil
	return err
}

// connect must be called with mu held, or before the sender is shared.
func (s *QueueSender) connect() error {
	if s.dial == nil {
		return amqp.ErrClosed
	}
	publisher, closer, err := s.dial()
	if err != nil {
		return err
	}
	s.publisher, s.closer = publisher, closer
	return nil
}

func (s *QueueSender) drop() {
	if s.closer != nil {
		_ = s.closer.Close()
	}
	s.publisher, s.closer = nil, nil
}
