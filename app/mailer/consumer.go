package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const (
	maxReconnectBackoff = 30 * time.Second
	maxDeliveryAttempts = 5
	attemptHeader       = "x-uptask-attempt"
)

// ErrMalformedMessage marks queue payloads that can never be delivered.
var ErrMalformedMessage = errors.New("malformed mail message")

// Consumer drains the mail queue and delivers every message with the
// wrapped Sender. Failed sends are put back on the queue up to
// maxDeliveryAttempts times before the message is dropped.
type Consumer struct {
	url        string
	queue      string
	prefetch   int
	sender     Sender
	retryDelay time.Duration
}

type ConsumerOption func(*Consumer)

// WithRetryDelay sets the pause before attempt n is requeued, multiplied by n.
func WithRetryDelay(d time.Duration) ConsumerOption {
	return func(c *Consumer) {
		c.retryDelay = d
	}
}

func NewConsumer(url, queue string, sender Sender, opts ...ConsumerOption) *Consumer {
	c := &Consumer{url: url, queue: queue, prefetch: 20, sender: sender, retryDelay: 2 * time.Second}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run keeps consuming until ctx is cancelled, reconnecting with exponential
// back-off when the broker goes away.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn, err := amqp.Dial(c.url)
		if err != nil {
			logrus.WithError(err).WithField("retry_in", backoff.String()).Warn("Mail consumer failed to dial broker")
			if !sleepContext(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < maxReconnectBackoff {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logrus.WithError(err).Warn("Mail consumer loop ended, reconnecting")
		if !sleepContext(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err = ch.Qos(c.prefetch, 0, false); err != nil {
		logrus.WithError(err).Warn("Mail consumer failed to set QoS")
	}

	if _, err = ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	deliveries, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	logrus.WithField("queue", c.queue).Info("Mail consumer started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.Process(ctx, ch, d)
		}
	}
}

// Process delivers d and settles it. A failed send is republished through pub
// with its attempt counter bumped, so other messages are not held up behind it.
func (c *Consumer) Process(ctx context.Context, pub Publisher, d amqp.Delivery) {
	err := c.Handle(ctx, d.Body)
	if err == nil {
		_ = d.Ack(false)
		return
	}

	attempt := deliveryAttempt(d) + 1
	entry := logrus.WithError(err).WithFields(logrus.Fields{"queue": c.queue, "attempt": attempt})
	if errors.Is(err, ErrMalformedMessage) || attempt >= maxDeliveryAttempts {
		entry.Error("Mail delivery failed, dropping message")
		_ = d.Nack(false, false)
		return
	}

	if !sleepContext(ctx, time.Duration(attempt)*c.retryDelay) {
		_ = d.Nack(false, true)
		return
	}

	headers := amqp.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers[attemptHeader] = int32(attempt)

	retry := amqp.Publishing{
		Headers:      headers,
		ContentType:  d.ContentType,
		DeliveryMode: amqp.Persistent,
		Timestamp:    d.Timestamp,
		Body:         d.Body,
	}
	if pubErr := pub.PublishWithContext(ctx, "", c.queue, false, false, retry); pubErr != nil {
		entry.WithField("republish_error", pubErr.Error()).Warn("Mail requeue failed, returning message to broker")
		_ = d.Nack(false, true)
		return
	}

	entry.Warn("Mail delivery failed, requeued")
	_ = d.Ack(false)
}

// Handle decodes one queued message and sends it.
func (c *Consumer) Handle(ctx context.Context, body []byte) error {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if msg.To == "" {
		return fmt.Errorf("%w: no recipient", ErrMalformedMessage)
	}
	return c.sender.Send(ctx, msg)
}

func deliveryAttempt(d amqp.Delivery) int {
	switch v := d.Headers[attemptHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
