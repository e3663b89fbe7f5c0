package mailer

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogSender writes the message to the log instead of delivering it.
// Meant for local development.
type LogSender struct {
	composer Composer
}

func NewLogSender(composer Composer) *LogSender {
	return &LogSender{composer: composer}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	email, err := s.composer.Compose(msg)
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"kind":    msg.Kind,
		"to":      msg.To,
		"subject": email.Subject,
		"token":   msg.Token,
	}).Info("Email not delivered (log mail driver)")
	return nil
}
