package mailer

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/sirupsen/logrus"
)

// SESClient is the subset of *sesv2.Client used to send mail.
type SESClient interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

type SESSender struct {
	client      SESClient
	fromAddress string
	composer    Composer
}

func NewSESClient(ctx context.Context, region string) (*sesv2.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return sesv2.NewFromConfig(cfg), nil
}

func NewSESSender(client SESClient, fromEmail, fromName string, composer Composer) *SESSender {
	fromAddress := fromEmail
	if fromName != "" {
		fromAddress = fmt.Sprintf("%s <%s>", fromName, fromEmail)
	}
	return &SESSender{client: client, fromAddress: fromAddress, composer: composer}
}

func (s *SESSender) Send(ctx context.Context, msg Message) error {
	email, err := s.composer.Compose(msg)
	if err != nil {
		return err
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{msg.To},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(email.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(email.HTML), Charset: aws.String("UTF-8")},
					Text: &types.Content{Data: aws.String(email.Text), Charset: aws.String("UTF-8")},
				},
			},
		},
	}

	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("ses send email: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"kind":       msg.Kind,
		"to":         msg.To,
		"message_id": aws.ToString(out.MessageId),
	}).Info("Email sent")
	return nil
}
