// Package mailer delivers the account emails that carry confirmation and
// password reset codes.
package mailer

import (
	"context"
	"errors"
)

type Kind string

const (
	KindConfirmAccount Kind = "confirm_account"
	KindResetPassword  Kind = "reset_password"
)

var ErrUnknownKind = errors.New("unknown mail kind")

// Message is what gets handed to a Sender and, with the queue driver,
// serialized onto the broker.
type Message struct {
	Kind  Kind   `json:"kind"`
	To    string `json:"to"`
	Name  string `json:"name"`
	Token string `json:"token"`
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}
