package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/vibast-solutions/ms-go-uptask/app/entity"
	"github.com/vibast-solutions/ms-go-uptask/app/mailer"
	"github.com/vibast-solutions/ms-go-uptask/app/repository"

	"github.com/sirupsen/logrus"
)

const maxCodeAttempts = 5

type tokenStore interface {
	Create(ctx context.Context, token *entity.Token) error
	FindByToken(ctx context.Context, code string) (*entity.Token, error)
	FindByUser(ctx context.Context, userID uint64, purpose entity.TokenPurpose) (*entity.Token, error)
	Claim(ctx context.Context, code string, purpose entity.TokenPurpose) (*entity.Token, error)
	Delete(ctx context.Context, token *entity.Token) error
}

// CodeGenerator returns a fresh code to mail to a user.
type CodeGenerator func() (string, error)

// TokenIssuer creates confirmation and reset codes and mails them. It is the
// only component that writes to the token store.
type TokenIssuer struct {
	store    tokenStore
	sender   mailer.Sender
	generate CodeGenerator
}

type TokenIssuerOption func(*TokenIssuer)

func NewTokenIssuer(store tokenStore, sender mailer.Sender, opts ...TokenIssuerOption) *TokenIssuer {
	issuer := &TokenIssuer{
		store:    store,
		sender:   sender,
		generate: GenerateCode,
	}
	for _, opt := range opts {
		opt(issuer)
	}
	return issuer
}

func WithCodeGenerator(generate CodeGenerator) TokenIssuerOption {
	return func(i *TokenIssuer) {
		if generate != nil {
			i.generate = generate
		}
	}
}

// GenerateCode returns a six digit numeric code.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// Issue persists a new code for user and sends exactly one email carrying it.
// When the email cannot be sent the code is removed again.
func (i *TokenIssuer) Issue(ctx context.Context, user *entity.User, purpose entity.TokenPurpose) (*entity.Token, error) {
	kind, err := mailKind(purpose)
	if err != nil {
		return nil, err
	}

	token, err := i.persist(ctx, user.ID, purpose)
	if err != nil {
		return nil, err
	}

	msg := mailer.Message{Kind: kind, To: user.Email, Name: user.Name, Token: token.Token}
	if err = i.sender.Send(ctx, msg); err != nil {
		if delErr := i.store.Delete(context.WithoutCancel(ctx), token); delErr != nil {
			logrus.WithError(delErr).WithField("user_id", user.ID).Error("failed to roll back unsent token")
		}
		return nil, fmt.Errorf("send %s email: %w", kind, err)
	}

	logrus.WithFields(logrus.Fields{
		"user_id": user.ID,
		"purpose": purpose,
	}).Info("token issued")

	return token, nil
}

// Active returns the unexpired code of purpose held by userID, or nil.
func (i *TokenIssuer) Active(ctx context.Context, userID uint64, purpose entity.TokenPurpose) (*entity.Token, error) {
	return i.store.FindByUser(ctx, userID, purpose)
}

// Lookup returns the code if it exists and has the given purpose.
func (i *TokenIssuer) Lookup(ctx context.Context, code string, purpose entity.TokenPurpose) (*entity.Token, error) {
	token, err := i.store.FindByToken(ctx, code)
	if err != nil || token == nil {
		return nil, err
	}
	if token.Purpose != purpose {
		return nil, nil
	}
	return token, nil
}

// Claim consumes the code. Only one caller can ever claim a given code.
func (i *TokenIssuer) Claim(ctx context.Context, code string, purpose entity.TokenPurpose) (*entity.Token, error) {
	return i.store.Claim(ctx, code, purpose)
}

func (i *TokenIssuer) persist(ctx context.Context, userID uint64, purpose entity.TokenPurpose) (*entity.Token, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := i.generate()
		if err != nil {
			return nil, err
		}

		token := &entity.Token{Token: code, UserID: userID, Purpose: purpose}
		err = i.store.Create(ctx, token)
		switch {
		case err == nil:
			return token, nil
		case errors.Is(err, repository.ErrActiveTokenExists):
			return nil, ErrTokenAlreadyIssued
		case errors.Is(err, repository.ErrTokenCollision):
			continue
		default:
			return nil, err
		}
	}

	return nil, fmt.Errorf("could not generate a unique code after %d attempts", maxCodeAttempts)
}

func mailKind(purpose entity.TokenPurpose) (mailer.Kind, error) {
	switch purpose {
	case entity.TokenPurposeConfirmation:
		return mailer.KindConfirmAccount, nil
	case entity.TokenPurposeReset:
		return mailer.KindResetPassword, nil
	}
	return "", fmt.Errorf("unknown token purpose %q", purpose)
}
