package entity

import "time"

type TokenPurpose string

const (
	TokenPurposeConfirmation TokenPurpose = "confirmation"
	TokenPurposeReset        TokenPurpose = "reset"
)

// Token is a single-use code mailed to a user to confirm an account or reset a password.
type Token struct {
	Token     string       `json:"token"`
	UserID    uint64       `json:"user_id"`
	Purpose   TokenPurpose `json:"purpose"`
	CreatedAt time.Time    `json:"created_at"`
	ExpiresAt time.Time    `json:"expires_at"`
}
