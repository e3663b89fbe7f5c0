package dto

import (
	"time"

	"github.com/vibast-solutions/ms-go-uptask/app/entity"
)

// LoginResult is what the auth service hands back to the HTTP layer after a
// successful login. The controller turns it into the session cookie.
type LoginResult struct {
	Token      string
	ExpiresAt  time.Time
	RememberMe bool
	User       *entity.User
}

