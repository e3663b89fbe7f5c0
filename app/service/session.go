package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SessionClaims is the payload of the session cookie. It only identifies the
// user; everything else is loaded from the store on each request.
type SessionClaims struct {
	UserID uint64 `json:"id"`
	jwt.RegisteredClaims
}

type SessionIssuer struct {
	secret []byte
	now    func() time.Time
}

type SessionIssuerOption func(*SessionIssuer)

func NewSessionIssuer(secret string, opts ...SessionIssuerOption) *SessionIssuer {
	issuer := &SessionIssuer{
		secret: []byte(secret),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(issuer)
	}
	return issuer
}

func WithSessionClock(now func() time.Time) SessionIssuerOption {
	return func(s *SessionIssuer) {
		if now != nil {
			s.now = now
		}
	}
}

// Issue signs a session for userID valid for ttl and returns it with its expiry.
func (s *SessionIssuer) Issue(userID uint64, ttl time.Duration) (string, time.Time, error) {
	issuedAt := s.now()
	expiresAt := issuedAt.Add(ttl)

	claims := &SessionClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify returns the user id carried by a signed session. Anything that is not
// an unexpired HMAC-signed session yields ErrInvalidSession.
func (s *SessionIssuer) Verify(signed string) (uint64, error) {
	token, err := jwt.ParseWithClaims(signed, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return 0, ErrInvalidSession
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.UserID == 0 {
		return 0, ErrInvalidSession
	}

	return claims.UserID, nil
}
