package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/vibast-solutions/ms-go-uptask/app/auth"
	"github.com/vibast-solutions/ms-go-uptask/app/entity"
	"github.com/vibast-solutions/ms-go-uptask/app/service"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type sessionVerifier interface {
	VerifySession(ctx context.Context, signed string) (*entity.User, error)
}

type AuthMiddleware struct {
	sessions   sessionVerifier
	cookieName string
}

func NewAuthMiddleware(sessions sessionVerifier, cookieName string) *AuthMiddleware {
	return &AuthMiddleware{sessions: sessions, cookieName: cookieName}
}

// RequireAuth resolves the session cookie into an auth.Identity bound to the
// request context.
func (m *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		cookie, err := c.Cookie(m.cookieName)
		if err != nil || cookie.Value == "" {
			logrus.Debug("Missing session cookie")
			return c.JSON(http.StatusUnauthorized, map[string]string{
				"error": "not authenticated",
			})
		}

		user, err := m.sessions.VerifySession(c.Request().Context(), cookie.Value)
		if err != nil {
			if errors.Is(err, service.ErrInvalidSession) {
				logrus.Debug("Invalid or expired session")
				return c.JSON(http.StatusUnauthorized, map[string]string{
					"error": "invalid or expired session",
				})
			}
			logrus.WithError(err).Error("Session verification failed")
			return c.JSON(http.StatusInternalServerError, map[string]string{
				"error": "internal server error",
			})
		}

		identity := auth.NewIdentity(user)
		req := c.Request()
		c.SetRequest(req.WithContext(auth.WithIdentity(req.Context(), identity)))

		return next(c)
	}
}
