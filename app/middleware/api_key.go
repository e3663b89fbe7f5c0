package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/vibast-solutions/ms-go-uptask/app/entity"
	"github.com/vibast-solutions/ms-go-uptask/app/service"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const ContextKeyCallerService = "caller_service"

type apiKeyValidator interface {
	ValidateInternalAPIKey(ctx context.Context, apiKey string) (*entity.InternalAPIKey, error)
}

// APIKeyMiddleware guards the internal HTTP endpoints that other backend
// services call. The key must carry a grant for requiredAccess.
type APIKeyMiddleware struct {
	authService    apiKeyValidator
	requiredAccess string
}

func NewAPIKeyMiddleware(authService apiKeyValidator, requiredAccess string) *APIKeyMiddleware {
	return &APIKeyMiddleware{authService: authService, requiredAccess: requiredAccess}
}

func (m *APIKeyMiddleware) RequireAPIKey(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if c.Request().Method == http.MethodOptions {
			return next(c)
		}

		apiKey := strings.TrimSpace(c.Request().Header.Get("X-API-Key"))
		if apiKey == "" {
			logrus.Debug("Missing x-api-key header")
			return c.JSON(http.StatusUnauthorized, map[string]string{
				"error": "unauthorized",
			})
		}

		key, err := m.authService.ValidateInternalAPIKey(c.Request().Context(), apiKey)
		if err != nil {
			if errors.Is(err, service.ErrInvalidInternalAPIKey) {
				logrus.Debug("Invalid x-api-key header")
				return c.JSON(http.StatusUnauthorized, map[string]string{
					"error": "unauthorized",
				})
			}
			logrus.WithError(err).Error("API key validation failed")
			return c.JSON(http.StatusInternalServerError, map[string]string{
				"error": "internal server error",
			})
		}

		if !key.Allows(m.requiredAccess) {
			logrus.WithField("caller_service", key.ServiceName).Warn("API key lacks access grant")
			return c.JSON(http.StatusForbidden, map[string]string{
				"error": "forbidden",
			})
		}

		c.Set(ContextKeyCallerService, key.ServiceName)
		return next(c)
	}
}
