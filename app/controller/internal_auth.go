package controller

import (
	"context"
	"errors"
	"net/http"
	"strings"

	httpdto "github.com/vibast-solutions/ms-go-uptask/app/dto/http"
	"github.com/vibast-solutions/ms-go-uptask/app/entity"
	"github.com/vibast-solutions/ms-go-uptask/app/middleware"
	"github.com/vibast-solutions/ms-go-uptask/app/service"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type sessionVerifier interface {
	VerifySession(ctx context.Context, signed string) (*entity.User, error)
}

// InternalAuthController lets other services resolve an UpTask session
// cookie into its user. Routes are guarded by APIKeyMiddleware.
type InternalAuthController struct {
	sessions sessionVerifier
}

func NewInternalAuthController(sessions sessionVerifier) *InternalAuthController {
	return &InternalAuthController{sessions: sessions}
}

func (c *InternalAuthController) VerifySession(ctx echo.Context) error {
	var req httpdto.SessionVerifyRequest
	if err := ctx.Bind(&req); err != nil {
		return writeBindError(ctx, err, "verify session")
	}
	req.Token = strings.TrimSpace(req.Token)
	if req.Token == "" {
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "token is required"})
	}

	caller, _ := ctx.Get(middleware.ContextKeyCallerService).(string)
	user, err := c.sessions.VerifySession(ctx.Request().Context(), req.Token)
	if err != nil {
		if errors.Is(err, service.ErrInvalidSession) {
			logrus.WithField("caller_service", caller).Debug("Session rejected")
			return ctx.JSON(http.StatusOK, httpdto.SessionVerifyResponse{Valid: false})
		}
		logrus.WithError(err).WithField("caller_service", caller).Error("Verify session failed")
		return ctx.JSON(http.StatusInternalServerError, httpdto.ErrorResponse{Error: "internal server error"})
	}

	return ctx.JSON(http.StatusOK, httpdto.SessionVerifyResponse{
		Valid:  true,
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
	})
}
