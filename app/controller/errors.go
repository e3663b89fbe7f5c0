package controller

import (
	"errors"
	"net/http"

	httpdto "github.com/vibast-solutions/ms-go-uptask/app/dto/http"
	"github.com/vibast-solutions/ms-go-uptask/app/service"
	"github.com/vibast-solutions/ms-go-uptask/app/types"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// errorStatuses maps the business errors a handler may surface to the
// status they are reported with. Anything else is a 500.
var errorStatuses = []struct {
	err    error
	status int
}{
	{service.ErrWeakPassword, http.StatusBadRequest},
	{service.ErrInvalidTaskStatus, http.StatusBadRequest},
	{service.ErrInvalidCredentials, http.StatusUnauthorized},
	{service.ErrPasswordMismatch, http.StatusUnauthorized},
	{service.ErrNotNoteAuthor, http.StatusUnauthorized},
	{service.ErrAccountNotConfirmed, http.StatusForbidden},
	{service.ErrConfirmationPending, http.StatusForbidden},
	{service.ErrAccountAlreadyConfirmed, http.StatusForbidden},
	{service.ErrNotProjectManager, http.StatusForbidden},
	{service.ErrNotProjectMember, http.StatusForbidden},
	{service.ErrTaskNotInProject, http.StatusForbidden},
	{service.ErrUserNotFound, http.StatusNotFound},
	{service.ErrTokenNotFound, http.StatusNotFound},
	{service.ErrProjectNotFound, http.StatusNotFound},
	{service.ErrTaskNotFound, http.StatusNotFound},
	{service.ErrNoteNotFound, http.StatusNotFound},
	{service.ErrUserExists, http.StatusConflict},
	{service.ErrEmailTaken, http.StatusConflict},
	{service.ErrAlreadyMember, http.StatusConflict},
	{service.ErrManagerCannotJoin, http.StatusConflict},
	{service.ErrNotMember, http.StatusConflict},
	{service.ErrTokenAlreadyIssued, http.StatusTooManyRequests},
}

func statusFor(err error) (int, bool) {
	for _, candidate := range errorStatuses {
		if errors.Is(err, candidate.err) {
			return candidate.status, true
		}
	}
	return http.StatusInternalServerError, false
}

// writeError reports err to the client. Known business errors are logged at
// Warn with the action that failed, anything else at Error and hidden behind
// a generic message.
func writeError(ctx echo.Context, err error, action string, fields logrus.Fields) error {
	status, known := statusFor(err)
	entry := logrus.WithFields(fields)
	if !known {
		entry.WithError(err).Error(action + " failed")
		return ctx.JSON(status, httpdto.ErrorResponse{Error: "internal server error"})
	}

	entry.WithField("reason", err.Error()).Warn(action + " failed")
	return ctx.JSON(status, httpdto.ErrorResponse{Error: err.Error()})
}

func writeBindError(ctx echo.Context, err error, action string) error {
	logrus.WithError(err).Debugf("Failed to bind %s request", action)
	return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "invalid request body"})
}

func writeValidationError(ctx echo.Context, err error, action string) error {
	logrus.WithError(err).Debugf("%s validation failed", action)
	if fields, ok := types.FieldErrors(err); ok {
		return ctx.JSON(http.StatusBadRequest, httpdto.ValidationErrorResponse{
			Error:  "validation failed",
			Fields: fields,
		})
	}
	return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: err.Error()})
}
