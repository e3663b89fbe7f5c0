package controller

import (
	"net/http"

	"github.com/vibast-solutions/ms-go-uptask/app/auth"
	httpdto "github.com/vibast-solutions/ms-go-uptask/app/dto/http"
	"github.com/vibast-solutions/ms-go-uptask/app/entity"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// projectScope reads what the auth and project middlewares bound to the
// request. A false return means the response has already been written.
func projectScope(ctx echo.Context) (auth.Identity, *entity.Project, bool) {
	reqCtx := ctx.Request().Context()
	identity, ok := auth.IdentityFrom(reqCtx)
	if !ok {
		_ = unauthenticated(ctx)
		return auth.Identity{}, nil, false
	}
	project, ok := auth.ProjectFrom(reqCtx)
	if !ok {
		logrus.Error("Project route reached without a resolved project")
		_ = ctx.JSON(http.StatusInternalServerError, httpdto.ErrorResponse{Error: "internal server error"})
		return auth.Identity{}, nil, false
	}
	return identity, project, true
}

func taskScope(ctx echo.Context) (auth.Identity, *entity.Task, bool) {
	identity, _, ok := projectScope(ctx)
	if !ok {
		return auth.Identity{}, nil, false
	}
	task, ok := auth.TaskFrom(ctx.Request().Context())
	if !ok {
		logrus.Error("Task route reached without a resolved task")
		_ = ctx.JSON(http.StatusInternalServerError, httpdto.ErrorResponse{Error: "internal server error"})
		return auth.Identity{}, nil, false
	}
	return identity, task, true
}
