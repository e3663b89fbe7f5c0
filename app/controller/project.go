package controller

import (
	"net/http"

	"github.com/vibast-solutions/ms-go-uptask/app/auth"
	httpdto "github.com/vibast-solutions/ms-go-uptask/app/dto/http"
	"github.com/vibast-solutions/ms-go-uptask/app/service"
	"github.com/vibast-solutions/ms-go-uptask/app/types"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type ProjectController struct {
	projectService service.ProjectService
}

func NewProjectController(projectService service.ProjectService) *ProjectController {
	return &ProjectController{projectService: projectService}
}

func (c *ProjectController) Create(ctx echo.Context) error {
	identity, ok := auth.IdentityFrom(ctx.Request().Context())
	if !ok {
		return unauthenticated(ctx)
	}

	req, err := types.NewProjectRequestFromContext(ctx)
	if err != nil {
		return writeBindError(ctx, err, "create project")
	}
	if err = req.Validate(); err != nil {
		return writeValidationError(ctx, err, "Create project")
	}

	project, err := c.projectService.Create(ctx.Request().Context(), identity.UserID, req)
	if err != nil {
		return writeError(ctx, err, "Create project", logrus.Fields{"user_id": identity.UserID})
	}

	logrus.WithFields(logrus.Fields{
		"project_id": project.ID,
		"manager_id": identity.UserID,
	}).Info("Project created")
	return ctx.JSON(http.StatusCreated, project)
}

func (c *ProjectController) List(ctx echo.Context) error {
	identity, ok := auth.IdentityFrom(ctx.Request().Context())
	if !ok {
		return unauthenticated(ctx)
	}

	projects, err := c.projectService.List(ctx.Request().Context(), identity.UserID)
	if err != nil {
		return writeError(ctx, err, "List projects", logrus.Fields{"user_id": identity.UserID})
	}
	return ctx.JSON(http.StatusOK, projects)
}

func (c *ProjectController) Get(ctx echo.Context) error {
	_, project, ok := projectScope(ctx)
	if !ok {
		return nil
	}

	detailed, err := c.projectService.WithTasks(ctx.Request().Context(), project)
	if err != nil {
		return writeError(ctx, err, "Get project", logrus.Fields{"project_id": project.ID})
	}
	return ctx.JSON(http.StatusOK, detailed)
}

func (c *ProjectController) Update(ctx echo.Context) error {
	_, project, ok := projectScope(ctx)
	if !ok {
		return nil
	}

	req, err := types.NewProjectRequestFromContext(ctx)
	if err != nil {
		return writeBindError(ctx, err, "update project")
	}
	if err = req.Validate(); err != nil {
		return writeValidationError(ctx, err, "Update project")
	}

	if _, err = c.projectService.Update(ctx.Request().Context(), project, req); err != nil {
		return writeError(ctx, err, "Update project", logrus.Fields{"project_id": project.ID})
	}
	return ctx.JSON(http.StatusOK, httpdto.MessageResponse{Message: "project updated"})
}

func (c *ProjectController) Delete(ctx echo.Context) error {
	_, project, ok := projectScope(ctx)
	if !ok {
		return nil
	}

	if err := c.projectService.Delete(ctx.Request().Context(), project); err != nil {
		return writeError(ctx, err, "Delete project", logrus.Fields{"project_id": project.ID})
	}
	return ctx.JSON(http.StatusOK, httpdto.MessageResponse{Message: "project deleted"})
}
