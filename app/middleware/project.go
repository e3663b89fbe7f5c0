package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/vibast-solutions/ms-go-uptask/app/auth"
	"github.com/vibast-solutions/ms-go-uptask/app/entity"
	"github.com/vibast-solutions/ms-go-uptask/app/service"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type projectLoader interface {
	Get(ctx context.Context, id uint64) (*entity.Project, error)
}

type taskLoader interface {
	Get(ctx context.Context, project *entity.Project, taskID uint64) (*entity.Task, error)
}

// ProjectMiddleware resolves :projectId and :taskId and enforces the caller's
// role on the project. It must run after AuthMiddleware.RequireAuth.
type ProjectMiddleware struct {
	projects projectLoader
	tasks    taskLoader
}

func NewProjectMiddleware(projects projectLoader, tasks taskLoader) *ProjectMiddleware {
	return &ProjectMiddleware{projects: projects, tasks: tasks}
}

func (m *ProjectMiddleware) ResolveProject(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		projectID, err := strconv.ParseUint(c.Param("projectId"), 10, 64)
		if err != nil {
			return c.JSON(http.StatusNotFound, map[string]string{"error": service.ErrProjectNotFound.Error()})
		}

		project, err := m.projects.Get(c.Request().Context(), projectID)
		if err != nil {
			if errors.Is(err, service.ErrProjectNotFound) {
				return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
			}
			logrus.WithError(err).WithField("project_id", projectID).Error("Failed to load project")
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}

		req := c.Request()
		c.SetRequest(req.WithContext(auth.WithProject(req.Context(), project)))
		return next(c)
	}
}

func (m *ProjectMiddleware) RequireMember(next echo.HandlerFunc) echo.HandlerFunc {
	return m.require(service.RoleMember, next)
}

func (m *ProjectMiddleware) RequireManager(next echo.HandlerFunc) echo.HandlerFunc {
	return m.require(service.RoleManager, next)
}

func (m *ProjectMiddleware) require(role service.Role, next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		identity, ok := auth.IdentityFrom(ctx)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		}
		project, ok := auth.ProjectFrom(ctx)
		if !ok {
			logrus.Error("Project gate used without a resolved project")
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}

		if err := service.Authorize(project, identity.UserID, role); err != nil {
			logrus.WithFields(logrus.Fields{
				"project_id": project.ID,
				"user_id":    identity.UserID,
			}).Debug("Project access denied")
			return c.JSON(http.StatusForbidden, map[string]string{"error": err.Error()})
		}

		return next(c)
	}
}

// ResolveTask loads :taskId and checks it belongs to the resolved project.
func (m *ProjectMiddleware) ResolveTask(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		project, ok := auth.ProjectFrom(c.Request().Context())
		if !ok {
			logrus.Error("Task resolver used without a resolved project")
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}

		taskID, err := strconv.ParseUint(c.Param("taskId"), 10, 64)
		if err != nil {
			return c.JSON(http.StatusNotFound, map[string]string{"error": service.ErrTaskNotFound.Error()})
		}

		task, err := m.tasks.Get(c.Request().Context(), project, taskID)
		switch {
		case errors.Is(err, service.ErrTaskNotFound):
			return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrTaskNotInProject):
			return c.JSON(http.StatusForbidden, map[string]string{"error": err.Error()})
		case err != nil:
			logrus.WithError(err).WithField("task_id", taskID).Error("Failed to load task")
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}

		req := c.Request()
		c.SetRequest(req.WithContext(auth.WithTask(req.Context(), task)))
		return next(c)
	}
}
