package controller

import (
	"net/http"

	httpdto "github.com/vibast-solutions/ms-go-uptask/app/dto/http"
	"github.com/vibast-solutions/ms-go-uptask/app/entity"
	"github.com/vibast-solutions/ms-go-uptask/app/service"
	"github.com/vibast-solutions/ms-go-uptask/app/types"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type TaskController struct {
	taskService service.TaskService
}

func NewTaskController(taskService service.TaskService) *TaskController {
	return &TaskController{taskService: taskService}
}

func (c *TaskController) Create(ctx echo.Context) error {
	_, project, ok := projectScope(ctx)
	if !ok {
		return nil
	}

	req, err := types.NewTaskRequestFromContext(ctx)
	if err != nil {
		return writeBindError(ctx, err, "create task")
	}
	if err = req.Validate(); err != nil {
		return writeValidationError(ctx, err, "Create task")
	}

	task, err := c.taskService.Create(ctx.Request().Context(), project, req)
	if err != nil {
		return writeError(ctx, err, "Create task", logrus.Fields{"project_id": project.ID})
	}

	logrus.WithFields(logrus.Fields{
		"project_id": project.ID,
		"task_id":    task.ID,
	}).Info("Task created")
	return ctx.JSON(http.StatusCreated, task)
}

func (c *TaskController) List(ctx echo.Context) error {
	_, project, ok := projectScope(ctx)
	if !ok {
		return nil
	}

	tasks, err := c.taskService.List(ctx.Request().Context(), project)
	if err != nil {
		return writeError(ctx, err, "List tasks", logrus.Fields{"project_id": project.ID})
	}
	return ctx.JSON(http.StatusOK, tasks)
}

func (c *TaskController) Get(ctx echo.Context) error {
	_, task, ok := taskScope(ctx)
	if !ok {
		return nil
	}

	detailed, err := c.taskService.Details(ctx.Request().Context(), task)
	if err != nil {
		return writeError(ctx, err, "Get task", logrus.Fields{"task_id": task.ID})
	}
	return ctx.JSON(http.StatusOK, detailed)
}

func (c *TaskController) Update(ctx echo.Context) error {
	_, task, ok := taskScope(ctx)
	if !ok {
		return nil
	}

	req, err := types.NewTaskRequestFromContext(ctx)
	if err != nil {
		return writeBindError(ctx, err, "update task")
	}
	if err = req.Validate(); err != nil {
		return writeValidationError(ctx, err, "Update task")
	}

	if _, err = c.taskService.Update(ctx.Request().Context(), task, req); err != nil {
		return writeError(ctx, err, "Update task", logrus.Fields{"task_id": task.ID})
	}
	return ctx.JSON(http.StatusOK, httpdto.MessageResponse{Message: "task updated"})
}

func (c *TaskController) Delete(ctx echo.Context) error {
	_, task, ok := taskScope(ctx)
	if !ok {
		return nil
	}

	if err := c.taskService.Delete(ctx.Request().Context(), task); err != nil {
		return writeError(ctx, err, "Delete task", logrus.Fields{"task_id": task.ID})
	}
	return ctx.JSON(http.StatusOK, httpdto.MessageResponse{Message: "task deleted"})
}

func (c *TaskController) UpdateStatus(ctx echo.Context) error {
	identity, task, ok := taskScope(ctx)
	if !ok {
		return nil
	}

	req, err := types.NewTaskStatusRequestFromContext(ctx)
	if err != nil {
		return writeBindError(ctx, err, "update task status")
	}
	if err = req.Validate(); err != nil {
		return writeValidationError(ctx, err, "Update task status")
	}

	updated, err := c.taskService.UpdateStatus(ctx.Request().Context(), task, identity.UserID, entity.TaskStatus(req.Status))
	if err != nil {
		return writeError(ctx, err, "Update task status", logrus.Fields{
			"task_id": task.ID,
			"user_id": identity.UserID,
		})
	}

	logrus.WithFields(logrus.Fields{
		"task_id": updated.ID,
		"status":  updated.Status,
	}).Info("Task status updated")
	return ctx.JSON(http.StatusOK, updated)
}
