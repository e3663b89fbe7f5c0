package controller

import (
	"net/http"
	"strconv"

	httpdto "github.com/vibast-solutions/ms-go-uptask/app/dto/http"
	"github.com/vibast-solutions/ms-go-uptask/app/service"
	"github.com/vibast-solutions/ms-go-uptask/app/types"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type NoteController struct {
	noteService service.NoteService
}

func NewNoteController(noteService service.NoteService) *NoteController {
	return &NoteController{noteService: noteService}
}

func (c *NoteController) Create(ctx echo.Context) error {
	identity, task, ok := taskScope(ctx)
	if !ok {
		return nil
	}

	req, err := types.NewNoteRequestFromContext(ctx)
	if err != nil {
		return writeBindError(ctx, err, "create note")
	}
	if err = req.Validate(); err != nil {
		return writeValidationError(ctx, err, "Create note")
	}

	note, err := c.noteService.Create(ctx.Request().Context(), task, identity, req)
	if err != nil {
		return writeError(ctx, err, "Create note", logrus.Fields{"task_id": task.ID})
	}
	return ctx.JSON(http.StatusCreated, note)
}

func (c *NoteController) List(ctx echo.Context) error {
	_, task, ok := taskScope(ctx)
	if !ok {
		return nil
	}

	notes, err := c.noteService.List(ctx.Request().Context(), task)
	if err != nil {
		return writeError(ctx, err, "List notes", logrus.Fields{"task_id": task.ID})
	}
	return ctx.JSON(http.StatusOK, notes)
}

func (c *NoteController) Delete(ctx echo.Context) error {
	identity, task, ok := taskScope(ctx)
	if !ok {
		return nil
	}

	noteID, err := strconv.ParseUint(ctx.Param("noteId"), 10, 64)
	if err != nil {
		return ctx.JSON(http.StatusNotFound, httpdto.ErrorResponse{Error: service.ErrNoteNotFound.Error()})
	}

	fields := logrus.Fields{"task_id": task.ID, "note_id": noteID, "user_id": identity.UserID}
	if err = c.noteService.Delete(ctx.Request().Context(), task, noteID, identity.UserID); err != nil {
		return writeError(ctx, err, "Delete note", fields)
	}

	logrus.WithFields(fields).Info("Note deleted")
	return ctx.JSON(http.StatusOK, httpdto.MessageResponse{Message: "note deleted"})
}
