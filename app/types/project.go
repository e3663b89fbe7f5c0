package types

import (
	"strings"

	"github.com/vibast-solutions/ms-go-uptask/app/entity"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/labstack/echo/v4"
)

type ProjectRequest struct {
	ProjectName string `json:"project_name"`
	ClientName  string `json:"client_name"`
	Description string `json:"description"`
}

func NewProjectRequestFromContext(ctx echo.Context) (*ProjectRequest, error) {
	var body ProjectRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.ProjectName = strings.TrimSpace(body.ProjectName)
	body.ClientName = strings.TrimSpace(body.ClientName)
	body.Description = strings.TrimSpace(body.Description)

	return &body, nil
}

func (r *ProjectRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ProjectName, validation.Required),
		validation.Field(&r.ClientName, validation.Required),
		validation.Field(&r.Description, validation.Required),
	)
}

type TaskRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func NewTaskRequestFromContext(ctx echo.Context) (*TaskRequest, error) {
	var body TaskRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.Name = strings.TrimSpace(body.Name)
	body.Description = strings.TrimSpace(body.Description)

	return &body, nil
}

func (r *TaskRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name, validation.Required),
		validation.Field(&r.Description, validation.Required),
	)
}

type TaskStatusRequest struct {
	Status string `json:"status"`
}

func NewTaskStatusRequestFromContext(ctx echo.Context) (*TaskStatusRequest, error) {
	var body TaskStatusRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	return &body, nil
}

func (r *TaskStatusRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Status, validation.Required, validation.In(
			string(entity.TaskStatusPending),
			string(entity.TaskStatusOnHold),
			string(entity.TaskStatusInProgress),
			string(entity.TaskStatusUnderReview),
			string(entity.TaskStatusCompleted),
		)),
	)
}

type AddMemberRequest struct {
	ID uint64 `json:"id"`
}

func NewAddMemberRequestFromContext(ctx echo.Context) (*AddMemberRequest, error) {
	var body AddMemberRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	return &body, nil
}

func (r *AddMemberRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ID, validation.Required),
	)
}

type NoteRequest struct {
	Content string `json:"content"`
}

func NewNoteRequestFromContext(ctx echo.Context) (*NoteRequest, error) {
	var body NoteRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.Content = strings.TrimSpace(body.Content)

	return &body, nil
}

func (r *NoteRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Content, validation.Required),
	)
}
