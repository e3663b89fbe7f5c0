package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vibast-solutions/ms-go-uptask/app/entity"
	"github.com/vibast-solutions/ms-go-uptask/app/repository"
	"github.com/vibast-solutions/ms-go-uptask/app/types"
)

type taskRepository interface {
	Create(ctx context.Context, task *entity.Task) error
	FindByID(ctx context.Context, id uint64) (*entity.Task, error)
	ListByProject(ctx context.Context, projectID uint64) ([]*entity.Task, error)
	Update(ctx context.Context, task *entity.Task) error
	ListStatusChanges(ctx context.Context, taskID uint64) ([]*entity.TaskStatusChange, error)
}

type TaskService interface {
	Create(ctx context.Context, project *entity.Project, req *types.TaskRequest) (*entity.Task, error)
	List(ctx context.Context, project *entity.Project) ([]*entity.Task, error)
	Get(ctx context.Context, project *entity.Project, taskID uint64) (*entity.Task, error)
	Details(ctx context.Context, task *entity.Task) (*entity.Task, error)
	Update(ctx context.Context, task *entity.Task, req *types.TaskRequest) (*entity.Task, error)
	Delete(ctx context.Context, task *entity.Task) error
	UpdateStatus(ctx context.Context, task *entity.Task, userID uint64, status entity.TaskStatus) (*entity.Task, error)
}

type taskService struct {
	db       *sql.DB
	taskRepo taskRepository
	noteRepo noteRepository
}

func NewTaskService(db *sql.DB, taskRepo taskRepository, noteRepo noteRepository) TaskService {
	return &taskService{db: db, taskRepo: taskRepo, noteRepo: noteRepo}
}

func (s *taskService) Create(ctx context.Context, project *entity.Project, req *types.TaskRequest) (*entity.Task, error) {
	now := time.Now()
	task := &entity.Task{
		ProjectID:   project.ID,
		Name:        req.Name,
		Description: req.Description,
		Status:      entity.TaskStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.taskRepo.Create(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *taskService) List(ctx context.Context, project *entity.Project) ([]*entity.Task, error) {
	return s.taskRepo.ListByProject(ctx, project.ID)
}

// Get loads a task and checks it belongs to project.
func (s *taskService) Get(ctx context.Context, project *entity.Project, taskID uint64) (*entity.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}
	if task.ProjectID != project.ID {
		return nil, ErrTaskNotInProject
	}
	return task, nil
}

func (s *taskService) Details(ctx context.Context, task *entity.Task) (*entity.Task, error) {
	changes, err := s.taskRepo.ListStatusChanges(ctx, task.ID)
	if err != nil {
		return nil, err
	}
	notes, err := s.noteRepo.ListByTask(ctx, task.ID)
	if err != nil {
		return nil, err
	}

	task.CompletedBy = changes
	task.Notes = notes
	return task, nil
}

func (s *taskService) Update(ctx context.Context, task *entity.Task, req *types.TaskRequest) (*entity.Task, error) {
	task.Name = req.Name
	task.Description = req.Description
	task.UpdatedAt = time.Now()

	if err := s.taskRepo.Update(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *taskService) Delete(ctx context.Context, task *entity.Task) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		return repository.NewTaskRepository(tx).Delete(ctx, task.ID)
	})
}

// UpdateStatus moves the task into status and records who did it.
func (s *taskService) UpdateStatus(ctx context.Context, task *entity.Task, userID uint64, status entity.TaskStatus) (*entity.Task, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTaskStatus, status)
	}

	now := time.Now()
	task.Status = status
	task.UpdatedAt = now

	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		txTaskRepo := repository.NewTaskRepository(tx)
		if err := txTaskRepo.Update(ctx, task); err != nil {
			return err
		}
		return txTaskRepo.AddStatusChange(ctx, &entity.TaskStatusChange{
			TaskID:    task.ID,
			User:      &entity.PublicUser{ID: userID},
			Status:    status,
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}

	return s.Details(ctx, task)
}
