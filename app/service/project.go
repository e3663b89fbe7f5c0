package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/vibast-solutions/ms-go-uptask/app/entity"
	"github.com/vibast-solutions/ms-go-uptask/app/repository"
	"github.com/vibast-solutions/ms-go-uptask/app/types"

	"github.com/sirupsen/logrus"
)

type projectRepository interface {
	Create(ctx context.Context, project *entity.Project) error
	FindByID(ctx context.Context, id uint64) (*entity.Project, error)
	ListForUser(ctx context.Context, userID uint64) ([]*entity.Project, error)
	Update(ctx context.Context, project *entity.Project) error
}

type ProjectService interface {
	Create(ctx context.Context, managerID uint64, req *types.ProjectRequest) (*entity.Project, error)
	List(ctx context.Context, userID uint64) ([]*entity.Project, error)
	Get(ctx context.Context, id uint64) (*entity.Project, error)
	WithTasks(ctx context.Context, project *entity.Project) (*entity.Project, error)
	Update(ctx context.Context, project *entity.Project, req *types.ProjectRequest) (*entity.Project, error)
	Delete(ctx context.Context, project *entity.Project) error
}

type projectService struct {
	db          *sql.DB
	projectRepo projectRepository
	taskRepo    taskRepository
}

func NewProjectService(db *sql.DB, projectRepo projectRepository, taskRepo taskRepository) ProjectService {
	return &projectService{db: db, projectRepo: projectRepo, taskRepo: taskRepo}
}

func (s *projectService) Create(ctx context.Context, managerID uint64, req *types.ProjectRequest) (*entity.Project, error) {
	now := time.Now()
	project := &entity.Project{
		ProjectName: req.ProjectName,
		ClientName:  req.ClientName,
		Description: req.Description,
		ManagerID:   managerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.projectRepo.Create(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

func (s *projectService) List(ctx context.Context, userID uint64) ([]*entity.Project, error) {
	return s.projectRepo.ListForUser(ctx, userID)
}

func (s *projectService) Get(ctx context.Context, id uint64) (*entity.Project, error) {
	project, err := s.projectRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, ErrProjectNotFound
	}
	return project, nil
}

func (s *projectService) WithTasks(ctx context.Context, project *entity.Project) (*entity.Project, error) {
	tasks, err := s.taskRepo.ListByProject(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	project.Tasks = tasks
	return project, nil
}

func (s *projectService) Update(ctx context.Context, project *entity.Project, req *types.ProjectRequest) (*entity.Project, error) {
	project.ProjectName = req.ProjectName
	project.ClientName = req.ClientName
	project.Description = req.Description
	project.UpdatedAt = time.Now()

	if err := s.projectRepo.Update(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

// Delete removes the project together with its tasks, notes and team.
func (s *projectService) Delete(ctx context.Context, project *entity.Project) error {
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		return repository.NewProjectRepository(tx).Delete(ctx, project.ID)
	})
	if err != nil {
		return err
	}

	logrus.WithField("project_id", project.ID).Info("project deleted")
	return nil
}
