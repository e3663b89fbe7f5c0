package service

import (
	"context"
	"errors"
	"time"

	"github.com/vibast-solutions/ms-go-uptask/app/entity"
	"github.com/vibast-solutions/ms-go-uptask/app/repository"
)

type teamRepository interface {
	ListMembers(ctx context.Context, projectID uint64) ([]*entity.PublicUser, error)
	AddMember(ctx context.Context, projectID, userID uint64, addedAt time.Time) error
	RemoveMember(ctx context.Context, projectID, userID uint64) (bool, error)
}

type TeamService interface {
	FindUser(ctx context.Context, email string) (*entity.PublicUser, error)
	Members(ctx context.Context, project *entity.Project) ([]*entity.PublicUser, error)
	Add(ctx context.Context, project *entity.Project, userID uint64) error
	Remove(ctx context.Context, project *entity.Project, userID uint64) error
}

type teamService struct {
	userRepo userRepository
	teamRepo teamRepository
}

func NewTeamService(userRepo userRepository, teamRepo teamRepository) TeamService {
	return &teamService{userRepo: userRepo, teamRepo: teamRepo}
}

func (s *teamService) FindUser(ctx context.Context, email string) (*entity.PublicUser, error) {
	user, err := s.userRepo.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user.Public(), nil
}

func (s *teamService) Members(ctx context.Context, project *entity.Project) ([]*entity.PublicUser, error) {
	return s.teamRepo.ListMembers(ctx, project.ID)
}

func (s *teamService) Add(ctx context.Context, project *entity.Project, userID uint64) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}

	if project.IsManager(user.ID) {
		return ErrManagerCannotJoin
	}
	if project.HasMember(user.ID) {
		return ErrAlreadyMember
	}

	if err = s.teamRepo.AddMember(ctx, project.ID, user.ID, time.Now()); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return ErrAlreadyMember
		}
		return err
	}

	project.Team = append(project.Team, user.ID)
	return nil
}

func (s *teamService) Remove(ctx context.Context, project *entity.Project, userID uint64) error {
	removed, err := s.teamRepo.RemoveMember(ctx, project.ID, userID)
	if err != nil {
		return err
	}
	if !removed {
		return ErrNotMember
	}

	team := project.Team[:0]
	for _, memberID := range project.Team {
		if memberID != userID {
			team = append(team, memberID)
		}
	}
	project.Team = team
	return nil
}
