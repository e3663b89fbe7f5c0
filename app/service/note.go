package service

import (
	"context"
	"time"

	"github.com/vibast-solutions/ms-go-uptask/app/auth"
	"github.com/vibast-solutions/ms-go-uptask/app/entity"
	"github.com/vibast-solutions/ms-go-uptask/app/types"
)

type noteRepository interface {
	Create(ctx context.Context, note *entity.Note) error
	FindByID(ctx context.Context, id uint64) (*entity.Note, error)
	ListByTask(ctx context.Context, taskID uint64) ([]*entity.Note, error)
	Delete(ctx context.Context, id uint64) error
}

type NoteService interface {
	Create(ctx context.Context, task *entity.Task, author auth.Identity, req *types.NoteRequest) (*entity.Note, error)
	List(ctx context.Context, task *entity.Task) ([]*entity.Note, error)
	Delete(ctx context.Context, task *entity.Task, noteID, userID uint64) error
}

type noteService struct {
	noteRepo noteRepository
}

func NewNoteService(noteRepo noteRepository) NoteService {
	return &noteService{noteRepo: noteRepo}
}

func (s *noteService) Create(ctx context.Context, task *entity.Task, author auth.Identity, req *types.NoteRequest) (*entity.Note, error) {
	note := &entity.Note{
		TaskID:  task.ID,
		Content: req.Content,
		CreatedBy: &entity.PublicUser{
			ID:    author.UserID,
			Name:  author.Name,
			Email: author.Email,
		},
		CreatedAt: time.Now(),
	}

	if err := s.noteRepo.Create(ctx, note); err != nil {
		return nil, err
	}
	return note, nil
}

func (s *noteService) List(ctx context.Context, task *entity.Task) ([]*entity.Note, error) {
	return s.noteRepo.ListByTask(ctx, task.ID)
}

// Delete removes a note of task. Only its author may do so.
func (s *noteService) Delete(ctx context.Context, task *entity.Task, noteID, userID uint64) error {
	note, err := s.noteRepo.FindByID(ctx, noteID)
	if err != nil {
		return err
	}
	if note == nil || note.TaskID != task.ID {
		return ErrNoteNotFound
	}
	if note.CreatedBy == nil || note.CreatedBy.ID != userID {
		return ErrNotNoteAuthor
	}

	return s.noteRepo.Delete(ctx, note.ID)
}
