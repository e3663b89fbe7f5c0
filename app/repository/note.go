package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/vibast-solutions/ms-go-uptask/app/entity"
)

const noteSelect = `
	SELECT n.id, n.task_id, n.content, n.created_at, u.id, u.name, u.email
	FROM notes n
	INNER JOIN users u ON u.id = n.created_by
`

type NoteRepository struct {
	db DBTX
}

func NewNoteRepository(db DBTX) *NoteRepository {
	return &NoteRepository{db: db}
}

func (r *NoteRepository) Create(ctx context.Context, note *entity.Note) error {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO notes (task_id, created_by, content, created_at) VALUES (?, ?, ?, ?)`,
		note.TaskID,
		note.CreatedBy.ID,
		note.Content,
		note.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	note.ID = uint64(id)
	return nil
}

func (r *NoteRepository) FindByID(ctx context.Context, id uint64) (*entity.Note, error) {
	note, err := scanNote(r.db.QueryRowContext(ctx, noteSelect+` WHERE n.id = ?`, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return note, nil
}

func (r *NoteRepository) ListByTask(ctx context.Context, taskID uint64) ([]*entity.Note, error) {
	rows, err := r.db.QueryContext(ctx, noteSelect+` WHERE n.task_id = ? ORDER BY n.id`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notes := make([]*entity.Note, 0)
	for rows.Next() {
		note, err := scanNote(rows.Scan)
		if err != nil {
			return nil, err
		}
		notes = append(notes, note)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return notes, nil
}

func (r *NoteRepository) Delete(ctx context.Context, id uint64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id)
	return err
}

func scanNote(scan rowScanner) (*entity.Note, error) {
	note := &entity.Note{CreatedBy: &entity.PublicUser{}}
	if err := scan(
		&note.ID,
		&note.TaskID,
		&note.Content,
		&note.CreatedAt,
		&note.CreatedBy.ID,
		&note.CreatedBy.Name,
		&note.CreatedBy.Email,
	); err != nil {
		return nil, err
	}
	return note, nil
}
