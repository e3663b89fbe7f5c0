package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/vibast-solutions/ms-go-uptask/app/entity"
)

const taskSelectColumns = `id, project_id, name, description, status, created_at, updated_at`

type TaskRepository struct {
	db DBTX
}

func NewTaskRepository(db DBTX) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, task *entity.Task) error {
	query := `
		INSERT INTO tasks (project_id, name, description, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		task.ProjectID,
		task.Name,
		task.Description,
		string(task.Status),
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	task.ID = uint64(id)
	return nil
}

func (r *TaskRepository) FindByID(ctx context.Context, id uint64) (*entity.Task, error) {
	query := `SELECT ` + taskSelectColumns + ` FROM tasks WHERE id = ?`
	task, err := scanTask(r.db.QueryRowContext(ctx, query, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (r *TaskRepository) ListByProject(ctx context.Context, projectID uint64) ([]*entity.Task, error) {
	query := `SELECT ` + taskSelectColumns + ` FROM tasks WHERE project_id = ? ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := make([]*entity.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return tasks, nil
}

func (r *TaskRepository) Update(ctx context.Context, task *entity.Task) error {
	query := `
		UPDATE tasks SET
			name = ?,
			description = ?,
			status = ?,
			updated_at = ?
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query,
		task.Name,
		task.Description,
		string(task.Status),
		task.UpdatedAt,
		task.ID,
	)
	return err
}

// Delete removes the task with its notes and status history. Callers run it
// inside a transaction.
func (r *TaskRepository) Delete(ctx context.Context, id uint64) error {
	statements := []string{
		`DELETE FROM notes WHERE task_id = ?`,
		`DELETE FROM task_status_changes WHERE task_id = ?`,
		`DELETE FROM tasks WHERE id = ?`,
	}
	for _, statement := range statements {
		if _, err := r.db.ExecContext(ctx, statement, id); err != nil {
			return err
		}
	}
	return nil
}

func (r *TaskRepository) AddStatusChange(ctx context.Context, change *entity.TaskStatusChange) error {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO task_status_changes (task_id, user_id, status, created_at) VALUES (?, ?, ?, ?)`,
		change.TaskID,
		change.User.ID,
		string(change.Status),
		change.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	change.ID = uint64(id)
	return nil
}

func (r *TaskRepository) ListStatusChanges(ctx context.Context, taskID uint64) ([]*entity.TaskStatusChange, error) {
	query := `
		SELECT c.id, c.task_id, c.status, c.created_at, u.id, u.name, u.email
		FROM task_status_changes c
		INNER JOIN users u ON u.id = c.user_id
		WHERE c.task_id = ?
		ORDER BY c.id
	`
	rows, err := r.db.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	changes := make([]*entity.TaskStatusChange, 0)
	for rows.Next() {
		change := &entity.TaskStatusChange{User: &entity.PublicUser{}}
		var status string
		if err = rows.Scan(
			&change.ID,
			&change.TaskID,
			&status,
			&change.CreatedAt,
			&change.User.ID,
			&change.User.Name,
			&change.User.Email,
		); err != nil {
			return nil, err
		}
		change.Status = entity.TaskStatus(status)
		changes = append(changes, change)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return changes, nil
}

func scanTask(scan rowScanner) (*entity.Task, error) {
	task := &entity.Task{}
	var status string
	if err := scan(
		&task.ID,
		&task.ProjectID,
		&task.Name,
		&task.Description,
		&status,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		return nil, err
	}
	task.Status = entity.TaskStatus(status)
	return task, nil
}
