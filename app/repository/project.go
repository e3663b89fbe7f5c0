package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vibast-solutions/ms-go-uptask/app/entity"
)

const projectSelectColumns = `p.id, p.project_name, p.client_name, p.description, p.manager_id, p.created_at, p.updated_at`

type ProjectRepository struct {
	db DBTX
}

func NewProjectRepository(db DBTX) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func (r *ProjectRepository) Create(ctx context.Context, project *entity.Project) error {
	query := `
		INSERT INTO projects (project_name, client_name, description, manager_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		project.ProjectName,
		project.ClientName,
		project.Description,
		project.ManagerID,
		project.CreatedAt,
		project.UpdatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	project.ID = uint64(id)
	if project.Team == nil {
		project.Team = []uint64{}
	}
	return nil
}

// FindByID loads the project together with its team member ids.
func (r *ProjectRepository) FindByID(ctx context.Context, id uint64) (*entity.Project, error) {
	query := `SELECT ` + projectSelectColumns + ` FROM projects p WHERE p.id = ?`
	project, err := scanProject(r.db.QueryRowContext(ctx, query, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if project.Team, err = r.ListMemberIDs(ctx, project.ID); err != nil {
		return nil, err
	}
	return project, nil
}

// ListForUser returns the projects the user manages or belongs to.
func (r *ProjectRepository) ListForUser(ctx context.Context, userID uint64) ([]*entity.Project, error) {
	query := `
		SELECT ` + projectSelectColumns + `
		FROM projects p
		WHERE p.manager_id = ?
		   OR EXISTS (SELECT 1 FROM project_members pm WHERE pm.project_id = p.id AND pm.user_id = ?)
		ORDER BY p.id
	`
	rows, err := r.db.QueryContext(ctx, query, userID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	projects := make([]*entity.Project, 0)
	for rows.Next() {
		project, err := scanProject(rows.Scan)
		if err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return projects, nil
}

func (r *ProjectRepository) Update(ctx context.Context, project *entity.Project) error {
	query := `
		UPDATE projects SET
			project_name = ?,
			client_name = ?,
			description = ?,
			updated_at = ?
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query,
		project.ProjectName,
		project.ClientName,
		project.Description,
		project.UpdatedAt,
		project.ID,
	)
	return err
}

// Delete removes the project with its notes, task history, tasks and team.
// Callers run it inside a transaction.
func (r *ProjectRepository) Delete(ctx context.Context, id uint64) error {
	statements := []string{
		`DELETE FROM notes WHERE task_id IN (SELECT id FROM tasks WHERE project_id = ?)`,
		`DELETE FROM task_status_changes WHERE task_id IN (SELECT id FROM tasks WHERE project_id = ?)`,
		`DELETE FROM tasks WHERE project_id = ?`,
		`DELETE FROM project_members WHERE project_id = ?`,
		`DELETE FROM projects WHERE id = ?`,
	}
	for _, statement := range statements {
		if _, err := r.db.ExecContext(ctx, statement, id); err != nil {
			return err
		}
	}
	return nil
}

func (r *ProjectRepository) ListMemberIDs(ctx context.Context, projectID uint64) ([]uint64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT user_id FROM project_members WHERE project_id = ? ORDER BY created_at, user_id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]uint64, 0)
	for rows.Next() {
		var id uint64
		if err = rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return ids, nil
}

func (r *ProjectRepository) ListMembers(ctx context.Context, projectID uint64) ([]*entity.PublicUser, error) {
	query := `
		SELECT u.id, u.name, u.email
		FROM project_members pm
		INNER JOIN users u ON u.id = pm.user_id
		WHERE pm.project_id = ?
		ORDER BY pm.created_at, u.id
	`
	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := make([]*entity.PublicUser, 0)
	for rows.Next() {
		member := &entity.PublicUser{}
		if err = rows.Scan(&member.ID, &member.Name, &member.Email); err != nil {
			return nil, err
		}
		members = append(members, member)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return members, nil
}

func (r *ProjectRepository) AddMember(ctx context.Context, projectID, userID uint64, addedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO project_members (project_id, user_id, created_at) VALUES (?, ?, ?)`,
		projectID, userID, addedAt,
	)
	return translateMySQLError(err)
}

// RemoveMember reports whether a membership row was deleted.
func (r *ProjectRepository) RemoveMember(ctx context.Context, projectID, userID uint64) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM project_members WHERE project_id = ? AND user_id = ?`,
		projectID, userID,
	)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func scanProject(scan rowScanner) (*entity.Project, error) {
	project := &entity.Project{Team: []uint64{}}
	if err := scan(
		&project.ID,
		&project.ProjectName,
		&project.ClientName,
		&project.Description,
		&project.ManagerID,
		&project.CreatedAt,
		&project.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return project, nil
}
