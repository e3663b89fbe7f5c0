package entity

import "time"

type TaskStatus string

const (
	TaskStatusPending     TaskStatus = "pending"
	TaskStatusOnHold      TaskStatus = "onHold"
	TaskStatusInProgress  TaskStatus = "inProgress"
	TaskStatusUnderReview TaskStatus = "underReview"
	TaskStatusCompleted   TaskStatus = "completed"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusOnHold, TaskStatusInProgress, TaskStatusUnderReview, TaskStatusCompleted:
		return true
	}
	return false
}

type Task struct {
	ID          uint64              `json:"id"`
	ProjectID   uint64              `json:"project"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Status      TaskStatus          `json:"status"`
	CompletedBy []*TaskStatusChange `json:"completed_by,omitempty"`
	Notes       []*Note             `json:"notes,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// TaskStatusChange records who moved a task into a status.
type TaskStatusChange struct {
	ID        uint64      `json:"id"`
	TaskID    uint64      `json:"-"`
	User      *PublicUser `json:"user"`
	Status    TaskStatus  `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
}
