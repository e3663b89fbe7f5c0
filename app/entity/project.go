package entity

import "time"

type Project struct {
	ID          uint64    `json:"id"`
	ProjectName string    `json:"project_name"`
	ClientName  string    `json:"client_name"`
	Description string    `json:"description"`
	ManagerID   uint64    `json:"manager"`
	Team        []uint64  `json:"team"`
	Tasks       []*Task   `json:"tasks,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (p *Project) IsManager(userID uint64) bool {
	return p.ManagerID == userID
}

func (p *Project) HasMember(userID uint64) bool {
	for _, memberID := range p.Team {
		if memberID == userID {
			return true
		}
	}
	return false
}
