package service

import "github.com/vibast-solutions/ms-go-uptask/app/entity"

// Role is the least privilege a project route requires.
type Role int

const (
	RoleMember Role = iota
	RoleManager
)

// Authorize checks userID against the project. The manager satisfies both roles.
func Authorize(project *entity.Project, userID uint64, role Role) error {
	if project.IsManager(userID) {
		return nil
	}
	if role == RoleManager {
		return ErrNotProjectManager
	}
	if project.HasMember(userID) {
		return nil
	}
	return ErrNotProjectMember
}
