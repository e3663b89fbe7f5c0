// Package auth carries the authenticated identity and the resolved project
// scope through a request context.
package auth

import (
	"context"

	"github.com/vibast-solutions/ms-go-uptask/app/entity"
)

type identityKey struct{}
type projectKey struct{}
type taskKey struct{}

// Identity is the authenticated caller. It never carries the password hash.
type Identity struct {
	UserID uint64 `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

func NewIdentity(user *entity.User) Identity {
	return Identity{UserID: user.ID, Name: user.Name, Email: user.Email}
}

func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

func IdentityFrom(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(Identity)
	return identity, ok
}

func WithProject(ctx context.Context, project *entity.Project) context.Context {
	return context.WithValue(ctx, projectKey{}, project)
}

func ProjectFrom(ctx context.Context) (*entity.Project, bool) {
	project, ok := ctx.Value(projectKey{}).(*entity.Project)
	return project, ok && project != nil
}

func WithTask(ctx context.Context, task *entity.Task) context.Context {
	return context.WithValue(ctx, taskKey{}, task)
}

func TaskFrom(ctx context.Context) (*entity.Task, bool) {
	task, ok := ctx.Value(taskKey{}).(*entity.Task)
	return task, ok && task != nil
}
