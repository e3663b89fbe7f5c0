package auth_test

import (
	"context"
	"testing"

	"github.com/vibast-solutions/ms-go-uptask/app/auth"
	"github.com/vibast-solutions/ms-go-uptask/app/entity"
)

func TestIdentityRoundTrip(t *testing.T) {
	ctx := context.Background()
	if _, ok := auth.IdentityFrom(ctx); ok {
		t.Fatalf("expected no identity on empty context")
	}

	user := &entity.User{ID: 4, Name: "Ana", Email: "ana@example.com", PasswordHash: "secret-hash"}
	ctx = auth.WithIdentity(ctx, auth.NewIdentity(user))

	identity, ok := auth.IdentityFrom(ctx)
	if !ok || identity.UserID != 4 || identity.Email != "ana@example.com" {
		t.Fatalf("unexpected identity: %+v", identity)
	}
}

func TestProjectAndTaskScope(t *testing.T) {
	ctx := context.Background()
	if _, ok := auth.ProjectFrom(ctx); ok {
		t.Fatalf("expected no project on empty context")
	}
	if _, ok := auth.ProjectFrom(auth.WithProject(ctx, nil)); ok {
		t.Fatalf("nil project must not count as resolved")
	}

	ctx = auth.WithProject(ctx, &entity.Project{ID: 12})
	ctx = auth.WithTask(ctx, &entity.Task{ID: 30, ProjectID: 12})

	project, ok := auth.ProjectFrom(ctx)
	if !ok || project.ID != 12 {
		t.Fatalf("unexpected project: %+v", project)
	}
	task, ok := auth.TaskFrom(ctx)
	if !ok || task.ID != 30 {
		t.Fatalf("unexpected task: %+v", task)
	}
}
