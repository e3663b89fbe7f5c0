package controller_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/vibast-solutions/ms-go-uptask/app/auth"
	"github.com/vibast-solutions/ms-go-uptask/app/controller"
	"github.com/vibast-solutions/ms-go-uptask/app/entity"
	"github.com/vibast-solutions/ms-go-uptask/app/service"
	"github.com/vibast-solutions/ms-go-uptask/app/types"
)

type fakeProjectService struct {
	created   *types.ProjectRequest
	managerID uint64
	deleted   bool
	err       error
}

func (f *fakeProjectService) Create(_ context.Context, managerID uint64, req *types.ProjectRequest) (*entity.Project, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created, f.managerID = req, managerID
	return &entity.Project{ID: 1, ProjectName: req.ProjectName, ManagerID: managerID, Team: []uint64{}}, nil
}

func (f *fakeProjectService) List(_ context.Context, userID uint64) ([]*entity.Project, error) {
	return []*entity.Project{{ID: 1, ManagerID: userID}}, f.err
}

func (f *fakeProjectService) Get(_ context.Context, id uint64) (*entity.Project, error) {
	return nil, service.ErrProjectNotFound
}

func (f *fakeProjectService) WithTasks(_ context.Context, project *entity.Project) (*entity.Project, error) {
	if f.err != nil {
		return nil, f.err
	}
	project.Tasks = []*entity.Task{{ID: 5, ProjectID: project.ID}}
	return project, nil
}

func (f *fakeProjectService) Update(_ context.Context, project *entity.Project, req *types.ProjectRequest) (*entity.Project, error) {
	project.ProjectName = req.ProjectName
	return project, f.err
}

func (f *fakeProjectService) Delete(_ context.Context, _ *entity.Project) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = true
	return nil
}

func TestProjectController_Create(t *testing.T) {
	svc := &fakeProjectService{}
	c := controller.NewProjectController(svc)

	req, rec := newJSONRequest(t, http.MethodPost, "/api/projects", map[string]string{
		"project_name": " Website ",
		"client_name":  "Acme",
		"description":  "Landing page",
	})
	if err := c.Create(newContext(req, rec, &auth.Identity{UserID: 9}, nil, nil)); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d body: %s", rec.Code, rec.Body.String())
	}
	if svc.managerID != 9 || svc.created.ProjectName != "Website" {
		t.Fatalf("unexpected create call: %d %+v", svc.managerID, svc.created)
	}
	if body := decodeBody(t, rec); body["manager"] != float64(9) {
		t.Fatalf("expected manager 9 in body, got %v", body)
	}
}

func TestProjectController_CreateValidation(t *testing.T) {
	c := controller.NewProjectController(&fakeProjectService{})

	req, rec := newJSONRequest(t, http.MethodPost, "/api/projects", map[string]string{"project_name": "Website"})
	if err := c.Create(newContext(req, rec, &auth.Identity{UserID: 9}, nil, nil)); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}

	fields, _ := decodeBody(t, rec)["fields"].(map[string]any)
	if _, ok := fields["client_name"]; !ok {
		t.Fatalf("expected client_name error, got %s", rec.Body.String())
	}
}

func TestProjectController_GetIncludesTasks(t *testing.T) {
	c := controller.NewProjectController(&fakeProjectService{})
	project := &entity.Project{ID: 1, ManagerID: 9}

	req, rec := newJSONRequest(t, http.MethodGet, "/api/projects/1", nil)
	if err := c.Get(newContext(req, rec, &auth.Identity{UserID: 9}, project, nil)); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if tasks, _ := decodeBody(t, rec)["tasks"].([]any); len(tasks) != 1 {
		t.Fatalf("expected one task, got %s", rec.Body.String())
	}
}

func TestProjectController_DeleteHidesInternalErrors(t *testing.T) {
	c := controller.NewProjectController(&fakeProjectService{err: errors.New("deadlock")})
	project := &entity.Project{ID: 1, ManagerID: 9}

	req, rec := newJSONRequest(t, http.MethodDelete, "/api/projects/1", nil)
	if err := c.Delete(newContext(req, rec, &auth.Identity{UserID: 9}, project, nil)); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rec.Code)
	}
	if msg := decodeBody(t, rec)["error"]; msg != "internal server error" {
		t.Fatalf("internal error leaked: %v", msg)
	}
}

func TestProjectController_RequiresResolvedProject(t *testing.T) {
	c := controller.NewProjectController(&fakeProjectService{})

	req, rec := newJSONRequest(t, http.MethodPut, "/api/projects/1", map[string]string{})
	if err := c.Update(newContext(req, rec, &auth.Identity{UserID: 9}, nil, nil)); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rec.Code)
	}
}
