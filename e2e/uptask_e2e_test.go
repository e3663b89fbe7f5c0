//go:build e2e
// +build e2e

package e2e

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-uptask/app/entity"
	uptaskgrpc "github.com/vibast-solutions/ms-go-uptask/app/grpc"
	"github.com/vibast-solutions/ms-go-uptask/app/repository"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

const (
	defaultHTTPBase  = "http://localhost:8080"
	defaultGRPCAddr  = "localhost:9090"
	defaultRedisAddr = "localhost:6379"
	password         = "Secret123!"
)

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// stack reaches the running API plus its stores, so the test can read the
// codes that would otherwise only arrive by email.
type stack struct {
	baseURL string
	users   *repository.UserRepository
	tokens  *repository.TokenRepository
}

func newStack(t *testing.T) *stack {
	t.Helper()

	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		t.Skip("MYSQL_DSN not set")
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Fatalf("open mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	rdb := redis.NewClient(&redis.Options{Addr: getenv("REDIS_ADDR", defaultRedisAddr)})
	t.Cleanup(func() { _ = rdb.Close() })

	s := &stack{
		baseURL: getenv("UPTASK_HTTP_URL", defaultHTTPBase),
		users:   repository.NewUserRepository(db),
		tokens:  repository.NewTokenRepository(rdb, getenv("REDIS_KEY_PREFIX", "uptask"), 10*time.Minute),
	}
	if err = waitForHTTP(s.baseURL, 30*time.Second); err != nil {
		t.Fatalf("api not ready: %v", err)
	}
	return s
}

func (s *stack) code(t *testing.T, email string, purpose entity.TokenPurpose) string {
	t.Helper()
	ctx := context.Background()

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil || user == nil {
		t.Fatalf("user %s not found: %v", email, err)
	}
	token, err := s.tokens.FindByUser(ctx, user.ID, purpose)
	if err != nil || token == nil {
		t.Fatalf("no %s code for %s: %v", purpose, email, err)
	}
	return token.Token
}

type client struct {
	baseURL string
	http    *http.Client
	csrf    string
}

func newClient(t *testing.T, baseURL string) *client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &client{baseURL: baseURL, http: &http.Client{Jar: jar, Timeout: 10 * time.Second}}
}

func (c *client) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.csrf != "" {
		req.Header.Set("X-CSRF-Token", c.csrf)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	c.captureCSRF()

	raw, _ := io.ReadAll(resp.Body)
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		_ = json.Unmarshal(raw, &out)
	}
	return resp.StatusCode, out
}

func (c *client) captureCSRF() {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return
	}
	for _, cookie := range c.http.Jar.Cookies(u) {
		if cookie.Name == "_csrf" {
			c.csrf = cookie.Value
		}
	}
}

func (c *client) sessionCookie() string {
	u, _ := url.Parse(c.baseURL)
	for _, cookie := range c.http.Jar.Cookies(u) {
		if cookie.Name == getenv("SESSION_COOKIE_NAME", "token") {
			return cookie.Value
		}
	}
	return ""
}

func waitForHTTP(baseURL string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	probe := &http.Client{Timeout: 2 * time.Second}
	for time.Now().Before(deadline) {
		resp, err := probe.Get(baseURL + "/api/auth/user")
		if err == nil {
			resp.Body.Close()
			return nil
		}
		time.Sleep(500 * time.Millisecond)
	}
	return fmt.Errorf("timeout waiting for %s", baseURL)
}

func expectStatus(t *testing.T, step string, got, want int, body map[string]any) {
	t.Helper()
	if got != want {
		t.Fatalf("%s: expected %d, got %d body=%v", step, want, got, body)
	}
}

// signUp registers and confirms a fresh account, returning a logged-in client.
func signUp(t *testing.T, s *stack, name string) (*client, string) {
	t.Helper()

	email := fmt.Sprintf("%s-%d@e2e.uptask.local", name, time.Now().UnixNano())
	c := newClient(t, s.baseURL)

	status, body := c.do(t, http.MethodPost, "/api/auth/create-account", map[string]string{
		"name": name, "email": email, "password": password, "password_confirmation": password,
	})
	expectStatus(t, "register", status, http.StatusCreated, body)

	status, body = c.do(t, http.MethodPost, "/api/auth/confirm-account", map[string]string{
		"token": s.code(t, email, entity.TokenPurposeConfirmation),
	})
	expectStatus(t, "confirm", status, http.StatusOK, body)

	status, body = c.do(t, http.MethodPost, "/api/auth/login", map[string]any{"email": email, "password": password})
	expectStatus(t, "login", status, http.StatusOK, body)

	status, body = c.do(t, http.MethodGet, "/api/auth/user", nil)
	expectStatus(t, "current user", status, http.StatusOK, body)
	return c, email
}

func TestUpTaskE2E_AccountLifecycle(t *testing.T) {
	s := newStack(t)
	c, email := signUp(t, s, "ana")

	status, body := c.do(t, http.MethodPost, "/api/auth/check-password", map[string]string{"password": password})
	expectStatus(t, "check password", status, http.StatusOK, body)

	status, body = c.do(t, http.MethodPost, "/api/auth/logout", nil)
	expectStatus(t, "logout", status, http.StatusOK, body)
	status, body = c.do(t, http.MethodGet, "/api/auth/user", nil)
	expectStatus(t, "user after logout", status, http.StatusUnauthorized, body)

	anon := newClient(t, s.baseURL)
	status, body = anon.do(t, http.MethodPost, "/api/auth/forgot-password", map[string]string{"email": email})
	expectStatus(t, "forgot password", status, http.StatusOK, body)
	status, body = anon.do(t, http.MethodPost, "/api/auth/forgot-password", map[string]string{"email": email})
	expectStatus(t, "second forgot password", status, http.StatusTooManyRequests, body)

	code := s.code(t, email, entity.TokenPurposeReset)
	status, body = anon.do(t, http.MethodPost, "/api/auth/validate-token", map[string]string{"token": code})
	expectStatus(t, "validate token", status, http.StatusOK, body)

	const newPassword = "Another456!"
	reset := map[string]string{"password": newPassword, "password_confirmation": newPassword}
	status, body = anon.do(t, http.MethodPost, "/api/auth/update-password/"+code, reset)
	expectStatus(t, "reset", status, http.StatusOK, body)
	status, body = anon.do(t, http.MethodPost, "/api/auth/update-password/"+code, reset)
	expectStatus(t, "reset replay", status, http.StatusNotFound, body)

	status, body = anon.do(t, http.MethodPost, "/api/auth/login", map[string]any{"email": email, "password": password})
	expectStatus(t, "login with old password", status, http.StatusUnauthorized, body)
	status, body = anon.do(t, http.MethodPost, "/api/auth/login", map[string]any{"email": email, "password": newPassword})
	expectStatus(t, "login with new password", status, http.StatusOK, body)
}

func TestUpTaskE2E_ProjectCollaboration(t *testing.T) {
	s := newStack(t)
	manager, _ := signUp(t, s, "manager")
	collaborator, collaboratorEmail := signUp(t, s, "collaborator")

	status, body := manager.do(t, http.MethodPost, "/api/projects", map[string]string{
		"project_name": "Website", "client_name": "Acme", "description": "Landing page",
	})
	expectStatus(t, "create project", status, http.StatusCreated, body)
	projectPath := fmt.Sprintf("/api/projects/%v", body["id"])

	status, body = collaborator.do(t, http.MethodGet, projectPath, nil)
	expectStatus(t, "outsider reads project", status, http.StatusForbidden, body)

	status, body = manager.do(t, http.MethodPost, projectPath+"/team/find", map[string]string{"email": collaboratorEmail})
	expectStatus(t, "find member", status, http.StatusOK, body)
	status, body = manager.do(t, http.MethodPost, projectPath+"/team", map[string]any{"id": body["id"]})
	expectStatus(t, "add member", status, http.StatusOK, body)

	status, body = manager.do(t, http.MethodPost, projectPath+"/tasks", map[string]string{
		"name": "Wireframes", "description": "First draft",
	})
	expectStatus(t, "create task", status, http.StatusCreated, body)
	taskPath := fmt.Sprintf("%s/tasks/%v", projectPath, body["id"])

	status, body = collaborator.do(t, http.MethodPatch, taskPath+"/status", map[string]string{"status": "inProgress"})
	expectStatus(t, "member updates status", status, http.StatusOK, body)
	status, body = collaborator.do(t, http.MethodPut, taskPath, map[string]string{"name": "x", "description": "y"})
	expectStatus(t, "member edits task", status, http.StatusForbidden, body)

	status, body = collaborator.do(t, http.MethodPost, taskPath+"/notes", map[string]string{"content": "On it"})
	expectStatus(t, "member adds note", status, http.StatusCreated, body)
	notePath := fmt.Sprintf("%s/notes/%v", taskPath, body["id"])

	status, body = manager.do(t, http.MethodDelete, notePath, nil)
	expectStatus(t, "manager deletes someone else's note", status, http.StatusUnauthorized, body)
	status, body = collaborator.do(t, http.MethodDelete, notePath, nil)
	expectStatus(t, "author deletes note", status, http.StatusOK, body)

	status, body = manager.do(t, http.MethodDelete, projectPath, nil)
	expectStatus(t, "delete project", status, http.StatusOK, body)
	status, body = manager.do(t, http.MethodGet, projectPath, nil)
	expectStatus(t, "read deleted project", status, http.StatusNotFound, body)
}

func TestUpTaskE2E_GRPCSessionVerify(t *testing.T) {
	apiKey := os.Getenv("UPTASK_INTERNAL_API_KEY")
	if apiKey == "" {
		t.Skip("UPTASK_INTERNAL_API_KEY not set")
	}
	s := newStack(t)
	c, email := signUp(t, s, "grpc")

	conn, err := grpc.NewClient(getenv("UPTASK_GRPC_ADDR", defaultGRPCAddr), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial grpc: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ctx = metadata.AppendToOutgoingContext(ctx, "x-api-key", apiKey)

	result, err := uptaskgrpc.NewSessionClient(conn).Verify(ctx, c.sessionCookie())
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	fields := result.AsMap()
	if fields["valid"] != true || fields["email"] != email {
		t.Fatalf("unexpected verify result: %v", fields)
	}
}
