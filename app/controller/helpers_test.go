package controller_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-uptask/app/auth"
	"github.com/vibast-solutions/ms-go-uptask/app/controller"
	"github.com/vibast-solutions/ms-go-uptask/app/entity"
	"github.com/vibast-solutions/ms-go-uptask/app/mailer"
	"github.com/vibast-solutions/ms-go-uptask/app/repository"
	"github.com/vibast-solutions/ms-go-uptask/app/service"
	"github.com/vibast-solutions/ms-go-uptask/config"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

var userColumns = []string{
	"id",
	"name",
	"email",
	"password_hash",
	"is_confirmed",
	"created_at",
	"updated_at",
}

const (
	findUserByEmailQuery = `(?s)SELECT id, name, email, password_hash, is_confirmed, created_at, updated_at FROM users WHERE email = \?`
	findUserByIDQuery    = `(?s)SELECT id, name, email, password_hash, is_confirmed, created_at, updated_at FROM users WHERE id = \?`
	insertUserQuery      = `(?s)INSERT INTO users \(name, email, password_hash, is_confirmed, created_at, updated_at\)\s+VALUES \(\?, \?, \?, \?, \?, \?\)`
	updateUserQuery      = `(?s)UPDATE users SET\s+name = \?,\s+email = \?,\s+password_hash = \?,\s+is_confirmed = \?,\s+updated_at = \?\s+WHERE id = \?`
)

type recordingSender struct {
	mu       sync.Mutex
	messages []mailer.Message
}

func (s *recordingSender) Send(_ context.Context, msg mailer.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = append(s.messages, msg)
	return nil
}

func (s *recordingSender) sent() []mailer.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]mailer.Message(nil), s.messages...)
}

type authFixture struct {
	controller *controller.UserAuthController
	mock       sqlmock.Sqlmock
	store      *repository.TokenRepository
	sender     *recordingSender
	sessions   *service.SessionIssuer
}

func newAuthFixture(t *testing.T, production bool) *authFixture {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := &config.Config{
		JWT: config.JWTConfig{
			Secret:        "test-secret",
			SessionTTL:    time.Hour,
			RememberMeTTL: 180 * 24 * time.Hour,
		},
		Tokens: config.TokenConfig{TTL: 10 * time.Minute},
		Password: config.PasswordConfig{
			Policy:     config.PasswordPolicy{MinLength: 8},
			BcryptCost: bcrypt.MinCost,
		},
		Cookie: config.CookieConfig{Name: "token"},
	}

	store := repository.NewTokenRepository(rdb, "test", cfg.Tokens.TTL)
	sender := &recordingSender{}
	sessions := service.NewSessionIssuer(cfg.JWT.Secret)
	svc := service.NewUserAuthService(db, repository.NewUserRepository(db), service.NewTokenIssuer(store, sender), sessions, cfg)

	return &authFixture{
		controller: controller.NewUserAuthController(svc, cfg.Cookie, production),
		mock:       mock,
		store:      store,
		sender:     sender,
		sessions:   sessions,
	}
}

func (f *authFixture) verify(t *testing.T) {
	t.Helper()

	if err := f.mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func hashFor(t *testing.T, password string) string {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	return string(hash)
}

func userRow(id uint64, name, email, hash string, confirmed bool) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(userColumns).AddRow(id, name, email, hash, confirmed, now, now)
}

func newJSONRequest(t *testing.T, method, path string, body any) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()

	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req, httptest.NewRecorder()
}

// newContext builds an echo context carrying whatever the auth and project
// middlewares would have bound for the request.
func newContext(req *http.Request, rec *httptest.ResponseRecorder, identity *auth.Identity, project *entity.Project, task *entity.Task) echo.Context {
	ctx := req.Context()
	if identity != nil {
		ctx = auth.WithIdentity(ctx, *identity)
	}
	if project != nil {
		ctx = auth.WithProject(ctx, project)
	}
	if task != nil {
		ctx = auth.WithTask(ctx, task)
	}
	return echo.New().NewContext(req.WithContext(ctx), rec)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response json: %v (%s)", err, rec.Body.String())
	}
	return body
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}
