package service_test

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"sync"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-uptask/app/mailer"
	"github.com/vibast-solutions/ms-go-uptask/app/repository"
	"github.com/vibast-solutions/ms-go-uptask/app/service"
	"github.com/vibast-solutions/ms-go-uptask/config"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
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
	deleteUserQuery      = `DELETE FROM users WHERE id = \?`
	updateUserQuery      = `(?s)UPDATE users SET\s+name = \?,\s+email = \?,\s+password_hash = \?,\s+is_confirmed = \?,\s+updated_at = \?\s+WHERE id = \?`
)

const tokenTTL = 10 * time.Minute

type recordingSender struct {
	mu       sync.Mutex
	err      error
	messages []mailer.Message
}

func (s *recordingSender) Send(_ context.Context, msg mailer.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}
	s.messages = append(s.messages, msg)
	return nil
}

func (s *recordingSender) sent() []mailer.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]mailer.Message(nil), s.messages...)
}

// bcryptOf matches a password_hash argument produced from password.
type bcryptOf string

func (b bcryptOf) Match(v driver.Value) bool {
	hash, ok := v.(string)
	return ok && bcrypt.CompareHashAndPassword([]byte(hash), []byte(b)) == nil
}

func testConfig() *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{
			Secret:        "test-secret",
			SessionTTL:    time.Hour,
			RememberMeTTL: 180 * 24 * time.Hour,
		},
		Tokens: config.TokenConfig{TTL: tokenTTL},
		Password: config.PasswordConfig{
			Policy:     config.PasswordPolicy{MinLength: 8},
			BcryptCost: bcrypt.MinCost,
		},
	}
}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return db, mock
}

func newTokenStore(t *testing.T) (*repository.TokenRepository, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return repository.NewTokenRepository(rdb, "test", tokenTTL), mr
}

func hashFor(t *testing.T, password string) string {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	return string(hash)
}

type authFixture struct {
	svc      service.UserAuthService
	mock     sqlmock.Sqlmock
	store    *repository.TokenRepository
	redis    *miniredis.Miniredis
	sender   *recordingSender
	sessions *service.SessionIssuer
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	db, mock := newMockDB(t)
	store, mr := newTokenStore(t)
	sender := &recordingSender{}
	cfg := testConfig()
	sessions := service.NewSessionIssuer(cfg.JWT.Secret)

	svc := service.NewUserAuthService(
		db,
		repository.NewUserRepository(db),
		service.NewTokenIssuer(store, sender),
		sessions,
		cfg,
	)

	return &authFixture{
		svc:      svc,
		mock:     mock,
		store:    store,
		redis:    mr,
		sender:   sender,
		sessions: sessions,
	}
}

func (f *authFixture) expectUserByEmail(email string, rows *sqlmock.Rows) {
	f.mock.ExpectQuery(findUserByEmailQuery).WithArgs(email).WillReturnRows(rows)
}

func (f *authFixture) expectUserByID(id uint64, rows *sqlmock.Rows) {
	f.mock.ExpectQuery(findUserByIDQuery).WithArgs(id).WillReturnRows(rows)
}

func (f *authFixture) verify(t *testing.T) {
	t.Helper()

	if err := f.mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func userRow(id uint64, name, email, hash string, confirmed bool) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(userColumns).AddRow(id, name, email, hash, confirmed, now, now)
}

func noUser() *sqlmock.Rows {
	return sqlmock.NewRows(userColumns)
}
