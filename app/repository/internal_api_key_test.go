package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-uptask/app/entity"
	"github.com/vibast-solutions/ms-go-uptask/app/repository"

	"github.com/DATA-DOG/go-sqlmock"
)

const (
	findInternalKeyByHashQuery = `(?s)FROM internal_api_keys\s+WHERE key_hash = \? AND is_active = 1 AND expires_at > \? ORDER BY id DESC LIMIT 1`
	updateInternalKeyQuery     = `(?s)UPDATE internal_api_keys SET\s+allowed_access_json = \?,\s+is_active = \?,\s+expires_at = \?,\s+updated_at = \?\s+WHERE id = \?`
)

var internalAPIKeyColumns = []string{
	"id",
	"service_name",
	"key_hash",
	"allowed_access_json",
	"is_active",
	"expires_at",
	"created_at",
	"updated_at",
}

func TestInternalAPIKeyRepository_FindActiveByHash(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewInternalAPIKeyRepository(db)
	now := time.Now()

	mock.ExpectQuery(findInternalKeyByHashQuery).
		WithArgs("hash", now).
		WillReturnRows(sqlmock.NewRows(internalAPIKeyColumns).
			AddRow(uint64(1), "gateway", "hash", `["uptask"]`, true, now.Add(time.Hour), now, now))

	key, err := repo.FindActiveByHash(context.Background(), "hash", now)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if key == nil || key.ServiceName != "gateway" || !key.Allows("uptask") || key.Allows("billing") {
		t.Fatalf("unexpected key: %+v", key)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestInternalAPIKeyRepository_UpdateEncodesEmptyGrants(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewInternalAPIKeyRepository(db)
	now := time.Now()
	key := &entity.InternalAPIKey{ID: 3, IsActive: false, ExpiresAt: now, UpdatedAt: now}

	mock.ExpectExec(updateInternalKeyQuery).
		WithArgs("[]", false, now, now, uint64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Update(context.Background(), key); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
