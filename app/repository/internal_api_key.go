package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/vibast-solutions/ms-go-uptask/app/entity"
)

const internalAPIKeySelect = `
	SELECT id, service_name, key_hash, allowed_access_json, is_active, expires_at, created_at, updated_at
	FROM internal_api_keys
`

type InternalAPIKeyRepository struct {
	db DBTX
}

func NewInternalAPIKeyRepository(db DBTX) *InternalAPIKeyRepository {
	return &InternalAPIKeyRepository{db: db}
}

func (r *InternalAPIKeyRepository) Create(ctx context.Context, key *entity.InternalAPIKey) error {
	allowedAccess, err := encodeAllowedAccess(key.AllowedAccess)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO internal_api_keys (service_name, key_hash, allowed_access_json, is_active, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		key.ServiceName,
		key.KeyHash,
		allowedAccess,
		key.IsActive,
		key.ExpiresAt,
		key.CreatedAt,
		key.UpdatedAt,
	)
	if err != nil {
		return translateMySQLError(err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	key.ID = uint64(id)
	return nil
}

// FindActiveByHash returns the newest active key with the hash that is still valid at now.
func (r *InternalAPIKeyRepository) FindActiveByHash(ctx context.Context, keyHash string, now time.Time) (*entity.InternalAPIKey, error) {
	row := r.db.QueryRowContext(ctx,
		internalAPIKeySelect+` WHERE key_hash = ? AND is_active = 1 AND expires_at > ? ORDER BY id DESC LIMIT 1`,
		keyHash, now,
	)
	key, err := scanInternalAPIKey(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return key, nil
}

func (r *InternalAPIKeyRepository) FindActiveByServiceName(ctx context.Context, serviceName string, now time.Time) ([]*entity.InternalAPIKey, error) {
	rows, err := r.db.QueryContext(ctx,
		internalAPIKeySelect+` WHERE service_name = ? AND is_active = 1 AND expires_at > ? ORDER BY id DESC`,
		serviceName, now,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make([]*entity.InternalAPIKey, 0)
	for rows.Next() {
		key, err := scanInternalAPIKey(rows.Scan)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return keys, nil
}

// Update persists the mutable fields of a key: grants, activity and expiry.
func (r *InternalAPIKeyRepository) Update(ctx context.Context, key *entity.InternalAPIKey) error {
	allowedAccess, err := encodeAllowedAccess(key.AllowedAccess)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		UPDATE internal_api_keys SET
			allowed_access_json = ?,
			is_active = ?,
			expires_at = ?,
			updated_at = ?
		WHERE id = ?
	`,
		allowedAccess,
		key.IsActive,
		key.ExpiresAt,
		key.UpdatedAt,
		key.ID,
	)
	return err
}

func encodeAllowedAccess(allowed []string) (string, error) {
	if allowed == nil {
		allowed = []string{}
	}
	encoded, err := json.Marshal(allowed)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

func scanInternalAPIKey(scan rowScanner) (*entity.InternalAPIKey, error) {
	key := &entity.InternalAPIKey{}
	var allowedAccess string
	if err := scan(
		&key.ID,
		&key.ServiceName,
		&key.KeyHash,
		&allowedAccess,
		&key.IsActive,
		&key.ExpiresAt,
		&key.CreatedAt,
		&key.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(allowedAccess), &key.AllowedAccess); err != nil {
		return nil, err
	}
	return key, nil
}
