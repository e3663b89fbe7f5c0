package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/vibast-solutions/ms-go-uptask/app/entity"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrActiveTokenExists means the user already holds an unexpired token for the purpose.
	ErrActiveTokenExists = errors.New("active token already exists")
	// ErrTokenCollision means the generated code is already in use by another user.
	ErrTokenCollision = errors.New("token code already in use")
)

// TokenRepository keeps confirmation and reset codes in Redis. Every record
// lives under two keys sharing the same TTL: the code itself and a per user
// index used to enforce one live code per user and purpose.
type TokenRepository struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenRepository(rdb redis.UniversalClient, prefix string, ttl time.Duration) *TokenRepository {
	return &TokenRepository{
		rdb:    rdb,
		prefix: prefix,
		ttl:    ttl,
		now:    time.Now,
	}
}

type tokenRecord struct {
	UserID    uint64              `json:"user_id"`
	Purpose   entity.TokenPurpose `json:"purpose"`
	CreatedAt time.Time           `json:"created_at"`
}

// Create stores the code and fills in its timestamps. It fails with
// ErrActiveTokenExists or ErrTokenCollision without overwriting anything.
func (r *TokenRepository) Create(ctx context.Context, token *entity.Token) error {
	now := r.now().UTC()
	payload, err := json.Marshal(tokenRecord{
		UserID:    token.UserID,
		Purpose:   token.Purpose,
		CreatedAt: now,
	})
	if err != nil {
		return err
	}

	userKey := r.userKey(token.UserID, token.Purpose)
	reserved, err := r.rdb.SetNX(ctx, userKey, token.Token, r.ttl).Result()
	if err != nil {
		return err
	}
	if !reserved {
		return ErrActiveTokenExists
	}

	stored, err := r.rdb.SetNX(ctx, r.tokenKey(token.Token), payload, r.ttl).Result()
	if err != nil || !stored {
		_ = r.rdb.Del(ctx, userKey).Err()
		if err != nil {
			return err
		}
		return ErrTokenCollision
	}

	token.CreatedAt = now
	token.ExpiresAt = now.Add(r.ttl)
	return nil
}

func (r *TokenRepository) FindByToken(ctx context.Context, code string) (*entity.Token, error) {
	raw, err := r.rdb.Get(ctx, r.tokenKey(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r.decode(code, raw)
}

func (r *TokenRepository) FindByUser(ctx context.Context, userID uint64, purpose entity.TokenPurpose) (*entity.Token, error) {
	code, err := r.rdb.Get(ctx, r.userKey(userID, purpose)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	token, err := r.FindByToken(ctx, code)
	if err != nil || token == nil {
		return nil, err
	}
	if token.UserID != userID || token.Purpose != purpose {
		return nil, nil
	}
	return token, nil
}

// Claim atomically reads and deletes a code of the given purpose. A nil token
// with a nil error means the code does not exist, has expired, belongs to a
// different purpose or was claimed concurrently.
func (r *TokenRepository) Claim(ctx context.Context, code string, purpose entity.TokenPurpose) (*entity.Token, error) {
	key := r.tokenKey(code)
	var claimed *entity.Token

	err := r.rdb.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}

		token, err := r.decode(code, raw)
		if err != nil {
			return err
		}
		if token.Purpose != purpose {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.Del(ctx, r.userKey(token.UserID, token.Purpose))
			return nil
		})
		if err != nil {
			return err
		}

		claimed = token
		return nil
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return claimed, nil
}

// Delete removes a code and its user index. Used to roll back an issue whose
// notification could not be sent.
func (r *TokenRepository) Delete(ctx context.Context, token *entity.Token) error {
	return r.rdb.Del(ctx, r.tokenKey(token.Token), r.userKey(token.UserID, token.Purpose)).Err()
}

func (r *TokenRepository) decode(code string, raw []byte) (*entity.Token, error) {
	var record tokenRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("decode token record: %w", err)
	}

	return &entity.Token{
		Token:     code,
		UserID:    record.UserID,
		Purpose:   record.Purpose,
		CreatedAt: record.CreatedAt,
		ExpiresAt: record.CreatedAt.Add(r.ttl),
	}, nil
}

func (r *TokenRepository) tokenKey(code string) string {
	return r.prefix + ":token:" + code
}

func (r *TokenRepository) userKey(userID uint64, purpose entity.TokenPurpose) string {
	return r.prefix + ":user:" + strconv.FormatUint(userID, 10) + ":" + string(purpose)
}
