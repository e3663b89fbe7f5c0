package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-uptask/app/entity"

	"github.com/sirupsen/logrus"
)

// SessionAccess is the grant a backend service needs before it may resolve
// UpTask session tokens, over HTTP at /internal/sessions/verify or over the
// gRPC SessionService.
const SessionAccess = "uptask"

// MinKeyRotationGrace is the shortest time a rotated key keeps working, so
// callers have a window to roll out the replacement.
const MinKeyRotationGrace = 5 * time.Minute

const (
	internalKeyPrefix   = "uptask_"
	internalKeyLifetime = 100 * 365 * 24 * time.Hour
)

var (
	ErrInvalidInternalAPIKey    = errors.New("invalid or expired internal api key")
	ErrServiceNameRequired      = errors.New("service name is required")
	ErrServiceHasActiveAPIKey   = errors.New("service already has an active api key")
	ErrServiceHasNoActiveAPIKey = errors.New("service has no active api key")
	ErrInvalidRegenerationTTL   = errors.New("invalid regeneration ttl")
	ErrUnknownAccess            = errors.New("unknown internal access")
)

// grantable lists the internal surfaces UpTask serves to other services.
var grantable = []string{SessionAccess}

// InternalAPIKeyRepository stores the keys other backend services use to call
// the session verification endpoints.
type InternalAPIKeyRepository interface {
	Create(ctx context.Context, key *entity.InternalAPIKey) error
	FindActiveByHash(ctx context.Context, keyHash string, now time.Time) (*entity.InternalAPIKey, error)
	FindActiveByServiceName(ctx context.Context, serviceName string, now time.Time) ([]*entity.InternalAPIKey, error)
	Update(ctx context.Context, key *entity.InternalAPIKey) error
}

// InternalAuthService manages the keys of services that verify UpTask
// sessions, from first issue through rotation to revocation.
type InternalAuthService interface {
	ValidateInternalAPIKey(ctx context.Context, apiKey string) (*entity.InternalAPIKey, error)
	GenerateInternalAPIKey(ctx context.Context, serviceName string) (string, error)
	AddInternalAllowedAccess(ctx context.Context, serviceName, access string) error
	DeactivateInternalAPIKeys(ctx context.Context, serviceName string) (int, error)
	RegenerateInternalAPIKey(ctx context.Context, serviceName string, oldKeyTTL time.Duration) (string, error)
}

type internalAuthService struct {
	keys InternalAPIKeyRepository
	now  func() time.Time
}

func NewInternalAuthService(keys InternalAPIKeyRepository) InternalAuthService {
	return &internalAuthService{keys: keys, now: time.Now}
}

// ValidateInternalAPIKey resolves the caller service behind a raw key.
func (s *internalAuthService) ValidateInternalAPIKey(ctx context.Context, apiKey string) (*entity.InternalAPIKey, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, ErrInvalidInternalAPIKey
	}

	key, err := s.keys.FindActiveByHash(ctx, hashInternalAPIKey(apiKey), s.now())
	if err != nil {
		return nil, err
	}
	if key == nil {
		return nil, ErrInvalidInternalAPIKey
	}
	return key, nil
}

// GenerateInternalAPIKey issues the first key of a service. The key carries
// no grants until AddInternalAllowedAccess is run for it.
func (s *internalAuthService) GenerateInternalAPIKey(ctx context.Context, serviceName string) (string, error) {
	serviceName, active, err := s.activeKeys(ctx, serviceName)
	if err != nil {
		return "", err
	}
	if len(active) > 0 {
		return "", ErrServiceHasActiveAPIKey
	}

	rawKey, err := s.issue(ctx, serviceName, []string{})
	if err != nil {
		return "", err
	}

	logrus.WithField("caller_service", serviceName).Info("Internal api key issued")
	return rawKey, nil
}

// AddInternalAllowedAccess grants access to every active key of a service.
// Only surfaces UpTask actually serves can be granted.
func (s *internalAuthService) AddInternalAllowedAccess(ctx context.Context, serviceName, access string) error {
	access = strings.TrimSpace(access)
	if !slices.Contains(grantable, access) {
		return fmt.Errorf("%w: %q", ErrUnknownAccess, access)
	}

	serviceName, active, err := s.requireActiveKeys(ctx, serviceName)
	if err != nil {
		return err
	}

	now := s.now()
	for _, key := range active {
		if key.Allows(access) {
			continue
		}
		key.AllowedAccess = append(key.AllowedAccess, access)
		slices.Sort(key.AllowedAccess)
		key.UpdatedAt = now
		if err = s.keys.Update(ctx, key); err != nil {
			return err
		}
	}

	logrus.WithFields(logrus.Fields{"caller_service": serviceName, "access": access}).Info("Internal access granted")
	return nil
}

// DeactivateInternalAPIKeys revokes every active key of a service at once,
// including keys still inside a rotation grace period.
func (s *internalAuthService) DeactivateInternalAPIKeys(ctx context.Context, serviceName string) (int, error) {
	serviceName, active, err := s.requireActiveKeys(ctx, serviceName)
	if err != nil {
		return 0, err
	}

	now := s.now()
	if err = s.expire(ctx, active, now, now, false); err != nil {
		return 0, err
	}

	logrus.WithFields(logrus.Fields{"caller_service": serviceName, "count": len(active)}).Warn("Internal api keys revoked")
	return len(active), nil
}

// RegenerateInternalAPIKey rotates a service key. The old keys stay valid for
// oldKeyTTL and the new one inherits the union of their grants.
func (s *internalAuthService) RegenerateInternalAPIKey(ctx context.Context, serviceName string, oldKeyTTL time.Duration) (string, error) {
	if oldKeyTTL <= MinKeyRotationGrace {
		return "", ErrInvalidRegenerationTTL
	}

	serviceName, active, err := s.requireActiveKeys(ctx, serviceName)
	if err != nil {
		return "", err
	}

	var grants []string
	for _, key := range active {
		grants = append(grants, key.AllowedAccess...)
	}
	slices.Sort(grants)
	grants = slices.Compact(grants)

	now := s.now()
	if err = s.expire(ctx, active, now, now.Add(oldKeyTTL), true); err != nil {
		return "", err
	}

	rawKey, err := s.issue(ctx, serviceName, grants)
	if err != nil {
		return "", err
	}

	logrus.WithFields(logrus.Fields{
		"caller_service":     serviceName,
		"old_key_expires_at": now.Add(oldKeyTTL).Format(time.RFC3339),
	}).Info("Internal api key rotated")
	return rawKey, nil
}

func (s *internalAuthService) activeKeys(ctx context.Context, serviceName string) (string, []*entity.InternalAPIKey, error) {
	serviceName = strings.TrimSpace(serviceName)
	if serviceName == "" {
		return "", nil, ErrServiceNameRequired
	}

	active, err := s.keys.FindActiveByServiceName(ctx, serviceName, s.now())
	if err != nil {
		return "", nil, err
	}
	return serviceName, active, nil
}

func (s *internalAuthService) requireActiveKeys(ctx context.Context, serviceName string) (string, []*entity.InternalAPIKey, error) {
	serviceName, active, err := s.activeKeys(ctx, serviceName)
	if err != nil {
		return "", nil, err
	}
	if len(active) == 0 {
		return "", nil, ErrServiceHasNoActiveAPIKey
	}
	return serviceName, active, nil
}

func (s *internalAuthService) expire(ctx context.Context, keys []*entity.InternalAPIKey, now, at time.Time, stayActive bool) error {
	for _, key := range keys {
		key.IsActive = stayActive
		key.ExpiresAt = at
		key.UpdatedAt = now
		if err := s.keys.Update(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

func (s *internalAuthService) issue(ctx context.Context, serviceName string, grants []string) (string, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return "", err
	}
	rawKey := internalKeyPrefix + hex.EncodeToString(secret)

	now := s.now()
	key := &entity.InternalAPIKey{
		ServiceName:   serviceName,
		KeyHash:       hashInternalAPIKey(rawKey),
		AllowedAccess: grants,
		IsActive:      true,
		ExpiresAt:     now.Add(internalKeyLifetime),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.keys.Create(ctx, key); err != nil {
		return "", err
	}
	return rawKey, nil
}

func hashInternalAPIKey(rawKey string) string {
	sum := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(sum[:])
}
