package entity

import "time"

// InternalAPIKey authenticates another backend service calling the internal session API.
type InternalAPIKey struct {
	ID            uint64
	ServiceName   string
	KeyHash       string
	AllowedAccess []string
	IsActive      bool
	ExpiresAt     time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Allows reports whether the key was granted access to the named target.
func (k *InternalAPIKey) Allows(target string) bool {
	for _, allowed := range k.AllowedAccess {
		if allowed == target {
			return true
		}
	}
	return false
}
