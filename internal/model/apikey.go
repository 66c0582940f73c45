package model

import "time"

// APIKey authenticates API callers. The raw key is shown once at creation;
// only its SHA-256 hash is stored. Each key belongs to exactly one tenant.
type APIKey struct {
	ID        string     `json:"id" db:"id"`
	TenantID  string     `json:"tenant_id" db:"tenant_id"`
	Name      string     `json:"name" db:"name"`
	KeyHash   string     `json:"-" db:"key_hash"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty" db:"revoked_at"`
}
