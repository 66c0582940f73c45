package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/edvin/integrations/internal/model"
	"github.com/edvin/integrations/internal/platform"
)

type APIKeyService struct {
	db DB
}

func NewAPIKeyService(db DB) *APIKeyService {
	return &APIKeyService{db: db}
}

// Create mints a new API key for a tenant. The raw key is returned exactly
// once; only its hash is persisted.
func (s *APIKeyService) Create(ctx context.Context, tenantID, name string) (*model.APIKey, string, error) {
	rawKey := platform.NewSecret("ik_")
	hash := sha256.Sum256([]byte(rawKey))

	key := &model.APIKey{
		ID:       platform.NewID(),
		TenantID: tenantID,
		Name:     name,
		KeyHash:  hex.EncodeToString(hash[:]),
	}

	err := s.db.QueryRow(ctx,
		`INSERT INTO api_keys (id, tenant_id, name, key_hash)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at`,
		key.ID, key.TenantID, key.Name, key.KeyHash,
	).Scan(&key.CreatedAt)
	if err != nil {
		return nil, "", fmt.Errorf("insert api key: %w", err)
	}

	return key, rawKey, nil
}

// ListByTenant returns a tenant's keys, newest first. Revoked keys are
// included; the hash never is.
func (s *APIKeyService) ListByTenant(ctx context.Context, tenantID string) ([]model.APIKey, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, tenant_id, name, created_at, revoked_at
		 FROM api_keys WHERE tenant_id = $1
		 ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var keys []model.APIKey
	for rows.Next() {
		var k model.APIKey
		var revokedAt *time.Time
		if err := rows.Scan(&k.ID, &k.TenantID, &k.Name, &k.CreatedAt, &revokedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		k.RevokedAt = revokedAt
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Revoke disables a key. Revocation takes effect on the next request.
func (s *APIKeyService) Revoke(ctx context.Context, tenantID, id string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE api_keys SET revoked_at = now()
		 WHERE id = $1 AND tenant_id = $2 AND revoked_at IS NULL`, id, tenantID)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
