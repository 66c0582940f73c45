package core

import (
	"context"
	"fmt"

	"github.com/edvin/integrations/internal/model"
	"github.com/edvin/integrations/internal/platform"
)

// CredentialService manages credential rows. Token payloads pass through
// this service only in encrypted form.
type CredentialService struct {
	db DB
}

func NewCredentialService(db DB) *CredentialService {
	return &CredentialService{db: db}
}

const credentialColumns = `id, tenant_id, project_id, provider, auth_type, encrypted_payload, iv, key_version, account_label, status, expires_at, created_at, updated_at`

func scanCredential(row interface{ Scan(dest ...any) error }) (model.Credential, error) {
	var c model.Credential
	err := row.Scan(&c.ID, &c.TenantID, &c.ProjectID, &c.Provider, &c.AuthType,
		&c.EncryptedPayload, &c.Nonce, &c.KeyVersion, &c.AccountLabel,
		&c.Status, &c.ExpiresAt, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// Upsert stores a credential for (tenant, project, provider), replacing any
// previous one in the same statement. The unique index on the tuple keeps
// at most one row per integration; there is never a moment with zero rows
// during a reconnect.
func (s *CredentialService) Upsert(ctx context.Context, cred *model.Credential) error {
	if cred.ID == "" {
		cred.ID = platform.NewID()
	}
	cred.Status = model.CredentialStatusActive

	err := s.db.QueryRow(ctx,
		`INSERT INTO credentials (id, tenant_id, project_id, provider, auth_type, encrypted_payload, iv, key_version, account_label, status, expires_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
		 ON CONFLICT (tenant_id, project_id, provider) DO UPDATE SET
		   auth_type = EXCLUDED.auth_type,
		   encrypted_payload = EXCLUDED.encrypted_payload,
		   iv = EXCLUDED.iv,
		   key_version = EXCLUDED.key_version,
		   account_label = EXCLUDED.account_label,
		   status = EXCLUDED.status,
		   expires_at = EXCLUDED.expires_at,
		   updated_at = now()
		 RETURNING id, created_at, updated_at`,
		cred.ID, cred.TenantID, cred.ProjectID, cred.Provider, cred.AuthType,
		cred.EncryptedPayload, cred.Nonce, cred.KeyVersion, cred.AccountLabel,
		cred.Status, cred.ExpiresAt,
	).Scan(&cred.ID, &cred.CreatedAt, &cred.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert credential: %w", err)
	}
	return nil
}

// GetByTuple retrieves the credential for a (tenant, project, provider) tuple.
func (s *CredentialService) GetByTuple(ctx context.Context, tenantID, projectID, providerID string) (*model.Credential, error) {
	c, err := scanCredential(s.db.QueryRow(ctx,
		`SELECT `+credentialColumns+` FROM credentials WHERE tenant_id = $1 AND project_id = $2 AND provider = $3`,
		tenantID, projectID, providerID,
	))
	if notFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get credential for %s/%s/%s: %w", tenantID, projectID, providerID, err)
	}
	return &c, nil
}

// Exists reports whether a credential row exists for the tuple.
func (s *CredentialService) Exists(ctx context.Context, tenantID, projectID, providerID string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM credentials WHERE tenant_id = $1 AND project_id = $2 AND provider = $3)`,
		tenantID, projectID, providerID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check credential existence: %w", err)
	}
	return exists, nil
}

// ListByProject returns all credentials for a project, metadata only to the
// caller's eye: payload fields never serialize.
func (s *CredentialService) ListByProject(ctx context.Context, tenantID, projectID string) ([]model.Credential, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+credentialColumns+` FROM credentials WHERE tenant_id = $1 AND project_id = $2 ORDER BY provider`,
		tenantID, projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("list credentials for project %s: %w", projectID, err)
	}
	defer rows.Close()

	var creds []model.Credential
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		creds = append(creds, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credentials: %w", err)
	}
	return creds, nil
}

// Delete removes the credential for the tuple. Audit history is kept in its
// own table and survives this.
func (s *CredentialService) Delete(ctx context.Context, tenantID, projectID, providerID string) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM credentials WHERE tenant_id = $1 AND project_id = $2 AND provider = $3`,
		tenantID, projectID, providerID,
	)
	if err != nil {
		return fmt.Errorf("delete credential for %s/%s/%s: %w", tenantID, projectID, providerID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
