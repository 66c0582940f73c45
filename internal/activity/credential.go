package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/edvin/integrations/internal/model"
)

// DB defines the database operations used by activity structs.
// *pgxpool.Pool satisfies this interface.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Credentials contains activities that read and update credential rows.
type Credentials struct {
	db DB
}

// NewCredentials creates a new Credentials activity struct.
func NewCredentials(db DB) *Credentials {
	return &Credentials{db: db}
}

// ExpiringCredential holds minimal credential info for the refresh cron.
// Only row identity crosses the workflow boundary; ciphertext stays in the
// database and never enters workflow history.
type ExpiringCredential struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	ProjectID string    `json:"project_id"`
	Provider  string    `json:"provider"`
	ExpiresAt time.Time `json:"expires_at"`
}

// GetExpiringCredentials returns active OAuth2 credentials whose access
// token expires within the given number of minutes.
func (a *Credentials) GetExpiringCredentials(ctx context.Context, withinMinutes int) ([]ExpiringCredential, error) {
	rows, err := a.db.Query(ctx,
		`SELECT id, tenant_id, project_id, provider, expires_at FROM credentials
		 WHERE status = $1 AND auth_type = $2 AND expires_at IS NOT NULL AND expires_at <= now() + make_interval(mins => $3)
		 ORDER BY expires_at`,
		model.CredentialStatusActive, model.AuthTypeOAuth2, withinMinutes,
	)
	if err != nil {
		return nil, fmt.Errorf("get expiring credentials: %w", err)
	}
	defer rows.Close()

	var creds []ExpiringCredential
	for rows.Next() {
		var c ExpiringCredential
		if err := rows.Scan(&c.ID, &c.TenantID, &c.ProjectID, &c.Provider, &c.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan expiring credential: %w", err)
		}
		creds = append(creds, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expiring credentials: %w", err)
	}
	return creds, nil
}

// UpdateCredentialTokensParams holds the parameters for UpdateCredentialTokens.
type UpdateCredentialTokensParams struct {
	ID               string     `json:"id"`
	EncryptedPayload []byte     `json:"encrypted_payload"`
	Nonce            []byte     `json:"nonce"`
	KeyVersion       int        `json:"key_version"`
	ExpiresAt        *time.Time `json:"expires_at"`
	PrevUpdatedAt    time.Time  `json:"prev_updated_at"`
}

// UpdateCredentialTokens writes a refreshed token payload. The updated_at
// guard makes the write a no-op when the row changed since it was read,
// so a refresh never clobbers a concurrent reconnect.
func (a *Credentials) UpdateCredentialTokens(ctx context.Context, params UpdateCredentialTokensParams) (bool, error) {
	tag, err := a.db.Exec(ctx,
		`UPDATE credentials
		 SET encrypted_payload = $1, iv = $2, key_version = $3, expires_at = $4, status = $5, updated_at = now()
		 WHERE id = $6 AND updated_at = $7`,
		params.EncryptedPayload, params.Nonce, params.KeyVersion, params.ExpiresAt,
		model.CredentialStatusActive, params.ID, params.PrevUpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("update credential tokens for %s: %w", params.ID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// MarkCredentialExpired demotes a credential to expired.
func (a *Credentials) MarkCredentialExpired(ctx context.Context, id string) error {
	_, err := a.db.Exec(ctx,
		`UPDATE credentials SET status = $1, updated_at = now() WHERE id = $2`,
		model.CredentialStatusExpired, id,
	)
	if err != nil {
		return fmt.Errorf("mark credential %s expired: %w", id, err)
	}
	return nil
}
