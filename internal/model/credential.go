package model

import "time"

// Credential is one connected integration for a (tenant, project, provider)
// tuple. The unique index on that tuple guarantees at most one active row;
// reconnecting the same provider supersedes the previous credential in
// place. The token payload is stored encrypted; the plaintext only ever
// exists in memory.
type Credential struct {
	ID               string     `json:"id" db:"id"`
	TenantID         string     `json:"tenant_id" db:"tenant_id"`
	ProjectID        string     `json:"project_id" db:"project_id"`
	Provider         string     `json:"provider" db:"provider"`
	AuthType         string     `json:"auth_type" db:"auth_type"`
	EncryptedPayload []byte     `json:"-" db:"encrypted_payload"`
	Nonce            []byte     `json:"-" db:"iv"`
	KeyVersion       int        `json:"-" db:"key_version"`
	AccountLabel     string     `json:"account_label" db:"account_label"`
	Status           string     `json:"status" db:"status"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
}

const (
	CredentialStatusActive  = "active"
	CredentialStatusExpired = "expired"
)

// TokenPayload is the plaintext inside Credential.EncryptedPayload. It is
// never logged and never serialized outside the encryption boundary.
type TokenPayload struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	TokenType    string     `json:"token_type,omitempty"`
	Scope        string     `json:"scope,omitempty"`
	AccountLabel string     `json:"account_label,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}
