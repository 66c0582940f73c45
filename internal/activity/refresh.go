package activity

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/edvin/integrations/internal/crypto"
	"github.com/edvin/integrations/internal/metrics"
	"github.com/edvin/integrations/internal/model"
	"github.com/edvin/integrations/internal/provider"
)

// Refresh outcomes reported back to the cron workflow.
const (
	RefreshOutcomeRefreshed = "refreshed"
	RefreshOutcomeExpired   = "expired"
	RefreshOutcomeSkipped   = "skipped"
)

// RefreshResult is the terminal state of one credential refresh.
type RefreshResult struct {
	Outcome string `json:"outcome"`
	Detail  string `json:"detail,omitempty"`
}

// AdapterRegistry resolves provider adapters. *provider.Registry satisfies
// this interface.
type AdapterRegistry interface {
	Get(id string) (provider.Adapter, bool)
}

// AuditRecorder records integration lifecycle events, best effort.
type AuditRecorder interface {
	Record(event model.AuditEvent)
}

// Refresh contains the per-credential token refresh activity.
type Refresh struct {
	db       DB
	creds    *Credentials
	registry AdapterRegistry
	vault    *crypto.Vault
	audit    AuditRecorder
	logger   zerolog.Logger
}

// NewRefresh creates a new Refresh activity struct.
func NewRefresh(db DB, registry AdapterRegistry, vault *crypto.Vault, audit AuditRecorder, logger zerolog.Logger) *Refresh {
	return &Refresh{
		db:       db,
		creds:    NewCredentials(db),
		registry: registry,
		vault:    vault,
		audit:    audit,
		logger:   logger.With().Str("component", "token-refresh").Logger(),
	}
}

// RefreshCredential refreshes one credential's access token. The row is
// re-read inside the activity so the optimistic guard sees the current
// updated_at. Provider rejection demotes the credential to expired instead
// of failing the activity; only infrastructure errors (database,
// decryption) propagate as activity errors.
func (a *Refresh) RefreshCredential(ctx context.Context, id string) (RefreshResult, error) {
	result, err := a.refreshCredential(ctx, id)
	if err != nil {
		metrics.RefreshOutcomes.WithLabelValues("error").Inc()
	} else {
		metrics.RefreshOutcomes.WithLabelValues(result.Outcome).Inc()
	}
	return result, err
}

func (a *Refresh) refreshCredential(ctx context.Context, id string) (RefreshResult, error) {
	cred, err := a.getCredential(ctx, id)
	if err != nil {
		return RefreshResult{}, err
	}

	if cred.Status != model.CredentialStatusActive || cred.AuthType != model.AuthTypeOAuth2 {
		return RefreshResult{Outcome: RefreshOutcomeSkipped, Detail: "credential no longer an active oauth2 credential"}, nil
	}

	adapter, ok := a.registry.Get(cred.Provider)
	if !ok {
		return RefreshResult{Outcome: RefreshOutcomeSkipped, Detail: fmt.Sprintf("provider %s not registered", cred.Provider)}, nil
	}
	refresher, ok := adapter.(provider.TokenRefresher)
	if !ok {
		return RefreshResult{Outcome: RefreshOutcomeSkipped, Detail: fmt.Sprintf("provider %s does not rotate tokens", cred.Provider)}, nil
	}

	payload, err := a.vault.DecryptPayload(&crypto.Envelope{
		Ciphertext: cred.EncryptedPayload,
		Nonce:      cred.Nonce,
		KeyVersion: cred.KeyVersion,
	})
	if err != nil {
		// Authentication failure on stored data means corruption or a key
		// rotation bug, not a transient fault.
		a.logger.Error().Err(err).
			Str("credential_id", cred.ID).
			Str("provider", cred.Provider).
			Int("key_version", cred.KeyVersion).
			Msg("stored credential failed decryption")
		return RefreshResult{}, fmt.Errorf("decrypt credential %s: %w", cred.ID, err)
	}

	if payload.RefreshToken == "" {
		return RefreshResult{Outcome: RefreshOutcomeSkipped, Detail: "no refresh token stored"}, nil
	}

	tok, err := refresher.RefreshAccessToken(ctx, payload.RefreshToken)
	if err != nil {
		a.logger.Warn().Err(err).
			Str("credential_id", cred.ID).
			Str("provider", cred.Provider).
			Msg("provider rejected token refresh, marking credential expired")
		if markErr := a.creds.MarkCredentialExpired(ctx, cred.ID); markErr != nil {
			return RefreshResult{}, markErr
		}
		a.audit.Record(model.AuditEvent{
			TenantID:  cred.TenantID,
			ProjectID: cred.ProjectID,
			Provider:  cred.Provider,
			Action:    model.AuditActionExpired,
			Detail:    "token refresh rejected by provider",
		})
		return RefreshResult{Outcome: RefreshOutcomeExpired, Detail: err.Error()}, nil
	}

	// Providers may omit the refresh token on rotation; keep the previous
	// one so the credential stays refreshable.
	if tok.RefreshToken == "" {
		tok.RefreshToken = payload.RefreshToken
	}
	if tok.TokenType == "" {
		tok.TokenType = payload.TokenType
	}
	if tok.Scope == "" {
		tok.Scope = payload.Scope
	}

	env, err := a.vault.EncryptPayload(&model.TokenPayload{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Scope:        tok.Scope,
		AccountLabel: payload.AccountLabel,
		ExpiresAt:    tok.ExpiresAt,
	})
	if err != nil {
		return RefreshResult{}, fmt.Errorf("encrypt refreshed payload for %s: %w", cred.ID, err)
	}

	updated, err := a.creds.UpdateCredentialTokens(ctx, UpdateCredentialTokensParams{
		ID:               cred.ID,
		EncryptedPayload: env.Ciphertext,
		Nonce:            env.Nonce,
		KeyVersion:       env.KeyVersion,
		ExpiresAt:        tok.ExpiresAt,
		PrevUpdatedAt:    cred.UpdatedAt,
	})
	if err != nil {
		return RefreshResult{}, err
	}
	if !updated {
		return RefreshResult{Outcome: RefreshOutcomeSkipped, Detail: "credential changed concurrently, refresh discarded"}, nil
	}

	a.audit.Record(model.AuditEvent{
		TenantID:  cred.TenantID,
		ProjectID: cred.ProjectID,
		Provider:  cred.Provider,
		Action:    model.AuditActionRefreshed,
		Detail:    payload.AccountLabel,
	})
	return RefreshResult{Outcome: RefreshOutcomeRefreshed}, nil
}

func (a *Refresh) getCredential(ctx context.Context, id string) (*model.Credential, error) {
	var c model.Credential
	err := a.db.QueryRow(ctx,
		`SELECT id, tenant_id, project_id, provider, auth_type, encrypted_payload, iv, key_version, account_label, status, expires_at, created_at, updated_at
		 FROM credentials WHERE id = $1`, id,
	).Scan(&c.ID, &c.TenantID, &c.ProjectID, &c.Provider, &c.AuthType,
		&c.EncryptedPayload, &c.Nonce, &c.KeyVersion, &c.AccountLabel,
		&c.Status, &c.ExpiresAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get credential %s: %w", id, err)
	}
	return &c, nil
}
