package core

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/edvin/integrations/internal/crypto"
	"github.com/edvin/integrations/internal/model"
	"github.com/edvin/integrations/internal/provider"
)

// Callback error codes, propagated as redirect query parameters.
const (
	CallbackCodeDenied         = "oauth_denied"
	CallbackCodeInvalid        = "oauth_invalid"
	CallbackCodeExpired        = "oauth_expired"
	CallbackCodeUnknown        = "unknown_provider"
	CallbackCodeExchangeFailed = "oauth_exchange_failed"
)

// CallbackError is a terminal callback failure with a user-distinguishable
// code. The cause carries provider detail for logs only; it is never shown
// to the end user.
type CallbackError struct {
	Code  string
	cause error
}

func (e *CallbackError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("oauth callback failed (%s): %v", e.Code, e.cause)
	}
	return fmt.Sprintf("oauth callback failed (%s)", e.Code)
}

func (e *CallbackError) Unwrap() error { return e.cause }

var (
	ErrUnknownProvider      = errors.New("unknown provider")
	ErrOAuthFlowRequired    = errors.New("provider requires the oauth authorization flow")
	ErrConnectionTestFailed = errors.New("connection test failed")
	ErrInvalidWebhookURL    = errors.New("invalid webhook url")
)

// AuditRecorder records integration lifecycle events, best effort.
type AuditRecorder interface {
	Record(event model.AuditEvent)
}

// ProviderRegistry resolves provider adapters. *provider.Registry
// satisfies this interface.
type ProviderRegistry interface {
	Get(id string) (provider.Adapter, bool)
	IsAvailable(id string) bool
}

// ConnectService orchestrates the connection lifecycle: authorize-URL
// generation, the OAuth callback exchange, direct api-key/webhook
// connects, connection tests, and disconnects.
type ConnectService struct {
	creds      *CredentialService
	registry   ProviderRegistry
	vault      *crypto.Vault
	states     *crypto.StateCodec
	audit      AuditRecorder
	appBaseURL string
}

func NewConnectService(creds *CredentialService, registry ProviderRegistry, vault *crypto.Vault, states *crypto.StateCodec, audit AuditRecorder, appBaseURL string) *ConnectService {
	return &ConnectService{
		creds:      creds,
		registry:   registry,
		vault:      vault,
		states:     states,
		audit:      audit,
		appBaseURL: appBaseURL,
	}
}

func (s *ConnectService) redirectURI(providerID string) string {
	return s.appBaseURL + "/api/oauth/" + providerID + "/callback"
}

// AuthorizeURL builds the provider authorization URL carrying a sealed
// state token bound to (tenant, project, provider).
func (s *ConnectService) AuthorizeURL(ctx context.Context, tenantID, projectID, providerID string) (string, error) {
	adapter, ok := s.registry.Get(providerID)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownProvider, providerID)
	}
	if adapter.Config().AuthType != model.AuthTypeOAuth2 {
		return "", fmt.Errorf("%s: %w", providerID, provider.ErrNotOAuth2Provider)
	}
	if !s.registry.IsAvailable(providerID) {
		return "", fmt.Errorf("%s: %w", providerID, provider.ErrNotConfigured)
	}

	token, err := s.states.Encode(crypto.NewState(tenantID, projectID, providerID))
	if err != nil {
		return "", fmt.Errorf("encode oauth state: %w", err)
	}
	return adapter.BuildAuthorizeURL(token, s.redirectURI(providerID))
}

// CallbackParams carries an inbound OAuth redirect. CallerTenantID is empty
// on unauthenticated redirects; when present it must match the tenant
// sealed into the state token.
type CallbackParams struct {
	Provider       string
	Code           string
	State          string
	CallerTenantID string
}

// HandleCallback runs the authorization-code exchange end to end: decode
// and validate the state, verify ownership, exchange the code, encrypt the
// token payload, and persist the credential. Each failure maps to exactly
// one callback code.
func (s *ConnectService) HandleCallback(ctx context.Context, params CallbackParams) (*model.Credential, error) {
	state, err := s.states.Decode(params.State)
	if err != nil {
		if errors.Is(err, crypto.ErrStateExpired) {
			return nil, &CallbackError{Code: CallbackCodeExpired, cause: err}
		}
		return nil, &CallbackError{Code: CallbackCodeInvalid, cause: err}
	}

	// A state token minted for one provider must not complete another
	// provider's flow, and a token minted for one tenant must not land a
	// credential in someone else's account.
	if params.Provider != state.Provider {
		return nil, &CallbackError{Code: CallbackCodeInvalid, cause: fmt.Errorf("state minted for provider %s, callback for %s", state.Provider, params.Provider)}
	}
	if params.CallerTenantID != "" && params.CallerTenantID != state.TenantID {
		return nil, &CallbackError{Code: CallbackCodeInvalid, cause: errors.New("state tenant does not match caller tenant")}
	}

	adapter, ok := s.registry.Get(state.Provider)
	if !ok || adapter.Config().AuthType != model.AuthTypeOAuth2 {
		return nil, &CallbackError{Code: CallbackCodeUnknown, cause: fmt.Errorf("provider %s", state.Provider)}
	}

	tok, err := adapter.ExchangeCode(ctx, params.Code, s.redirectURI(state.Provider))
	if err != nil {
		return nil, &CallbackError{Code: CallbackCodeExchangeFailed, cause: err}
	}

	label := adapter.AccountLabel(ctx, tok.AccessToken)

	env, err := s.vault.EncryptPayload(&model.TokenPayload{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Scope:        tok.Scope,
		AccountLabel: label,
		ExpiresAt:    tok.ExpiresAt,
	})
	if err != nil {
		return nil, fmt.Errorf("encrypt token payload: %w", err)
	}

	reconnected, err := s.creds.Exists(ctx, state.TenantID, state.ProjectID, state.Provider)
	if err != nil {
		return nil, err
	}

	cred := &model.Credential{
		TenantID:         state.TenantID,
		ProjectID:        state.ProjectID,
		Provider:         state.Provider,
		AuthType:         model.AuthTypeOAuth2,
		EncryptedPayload: env.Ciphertext,
		Nonce:            env.Nonce,
		KeyVersion:       env.KeyVersion,
		AccountLabel:     label,
		ExpiresAt:        tok.ExpiresAt,
	}
	if err := s.creds.Upsert(ctx, cred); err != nil {
		return nil, err
	}

	action := model.AuditActionConnected
	if reconnected {
		action = model.AuditActionReconnected
	}
	s.audit.Record(model.AuditEvent{
		TenantID:  cred.TenantID,
		ProjectID: cred.ProjectID,
		Provider:  cred.Provider,
		Action:    action,
		Detail:    label,
	})

	return cred, nil
}

// ConnectParams carries a direct (non-OAuth) connect request. Secret is the
// API key for api_key providers and the destination URL for webhooks.
type ConnectParams struct {
	TenantID  string
	ProjectID string
	Provider  string
	Secret    string
}

// Connect stores an api-key or webhook credential. OAuth2 providers must go
// through the authorization flow instead.
func (s *ConnectService) Connect(ctx context.Context, params ConnectParams) (*model.Credential, error) {
	adapter, ok := s.registry.Get(params.Provider)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, params.Provider)
	}

	var label string
	switch adapter.Config().AuthType {
	case model.AuthTypeOAuth2:
		return nil, fmt.Errorf("%s: %w", params.Provider, ErrOAuthFlowRequired)
	case model.AuthTypeAPIKey:
		result := adapter.TestConnection(ctx, params.Secret)
		if !result.Success {
			return nil, fmt.Errorf("%w: %s", ErrConnectionTestFailed, result.Error)
		}
		label = result.AccountName
		if label == "" {
			label = adapter.AccountLabel(ctx, params.Secret)
		}
	case model.AuthTypeWebhook:
		u, err := url.Parse(params.Secret)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, ErrInvalidWebhookURL
		}
		label = u.Host
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, params.Provider)
	}

	env, err := s.vault.EncryptPayload(&model.TokenPayload{
		AccessToken:  params.Secret,
		AccountLabel: label,
	})
	if err != nil {
		return nil, fmt.Errorf("encrypt credential payload: %w", err)
	}

	reconnected, err := s.creds.Exists(ctx, params.TenantID, params.ProjectID, params.Provider)
	if err != nil {
		return nil, err
	}

	cred := &model.Credential{
		TenantID:         params.TenantID,
		ProjectID:        params.ProjectID,
		Provider:         params.Provider,
		AuthType:         adapter.Config().AuthType,
		EncryptedPayload: env.Ciphertext,
		Nonce:            env.Nonce,
		KeyVersion:       env.KeyVersion,
		AccountLabel:     label,
	}
	if err := s.creds.Upsert(ctx, cred); err != nil {
		return nil, err
	}

	action := model.AuditActionConnected
	if reconnected {
		action = model.AuditActionReconnected
	}
	s.audit.Record(model.AuditEvent{
		TenantID:  cred.TenantID,
		ProjectID: cred.ProjectID,
		Provider:  cred.Provider,
		Action:    action,
		Detail:    label,
	})

	return cred, nil
}

// TestConnection decrypts the stored credential and probes the provider.
func (s *ConnectService) TestConnection(ctx context.Context, tenantID, projectID, providerID string) (provider.TestResult, error) {
	adapter, ok := s.registry.Get(providerID)
	if !ok {
		return provider.TestResult{}, fmt.Errorf("%w: %s", ErrUnknownProvider, providerID)
	}

	cred, err := s.creds.GetByTuple(ctx, tenantID, projectID, providerID)
	if err != nil {
		return provider.TestResult{}, err
	}

	payload, err := s.vault.DecryptPayload(&crypto.Envelope{
		Ciphertext: cred.EncryptedPayload,
		Nonce:      cred.Nonce,
		KeyVersion: cred.KeyVersion,
	})
	if err != nil {
		return provider.TestResult{}, fmt.Errorf("decrypt credential %s: %w", cred.ID, err)
	}

	return adapter.TestConnection(ctx, payload.AccessToken), nil
}

// Disconnect removes the credential and records the event. Audit history
// for the tuple is retained.
func (s *ConnectService) Disconnect(ctx context.Context, tenantID, projectID, providerID string) error {
	if err := s.creds.Delete(ctx, tenantID, projectID, providerID); err != nil {
		return err
	}
	s.audit.Record(model.AuditEvent{
		TenantID:  tenantID,
		ProjectID: projectID,
		Provider:  providerID,
		Action:    model.AuditActionDisconnected,
	})
	return nil
}
