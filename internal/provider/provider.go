package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/edvin/integrations/internal/model"
)

// ErrNotConfigured means an OAuth2 provider is missing its client
// credentials. This is an operator-facing configuration error and must be
// raised before any user-facing redirect is generated.
var ErrNotConfigured = errors.New("provider: client credentials not configured")

// ErrNotOAuth2Provider is returned when an OAuth2-only operation is called
// on an API-key or webhook adapter. Callers must handle all auth types
// explicitly; these operations never silently no-op.
var ErrNotOAuth2Provider = errors.New("provider: not an oauth2 provider")

// ExchangeError carries the provider's error detail from a failed token
// endpoint call. The detail is for logs only and is never surfaced to the
// end user verbatim.
type ExchangeError struct {
	Provider   string
	StatusCode int
	Detail     string
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("%s token exchange failed (status %d): %s", e.Provider, e.StatusCode, e.Detail)
}

// TokenResponse is the result of a code exchange or token refresh.
type TokenResponse struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Scope        string
	ExpiresAt    *time.Time
}

// TestResult is the outcome of a non-mutating connection probe.
type TestResult struct {
	Success     bool   `json:"success"`
	AccountName string `json:"account_name,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Adapter is the capability set every provider implements. The AuthType in
// Config() discriminates which operations are meaningful; OAuth2-only
// methods return ErrNotOAuth2Provider on other adapters.
type Adapter interface {
	// Config returns the static provider definition.
	Config() model.ProviderConfig

	// BuildAuthorizeURL constructs the provider's authorization endpoint
	// URL carrying the opaque state. Fails with ErrNotConfigured if client
	// credentials are absent.
	BuildAuthorizeURL(state, redirectURI string) (string, error)

	// ExchangeCode trades an authorization code for tokens. Non-2xx or a
	// provider-reported error yields an *ExchangeError.
	ExchangeCode(ctx context.Context, code, redirectURI string) (*TokenResponse, error)

	// TestConnection probes the credential without mutating anything.
	TestConnection(ctx context.Context, token string) TestResult

	// AccountLabel resolves a human-readable account identifier. Provider
	// failures degrade to a safe fallback label, never an error.
	AccountLabel(ctx context.Context, token string) string
}

// TokenRefresher is implemented by adapters whose access tokens expire and
// can be renewed. Absent for providers with long-lived tokens.
type TokenRefresher interface {
	RefreshAccessToken(ctx context.Context, refreshToken string) (*TokenResponse, error)
}
