package model

// Auth types for provider integrations. Callers must handle all three;
// OAuth2-only operations fail explicitly for the other two.
const (
	AuthTypeOAuth2  = "oauth2"
	AuthTypeAPIKey  = "api_key"
	AuthTypeWebhook = "webhook"
)

// OAuth2Config holds the endpoints and client credentials for an OAuth2
// provider. Endpoint URLs are part of the adapter definition; client
// credentials are injected from configuration at startup.
type OAuth2Config struct {
	AuthorizeURL string   `json:"authorize_url"`
	TokenURL     string   `json:"token_url"`
	Scopes       []string `json:"scopes"`
	ClientID     string   `json:"-"`
	ClientSecret string   `json:"-"`
}

// ProviderConfig describes one integration provider. Immutable; created at
// process start from compiled-in adapter definitions.
type ProviderConfig struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	AuthType string        `json:"auth_type"`
	OAuth2   *OAuth2Config `json:"oauth2,omitempty"`
}
