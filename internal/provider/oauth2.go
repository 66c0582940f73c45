package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/edvin/integrations/internal/model"
)

// oauth2Client implements the authorization-code handshake shared by all
// OAuth2 adapters. Each adapter embeds it with its own endpoints.
type oauth2Client struct {
	providerID string
	oauth2     model.OAuth2Config
	httpClient *http.Client
}

func newOAuth2Client(providerID string, cfg model.OAuth2Config) oauth2Client {
	return oauth2Client{
		providerID: providerID,
		oauth2:     cfg,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *oauth2Client) configured() bool {
	return c.oauth2.ClientID != "" && c.oauth2.ClientSecret != ""
}

// BuildAuthorizeURL constructs the provider's authorization endpoint URL.
// Configuration is checked here, before any user-facing redirect exists.
func (c *oauth2Client) BuildAuthorizeURL(state, redirectURI string) (string, error) {
	if !c.configured() {
		return "", fmt.Errorf("%s: %w", c.providerID, ErrNotConfigured)
	}

	u, err := url.Parse(c.oauth2.AuthorizeURL)
	if err != nil {
		return "", fmt.Errorf("parse %s authorize url: %w", c.providerID, err)
	}

	q := u.Query()
	q.Set("client_id", c.oauth2.ClientID)
	q.Set("redirect_uri", redirectURI)
	q.Set("response_type", "code")
	q.Set("scope", strings.Join(c.oauth2.Scopes, " "))
	q.Set("state", state)
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// ExchangeCode performs the authorization-code-for-token exchange.
func (c *oauth2Client) ExchangeCode(ctx context.Context, code, redirectURI string) (*TokenResponse, error) {
	if !c.configured() {
		return nil, fmt.Errorf("%s: %w", c.providerID, ErrNotConfigured)
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", redirectURI)
	form.Set("client_id", c.oauth2.ClientID)
	form.Set("client_secret", c.oauth2.ClientSecret)

	return c.postToken(ctx, form)
}

// refreshToken exchanges a refresh token for a new access token.
func (c *oauth2Client) refreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	if !c.configured() {
		return nil, fmt.Errorf("%s: %w", c.providerID, ErrNotConfigured)
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", c.oauth2.ClientID)
	form.Set("client_secret", c.oauth2.ClientSecret)

	return c.postToken(ctx, form)
}

// tokenEndpointResponse is the wire shape of an OAuth2 token response,
// including the error fields providers return on failure.
type tokenEndpointResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	TokenType        string `json:"token_type"`
	Scope            string `json:"scope"`
	ExpiresIn        int64  `json:"expires_in"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (c *oauth2Client) postToken(ctx context.Context, form url.Values) (*TokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.oauth2.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%s token request: %w", c.providerID, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ExchangeError{Provider: c.providerID, Detail: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &ExchangeError{Provider: c.providerID, StatusCode: resp.StatusCode, Detail: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ExchangeError{Provider: c.providerID, StatusCode: resp.StatusCode, Detail: string(body)}
	}

	var ter tokenEndpointResponse
	if err := json.Unmarshal(body, &ter); err != nil {
		return nil, &ExchangeError{Provider: c.providerID, StatusCode: resp.StatusCode, Detail: "malformed token response"}
	}

	// Some providers report errors with a 200 status.
	if ter.Error != "" {
		detail := ter.Error
		if ter.ErrorDescription != "" {
			detail += ": " + ter.ErrorDescription
		}
		return nil, &ExchangeError{Provider: c.providerID, StatusCode: resp.StatusCode, Detail: detail}
	}
	if ter.AccessToken == "" {
		return nil, &ExchangeError{Provider: c.providerID, StatusCode: resp.StatusCode, Detail: "no access token in response"}
	}

	tr := &TokenResponse{
		AccessToken:  ter.AccessToken,
		RefreshToken: ter.RefreshToken,
		TokenType:    ter.TokenType,
		Scope:        ter.Scope,
	}
	if ter.ExpiresIn > 0 {
		t := time.Now().Add(time.Duration(ter.ExpiresIn) * time.Second)
		tr.ExpiresAt = &t
	}
	return tr, nil
}
