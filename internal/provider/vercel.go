package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/edvin/integrations/internal/config"
	"github.com/edvin/integrations/internal/model"
)

const vercelFallbackLabel = "Vercel account"

// Vercel is the deployment-host adapter. Vercel access tokens expire and
// rotate through the refresh grant, so this adapter implements
// TokenRefresher.
type Vercel struct {
	oauth2Client
	apiBaseURL string
}

func NewVercel(creds config.ProviderCredentials) *Vercel {
	return &Vercel{
		oauth2Client: newOAuth2Client("vercel", model.OAuth2Config{
			AuthorizeURL: "https://vercel.com/oauth/authorize",
			TokenURL:     "https://api.vercel.com/v2/oauth/access_token",
			Scopes:       []string{"deployments:read", "deployments:write", "projects:read"},
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
		}),
		apiBaseURL: "https://api.vercel.com",
	}
}

func (v *Vercel) Config() model.ProviderConfig {
	return model.ProviderConfig{
		ID:       "vercel",
		Name:     "Vercel",
		AuthType: model.AuthTypeOAuth2,
		OAuth2:   &v.oauth2,
	}
}

// RefreshAccessToken implements TokenRefresher.
func (v *Vercel) RefreshAccessToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	return v.refreshToken(ctx, refreshToken)
}

func (v *Vercel) TestConnection(ctx context.Context, token string) TestResult {
	username, err := v.fetchUsername(ctx, token)
	if err != nil {
		return TestResult{Success: false, Error: err.Error()}
	}
	return TestResult{Success: true, AccountName: username}
}

func (v *Vercel) AccountLabel(ctx context.Context, token string) string {
	username, err := v.fetchUsername(ctx, token)
	if err != nil || username == "" {
		return vercelFallbackLabel
	}
	return username
}

func (v *Vercel) fetchUsername(ctx context.Context, token string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.apiBaseURL+"/v2/user", nil)
	if err != nil {
		return "", fmt.Errorf("vercel user request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("vercel user lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("vercel user lookup: status %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		User struct {
			Username string `json:"username"`
			Email    string `json:"email"`
		} `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode vercel user: %w", err)
	}
	if payload.User.Username != "" {
		return payload.User.Username, nil
	}
	return payload.User.Email, nil
}
