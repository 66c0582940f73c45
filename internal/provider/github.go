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

const githubFallbackLabel = "GitHub account"

// GitHub is the source-control adapter. GitHub OAuth tokens are long-lived
// and do not rotate, so it implements no TokenRefresher.
type GitHub struct {
	oauth2Client
	apiBaseURL string
}

func NewGitHub(creds config.ProviderCredentials) *GitHub {
	return &GitHub{
		oauth2Client: newOAuth2Client("github", model.OAuth2Config{
			AuthorizeURL: "https://github.com/login/oauth/authorize",
			TokenURL:     "https://github.com/login/oauth/access_token",
			Scopes:       []string{"repo", "read:user"},
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
		}),
		apiBaseURL: "https://api.github.com",
	}
}

func (g *GitHub) Config() model.ProviderConfig {
	return model.ProviderConfig{
		ID:       "github",
		Name:     "GitHub",
		AuthType: model.AuthTypeOAuth2,
		OAuth2:   &g.oauth2,
	}
}

func (g *GitHub) TestConnection(ctx context.Context, token string) TestResult {
	login, err := g.fetchLogin(ctx, token)
	if err != nil {
		return TestResult{Success: false, Error: err.Error()}
	}
	return TestResult{Success: true, AccountName: login}
}

func (g *GitHub) AccountLabel(ctx context.Context, token string) string {
	login, err := g.fetchLogin(ctx, token)
	if err != nil || login == "" {
		return githubFallbackLabel
	}
	return login
}

func (g *GitHub) fetchLogin(ctx context.Context, token string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.apiBaseURL+"/user", nil)
	if err != nil {
		return "", fmt.Errorf("github user request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("github user lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("github user lookup: status %d: %s", resp.StatusCode, string(body))
	}

	var user struct {
		Login string `json:"login"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return "", fmt.Errorf("decode github user: %w", err)
	}
	return user.Login, nil
}
