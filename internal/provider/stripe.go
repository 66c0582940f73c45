package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/edvin/integrations/internal/model"
)

const stripeFallbackLabel = "Stripe account"

// Stripe is the payment-processor adapter. The credential is a secret API
// key submitted by the user; there is no authorize/exchange flow.
type Stripe struct {
	apiBaseURL string
	httpClient *http.Client
}

func NewStripe() *Stripe {
	return &Stripe{
		apiBaseURL: "https://api.stripe.com",
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *Stripe) Config() model.ProviderConfig {
	return model.ProviderConfig{
		ID:       "stripe",
		Name:     "Stripe",
		AuthType: model.AuthTypeAPIKey,
	}
}

func (s *Stripe) BuildAuthorizeURL(state, redirectURI string) (string, error) {
	return "", fmt.Errorf("stripe: %w", ErrNotOAuth2Provider)
}

func (s *Stripe) ExchangeCode(ctx context.Context, code, redirectURI string) (*TokenResponse, error) {
	return nil, fmt.Errorf("stripe: %w", ErrNotOAuth2Provider)
}

func (s *Stripe) TestConnection(ctx context.Context, token string) TestResult {
	name, err := s.fetchAccountName(ctx, token)
	if err != nil {
		return TestResult{Success: false, Error: err.Error()}
	}
	return TestResult{Success: true, AccountName: name}
}

func (s *Stripe) AccountLabel(ctx context.Context, token string) string {
	name, err := s.fetchAccountName(ctx, token)
	if err != nil || name == "" {
		return stripeFallbackLabel
	}
	return name
}

func (s *Stripe) fetchAccountName(ctx context.Context, apiKey string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiBaseURL+"/v1/account", nil)
	if err != nil {
		return "", fmt.Errorf("stripe account request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("stripe account lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("stripe account lookup: status %d: %s", resp.StatusCode, string(body))
	}

	var account struct {
		ID       string `json:"id"`
		Settings struct {
			Dashboard struct {
				DisplayName string `json:"display_name"`
			} `json:"dashboard"`
		} `json:"settings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&account); err != nil {
		return "", fmt.Errorf("decode stripe account: %w", err)
	}
	if account.Settings.Dashboard.DisplayName != "" {
		return account.Settings.Dashboard.DisplayName, nil
	}
	return account.ID, nil
}
