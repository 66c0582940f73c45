package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/edvin/integrations/internal/model"
)

const webhookFallbackLabel = "webhook"

// Webhook is the generic outbound-webhook adapter. The credential is the
// destination URL itself.
type Webhook struct {
	httpClient *http.Client
}

func NewWebhook() *Webhook {
	return &Webhook{
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (w *Webhook) Config() model.ProviderConfig {
	return model.ProviderConfig{
		ID:       "webhook",
		Name:     "Webhook",
		AuthType: model.AuthTypeWebhook,
	}
}

func (w *Webhook) BuildAuthorizeURL(state, redirectURI string) (string, error) {
	return "", fmt.Errorf("webhook: %w", ErrNotOAuth2Provider)
}

func (w *Webhook) ExchangeCode(ctx context.Context, code, redirectURI string) (*TokenResponse, error) {
	return nil, fmt.Errorf("webhook: %w", ErrNotOAuth2Provider)
}

// TestConnection POSTs a synthetic test event to the webhook URL.
func (w *Webhook) TestConnection(ctx context.Context, webhookURL string) TestResult {
	u, err := url.Parse(webhookURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return TestResult{Success: false, Error: "invalid webhook URL"}
	}

	body, err := json.Marshal(map[string]string{
		"event":   "test",
		"message": "integration test event",
	})
	if err != nil {
		return TestResult{Success: false, Error: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return TestResult{Success: false, Error: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return TestResult{Success: false, Error: err.Error()}
	}
	defer func() { io.Copy(io.Discard, resp.Body); resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return TestResult{Success: false, Error: fmt.Sprintf("webhook returned %d", resp.StatusCode)}
	}
	return TestResult{Success: true, AccountName: u.Host}
}

// AccountLabel extracts the destination hostname.
func (w *Webhook) AccountLabel(ctx context.Context, webhookURL string) string {
	u, err := url.Parse(webhookURL)
	if err != nil || u.Host == "" {
		return webhookFallbackLabel
	}
	return u.Host
}
