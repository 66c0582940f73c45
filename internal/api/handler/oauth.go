package handler

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/edvin/integrations/internal/core"
	"github.com/edvin/integrations/internal/model"
)

// OAuthExchanger completes the authorization-code exchange.
// *core.ConnectService satisfies this interface.
type OAuthExchanger interface {
	HandleCallback(ctx context.Context, params core.CallbackParams) (*model.Credential, error)
}

// OAuth handles the provider redirect. The endpoint is public: the only
// proof of ownership is the sealed state token minted by AuthorizeURL.
// Every outcome is a browser redirect back to the UI; failure detail stays
// in the logs.
type OAuth struct {
	svc           OAuthExchanger
	uiRedirectURL string
	logger        zerolog.Logger
}

func NewOAuth(svc OAuthExchanger, uiRedirectURL string, logger zerolog.Logger) *OAuth {
	return &OAuth{svc: svc, uiRedirectURL: uiRedirectURL, logger: logger}
}

// Callback godoc
//
//	@Summary		OAuth provider redirect endpoint
//	@Tags			OAuth
//	@Param			provider path string true "Provider ID"
//	@Param			code query string false "Authorization code"
//	@Param			state query string false "Sealed state token"
//	@Param			error query string false "Provider error code"
//	@Success		302
//	@Router			/api/oauth/{provider}/callback [get]
func (h *OAuth) Callback(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "provider")
	q := r.URL.Query()

	// The provider reports user denial via the error parameter; a redirect
	// without code or state is treated the same way.
	if q.Get("error") != "" || q.Get("code") == "" || q.Get("state") == "" {
		h.logger.Info().
			Str("provider", providerID).
			Str("provider_error", q.Get("error")).
			Msg("oauth authorization denied")
		h.redirect(w, r, providerID, map[string]string{"error": core.CallbackCodeDenied})
		return
	}

	cred, err := h.svc.HandleCallback(r.Context(), core.CallbackParams{
		Provider: providerID,
		Code:     q.Get("code"),
		State:    q.Get("state"),
	})
	if err != nil {
		code := core.CallbackCodeInvalid
		var cbErr *core.CallbackError
		if errors.As(err, &cbErr) {
			code = cbErr.Code
		}
		h.logger.Warn().Err(err).
			Str("provider", providerID).
			Str("code", code).
			Msg("oauth callback failed")
		h.redirect(w, r, providerID, map[string]string{"error": code})
		return
	}

	h.logger.Info().
		Str("provider", cred.Provider).
		Str("tenant_id", cred.TenantID).
		Str("project_id", cred.ProjectID).
		Msg("oauth integration connected")
	h.redirect(w, r, providerID, map[string]string{"connected": "1"})
}

func (h *OAuth) redirect(w http.ResponseWriter, r *http.Request, providerID string, params map[string]string) {
	u, err := url.Parse(h.uiRedirectURL)
	if err != nil {
		http.Error(w, "redirect misconfigured", http.StatusInternalServerError)
		return
	}

	q := u.Query()
	q.Set("provider", providerID)
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()

	http.Redirect(w, r, u.String(), http.StatusFound)
}
