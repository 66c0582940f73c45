package handler

import (
	"errors"
	"net/http"

	mw "github.com/edvin/integrations/internal/api/middleware"
	"github.com/edvin/integrations/internal/api/response"
	"github.com/edvin/integrations/internal/core"
	"github.com/edvin/integrations/internal/provider"
)

// requireIdentity returns the authenticated identity or writes a 401.
// The auth middleware guarantees it is present on /api/v1 routes.
func requireIdentity(w http.ResponseWriter, r *http.Request) *mw.Identity {
	identity := mw.GetIdentity(r.Context())
	if identity == nil {
		response.WriteError(w, http.StatusUnauthorized, "not authenticated")
	}
	return identity
}

// writeServiceError maps service-layer errors onto HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound),
		errors.Is(err, core.ErrUnknownProvider):
		response.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, core.ErrOAuthFlowRequired),
		errors.Is(err, core.ErrInvalidWebhookURL),
		errors.Is(err, provider.ErrNotOAuth2Provider),
		errors.Is(err, provider.ErrNotConfigured):
		response.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, core.ErrConnectionTestFailed):
		response.WriteError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		response.WriteError(w, http.StatusInternalServerError, err.Error())
	}
}
