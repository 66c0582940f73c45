package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/edvin/integrations/internal/api/request"
	"github.com/edvin/integrations/internal/api/response"
	"github.com/edvin/integrations/internal/core"
	"github.com/edvin/integrations/internal/model"
	"github.com/edvin/integrations/internal/provider"
)

// ConnectService is the connection lifecycle surface the handler needs.
// *core.ConnectService satisfies this interface.
type ConnectService interface {
	AuthorizeURL(ctx context.Context, tenantID, projectID, providerID string) (string, error)
	Connect(ctx context.Context, params core.ConnectParams) (*model.Credential, error)
	TestConnection(ctx context.Context, tenantID, projectID, providerID string) (provider.TestResult, error)
	Disconnect(ctx context.Context, tenantID, projectID, providerID string) error
}

// CredentialLister lists stored credentials. *core.CredentialService
// satisfies this interface.
type CredentialLister interface {
	ListByProject(ctx context.Context, tenantID, projectID string) ([]model.Credential, error)
}

type Integration struct {
	connect ConnectService
	creds   CredentialLister
}

func NewIntegration(connect ConnectService, creds CredentialLister) *Integration {
	return &Integration{connect: connect, creds: creds}
}

// List godoc
//
//	@Summary		List connected integrations for a project
//	@Tags			Integrations
//	@Security		ApiKeyAuth
//	@Param			projectID path string true "Project ID"
//	@Success		200 {array} model.Credential
//	@Failure		400 {object} map[string]string
//	@Router			/projects/{projectID}/integrations [get]
func (h *Integration) List(w http.ResponseWriter, r *http.Request) {
	identity := requireIdentity(w, r)
	if identity == nil {
		return
	}
	projectID, err := request.RequireID(chi.URLParam(r, "projectID"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	creds, err := h.creds.ListByProject(r.Context(), identity.TenantID, projectID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, creds)
}

// AuthorizeURL godoc
//
//	@Summary		Build the provider authorization URL
//	@Tags			Integrations
//	@Security		ApiKeyAuth
//	@Param			projectID path string true "Project ID"
//	@Param			provider path string true "Provider ID"
//	@Success		200 {object} map[string]string
//	@Failure		400 {object} map[string]string
//	@Failure		404 {object} map[string]string
//	@Router			/projects/{projectID}/integrations/{provider}/authorize-url [post]
func (h *Integration) AuthorizeURL(w http.ResponseWriter, r *http.Request) {
	identity := requireIdentity(w, r)
	if identity == nil {
		return
	}
	projectID, providerID, ok := integrationParams(w, r)
	if !ok {
		return
	}

	authorizeURL, err := h.connect.AuthorizeURL(r.Context(), identity.TenantID, projectID, providerID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]string{"authorize_url": authorizeURL})
}

// Connect godoc
//
//	@Summary		Connect an api-key or webhook integration
//	@Tags			Integrations
//	@Security		ApiKeyAuth
//	@Param			projectID path string true "Project ID"
//	@Param			provider path string true "Provider ID"
//	@Param			body body request.ConnectIntegration true "Connection secret"
//	@Success		201 {object} model.Credential
//	@Failure		400 {object} map[string]string
//	@Failure		422 {object} map[string]string
//	@Router			/projects/{projectID}/integrations/{provider} [post]
func (h *Integration) Connect(w http.ResponseWriter, r *http.Request) {
	identity := requireIdentity(w, r)
	if identity == nil {
		return
	}
	projectID, providerID, ok := integrationParams(w, r)
	if !ok {
		return
	}

	var req request.ConnectIntegration
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	cred, err := h.connect.Connect(r.Context(), core.ConnectParams{
		TenantID:  identity.TenantID,
		ProjectID: projectID,
		Provider:  providerID,
		Secret:    req.Secret,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusCreated, cred)
}

// Test godoc
//
//	@Summary		Test a stored integration credential
//	@Tags			Integrations
//	@Security		ApiKeyAuth
//	@Param			projectID path string true "Project ID"
//	@Param			provider path string true "Provider ID"
//	@Success		200 {object} provider.TestResult
//	@Failure		404 {object} map[string]string
//	@Router			/projects/{projectID}/integrations/{provider}/test [post]
func (h *Integration) Test(w http.ResponseWriter, r *http.Request) {
	identity := requireIdentity(w, r)
	if identity == nil {
		return
	}
	projectID, providerID, ok := integrationParams(w, r)
	if !ok {
		return
	}

	result, err := h.connect.TestConnection(r.Context(), identity.TenantID, projectID, providerID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, result)
}

// Disconnect godoc
//
//	@Summary		Disconnect an integration
//	@Tags			Integrations
//	@Security		ApiKeyAuth
//	@Param			projectID path string true "Project ID"
//	@Param			provider path string true "Provider ID"
//	@Success		204
//	@Failure		404 {object} map[string]string
//	@Router			/projects/{projectID}/integrations/{provider} [delete]
func (h *Integration) Disconnect(w http.ResponseWriter, r *http.Request) {
	identity := requireIdentity(w, r)
	if identity == nil {
		return
	}
	projectID, providerID, ok := integrationParams(w, r)
	if !ok {
		return
	}

	if err := h.connect.Disconnect(r.Context(), identity.TenantID, projectID, providerID); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func integrationParams(w http.ResponseWriter, r *http.Request) (projectID, providerID string, ok bool) {
	projectID, err := request.RequireID(chi.URLParam(r, "projectID"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return "", "", false
	}
	providerID, err = request.RequireProvider(chi.URLParam(r, "provider"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return "", "", false
	}
	return projectID, providerID, true
}
