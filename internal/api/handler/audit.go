package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/edvin/integrations/internal/api/request"
	"github.com/edvin/integrations/internal/api/response"
	"github.com/edvin/integrations/internal/model"
)

// AuditLister pages through audit history. *core.AuditService satisfies
// this interface.
type AuditLister interface {
	ListByProject(ctx context.Context, tenantID, projectID, providerFilter string, limit int, cursor string) ([]model.AuditEvent, bool, error)
}

type Audit struct {
	svc AuditLister
}

func NewAudit(svc AuditLister) *Audit {
	return &Audit{svc: svc}
}

// List godoc
//
//	@Summary		List audit events for a project
//	@Tags			Audit
//	@Security		ApiKeyAuth
//	@Param			projectID path string true "Project ID"
//	@Param			provider query string false "Filter by provider"
//	@Param			limit query int false "Page size" default(50)
//	@Param			cursor query string false "Pagination cursor"
//	@Success		200 {object} response.PaginatedResponse{items=[]model.AuditEvent}
//	@Failure		400 {object} map[string]string
//	@Router			/projects/{projectID}/audit-events [get]
func (h *Audit) List(w http.ResponseWriter, r *http.Request) {
	identity := requireIdentity(w, r)
	if identity == nil {
		return
	}
	projectID, err := request.RequireID(chi.URLParam(r, "projectID"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	pg := request.ParsePagination(r)
	providerFilter := r.URL.Query().Get("provider")

	events, hasMore, err := h.svc.ListByProject(r.Context(), identity.TenantID, projectID, providerFilter, pg.Limit, pg.Cursor)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	var nextCursor string
	if hasMore && len(events) > 0 {
		nextCursor = events[len(events)-1].ID
	}
	response.WritePaginated(w, http.StatusOK, events, nextCursor, hasMore)
}
