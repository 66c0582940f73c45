package core

import (
	"context"
	"fmt"

	"github.com/edvin/integrations/internal/model"
)

// AuditService reads the integration audit trail.
type AuditService struct {
	db DB
}

func NewAuditService(db DB) *AuditService {
	return &AuditService{db: db}
}

// ListByProject returns audit events for a project, newest first, with
// cursor pagination. An optional provider filter narrows the trail to one
// integration.
func (s *AuditService) ListByProject(ctx context.Context, tenantID, projectID, providerFilter string, limit int, cursor string) ([]model.AuditEvent, bool, error) {
	query := `SELECT id, tenant_id, project_id, provider, action, detail, created_at
	          FROM audit_events WHERE tenant_id = $1 AND project_id = $2`
	args := []any{tenantID, projectID}
	argIdx := 3

	if providerFilter != "" {
		query += fmt.Sprintf(` AND provider = $%d`, argIdx)
		args = append(args, providerFilter)
		argIdx++
	}

	if cursor != "" {
		query += fmt.Sprintf(` AND (created_at, id) < (SELECT created_at, id FROM audit_events WHERE id = $%d)`, argIdx)
		args = append(args, cursor)
		argIdx++
	}

	query += ` ORDER BY created_at DESC, id DESC`
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit+1)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("list audit events for project %s: %w", projectID, err)
	}
	defer rows.Close()

	var events []model.AuditEvent
	for rows.Next() {
		var e model.AuditEvent
		if err := rows.Scan(&e.ID, &e.TenantID, &e.ProjectID, &e.Provider, &e.Action, &e.Detail, &e.CreatedAt); err != nil {
			return nil, false, fmt.Errorf("scan audit event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate audit events: %w", err)
	}

	hasMore := len(events) > limit
	if hasMore {
		events = events[:limit]
	}
	return events, hasMore, nil
}
