package model

import "time"

// AuditEvent records one integration lifecycle event. Events outlive the
// credential they describe: superseding or expiring a credential never
// removes its history.
type AuditEvent struct {
	ID        string    `json:"id" db:"id"`
	TenantID  string    `json:"tenant_id" db:"tenant_id"`
	ProjectID string    `json:"project_id" db:"project_id"`
	Provider  string    `json:"provider" db:"provider"`
	Action    string    `json:"action" db:"action"`
	Detail    string    `json:"detail,omitempty" db:"detail"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

const (
	AuditActionConnected    = "connected"
	AuditActionReconnected  = "reconnected"
	AuditActionDisconnected = "disconnected"
	AuditActionRefreshed    = "refreshed"
	AuditActionExpired      = "expired"
)
