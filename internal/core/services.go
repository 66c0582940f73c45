package core

import (
	"github.com/edvin/integrations/internal/crypto"
)

type Services struct {
	Credential *CredentialService
	Connect    *ConnectService
	Audit      *AuditService
	APIKey     *APIKeyService
}

func NewServices(db DB, registry ProviderRegistry, vault *crypto.Vault, states *crypto.StateCodec, audit AuditRecorder, appBaseURL string) *Services {
	creds := NewCredentialService(db)
	return &Services{
		Credential: creds,
		Connect:    NewConnectService(creds, registry, vault, states, audit, appBaseURL),
		Audit:      NewAuditService(db),
		APIKey:     NewAPIKeyService(db),
	}
}
