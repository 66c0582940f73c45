package handler

import (
	"net/http"

	"github.com/edvin/integrations/internal/api/response"
	"github.com/edvin/integrations/internal/model"
)

// ProviderCatalog lists the registered provider adapters.
// *provider.Registry satisfies this interface.
type ProviderCatalog interface {
	List() []model.ProviderConfig
	IsAvailable(id string) bool
}

type Provider struct {
	catalog ProviderCatalog
}

func NewProvider(catalog ProviderCatalog) *Provider {
	return &Provider{catalog: catalog}
}

// providerView is the public shape of a provider. Client credentials never
// leave the process; only the OAuth2 scopes are surfaced.
type providerView struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	AuthType  string   `json:"auth_type"`
	Available bool     `json:"available"`
	Scopes    []string `json:"scopes,omitempty"`
}

// List godoc
//
//	@Summary		List integration providers
//	@Tags			Providers
//	@Security		ApiKeyAuth
//	@Success		200 {array} handler.providerView
//	@Router			/providers [get]
func (h *Provider) List(w http.ResponseWriter, r *http.Request) {
	configs := h.catalog.List()

	views := make([]providerView, 0, len(configs))
	for _, pc := range configs {
		v := providerView{
			ID:        pc.ID,
			Name:      pc.Name,
			AuthType:  pc.AuthType,
			Available: h.catalog.IsAvailable(pc.ID),
		}
		if pc.OAuth2 != nil {
			v.Scopes = pc.OAuth2.Scopes
		}
		views = append(views, v)
	}

	response.WriteJSON(w, http.StatusOK, views)
}
