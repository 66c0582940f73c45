package provider

import (
	"github.com/edvin/integrations/internal/config"
	"github.com/edvin/integrations/internal/model"
)

// Registry maps provider identifiers to adapters. It is built once at
// startup from the config and is read-only after: lookups perform no
// network calls and are safe at UI-rendering frequency.
type Registry struct {
	adapters map[string]Adapter
	order    []string
}

// NewRegistry constructs all compiled-in adapters with credentials from cfg.
func NewRegistry(cfg *config.Config) *Registry {
	r := &Registry{adapters: make(map[string]Adapter)}
	r.register(NewGitHub(cfg.GitHub))
	r.register(NewVercel(cfg.Vercel))
	r.register(NewStripe())
	r.register(NewWebhook())
	return r
}

func (r *Registry) register(a Adapter) {
	id := a.Config().ID
	r.adapters[id] = a
	r.order = append(r.order, id)
}

// Get returns the adapter for the given provider id.
func (r *Registry) Get(id string) (Adapter, bool) {
	a, ok := r.adapters[id]
	return a, ok
}

// List returns all provider configs in registration order.
func (r *Registry) List() []model.ProviderConfig {
	out := make([]model.ProviderConfig, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.adapters[id].Config())
	}
	return out
}

// ListOAuth2 returns the configs of OAuth2 providers only.
func (r *Registry) ListOAuth2() []model.ProviderConfig {
	var out []model.ProviderConfig
	for _, id := range r.order {
		if pc := r.adapters[id].Config(); pc.AuthType == model.AuthTypeOAuth2 {
			out = append(out, pc)
		}
	}
	return out
}

// IsAvailable reports whether a provider can be connected right now.
// OAuth2 providers need both client id and client secret configured;
// API-key and webhook providers are always available.
func (r *Registry) IsAvailable(id string) bool {
	a, ok := r.adapters[id]
	if !ok {
		return false
	}
	pc := a.Config()
	if pc.AuthType != model.AuthTypeOAuth2 {
		return true
	}
	return pc.OAuth2 != nil && pc.OAuth2.ClientID != "" && pc.OAuth2.ClientSecret != ""
}
