package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/edvin/integrations/internal/api/response"
)

type contextKey string

const identityKey contextKey = "api_key_identity"

// Identity is the authenticated caller. Every API key belongs to exactly
// one tenant; all data access downstream is scoped to that tenant.
type Identity struct {
	KeyID    string
	TenantID string
}

// GetIdentity returns the authenticated identity, or nil outside the auth
// middleware.
func GetIdentity(ctx context.Context) *Identity {
	identity, _ := ctx.Value(identityKey).(*Identity)
	return identity
}

// WithIdentity injects an identity into the context. Used by tests.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// Auth returns a middleware that validates the X-API-Key header against the
// api_keys table and binds the request to the key's tenant.
func Auth(pool *pgxpool.Pool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				response.WriteError(w, http.StatusUnauthorized, "missing API key")
				return
			}

			hash := sha256.Sum256([]byte(key))
			keyHash := hex.EncodeToString(hash[:])

			var identity Identity
			err := pool.QueryRow(r.Context(),
				`SELECT id, tenant_id FROM api_keys WHERE key_hash = $1 AND revoked_at IS NULL`, keyHash,
			).Scan(&identity.KeyID, &identity.TenantID)
			if err != nil {
				response.WriteError(w, http.StatusUnauthorized, "invalid API key")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), &identity)))
		})
	}
}
