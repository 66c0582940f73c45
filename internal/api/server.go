package api

import (
	"context"
	_ "embed"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/edvin/integrations/internal/api/handler"
	mw "github.com/edvin/integrations/internal/api/middleware"
	"github.com/edvin/integrations/internal/audit"
	"github.com/edvin/integrations/internal/config"
	"github.com/edvin/integrations/internal/core"
	"github.com/edvin/integrations/internal/crypto"
	"github.com/edvin/integrations/internal/provider"
)

//go:embed docs/openapi.json
var openapiJSON []byte

type Server struct {
	router   chi.Router
	logger   zerolog.Logger
	services *core.Services
	registry *provider.Registry
	corePool *pgxpool.Pool
	cfg      *config.Config
	recorder *audit.Recorder
}

// NewServer wires the full API: keyring, vault, state codec, provider
// registry, audit recorder, and services. Fails when the master key is
// missing or malformed.
func NewServer(logger zerolog.Logger, pool *pgxpool.Pool, cfg *config.Config) (*Server, error) {
	keyring, err := crypto.NewKeyring(cfg.MasterKeySecret, cfg.VaultKeyVersion)
	if err != nil {
		return nil, err
	}
	vault := crypto.NewVault(keyring)
	states, err := crypto.NewStateCodec(keyring)
	if err != nil {
		return nil, err
	}

	registry := provider.NewRegistry(cfg)
	recorder := audit.NewRecorder(pool, logger)
	services := core.NewServices(pool, registry, vault, states, recorder, cfg.AppBaseURL)

	s := &Server{
		router:   chi.NewRouter(),
		logger:   logger,
		services: services,
		registry: registry,
		corePool: pool,
		cfg:      cfg,
		recorder: recorder,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s, nil
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(mw.Metrics)
}

func (s *Server) setupRoutes() {
	// Prometheus metrics endpoint
	s.router.Handle("/metrics", promhttp.Handler())

	// Health check endpoints
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)

	// API documentation (no auth required)
	s.router.Get("/docs/openapi.json", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(openapiJSON)
	})
	s.router.Get("/docs", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(scalarHTML))
	})

	// The provider redirects the user's browser here; there is no API key
	// on this request. The sealed state token is the only credential.
	oauth := handler.NewOAuth(s.services.Connect, s.cfg.UIRedirectURL, s.logger)
	s.router.Get("/api/oauth/{provider}/callback", oauth.Callback)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.Auth(s.corePool))

		prov := handler.NewProvider(s.registry)
		r.Get("/providers", prov.List)

		integration := handler.NewIntegration(s.services.Connect, s.services.Credential)
		r.Get("/projects/{projectID}/integrations", integration.List)
		r.Post("/projects/{projectID}/integrations/{provider}/authorize-url", integration.AuthorizeURL)
		r.Post("/projects/{projectID}/integrations/{provider}", integration.Connect)
		r.Post("/projects/{projectID}/integrations/{provider}/test", integration.Test)
		r.Delete("/projects/{projectID}/integrations/{provider}", integration.Disconnect)

		auditHandler := handler.NewAudit(s.services.Audit)
		r.Get("/projects/{projectID}/audit-events", auditHandler.List)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if err := s.corePool.Ping(ctx); err != nil {
		checks["core_db"] = err.Error()
		healthy = false
	} else {
		checks["core_db"] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(checks)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close flushes the audit recorder. Call after the HTTP server has stopped.
func (s *Server) Close() {
	s.recorder.Close()
}

const scalarHTML = `<!DOCTYPE html>
<html>
<head>
  <title>Integrations API</title>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
</head>
<body>
  <script id="api-reference" data-url="/docs/openapi.json"></script>
  <script src="https://cdn.jsdelivr.net/npm/@scalar/api-reference"></script>
</body>
</html>`
