// Package server implements the GroundStore HTTP service endpoint.
//
// The endpoint exposes the remote-object tool calls (s3get, s3read,
// s3download, s3upload, s3cache, csget, csput) alongside the health probe
// and Prometheus metrics.
package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/groundstore/groundstore/internal/asset"
	"github.com/groundstore/groundstore/internal/config"
	"github.com/groundstore/groundstore/internal/fetch"
)

// Server is the GroundStore HTTP server.
type Server struct {
	cfg        *config.Config
	router     chi.Router
	api        huma.API
	tools      *ToolHandler
	httpServer *http.Server
}

// HealthBody is the JSON body returned by the health check endpoint.
type HealthBody struct {
	Status string `json:"status" example:"ok" doc:"Health status"`
}

// HealthOutput is the Huma output struct for the health check endpoint.
type HealthOutput struct {
	Body HealthBody
}

// New creates a Server wired with the given fetch client and asset
// directory.
func New(cfg *config.Config, client *fetch.Client, assets *asset.Directory) *Server {
	router := chi.NewMux()

	humaConfig := huma.DefaultConfig("GroundStore I/O API", "1.0.0")
	humaConfig.DocsPath = "/docs"
	humaConfig.OpenAPIPath = "/openapi"
	api := humachi.New(router, humaConfig)

	s := &Server{
		cfg:    cfg,
		router: router,
		api:    api,
		tools: &ToolHandler{
			Client:        client,
			Assets:        assets,
			DefaultRegion: cfg.Fetch.DefaultRegion,
			DefaultAsset:  cfg.Fetch.DefaultAsset,
		},
	}

	s.registerRoutes()
	return s
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server, waiting for in-flight
// requests to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the root handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// registerRoutes configures all routes on the chi router.
func (s *Server) registerRoutes() {
	if s.cfg.Observability.HealthCheck {
		huma.Register(s.api, huma.Operation{
			OperationID: "get-health",
			Method:      http.MethodGet,
			Path:        "/health",
			Summary:     "Health check",
			Description: "Returns the health status of the GroundStore server.",
			Tags:        []string{"System"},
		}, func(ctx context.Context, input *struct{}) (*HealthOutput, error) {
			return &HealthOutput{Body: HealthBody{Status: "ok"}}, nil
		})
	}

	if s.cfg.Observability.Metrics {
		s.router.Handle("/metrics", promhttp.Handler())
	}

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/s3get", s.tools.S3Get)
		r.Post("/s3read", s.tools.S3Read)
		r.Post("/s3download", s.tools.S3Download)
		r.Post("/s3upload", s.tools.S3Upload)
		r.Post("/s3cache", s.tools.S3Cache)
		r.Get("/csget", s.tools.CSGet)
		r.Post("/csput", s.tools.CSPut)
	})
}
