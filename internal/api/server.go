// Package api provides the HTTP API server and handlers for the picsapp server.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"github.com/picsapp/picsapp-server/internal/validation"
)

// Options configures the non-huma parts of the router.
type Options struct {
	// AllowedOrigins is passed to CORS. Empty means any origin.
	AllowedOrigins []string
	// UploadDir is served read-only under /uploads/.
	UploadDir string
	// StaticDir, when set, is served at the root for the web client.
	StaticDir string
	// MaxUploadBytes caps POST /api/upload bodies.
	MaxUploadBytes int64
}

// Streams holds the live viewer transports.
type Streams struct {
	SSE http.Handler
	WS  http.Handler
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	services  *Services
	streams   Streams
	opts      Options
	router    *chi.Mux
	api       huma.API
	validator *validation.Validator
	logger    *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(services *Services, streams Streams, opts Options, logger *slog.Logger) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = MaxUploadSize
	}

	s := &Server{
		services:  services,
		streams:   streams,
		opts:      opts,
		router:    chi.NewRouter(),
		validator: validation.New(),
		logger:    logger,
	}

	// chi requires middleware before any route, and humachi.New registers the docs routes.
	s.setupMiddleware()

	config := huma.DefaultConfig("picsapp API", "1.0.0")
	config.Info.Description = "Image ingest, conversion and live ranking."
	s.api = humachi.New(s.router, config)
	RegisterErrorHandler()

	s.registerHealthRoutes()
	s.registerPictureRoutes()
	s.registerTaskRoutes()
	s.registerRawRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API exposes the huma API, mainly for tests and OpenAPI export.
func (s *Server) API() huma.API {
	return s.api
}

// registerRawRoutes mounts the handlers that huma cannot describe:
// multipart upload, streaming transports and static files.
func (s *Server) registerRawRoutes() {
	s.router.Post("/api/upload", s.handleUpload)

	if s.streams.SSE != nil {
		s.router.Get("/api/stream", s.streams.SSE.ServeHTTP)
	}
	if s.streams.WS != nil {
		s.router.Get("/ws", s.streams.WS.ServeHTTP)
	}

	if s.opts.UploadDir != "" {
		s.router.Get("/uploads/*", s.handleUploadedFile)
	}
	if s.opts.StaticDir != "" {
		s.router.Handle("/*", http.FileServer(http.Dir(s.opts.StaticDir)))
	}
}
