// Package server exposes the recitation engine over HTTP.
//
// Routes:
//
//	GET  /healthz, /readyz       liveness and readiness
//	GET  /metrics                Prometheus exposition, when configured
//	POST /v1/locate              one-shot location of a transcript
//	GET  /v1/lines/{index}       a corpus line with its page structure
//	GET  /v1/lines?q=...         lines containing a phrase
//	GET  /v1/history             recent session summaries
//	GET  /v1/session             live session over a websocket
package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/amrmuhaffez/muhaffez/internal/health"
	"github.com/amrmuhaffez/muhaffez/internal/observe"
	"github.com/amrmuhaffez/muhaffez/internal/recitation"
	"github.com/amrmuhaffez/muhaffez/pkg/corpus"
	"github.com/amrmuhaffez/muhaffez/pkg/store"
)

// Sessions creates and tracks live recitation sessions.
type Sessions interface {
	// Start opens a session whose changes are delivered to onChange.
	Start(onChange func(recitation.Snapshot)) (id string, s *recitation.Session, err error)

	// Reset records the session so far and clears it.
	Reset(ctx context.Context, id string) error

	// Stop records and closes the session.
	Stop(ctx context.Context, id string) error
}

// History lists finished sessions.
type History interface {
	Recent(ctx context.Context, limit int) ([]store.Summary, error)
}

// Config holds the server's collaborators. Index, Locator and Sessions are
// required.
type Config struct {
	Index    *corpus.Index
	Locator  *recitation.Locator
	Sessions Sessions

	// History enables /v1/history.
	History History

	// Health serves the probes. Defaults to a handler without checks.
	Health *health.Handler

	// Metrics is mounted on /metrics when set.
	Metrics http.Handler

	// Instruments records request latency. Defaults to observe.DefaultMetrics.
	Instruments *observe.Metrics
}

// Server is the HTTP front end. It implements http.Handler.
type Server struct {
	router chi.Router
	cfg    Config
}

// New builds the router.
func New(cfg Config) *Server {
	if cfg.Health == nil {
		cfg.Health = health.New()
	}
	if cfg.Instruments == nil {
		cfg.Instruments = observe.DefaultMetrics()
	}
	s := &Server{cfg: cfg}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(observe.Middleware(s.cfg.Instruments))

	s.cfg.Health.Mount(r)
	if s.cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.cfg.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/locate", s.handleLocate)
		r.Get("/lines", s.handleSearchLines)
		r.Get("/lines/{index}", s.handleLine)
		r.Get("/history", s.handleHistory)
		r.Get("/session", s.handleSession)
	})

	s.router = r
}
