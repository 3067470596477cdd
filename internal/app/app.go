// Package app wires the muhaffez subsystems into a running server.
//
// New loads the corpus, connects the stores, builds the classifier chain and
// the HTTP server; Run serves until the context ends; Shutdown tears
// everything down in order. Tests inject doubles through the With* options;
// anything not injected is created from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/amrmuhaffez/muhaffez/internal/config"
	"github.com/amrmuhaffez/muhaffez/internal/health"
	"github.com/amrmuhaffez/muhaffez/internal/observe"
	"github.com/amrmuhaffez/muhaffez/internal/recitation"
	"github.com/amrmuhaffez/muhaffez/internal/resilience"
	"github.com/amrmuhaffez/muhaffez/internal/server"
	"github.com/amrmuhaffez/muhaffez/pkg/classifier"
	"github.com/amrmuhaffez/muhaffez/pkg/classifier/vector"
	"github.com/amrmuhaffez/muhaffez/pkg/corpus"
	"github.com/amrmuhaffez/muhaffez/pkg/provider/embeddings"
	"github.com/amrmuhaffez/muhaffez/pkg/store"
	"github.com/amrmuhaffez/muhaffez/pkg/store/postgres"
	"github.com/amrmuhaffez/muhaffez/pkg/store/sqlite"
)

const shutdownGrace = 10 * time.Second

// App owns all subsystem lifetimes.
type App struct {
	cfg      *config.Config
	registry *config.Registry

	idx        *corpus.Index
	embedder   embeddings.Provider
	lines      store.LineIndex
	history    store.SessionLog
	classifier classifier.Classifier
	metrics    *observe.Metrics
	metricsH   http.Handler
	level      *slog.LevelVar

	sessions *SessionManager
	handler  http.Handler
	checks   []health.Checker

	// closers are called in order during Shutdown.
	closers  []func() error
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithIndex uses idx instead of loading cfg.Corpus.Path.
func WithIndex(idx *corpus.Index) Option {
	return func(a *App) { a.idx = idx }
}

// WithSessionLog injects the session history store.
func WithSessionLog(l store.SessionLog) Option {
	return func(a *App) { a.history = l }
}

// WithLineIndex injects the vector line index used by the vector classifier.
func WithLineIndex(l store.LineIndex) Option {
	return func(a *App) { a.lines = l }
}

// WithEmbeddings injects the embeddings provider.
func WithEmbeddings(p embeddings.Provider) Option {
	return func(a *App) { a.embedder = p }
}

// WithMetrics records instruments on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithMetricsHandler serves h on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.metricsH = h }
}

// WithLogLevel lets [App.Reload] change the level of the default logger.
func WithLogLevel(v *slog.LevelVar) Option {
	return func(a *App) { a.level = v }
}

// New creates an App from cfg. reg resolves the configured embeddings and
// classifier backends; the "vector" classifier is registered here because it
// needs the line index New connects.
func New(ctx context.Context, cfg *config.Config, reg *config.Registry, opts ...Option) (*App, error) {
	a := &App{cfg: cfg, registry: reg}
	for _, o := range opts {
		o(a)
	}
	if a.registry == nil {
		a.registry = config.NewRegistry()
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	a.initCorpus()
	if err := a.initStores(ctx); err != nil {
		a.closeAll(context.Background())
		return nil, fmt.Errorf("app: init stores: %w", err)
	}
	if err := a.initEmbeddings(); err != nil {
		a.closeAll(context.Background())
		return nil, fmt.Errorf("app: init embeddings: %w", err)
	}
	if err := a.initClassifiers(ctx); err != nil {
		a.closeAll(context.Background())
		return nil, fmt.Errorf("app: init classifiers: %w", err)
	}
	a.initServer()
	return a, nil
}

// initCorpus loads the line asset. A failed load leaves an empty index: the
// server still starts, locating finds nothing and /readyz reports the
// corpus as failing.
func (a *App) initCorpus() {
	if a.idx == nil {
		idx, err := corpus.LoadFile(a.cfg.Corpus.Path)
		if err != nil {
			slog.Error("failed to load corpus; serving an empty index", "path", a.cfg.Corpus.Path, "err", err)
		}
		a.idx = idx
	}
	a.checks = append(a.checks, health.NonEmpty("corpus", a.idx.Len))
	slog.Info("corpus loaded", "lines", a.idx.Len(), "pages", a.idx.Pages(), "fingerprint", a.idx.Fingerprint())
}

func (a *App) initStores(ctx context.Context) error {
	sc := a.cfg.Store
	if sc.PostgresDSN != "" && (a.lines == nil || a.history == nil) {
		pg, err := postgres.NewStore(ctx, sc.PostgresDSN, sc.EmbeddingDimensions)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() error {
			pg.Close()
			return nil
		})
		a.checks = append(a.checks, health.Ping("postgres", pg))
		if a.lines == nil {
			a.lines = pg.Lines()
		}
		if a.history == nil {
			a.history = pg.Sessions()
		}
		slog.Info("connected to postgres")
	}
	if a.history == nil && sc.SQLitePath != "" {
		lite, err := sqlite.Open(ctx, sc.SQLitePath)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, lite.Close)
		a.checks = append(a.checks, health.Ping("sqlite", lite))
		a.history = lite
		slog.Info("opened session history", "path", sc.SQLitePath)
	}
	if a.history == nil {
		slog.Warn("no session store configured; session history is disabled")
	}
	return nil
}

func (a *App) initEmbeddings() error {
	entry := a.cfg.Providers.Embeddings
	if a.embedder != nil || entry.Name == "" {
		return nil
	}
	p, err := a.registry.CreateEmbeddings(entry)
	if err != nil {
		return fmt.Errorf("create embeddings provider %q: %w", entry.Name, err)
	}
	a.embedder = p
	slog.Info("provider created", "kind", "embeddings", "name", entry.Name, "model", p.ModelID())
	return nil
}

// initClassifiers chains the configured backends behind circuit breakers.
// A backend that cannot be created is skipped with a warning; the locator
// then relies on the remaining backends or the full scan.
func (a *App) initClassifiers(ctx context.Context) error {
	if a.embedder != nil && a.lines != nil {
		a.registry.RegisterClassifier("vector", func(config.ProviderEntry) (classifier.Classifier, error) {
			return vector.New(a.embedder, a.lines, vector.WithTopK(a.cfg.Matcher.Recitation().ClassifierTopK)), nil
		})
		a.warnIfStale(ctx)
	}

	entries := a.cfg.Providers.Classifiers
	if len(entries) == 0 {
		return nil
	}
	chain := resilience.NewClassifierFallback(resilience.FallbackConfig{})
	for _, entry := range entries {
		c, err := a.registry.CreateClassifier(entry)
		if err != nil {
			if errors.Is(err, config.ErrProviderNotRegistered) {
				slog.Warn("classifier backend unavailable; skipping", "name", entry.Name, "err", err)
				continue
			}
			return fmt.Errorf("create classifier %q: %w", entry.Name, err)
		}
		chain.Add(entry.Name, c)
		slog.Info("provider created", "kind", "classifier", "name", entry.Name)
	}
	if chain.Len() > 0 {
		a.classifier = chain
	}
	return nil
}

func (a *App) warnIfStale(ctx context.Context) {
	ix := vector.NewIndexer(a.embedder, a.lines)
	current, err := ix.Current(ctx, a.idx)
	switch {
	case err != nil:
		slog.Warn("cannot check vector index", "err", err)
	case !current:
		slog.Warn("vector index is missing or stale; run `muhaffez index` to rebuild it")
	}
}

func (a *App) initServer() {
	cfg := a.cfg.Matcher.Recitation()
	a.sessions = NewSessionManager(SessionManagerConfig{
		Index:       a.idx,
		Matcher:     cfg,
		Classifier:  a.classifier,
		History:     a.history,
		Metrics:     a.metrics,
		MaxSessions: a.cfg.Server.MaxSessions,
	})

	locOpts := []recitation.Option{recitation.WithConfig(cfg), recitation.WithMetrics(a.metrics)}
	if a.classifier != nil {
		locOpts = append(locOpts, recitation.WithClassifier(a.classifier))
	}

	a.handler = server.New(server.Config{
		Index:       a.idx,
		Locator:     recitation.NewLocator(a.idx, locOpts...),
		Sessions:    a.sessions,
		History:     a.history,
		Health:      health.New(a.checks...),
		Metrics:     a.metricsH,
		Instruments: a.metrics,
	})
}

// Handler returns the HTTP handler, for tests and embedding.
func (a *App) Handler() http.Handler { return a.handler }

// Sessions returns the live session manager.
func (a *App) Sessions() *SessionManager { return a.sessions }

// Index returns the loaded corpus.
func (a *App) Index() *corpus.Index { return a.idx }

// Run serves HTTP on cfg.Server.ListenAddr until ctx is cancelled, then
// drains connections for up to [shutdownGrace].
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Server.ListenAddr)
	if err != nil {
		return fmt.Errorf("app: listen: %w", err)
	}
	return a.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("listening", "addr", ln.Addr().String(), "tls", a.cfg.Server.TLS != nil)
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = srv.ServeTLS(ln, tls.CertFile, tls.KeyFile)
		} else {
			err = srv.Serve(ln)
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("app: serve: %w", err)
	}
	return ctx.Err()
}

// Reload applies the hot-reloadable part of a config change.
func (a *App) Reload(d config.ConfigDiff) {
	if d.LogLevelChanged && a.level != nil {
		a.level.Set(SlogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.MatcherChanged {
		a.sessions.SetMatcher(d.NewMatcher.Recitation())
		slog.Info("matcher tuning changed; applies to new sessions")
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config sections changed that need a restart", "sections", d.RestartRequired)
	}
}

// Shutdown stops all sessions, recording their history, then runs the
// closers. Remaining closers are skipped once ctx expires.
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "sessions", a.sessions.Len(), "closers", len(a.closers))
		a.sessions.StopAll(ctx)
		err = a.closeAll(ctx)
		slog.Info("shutdown complete")
	})
	return err
}

func (a *App) closeAll(ctx context.Context) error {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if ctx.Err() != nil {
			slog.Warn("shutdown deadline exceeded", "remaining", i+1)
			return ctx.Err()
		}
		if err := a.closers[i](); err != nil {
			slog.Warn("closer error", "index", i, "err", err)
		}
	}
	a.closers = nil
	return nil
}

// SlogLevel maps a config level to slog.
func SlogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
