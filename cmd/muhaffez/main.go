// Command muhaffez serves the recitation matcher and offers offline tools
// for the corpus and the vector index.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/amrmuhaffez/muhaffez/internal/app"
	"github.com/amrmuhaffez/muhaffez/internal/config"
	"github.com/amrmuhaffez/muhaffez/internal/observe"
	"github.com/amrmuhaffez/muhaffez/internal/recitation"
	"github.com/amrmuhaffez/muhaffez/pkg/classifier/vector"
	"github.com/amrmuhaffez/muhaffez/pkg/corpus"
	"github.com/amrmuhaffez/muhaffez/pkg/store/postgres"
)

var version = "dev"

// CLI defines the command-line interface.
var CLI struct {
	Config string `name:"config" short:"c" default:"config.yaml" type:"path" help:"Path to the YAML configuration file"`

	Serve   ServeCmd   `cmd:"" default:"1" help:"Run the HTTP and websocket server"`
	Locate  LocateCmd  `cmd:"" help:"Locate a transcript in the corpus"`
	Inspect InspectCmd `cmd:"" help:"Show corpus lines by index or text"`
	Index   IndexCmd   `cmd:"" help:"Build the vector line index in PostgreSQL"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

// ServeCmd runs the server until SIGINT or SIGTERM.
type ServeCmd struct {
	Watch time.Duration `default:"5s" help:"Config reload polling interval; 0 disables reloading"`
}

func (c *ServeCmd) Run() error {
	cfg, err := loadConfig(CLI.Config)
	if err != nil {
		return err
	}

	var level slog.LevelVar
	level.Set(app.SlogLevel(cfg.Server.LogLevel))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &level})))

	slog.Info("muhaffez starting",
		"version", version,
		"config", CLI.Config,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)
	printStartupSummary(cfg)

	application, err := app.New(ctx, cfg, reg,
		app.WithMetricsHandler(tel.Handler()),
		app.WithLogLevel(&level),
	)
	if err != nil {
		return fmt.Errorf("initialise application: %w", err)
	}

	if c.Watch > 0 {
		w, err := config.NewWatcher(CLI.Config, func(old, new *config.Config) {
			application.Reload(config.Diff(old, new))
		}, config.WithInterval(c.Watch))
		if err != nil {
			slog.Warn("config reloading disabled", "err", err)
		} else {
			defer w.Stop()
		}
	}

	slog.Info("server ready; press Ctrl+C to shut down")
	runErr := application.Run(ctx)
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	slog.Info("stopping")
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	if err := tel.Shutdown(shutdownCtx); err != nil {
		slog.Warn("telemetry shutdown error", "err", err)
	}
	if runErr != nil {
		return runErr
	}
	slog.Info("goodbye")
	return nil
}

// LocateCmd runs the whole search on one transcript without the debounce.
type LocateCmd struct {
	Text string `arg:"" help:"Transcript to locate"`
	Scan bool   `help:"Skip the classifier and force the exhaustive scan"`
}

func (c *LocateCmd) Run() error {
	cfg, idx, err := loadCorpus()
	if err != nil {
		return err
	}
	opts := []recitation.Option{recitation.WithConfig(cfg.Matcher.Recitation())}
	if !c.Scan && len(cfg.Providers.Classifiers) > 0 {
		reg := config.NewRegistry()
		registerBuiltinProviders(reg)
		for _, entry := range cfg.Providers.Classifiers {
			cl, err := reg.CreateClassifier(entry)
			if err != nil {
				slog.Warn("classifier unavailable", "name", entry.Name, "err", err)
				continue
			}
			opts = append(opts, recitation.WithClassifier(cl))
			break
		}
	}

	res := recitation.NewLocator(idx, opts...).Locate(context.Background(), c.Text)
	out := map[string]any{
		"found":      res.Found,
		"opening":    res.Opening,
		"candidates": res.Candidates,
	}
	if res.Found {
		out["line"] = res.Line
		out["path"] = res.Path
		out["score"] = res.Score
		out["text"] = idx.Line(res.Line).Text()
		out["page"] = idx.PageNumber(res.Line)
		out["surah"] = idx.SurahNameForLine(res.Line)
	}
	return printJSON(out)
}

// InspectCmd prints corpus lines with their page structure.
type InspectCmd struct {
	Line     int    `default:"-1" help:"Line index to show"`
	Contains string `help:"Show lines containing this phrase"`
	Prefix   string `help:"Show the first line starting with this phrase"`
}

func (c *InspectCmd) Run() error {
	_, idx, err := loadCorpus()
	if err != nil {
		return err
	}
	var hits []int
	switch {
	case c.Line >= 0:
		if idx.Line(c.Line) == nil {
			return fmt.Errorf("line %d out of range [0, %d)", c.Line, idx.Len())
		}
		hits = []int{c.Line}
	case c.Contains != "":
		hits = idx.FindContaining(c.Contains)
	case c.Prefix != "":
		if i, ok := idx.FindLineStartingWith(c.Prefix); ok {
			hits = []int{i}
		}
	default:
		return printJSON(map[string]any{
			"lines":       idx.Len(),
			"pages":       idx.Pages(),
			"fingerprint": idx.Fingerprint(),
		})
	}

	out := make([]map[string]any, len(hits))
	for k, i := range hits {
		out[k] = map[string]any{
			"index": i,
			"text":  idx.Line(i).Text(),
			"page":  idx.PageNumber(i),
			"juz":   idx.JuzNumber(i),
			"rub3":  idx.Rub3Number(i),
			"surah": idx.SurahNameForLine(i),
		}
	}
	return printJSON(out)
}

// IndexCmd embeds every corpus line into the PostgreSQL line index.
type IndexCmd struct {
	Force       bool `help:"Rebuild even when the stored index is current"`
	BatchSize   int  `default:"128" help:"Lines per embeddings request"`
	Concurrency int  `default:"4" help:"Concurrent embeddings requests"`
}

func (c *IndexCmd) Run() error {
	cfg, idx, err := loadCorpus()
	if err != nil {
		return err
	}
	if cfg.Store.PostgresDSN == "" {
		return errors.New("index: store.postgres_dsn is required")
	}
	if cfg.Providers.Embeddings.Name == "" {
		return errors.New("index: providers.embeddings is required")
	}
	if idx.Len() == 0 {
		return errors.New("index: the corpus is empty")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)
	emb, err := reg.CreateEmbeddings(cfg.Providers.Embeddings)
	if err != nil {
		return fmt.Errorf("index: %w", err)
	}
	pg, err := postgres.NewStore(ctx, cfg.Store.PostgresDSN, cfg.Store.EmbeddingDimensions)
	if err != nil {
		return fmt.Errorf("index: %w", err)
	}
	defer pg.Close()

	ix := vector.NewIndexer(emb, pg.Lines(),
		vector.WithBatchSize(c.BatchSize),
		vector.WithConcurrency(c.Concurrency),
	)
	built, err := ix.Build(ctx, idx, c.Force)
	if err != nil {
		return err
	}
	if !built {
		fmt.Println("vector index is already current; use --force to rebuild")
	}
	return nil
}

// VersionCmd prints the build version.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("muhaffez version %s\n", version)
	return nil
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("muhaffez"),
		kong.Description("Follows a Quran recitation and places it on the mushaf page"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config file %q not found; copy configs/example.yaml to get started", path)
		}
		return nil, err
	}
	return cfg, nil
}

// loadCorpus loads the config and the corpus for the offline commands. Log
// output stays on warnings so the JSON on stdout is readable.
func loadCorpus() (*config.Config, *corpus.Index, error) {
	cfg, err := loadConfig(CLI.Config)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))
	idx, err := corpus.LoadFile(cfg.Corpus.Path)
	if err != nil {
		return nil, nil, err
	}
	return cfg, idx, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
