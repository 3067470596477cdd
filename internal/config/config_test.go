package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/amrmuhaffez/muhaffez/internal/config"
	"github.com/amrmuhaffez/muhaffez/internal/recitation"
	"github.com/amrmuhaffez/muhaffez/pkg/classifier"
	"github.com/amrmuhaffez/muhaffez/pkg/provider/embeddings"
	embeddingsmock "github.com/amrmuhaffez/muhaffez/pkg/provider/embeddings/mock"
)

const sampleYAML = `
server:
  listen_addr: ":9000"
  log_level: debug
  max_sessions: 64

corpus:
  path: assets/lines.txt.xz

matcher:
  scan_accept: 0.55
  fallback_delay: 750ms
  peek_words: 3

providers:
  embeddings:
    name: openai
    api_key: sk-test
    model: text-embedding-3-small
  classifiers:
    - name: vector
    - name: remote
      base_url: http://localhost:8501/predict
      timeout: 1s

store:
  postgres_dsn: postgres://localhost/muhaffez
  embedding_dimensions: 512
`

func TestLoadFromReader(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.ListenAddr != ":9000" || cfg.Server.LogLevel != config.LogDebug || cfg.Server.MaxSessions != 64 {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Corpus.Path != "assets/lines.txt.xz" {
		t.Errorf("corpus.path = %q", cfg.Corpus.Path)
	}
	if got := cfg.Providers.Classifiers; len(got) != 2 || got[1].Timeout != time.Second {
		t.Errorf("classifiers = %+v", got)
	}
	if cfg.Store.EmbeddingDimensions != 512 {
		t.Errorf("embedding_dimensions = %d, want 512", cfg.Store.EmbeddingDimensions)
	}
}

func TestLoadFromReader_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadFromReader(empty): %v", err)
	}
	if cfg.Server.ListenAddr != ":8080" || cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("server defaults = %+v", cfg.Server)
	}
	if cfg.Corpus.Path == "" {
		t.Error("corpus.path default is empty")
	}
	if cfg.Store.EmbeddingDimensions != 0 {
		t.Errorf("embedding_dimensions = %d without embeddings, want 0", cfg.Store.EmbeddingDimensions)
	}

	cfg, err = config.LoadFromReader(strings.NewReader("providers:\n  embeddings:\n    name: openai\n"))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Store.EmbeddingDimensions != 1536 {
		t.Errorf("embedding_dimensions = %d, want 1536", cfg.Store.EmbeddingDimensions)
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFromReader(strings.NewReader("matcher:\n  treshold: 0.5\n"))
	if err == nil || !strings.Contains(err.Error(), "treshold") {
		t.Errorf("err = %v, want unknown field error", err)
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "muhaffez.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := config.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load(missing) returned nil error")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		wantErr []string
	}{
		{name: "valid", yaml: sampleYAML},
		{name: "log level", yaml: "server:\n  log_level: loud\n", wantErr: []string{`server.log_level "loud"`}},
		{name: "threshold range", yaml: "matcher:\n  match_threshold: 1.5\n  early_exit: -0.1\n", wantErr: []string{"matcher.match_threshold", "matcher.early_exit"}},
		{name: "lax above match", yaml: "matcher:\n  lax_threshold: 0.8\n", wantErr: []string{"lax_threshold 0.80 exceeds match_threshold 0.70"}},
		{name: "negative window", yaml: "matcher:\n  forward_window: -1\n", wantErr: []string{"matcher.forward_window -1"}},
		{name: "tls incomplete", yaml: "server:\n  tls:\n    cert_file: c.pem\n", wantErr: []string{"cert_file and key_file"}},
		{
			name:    "vector needs embeddings and postgres",
			yaml:    "providers:\n  classifiers:\n    - name: vector\n",
			wantErr: []string{"requires providers.embeddings", "requires store.postgres_dsn"},
		},
		{
			name:    "remote needs url",
			yaml:    "providers:\n  classifiers:\n    - name: remote\n",
			wantErr: []string{"base_url is required"},
		},
		{
			name:    "duplicate and unnamed",
			yaml:    "providers:\n  classifiers:\n    - name: remote\n      base_url: http://a\n    - name: remote\n      base_url: http://b\n    - base_url: http://c\n",
			wantErr: []string{"duplicate of providers.classifiers[0]", "providers.classifiers[2].name is required"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := config.LoadFromReader(strings.NewReader(tt.yaml))
			if len(tt.wantErr) == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			for _, want := range tt.wantErr {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("error %q does not contain %q", err, want)
				}
			}
		})
	}
}

func TestMatcherConfig_Recitation(t *testing.T) {
	t.Parallel()

	got := config.MatcherConfig{
		ScanAccept:    0.55,
		FallbackDelay: 750 * time.Millisecond,
		PeekWords:     3,
	}.Recitation()

	want := recitation.DefaultConfig()
	want.ScanAccept = 0.55
	want.FallbackDelay = 750 * time.Millisecond
	want.PeekWords = 3
	if got != want {
		t.Errorf("Recitation() = %+v, want %+v", got, want)
	}
	if (config.MatcherConfig{}).Recitation() != recitation.DefaultConfig() {
		t.Error("zero MatcherConfig does not yield the defaults")
	}
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := config.NewRegistry()
	r.RegisterEmbeddings("mock", func(e config.ProviderEntry) (embeddings.Provider, error) {
		return &embeddingsmock.Provider{Model: e.Model}, nil
	})
	r.RegisterClassifier("fixed", func(config.ProviderEntry) (classifier.Classifier, error) {
		return classifier.Func(func(context.Context, string) ([]classifier.Candidate, error) {
			return []classifier.Candidate{{Line: 3, Probability: 1}}, nil
		}), nil
	})

	emb, err := r.CreateEmbeddings(config.ProviderEntry{Name: "mock", Model: "m1"})
	if err != nil || emb.ModelID() != "m1" {
		t.Fatalf("CreateEmbeddings = %v, %v", emb, err)
	}
	c, err := r.CreateClassifier(config.ProviderEntry{Name: "fixed"})
	if err != nil {
		t.Fatalf("CreateClassifier: %v", err)
	}
	if got, _ := c.Predict(context.Background(), ""); len(got) != 1 || got[0].Line != 3 {
		t.Errorf("Predict = %+v", got)
	}

	_, err = r.CreateClassifier(config.ProviderEntry{Name: "absent"})
	if !errors.Is(err, config.ErrProviderNotRegistered) || !strings.Contains(err.Error(), `classifier/"absent"`) {
		t.Errorf("err = %v, want ErrProviderNotRegistered for classifier/absent", err)
	}
}
