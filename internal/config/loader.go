package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"embeddings": {"openai"},
	"classifier": {"vector", "remote"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and
// validates the result. An empty document yields the default config.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.ApplyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.MaxSessions < 0 {
		errs = append(errs, fmt.Errorf("server.max_sessions %d must not be negative", cfg.Server.MaxSessions))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	errs = append(errs, validateMatcher(cfg.Matcher)...)

	validateProviderName("embeddings", cfg.Providers.Embeddings.Name)
	seen := make(map[string]int, len(cfg.Providers.Classifiers))
	for i, c := range cfg.Providers.Classifiers {
		prefix := fmt.Sprintf("providers.classifiers[%d]", i)
		if c.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		if prev, ok := seen[c.Name]; ok {
			errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of providers.classifiers[%d]", prefix, c.Name, prev))
		}
		seen[c.Name] = i
		validateProviderName("classifier", c.Name)

		switch c.Name {
		case "vector":
			if cfg.Providers.Embeddings.Name == "" {
				errs = append(errs, fmt.Errorf("%s: vector classifier requires providers.embeddings", prefix))
			}
			if cfg.Store.PostgresDSN == "" {
				errs = append(errs, fmt.Errorf("%s: vector classifier requires store.postgres_dsn", prefix))
			}
		case "remote":
			if c.BaseURL == "" {
				errs = append(errs, fmt.Errorf("%s.base_url is required for the remote classifier", prefix))
			}
		}
	}

	if cfg.Store.EmbeddingDimensions < 0 {
		errs = append(errs, fmt.Errorf("store.embedding_dimensions %d must not be negative", cfg.Store.EmbeddingDimensions))
	}
	if cfg.Store.PostgresDSN != "" && cfg.Store.SQLitePath != "" {
		slog.Warn("both store.postgres_dsn and store.sqlite_path are set; session history uses PostgreSQL")
	}

	return errors.Join(errs...)
}

func validateMatcher(m MatcherConfig) []error {
	var errs []error
	unit := func(name string, v float64) {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("matcher.%s %.2f is out of range [0, 1]", name, v))
		}
	}
	unit("match_threshold", m.MatchThreshold)
	unit("lax_threshold", m.LaxThreshold)
	unit("seek_threshold", m.SeekThreshold)
	unit("classifier_accept", m.ClassifierAccept)
	unit("scan_accept", m.ScanAccept)
	unit("early_exit", m.EarlyExit)

	for name, v := range map[string]int{
		"backward_window":        m.BackwardWindow,
		"forward_window":         m.ForwardWindow,
		"window_lines":           m.WindowLines,
		"min_locate_runes":       m.MinLocateRunes,
		"confident_locate_runes": m.ConfidentLocateRunes,
		"classifier_top_k":       m.ClassifierTopK,
		"peek_words":             m.PeekWords,
	} {
		if v < 0 {
			errs = append(errs, fmt.Errorf("matcher.%s %d must not be negative", name, v))
		}
	}
	if m.FallbackDelay < 0 || m.PeekDelay < 0 || m.ClassifierTimeout < 0 {
		errs = append(errs, errors.New("matcher durations must not be negative"))
	}

	// Checked against the merged values so a single override cannot invert
	// the defaults.
	merged := m.Recitation()
	if merged.LaxThreshold > merged.MatchThreshold {
		errs = append(errs, fmt.Errorf("matcher.lax_threshold %.2f exceeds match_threshold %.2f", merged.LaxThreshold, merged.MatchThreshold))
	}
	slices.SortFunc(errs, func(a, b error) int { return strings.Compare(a.Error(), b.Error()) })
	return errs
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok || slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name; may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
