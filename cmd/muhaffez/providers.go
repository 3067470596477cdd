package main

import (
	"fmt"
	"strings"

	"github.com/amrmuhaffez/muhaffez/internal/config"
	"github.com/amrmuhaffez/muhaffez/pkg/classifier"
	"github.com/amrmuhaffez/muhaffez/pkg/classifier/remote"
	"github.com/amrmuhaffez/muhaffez/pkg/provider/embeddings"
	oaembed "github.com/amrmuhaffez/muhaffez/pkg/provider/embeddings/openai"
)

// registerBuiltinProviders wires the factories that need nothing but their
// config entry. The "vector" classifier depends on the stores and is
// registered by the app itself.
func registerBuiltinProviders(reg *config.Registry) {
	reg.RegisterEmbeddings("openai", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []oaembed.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaembed.WithBaseURL(entry.BaseURL))
		}
		if entry.Timeout > 0 {
			opts = append(opts, oaembed.WithTimeout(entry.Timeout))
		}
		if n := optInt(entry.Options, "dimensions"); n > 0 {
			opts = append(opts, oaembed.WithDimensions(n))
		}
		return oaembed.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterClassifier("remote", func(entry config.ProviderEntry) (classifier.Classifier, error) {
		if entry.BaseURL == "" {
			return nil, fmt.Errorf("remote classifier: base_url is required")
		}
		var opts []remote.Option
		if entry.Timeout > 0 {
			opts = append(opts, remote.WithTimeout(entry.Timeout))
		}
		if k := optInt(entry.Options, "top_k"); k > 0 {
			opts = append(opts, remote.WithTopK(k))
		}
		if entry.APIKey != "" {
			opts = append(opts, remote.WithHeader("Authorization", "Bearer "+entry.APIKey))
		}
		return remote.New(entry.BaseURL, opts...), nil
	})
}

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        muhaffez startup summary       ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("Corpus", cfg.Corpus.Path)
	printRow("Embeddings", providerLabel(cfg.Providers.Embeddings))
	names := make([]string, len(cfg.Providers.Classifiers))
	for i, c := range cfg.Providers.Classifiers {
		names[i] = c.Name
	}
	if len(names) == 0 {
		printRow("Classifiers", "(scan only)")
	} else {
		printRow("Classifiers", strings.Join(names, " > "))
	}
	switch {
	case cfg.Store.PostgresDSN != "":
		printRow("History", "postgres")
	case cfg.Store.SQLitePath != "":
		printRow("History", "sqlite")
	default:
		printRow("History", "(disabled)")
	}
	printRow("Listen addr", cfg.Server.ListenAddr)
	fmt.Println("╚═══════════════════════════════════════╝")
}

func providerLabel(e config.ProviderEntry) string {
	switch {
	case e.Name == "":
		return "(not configured)"
	case e.Model != "":
		return e.Name + " / " + e.Model
	default:
		return e.Name
	}
}

func printRow(key, value string) {
	if r := []rune(value); len(r) > 19 {
		value = string(r[:18]) + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", key, value)
}

// optInt extracts an integer from a provider Options map. YAML decodes
// numbers into int, so float64 only shows up for values set in code.
func optInt(opts map[string]any, key string) int {
	switch v := opts[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}
