package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; everything else
// needs a restart and is reported in RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// MatcherChanged is set when any matcher tuning differs. New sessions
	// pick up the new tuning; running sessions keep theirs.
	MatcherChanged bool
	NewMatcher     MatcherConfig

	// RestartRequired names the sections whose changes are ignored until
	// the next start.
	RestartRequired []string
}

// Empty reports whether nothing changed.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.MatcherChanged && len(d.RestartRequired) == 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Matcher != new.Matcher {
		d.MatcherChanged = true
		d.NewMatcher = new.Matcher
	}

	if old.Server.ListenAddr != new.Server.ListenAddr || old.Server.MaxSessions != new.Server.MaxSessions || !sameTLS(old.Server.TLS, new.Server.TLS) {
		d.RestartRequired = append(d.RestartRequired, "server")
	}
	if old.Corpus != new.Corpus {
		d.RestartRequired = append(d.RestartRequired, "corpus")
	}
	if !sameProviders(old.Providers, new.Providers) {
		d.RestartRequired = append(d.RestartRequired, "providers")
	}
	if old.Store != new.Store {
		d.RestartRequired = append(d.RestartRequired, "store")
	}
	return d
}

func sameTLS(a, b *TLSConfig) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// sameProviders ignores the free-form Options maps.
func sameProviders(a, b ProvidersConfig) bool {
	same := func(x, y ProviderEntry) bool {
		return x.Name == y.Name && x.APIKey == y.APIKey && x.BaseURL == y.BaseURL && x.Model == y.Model && x.Timeout == y.Timeout
	}
	if !same(a.Embeddings, b.Embeddings) || len(a.Classifiers) != len(b.Classifiers) {
		return false
	}
	for i := range a.Classifiers {
		if !same(a.Classifiers[i], b.Classifiers[i]) {
			return false
		}
	}
	return true
}
