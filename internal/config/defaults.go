package config

const (
	defaultListenAddr = ":8080"
	defaultCorpusPath = "assets/quran-lines.txt.xz"
	defaultDimensions = 1536
)

// ApplyDefaults fills unset fields with their defaults. Matcher fields are
// merged later by [MatcherConfig.Recitation].
func (c *Config) ApplyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = defaultListenAddr
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = LogInfo
	}
	if c.Corpus.Path == "" {
		c.Corpus.Path = defaultCorpusPath
	}
	if c.Providers.Embeddings.Name != "" && c.Store.EmbeddingDimensions <= 0 {
		c.Store.EmbeddingDimensions = defaultDimensions
	}
}
