package config

import "time"

// Generation defaults applied to menu entries that leave them unset.
const (
	DefaultTemperature = 0.3
	DefaultMaxTokens   = 700
)

// DefaultRAGTypes is the RAG type menu. Only CVE has a dedicated pipeline.
var DefaultRAGTypes = []string{"CVE", "Threat Intelligence", "Pen-Testing", "Malware"}

// embeddingPresets maps embedding providers to their default model and
// vector width.
var embeddingPresets = map[ProviderType]struct {
	Model      string
	Dimensions int
}{
	ProviderOpenAI: {Model: "text-embedding-3-small", Dimensions: 1536},
	ProviderOllama: {Model: "nomic-embed-text", Dimensions: 768},
	ProviderGoogle: {Model: "text-embedding-004", Dimensions: 768},
}

// modelPresets is the default model id per provider used by the wizard.
var modelPresets = map[ProviderType]string{
	ProviderAnthropic:  "claude-sonnet-4-5-20250929",
	ProviderOpenAI:     "gpt-4o",
	ProviderGoogle:     "gemini-2.0-flash",
	ProviderOllama:     "llama3",
	ProviderOpenRouter: "meta-llama/llama-3-8b-instruct",
	ProviderMiniMax:    "MiniMax-M2.5",
}

// DefaultConfig returns a Config with a local Llama 3 model and Gemini.
func DefaultConfig() *Config {
	return &Config{
		Corpus: CorpusConfig{
			Root:           "cvelistV5/cves",
			CacheTTL:       10 * time.Minute,
			MaxConcurrency: 8,
		},
		Index: IndexConfig{
			Path:         ".cverag/embeddings.csv",
			Backend:      BackendFlat,
			Sources:      "sources",
			ChunkSize:    200,
			ChunkOverlap: 40,
		},
		Embedding: EmbeddingConfig{
			Provider:   ProviderOllama,
			Model:      "nomic-embed-text",
			Dimensions: 768,
		},
		Models: []ModelConfig{
			{Name: "Llama3", Provider: ProviderOllama, Model: "llama3", Temperature: DefaultTemperature, MaxTokens: DefaultMaxTokens},
			{Name: "Gemini", Provider: ProviderGoogle, Model: "gemini-2.0-flash", Temperature: DefaultTemperature, MaxTokens: DefaultMaxTokens},
		},
		DefaultModel: "Llama3",
		Fallback: FallbackConfig{
			Enabled:     true,
			Chunks:      5,
			Parallelism: 1,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			AllowAllOrigins: true,
			RequestTimeout:  120 * time.Second,
			MaxUploadMB:     10,
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    ".cverag/history.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		Telemetry: TelemetryConfig{
			Endpoint:    "localhost:4318",
			ServiceName: "cverag",
		},
		RAGTypes: append([]string(nil), DefaultRAGTypes...),
	}
}

// ApplyModelDefaults fills unset generation parameters.
func (c *Config) ApplyModelDefaults() {
	for i := range c.Models {
		if c.Models[i].Temperature == 0 {
			c.Models[i].Temperature = DefaultTemperature
		}
		if c.Models[i].MaxTokens == 0 {
			c.Models[i].MaxTokens = DefaultMaxTokens
		}
	}
}
