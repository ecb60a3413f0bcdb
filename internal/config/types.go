package config

import "time"

// ProviderType identifies an LLM or embedding provider.
type ProviderType string

const (
	ProviderAnthropic  ProviderType = "anthropic"
	ProviderOpenAI     ProviderType = "openai"
	ProviderGoogle     ProviderType = "google"
	ProviderOllama     ProviderType = "ollama"
	ProviderOpenRouter ProviderType = "openrouter"
	ProviderMiniMax    ProviderType = "minimax"
)

// Index backends.
const (
	BackendFlat    = "flat"
	BackendChromem = "chromem"
)

// Config is the top-level cverag configuration, corresponding to .cverag.yml.
type Config struct {
	Corpus       CorpusConfig    `yaml:"corpus" koanf:"corpus"`
	Index        IndexConfig     `yaml:"index" koanf:"index"`
	Embedding    EmbeddingConfig `yaml:"embedding" koanf:"embedding"`
	Models       []ModelConfig   `yaml:"models" koanf:"models"`
	DefaultModel string          `yaml:"default_model" koanf:"default_model"`
	Fallback     FallbackConfig  `yaml:"fallback" koanf:"fallback"`
	Server       ServerConfig    `yaml:"server" koanf:"server"`
	History      HistoryConfig   `yaml:"history" koanf:"history"`
	Log          LogConfig       `yaml:"log" koanf:"log"`
	Telemetry    TelemetryConfig `yaml:"telemetry" koanf:"telemetry"`
	RAGTypes     []string        `yaml:"rag_types" koanf:"rag_types"`
}

// CorpusConfig points at the CVE JSON 5 record tree.
type CorpusConfig struct {
	Root           string        `yaml:"root" koanf:"root"`
	CacheTTL       time.Duration `yaml:"cache_ttl" koanf:"cache_ttl"`
	MaxConcurrency int           `yaml:"max_concurrency" koanf:"max_concurrency"`
}

// IndexConfig describes the embedding store and how `cverag index build`
// produces it.
type IndexConfig struct {
	Path         string   `yaml:"path" koanf:"path"`
	Backend      string   `yaml:"backend" koanf:"backend"`
	Sources      string   `yaml:"sources" koanf:"sources"`
	Include      []string `yaml:"include" koanf:"include"`
	Exclude      []string `yaml:"exclude" koanf:"exclude"`
	ChunkSize    int      `yaml:"chunk_size" koanf:"chunk_size"`
	ChunkOverlap int      `yaml:"chunk_overlap" koanf:"chunk_overlap"`
}

// EmbeddingConfig selects the embedder. It must match the one that built
// the store.
type EmbeddingConfig struct {
	Provider   ProviderType `yaml:"provider" koanf:"provider"`
	Model      string       `yaml:"model" koanf:"model"`
	Dimensions int          `yaml:"dimensions" koanf:"dimensions"`
	BaseURL    string       `yaml:"base_url,omitempty" koanf:"base_url"`
}

// ModelConfig is one entry of the model menu offered to clients.
type ModelConfig struct {
	Name        string       `yaml:"name" koanf:"name"`
	Provider    ProviderType `yaml:"provider" koanf:"provider"`
	Model       string       `yaml:"model" koanf:"model"`
	BaseURL     string       `yaml:"base_url,omitempty" koanf:"base_url"`
	Temperature float64      `yaml:"temperature" koanf:"temperature"`
	MaxTokens   int          `yaml:"max_tokens" koanf:"max_tokens"`
	RPM         int          `yaml:"rpm,omitempty" koanf:"rpm"`
}

// FallbackConfig tunes correction of identifiers missing from the corpus.
type FallbackConfig struct {
	Enabled bool `yaml:"enabled" koanf:"enabled"`
	// Model names the menu entry used for the describe and recommend calls.
	// Empty means the default model.
	Model       string `yaml:"model" koanf:"model"`
	Chunks      int    `yaml:"chunks" koanf:"chunks"`
	Parallelism int    `yaml:"parallelism" koanf:"parallelism"`
}

// ServerConfig holds HTTP settings.
type ServerConfig struct {
	Host            string        `yaml:"host" koanf:"host"`
	Port            int           `yaml:"port" koanf:"port"`
	AllowAllOrigins bool          `yaml:"allow_all_origins" koanf:"allow_all_origins"`
	RequestTimeout  time.Duration `yaml:"request_timeout" koanf:"request_timeout"`
	MaxUploadMB     int           `yaml:"max_upload_mb" koanf:"max_upload_mb"`
}

// HistoryConfig controls the request history database.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled" koanf:"enabled"`
	Path    string `yaml:"path" koanf:"path"`
	// Retention drops records older than this at startup. Zero keeps all.
	Retention time.Duration `yaml:"retention" koanf:"retention"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level      string `yaml:"level" koanf:"level"`
	File       string `yaml:"file" koanf:"file"`
	Production bool   `yaml:"production" koanf:"production"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled" koanf:"enabled"`
	Endpoint    string `yaml:"endpoint" koanf:"endpoint"`
	ServiceName string `yaml:"service_name" koanf:"service_name"`
}
