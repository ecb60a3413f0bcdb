// Package config loads and validates .cverag.yml.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// DefaultPath is the configuration file looked up in the working directory.
const DefaultPath = ".cverag.yml"

// EnvPrefix prefixes environment overrides. Nested keys use a double
// underscore: CVERAG_SERVER__PORT sets server.port.
const EnvPrefix = "CVERAG_"

// Load starts from DefaultConfig, overlays the YAML file at path if it
// exists, then overlays CVERAG_* environment variables.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	// Lists from the file replace the defaults instead of merging into them
	// element by element.
	if k.Exists("models") {
		cfg.Models = nil
	}
	if k.Exists("rag_types") {
		cfg.RAGTypes = nil
	}
	if k.Exists("index.include") {
		cfg.Index.Include = nil
	}
	if k.Exists("index.exclude") {
		cfg.Index.Exclude = nil
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	cfg.ApplyModelDefaults()

	return cfg, nil
}

// envKey maps CVERAG_SERVER__REQUEST_TIMEOUT to server.request_timeout.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

var validProviders = map[ProviderType]bool{
	ProviderAnthropic:  true,
	ProviderOpenAI:     true,
	ProviderGoogle:     true,
	ProviderOllama:     true,
	ProviderOpenRouter: true,
	ProviderMiniMax:    true,
}

var validEmbeddingProviders = map[ProviderType]bool{
	ProviderOpenAI: true,
	ProviderGoogle: true,
	ProviderOllama: true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.Corpus.Root == "" {
		return fmt.Errorf("corpus.root is required")
	}
	if c.Corpus.MaxConcurrency < 0 {
		return fmt.Errorf("corpus.max_concurrency must be non-negative")
	}
	if c.Corpus.CacheTTL < 0 {
		return fmt.Errorf("corpus.cache_ttl must be non-negative")
	}

	if c.Index.Backend != BackendFlat && c.Index.Backend != BackendChromem {
		return fmt.Errorf("invalid index.backend %q: must be flat or chromem", c.Index.Backend)
	}
	if c.Index.ChunkSize < 0 || c.Index.ChunkOverlap < 0 {
		return fmt.Errorf("index.chunk_size and index.chunk_overlap must be non-negative")
	}
	if c.Index.ChunkSize > 0 && c.Index.ChunkOverlap >= c.Index.ChunkSize {
		return fmt.Errorf("index.chunk_overlap must be smaller than index.chunk_size")
	}

	if !validEmbeddingProviders[c.Embedding.Provider] {
		return fmt.Errorf("invalid embedding.provider %q: must be one of openai, google, ollama", c.Embedding.Provider)
	}
	if c.Embedding.Dimensions < 0 {
		return fmt.Errorf("embedding.dimensions must be non-negative")
	}

	if len(c.Models) == 0 {
		return fmt.Errorf("at least one entry in models is required")
	}
	names := make(map[string]bool, len(c.Models))
	for i, m := range c.Models {
		if m.Name == "" {
			return fmt.Errorf("models[%d].name is required", i)
		}
		if names[m.Name] {
			return fmt.Errorf("model name %q is used twice", m.Name)
		}
		names[m.Name] = true
		if !validProviders[m.Provider] {
			return fmt.Errorf("model %q: invalid provider %q", m.Name, m.Provider)
		}
		if m.Model == "" {
			return fmt.Errorf("model %q: model is required", m.Name)
		}
		if m.MaxTokens < 0 || m.RPM < 0 || m.Temperature < 0 {
			return fmt.Errorf("model %q: temperature, max_tokens and rpm must be non-negative", m.Name)
		}
	}
	if c.DefaultModel != "" && !names[c.DefaultModel] {
		return fmt.Errorf("default_model %q is not in models", c.DefaultModel)
	}
	if c.Fallback.Model != "" && !names[c.Fallback.Model] {
		return fmt.Errorf("fallback.model %q is not in models", c.Fallback.Model)
	}
	if c.Fallback.Chunks < 0 || c.Fallback.Parallelism < 0 {
		return fmt.Errorf("fallback.chunks and fallback.parallelism must be non-negative")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}
	if c.Server.RequestTimeout < 0 || c.Server.MaxUploadMB < 0 {
		return fmt.Errorf("server.request_timeout and server.max_upload_mb must be non-negative")
	}

	if c.History.Enabled && c.History.Path == "" {
		return fmt.Errorf("history.path is required when history is enabled")
	}
	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		return fmt.Errorf("telemetry.endpoint is required when telemetry is enabled")
	}
	return nil
}

// APIKeyEnvVar returns the conventional environment variable name for
// the API key of the given provider.
func APIKeyEnvVar(provider ProviderType) string {
	switch provider {
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderGoogle:
		return "GOOGLE_API_KEY"
	case ProviderOpenRouter:
		return "OPENROUTER_API_KEY"
	case ProviderMiniMax:
		return "MINIMAX_API_KEY"
	default:
		return ""
	}
}
