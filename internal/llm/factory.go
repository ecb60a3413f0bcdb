package llm

import (
	"fmt"
	"os"

	"go.uber.org/zap"
)

// ModelSpec describes one entry of the model menu.
type ModelSpec struct {
	Name        string
	Provider    string
	Model       string
	BaseURL     string
	Temperature float64
	MaxTokens   int
	RPM         int
}

// NewProvider creates a new LLM provider based on the given provider type and model.
// Supported provider types: "anthropic", "openai", "openrouter", "minimax",
// "google", "ollama".
func NewProvider(providerType string, model string) (Provider, error) {
	return newProvider(providerType, model, "")
}

func newProvider(providerType, model, baseURL string) (Provider, error) {
	switch providerType {
	case "anthropic":
		apiKey, err := requireEnv("ANTHROPIC_API_KEY")
		if err != nil {
			return nil, err
		}
		p := NewAnthropicProvider(apiKey, model)
		if baseURL != "" {
			p.url = baseURL
		}
		return p, nil

	case "openai":
		apiKey, err := requireEnv("OPENAI_API_KEY")
		if err != nil {
			return nil, err
		}
		return NewOpenAICompatibleProvider("openai", apiKey, baseURL, model), nil

	case "openrouter":
		apiKey, err := requireEnv("OPENROUTER_API_KEY")
		if err != nil {
			return nil, err
		}
		if baseURL == "" {
			baseURL = openRouterBaseURL
		}
		return NewOpenAICompatibleProvider("openrouter", apiKey, baseURL, model), nil

	case "minimax":
		apiKey, err := requireEnv("MINIMAX_API_KEY")
		if err != nil {
			return nil, err
		}
		if baseURL == "" {
			baseURL = minimaxBaseURL
		}
		return NewOpenAICompatibleProvider("minimax", apiKey, baseURL, model), nil

	case "google":
		apiKey, err := requireEnv("GOOGLE_API_KEY")
		if err != nil {
			return nil, err
		}
		p := NewGoogleProvider(apiKey, model)
		if baseURL != "" {
			p.baseURL = baseURL
		}
		return p, nil

	case "ollama":
		host := baseURL
		if host == "" {
			host = os.Getenv("OLLAMA_HOST")
		}
		return NewOllamaProvider(host, model), nil

	default:
		return nil, fmt.Errorf("unsupported provider type: %s", providerType)
	}
}

func requireEnv(key string) (string, error) {
	v := os.Getenv(key)
	if v == "" {
		return "", fmt.Errorf("%s environment variable is not set", key)
	}
	return v, nil
}

// NewProviderFromSpec builds the provider chain for one menu entry:
// logging, then optional rate limiting, then the circuit breaker, then the
// provider itself.
func NewProviderFromSpec(spec ModelSpec, logger *zap.Logger) (Provider, error) {
	base, err := newProvider(spec.Provider, spec.Model, spec.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("model %q: %w", spec.Name, err)
	}

	var p Provider = NewGuardedProvider(base, spec.Name, logger)
	if spec.RPM > 0 {
		p = NewRateLimitedProvider(p, spec.RPM)
	}
	return NewLoggingProvider(p, logger), nil
}

// BuildRegistry creates providers for every spec and registers them under
// their caller-facing names.
func BuildRegistry(specs []ModelSpec, defaultName string, logger *zap.Logger) (*Registry, error) {
	reg := NewRegistry()
	for _, spec := range specs {
		p, err := NewProviderFromSpec(spec, logger)
		if err != nil {
			return nil, err
		}
		settings := Settings{Temperature: spec.Temperature, MaxTokens: spec.MaxTokens}
		if err := reg.Register(NewModel(spec.Name, p, settings)); err != nil {
			return nil, err
		}
	}
	if defaultName != "" {
		if err := reg.SetDefault(defaultName); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
