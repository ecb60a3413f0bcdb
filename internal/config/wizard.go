package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
)

// WizardAnswers are the choices collected by RunWizard.
type WizardAnswers struct {
	CorpusRoot        string
	IndexPath         string
	Provider          ProviderType
	ModelName         string
	EmbeddingProvider ProviderType
	Port              int
}

// RunWizard asks for the essential settings on the terminal, writes the
// result to path and returns it.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to cverag! Let's configure the service.")
	fmt.Println()

	var a WizardAnswers
	var err error

	if a.CorpusRoot, err = ask("CVE record tree (cvelistV5 cves directory)", "cvelistV5/cves"); err != nil {
		return nil, err
	}
	if a.IndexPath, err = ask("Embedding store (.csv, .tsv or .db)", ".cverag/embeddings.csv"); err != nil {
		return nil, err
	}

	providerPrompt := promptui.Select{
		Label: "Provider for the main model",
		Items: []string{"ollama", "google", "openai", "anthropic", "openrouter"},
	}
	_, providerStr, err := providerPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("provider selection: %w", err)
	}
	a.Provider = ProviderType(providerStr)

	if a.ModelName, err = ask("Name shown to clients for this model", defaultModelName(a.Provider)); err != nil {
		return nil, err
	}

	embeddingPrompt := promptui.Select{
		Label: "Embedding provider (must match the store)",
		Items: []string{"ollama", "openai", "google"},
	}
	_, embStr, err := embeddingPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("embedding provider selection: %w", err)
	}
	a.EmbeddingProvider = ProviderType(embStr)

	portPrompt := promptui.Prompt{
		Label:   "HTTP port",
		Default: "8080",
		Validate: func(s string) error {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 || n > 65535 {
				return fmt.Errorf("enter a port between 1 and 65535")
			}
			return nil
		},
	}
	portStr, err := portPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("port: %w", err)
	}
	a.Port, _ = strconv.Atoi(portStr)

	cfg := FromWizard(a)

	for _, p := range []ProviderType{a.Provider, a.EmbeddingProvider} {
		if envVar := APIKeyEnvVar(p); envVar != "" && os.Getenv(envVar) == "" {
			fmt.Printf("\nNote: set %s in your environment before running cverag serve.\n", envVar)
		}
	}

	if err := cfg.Save(path); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}
	fmt.Printf("\nConfiguration saved to %s\n", path)
	return cfg, nil
}

// FromWizard builds a configuration from wizard answers on top of the
// defaults. The chosen model becomes the default and the only menu entry.
func FromWizard(a WizardAnswers) *Config {
	cfg := DefaultConfig()
	if a.CorpusRoot != "" {
		cfg.Corpus.Root = a.CorpusRoot
	}
	if a.IndexPath != "" {
		cfg.Index.Path = a.IndexPath
	}
	if a.Port > 0 {
		cfg.Server.Port = a.Port
	}

	if a.Provider != "" {
		name := a.ModelName
		if name == "" {
			name = defaultModelName(a.Provider)
		}
		cfg.Models = []ModelConfig{{
			Name:        name,
			Provider:    a.Provider,
			Model:       modelPresets[a.Provider],
			Temperature: DefaultTemperature,
			MaxTokens:   DefaultMaxTokens,
		}}
		cfg.DefaultModel = name
	}

	if preset, ok := embeddingPresets[a.EmbeddingProvider]; ok {
		cfg.Embedding = EmbeddingConfig{
			Provider:   a.EmbeddingProvider,
			Model:      preset.Model,
			Dimensions: preset.Dimensions,
		}
	}
	return cfg
}

func defaultModelName(p ProviderType) string {
	switch p {
	case ProviderOllama:
		return "Llama3"
	case ProviderGoogle:
		return "Gemini"
	case "":
		return ""
	default:
		return strings.ToUpper(string(p[:1])) + string(p[1:])
	}
}

func ask(label, def string) (string, error) {
	p := promptui.Prompt{Label: label, Default: def}
	v, err := p.Run()
	if err != nil {
		return "", fmt.Errorf("%s: %w", strings.ToLower(label), err)
	}
	return strings.TrimSpace(v), nil
}
