package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrUnknownModel is returned when a caller asks for a model name that is
// not registered.
var ErrUnknownModel = errors.New("unknown model")

// Generator produces text from a conversation.
type Generator interface {
	Generate(ctx context.Context, messages []Message) (string, error)
}

// Settings are per-model generation parameters.
type Settings struct {
	Temperature float64
	MaxTokens   int
}

// Model is a caller-facing model name bound to a provider and its settings.
type Model struct {
	Name     string
	Provider Provider
	Settings Settings
}

// NewModel binds a provider to a caller-facing name.
func NewModel(name string, provider Provider, settings Settings) *Model {
	return &Model{Name: name, Provider: provider, Settings: settings}
}

// Complete sends messages with the model's settings.
func (m *Model) Complete(ctx context.Context, messages []Message) (*CompletionResponse, error) {
	return m.Provider.Complete(ctx, CompletionRequest{
		Messages:    messages,
		Temperature: m.Settings.Temperature,
		MaxTokens:   m.Settings.MaxTokens,
	})
}

// Generate implements Generator.
func (m *Model) Generate(ctx context.Context, messages []Message) (string, error) {
	resp, err := m.Complete(ctx, messages)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// Registry maps caller-facing model names (such as "Llama3" or "Gemini") to
// configured providers. Names are matched exactly.
type Registry struct {
	mu          sync.RWMutex
	models      map[string]*Model
	order       []string
	defaultName string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{models: make(map[string]*Model)}
}

// Register adds a model. The first registered model becomes the default.
func (r *Registry) Register(m *Model) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m.Name == "" {
		return fmt.Errorf("model name is required")
	}
	if _, ok := r.models[m.Name]; ok {
		return fmt.Errorf("model %q registered twice", m.Name)
	}
	r.models[m.Name] = m
	r.order = append(r.order, m.Name)
	if r.defaultName == "" {
		r.defaultName = m.Name
	}
	return nil
}

// SetDefault chooses the model used when a request names none.
func (r *Registry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.models[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownModel, name)
	}
	r.defaultName = name
	return nil
}

// Lookup returns the named model, or the default for an empty name.
func (r *Registry) Lookup(name string) (*Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if name == "" {
		name = r.defaultName
	}
	m, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}
	return m, nil
}

// Names returns registered model names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Default returns the name of the default model.
func (r *Registry) Default() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultName
}
