package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker"
)

// MockProvider is a test provider that records calls and returns canned responses.
type MockProvider struct {
	mu       sync.Mutex
	Calls    []CompletionRequest
	Response *CompletionResponse
	Err      error
	ProvName string
}

func NewMockProvider(name string) *MockProvider {
	return &MockProvider{
		ProvName: name,
		Response: &CompletionResponse{
			Content:      "mock response",
			InputTokens:  10,
			OutputTokens: 20,
			Model:        "mock-model",
			FinishReason: "stop",
		},
	}
}

func (m *MockProvider) Name() string {
	return m.ProvName
}

func (m *MockProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, req)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Response, nil
}

func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// --- Tests ---

func TestFactoryReturnsErrorForMissingAPIKey(t *testing.T) {
	for _, key := range []string{"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "GOOGLE_API_KEY", "OPENROUTER_API_KEY", "MINIMAX_API_KEY"} {
		t.Setenv(key, "")
	}

	for _, p := range []string{"anthropic", "openai", "google", "openrouter", "minimax"} {
		if _, err := NewProvider(p, "some-model"); err == nil {
			t.Errorf("expected error for provider %q with missing API key", p)
		}
	}
}

func TestFactoryReturnsErrorForUnknownProvider(t *testing.T) {
	if _, err := NewProvider("unknown", "some-model"); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestFactoryCreatesProviders(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "test-key")
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("GOOGLE_API_KEY", "test-key")
	t.Setenv("OPENROUTER_API_KEY", "test-key")

	tests := []struct {
		providerType string
		model        string
		wantName     string
	}{
		{"anthropic", "claude-sonnet-4-5-20250929", "anthropic"},
		{"openai", "gpt-4o", "openai"},
		{"openrouter", "meta-llama/llama-3-8b-instruct", "openrouter"},
		{"google", "gemini-1.5-flash", "google"},
		{"ollama", "llama3", "ollama"},
	}
	for _, tt := range tests {
		p, err := NewProvider(tt.providerType, tt.model)
		if err != nil {
			t.Fatalf("NewProvider(%q): %v", tt.providerType, err)
		}
		if p.Name() != tt.wantName {
			t.Errorf("NewProvider(%q).Name() = %q, want %q", tt.providerType, p.Name(), tt.wantName)
		}
	}
}

func TestFactoryCreatesOllamaWithDefaultHost(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "")
	provider, err := NewProvider("ollama", "llama3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ollamaP, ok := provider.(*OllamaProvider)
	if !ok {
		t.Fatal("expected *OllamaProvider")
	}
	if ollamaP.baseURL != DefaultOllamaHost {
		t.Errorf("expected default host, got %q", ollamaP.baseURL)
	}
}

func TestBuildRegistry(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "test-key")
	specs := []ModelSpec{
		{Name: "Llama3", Provider: "ollama", Model: "llama3", Temperature: 0.3, MaxTokens: 700},
		{Name: "Gemini", Provider: "google", Model: "gemini-1.5-flash", Temperature: 0.3, MaxTokens: 700, RPM: 15},
	}

	reg, err := BuildRegistry(specs, "Gemini", nil)
	if err != nil {
		t.Fatalf("BuildRegistry: %v", err)
	}
	if got := strings.Join(reg.Names(), ","); got != "Llama3,Gemini" {
		t.Errorf("Names() = %q", got)
	}
	if reg.Default() != "Gemini" {
		t.Errorf("Default() = %q, want Gemini", reg.Default())
	}

	m, err := reg.Lookup("")
	if err != nil {
		t.Fatalf("Lookup default: %v", err)
	}
	if m.Name != "Gemini" || m.Provider.Name() != "google" {
		t.Errorf("default model = %s/%s", m.Name, m.Provider.Name())
	}

	if _, err := BuildRegistry(specs, "GPT", nil); !errors.Is(err, ErrUnknownModel) {
		t.Errorf("expected ErrUnknownModel for bad default, got %v", err)
	}
	if _, err := BuildRegistry(append(specs, specs[0]), "", nil); err == nil {
		t.Error("expected error for duplicate model name")
	}
}

func TestRegistryLookupUnknown(t *testing.T) {
	reg := NewRegistry()
	if _, err := reg.Lookup("Llama3"); !errors.Is(err, ErrUnknownModel) {
		t.Errorf("expected ErrUnknownModel, got %v", err)
	}
}

func TestModelAppliesSettings(t *testing.T) {
	mock := NewMockProvider("test")
	m := NewModel("Test", mock, Settings{Temperature: 0.3, MaxTokens: 700})

	text, err := m.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "mock response" {
		t.Errorf("Generate = %q", text)
	}
	call := mock.Calls[0]
	if call.Temperature != 0.3 || call.MaxTokens != 700 {
		t.Errorf("settings not applied: %+v", call)
	}
}

func TestRateLimiterPassesThrough(t *testing.T) {
	mock := NewMockProvider("test")
	rl := NewRateLimitedProvider(mock, 60)

	resp, err := rl.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "mock response" {
		t.Errorf("expected 'mock response', got %q", resp.Content)
	}
	if rl.Name() != "test" {
		t.Errorf("expected name 'test', got %q", rl.Name())
	}
}

func TestRateLimiterLimitsRequests(t *testing.T) {
	mock := NewMockProvider("test")
	// Allow only 2 requests per minute.
	rl := NewRateLimitedProvider(mock, 2)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	req := CompletionRequest{Messages: []Message{{Role: RoleUser, Content: "hello"}}}

	for i := 0; i < 2; i++ {
		if _, err := rl.Complete(ctx, req); err != nil {
			t.Fatalf("request %d: unexpected error: %v", i, err)
		}
	}

	// The third token is 30s away, past the deadline.
	if _, err := rl.Complete(ctx, req); err == nil {
		t.Error("expected error due to rate limiting + context timeout")
	}
	if mock.CallCount() != 2 {
		t.Errorf("expected 2 calls to reach the provider, got %d", mock.CallCount())
	}
}

func TestGuardedProviderTrips(t *testing.T) {
	mock := NewMockProvider("test")
	mock.Err = &APIError{Provider: "test", StatusCode: http.StatusServiceUnavailable, Body: "overloaded"}
	g := NewGuardedProvider(mock, "Test", nil)

	req := CompletionRequest{Messages: []Message{{Role: RoleUser, Content: "hello"}}}
	for i := 0; i < 3; i++ {
		if _, err := g.Complete(context.Background(), req); err == nil {
			t.Fatalf("call %d: expected error", i)
		}
	}
	if g.State() != gobreaker.StateOpen {
		t.Fatalf("expected open breaker, got %s", g.State())
	}

	_, err := g.Complete(context.Background(), req)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("expected ErrOpenState, got %v", err)
	}
	if mock.CallCount() != 3 {
		t.Errorf("open breaker should not call provider, got %d calls", mock.CallCount())
	}
}

func TestGuardedProviderIgnoresClientErrors(t *testing.T) {
	mock := NewMockProvider("test")
	mock.Err = &APIError{Provider: "test", StatusCode: http.StatusBadRequest, Body: "bad prompt"}
	g := NewGuardedProvider(mock, "Test", nil)

	req := CompletionRequest{Messages: []Message{{Role: RoleUser, Content: "hello"}}}
	for i := 0; i < 5; i++ {
		_, err := g.Complete(context.Background(), req)
		if !IsClientError(err) {
			t.Fatalf("call %d: expected client error, got %v", i, err)
		}
	}
	if g.State() != gobreaker.StateClosed {
		t.Errorf("client errors should not open the breaker, got %s", g.State())
	}
}

func TestLoggingProviderPassesThrough(t *testing.T) {
	mock := NewMockProvider("test")
	lp := NewLoggingProvider(mock, nil)

	resp, err := lp.Complete(context.Background(), CompletionRequest{})
	if err != nil || resp.Content != "mock response" {
		t.Fatalf("Complete = %v, %v", resp, err)
	}

	mock.Err = errors.New("boom")
	if _, err := lp.Complete(context.Background(), CompletionRequest{}); err == nil {
		t.Error("expected error to pass through")
	}
}

func TestOllamaProviderRequest(t *testing.T) {
	var got ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Write([]byte(`{"model":"llama3","message":{"role":"assistant","content":"[]"},"done_reason":"stop","prompt_eval_count":12,"eval_count":3}`))
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL+"/", "llama3")
	resp, err := p.Complete(context.Background(), CompletionRequest{
		Messages:    []Message{{Role: RoleSystem, Content: "sys"}, {Role: RoleUser, Content: "usr"}},
		Temperature: 0.3,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "[]" || resp.InputTokens != 12 || resp.OutputTokens != 3 {
		t.Errorf("unexpected response %+v", resp)
	}
	if got.Model != "llama3" || got.Stream || len(got.Messages) != 2 || got.Messages[0].Role != "system" {
		t.Errorf("unexpected request %+v", got)
	}
	if got.Options.NumPredict != DefaultMaxTokens || got.Options.Temperature != 0.3 {
		t.Errorf("unexpected options %+v", got.Options)
	}
}

func TestGoogleProviderRequest(t *testing.T) {
	var got geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/gemini-1.5-flash:generateContent" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "k" {
			t.Errorf("missing api key header")
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"CVE-"},{"text":"2021-44228"}]},"finishReason":"STOP"}],"usageMetadata":{"promptTokenCount":5,"candidatesTokenCount":4}}`))
	}))
	defer srv.Close()

	p := NewGoogleProvider("k", "gemini-1.5-flash")
	p.baseURL = srv.URL
	resp, err := p.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: RoleSystem, Content: "context"}, {Role: RoleUser, Content: "which CVE?"}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "CVE-2021-44228" || resp.FinishReason != "STOP" || resp.OutputTokens != 4 {
		t.Errorf("unexpected response %+v", resp)
	}
	if got.SystemInstruction == nil || got.SystemInstruction.Parts[0].Text != "context" {
		t.Errorf("system instruction not sent: %+v", got.SystemInstruction)
	}
	if len(got.Contents) != 1 || got.Contents[0].Role != "user" {
		t.Errorf("unexpected contents %+v", got.Contents)
	}
}

func TestAnthropicProviderRequest(t *testing.T) {
	var got anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"model":"claude","content":[{"type":"text","text":"ok"}],"stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":1}}`))
	}))
	defer srv.Close()

	p := NewAnthropicProvider("k", "claude")
	p.url = srv.URL
	resp, err := p.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: RoleSystem, Content: "a"}, {Role: RoleSystem, Content: "b"}, {Role: RoleUser, Content: "q"}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("Content = %q", resp.Content)
	}
	if got.System != "a\n\nb" || len(got.Messages) != 1 {
		t.Errorf("unexpected request %+v", got)
	}

	if _, err := p.Complete(context.Background(), CompletionRequest{Messages: []Message{{Role: RoleSystem, Content: "a"}}}); err == nil {
		t.Error("expected error without a user message")
	}
}

func TestOpenAICompatibleProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["model"] == "bad" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"message":"unknown model","type":"invalid_request_error"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"model":"gpt-4o-mini","choices":[{"index":0,"message":{"role":"assistant","content":"hello"},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":1,"total_tokens":4}}`))
	}))
	defer srv.Close()

	p := NewOpenAICompatibleProvider("vllm", "k", srv.URL, "gpt-4o-mini")
	if p.Name() != "vllm" {
		t.Errorf("Name() = %q", p.Name())
	}
	resp, err := p.Complete(context.Background(), CompletionRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "hello" || resp.InputTokens != 3 || resp.FinishReason != "stop" {
		t.Errorf("unexpected response %+v", resp)
	}

	_, err = p.Complete(context.Background(), CompletionRequest{Model: "bad", Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	if !IsClientError(err) {
		t.Errorf("expected client error, got %v", err)
	}
}

func TestHTTPStatusBecomesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewOllamaProvider(srv.URL, "llama3").Complete(context.Background(), CompletionRequest{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusTooManyRequests || !apiErr.Temporary() || IsClientError(err) {
		t.Errorf("unexpected classification for %v", apiErr)
	}
}

func TestEstimateCostKnownModels(t *testing.T) {
	for _, model := range []string{"claude-sonnet-4-5-20250929", "gpt-4o", "gemini-1.5-flash"} {
		if cost := EstimateCost(model, 1000, 500); cost <= 0 {
			t.Errorf("EstimateCost(%q) = %f, expected > 0", model, cost)
		}
	}
	if cost := EstimateCost("llama3", 1000, 500); cost != 0 {
		t.Errorf("expected 0 for local model, got %f", cost)
	}
}

func TestEstimateCostAccuracy(t *testing.T) {
	// claude-sonnet-4-5: $3/1M input, $15/1M output
	cost := EstimateCost("claude-sonnet-4-5-20250929", 1_000_000, 1_000_000)
	if cost < 17.99 || cost > 18.01 {
		t.Errorf("expected cost ~$18.00, got $%.2f", cost)
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"hi", 1},
		{"hello world!!", 3},
		{"a longer piece of text that has more characters", 11},
	}

	for _, tt := range tests {
		if got := EstimateTokens(tt.text); got != tt.want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}
