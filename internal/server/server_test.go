package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/ziadkadry99/cverag/internal/db"
	"github.com/ziadkadry99/cverag/internal/history"
	"github.com/ziadkadry99/cverag/internal/llm"
	"github.com/ziadkadry99/cverag/internal/rag"
)

// echoProvider answers with the user message it received.
type echoProvider struct {
	mu   sync.Mutex
	last string
}

func (p *echoProvider) Name() string { return "echo" }

func (p *echoProvider) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	user := req.Messages[len(req.Messages)-1].Content
	p.mu.Lock()
	p.last = user
	p.mu.Unlock()
	return &llm.CompletionResponse{Content: "echo: " + user}, nil
}

func (p *echoProvider) lastUser() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

func newTestServer(t *testing.T, cfg Config) (*Server, *echoProvider) {
	t.Helper()

	provider := &echoProvider{}
	reg := llm.NewRegistry()
	for _, name := range []string{"Llama3", "Gemini"} {
		if err := reg.Register(llm.NewModel(name, provider, llm.Settings{})); err != nil {
			t.Fatal(err)
		}
	}

	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	store := history.NewStore(database)

	svc := rag.NewService(reg, nil, rag.Options{History: store})
	return New(cfg, svc, store, nil), provider
}

func do(t *testing.T, srv *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("unmarshal %q: %v", w.Body.String(), err)
	}
}

func TestHealthCheck(t *testing.T) {
	srv, _ := newTestServer(t, Config{})

	w := do(t, srv, httptest.NewRequest("GET", "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body map[string]string
	decode(t, w, &body)
	if body["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", body["status"])
	}
}

func TestCORSHeaders(t *testing.T) {
	srv, _ := newTestServer(t, Config{AllowAll: true})

	req := httptest.NewRequest("OPTIONS", "/api/prompt", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := do(t, srv, req)

	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("expected CORS Allow-Origin header")
	}
}

func TestRAGConfig(t *testing.T) {
	srv, _ := newTestServer(t, Config{})

	for _, path := range []string{"/api/rag-config", "/retrieveRagConfig"} {
		w := do(t, srv, httptest.NewRequest("GET", path, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, w.Code)
		}
		var body ragConfigResponse
		decode(t, w, &body)
		if strings.Join(body.Models, ",") != "Llama3,Gemini" {
			t.Errorf("%s: models = %v", path, body.Models)
		}
		if len(body.RAGTypes) != 4 || body.RAGTypes[0] != "CVE" {
			t.Errorf("%s: ragTypes = %v", path, body.RAGTypes)
		}
	}
}

func TestPromptJSONBody(t *testing.T) {
	srv, provider := newTestServer(t, Config{})

	body := `{"prompt":"What is phishing?","ragConfig":{"model":"Gemini","ragTypes":["Threat Intelligence"],"chunks":5}}`
	req := httptest.NewRequest("POST", "/api/prompt", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := do(t, srv, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var res rag.Result
	decode(t, w, &res)
	want := "Question: What is phishing?\nExtra context to answer question: No extra context given."
	if provider.lastUser() != want {
		t.Errorf("user message = %q", provider.lastUser())
	}
	if res.Response != "echo: "+want {
		t.Errorf("response = %q", res.Response)
	}
	if res.Chunks == nil {
		t.Error("chunks must be an array, not null")
	}
}

func multipartRequest(t *testing.T, path, jsonField, filename, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if jsonField != "" {
		if err := mw.WriteField("json", jsonField); err != nil {
			t.Fatal(err)
		}
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write([]byte(content))
	}
	mw.Close()

	req := httptest.NewRequest("POST", path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestPromptMultipartWithFile(t *testing.T) {
	srv, provider := newTestServer(t, Config{MaxUploadBytes: 1 << 20})

	req := multipartRequest(t, "/dummyLlama",
		`{"prompt":"Summarise","ragConfig":{"model":"Llama3","ragTypes":[],"chunks":5}}`,
		"report.txt", "The attacker used a phishing kit.")
	w := do(t, srv, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(provider.lastUser(), "Extra context to answer question: The attacker used a phishing kit.") {
		t.Errorf("file text missing from prompt: %q", provider.lastUser())
	}
}

func TestPromptErrors(t *testing.T) {
	srv, _ := newTestServer(t, Config{MaxUploadBytes: 16})

	tests := []struct {
		name   string
		req    *http.Request
		status int
	}{
		{
			name:   "missing json field",
			req:    multipartRequest(t, "/api/prompt", "", "a.txt", "x"),
			status: http.StatusBadRequest,
		},
		{
			name:   "unsupported file type",
			req:    multipartRequest(t, "/api/prompt", `{"prompt":"hi"}`, "image.png", "x"),
			status: http.StatusBadRequest,
		},
		{
			name:   "file too large",
			req:    multipartRequest(t, "/api/prompt", `{"prompt":"hi"}`, "big.txt", strings.Repeat("a", 64)),
			status: http.StatusRequestEntityTooLarge,
		},
		{
			name:   "empty body",
			req:    httptest.NewRequest("POST", "/api/prompt", strings.NewReader("")),
			status: http.StatusBadRequest,
		},
		{
			name:   "malformed JSON",
			req:    httptest.NewRequest("POST", "/api/prompt", strings.NewReader("{")),
			status: http.StatusBadRequest,
		},
		{
			name:   "empty prompt",
			req:    httptest.NewRequest("POST", "/api/prompt", strings.NewReader(`{"prompt":""}`)),
			status: http.StatusBadRequest,
		},
		{
			name:   "unknown model",
			req:    httptest.NewRequest("POST", "/api/prompt", strings.NewReader(`{"prompt":"hi","model":"GPT-9"}`)),
			status: http.StatusBadRequest,
		},
		{
			name:   "CVE without corpus",
			req:    httptest.NewRequest("POST", "/api/prompt", strings.NewReader(`{"prompt":"CVE-2021-44228?","ragTypes":"CVE"}`)),
			status: http.StatusServiceUnavailable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, srv, tt.req)
			if w.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}
			var body map[string]string
			decode(t, w, &body)
			if body["error"] == "" {
				t.Error("expected an error message")
			}
		})
	}
}

func TestHistoryRoutesMounted(t *testing.T) {
	srv, _ := newTestServer(t, Config{})

	req := httptest.NewRequest("POST", "/api/prompt", strings.NewReader(`{"prompt":"hello","ragTypes":["Malware"]}`))
	if w := do(t, srv, req); w.Code != http.StatusOK {
		t.Fatalf("prompt: %d %s", w.Code, w.Body.String())
	}

	w := do(t, srv, httptest.NewRequest("GET", "/api/history", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var recs []history.Record
	decode(t, w, &recs)
	if len(recs) != 1 || recs[0].Prompt != "hello" || recs[0].RAGType != "Malware" {
		t.Errorf("unexpected history %+v", recs)
	}
}

func TestWebSocketPrompt(t *testing.T) {
	srv, _ := newTestServer(t, Config{AllowAll: true})
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/prompt"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	defer conn.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("expected 101, got %d", resp.StatusCode)
	}

	if err := conn.WriteJSON(map[string]any{"id": "q1", "prompt": "hello", "ragTypes": []string{"Pen-Testing"}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var got wsResponse
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Type != "response" || got.ID != "q1" || !strings.HasPrefix(got.Response, "echo: Question: hello") {
		t.Errorf("unexpected response %+v", got)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Type != "error" || got.Status != http.StatusBadRequest {
		t.Errorf("expected bad request error, got %+v", got)
	}

	if err := conn.WriteJSON(map[string]any{"id": "q2", "prompt": "x", "model": "GPT-9"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Type != "error" || got.ID != "q2" || got.Status != http.StatusBadRequest {
		t.Errorf("expected unknown model error, got %+v", got)
	}
}

func TestRAGTypesUnmarshal(t *testing.T) {
	tests := []struct {
		in   string
		want string
		err  bool
	}{
		{`"CVE"`, "CVE", false},
		{`["CVE","Malware"]`, "CVE,Malware", false},
		{`""`, "", false},
		{`null`, "", false},
		{`5`, "", true},
	}
	for _, tt := range tests {
		var got ragTypes
		err := json.Unmarshal([]byte(tt.in), &got)
		if (err != nil) != tt.err {
			t.Errorf("%s: err = %v", tt.in, err)
			continue
		}
		if strings.Join(got, ",") != tt.want {
			t.Errorf("%s: got %v, want %s", tt.in, got, tt.want)
		}
	}
}
