package history

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/cverag/internal/db"
	"github.com/ziadkadry99/cverag/internal/fallback"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewStore(database)
}

func TestLogAndGetByID(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	rec := Record{
		ID:          "req-1",
		Model:       "Llama3",
		RAGType:     "CVE",
		Prompt:      "Verify the CVEs in this report",
		Identifiers: []string{"CVE-2024-0008", "CVE-2099-99999"},
		Missing:     []string{"CVE-2099-99999"},
		Corrections: []fallback.Correction{{Original: "CVE-2099-99999", Suggested: "CVE-2021-44228"}},
		Chunks:      5,
		Duration:    1500 * time.Millisecond,
	}
	id, err := store.Log(ctx, rec)
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	if id != "req-1" {
		t.Errorf("Log returned id %q", id)
	}

	got, err := store.GetByID(ctx, "req-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Model != "Llama3" || got.RAGType != "CVE" || got.Chunks != 5 {
		t.Errorf("unexpected record %+v", got)
	}
	if len(got.Identifiers) != 2 || got.Missing[0] != "CVE-2099-99999" {
		t.Errorf("identifiers not round-tripped: %v / %v", got.Identifiers, got.Missing)
	}
	if len(got.Corrections) != 1 || got.Corrections[0].Suggested != "CVE-2021-44228" {
		t.Errorf("corrections not round-tripped: %+v", got.Corrections)
	}
	if got.Duration != 1500*time.Millisecond {
		t.Errorf("Duration = %v", got.Duration)
	}
	if got.Timestamp.IsZero() {
		t.Error("Timestamp not set")
	}
	if got.Error != "" {
		t.Errorf("Error = %q, want empty", got.Error)
	}
}

func TestLogGeneratesUUID(t *testing.T) {
	store := setupStore(t)
	id, err := store.Log(context.Background(), Record{Model: "Gemini"})
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	if len(id) != 36 {
		t.Errorf("expected UUID, got %q", id)
	}
	got, err := store.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Identifiers == nil || len(got.Identifiers) != 0 {
		t.Errorf("expected empty identifier list, got %#v", got.Identifiers)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	store := setupStore(t)
	if _, err := store.GetByID(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListFilters(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	records := []Record{
		{ID: "a", Timestamp: base, Model: "Llama3", RAGType: "CVE"},
		{ID: "b", Timestamp: base.Add(time.Minute), Model: "Gemini", RAGType: "Malware"},
		{ID: "c", Timestamp: base.Add(2 * time.Minute), Model: "Llama3", RAGType: "CVE", Error: "fallback describe failed"},
	}
	for _, r := range records {
		if _, err := store.Log(ctx, r); err != nil {
			t.Fatalf("Log %s: %v", r.ID, err)
		}
	}

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"all newest first", Filter{}, []string{"c", "b", "a"}},
		{"by model", Filter{Model: "Llama3"}, []string{"c", "a"}},
		{"by rag type", Filter{RAGType: "Malware"}, []string{"b"}},
		{"failed only", Filter{FailedOnly: true}, []string{"c"}},
		{"limit", Filter{Limit: 2}, []string{"c", "b"}},
		{"limit offset", Filter{Limit: 2, Offset: 2}, []string{"a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			var ids []string
			for _, r := range got {
				ids = append(ids, r.ID)
			}
			if len(ids) != len(tt.want) {
				t.Fatalf("got %v, want %v", ids, tt.want)
			}
			for i := range ids {
				if ids[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", ids, tt.want)
				}
			}
		})
	}

	n, err := store.DeleteBefore(ctx, base.Add(90*time.Second))
	if err != nil {
		t.Fatalf("DeleteBefore: %v", err)
	}
	if n != 2 {
		t.Errorf("DeleteBefore removed %d rows, want 2", n)
	}
}

func TestRoutes(t *testing.T) {
	store := setupStore(t)
	if _, err := store.Log(context.Background(), Record{ID: "r1", Model: "Llama3", RAGType: "CVE"}); err != nil {
		t.Fatalf("Log: %v", err)
	}

	router := chi.NewRouter()
	RegisterRoutes(router, store)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history?model=Llama3", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var list []Record
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 1 || list[0].ID != "r1" {
		t.Errorf("unexpected list %+v", list)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history/r1", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("get status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing status = %d, want 404", rec.Code)
	}
}
