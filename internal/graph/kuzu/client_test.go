// File path: internal/graph/kuzu/client_test.go
package kuzu

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/legacylens/legacylens/internal/graph"
)

type fakeKuzu struct {
	mu      sync.Mutex
	queries []queryRequest
	failAll bool
}

func (f *fakeKuzu) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/query" {
		http.NotFound(w, r)
		return
	}
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.queries = append(f.queries, req)
	fail := f.failAll
	f.mu.Unlock()
	if fail {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(queryResponse{})
}

func (f *fakeKuzu) recorded() []queryRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]queryRequest, len(f.queries))
	copy(out, f.queries)
	return out
}

func newTestClient(t *testing.T, fake *fakeKuzu) *Client {
	t.Helper()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)
	client, err := NewClient(context.Background(), Config{
		Endpoint:       server.URL,
		Database:       "legacylens",
		MaxConnections: 2,
		Timeout:        2 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestClientPingMarksAvailable(t *testing.T) {
	fake := &fakeKuzu{}
	client := newTestClient(t, fake)
	if !client.Available() {
		t.Fatal("client should be available after successful ping")
	}
	queries := fake.recorded()
	if len(queries) != 1 || queries[0].Query != "RETURN 1;" {
		t.Fatalf("unexpected ping queries: %+v", queries)
	}
	if queries[0].Database != "legacylens" {
		t.Fatalf("database not propagated: %+v", queries[0])
	}
}

func TestClientUnreachableBackend(t *testing.T) {
	fake := &fakeKuzu{failAll: true}
	client := newTestClient(t, fake)
	if client.Available() {
		t.Fatal("client should be unavailable when the backend errors")
	}
}

func TestInsertPerformParameters(t *testing.T) {
	fake := &fakeKuzu{}
	client := newTestClient(t, fake)
	err := client.InsertPerform(context.Background(), graph.Perform{
		Program: "PAYROLL", From: "MAIN-PARA", To: "CALC-PARA", Occurrences: 2,
	})
	if err != nil {
		t.Fatalf("InsertPerform: %v", err)
	}
	queries := fake.recorded()
	last := queries[len(queries)-1]
	if last.Params["from"] != "PAYROLL::MAIN-PARA" || last.Params["to"] != "PAYROLL::CALC-PARA" {
		t.Fatalf("paragraph ids not namespaced by program: %+v", last.Params)
	}
	if occurrences, ok := last.Params["occurrences"].(float64); !ok || occurrences != 2 {
		t.Fatalf("occurrences not propagated: %+v", last.Params)
	}
}

func TestInsertPerformValidation(t *testing.T) {
	fake := &fakeKuzu{}
	client := newTestClient(t, fake)
	if err := client.InsertPerform(context.Background(), graph.Perform{Program: "P"}); err == nil {
		t.Fatal("expected validation error for missing endpoints")
	}
}

func TestEnsureSchemaExecutesAllStatements(t *testing.T) {
	fake := &fakeKuzu{}
	client := newTestClient(t, fake)
	if err := client.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	// Ping plus two node tables and two relationship tables.
	if got := len(fake.recorded()); got != 5 {
		t.Fatalf("expected 5 queries, got %d", got)
	}
}
