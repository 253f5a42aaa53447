// File path: internal/vector/chromadb_test.go
package vector

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
)

type fakeChroma struct {
	t *testing.T

	mu                sync.Mutex
	collectionName    string
	collectionID      string
	heartbeatFailures int
	heartbeatCalls    int
	findCollectionErr error
	upsertMissing     bool
	addCalls          int
	upsertCalls       int
	queryCalls        int

	lastUpsertPayload map[string]interface{}
	lastAddPayload    map[string]interface{}
	lastCreatePayload map[string]interface{}

	heartbeatCalled chan struct{}
}

func newFakeChroma(t *testing.T) *fakeChroma {
	t.Helper()
	return &fakeChroma{
		t:               t,
		collectionName:  "legacylens_docs",
		collectionID:    "col-123",
		heartbeatCalled: make(chan struct{}, 10),
	}
}

func (f *fakeChroma) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/heartbeat":
		f.handleHeartbeat(w)
	case r.URL.Path == "/api/v1/collections":
		f.handleCollections(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/v1/collections/") && strings.HasSuffix(r.URL.Path, "/upsert"):
		f.handleUpsert(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/v1/collections/") && strings.HasSuffix(r.URL.Path, "/add"):
		f.handleAdd(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/v1/collections/") && strings.HasSuffix(r.URL.Path, "/query"):
		f.handleQuery(w)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeChroma) handleHeartbeat(w http.ResponseWriter) {
	f.mu.Lock()
	f.heartbeatCalls++
	shouldFail := f.heartbeatFailures > 0
	if shouldFail {
		f.heartbeatFailures--
	}
	f.mu.Unlock()
	select {
	case f.heartbeatCalled <- struct{}{}:
	default:
	}
	if shouldFail {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("heartbeat failure"))
		return
	}
	_, _ = w.Write([]byte("ok"))
}

func (f *fakeChroma) handleCollections(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		f.mu.Lock()
		err := f.findCollectionErr
		name := r.URL.Query().Get("name")
		collectionName := f.collectionName
		collectionID := f.collectionID
		f.mu.Unlock()
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(err.Error()))
			return
		}
		resp := map[string]interface{}{"collections": []map[string]string{}}
		if collectionID != "" && (name == "" || strings.EqualFold(name, collectionName)) {
			resp["collections"] = []map[string]string{{"id": collectionID, "name": collectionName}}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	case http.MethodPost:
		defer r.Body.Close()
		var payload map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.lastCreatePayload = payload
		if f.collectionID == "" {
			f.collectionID = "generated"
		}
		id := f.collectionID
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"id": id})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeChroma) handleUpsert(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	f.mu.Lock()
	missing := f.upsertMissing
	f.mu.Unlock()
	if missing {
		http.NotFound(w, r)
		return
	}
	var payload map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.upsertCalls++
	f.lastUpsertPayload = payload
	f.mu.Unlock()
	_, _ = w.Write([]byte("upserted"))
}

func (f *fakeChroma) handleAdd(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var payload map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.addCalls++
	f.lastAddPayload = payload
	f.mu.Unlock()
	_, _ = w.Write([]byte("added"))
}

func (f *fakeChroma) handleQuery(w http.ResponseWriter) {
	f.mu.Lock()
	f.queryCalls++
	f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{
		"ids":       [][]string{{"doc-1"}},
		"distances": [][]float64{{0.5}},
		"metadatas": [][]map[string]interface{}{{{"kind": "paragraph", "program": "PAYROLL"}}},
		"documents": [][]string{{"Computes totals."}},
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func (f *fakeChroma) counts() (heartbeats, upserts, adds, queries int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.heartbeatCalls, f.upsertCalls, f.addCalls, f.queryCalls
}

func newTestClient(server *httptest.Server, fake *fakeChroma) *Client {
	return &Client{
		httpClient: server.Client(),
		baseURL:    strings.TrimRight(server.URL, "/") + "/api/v1",
		collection: fake.collectionName,
	}
}

func TestEnsureReadyRetriesHeartbeat(t *testing.T) {
	fake := newFakeChroma(t)
	fake.heartbeatFailures = 1
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	client := newTestClient(server, fake)
	if err := client.ensureReady(context.Background()); err != nil {
		t.Fatalf("ensureReady returned error: %v", err)
	}
	if !client.Available() {
		t.Fatal("client should be marked available")
	}
	if heartbeats, _, _, _ := fake.counts(); heartbeats < 2 {
		t.Fatalf("expected at least two heartbeat attempts, got %d", heartbeats)
	}
}

func TestEnsureReadyContextCanceled(t *testing.T) {
	fake := newFakeChroma(t)
	fake.heartbeatFailures = 10
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	client := newTestClient(server, fake)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- client.ensureReady(ctx)
	}()

	select {
	case <-fake.heartbeatCalled:
	case <-time.After(2 * time.Second):
		t.Fatal("expected heartbeat to be called")
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context canceled error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ensureReady did not return after context cancellation")
	}
	if client.Available() {
		t.Fatal("client should not be available after cancellation")
	}
}

func TestEnsureReadyCollectionLookupFailure(t *testing.T) {
	fake := newFakeChroma(t)
	fake.findCollectionErr = errors.New("discovery failed")
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	client := newTestClient(server, fake)
	err := client.ensureReady(context.Background())
	if err == nil || !strings.Contains(err.Error(), "discovery failed") {
		t.Fatalf("expected discovery error, got %v", err)
	}
	if client.Available() {
		t.Fatal("client should remain unavailable on discovery failure")
	}
}

func TestEnsureCollectionRecordsDimension(t *testing.T) {
	fake := newFakeChroma(t)
	fake.collectionID = ""
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	client := newTestClient(server, fake)
	if err := client.EnsureCollection(context.Background(), 1536); err != nil {
		t.Fatalf("EnsureCollection returned error: %v", err)
	}

	fake.mu.Lock()
	payload := fake.lastCreatePayload
	fake.mu.Unlock()
	if payload == nil {
		t.Fatal("expected collection create request")
	}
	metadata, ok := payload["metadata"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected metadata in create payload, got %v", payload)
	}
	if dim, ok := metadata["dimension"].(float64); !ok || int(dim) != 1536 {
		t.Fatalf("expected dimension 1536 in metadata, got %v", metadata["dimension"])
	}
	if !client.Available() {
		t.Fatal("client should be available after EnsureCollection")
	}
}

func TestEnsureCollectionRejectsInvalidDimension(t *testing.T) {
	client := &Client{}
	if err := client.EnsureCollection(context.Background(), 0); err == nil {
		t.Fatal("expected invalid dimension error")
	}
}

func TestUpsertDocsSendsLocationMetadata(t *testing.T) {
	fake := newFakeChroma(t)
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	client := newTestClient(server, fake)
	client.available = true
	client.collectionID = fake.collectionID

	doc := Doc{
		Kind:      KindParagraph,
		Program:   "PAYROLL",
		Division:  "PROCEDURE",
		Section:   "DEFAULT",
		Paragraph: "CALC-PARA",
		Content:   "Computes totals.",
	}
	if err := client.UpsertDocs(context.Background(), []Doc{doc}, [][]float32{{0.1, 0.2, 0.3}}); err != nil {
		t.Fatalf("UpsertDocs returned error: %v", err)
	}

	f := fake
	f.mu.Lock()
	payload := f.lastUpsertPayload
	f.mu.Unlock()
	if payload == nil {
		t.Fatal("expected payload to be captured")
	}
	ids, ok := payload["ids"].([]interface{})
	if !ok || len(ids) != 1 {
		t.Fatalf("unexpected ids payload: %v", payload["ids"])
	}
	if ids[0].(string) != doc.ID() {
		t.Fatalf("payload id %v does not match derived id %s", ids[0], doc.ID())
	}
	metadatas := payload["metadatas"].([]interface{})
	metadata := metadatas[0].(map[string]interface{})
	for _, key := range []string{"kind", "program", "division", "section", "paragraph"} {
		if _, ok := metadata[key].(string); !ok {
			t.Fatalf("expected %s metadata string, got %T", key, metadata[key])
		}
	}
}

func TestUpsertDocsFallsBackToAdd(t *testing.T) {
	fake := newFakeChroma(t)
	fake.upsertMissing = true
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	client := newTestClient(server, fake)
	client.available = true
	client.collectionID = fake.collectionID

	doc := Doc{Kind: KindDivision, Program: "PAYROLL", Division: "PROCEDURE", Content: "x"}
	if err := client.UpsertDocs(context.Background(), []Doc{doc}, [][]float32{{0.1}}); err != nil {
		t.Fatalf("UpsertDocs returned error: %v", err)
	}
	if _, _, adds, _ := fake.counts(); adds != 1 {
		t.Fatalf("expected add fallback, got %d add calls", adds)
	}
}

func TestSearchTriggersRecovery(t *testing.T) {
	fake := newFakeChroma(t)
	fake.heartbeatFailures = 1
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	client := newTestClient(server, fake)
	results, err := client.Search(context.Background(), []float32{0.5, 0.9}, 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 || results[0].ID != "doc-1" {
		t.Fatalf("unexpected search results: %+v", results)
	}
	if results[0].Payload["content"] != "Computes totals." {
		t.Fatalf("document text missing from payload: %+v", results[0].Payload)
	}
}

func TestDocIDDeterministic(t *testing.T) {
	a := Doc{Kind: KindParagraph, Program: "PAYROLL", Division: "PROCEDURE", Section: "DEFAULT", Paragraph: "CALC-PARA"}
	b := a
	b.Content = "different content, same location"
	if a.ID() != b.ID() {
		t.Fatal("same location must yield the same id")
	}
	c := a
	c.Paragraph = "INIT-PARA"
	if a.ID() == c.ID() {
		t.Fatal("different locations must yield different ids")
	}
}
