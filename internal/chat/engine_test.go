// File path: internal/chat/engine_test.go
package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/legacylens/legacylens/internal/llm"
	"github.com/legacylens/legacylens/internal/vector"
)

type fakeProvider struct {
	reply    string
	chatErr  error
	embedErr error
	messages []llm.Message
}

func (f *fakeProvider) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	f.messages = messages
	if f.chatErr != nil {
		return "", f.chatErr
	}
	return f.reply, nil
}

func (f *fakeProvider) Embed(ctx context.Context, input []string) ([][]float32, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	out := make([][]float32, len(input))
	for i := range input {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (f *fakeProvider) Name() string { return "fake" }

type fakeStore struct {
	results   []vector.SearchResult
	searchErr error
	available bool
	lastLimit int
}

func (f *fakeStore) Available() bool    { return f.available }
func (f *fakeStore) Collection() string { return "test" }
func (f *fakeStore) Close() error       { return nil }

func (f *fakeStore) EnsureCollection(ctx context.Context, dim int) error { return nil }

func (f *fakeStore) UpsertDocs(ctx context.Context, docs []vector.Doc, vectors [][]float32) error {
	return nil
}

func (f *fakeStore) Search(ctx context.Context, vec []float32, limit int) ([]vector.SearchResult, error) {
	f.lastLimit = limit
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.results, nil
}

func payrollResults() []vector.SearchResult {
	return []vector.SearchResult{
		{
			ID:    "a",
			Score: 0.9,
			Payload: map[string]interface{}{
				"kind": "paragraph", "program": "PAYROLL",
				"division": "PROCEDURE", "section": "PROCEDURE",
				"paragraph": "MAIN-PARA",
				"content":   "Drives the payroll run.",
			},
		},
		{
			ID:    "b",
			Score: 0.5,
			Payload: map[string]interface{}{
				"kind": "story", "program": "PAYROLL",
				"title":   "Compute pay",
				"content": "As a clerk, I want pay computed, so that runs finish.",
			},
		},
	}
}

func TestAskGroundsAnswerInContext(t *testing.T) {
	provider := &fakeProvider{reply: "PAYROLL drives the run."}
	store := &fakeStore{available: true, results: payrollResults()}
	engine := NewEngine(provider, store)

	answer, err := engine.Ask(context.Background(), "What does PAYROLL do?", nil)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if answer.Text != "PAYROLL drives the run." {
		t.Fatalf("unexpected answer: %q", answer.Text)
	}
	if len(answer.References) != 2 {
		t.Fatalf("expected 2 references, got %+v", answer.References)
	}
	if answer.References[0].Paragraph != "MAIN-PARA" || answer.References[1].Title != "Compute pay" {
		t.Fatalf("reference locations lost: %+v", answer.References)
	}
	if store.lastLimit != defaultRetrievalLimit {
		t.Fatalf("unexpected search limit: %d", store.lastLimit)
	}
	if len(provider.messages) == 0 || provider.messages[0].Role != "system" {
		t.Fatalf("system prompt missing: %+v", provider.messages)
	}
	if !strings.Contains(provider.messages[0].Content, "Drives the payroll run.") {
		t.Fatalf("context not injected into prompt: %q", provider.messages[0].Content)
	}
}

func TestAskWithoutVectorStore(t *testing.T) {
	provider := &fakeProvider{reply: "No context available."}
	engine := NewEngine(provider, nil)

	answer, err := engine.Ask(context.Background(), "Anything indexed?", nil)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if len(answer.References) != 0 {
		t.Fatalf("unexpected references: %+v", answer.References)
	}
	if answer.Text != "No context available." {
		t.Fatalf("unexpected answer: %q", answer.Text)
	}
}

func TestAskToleratesSearchFailure(t *testing.T) {
	provider := &fakeProvider{reply: "Answering blind."}
	store := &fakeStore{available: true, searchErr: errors.New("down")}
	engine := NewEngine(provider, store)

	answer, err := engine.Ask(context.Background(), "What does PAYROLL do?", nil)
	if err != nil {
		t.Fatalf("Ask should degrade, got: %v", err)
	}
	if len(answer.References) != 0 {
		t.Fatalf("unexpected references: %+v", answer.References)
	}
}

func TestAskPropagatesModelFailure(t *testing.T) {
	provider := &fakeProvider{chatErr: errors.New("model down")}
	engine := NewEngine(provider, nil)
	if _, err := engine.Ask(context.Background(), "hello", nil); err == nil {
		t.Fatal("expected model error")
	}
}

func TestAskCarriesHistory(t *testing.T) {
	provider := &fakeProvider{reply: "It performs CALC-PARA."}
	engine := NewEngine(provider, nil)

	history := []llm.Message{
		{Role: "user", Content: "What does PAYROLL do?"},
		{Role: "assistant", Content: "It drives the payroll run."},
	}
	if _, err := engine.Ask(context.Background(), "Which paragraph does it call?", history); err != nil {
		t.Fatalf("Ask: %v", err)
	}
	roles := make([]string, len(provider.messages))
	for i, msg := range provider.messages {
		roles[i] = msg.Role
	}
	if got := strings.Join(roles, ","); got != "system,user,assistant,user" {
		t.Fatalf("unexpected role order: %s", got)
	}
}

func TestAskRejectsEmptyQuestion(t *testing.T) {
	engine := NewEngine(&fakeProvider{}, nil)
	if _, err := engine.Ask(context.Background(), "   ", nil); err == nil {
		t.Fatal("expected error for empty question")
	}
}

func TestFormatContextSkipsEmptyContent(t *testing.T) {
	results := []vector.SearchResult{
		{Payload: map[string]interface{}{"program": "PAYROLL", "content": "   "}},
		{Payload: map[string]interface{}{"program": "PAYROLL", "paragraph": "MAIN-PARA", "content": "Drives the run."}},
	}
	out := formatContext(results)
	if !strings.HasPrefix(out, "[1] PAYROLL / MAIN-PARA") {
		t.Fatalf("unexpected context:\n%s", out)
	}
	if strings.Contains(out, "[2]") {
		t.Fatalf("blank snippet should be dropped:\n%s", out)
	}
}
