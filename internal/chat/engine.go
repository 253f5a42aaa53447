// File path: internal/chat/engine.go
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langgraphgo/graph"

	"github.com/legacylens/legacylens/internal/common"
	"github.com/legacylens/legacylens/internal/common/telemetry"
	"github.com/legacylens/legacylens/internal/llm"
	"github.com/legacylens/legacylens/internal/vector"
)

const defaultRetrievalLimit = 5

const chatSystemPrompt = "You are an assistant answering questions about a portfolio of " +
	"legacy COBOL programs. Ground every answer in the provided context snippets and say " +
	"so when the context does not cover the question."

// Engine answers questions over the indexed program knowledge. Each turn
// runs a two-node graph: retrieve context from the vector store, then answer
// with the model.
type Engine struct {
	provider llm.Provider
	store    vector.Store
	limit    int
}

// Reference points at the indexed unit a context snippet came from.
type Reference struct {
	Kind      string  `json:"kind"`
	Program   string  `json:"program"`
	Division  string  `json:"division,omitempty"`
	Section   string  `json:"section,omitempty"`
	Paragraph string  `json:"paragraph,omitempty"`
	Title     string  `json:"title,omitempty"`
	Score     float32 `json:"score"`
}

// Answer is one completed chat turn.
type Answer struct {
	Text       string      `json:"text"`
	References []Reference `json:"references,omitempty"`
}

func NewEngine(provider llm.Provider, store vector.Store) *Engine {
	return &Engine{provider: provider, store: store, limit: defaultRetrievalLimit}
}

// Ask answers one question, optionally continuing a prior exchange. A
// missing or unreachable vector store degrades to an uncontexted answer
// instead of failing the turn.
func (e *Engine) Ask(ctx context.Context, question string, history []llm.Message) (*Answer, error) {
	if e == nil || e.provider == nil {
		return nil, errors.New("chat engine not configured")
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, errors.New("question required")
	}
	ctx, finish := telemetry.StartSpan(ctx, "chat.turn")
	defer finish("history", len(history))

	answer := &Answer{}
	g := graph.NewMessageGraph()
	g.AddNode("retrieve", func(ctx context.Context, state []llms.MessageContent) ([]llms.MessageContent, error) {
		refs, snippets := e.retrieve(ctx, question)
		answer.References = refs
		system := chatSystemPrompt
		if snippets != "" {
			system += "\n\nContext:\n" + snippets
		}
		prefixed := make([]llms.MessageContent, 0, len(state)+1)
		prefixed = append(prefixed, llms.TextParts(llms.ChatMessageTypeSystem, system))
		return append(prefixed, state...), nil
	})
	g.AddNode("answer", func(ctx context.Context, state []llms.MessageContent) ([]llms.MessageContent, error) {
		text, err := e.provider.Chat(ctx, toProviderMessages(state))
		if err != nil {
			return nil, fmt.Errorf("model call: %w", err)
		}
		return append(state, llms.TextParts(llms.ChatMessageTypeAI, text)), nil
	})
	g.AddEdge("retrieve", "answer")
	g.AddEdge("answer", graph.END)
	g.SetEntryPoint("retrieve")

	runnable, err := g.Compile()
	if err != nil {
		return nil, fmt.Errorf("compile chat graph: %w", err)
	}
	state := historyMessages(history)
	state = append(state, llms.TextParts(llms.ChatMessageTypeHuman, question))
	result, err := runnable.Invoke(ctx, state)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, errors.New("empty chat result")
	}
	answer.Text = messageText(result[len(result)-1])
	telemetry.RecordChatTurn()
	return answer, nil
}

// retrieve embeds the question and searches the vector store. Failures are
// logged and swallowed: the turn proceeds without context.
func (e *Engine) retrieve(ctx context.Context, question string) ([]Reference, string) {
	logger := common.Logger()
	if e.store == nil || !e.store.Available() {
		logger.Debug("chat: vector store not available; answering without context")
		return nil, ""
	}
	vectors, err := e.provider.Embed(ctx, []string{question})
	if err != nil || len(vectors) == 0 {
		logger.Warn("chat: question embedding failed", "error", err)
		return nil, ""
	}
	results, err := e.store.Search(ctx, vectors[0], e.limit)
	if err != nil {
		logger.Warn("chat: context search failed", "error", err)
		return nil, ""
	}
	refs := make([]Reference, 0, len(results))
	for _, result := range results {
		refs = append(refs, referenceFromPayload(result))
	}
	return refs, formatContext(results)
}

// formatContext renders search results as numbered snippets with their
// source location, the shape the system prompt tells the model to cite.
func formatContext(results []vector.SearchResult) string {
	var b strings.Builder
	n := 0
	for _, result := range results {
		content, _ := result.Payload["content"].(string)
		if strings.TrimSpace(content) == "" {
			continue
		}
		n++
		fmt.Fprintf(&b, "[%d] %s\n%s\n\n", n, locationLine(result.Payload), strings.TrimSpace(content))
	}
	return strings.TrimSpace(b.String())
}

func locationLine(payload map[string]interface{}) string {
	parts := make([]string, 0, 4)
	for _, key := range []string{"program", "division", "section", "paragraph", "title"} {
		if value, _ := payload[key].(string); value != "" {
			parts = append(parts, value)
		}
	}
	if len(parts) == 0 {
		return "unknown source"
	}
	return strings.Join(parts, " / ")
}

func referenceFromPayload(result vector.SearchResult) Reference {
	str := func(key string) string {
		value, _ := result.Payload[key].(string)
		return value
	}
	return Reference{
		Kind:      str("kind"),
		Program:   str("program"),
		Division:  str("division"),
		Section:   str("section"),
		Paragraph: str("paragraph"),
		Title:     str("title"),
		Score:     result.Score,
	}
}

func historyMessages(history []llm.Message) []llms.MessageContent {
	state := make([]llms.MessageContent, 0, len(history)+1)
	for _, msg := range history {
		switch msg.Role {
		case "assistant":
			state = append(state, llms.TextParts(llms.ChatMessageTypeAI, msg.Content))
		case "system":
			state = append(state, llms.TextParts(llms.ChatMessageTypeSystem, msg.Content))
		default:
			state = append(state, llms.TextParts(llms.ChatMessageTypeHuman, msg.Content))
		}
	}
	return state
}

func toProviderMessages(state []llms.MessageContent) []llm.Message {
	messages := make([]llm.Message, 0, len(state))
	for _, msg := range state {
		role := "user"
		switch msg.Role {
		case llms.ChatMessageTypeSystem:
			role = "system"
		case llms.ChatMessageTypeAI:
			role = "assistant"
		}
		messages = append(messages, llm.Message{Role: role, Content: messageText(msg)})
	}
	return messages
}

func messageText(msg llms.MessageContent) string {
	var b strings.Builder
	for _, part := range msg.Parts {
		if text, ok := part.(llms.TextContent); ok {
			b.WriteString(text.Text)
		}
	}
	return b.String()
}
