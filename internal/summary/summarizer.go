// File path: internal/summary/summarizer.go
package summary

import (
	"context"
	"fmt"
	"strings"

	"github.com/legacylens/legacylens/internal/common"
	"github.com/legacylens/legacylens/internal/common/telemetry"
	"github.com/legacylens/legacylens/internal/llm"
)

const errorPrefix = "Error: "

const summarySystemPrompt = "You are an expert COBOL analyst. Summarize the given COBOL code " +
	"for a developer unfamiliar with the program. Describe what the code does in plain " +
	"business terms, in at most five sentences. Do not quote the code back."

// Summarizer produces natural-language summaries for parsed COBOL units.
type Summarizer struct {
	provider llm.Provider
}

func NewSummarizer(provider llm.Provider) *Summarizer {
	return &Summarizer{provider: provider}
}

// Summarize returns a prose summary of the code unit. It never returns an
// error: a failed model call yields a summary string starting with "Error: "
// so the pipeline can persist the outcome and retry the unit on a later run.
func (s *Summarizer) Summarize(ctx context.Context, scope, name, code string) string {
	if s == nil || s.provider == nil {
		telemetry.RecordSummary(scope, true)
		return errorPrefix + "no model provider configured"
	}
	if strings.TrimSpace(code) == "" {
		telemetry.RecordSummary(scope, true)
		return errorPrefix + "empty code unit"
	}
	ctx, finish := telemetry.StartSpan(ctx, "summary."+scope)
	defer finish("name", name)

	prompt := fmt.Sprintf("Summarize this COBOL %s named %s:\n\n%s", scope, name, code)
	text, err := s.provider.Chat(ctx, []llm.Message{
		{Role: "system", Content: summarySystemPrompt},
		{Role: "user", Content: prompt},
	})
	if err != nil {
		common.Logger().Warn("summary: model call failed",
			"scope", scope, "name", name, "error", err)
		telemetry.RecordSummary(scope, true)
		return errorPrefix + err.Error()
	}
	telemetry.RecordSummary(scope, false)
	return strings.TrimSpace(text)
}

// IsErrorSummary reports whether a stored summary records a failed model
// call rather than real content.
func IsErrorSummary(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), errorPrefix)
}
