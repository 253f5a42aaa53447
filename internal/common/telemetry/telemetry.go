// File path: internal/common/telemetry/telemetry.go
package telemetry

import (
	"context"
	"expvar"
	"strings"
	"sync"
	"time"

	"github.com/legacylens/legacylens/internal/common"
)

type spanKey struct{}

type span struct {
	name  string
	start time.Time
}

var (
	initOnce sync.Once

	parsePrograms   *expvar.Int
	parseParagraphs *expvar.Int

	summaryCalls    *expvar.Map
	summaryFailures *expvar.Map

	vectorUpserts   *expvar.Int
	vectorSearches  *expvar.Int
	vectorLatencyMS *expvar.Int

	graphLoads     *expvar.Map
	pipelineSteps  *expvar.Map
	chatTurnsTotal *expvar.Int
)

func ensureInit() {
	initOnce.Do(func() {
		parsePrograms = expvar.NewInt("legacylens_parse_programs_total")
		parseParagraphs = expvar.NewInt("legacylens_parse_paragraphs_total")

		summaryCalls = expvar.NewMap("legacylens_summary_calls_total")
		summaryFailures = expvar.NewMap("legacylens_summary_failures_total")

		vectorUpserts = expvar.NewInt("legacylens_vector_upserts_total")
		vectorSearches = expvar.NewInt("legacylens_vector_searches_total")
		vectorLatencyMS = expvar.NewInt("legacylens_vector_latency_ms")

		graphLoads = expvar.NewMap("legacylens_graph_loads_total")
		pipelineSteps = expvar.NewMap("legacylens_pipeline_steps_total")
		chatTurnsTotal = expvar.NewInt("legacylens_chat_turns_total")
	})
}

// StartSpan records the start of a named unit of work and returns a finish
// function that logs the elapsed time together with any extra attributes.
func StartSpan(ctx context.Context, name string) (context.Context, func(attrs ...interface{})) {
	ensureInit()
	sp := &span{name: name, start: time.Now()}
	ctx = context.WithValue(ctx, spanKey{}, sp)
	logger := common.Logger()
	logger.Debug("trace: start", "span", name)
	return ctx, func(attrs ...interface{}) {
		duration := time.Since(sp.start)
		logger.Debug("trace: end", append([]interface{}{"span", name, "dur", duration}, attrs...)...)
	}
}

// SpanDuration reports the elapsed time of the innermost span on ctx.
func SpanDuration(ctx context.Context) time.Duration {
	sp, _ := ctx.Value(spanKey{}).(*span)
	if sp == nil {
		return 0
	}
	return time.Since(sp.start)
}

// RecordParse counts one parsed program and its paragraphs.
func RecordParse(paragraphs int) {
	ensureInit()
	parsePrograms.Add(1)
	if paragraphs > 0 {
		parseParagraphs.Add(int64(paragraphs))
	}
}

// RecordSummary counts one summarization call for the given scope
// (division, section, paragraph or story).
func RecordSummary(scope string, failed bool) {
	ensureInit()
	key := normalizeKey(scope, "unknown")
	summaryCalls.Add(key, 1)
	if failed {
		summaryFailures.Add(key, 1)
	}
}

// RecordVectorUpsert counts documents written to the vector index.
func RecordVectorUpsert(docs int) {
	ensureInit()
	if docs > 0 {
		vectorUpserts.Add(int64(docs))
	}
}

// RecordVectorSearch counts one similarity search.
func RecordVectorSearch(duration time.Duration) {
	ensureInit()
	vectorSearches.Add(1)
	if duration > 0 {
		vectorLatencyMS.Add(duration.Milliseconds())
	}
}

// RecordGraphLoad counts nodes or edges pushed to the graph database.
func RecordGraphLoad(kind string, count int) {
	ensureInit()
	if count <= 0 {
		return
	}
	graphLoads.Add(normalizeKey(kind, "unknown"), int64(count))
}

// RecordPipelineStep counts one completed pipeline step by outcome.
func RecordPipelineStep(step string, failed bool) {
	ensureInit()
	key := normalizeKey(step, "unknown")
	if failed {
		key += "_failed"
	}
	pipelineSteps.Add(key, 1)
}

// RecordChatTurn counts one question answered by the chat engine.
func RecordChatTurn() {
	ensureInit()
	chatTurnsTotal.Add(1)
}

func normalizeKey(key, fallback string) string {
	key = strings.TrimSpace(strings.ToLower(key))
	if key == "" {
		return fallback
	}
	return key
}
