// File path: cmd/legacylens/root_test.go
package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/legacylens/legacylens/internal/graph/memory"
)

func TestNewAppFallsBackToMemoryGraph(t *testing.T) {
	t.Setenv("KUZU_ENDPOINT", "")
	t.Setenv("KUZU_CONFIG_FILE", "")
	t.Setenv("OPENAI_API_KEY", "")

	app, err := newApp(context.Background(), filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	defer app.Close()

	if app.graph == nil {
		t.Fatal("expected a graph client without a kuzu endpoint")
	}
	if _, ok := app.graph.(*memory.Service); !ok {
		t.Fatalf("expected in-memory graph fallback, got %T", app.graph)
	}
	if !app.graph.Available() {
		t.Fatal("in-memory graph should report available")
	}

	deps := app.pipelineDeps(t.TempDir())
	if deps.Graph == nil || !deps.Graph.Available() {
		t.Fatal("pipeline deps should carry a usable graph client")
	}
}
