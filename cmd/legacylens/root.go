// File path: cmd/legacylens/root.go
package main

import (
	"context"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/legacylens/legacylens/internal/catalog"
	"github.com/legacylens/legacylens/internal/common"
	"github.com/legacylens/legacylens/internal/graph"
	"github.com/legacylens/legacylens/internal/graph/kuzu"
	"github.com/legacylens/legacylens/internal/graph/memory"
	"github.com/legacylens/legacylens/internal/llm"
	"github.com/legacylens/legacylens/internal/pipeline"
	"github.com/legacylens/legacylens/internal/summary"
	"github.com/legacylens/legacylens/internal/vector"
)

func newRootCommand() *cobra.Command {
	var catalogPath string
	root := &cobra.Command{
		Use:          "legacylens",
		Short:        "Structural analysis and documentation for legacy COBOL portfolios",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger := common.Logger()
			if err := godotenv.Load(); err != nil {
				logger.Debug("cli: .env file not loaded", "error", err)
			} else {
				logger.Info("cli: environment loaded from .env")
			}
		},
	}
	root.PersistentFlags().StringVar(&catalogPath, "catalog", "", "path to the SQLite catalog database (defaults to CATALOG_PATH)")
	root.AddCommand(
		newServeCommand(&catalogPath),
		newPipelineCommand(&catalogPath),
		newChatCommand(&catalogPath),
	)
	return root
}

// app bundles the collaborators a command operates on. The vector backend is
// optional: construction warns and degrades instead of failing. The graph
// falls back to the in-memory backend when kuzu is disabled.
type app struct {
	store      *catalog.Store
	provider   llm.Provider
	vector     vector.Store
	graph      graph.Client
	summarizer *summary.Summarizer
}

func newApp(ctx context.Context, catalogPath string) (*app, error) {
	logger := common.Logger()
	store, err := catalog.Open(catalogPath)
	if err != nil {
		return nil, err
	}
	provider := llm.NewProvider()
	a := &app{
		store:      store,
		provider:   provider,
		summarizer: summary.NewSummarizer(provider),
	}
	if client, err := vector.NewFromEnv(ctx); err != nil {
		logger.Warn("cli: vector store unavailable", "error", err)
	} else if client != nil {
		a.vector = client
	}
	if client, err := kuzu.NewFromEnv(ctx); err != nil {
		logger.Warn("cli: kuzu unavailable; using in-memory graph", "error", err)
		a.graph = memory.NewService()
	} else if client != nil {
		a.graph = client
	} else {
		logger.Info("cli: kuzu disabled; using in-memory graph")
		a.graph = memory.NewService()
	}
	return a, nil
}

func (a *app) Close() {
	if a.graph != nil {
		_ = a.graph.Close()
	}
	if a.vector != nil {
		_ = a.vector.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
}

func (a *app) pipelineDeps(sourceDir string) pipeline.Deps {
	return pipeline.Deps{
		Store:      a.store,
		Graph:      a.graph,
		Vector:     a.vector,
		Provider:   a.provider,
		Summarizer: a.summarizer,
		SourceDir:  sourceDir,
	}
}
