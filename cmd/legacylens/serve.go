// File path: cmd/legacylens/serve.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/legacylens/legacylens/internal/api"
	"github.com/legacylens/legacylens/internal/chat"
	"github.com/legacylens/legacylens/internal/common"
	"github.com/legacylens/legacylens/internal/common/process"
	"github.com/legacylens/legacylens/internal/pipeline"
	"github.com/legacylens/legacylens/internal/report"
)

func newServeCommand(catalogPath *string) *cobra.Command {
	var (
		addr        string
		sourceDir   string
		autoStart   bool
		stopTimeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := common.Logger()

			var services []*process.ManagedService
			if autoStart {
				started, err := startHelperServices(ctx, stopTimeout)
				if err != nil {
					return fmt.Errorf("launch helper services: %w", err)
				}
				services = started
				defer stopHelperServices(context.Background(), services)
			}

			app, err := newApp(ctx, *catalogPath)
			if err != nil {
				return err
			}
			defer app.Close()

			deps := app.pipelineDeps(sourceDir)
			server, err := api.NewServer(api.Deps{
				Store:    app.store,
				Runner:   pipeline.NewRunner(pipeline.Steps(deps)...),
				Engine:   chat.NewEngine(app.provider, app.vector),
				Reports:  report.NewService(app.store),
				Provider: app.provider,
				Vector:   app.vector,
				Graph:    app.graph,
			})
			if err != nil {
				return err
			}

			httpServer := &http.Server{Addr: addr, Handler: server}
			errCh := make(chan error, 1)
			go func() {
				logger.Info("cli: server listening", "addr", addr, "health", "/healthz")
				errCh <- httpServer.ListenAndServe()
			}()
			select {
			case err := <-errCh:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
				logger.Info("cli: shutdown requested")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
				defer cancel()
				return httpServer.Shutdown(shutdownCtx)
			}
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8081", "listen address")
	cmd.Flags().StringVar(&sourceDir, "source", "sources", "directory of COBOL sources for pipeline runs")
	cmd.Flags().BoolVar(&autoStart, "auto-start-services", false, "launch helper services configured via CHROMA_COMMAND and KUZU_COMMAND")
	cmd.Flags().DurationVar(&stopTimeout, "stop-timeout", 10*time.Second, "grace period for shutdown")
	return cmd
}

// startHelperServices launches the external vector and graph backends when
// the environment names a command for them. Missing commands are skipped.
func startHelperServices(ctx context.Context, stopTimeout time.Duration) ([]*process.ManagedService, error) {
	logger := common.Logger()
	specs := []struct {
		name     string
		cmdEnv   string
		readyEnv string
	}{
		{"chromadb", "CHROMA_COMMAND", "CHROMA_READY_URL"},
		{"kuzu", "KUZU_COMMAND", "KUZU_READY_URL"},
	}
	var services []*process.ManagedService
	for _, spec := range specs {
		raw := strings.TrimSpace(os.Getenv(spec.cmdEnv))
		if raw == "" {
			logger.Debug("cli: helper service not configured", "service", spec.name)
			continue
		}
		parts := strings.Fields(raw)
		svc, err := process.Start(ctx, process.ServiceConfig{
			Name:         spec.name,
			Command:      parts[0],
			Args:         parts[1:],
			ReadyURL:     strings.TrimSpace(os.Getenv(spec.readyEnv)),
			ReadyTimeout: 2 * time.Minute,
			StopTimeout:  stopTimeout,
			Logger:       common.Logger().With("component", "launcher", "service", spec.name),
		})
		if err != nil {
			stopHelperServices(context.Background(), services)
			return nil, err
		}
		services = append(services, svc)
	}
	return services, nil
}

func stopHelperServices(ctx context.Context, services []*process.ManagedService) {
	logger := common.Logger()
	for i := len(services) - 1; i >= 0; i-- {
		if services[i] == nil {
			continue
		}
		if err := services[i].Stop(ctx); err != nil {
			logger.Warn("cli: helper service shutdown returned error", "error", err)
		}
	}
}
