package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/popn-score-crawler/internal/api"
	"github.com/JakeFAU/popn-score-crawler/internal/progress"
	"github.com/JakeFAU/popn-score-crawler/internal/progress/sinks"
)

const shutdownTimeout = 10 * time.Second

// newServeCmd creates the 'serve' subcommand hosting the HTTP control surface.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serves the run control API",
		Long: `Starts an HTTP server that starts and stops runs in the background,
reports their progress, and serves the latest snapshot as JSON, viewer,
table or chart. Finished runs are exported to the configured store.`,
		RunE: runServeCommand,
	}
}

func runServeCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg := appInstance.Config
	logger := appInstance.Logger

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	status := sinks.NewStatusSink(cfg.Crawl.MaxLevel)
	promSink, err := sinks.NewPrometheusSink(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("init prometheus sink: %w", err)
	}
	hub := progress.NewHub(
		progress.Config{Logger: logger},
		sinks.NewLogSink(logger.Named("progress")),
		promSink,
		status,
	)

	orch, err := buildOrchestrator(cfg, hub, logger)
	if err != nil {
		return err
	}

	pipeline, release, err := openPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer release()

	// Runs outlive the signal context so shutdown can stop them cooperatively.
	runCtx, cancelRuns := context.WithCancel(cmd.Context())
	defer cancelRuns()

	apiServer := api.NewServer(runCtx, orch, status, pipeline, cfg, logger)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	orch.RequestStop()
	for orch.Running() && shutdownCtx.Err() == nil {
		time.Sleep(50 * time.Millisecond)
	}
	cancelRuns()
	if err := apiServer.WaitFinished(shutdownCtx); err != nil {
		logger.Warn("finished runs not exported before shutdown", zap.Error(err))
	}
	if err := hub.Close(shutdownCtx); err != nil {
		logger.Warn("failed to close progress hub", zap.Error(err))
	}
	logger.Info("shutdown complete")
	return nil
}
