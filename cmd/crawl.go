package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/popn-score-crawler/internal/orchestrator"
	"github.com/JakeFAU/popn-score-crawler/internal/progress"
	"github.com/JakeFAU/popn-score-crawler/internal/progress/sinks"
	"github.com/JakeFAU/popn-score-crawler/internal/render"
)

type crawlFlags struct {
	deep     bool
	dryRun   bool
	out      string
	chart    string
	maxLevel int
}

// newCrawlCmd creates the 'crawl' subcommand, a single run in the foreground.
func newCrawlCmd() *cobra.Command {
	var flags crawlFlags
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawls the play-data pages once and exports the result",
		Long: `Fetches the player status page and every level list (1 through
crawl.max_level), merges the charts per song, and exports the snapshot as
JSON plus the HTML viewer. The first interrupt stops the run before its next
request and still exports what was collected; a second one aborts.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawlCommand(cmd, flags)
		},
	}
	cmd.Flags().BoolVar(&flags.deep, "deep", false, "also fetch every song's detail page")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "keep the export and run notice in memory instead of writing them")
	cmd.Flags().StringVar(&flags.out, "out", "", "export directory (overrides export.dir)")
	cmd.Flags().StringVar(&flags.chart, "chart", "", "write the top-charts PNG to this path")
	cmd.Flags().IntVar(&flags.maxLevel, "max-level", 0, "highest level to crawl (overrides crawl.max_level)")
	return cmd
}

func runCrawlCommand(cmd *cobra.Command, flags crawlFlags) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg := appInstance.Config
	logger := appInstance.Logger
	if flags.out != "" {
		cfg.Export.Dir = flags.out
	}
	if flags.dryRun {
		cfg.Export.DryRun = true
	}
	if cmd.Flags().Changed("max-level") {
		cfg.Crawl.MaxLevel = flags.maxLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	hub := progress.NewHub(progress.Config{Logger: logger}, sinks.NewLogSink(logger.Named("progress")))
	defer func() {
		if cerr := hub.Close(context.Background()); cerr != nil {
			logger.Warn("failed to close progress hub", zap.Error(cerr))
		}
	}()

	orch, err := buildOrchestrator(cfg, hub, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	stopWatching := watchInterrupts(ctx, orch, cancel, logger)
	defer stopWatching()

	res, runErr := orch.Run(ctx, orchestrator.Options{Deep: cfg.Crawl.Deep || flags.deep})
	fmt.Fprintln(cmd.ErrOrStderr(), res.Message)

	if len(res.Snapshot.Scores) == 0 {
		logger.Warn("nothing to export", zap.String("status", string(res.Status)))
	}
	// Partial results are exported even after an abort.
	finishCtx := context.WithoutCancel(ctx)
	pipeline, closePipeline, err := openPipeline(finishCtx, cfg, logger)
	if err != nil {
		return err
	}
	defer closePipeline()
	if _, err := pipeline.Finish(finishCtx, res); err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if len(res.Snapshot.Scores) == 0 {
		return runErr
	}
	fmt.Fprintln(cmd.OutOrStdout(), render.Table(res.Snapshot))
	if flags.chart != "" {
		if err := writeFile(flags.chart, func(w io.Writer) error { return render.Chart(w, res.Snapshot) }); err != nil {
			logger.Warn("chart not written", zap.Error(err))
		}
	}
	return runErr
}

type stopper interface {
	RequestStop()
}

// watchInterrupts turns the first SIGINT or SIGTERM into a cooperative stop
// and the second into cancellation. The returned func stops watching.
func watchInterrupts(ctx context.Context, run stopper, cancel context.CancelFunc, logger *zap.Logger) func() {
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		requested := false
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case sig := <-sigs:
				if !requested {
					requested = true
					logger.Warn("stop requested; finishing the current request", zap.Stringer("signal", sig))
					run.RequestStop()
					continue
				}
				logger.Warn("aborting run", zap.Stringer("signal", sig))
				cancel()
				return
			}
		}
	}()
	return func() {
		signal.Stop(sigs)
		close(done)
	}
}
