package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/popn-score-crawler/internal/clock/system"
	"github.com/JakeFAU/popn-score-crawler/internal/crawler"
	"github.com/JakeFAU/popn-score-crawler/internal/orchestrator"
)

// dumpDocument is the exported HTML dump.
type dumpDocument struct {
	CapturedAt string                  `json:"capturedAt"`
	Pages      []orchestrator.DumpPage `json:"pages"`
}

// newDumpCmd creates the 'dump' subcommand, which captures raw pages for
// diagnosing selector drift.
func newDumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "Captures raw HTML of representative play-data pages",
		Long: `Fetches the status page, the first page of a few levels and one
detail page, and exports their raw HTML as popn_html_dump_<date>.json.`,
		RunE: runDumpCommand,
	}
}

func runDumpCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg := appInstance.Config
	logger := appInstance.Logger

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	orch, err := buildOrchestrator(cfg, nil, logger)
	if err != nil {
		return err
	}
	pages, err := orch.Dump(ctx)
	if err != nil {
		return fmt.Errorf("dump pages: %w", err)
	}

	now := system.New().Now()
	data, err := json.MarshalIndent(dumpDocument{CapturedAt: now.Format(time.RFC3339), Pages: pages}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode dump: %w", err)
	}
	name := "popn_html_dump_" + now.Format("2006-01-02") + ".json"
	var uri string
	writeCtx := context.WithoutCancel(ctx)
	err = withStore(writeCtx, cfg.Export, logger, func(store crawler.BlobStore) error {
		var err error
		uri, err = store.PutObject(writeCtx, name, "application/json", bytes.NewReader(data))
		return err
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	logger.Info("html dump written", zap.String("uri", uri), zap.Int("pages", len(pages)))
	fmt.Fprintln(cmd.OutOrStdout(), uri)
	return nil
}
