package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/JakeFAU/popn-score-crawler/internal/clock/system"
	"github.com/JakeFAU/popn-score-crawler/internal/config"
	"github.com/JakeFAU/popn-score-crawler/internal/crawler"
	"github.com/JakeFAU/popn-score-crawler/internal/export"
	collyfetcher "github.com/JakeFAU/popn-score-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/popn-score-crawler/internal/history"
	idgen "github.com/JakeFAU/popn-score-crawler/internal/id/uuid"
	"github.com/JakeFAU/popn-score-crawler/internal/orchestrator"
	"github.com/JakeFAU/popn-score-crawler/internal/policy/delay"
	"github.com/JakeFAU/popn-score-crawler/internal/progress"
	pubmemory "github.com/JakeFAU/popn-score-crawler/internal/publisher/memory"
	"github.com/JakeFAU/popn-score-crawler/internal/publisher/pubsub"
)

// buildOrchestrator wires the colly fetcher, the timer pacer and the system
// clock into an Orchestrator for cfg.
func buildOrchestrator(cfg config.Config, emitter progress.Emitter, logger *zap.Logger) (*orchestrator.Orchestrator, error) {
	site, err := crawler.NewSite(cfg.Site.BaseURL, cfg.Site.GamePath)
	if err != nil {
		return nil, fmt.Errorf("init site: %w", err)
	}
	if cfg.Site.SessionCookie == "" {
		logger.Warn("no session cookie configured; the site will redirect to its login page")
	}
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:     cfg.Site.UserAgent,
		SessionCookie: cfg.Site.SessionCookie,
		Timeout:       cfg.RequestTimeout(),
	}, logger)
	return orchestrator.New(
		fetcher,
		delay.New(),
		system.New(),
		idgen.New(),
		orchestrator.Config{
			Site:        site,
			PageDelay:   cfg.PageDelay(),
			DetailDelay: cfg.DetailDelay(),
			MaxLevel:    cfg.Crawl.MaxLevel,
		},
		emitter,
		logger,
	), nil
}

// writeFile streams write into path, creating or truncating it.
func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path) //nolint:gosec // path comes from the operator's flags
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

// withStore opens the configured export store for the duration of fn.
func withStore(ctx context.Context, cfg config.ExportConfig, logger *zap.Logger, fn func(crawler.BlobStore) error) error {
	store, closeStore, err := export.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeStore(); cerr != nil {
			logger.Warn("failed to close export store", zap.Error(cerr))
		}
	}()
	return fn(store)
}

// openPipeline wires the post-run steps from cfg: the export store, the
// in-process run history and the optional Pub/Sub notifier. A dry run keeps
// notices in memory instead of publishing them. The returned func releases
// everything that was opened.
func openPipeline(ctx context.Context, cfg config.Config, logger *zap.Logger) (*history.Pipeline, func(), error) {
	var closers []func() error
	release := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Warn("failed to release resource", zap.Error(err))
			}
		}
	}

	store, closeStore, err := export.OpenStore(ctx, cfg.Export, logger)
	if err != nil {
		return nil, nil, err
	}
	closers = append(closers, closeStore)

	var publisher history.Publisher
	switch {
	case cfg.Notify.Topic == "":
	case cfg.Export.DryRun:
		pub := pubmemory.New()
		closers = append(closers, func() error {
			for _, msg := range pub.Messages() {
				logger.Info("dry run notice discarded",
					zap.String("topic", msg.Topic),
					zap.String("id", msg.ID),
					zap.ByteString("data", msg.Data),
				)
			}
			return nil
		})
		publisher = pub
	default:
		pub, err := pubsub.Open(ctx, cfg.Notify.ProjectID)
		if err != nil {
			release()
			return nil, nil, fmt.Errorf("open notifier: %w", err)
		}
		closers = append(closers, pub.Close)
		publisher = pub
		logger.Info("announcing runs", zap.String("topic", cfg.Notify.Topic))
	}

	return history.NewPipeline(export.New(store, logger), history.NewMemoryStore(), publisher, cfg.Notify.Topic, logger), release, nil
}
