package export

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/popn-score-crawler/internal/config"
	"github.com/JakeFAU/popn-score-crawler/internal/crawler"
	"github.com/JakeFAU/popn-score-crawler/internal/storage/gcs"
	"github.com/JakeFAU/popn-score-crawler/internal/storage/local"
	"github.com/JakeFAU/popn-score-crawler/internal/storage/memory"
)

// OpenStore selects the export target: memory for a dry run, a GCS bucket when
// one is configured, the local export directory otherwise. The returned func
// releases the store.
func OpenStore(ctx context.Context, cfg config.ExportConfig, logger *zap.Logger) (crawler.BlobStore, func() error, error) {
	if cfg.DryRun {
		store := memory.NewBlobStore()
		logger.Info("dry run: artifacts are kept in memory")
		return store, func() error {
			for _, path := range store.Paths() {
				obj, _ := store.Get(path)
				logger.Info("dry run artifact discarded",
					zap.String("path", path),
					zap.String("content_type", obj.ContentType),
					zap.Int("bytes", len(obj.Data)),
				)
			}
			return nil
		}, nil
	}
	if strings.TrimSpace(cfg.GCSBucket) != "" {
		store, err := gcs.Open(ctx, gcs.Config{Bucket: cfg.GCSBucket, Prefix: cfg.Prefix}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open gcs export store: %w", err)
		}
		logger.Info("exporting to gcs", zap.String("bucket", cfg.GCSBucket), zap.String("prefix", cfg.Prefix))
		return store, store.Close, nil
	}
	store, err := local.New(local.Config{BaseDir: cfg.Dir})
	if err != nil {
		return nil, nil, fmt.Errorf("open local export store: %w", err)
	}
	logger.Info("exporting to directory", zap.String("dir", cfg.Dir))
	return store, func() error { return nil }, nil
}
