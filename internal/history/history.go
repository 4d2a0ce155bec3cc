// Package history handles finished runs: it exports their snapshot, keeps a
// summary for the run history and announces the result to subscribers.
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/popn-score-crawler/internal/crawler"
	"github.com/JakeFAU/popn-score-crawler/internal/export"
	"github.com/JakeFAU/popn-score-crawler/internal/orchestrator"
)

// DefaultLimit bounds ListRuns when the caller passes no limit.
const DefaultLimit = 20

// Record summarizes one finished run. It is both the history entry and the
// published notification.
type Record struct {
	RunID      string    `json:"runId"`
	Status     string    `json:"status"`
	Message    string    `json:"message"`
	Player     string    `json:"player,omitempty"`
	Songs      int       `json:"songs"`
	Requests   int       `json:"requests"`
	PopClass   float64   `json:"popClass"`
	Tier       string    `json:"tier,omitempty"`
	Charts     int       `json:"charts"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	JSONURI    string    `json:"jsonUri,omitempty"`
	ViewerURI  string    `json:"viewerUri,omitempty"`
}

// NewRecord summarizes res together with where its snapshot was exported.
func NewRecord(res orchestrator.Result, art export.Artifacts) Record {
	rec := Record{
		RunID:      res.RunID.String(),
		Status:     string(res.Status),
		Message:    res.Message,
		Player:     res.Snapshot.Player.Name(),
		Songs:      len(res.Snapshot.Scores),
		Requests:   res.Requests,
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
		JSONURI:    art.JSON,
		ViewerURI:  art.Viewer,
	}
	if pc := res.Snapshot.PopClass; pc != nil {
		rec.PopClass = pc.Value
		rec.Tier = pc.Tier
		rec.Charts = pc.Count
	}
	return rec
}

// Store persists run records.
type Store interface {
	RecordRun(ctx context.Context, rec Record) error
	// ListRuns returns the most recent runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]Record, error)
}

// Exporter writes a snapshot and reports where it went.
type Exporter interface {
	Export(ctx context.Context, snap crawler.Snapshot) (export.Artifacts, error)
}

// Publisher announces a payload on a topic and returns the message ID.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Pipeline runs the post-run steps. Every collaborator is optional.
type Pipeline struct {
	exporter  Exporter
	store     Store
	publisher Publisher
	topic     string
	logger    *zap.Logger
}

// NewPipeline wires the post-run steps. A nil publisher or an empty topic
// disables notifications.
func NewPipeline(exporter Exporter, store Store, publisher Publisher, topic string, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		exporter:  exporter,
		store:     store,
		publisher: publisher,
		topic:     topic,
		logger:    logger.Named("history"),
	}
}

// Finish exports the snapshot when it holds any song, then records and
// announces the run. Steps after a failed one still run; their errors are
// joined.
func (p *Pipeline) Finish(ctx context.Context, res orchestrator.Result) (Record, error) {
	var errs []error
	var art export.Artifacts
	if p.exporter != nil && len(res.Snapshot.Scores) > 0 {
		var err error
		art, err = p.exporter.Export(ctx, res.Snapshot)
		if err != nil {
			errs = append(errs, fmt.Errorf("export: %w", err))
		}
	}
	rec := NewRecord(res, art)
	logger := p.logger.With(zap.String("run_id", rec.RunID), zap.String("status", rec.Status))

	if p.store != nil {
		if err := p.store.RecordRun(ctx, rec); err != nil {
			errs = append(errs, fmt.Errorf("record run: %w", err))
		} else {
			logger.Debug("run recorded")
		}
	}
	if p.publisher != nil && p.topic != "" {
		id, err := p.publisher.Publish(ctx, p.topic, rec)
		if err != nil {
			errs = append(errs, fmt.Errorf("publish run: %w", err))
		} else {
			logger.Info("run published", zap.String("topic", p.topic), zap.String("message_id", id))
		}
	}
	return rec, errors.Join(errs...)
}

// ListRuns reads the store, or returns nothing when no store is wired.
func (p *Pipeline) ListRuns(ctx context.Context, limit int) ([]Record, error) {
	if p.store == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return p.store.ListRuns(ctx, limit)
}
