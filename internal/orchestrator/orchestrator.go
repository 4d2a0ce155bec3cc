// Package orchestrator drives a crawl run: it fetches the player status page
// and every page of the level-filtered music lists one request at a time,
// merges the parsed entries into songs, optionally fetches each song's detail
// page, and finalizes the snapshot.
//
// A run is strictly sequential. A fixed delay is awaited before every request
// but the first. Stopping is cooperative: RequestStop only sets a flag that is
// polled immediately before each request and at each level boundary, so a
// request already in flight completes and its entries are merged. Cancelling
// the context passed to Run is the hard abort.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/popn-score-crawler/internal/crawler"
	"github.com/JakeFAU/popn-score-crawler/internal/logging"
	"github.com/JakeFAU/popn-score-crawler/internal/merge"
	"github.com/JakeFAU/popn-score-crawler/internal/metrics"
	"github.com/JakeFAU/popn-score-crawler/internal/popclass"
	"github.com/JakeFAU/popn-score-crawler/internal/progress"
)

// DefaultMaxLevel is the highest level crawled when Config.MaxLevel is unset.
const DefaultMaxLevel = 50

// ErrAlreadyRunning is returned by Run while another run is in progress.
var ErrAlreadyRunning = errors.New("a run is already in progress")

// Status is the final state of a run.
type Status string

// Run outcomes.
const (
	StatusCompleted Status = "completed"
	StatusStopped   Status = "stopped"
	StatusFailed    Status = "failed"
)

// Config controls a run.
type Config struct {
	Site        crawler.Site
	PageDelay   time.Duration
	DetailDelay time.Duration
	MaxLevel    int
}

// Options select per-run behavior.
type Options struct {
	// Deep also fetches the detail page of every song with a detail link.
	Deep bool
}

// Result describes a finished run. Snapshot holds whatever was collected, also
// for stopped and failed runs.
type Result struct {
	RunID      uuid.UUID
	Status     Status
	Message    string
	Snapshot   crawler.Snapshot
	Requests   int
	Upper      int
	StartedAt  time.Time
	FinishedAt time.Time
}

// Orchestrator owns the crawl state machine. It is safe to call RequestStop
// and Running from other goroutines while Run executes.
type Orchestrator struct {
	fetcher crawler.Fetcher
	pacer   crawler.Pacer
	clock   crawler.Clock
	ids     crawler.IDGenerator
	cfg     Config
	emitter progress.Emitter
	logger  *zap.Logger

	running atomic.Bool
	stop    atomic.Bool

	mu   sync.RWMutex
	last *Result
}

// New constructs an Orchestrator.
func New(
	fetcher crawler.Fetcher,
	pacer crawler.Pacer,
	clock crawler.Clock,
	ids crawler.IDGenerator,
	cfg Config,
	emitter progress.Emitter,
	logger *zap.Logger,
) *Orchestrator {
	if cfg.MaxLevel <= 0 || cfg.MaxLevel > DefaultMaxLevel {
		cfg.MaxLevel = DefaultMaxLevel
	}
	if emitter == nil {
		emitter = progress.Discard
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		fetcher: fetcher,
		pacer:   pacer,
		clock:   clock,
		ids:     ids,
		cfg:     cfg,
		emitter: emitter,
		logger:  logger.Named("orchestrator"),
	}
}

// RequestStop asks the current run to stop at its next poll point.
func (o *Orchestrator) RequestStop() {
	if o.running.Load() {
		o.stop.Store(true)
	}
}

// Running reports whether a run is in progress.
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

// MaxLevel returns the highest level a run crawls.
func (o *Orchestrator) MaxLevel() int {
	return o.cfg.MaxLevel
}

// Last returns the most recent finished run.
func (o *Orchestrator) Last() (Result, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.last == nil {
		return Result{}, false
	}
	return *o.last, true
}

// Run executes one crawl. The returned Result is always populated once the run
// has started; the error is non-nil only for failed runs and for
// ErrAlreadyRunning.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (Result, error) {
	st, err := o.begin(opts)
	if err != nil {
		return Result{}, err
	}
	return o.execute(ctx, st)
}

// Start launches a run in the background and returns its ID once the run owns
// the single-run guard. done, when non-nil, receives the outcome.
func (o *Orchestrator) Start(ctx context.Context, opts Options, done func(Result, error)) (uuid.UUID, error) {
	st, err := o.begin(opts)
	if err != nil {
		return uuid.Nil, err
	}
	go func() {
		res, err := o.execute(ctx, st)
		if done != nil {
			done(res, err)
		}
	}()
	return st.id, nil
}

// begin claims the single-run guard and prepares the run state. On success
// the caller must hand st to execute, which releases the guard.
func (o *Orchestrator) begin(opts Options) (*runState, error) {
	if !o.running.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRunning
	}
	o.stop.Store(false)

	runID, err := o.ids.NewRawID()
	if err != nil {
		o.running.Store(false)
		return nil, fmt.Errorf("new run id: %w", err)
	}
	return &runState{
		id:      runID,
		opts:    opts,
		merger:  merge.NewMerger(),
		started: o.clock.Now(),
		logger:  logging.ForRun(o.logger, runID),
	}, nil
}

func (o *Orchestrator) execute(ctx context.Context, st *runState) (Result, error) {
	defer o.running.Store(false)

	st.logger.Info("run started", zap.Bool("deep", st.opts.Deep), zap.Int("max_level", o.cfg.MaxLevel))
	o.emit(st, progress.Event{Stage: progress.StageRunStart})

	crawlErr := o.crawl(ctx, st)
	res := o.finalize(st, crawlErr)

	o.mu.Lock()
	o.last = &res
	o.mu.Unlock()

	if res.Status == StatusFailed {
		return res, crawlErr
	}
	return res, nil
}

// finalize builds the snapshot from whatever was merged and attaches the
// upper annotation and the rating when at least one song was collected.
func (o *Orchestrator) finalize(st *runState, crawlErr error) Result {
	songs := st.merger.Songs()
	res := Result{
		RunID:      st.id,
		Requests:   st.requests,
		StartedAt:  st.started,
		FinishedAt: o.clock.Now(),
		Snapshot: crawler.Snapshot{
			Player: st.player,
			Scores: songs,
		},
	}
	res.Snapshot.ExportedAt = res.FinishedAt

	switch {
	case crawlErr == nil:
		res.Status = StatusCompleted
		res.Message = fmt.Sprintf("Complete! %d songs", len(songs))
		if st.opts.Deep {
			res.Message += " (with details)"
		}
	case errors.Is(crawlErr, crawler.ErrStopped):
		res.Status = StatusStopped
		res.Message = "Stopped"
		if st.stopNote != "" {
			res.Message += " (" + st.stopNote + ")"
		}
	default:
		res.Status = StatusFailed
		res.Message = "Error: " + errorMessage(crawlErr)
	}

	if len(songs) > 0 {
		res.Upper = merge.MarkUpper(songs)
		pc := popclass.Calculate(songs)
		res.Snapshot.PopClass = &pc
		res.Message += fmt.Sprintf(" | Pop'n Class: %.2f (%s)", pc.Value, pc.Tier)
	}

	fields := []zap.Field{
		zap.String("status", string(res.Status)),
		zap.Int("songs", len(songs)),
		zap.Int("requests", res.Requests),
		zap.Int("upper", res.Upper),
		zap.Duration("dur", res.FinishedAt.Sub(res.StartedAt)),
	}
	if res.Status == StatusFailed {
		st.logger.Error("run failed", append(fields, zap.Error(crawlErr))...)
	} else {
		st.logger.Info("run finished", fields...)
	}
	metrics.ObserveRun(string(res.Status))

	stage := progress.StageRunDone
	switch res.Status {
	case StatusStopped:
		stage = progress.StageRunStopped
	case StatusFailed:
		stage = progress.StageRunError
	}
	o.emit(st, progress.Event{Stage: stage, Dur: res.FinishedAt.Sub(res.StartedAt), Note: res.Message})
	return res
}

func (o *Orchestrator) emit(st *runState, evt progress.Event) {
	evt.RunID = progress.UUIDToBytes(st.id)
	evt.TS = o.clock.Now()
	evt.Songs = st.merger.Len()
	evt.Requests = st.requests
	o.emitter.Emit(evt)
}

// errorMessage prefers the human-readable text of a site error over the
// wrapped chain.
func errorMessage(err error) string {
	var siteErr *crawler.SiteError
	if errors.As(err, &siteErr) {
		return siteErr.Message
	}
	var statusErr *crawler.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Error()
	}
	return err.Error()
}
