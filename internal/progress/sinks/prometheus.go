package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/popn-score-crawler/internal/progress"
)

// PrometheusSink exports run progress via Prometheus: runs started, finished
// by result, currently running, and gauges for the level and song count of the
// latest run.
type PrometheusSink struct {
	runsStarted   prometheus.Counter
	runsFinished  *prometheus.CounterVec
	runsRunning   prometheus.Gauge
	runRuntime    *prometheus.HistogramVec
	currentLevel  prometheus.Gauge
	songsMerged   prometheus.Gauge
	pagesFetched  prometheus.Counter
	detailFetched prometheus.Counter

	tracker *runTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "popn_progress_runs_started_total",
			Help: "Total runs that have started.",
		}),
		runsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "popn_progress_runs_finished_total",
			Help: "Total runs finished partitioned by result.",
		}, []string{"result"}),
		runsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "popn_progress_runs_running",
			Help: "Current number of running crawls.",
		}),
		runRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "popn_progress_run_runtime_seconds",
			Help:    "Wall time per finished run.",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200, 2400},
		}, []string{"result"}),
		currentLevel: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "popn_progress_level",
			Help: "Last level completed by the current run.",
		}),
		songsMerged: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "popn_progress_songs",
			Help: "Distinct songs merged by the current run.",
		}),
		pagesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "popn_progress_pages_total",
			Help: "List pages merged across all runs.",
		}),
		detailFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "popn_progress_details_total",
			Help: "Detail pages processed across all runs.",
		}),
		tracker: newRunTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted,
		s.runsFinished,
		s.runsRunning,
		s.runRuntime,
		s.currentLevel,
		s.songsMerged,
		s.pagesFetched,
		s.detailFetched,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch. It is
// safe for concurrent use by multiple goroutines.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageRunStart:
		s.runsStarted.Inc()
		s.currentLevel.Set(0)
		s.songsMerged.Set(0)
		if s.tracker.start(evt.RunID) {
			s.runsRunning.Inc()
		}
	case progress.StagePageDone:
		s.pagesFetched.Inc()
		s.songsMerged.Set(float64(evt.Songs))
	case progress.StageLevelDone:
		s.currentLevel.Set(float64(evt.Level))
		s.songsMerged.Set(float64(evt.Songs))
	case progress.StageDetailDone:
		s.detailFetched.Inc()
	case progress.StageRunDone, progress.StageRunStopped, progress.StageRunError:
		s.finish(evt)
	}
}

func (s *PrometheusSink) finish(evt progress.Event) {
	result := resultLabel(evt.Stage)
	s.runsFinished.WithLabelValues(result).Inc()
	if evt.Dur > 0 {
		s.runRuntime.WithLabelValues(result).Observe(evt.Dur.Seconds())
	}
	s.songsMerged.Set(float64(evt.Songs))
	if s.tracker.complete(evt.RunID) {
		s.runsRunning.Dec()
	}
}

func resultLabel(stage progress.Stage) string {
	switch stage {
	case progress.StageRunDone:
		return "completed"
	case progress.StageRunStopped:
		return "stopped"
	default:
		return "failed"
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type runTracker struct {
	mu      sync.Mutex
	running map[[16]byte]struct{}
}

func newRunTracker() *runTracker {
	return &runTracker{running: make(map[[16]byte]struct{})}
}

func (t *runTracker) start(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *runTracker) complete(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}
