package sinks

import (
	"context"
	"sync"
	"time"

	"github.com/JakeFAU/popn-score-crawler/internal/progress"
)

// RunStatus is the latest known state of a run.
type RunStatus struct {
	RunID      string    `json:"runId"`
	Stage      string    `json:"stage"`
	Running    bool      `json:"running"`
	Level      int       `json:"level"`
	MaxLevel   int       `json:"maxLevel"`
	Page       int       `json:"page"`
	TotalPages int       `json:"totalPages"`
	Songs      int       `json:"songs"`
	Requests   int       `json:"requests"`
	StartedAt  time.Time `json:"startedAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
	Message    string    `json:"message,omitempty"`
}

// Progress returns the completed share of the level range in [0, 1].
func (s RunStatus) Progress() float64 {
	if s.MaxLevel <= 0 {
		return 0
	}
	if !s.Running && s.Stage == string(progress.StageRunDone) {
		return 1
	}
	p := float64(s.Level) / float64(s.MaxLevel)
	if p > 1 {
		return 1
	}
	return p
}

// StatusSink keeps the latest status of the most recent run in memory.
type StatusSink struct {
	mu       sync.RWMutex
	maxLevel int
	latest   RunStatus
	seen     bool
}

// NewStatusSink returns an empty status view. maxLevel scales Progress.
func NewStatusSink(maxLevel int) *StatusSink {
	return &StatusSink{maxLevel: maxLevel}
}

// Consume folds the batch into the latest status. RUN_START resets the view;
// events for any other run are ignored.
func (s *StatusSink) Consume(_ context.Context, batch []progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range batch {
		runID := evt.RunUUID().String()
		switch {
		case evt.Stage == progress.StageRunStart:
			s.latest = RunStatus{RunID: runID, MaxLevel: s.maxLevel, StartedAt: evt.TS}
			s.seen = true
		case !s.seen || s.latest.RunID != runID:
			// an older run, or one whose start was never seen
			continue
		}
		s.apply(evt)
	}
	return nil
}

func (s *StatusSink) apply(evt progress.Event) {
	st := &s.latest
	st.Stage = string(evt.Stage)
	st.Running = !evt.Stage.Terminal()
	st.UpdatedAt = evt.TS
	if evt.Level > 0 {
		st.Level = evt.Level
		st.Page = evt.Page
		st.TotalPages = evt.TotalPages
	}
	if evt.Songs > st.Songs {
		st.Songs = evt.Songs
	}
	if evt.Requests > st.Requests {
		st.Requests = evt.Requests
	}
	if evt.Note != "" {
		st.Message = evt.Note
	}
}

// Latest returns the most recent status and whether any run was observed.
func (s *StatusSink) Latest() (RunStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.seen
}

// Close implements the Sink interface; it performs no action.
func (s *StatusSink) Close(context.Context) error {
	return nil
}
