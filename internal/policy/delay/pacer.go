// Package delay paces sequential requests with fixed, context-aware waits.
package delay

import (
	"context"
	"fmt"
	"time"

	"github.com/JakeFAU/popn-score-crawler/internal/metrics"
)

// Pacer waits a fixed delay on a timer.
type Pacer struct{}

// New returns a timer-backed pacer.
func New() *Pacer {
	return &Pacer{}
}

// Pause blocks for delay or until ctx is done, whichever comes first. A
// non-positive delay returns immediately.
func (*Pacer) Pause(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("pause interrupted: %w", ctx.Err())
	case <-timer.C:
		metrics.ObservePacingDelay(delay)
		return nil
	}
}

// Recorder is a Pacer that never sleeps and remembers every requested delay.
// Tests use it to assert the pacing schedule.
type Recorder struct {
	Delays []time.Duration
}

// Pause records delay and returns ctx.Err() if ctx is already done.
func (r *Recorder) Pause(ctx context.Context, delay time.Duration) error {
	r.Delays = append(r.Delays, delay)
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("pause interrupted: %w", err)
	}
	return nil
}
