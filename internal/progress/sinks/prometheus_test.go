package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/popn-score-crawler/internal/progress"
)

// TestPrometheusSinkRecordsMetrics ensures counters and gauges follow a run.
func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	runID := progress.UUIDToBytes(uuid.New())
	now := time.Now()
	batch := []progress.Event{
		{RunID: runID, TS: now, Stage: progress.StageRunStart},
		{RunID: runID, TS: now.Add(time.Second), Stage: progress.StagePageDone, Level: 1, Songs: 40},
		{RunID: runID, TS: now.Add(2 * time.Second), Stage: progress.StagePageDone, Level: 1, Page: 1, Songs: 55},
		{RunID: runID, TS: now.Add(2 * time.Second), Stage: progress.StageLevelDone, Level: 1, Songs: 55},
		{RunID: runID, TS: now.Add(3 * time.Second), Stage: progress.StageDetailDone, Songs: 55},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))

	require.InDelta(t, 1.0, testutil.ToFloat64(sink.runsStarted), 0)
	require.InDelta(t, 1.0, testutil.ToFloat64(sink.runsRunning), 0)
	require.InDelta(t, 1.0, testutil.ToFloat64(sink.currentLevel), 0)
	require.InDelta(t, 55.0, testutil.ToFloat64(sink.songsMerged), 0)
	require.InDelta(t, 2.0, testutil.ToFloat64(sink.pagesFetched), 0)
	require.InDelta(t, 1.0, testutil.ToFloat64(sink.detailFetched), 0)

	done := progress.Event{RunID: runID, TS: now.Add(4 * time.Second), Stage: progress.StageRunStopped, Songs: 55, Dur: 4 * time.Second}
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{done, done}))

	require.InDelta(t, 2.0, testutil.ToFloat64(sink.runsFinished.WithLabelValues("stopped")), 0)
	require.InDelta(t, 0.0, testutil.ToFloat64(sink.runsFinished.WithLabelValues("completed")), 0)
	require.InDelta(t, 0.0, testutil.ToFloat64(sink.runsRunning), 0)
	require.Equal(t, 1, testutil.CollectAndCount(sink.runRuntime, "popn_progress_run_runtime_seconds"))
}

// TestPrometheusSinkRejectsDuplicateRegistration surfaces registry conflicts.
func TestPrometheusSinkRejectsDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	_, err = NewPrometheusSink(reg)
	require.Error(t, err)
}
