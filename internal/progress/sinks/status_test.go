package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/popn-score-crawler/internal/progress"
)

func TestStatusSinkTracksLatestRun(t *testing.T) {
	t.Parallel()

	sink := NewStatusSink(50)
	_, ok := sink.Latest()
	require.False(t, ok)

	first := uuid.New()
	second := uuid.New()
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	batch := []progress.Event{
		{RunID: progress.UUIDToBytes(first), TS: now, Stage: progress.StageRunStart},
		{RunID: progress.UUIDToBytes(first), TS: now.Add(time.Second), Stage: progress.StageLevelDone, Level: 25, TotalPages: 3, Songs: 120, Requests: 60},
		{RunID: progress.UUIDToBytes(second), TS: now.Add(2 * time.Second), Stage: progress.StageLevelDone, Level: 40},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))

	st, ok := sink.Latest()
	require.True(t, ok)
	assert.Equal(t, first.String(), st.RunID)
	assert.True(t, st.Running)
	assert.Equal(t, 25, st.Level)
	assert.Equal(t, 120, st.Songs)
	assert.Equal(t, now, st.StartedAt)
	assert.InDelta(t, 0.5, st.Progress(), 1e-9)

	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{RunID: progress.UUIDToBytes(first), TS: now.Add(3 * time.Second), Stage: progress.StageRunDone, Songs: 130, Note: "Done: 130 songs"},
	}))
	st, _ = sink.Latest()
	assert.False(t, st.Running)
	assert.Equal(t, "Done: 130 songs", st.Message)
	assert.Equal(t, 130, st.Songs)
	assert.InDelta(t, 1.0, st.Progress(), 1e-9)

	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{RunID: progress.UUIDToBytes(second), TS: now.Add(4 * time.Second), Stage: progress.StageRunStart},
	}))
	st, _ = sink.Latest()
	assert.Equal(t, second.String(), st.RunID)
	assert.Zero(t, st.Songs)
	assert.True(t, st.Running)
}

func TestLogSinkWritesStructuredFields(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.DebugLevel)
	sink := NewLogSink(zap.New(core))
	runID := progress.UUIDToBytes(uuid.New())

	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{RunID: runID, TS: time.Now(), Stage: progress.StagePageDone, Level: 7, Page: 2, Songs: 9},
		{RunID: runID, TS: time.Now(), Stage: progress.StageRunError, Note: "HTTP 503"},
	}))

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, zap.DebugLevel, entries[0].Level)
	assert.EqualValues(t, 7, entries[0].ContextMap()["level"])
	assert.EqualValues(t, 2, entries[0].ContextMap()["page"])
	assert.Equal(t, zap.WarnLevel, entries[1].Level)
	assert.Equal(t, "HTTP 503", entries[1].ContextMap()["note"])
	require.NoError(t, sink.Close(context.Background()))
}
