package history_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/JakeFAU/popn-score-crawler/internal/crawler"
	"github.com/JakeFAU/popn-score-crawler/internal/export"
	"github.com/JakeFAU/popn-score-crawler/internal/history"
	"github.com/JakeFAU/popn-score-crawler/internal/orchestrator"
	pubmemory "github.com/JakeFAU/popn-score-crawler/internal/publisher/memory"
	"github.com/JakeFAU/popn-score-crawler/internal/storage/memory"
)

var started = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

func sampleResult(songs int) orchestrator.Result {
	var player crawler.Player
	player.Set(crawler.PlayerNameLabel, crawler.PlayerAttribute{Text: "TESTER"})
	snap := crawler.Snapshot{Player: player, ExportedAt: started.Add(time.Minute), Scores: []*crawler.Song{}}
	for i := 0; i < songs; i++ {
		snap.Scores = append(snap.Scores, &crawler.Song{Title: "SONG", Charts: map[crawler.Difficulty]crawler.ChartRecord{}})
	}
	if songs > 0 {
		snap.PopClass = &crawler.PopClassResult{Value: 42.5, Tier: "刑事", Count: 7}
	}
	return orchestrator.Result{
		RunID:      uuid.MustParse("01890a5d-ac96-774b-bcce-b302099a8057"),
		Status:     orchestrator.StatusCompleted,
		Message:    "Complete! 1 songs",
		Snapshot:   snap,
		Requests:   4,
		StartedAt:  started,
		FinishedAt: started.Add(time.Minute),
	}
}

func TestFinishExportsRecordsAndPublishes(t *testing.T) {
	t.Parallel()

	blobs := memory.NewBlobStore()
	runs := history.NewMemoryStore()
	pub := pubmemory.New()
	p := history.NewPipeline(export.New(blobs, nil), runs, pub, "popn-runs", zaptest.NewLogger(t))

	rec, err := p.Finish(context.Background(), sampleResult(1))
	require.NoError(t, err)
	assert.Equal(t, "memory://popn_scores_2026-10-19.json", rec.JSONURI)
	assert.Equal(t, "memory://viewer.html", rec.ViewerURI)
	assert.Equal(t, "TESTER", rec.Player)
	assert.Equal(t, 1, rec.Songs)
	assert.InDelta(t, 42.5, rec.PopClass, 0)
	assert.Equal(t, "刑事", rec.Tier)
	assert.Equal(t, 7, rec.Charts)

	listed, err := p.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, []history.Record{rec}, listed)

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "popn-runs", msgs[0].Topic)
	var notice history.Record
	require.NoError(t, json.Unmarshal(msgs[0].Data, &notice))
	assert.Equal(t, rec.RunID, notice.RunID)
	assert.Equal(t, rec.JSONURI, notice.JSONURI)
}

func TestFinishSkipsExportWithoutSongs(t *testing.T) {
	t.Parallel()

	blobs := memory.NewBlobStore()
	runs := history.NewMemoryStore()
	p := history.NewPipeline(export.New(blobs, nil), runs, nil, "", nil)

	res := sampleResult(0)
	res.Status = orchestrator.StatusFailed
	rec, err := p.Finish(context.Background(), res)
	require.NoError(t, err)
	assert.Empty(t, blobs.Paths())
	assert.Empty(t, rec.JSONURI)
	assert.Equal(t, "failed", rec.Status)

	listed, err := runs.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}

type mockExporter struct {
	mock.Mock
}

func (m *mockExporter) Export(ctx context.Context, snap crawler.Snapshot) (export.Artifacts, error) {
	args := m.Called(ctx, snap)
	return args.Get(0).(export.Artifacts), args.Error(1)
}

func TestFinishKeepsGoingAfterExportFailure(t *testing.T) {
	t.Parallel()

	exp := &mockExporter{}
	exp.On("Export", mock.Anything, mock.Anything).Return(export.Artifacts{}, errors.New("disk full"))
	runs := history.NewMemoryStore()
	pub := pubmemory.New()
	p := history.NewPipeline(exp, runs, pub, "popn-runs", nil)

	_, err := p.Finish(context.Background(), sampleResult(2))
	require.ErrorContains(t, err, "export: disk full")

	listed, _ := runs.ListRuns(context.Background(), 0)
	assert.Len(t, listed, 1)
	assert.Len(t, pub.Messages(), 1)
	exp.AssertExpectations(t)
}

func TestListRunsWithoutStore(t *testing.T) {
	t.Parallel()

	runs, err := history.NewPipeline(nil, nil, nil, "", nil).ListRuns(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, runs)
}
