// Package export writes finished snapshots: the JSON document and a
// self-contained HTML viewer with the snapshot embedded.
package export

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/popn-score-crawler/internal/crawler"
)

// DataPlaceholder marks where the viewer template receives the snapshot.
const DataPlaceholder = "{{DATA_PLACEHOLDER}}"

// ViewerName is the file name of the rendered viewer.
const ViewerName = "viewer.html"

//go:embed viewer.html
var viewerTemplate string

// Artifacts are the URIs of one export.
type Artifacts struct {
	JSON   string
	Viewer string
}

// Exporter writes snapshots to a blob store.
type Exporter struct {
	store  crawler.BlobStore
	logger *zap.Logger
}

// New returns an Exporter writing to store.
func New(store crawler.BlobStore, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{store: store, logger: logger.Named("export")}
}

// FileName is the name of the JSON export for a snapshot taken at t, dated in
// UTC: popn_scores_YYYY-MM-DD.json.
func FileName(t time.Time) string {
	return "popn_scores_" + t.UTC().Format("2006-01-02") + ".json"
}

// Export writes the JSON document and the viewer.
func (e *Exporter) Export(ctx context.Context, snap crawler.Snapshot) (Artifacts, error) {
	data, err := Marshal(snap)
	if err != nil {
		return Artifacts{}, err
	}
	var out Artifacts
	name := FileName(snap.ExportedAt)
	out.JSON, err = e.store.PutObject(ctx, name, "application/json", bytes.NewReader(data))
	if err != nil {
		return Artifacts{}, fmt.Errorf("write %s: %w", name, err)
	}
	out.Viewer, err = e.store.PutObject(ctx, ViewerName, "text/html; charset=utf-8", strings.NewReader(Embed(data)))
	if err != nil {
		return out, fmt.Errorf("write %s: %w", ViewerName, err)
	}
	e.logger.Info("snapshot exported",
		zap.String("json", out.JSON),
		zap.String("viewer", out.Viewer),
		zap.Int("songs", len(snap.Scores)),
		zap.Int("bytes", len(data)),
	)
	return out, nil
}

// Marshal encodes a snapshot the way it is exported, indented by two spaces.
func Marshal(snap crawler.Snapshot) ([]byte, error) {
	if snap.Scores == nil {
		snap.Scores = []*crawler.Song{}
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// Embed places encoded snapshot JSON into the viewer template. The encoder
// escapes '<', '>' and '&', so the data cannot close the script element.
func Embed(data []byte) string {
	return strings.Replace(viewerTemplate, DataPlaceholder, string(data), 1)
}

// Viewer renders the viewer page for a snapshot.
func Viewer(snap crawler.Snapshot) (string, error) {
	data, err := Marshal(snap)
	if err != nil {
		return "", err
	}
	return Embed(data), nil
}

// Read decodes an exported snapshot.
func Read(r io.Reader) (crawler.Snapshot, error) {
	var snap crawler.Snapshot
	dec := json.NewDecoder(r)
	if err := dec.Decode(&snap); err != nil {
		return crawler.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Scores == nil {
		return crawler.Snapshot{}, errors.New("decode snapshot: no scores array")
	}
	return snap, nil
}
