package api

import (
	"bytes"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/JakeFAU/popn-score-crawler/internal/crawler"
	"github.com/JakeFAU/popn-score-crawler/internal/export"
	"github.com/JakeFAU/popn-score-crawler/internal/orchestrator"
	"github.com/JakeFAU/popn-score-crawler/internal/render"
)

// LastResult is the read side of the orchestrator used by snapshot routes.
type LastResult interface {
	Last() (orchestrator.Result, bool)
}

// SnapshotHandler serves the snapshot of the last finished run in its
// exported forms. Every route answers 404 until a run has finished.
type SnapshotHandler struct {
	source LastResult
	logger *zap.Logger
}

// NewSnapshotHandler wires the result source and logger.
func NewSnapshotHandler(source LastResult, logger *zap.Logger) *SnapshotHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotHandler{source: source, logger: logger}
}

func (h *SnapshotHandler) snapshot(w http.ResponseWriter) (crawler.Snapshot, bool) {
	res, ok := h.source.Last()
	if !ok {
		writeError(w, http.StatusNotFound, "no finished run")
		return crawler.Snapshot{}, false
	}
	return res.Snapshot, true
}

// JSON handles GET /v1/snapshot with the same document the exporter writes.
func (h *SnapshotHandler) JSON(w http.ResponseWriter, _ *http.Request) {
	snap, ok := h.snapshot(w)
	if !ok {
		return
	}
	data, err := export.Marshal(snap)
	if err != nil {
		h.logger.Error("encode snapshot failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to encode snapshot")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName(snap.ExportedAt)+`"`)
	h.write(w, data)
}

// Viewer handles GET /v1/snapshot/viewer.
func (h *SnapshotHandler) Viewer(w http.ResponseWriter, _ *http.Request) {
	snap, ok := h.snapshot(w)
	if !ok {
		return
	}
	page, err := export.Viewer(snap)
	if err != nil {
		h.logger.Error("render viewer failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to render viewer")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	h.write(w, []byte(page))
}

// Table handles GET /v1/snapshot/table.
func (h *SnapshotHandler) Table(w http.ResponseWriter, _ *http.Request) {
	snap, ok := h.snapshot(w)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	h.write(w, []byte(render.Table(snap)+"\n"))
}

// Chart handles GET /v1/snapshot/chart.png. 404 when no chart scored.
func (h *SnapshotHandler) Chart(w http.ResponseWriter, _ *http.Request) {
	snap, ok := h.snapshot(w)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := render.Chart(&buf, snap); err != nil {
		if errors.Is(err, render.ErrNoCharts) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.logger.Error("render chart failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to render chart")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	h.write(w, buf.Bytes())
}

func (h *SnapshotHandler) write(w http.ResponseWriter, data []byte) {
	if _, err := w.Write(data); err != nil {
		h.logger.Warn("write response failed", zap.Error(err))
	}
}
