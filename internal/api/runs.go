package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/popn-score-crawler/internal/history"
	"github.com/JakeFAU/popn-score-crawler/internal/orchestrator"
	"github.com/JakeFAU/popn-score-crawler/internal/progress/sinks"
)

const maxHistoryLimit = 200

type startRunRequest struct {
	Deep *bool `json:"deep"`
}

type runSummary struct {
	RunID      string    `json:"runId"`
	Status     string    `json:"status"`
	Message    string    `json:"message"`
	Songs      int       `json:"songs"`
	Requests   int       `json:"requests"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

type runStatusResponse struct {
	Running  bool             `json:"running"`
	Progress float64          `json:"progress"`
	Current  *sinks.RunStatus `json:"current,omitempty"`
	Last     *runSummary      `json:"last,omitempty"`
}

// startRun handles POST /v1/runs. The body is optional; {"deep": true}
// overrides the configured crawl depth. It answers 202 with the run ID, 409
// while a run is in progress and 429 when the hourly run budget is spent.
func (s *Server) startRun(w http.ResponseWriter, r *http.Request) {
	var req startRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	opts := orchestrator.Options{Deep: s.cfg.Crawl.Deep}
	if req.Deep != nil {
		opts.Deep = *req.Deep
	}

	if s.runner.Running() {
		writeError(w, http.StatusConflict, orchestrator.ErrAlreadyRunning.Error())
		return
	}
	if !s.limiter.Allow() {
		writeError(w, http.StatusTooManyRequests, "run limit reached, try again later")
		return
	}
	s.finishing.Add(1)
	runID, err := s.runner.Start(s.runCtx, opts, s.finishRun)
	if err != nil {
		s.finishing.Done()
		if errors.Is(err, orchestrator.ErrAlreadyRunning) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		s.logger.Error("start run failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to start run")
		return
	}
	s.logger.Info("run accepted",
		zap.String("run_id", runID.String()),
		zap.Bool("deep", opts.Deep),
		zap.String("request_id", requestID(r.Context())),
	)
	writeJSON(w, http.StatusAccepted, map[string]any{"runId": runID.String(), "deep": opts.Deep})
}

// finishRun hands every finished run to the finisher.
func (s *Server) finishRun(res orchestrator.Result, err error) {
	defer s.finishing.Done()
	if err != nil {
		s.logger.Warn("run ended with error", zap.String("run_id", res.RunID.String()), zap.Error(err))
	}
	if s.finisher == nil {
		return
	}
	if _, finishErr := s.finisher.Finish(context.WithoutCancel(s.runCtx), res); finishErr != nil {
		s.logger.Error("finishing run failed", zap.String("run_id", res.RunID.String()), zap.Error(finishErr))
	}
}

// WaitFinished blocks until every finished run has been handed to the
// finisher or ctx is done.
func (s *Server) WaitFinished(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.finishing.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// stopRun handles POST /v1/runs/stop. Stopping is cooperative: the run ends
// before its next request. 409 when nothing is running.
func (s *Server) stopRun(w http.ResponseWriter, _ *http.Request) {
	if !s.runner.Running() {
		writeError(w, http.StatusConflict, "no run in progress")
		return
	}
	s.runner.RequestStop()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "stopping"})
}

// runStatus handles GET /v1/runs/status.
func (s *Server) runStatus(w http.ResponseWriter, _ *http.Request) {
	resp := runStatusResponse{Running: s.runner.Running()}
	if s.status != nil {
		if cur, ok := s.status.Latest(); ok {
			resp.Current = &cur
			resp.Progress = cur.Progress()
		}
	}
	if last, ok := s.runner.Last(); ok {
		resp.Last = &runSummary{
			RunID:      last.RunID.String(),
			Status:     string(last.Status),
			Message:    last.Message,
			Songs:      len(last.Snapshot.Scores),
			Requests:   last.Requests,
			StartedAt:  last.StartedAt,
			FinishedAt: last.FinishedAt,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// runHistory handles GET /v1/runs/history. limit defaults to
// history.DefaultLimit and is capped at maxHistoryLimit.
func (s *Server) runHistory(w http.ResponseWriter, r *http.Request) {
	limit := history.DefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}
	runs := []history.Record{}
	if s.finisher != nil {
		listed, err := s.finisher.ListRuns(r.Context(), limit)
		if err != nil {
			s.logger.Error("list runs failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to list runs")
			return
		}
		if listed != nil {
			runs = listed
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}
