package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/popn-score-crawler/internal/progress"
)

// LogSink writes each progress event as a structured log line.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields. Page events
// are logged at debug level; everything else at info.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.Stringer("run_id", evt.RunUUID()),
			zap.String("stage", string(evt.Stage)),
			zap.Int("songs", evt.Songs),
			zap.Int("requests", evt.Requests),
		}
		if evt.Level > 0 {
			fields = append(fields, zap.Int("level", evt.Level), zap.Int("total_pages", evt.TotalPages))
		}
		if evt.Stage == progress.StagePageDone {
			fields = append(fields, zap.Int("page", evt.Page))
		}
		if evt.Dur > 0 {
			fields = append(fields, zap.Duration("dur", evt.Dur))
		}
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}
		switch evt.Stage {
		case progress.StagePageDone:
			s.logger.Debug("progress event", fields...)
		case progress.StageRunError:
			s.logger.Warn("progress event", fields...)
		default:
			s.logger.Info("progress event", fields...)
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
