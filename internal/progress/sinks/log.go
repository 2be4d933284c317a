package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/pubview/scholarstream/internal/progress"
)

// LogSink emits structured logs for debugging progress streams. It is useful
// during development or audits where no client is connected.
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

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("job_id", evt.JobID),
			zap.String("kind", string(evt.Kind)),
			zap.String("status", string(evt.Snapshot.Status)),
			zap.Float64("progress", evt.Snapshot.Progress),
			zap.Int("fetched", evt.Snapshot.FetchedCount),
			zap.Int("total", evt.Snapshot.TotalCount),
		}
		if evt.Snapshot.ErrorMessage != "" {
			fields = append(fields, zap.String("error", evt.Snapshot.ErrorMessage))
		}
		s.logger.Info("progress event", fields...)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
