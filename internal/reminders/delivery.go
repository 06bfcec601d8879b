package reminders

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/garnizeh/simplymeet/internal/jobs"
)

// Sink posts a due notification to its audience.
type Sink interface {
	Deliver(ctx context.Context, n Notification) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, n Notification) error

func (f SinkFunc) Deliver(ctx context.Context, n Notification) error { return f(ctx, n) }

// LogSink writes notifications to a structured logger.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Deliver(ctx context.Context, n Notification) error {
	l := s.Logger
	if l == nil {
		l = slog.Default()
	}
	l.InfoContext(ctx, n.Title,
		slog.String("body", n.Body),
		slog.String("channel", n.ChannelID),
		slog.String("date_key", n.Data.DateKey),
		slog.Int64("meeting_id", n.Data.MeetingID),
		slog.Int("lead_minutes", n.Data.LeadMinutes),
	)
	return nil
}

// DeliveryHandler returns the job handler that hands reminder jobs to sink.
// A reminder picked up more than maxLate after its trigger time is dropped
// rather than delivered.
func DeliveryHandler(sink Sink, maxLate time.Duration, logger *slog.Logger) jobs.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, j *jobs.Job) error {
		var n Notification
		if err := json.Unmarshal(j.Payload, &n); err != nil {
			return fmt.Errorf("decode reminder %s: %w", j.Key, err)
		}
		if n.ID == "" {
			n.ID = j.Key
		}
		if maxLate > 0 && time.Since(n.TriggerAt) > maxLate {
			logger.Info("reminders: dropping late reminder",
				slog.String("id", n.ID),
				slog.Time("trigger_at", n.TriggerAt),
			)
			return nil
		}
		return sink.Deliver(ctx, n)
	}
}
