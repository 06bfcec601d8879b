package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/garnizeh/simplymeet/pkg/models"
)

const defaultTimeout = 2 * time.Minute

// Target reloads today's agenda, bypassing any cached copy.
type Target interface {
	RefreshToday(ctx context.Context) ([]models.Meeting, error)
}

// Runner refreshes today's agenda on a cron schedule. A run that is still
// going when the next one is due causes that next run to be skipped.
type Runner struct {
	cron    *cron.Cron
	target  Target
	timeout time.Duration
	logger  *slog.Logger
}

type Option func(*Runner)

// WithTimeout bounds a single refresh.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// New parses schedule (standard five-field cron or a descriptor such as
// "@every 5m") and registers the refresh job. Call Start to begin.
func New(schedule string, target Target, opts ...Option) (*Runner, error) {
	r := &Runner{
		target:  target,
		timeout: defaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	r.cron = cron.New(
		cron.WithParser(parser),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := r.cron.AddFunc(schedule, r.run); err != nil {
		return nil, fmt.Errorf("refresh: invalid schedule %q: %w", schedule, err)
	}
	return r, nil
}

func (r *Runner) run() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.RunOnce(ctx); err != nil {
		r.logger.Warn("refresh: today's agenda refresh failed", slog.Any("err", err))
	}
}

// RunOnce refreshes today's agenda immediately.
func (r *Runner) RunOnce(ctx context.Context) error {
	start := time.Now()
	meetings, err := r.target.RefreshToday(ctx)
	if err != nil {
		return err
	}
	r.logger.Debug("refresh: today's agenda refreshed",
		slog.Int("meetings", len(meetings)),
		slog.Duration("took", time.Since(start)),
	)
	return nil
}

// Start runs the schedule in the background.
func (r *Runner) Start() {
	r.cron.Start()
}

// Stop halts the schedule and waits for a running refresh to return or ctx
// to end.
func (r *Runner) Stop(ctx context.Context) error {
	done := r.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
