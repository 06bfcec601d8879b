package reminders

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/garnizeh/simplymeet/pkg/models"
)

const defaultConcurrency = 8

// Observer is told how each scheduling pass went.
type Observer interface {
	ObserveReminders(scheduled, failed int)
}

// Scheduler replaces a day's reminders on a Notifier.
type Scheduler struct {
	notifier    Notifier
	leadMinutes []int
	now         func() time.Time
	logger      *slog.Logger
	limit       int
	observer    Observer
}

type Option func(*Scheduler)

// WithLeadMinutes overrides the default lead times (10 and 5 minutes).
func WithLeadMinutes(leads []int) Option {
	return func(s *Scheduler) {
		if len(leads) > 0 {
			s.leadMinutes = append([]int(nil), leads...)
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithConcurrency bounds the number of notifier calls in flight.
func WithConcurrency(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.limit = n
		}
	}
}

func WithObserver(o Observer) Option {
	return func(s *Scheduler) {
		s.observer = o
	}
}

func NewScheduler(n Notifier, opts ...Option) *Scheduler {
	s := &Scheduler{
		notifier:    n,
		leadMinutes: []int{10, 5},
		now:         time.Now,
		logger:      slog.Default(),
		limit:       defaultConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule cancels every reminder already scheduled for p.Date and schedules
// the reminders Plan yields for p. It blocks until every notifier call has
// returned. Failures are logged and never returned: one failed call does not
// stop the others.
func (s *Scheduler) Schedule(ctx context.Context, p Params) {
	if s.notifier == nil || !s.notifier.Supported() {
		s.logger.Debug("reminders: notifications unsupported, skipping")
		return
	}

	dateKey := models.DateKey(p.Date)
	log := s.logger.With(slog.String("date_key", dateKey))

	granted, err := s.notifier.PermissionGranted(ctx)
	if err != nil {
		log.Warn("reminders: permission check failed", slog.Any("err", err))
		return
	}
	if !granted {
		granted, err = s.notifier.RequestPermission(ctx)
		if err != nil || !granted {
			log.Info("reminders: permission denied", slog.Any("err", err))
			return
		}
	}

	if ce, ok := s.notifier.(ChannelEnsurer); ok {
		if err := ce.EnsureChannel(ctx, DefaultChannel); err != nil {
			log.Warn("reminders: ensure channel failed", slog.Any("err", err))
			return
		}
	}

	if err := s.cancelDay(ctx, dateKey); err != nil {
		log.Warn("reminders: list scheduled failed", slog.Any("err", err))
		return
	}

	requests := Plan(p, s.now(), s.leadMinutes)

	var failed atomic.Int32
	g := new(errgroup.Group)
	g.SetLimit(s.limit)
	for _, req := range requests {
		g.Go(func() error {
			if _, err := s.notifier.Schedule(ctx, req); err != nil {
				failed.Add(1)
				log.Warn("reminders: schedule failed",
					slog.Int64("meeting_id", req.Data.MeetingID),
					slog.Int("lead_minutes", req.Data.LeadMinutes),
					slog.Any("err", err),
				)
			}
			return nil // one failure must not abort the rest
		})
	}
	_ = g.Wait()

	scheduled := len(requests) - int(failed.Load())
	if s.observer != nil {
		s.observer.ObserveReminders(scheduled, int(failed.Load()))
	}
	log.Info("reminders: scheduled",
		slog.Int("scheduled", scheduled),
		slog.Int("failed", int(failed.Load())),
	)
}

// cancelDay cancels every reminder tagged with dateKey. Individual cancel
// failures are logged; only a failure to list is returned.
func (s *Scheduler) cancelDay(ctx context.Context, dateKey string) error {
	existing, err := s.notifier.Scheduled(ctx)
	if err != nil {
		return err
	}

	g := new(errgroup.Group)
	g.SetLimit(s.limit)
	for _, n := range existing {
		if !belongsTo(n, dateKey) {
			continue
		}
		g.Go(func() error {
			if err := s.notifier.Cancel(ctx, n.ID); err != nil {
				s.logger.Warn("reminders: cancel failed",
					slog.String("date_key", dateKey),
					slog.String("id", n.ID),
					slog.Any("err", err),
				)
			}
			return nil
		})
	}
	return g.Wait()
}
