package agenda

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/garnizeh/simplymeet/internal/reminders"
	"github.com/garnizeh/simplymeet/pkg/models"
	"github.com/garnizeh/simplymeet/pkg/odoo"
	"github.com/garnizeh/simplymeet/pkg/repository"
)

// Backend is the remote directory and calendar. *odoo.Client implements it.
type Backend interface {
	Configured() bool
	CheckConnection(ctx context.Context) error
	ListEmployees(ctx context.Context) ([]models.Employee, error)
	ListMeetingsForDay(ctx context.Context, userID int64, day time.Time) ([]models.Meeting, error)
}

var _ Backend = (*odoo.Client)(nil)

// ReminderScheduler replaces a day's reminders. *reminders.Scheduler
// implements it.
type ReminderScheduler interface {
	Schedule(ctx context.Context, p reminders.Params)
}

// Service is the agenda controller: it owns the acting identity, the day
// cache and reminder scheduling for today's meetings.
type Service struct {
	backend   Backend
	prefs     repository.IdentityRepo
	cache     *DayCache
	reminders ReminderScheduler
	now       func() time.Time
	loc       *time.Location
	logger    *slog.Logger

	bg     context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
	// schedMu keeps rescheduling passes for a day from interleaving.
	schedMu sync.Mutex
}

type Option func(*Service)

func WithReminders(r ReminderScheduler) Option {
	return func(s *Service) { s.reminders = r }
}

func WithCache(c *DayCache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocation sets the zone that decides which calendar date is "today".
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewService(backend Backend, prefs repository.IdentityRepo, opts ...Option) *Service {
	s := &Service{
		backend: backend,
		prefs:   prefs,
		now:     time.Now,
		loc:     time.Local,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache == nil {
		s.cache = NewDayCache(nil)
	}
	s.bg, s.cancel = context.WithCancel(context.Background())
	return s
}

// Configured reports whether the backend has complete connection settings.
func (s *Service) Configured() bool {
	return s.backend.Configured()
}

// CheckConnection reports whether the backend accepts the configured
// credentials.
func (s *Service) CheckConnection(ctx context.Context) bool {
	if !s.Configured() {
		return false
	}
	if err := s.backend.CheckConnection(ctx); err != nil {
		s.logger.Warn("agenda: connection check failed", slog.Any("err", err))
		return false
	}
	return true
}

// Employees lists the selectable directory entries.
func (s *Service) Employees(ctx context.Context) ([]models.Employee, error) {
	if !s.Configured() {
		return []models.Employee{}, odoo.ErrNotConfigured
	}
	rows, err := s.backend.ListEmployees(ctx)
	if err != nil {
		return []models.Employee{}, err
	}
	out := make([]models.Employee, 0, len(rows))
	for _, e := range rows {
		if e.Selectable() {
			out = append(out, e)
		}
	}
	return out, nil
}

// SelectedEmployee returns the persisted identity or nil.
func (s *Service) SelectedEmployee(ctx context.Context) (*models.Employee, error) {
	return s.prefs.SelectedEmployee(ctx)
}

// SelectEmployee makes e the acting identity. Switching to a different login
// discards every cached day.
func (s *Service) SelectEmployee(ctx context.Context, e models.Employee) error {
	if !e.Selectable() {
		return ErrNotSelectable
	}

	current, err := s.prefs.SelectedEmployee(ctx)
	if err != nil {
		return err
	}
	if current == nil || current.UserID != e.UserID {
		s.cache.Clear()
	}

	if err := s.prefs.SaveSelectedEmployee(ctx, &e); err != nil {
		return err
	}
	s.logger.Info("agenda: identity selected", slog.Int64("employee_id", e.ID), slog.Int64("user_id", e.UserID))
	return nil
}

// ClearSelectedEmployee forgets the acting identity and every cached day.
func (s *Service) ClearSelectedEmployee(ctx context.Context) error {
	s.cache.Clear()
	return s.prefs.ClearSelectedEmployee(ctx)
}

// Today returns the current time in the service location.
func (s *Service) Today() time.Time {
	return s.now().In(s.loc)
}

// MeetingsForDay returns the selected identity's meetings on day's calendar
// date. It returns an empty list when the backend is not configured or no
// identity is selected. When day is today, reminders are rescheduled in the
// background from the result.
func (s *Service) MeetingsForDay(ctx context.Context, day time.Time) ([]models.Meeting, error) {
	if !s.Configured() {
		return []models.Meeting{}, nil
	}
	who, err := s.prefs.SelectedEmployee(ctx)
	if err != nil {
		return []models.Meeting{}, err
	}
	if who == nil || !who.Selectable() {
		return []models.Meeting{}, nil
	}

	day = day.In(s.loc)
	meetings, err := s.cache.GetOrFetch(ctx, who.UserID, day, func(ctx context.Context) ([]models.Meeting, error) {
		return s.backend.ListMeetingsForDay(ctx, who.UserID, day)
	})
	if err != nil {
		return []models.Meeting{}, err
	}
	current, err := s.prefs.SelectedEmployee(ctx)
	if err != nil {
		return []models.Meeting{}, err
	}
	if current == nil || current.UserID != who.UserID {
		s.logger.Info("agenda: discarding meetings of a replaced identity",
			slog.Int64("user_id", who.UserID),
			slog.String("date_key", models.DateKey(day)),
		)
		return []models.Meeting{}, ErrStaleIdentity
	}

	if s.reminders != nil && models.SameDay(s.Today(), day) {
		s.scheduleReminders(who.UserID, reminders.Params{Date: day, Meetings: meetings, PersonName: who.Name})
	}
	return meetings, nil
}

// isSelected reports whether userID is still the persisted identity.
func (s *Service) isSelected(ctx context.Context, userID int64) bool {
	current, err := s.prefs.SelectedEmployee(ctx)
	return err == nil && current != nil && current.UserID == userID
}

// RefreshToday drops today's cached entry and fetches it again.
func (s *Service) RefreshToday(ctx context.Context) ([]models.Meeting, error) {
	today := s.Today()
	if who, err := s.prefs.SelectedEmployee(ctx); err == nil && who != nil {
		s.cache.Invalidate(who.UserID, today)
	}
	return s.MeetingsForDay(ctx, today)
}

// scheduleReminders replaces the day's reminders in the background. The pass
// is skipped when userID stopped being the selected identity before it ran.
func (s *Service) scheduleReminders(userID int64, p reminders.Params) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.schedMu.Lock()
		defer s.schedMu.Unlock()
		if !s.isSelected(s.bg, userID) {
			return
		}
		s.reminders.Schedule(s.bg, p)
	}()
}

// Wait blocks until background reminder scheduling has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Close cancels background work and waits for it.
func (s *Service) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
}
