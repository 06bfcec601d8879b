package reminders

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/garnizeh/simplymeet/internal/jobs"
)

// JobType is the job queue type reminders are stored under.
const JobType = "meeting.reminder"

const reminderMaxAttempts = 3

// JobNotifier persists reminders in the job queue; the worker pool delivers
// each one at its trigger time through DeliveryHandler. Permission is a
// configuration switch since a server process cannot prompt anyone.
type JobNotifier struct {
	repo    *jobs.Repository
	enabled bool
	logger  *slog.Logger

	mu       sync.Mutex
	channels map[string]Channel
}

var (
	_ Notifier       = (*JobNotifier)(nil)
	_ ChannelEnsurer = (*JobNotifier)(nil)
)

func NewJobNotifier(repo *jobs.Repository, enabled bool, logger *slog.Logger) *JobNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobNotifier{repo: repo, enabled: enabled, logger: logger, channels: make(map[string]Channel)}
}

func (n *JobNotifier) Supported() bool { return n.repo != nil }

func (n *JobNotifier) PermissionGranted(ctx context.Context) (bool, error) {
	return n.enabled, nil
}

func (n *JobNotifier) RequestPermission(ctx context.Context) (bool, error) {
	return n.enabled, nil
}

func (n *JobNotifier) EnsureChannel(ctx context.Context, ch Channel) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.channels[ch.ID]; !ok {
		n.channels[ch.ID] = ch
		n.logger.Debug("reminders: channel registered", slog.String("channel", ch.ID), slog.String("importance", ch.Importance))
	}
	return nil
}

func (n *JobNotifier) Scheduled(ctx context.Context) ([]Notification, error) {
	pending, err := n.repo.ListPending(ctx, JobType)
	if err != nil {
		return nil, err
	}
	out := make([]Notification, 0, len(pending))
	for _, j := range pending {
		var nt Notification
		if err := json.Unmarshal(j.Payload, &nt); err != nil {
			n.logger.Warn("reminders: unreadable job payload", slog.Int64("job_id", j.ID), slog.Any("err", err))
			continue
		}
		nt.ID = j.Key
		out = append(out, nt)
	}
	return out, nil
}

func (n *JobNotifier) Cancel(ctx context.Context, id string) error {
	_, err := n.repo.Cancel(ctx, id)
	return err
}

func (n *JobNotifier) Schedule(ctx context.Context, req Request) (string, error) {
	id := uuid.NewString()
	payload, err := json.Marshal(Notification{ID: id, Request: req})
	if err != nil {
		return "", fmt.Errorf("encode reminder: %w", err)
	}
	_, err = n.repo.Enqueue(ctx, &jobs.Job{
		Key:         id,
		Type:        JobType,
		Payload:     payload,
		MaxAttempts: reminderMaxAttempts,
		ScheduledAt: req.TriggerAt,
	})
	if err != nil {
		return "", err
	}
	return id, nil
}
