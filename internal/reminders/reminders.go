package reminders

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/garnizeh/simplymeet/pkg/models"
)

const (
	// Type tags every reminder this package schedules.
	Type = "meeting-reminder"
	// ChannelID is the notification channel reminders are posted to.
	ChannelID = "upcoming-meetings"
)

// Channel describes a notification channel for platforms that need one.
type Channel struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Importance string `json:"importance"`
}

// DefaultChannel is the high-importance channel used for meeting reminders.
var DefaultChannel = Channel{ID: ChannelID, Name: "Upcoming meetings", Importance: "high"}

// Data is the metadata attached to a reminder. Type and DateKey identify the
// group a reminder belongs to; rescheduling a day replaces its whole group.
type Data struct {
	Type        string `json:"type"`
	DateKey     string `json:"date_key"`
	MeetingID   int64  `json:"meeting_id"`
	LeadMinutes int    `json:"lead_minutes"`
}

// Request is a notification to be posted at TriggerAt.
type Request struct {
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	ChannelID string    `json:"channel_id"`
	TriggerAt time.Time `json:"trigger_at"`
	Data      Data      `json:"data"`
}

// Notification is a scheduled Request together with its notifier-assigned id.
type Notification struct {
	ID string `json:"id"`
	Request
}

// Notifier is the local notification facility reminders are scheduled on.
type Notifier interface {
	// Supported reports whether background notifications exist at all here.
	Supported() bool
	PermissionGranted(ctx context.Context) (bool, error)
	RequestPermission(ctx context.Context) (bool, error)
	Scheduled(ctx context.Context) ([]Notification, error)
	Cancel(ctx context.Context, id string) error
	Schedule(ctx context.Context, req Request) (string, error)
}

// ChannelEnsurer is implemented by notifiers that post through channels.
// EnsureChannel must be idempotent.
type ChannelEnsurer interface {
	EnsureChannel(ctx context.Context, ch Channel) error
}

// Params selects the meetings to remind about.
type Params struct {
	Date       time.Time
	Meetings   []models.Meeting
	PersonName string
}

// Title returns the notification title for a lead time.
func Title(leadMinutes int) string {
	return fmt.Sprintf("Meeting in %d min", leadMinutes)
}

// Body returns the notification body for a meeting.
func Body(m models.Meeting, personName string) string {
	if personName == "" {
		return fmt.Sprintf("%s (%s)", m.Title, m.StartClock())
	}
	return fmt.Sprintf("%s (%s) - %s", m.Title, m.StartClock(), personName)
}

// Plan computes the reminders for p as of now. A meeting that has already
// started gets none; a lead time whose trigger instant is not after now is
// skipped. The result is ordered by trigger time.
func Plan(p Params, now time.Time, leadMinutes []int) []Request {
	dateKey := models.DateKey(p.Date)

	var out []Request
	for _, m := range p.Meetings {
		if !m.Start.After(now) {
			continue
		}
		for _, lead := range leadMinutes {
			if lead <= 0 {
				continue
			}
			trigger := m.Start.Add(-time.Duration(lead) * time.Minute)
			if !trigger.After(now) {
				continue
			}
			out = append(out, Request{
				Title:     Title(lead),
				Body:      Body(m, p.PersonName),
				ChannelID: ChannelID,
				TriggerAt: trigger,
				Data: Data{
					Type:        Type,
					DateKey:     dateKey,
					MeetingID:   m.ID,
					LeadMinutes: lead,
				},
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].TriggerAt.Before(out[j].TriggerAt) })
	return out
}

// belongsTo reports whether n is a reminder for dateKey.
func belongsTo(n Notification, dateKey string) bool {
	return n.Data.Type == Type && n.Data.DateKey == dateKey
}
