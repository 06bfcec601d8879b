package icsexport_test

import (
	"strings"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/garnizeh/simplymeet/internal/icsexport"
	"github.com/garnizeh/simplymeet/pkg/models"
)

func TestEncode(t *testing.T) {
	start := time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC)
	meetings := []models.Meeting{
		{
			ID:         11,
			Title:      "Standup",
			Start:      start,
			End:        start.Add(15 * time.Minute),
			Organizer:  "Bob",
			Attendees:  []string{"Ana", "Luis"},
			MeetingURL: "https://meet.example.com/abc",
			Location:   "Room 1",
		},
		{ID: 12, Title: "Review", Start: start.Add(2 * time.Hour), End: start.Add(time.Hour)},
	}

	out := icsexport.Encode(meetings, "Ana")

	cal, err := ical.ParseCalendar(strings.NewReader(out))
	if err != nil {
		t.Fatalf("ParseCalendar: %v", err)
	}
	events := cal.Events()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}

	first := events[0]
	if first.Id() != "meeting-11@simplymeet" {
		t.Fatalf("unexpected UID %q", first.Id())
	}
	if p := first.GetProperty(ical.ComponentPropertySummary); p == nil || p.Value != "Standup" {
		t.Fatalf("unexpected summary %#v", p)
	}
	if p := first.GetProperty(ical.ComponentPropertyLocation); p == nil || p.Value != "Room 1" {
		t.Fatalf("unexpected location %#v", p)
	}
	got, err := first.GetStartAt()
	if err != nil || !got.Equal(start) {
		t.Fatalf("unexpected start %v, %v", got, err)
	}
	desc := first.GetProperty(ical.ComponentPropertyDescription)
	if desc == nil || !strings.Contains(desc.Value, "Organizer: Bob") || !strings.Contains(desc.Value, "Luis") {
		t.Fatalf("unexpected description %#v", desc)
	}

	second := events[1]
	end, err := second.GetEndAt()
	if err != nil || !end.Equal(start.Add(2*time.Hour)) {
		t.Fatalf("end before start must be clamped to start, got %v, %v", end, err)
	}
	if second.GetProperty(ical.ComponentPropertyDescription) != nil {
		t.Fatalf("expected no description for a bare meeting")
	}
}

func TestEncode_Empty(t *testing.T) {
	out := icsexport.Encode(nil, "")
	if !strings.Contains(out, "BEGIN:VCALENDAR") || strings.Contains(out, "BEGIN:VEVENT") {
		t.Fatalf("unexpected calendar:\n%s", out)
	}
}
