// Package icsexport renders a day's agenda as an iCalendar document.
package icsexport

import (
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/garnizeh/simplymeet/pkg/models"
)

const productID = "-//simplymeet//agenda//EN"

// UID returns the stable iCalendar UID of a meeting.
func UID(m models.Meeting) string {
	return fmt.Sprintf("meeting-%d@simplymeet", m.ID)
}

// Encode returns a VCALENDAR with one VEVENT per meeting. personName, when
// set, names the calendar.
func Encode(meetings []models.Meeting, personName string) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	if personName != "" {
		cal.SetXWRCalName("SimplyMeet - " + personName)
	}

	stamp := time.Now().UTC()
	for _, m := range meetings {
		ev := cal.AddEvent(UID(m))
		ev.SetDtStampTime(stamp)
		ev.SetSummary(m.Title)
		ev.SetStartAt(m.Start)
		end := m.End
		if end.Before(m.Start) {
			end = m.Start
		}
		ev.SetEndAt(end)
		if m.Location != "" {
			ev.SetLocation(m.Location)
		}
		if m.MeetingURL != "" {
			ev.SetURL(m.MeetingURL)
		}
		if desc := description(m); desc != "" {
			ev.SetDescription(desc)
		}
	}
	return cal.Serialize()
}

func description(m models.Meeting) string {
	var parts []string
	if d := strings.TrimSpace(m.Description); d != "" {
		parts = append(parts, d)
	}
	if m.Organizer != "" {
		parts = append(parts, "Organizer: "+m.Organizer)
	}
	if len(m.Attendees) > 0 {
		parts = append(parts, "Attendees: "+strings.Join(m.Attendees, "; "))
	}
	return strings.Join(parts, "\n")
}
