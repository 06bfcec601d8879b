package models

import "time"

// DateKeyLayout formats a local calendar date for cache keys and reminder tags.
const DateKeyLayout = "2006-01-02"

// Employee is a directory entry that can be chosen as the acting identity.
type Employee struct {
	ID        int64  `json:"id" validate:"required,gt=0"`
	Name      string `json:"name" validate:"required"`
	WorkEmail string `json:"work_email,omitempty" validate:"omitempty,email"`
	// Image128 is a base64-encoded avatar.
	Image128 string `json:"image_128,omitempty"`
	// UserID is the linked backend login; zero means the entry has no login.
	UserID int64 `json:"user_id,omitempty" validate:"required,gt=0"`
}

// Selectable reports whether the employee has a linked login and can
// therefore have its calendar queried.
func (e Employee) Selectable() bool {
	return e.UserID > 0
}

// Meeting is a calendar event resolved for display.
type Meeting struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Organizer   string    `json:"organizer,omitempty"`
	Attendees   []string  `json:"attendees"`
	MeetingURL  string    `json:"meeting_url,omitempty"`
	Location    string    `json:"location,omitempty"`
	Description string    `json:"description,omitempty"`
}

// DurationMinutes is never negative, even for rows where end precedes start.
func (m Meeting) DurationMinutes() int {
	d := m.End.Sub(m.Start)
	if d < 0 {
		return 0
	}
	return int(d / time.Minute)
}

// StartClock returns the local start time as HH:MM.
func (m Meeting) StartClock() string {
	return m.Start.Format("15:04")
}

// DateKey renders the calendar date of t in its own location.
func DateKey(t time.Time) string {
	return t.Format(DateKeyLayout)
}

// SameDay reports whether a and b fall on the same calendar date in a's location.
func SameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Theme is the persisted color scheme preference.
type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

// Valid reports whether t is one of the known themes.
func (t Theme) Valid() bool {
	switch t {
	case ThemeLight, ThemeDark, ThemeSystem:
		return true
	}
	return false
}
