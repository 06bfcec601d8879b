package odoo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/garnizeh/simplymeet/pkg/models"
)

// DatetimeLayout is the naive timestamp format Odoo uses on the wire.
const DatetimeLayout = "2006-01-02 15:04:05"

const (
	employeeLimit = 200
	meetingLimit  = 200
	partnerLimit  = 500
)

var (
	employeeFields = []string{"id", "name", "work_email", "image_128", "user_id"}
	meetingFields  = []string{"id", "name", "start", "stop", "user_id", "partner_ids", "location", "videocall_location", "description"}
	partnerFields  = []string{"id", "name"}
)

// ListEmployees returns directory entries that have a linked login, ordered
// by name.
func (c *Client) ListEmployees(ctx context.Context) ([]models.Employee, error) {
	uid, err := c.Authenticate(ctx)
	if err != nil {
		return nil, err
	}

	var rows []rawEmployee
	domain := []any{[]any{"user_id", "!=", false}}
	err = c.executeKW(ctx, uid, "hr.employee", "search_read",
		[]any{domain},
		map[string]any{
			"fields": employeeFields,
			"order":  "name asc",
			"limit":  employeeLimit,
		}, &rows)
	if err != nil {
		return nil, err
	}

	employees := make([]models.Employee, 0, len(rows))
	for _, row := range rows {
		if row.UserID.ID <= 0 {
			logger.Debug("odoo: skipping employee without login", slog.Int64("employee_id", row.ID))
			continue
		}
		employees = append(employees, models.Employee{
			ID:        row.ID,
			Name:      string(row.Name),
			WorkEmail: string(row.WorkEmail),
			Image128:  string(row.Image128),
			UserID:    row.UserID.ID,
		})
	}

	return employees, nil
}

// DayBounds returns the naive first and last second of day's calendar date.
func DayBounds(day time.Time) (string, string) {
	y, m, d := day.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, day.Location())
	end := time.Date(y, m, d, 23, 59, 59, 0, day.Location())
	return start.Format(DatetimeLayout), end.Format(DatetimeLayout)
}

// ListMeetingsForDay returns the meetings organized by userID that start on
// day's calendar date, ordered by start. Attendee names are resolved with one
// batched partner lookup; ids the lookup does not return are dropped.
func (c *Client) ListMeetingsForDay(ctx context.Context, userID int64, day time.Time) ([]models.Meeting, error) {
	uid, err := c.Authenticate(ctx)
	if err != nil {
		return nil, err
	}

	dayStart, dayEnd := DayBounds(day.In(c.loc))

	var rows []rawMeeting
	domain := []any{
		[]any{"user_id", "=", userID},
		[]any{"start", ">=", dayStart},
		[]any{"start", "<=", dayEnd},
	}
	err = c.executeKW(ctx, uid, "calendar.event", "search_read",
		[]any{domain},
		map[string]any{
			"fields": meetingFields,
			"order":  "start asc",
			"limit":  meetingLimit,
		}, &rows)
	if err != nil {
		return nil, err
	}

	names, err := c.partnerNames(ctx, uid, rows)
	if err != nil {
		return nil, err
	}

	meetings := make([]models.Meeting, 0, len(rows))
	for _, row := range rows {
		m, err := c.toMeeting(row, names)
		if err != nil {
			return nil, err
		}
		meetings = append(meetings, m)
	}

	return meetings, nil
}

func (c *Client) partnerNames(ctx context.Context, uid int64, rows []rawMeeting) (map[int64]string, error) {
	seen := make(map[int64]struct{})
	ids := make([]int64, 0)
	for _, row := range rows {
		for _, id := range row.PartnerIDs {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}

	names := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	var partners []rawPartner
	domain := []any{[]any{"id", "in", ids}}
	err := c.executeKW(ctx, uid, "res.partner", "search_read",
		[]any{domain},
		map[string]any{
			"fields": partnerFields,
			"limit":  partnerLimit,
		}, &partners)
	if err != nil {
		return nil, err
	}

	for _, p := range partners {
		if p.Name != "" {
			names[p.ID] = string(p.Name)
		}
	}
	return names, nil
}

func (c *Client) toMeeting(row rawMeeting, names map[int64]string) (models.Meeting, error) {
	start, err := time.ParseInLocation(DatetimeLayout, string(row.Start), c.loc)
	if err != nil {
		return models.Meeting{}, &ProtocolError{Reason: fmt.Sprintf("meeting %d: invalid start %q", row.ID, string(row.Start))}
	}
	end, err := time.ParseInLocation(DatetimeLayout, string(row.Stop), c.loc)
	if err != nil {
		end = start
	}

	attendees := make([]string, 0, len(row.PartnerIDs))
	for _, id := range row.PartnerIDs {
		if name, ok := names[id]; ok {
			attendees = append(attendees, name)
		}
	}

	return models.Meeting{
		ID:          row.ID,
		Title:       string(row.Name),
		Start:       start,
		End:         end,
		Organizer:   row.UserID.Name,
		Attendees:   attendees,
		MeetingURL:  string(row.VideocallLocation),
		Location:    string(row.Location),
		Description: string(row.Description),
	}, nil
}
