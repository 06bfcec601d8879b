package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/garnizeh/simplymeet/internal/agenda"
	"github.com/garnizeh/simplymeet/internal/icsexport"
	"github.com/garnizeh/simplymeet/pkg/models"
	"github.com/garnizeh/simplymeet/pkg/odoo"
)

// AgendaService is the agenda controller the handlers drive.
// *agenda.Service implements it.
type AgendaService interface {
	Configured() bool
	CheckConnection(ctx context.Context) bool
	Employees(ctx context.Context) ([]models.Employee, error)
	SelectedEmployee(ctx context.Context) (*models.Employee, error)
	SelectEmployee(ctx context.Context, e models.Employee) error
	ClearSelectedEmployee(ctx context.Context) error
	MeetingsForDay(ctx context.Context, day time.Time) ([]models.Meeting, error)
	Today() time.Time
}

var _ AgendaService = (*agenda.Service)(nil)

var validate = validator.New(validator.WithRequiredStructEnabled())

type AgendaHandler struct {
	svc AgendaService
}

func NewAgendaHandler(svc AgendaService) *AgendaHandler {
	return &AgendaHandler{svc: svc}
}

type connectionResponse struct {
	Configured bool `json:"configured"`
	Connected  bool `json:"connected"`
}

type employeesResponse struct {
	Employees []models.Employee `json:"employees"`
	Error     string            `json:"error,omitempty"`
}

type identityResponse struct {
	Employee *models.Employee `json:"employee"`
}

type meetingsResponse struct {
	Date     string           `json:"date"`
	Meetings []models.Meeting `json:"meetings"`
	Error    string           `json:"error,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *AgendaHandler) Connection(w http.ResponseWriter, r *http.Request) {
	resp := connectionResponse{Configured: h.svc.Configured()}
	if resp.Configured {
		resp.Connected = h.svc.CheckConnection(r.Context())
	}
	writeJSON(w, resp, http.StatusOK)
}

func (h *AgendaHandler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.svc.Employees(r.Context())
	if err != nil {
		logger.Warn("list employees failed", slog.Any("err", err))
		writeJSON(w, employeesResponse{Employees: []models.Employee{}, Error: agenda.UserMessage(err)}, statusFor(err))
		return
	}
	writeJSON(w, employeesResponse{Employees: employees}, http.StatusOK)
}

func (h *AgendaHandler) GetIdentity(w http.ResponseWriter, r *http.Request) {
	e, err := h.svc.SelectedEmployee(r.Context())
	if err != nil {
		logger.Error("load identity failed", slog.Any("err", err))
		http.Error(w, "failed to load identity", http.StatusInternalServerError)
		return
	}
	writeJSON(w, identityResponse{Employee: e}, http.StatusOK)
}

func (h *AgendaHandler) SelectIdentity(w http.ResponseWriter, r *http.Request) {
	var e models.Employee
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	if err := validate.Struct(e); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				if fe.Field() == "UserID" {
					writeJSON(w, errorResponse{Error: agenda.UserMessage(agenda.ErrNotSelectable)}, http.StatusUnprocessableEntity)
					return
				}
			}
		}
		writeJSON(w, errorResponse{Error: "invalid employee: " + err.Error()}, http.StatusBadRequest)
		return
	}

	if err := h.svc.SelectEmployee(r.Context(), e); err != nil {
		writeJSON(w, errorResponse{Error: agenda.UserMessage(err)}, statusFor(err))
		return
	}
	logger.Info("identity selected",
		slog.Int64("employee_id", e.ID),
		slog.String("subject", Subject(r.Context())),
	)
	writeJSON(w, identityResponse{Employee: &e}, http.StatusOK)
}

func (h *AgendaHandler) ClearIdentity(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ClearSelectedEmployee(r.Context()); err != nil {
		logger.Error("clear identity failed", slog.Any("err", err))
		http.Error(w, "failed to clear identity", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AgendaHandler) ListMeetings(w http.ResponseWriter, r *http.Request) {
	day, err := h.day(r)
	if err != nil {
		http.Error(w, "invalid date, want YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	resp := meetingsResponse{Date: models.DateKey(day)}
	meetings, err := h.svc.MeetingsForDay(r.Context(), day)
	if err != nil {
		logger.Warn("list meetings failed", slog.String("date_key", resp.Date), slog.Any("err", err))
		resp.Meetings = []models.Meeting{}
		resp.Error = agenda.UserMessage(err)
		writeJSON(w, resp, statusFor(err))
		return
	}
	resp.Meetings = meetings
	writeJSON(w, resp, http.StatusOK)
}

func (h *AgendaHandler) ExportMeetings(w http.ResponseWriter, r *http.Request) {
	day, err := h.day(r)
	if err != nil {
		http.Error(w, "invalid date, want YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	meetings, err := h.svc.MeetingsForDay(r.Context(), day)
	if err != nil {
		http.Error(w, agenda.UserMessage(err), statusFor(err))
		return
	}
	var person string
	if e, err := h.svc.SelectedEmployee(r.Context()); err == nil && e != nil {
		person = e.Name
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="meetings-%s.ics"`, models.DateKey(day)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(icsexport.Encode(meetings, person)))
}

// day reads the date query parameter in the service location, defaulting to
// today.
func (h *AgendaHandler) day(r *http.Request) (time.Time, error) {
	today := h.svc.Today()
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return today, nil
	}
	return time.ParseInLocation(models.DateKeyLayout, raw, today.Location())
}

// statusFor maps agenda and backend errors onto HTTP statuses.
func statusFor(err error) int {
	var (
		te *odoo.TransportError
		re *odoo.RemoteError
		pe *odoo.ProtocolError
	)
	switch {
	case errors.Is(err, odoo.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, odoo.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, agenda.ErrNotSelectable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, agenda.ErrStaleIdentity):
		return http.StatusConflict
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	case errors.Is(err, odoo.ErrAuthenticationFailed),
		errors.As(err, &re),
		errors.As(err, &pe),
		errors.As(err, &te):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
