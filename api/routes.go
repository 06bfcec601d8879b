package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/garnizeh/simplymeet/internal/config"
	"github.com/garnizeh/simplymeet/pkg/repository"
)

// Dependencies are the services the routes are served from. Metrics may be
// nil.
type Dependencies struct {
	Agenda  AgendaService
	Themes  repository.ThemeRepo
	Metrics http.Handler
}

func SetupRoutes(cfg *config.Config, version, buildTime string, deps Dependencies) *mux.Router {
	r := mux.NewRouter()

	// Middleware chain
	r.Use(LoggingMiddleware)
	r.Use(CORSMiddleware)
	r.Use(RecoveryMiddleware)

	systemHandler := &SystemHandler{}
	agendaHandler := NewAgendaHandler(deps.Agenda)
	prefsHandler := NewPreferencesHandler(deps.Themes)

	// Open endpoints
	r.HandleFunc("/version", systemHandler.VersionHandler(version, buildTime)).Methods("GET")
	r.HandleFunc("/health", systemHandler.HealthHandler).Methods("GET")
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics).Methods("GET")
	}

	apiV1 := r.PathPrefix("/v1").Subrouter()
	if cfg.JWTSecret != "" {
		apiV1.Use(JWTAuthMiddlewareWithSecret(cfg.JWTSecret))
	}

	apiV1.HandleFunc("/connection", agendaHandler.Connection).Methods("GET")
	apiV1.HandleFunc("/employees", agendaHandler.ListEmployees).Methods("GET")

	apiV1.HandleFunc("/identity", agendaHandler.GetIdentity).Methods("GET")
	apiV1.HandleFunc("/identity", agendaHandler.SelectIdentity).Methods("PUT")
	apiV1.HandleFunc("/identity", agendaHandler.ClearIdentity).Methods("DELETE")

	apiV1.HandleFunc("/meetings", agendaHandler.ListMeetings).Methods("GET")
	apiV1.HandleFunc("/meetings.ics", agendaHandler.ExportMeetings).Methods("GET")

	apiV1.HandleFunc("/preferences/theme", prefsHandler.GetTheme).Methods("GET")
	apiV1.HandleFunc("/preferences/theme", prefsHandler.SetTheme).Methods("PUT")

	return r
}
