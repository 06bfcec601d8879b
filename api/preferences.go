package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/garnizeh/simplymeet/pkg/models"
	"github.com/garnizeh/simplymeet/pkg/repository"
)

type PreferencesHandler struct {
	themes repository.ThemeRepo
}

func NewPreferencesHandler(themes repository.ThemeRepo) *PreferencesHandler {
	return &PreferencesHandler{themes: themes}
}

type themeRequest struct {
	Theme string `json:"theme" validate:"required,oneof=light dark system"`
}

type themeResponse struct {
	Theme models.Theme `json:"theme"`
}

func (h *PreferencesHandler) GetTheme(w http.ResponseWriter, r *http.Request) {
	t, err := h.themes.Theme(r.Context())
	if err != nil {
		logger.Error("load theme failed", slog.Any("err", err))
		http.Error(w, "failed to load theme", http.StatusInternalServerError)
		return
	}
	writeJSON(w, themeResponse{Theme: t}, http.StatusOK)
}

func (h *PreferencesHandler) SetTheme(w http.ResponseWriter, r *http.Request) {
	var req themeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(req); err != nil {
		http.Error(w, "theme must be one of light, dark, system", http.StatusBadRequest)
		return
	}

	t := models.Theme(req.Theme)
	if err := h.themes.SetTheme(r.Context(), t); err != nil {
		logger.Error("save theme failed", slog.Any("err", err))
		http.Error(w, "failed to save theme", http.StatusInternalServerError)
		return
	}
	writeJSON(w, themeResponse{Theme: t}, http.StatusOK)
}
