package http

import (
	"context"
	"net/http"

	"github.com/atinyakov/learncode/internal/middleware"
	"github.com/atinyakov/learncode/internal/service"
	"go.uber.org/zap"
)

// SettingsService defines the credential operations required by
// SettingsHandler.
type SettingsService interface {
	SaveSettings(ctx context.Context, userID string, in service.SettingsInput) (*service.SettingsView, error)
	Settings(ctx context.Context, userID string) (*service.SettingsView, error)
	DeleteSettings(ctx context.Context, userID string) error
	RotateUserKey(ctx context.Context, userID string) (service.RotateResult, error)
}

// SettingsHandler handles the user's AI provider settings.
type SettingsHandler struct {
	Settings SettingsService
	Log      *zap.Logger
}

// Get handles GET /api/settings.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.Settings.Settings(r.Context(), middleware.GetUserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Put handles PUT /api/settings. It expects provider, model and an
// optional apiKey.
func (h *SettingsHandler) Put(w http.ResponseWriter, r *http.Request) {
	var req service.SettingsInput
	if err := decodeJSON(w, r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	view, err := h.Settings.SaveSettings(r.Context(), middleware.GetUserIDFromContext(r.Context()), req)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Delete handles DELETE /api/settings.
func (h *SettingsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Settings.DeleteSettings(r.Context(), middleware.GetUserIDFromContext(r.Context())); err != nil {
		writeError(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Rotate handles POST /api/settings/rotate.
func (h *SettingsHandler) Rotate(w http.ResponseWriter, r *http.Request) {
	res, err := h.Settings.RotateUserKey(r.Context(), middleware.GetUserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
