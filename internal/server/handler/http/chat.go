package http

import (
	"context"
	"net/http"

	"github.com/atinyakov/learncode/internal/middleware"
	"github.com/atinyakov/learncode/internal/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ChatService defines the step chat operations required by ChatHandler.
type ChatService interface {
	History(ctx context.Context, userID string, ref models.StepRef) ([]models.ChatMessage, error)
	SaveHistory(ctx context.Context, userID string, ref models.StepRef, msgs []models.ChatMessage) error
	ClearHistory(ctx context.Context, userID string, ref models.StepRef) error
	ClearCourse(ctx context.Context, userID, courseID string) (int64, error)
	Ask(ctx context.Context, userID string, ref models.StepRef, question string, onDelta func(string) error) (*models.ChatMessage, error)
}

// ChatHandler serves step chat histories and tutor conversations.
type ChatHandler struct {
	Chats ChatService
	Log   *zap.Logger
}

type chatMessageInput struct {
	ID        string `json:"id" validate:"required,max=64"`
	Role      string `json:"role" validate:"oneof=user assistant"`
	Content   string `json:"content" validate:"max=100000"`
	Timestamp int64  `json:"timestamp" validate:"gte=0"`
}

type saveHistoryRequest struct {
	Messages []chatMessageInput `json:"messages" validate:"max=500,dive"`
}

type askRequest struct {
	Question string `json:"question" validate:"required,max=8000"`
}

func stepRef(r *http.Request) models.StepRef {
	return models.StepRef{
		CourseID: chi.URLParam(r, "courseID"),
		ItemID:   chi.URLParam(r, "itemID"),
		StepID:   chi.URLParam(r, "stepID"),
	}
}

// History handles GET /api/chats/{courseID}/{itemID}/{stepID}.
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.Chats.History(r.Context(), middleware.GetUserIDFromContext(r.Context()), stepRef(r))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

// Save handles PUT /api/chats/{courseID}/{itemID}/{stepID}.
func (h *ChatHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req saveHistoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	msgs := make([]models.ChatMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, models.ChatMessage{ID: m.ID, Role: models.ChatRole(m.Role), Content: m.Content, Timestamp: m.Timestamp})
	}
	if err := h.Chats.SaveHistory(r.Context(), middleware.GetUserIDFromContext(r.Context()), stepRef(r), msgs); err != nil {
		writeError(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Clear handles DELETE /api/chats/{courseID}/{itemID}/{stepID}.
func (h *ChatHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.Chats.ClearHistory(r.Context(), middleware.GetUserIDFromContext(r.Context()), stepRef(r)); err != nil {
		writeError(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearCourse handles DELETE /api/chats/{courseID}.
func (h *ChatHandler) ClearCourse(w http.ResponseWriter, r *http.Request) {
	n, err := h.Chats.ClearCourse(r.Context(), middleware.GetUserIDFromContext(r.Context()), chi.URLParam(r, "courseID"))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"removed": n})
}

// Ask handles POST /api/chat/{courseID}/{itemID}/{stepID}. The answer is
// streamed as plain text chunks. Errors raised before the first chunk get
// a proper status; later ones can only cut the stream short.
func (h *ChatHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := decodeJSON(w, r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	flusher, _ := w.(http.Flusher)
	started := false
	onDelta := func(delta string) error {
		if !started {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Header().Set("Cache-Control", "no-cache")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.WriteHeader(http.StatusOK)
			started = true
		}
		if _, err := w.Write([]byte(delta)); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	}

	userID := middleware.GetUserIDFromContext(r.Context())
	_, err := h.Chats.Ask(r.Context(), userID, stepRef(r), req.Question, onDelta)
	if err != nil {
		if started {
			if h.Log != nil {
				h.Log.Warn("tutor stream interrupted", zap.String("user", userID), zap.Error(err))
			}
			return
		}
		writeError(w, h.Log, err)
		return
	}
	if !started {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
	}
}
