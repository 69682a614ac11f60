// Package http provides the HTTP handlers and routing of the LearnCode API.
package http

import (
	"net/http"

	"github.com/atinyakov/learncode/internal/content"
	"github.com/atinyakov/learncode/internal/exercise"
	"github.com/atinyakov/learncode/internal/tutor"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ContentService defines the content lookups required by CourseHandler.
type ContentService interface {
	Courses() []content.Course
	Course(id string) (*content.Course, error)
	Step(courseID, itemID, stepID string) (*content.StepView, error)
}

// CourseHandler serves the course catalog and step pages.
type CourseHandler struct {
	Content ContentService
	Log     *zap.Logger
}

// CourseSummary is a course in the catalog listing.
type CourseSummary struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Order       int    `json:"order"`
	ItemCount   int    `json:"itemCount"`
	StepCount   int    `json:"stepCount"`
}

// StepOutline is a step in a course outline, without its content.
type StepOutline struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Order         int    `json:"order"`
	ExerciseCount int    `json:"exerciseCount"`
}

// ItemOutline is a lesson or project in a course outline.
type ItemOutline struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	Type        content.ItemType `json:"type"`
	Order       int              `json:"order"`
	Steps       []StepOutline    `json:"steps"`
}

// CourseOutline is the navigation tree of a course.
type CourseOutline struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Items       []ItemOutline `json:"items"`
}

// ProviderInfo lists the models selectable for a provider.
type ProviderInfo struct {
	Provider    tutor.Provider `json:"provider"`
	RequiresKey bool           `json:"requiresKey"`
	Models      []tutor.Model  `json:"models"`
}

// Health handles GET /api/health.
func Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// List handles GET /api/courses.
func (h *CourseHandler) List(w http.ResponseWriter, _ *http.Request) {
	courses := h.Content.Courses()
	out := make([]CourseSummary, 0, len(courses))
	for _, c := range courses {
		s := CourseSummary{ID: c.ID, Title: c.Title, Description: c.Description, Order: c.Order, ItemCount: len(c.Items)}
		for _, it := range c.Items {
			s.StepCount += len(it.Steps)
		}
		out = append(out, s)
	}
	writeJSON(w, http.StatusOK, out)
}

// Outline handles GET /api/courses/{courseID}.
func (h *CourseHandler) Outline(w http.ResponseWriter, r *http.Request) {
	c, err := h.Content.Course(chi.URLParam(r, "courseID"))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}

	out := CourseOutline{ID: c.ID, Title: c.Title, Description: c.Description, Items: make([]ItemOutline, 0, len(c.Items))}
	for _, it := range c.Items {
		ol := ItemOutline{ID: it.ID, Title: it.Title, Description: it.Description, Type: it.Type, Order: it.Order, Steps: make([]StepOutline, 0, len(it.Steps))}
		for _, st := range it.Steps {
			ol.Steps = append(ol.Steps, StepOutline{
				ID:            st.ID,
				Title:         st.Title,
				Order:         st.Order,
				ExerciseCount: exercise.Count(st.Content),
			})
		}
		out.Items = append(out.Items, ol)
	}
	writeJSON(w, http.StatusOK, out)
}

// Step handles GET /api/courses/{courseID}/{itemID}/{stepID}.
func (h *CourseHandler) Step(w http.ResponseWriter, r *http.Request) {
	view, err := h.Content.Step(chi.URLParam(r, "courseID"), chi.URLParam(r, "itemID"), chi.URLParam(r, "stepID"))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Providers handles GET /api/providers.
func Providers(w http.ResponseWriter, _ *http.Request) {
	out := make([]ProviderInfo, 0, 3)
	for _, p := range tutor.Providers() {
		out = append(out, ProviderInfo{Provider: p, RequiresKey: p.RequiresKey(), Models: tutor.Models(p)})
	}
	writeJSON(w, http.StatusOK, out)
}
