package http

import (
	"net/http"

	"github.com/atinyakov/learncode/internal/middleware"
	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter constructs and returns an HTTP handler that serves the LearnCode
// API. It applies JSON content-type enforcement, request logging and bearer
// token authentication, and mounts every endpoint under /api.
//
// Routes:
//
//	GET    /api/health                              → Health (public)
//	GET    /api/providers                           → Providers
//	GET    /api/courses                             → courses.List
//	GET    /api/courses/{courseID}                  → courses.Outline
//	GET    /api/courses/{courseID}/{itemID}/{stepID} → courses.Step
//	GET    /api/settings                            → settings.Get
//	PUT    /api/settings                            → settings.Put
//	DELETE /api/settings                            → settings.Delete
//	POST   /api/settings/rotate                     → settings.Rotate
//	DELETE /api/chats/{courseID}                    → chats.ClearCourse
//	GET    /api/chats/{courseID}/{itemID}/{stepID}  → chats.History
//	PUT    /api/chats/{courseID}/{itemID}/{stepID}  → chats.Save
//	DELETE /api/chats/{courseID}/{itemID}/{stepID}  → chats.Clear
//	POST   /api/chat/{courseID}/{itemID}/{stepID}   → chats.Ask (text/plain stream)
//
// Middleware chain (applied in order):
//  1. AllowContentType("application/json") : rejects non-JSON request bodies
//  2. WithRequestLogging(logger)         : logs every request
//  3. TokenAuth(authSecret)              : requires a bearer token
func NewRouter(
	courses *CourseHandler,
	settings *SettingsHandler,
	chats *ChatHandler,
	authSecret string,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Only allow requests with Content-Type: application/json
	r.Use(chiMiddleware.AllowContentType("application/json"))

	// Log each request and its metadata
	r.Use(middleware.WithRequestLogging(logger))
	// Enforce bearer token authentication
	r.Use(middleware.TokenAuth(authSecret))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", Health)
		r.Get("/providers", Providers)

		r.Route("/courses", func(r chi.Router) {
			r.Get("/", courses.List)
			r.Get("/{courseID}", courses.Outline)
			r.Get("/{courseID}/{itemID}/{stepID}", courses.Step)
		})

		r.Route("/settings", func(r chi.Router) {
			r.Get("/", settings.Get)
			r.Put("/", settings.Put)
			r.Delete("/", settings.Delete)
			r.Post("/rotate", settings.Rotate)
		})

		r.Delete("/chats/{courseID}", chats.ClearCourse)
		r.Route("/chats/{courseID}/{itemID}/{stepID}", func(r chi.Router) {
			r.Get("/", chats.History)
			r.Put("/", chats.Save)
			r.Delete("/", chats.Clear)
		})
		r.Post("/chat/{courseID}/{itemID}/{stepID}", chats.Ask)
	})

	return r
}
