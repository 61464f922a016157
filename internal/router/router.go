package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"lingua-backend/internal/handlers"
	"lingua-backend/internal/middleware"
	"lingua-backend/internal/websocket"
)

func New(
	jwtAuth *middleware.JWTAuth,
	authHandler *handlers.AuthHandler,
	courseHandler *handlers.CourseHandler,
	presenceHandler *handlers.PresenceHandler,
	chatHandler *handlers.ChatHandler,
	tutorHandler *handlers.TutorHandler,
	progressHandler *handlers.ProgressHandler,
	jobHandler *handlers.JobHandler,
	wsHub *websocket.Hub,
	tutorWS *websocket.TutorHandler,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Auth rate limiter (10 req/min per IP)
	authLimiter := middleware.NewRateLimiter(10, time.Minute)
	// AI calls are metered per user
	aiLimiter := middleware.NewRateLimiter(30, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Auth Routes (public) ────
		r.Route("/auth", func(r chi.Router) {
			r.Use(authLimiter.Middleware)
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
		})

		// ──── WebSockets (token query param) ────
		r.Get("/ws", wsHub.HandleWebSocket)
		r.Get("/tutor/ws", tutorWS.HandleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(jwtAuth.Middleware)

			r.Get("/me", authHandler.Me)

			// ──── Course & Lesson Routes ────
			r.Route("/courses", func(r chi.Router) {
				r.Get("/", courseHandler.List)
				r.Post("/", courseHandler.Create)
				r.Get("/{id}", courseHandler.Get)
				r.Delete("/{id}", courseHandler.Delete)
				r.Get("/{id}/lessons", courseHandler.ListLessons)
				r.Post("/{id}/lessons", courseHandler.CreateLesson)
				r.Post("/{id}/lessons/import", courseHandler.ImportLessons)
				r.With(aiLimiter.Middleware).Post("/{id}/lessons/generate", courseHandler.GenerateLesson)
			})

			r.Route("/lessons", func(r chi.Router) {
				r.Get("/{id}", courseHandler.GetLesson)
				r.Delete("/{id}", courseHandler.DeleteLesson)
				r.Post("/{id}/complete", courseHandler.CompleteLesson)
			})

			// ──── Presence Routes ────
			r.Route("/presence/{groupID}", func(r chi.Router) {
				r.Get("/{userID}", presenceHandler.Status)
				r.Post("/heartbeat", presenceHandler.Heartbeat)
				r.Post("/offline", presenceHandler.Offline)
			})

			// ──── Chat Routes ────
			r.Route("/rooms", func(r chi.Router) {
				r.Get("/", chatHandler.ListRooms)
				r.Post("/", chatHandler.CreateRoom)
				r.Post("/direct", chatHandler.OpenDirect)
				r.Get("/{id}/messages", chatHandler.Messages)
				r.Post("/{id}/messages", chatHandler.Send)
			})

			// ──── Tutor Routes ────
			r.Route("/tutor", func(r chi.Router) {
				r.With(aiLimiter.Middleware).Post("/respond", tutorHandler.Respond)
				r.Post("/sessions", tutorHandler.OpenSession)
				r.With(aiLimiter.Middleware).Post("/sessions/{id}/utterances", tutorHandler.Utterance)
				r.Post("/sessions/{id}/close", tutorHandler.CloseSession)
			})

			// ──── Progress Routes ────
			r.Get("/progress", progressHandler.Progress)
			r.Get("/achievements", progressHandler.Achievements)

			// ──── Job Routes ────
			r.Route("/jobs", func(r chi.Router) {
				r.Get("/{id}", jobHandler.GetJob)
				r.Delete("/{id}", jobHandler.CancelJob)
			})
		})
	})

	return r
}
