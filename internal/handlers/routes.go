package handlers

import (
	"net/http"
)

// RegisterRoutes wires the engine's HTTP API onto mux
func RegisterRoutes(mux *http.ServeMux, m *Middleware, lessons *LessonHandler, quizzes *QuizHandler) {
	auth := func(h http.HandlerFunc) http.HandlerFunc {
		return m.RateLimit(m.RequireIdentity(h))
	}

	mux.HandleFunc("GET /healthz", Health)

	mux.HandleFunc("POST /api/lessons/{id}/view", auth(lessons.ViewLesson))
	mux.HandleFunc("POST /api/lessons/{id}/complete", auth(lessons.CompleteLesson))
	mux.HandleFunc("GET /api/modules/{id}/progress", auth(lessons.ModuleProgress))
	mux.HandleFunc("GET /api/progress", auth(lessons.MyProgress))

	mux.HandleFunc("GET /api/quizzes/{id}/eligibility", auth(quizzes.Eligibility))
	mux.HandleFunc("POST /api/quizzes/{id}/attempts", auth(quizzes.StartAttempt))
	mux.HandleFunc("GET /api/quizzes/{id}/attempts", auth(quizzes.ListAttempts))
	mux.HandleFunc("POST /api/attempts/{id}/answers", auth(quizzes.SubmitAnswers))
	mux.HandleFunc("POST /api/attempts/{id}/summary", auth(quizzes.Summary))
}

// Health reports that the process is serving
func Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
