package rest

import (
	"net/http"
	"os"

	"github.com/gorilla/mux"

	"formrunner/internal/service"
	"formrunner/internal/transport/rest/handler"
	"formrunner/internal/transport/rest/middleware"
	"formrunner/internal/transport/ws"
)

// Container holds all dependencies for the router
type Container struct {
	RunnerService *service.RunnerService
	TokenService  *service.SessionTokenService
	WSHub         *ws.Hub
}

// NewRouter creates the runner router with all endpoints
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()

	formHandler := handler.NewFormHandler(c.RunnerService, c.TokenService)
	wsHandler := ws.NewHandler(c.WSHub, c.TokenService)

	sessionMW := middleware.NewSessionMiddleware(c.TokenService)

	// CORS middleware (apply first)
	r.Use(corsMiddleware)

	// API v1 routes
	v1 := r.PathPrefix("/v1").Subrouter()

	// Opening a form is unauthenticated; it issues the session token
	v1.HandleFunc("/forms/{quizId}/open", formHandler.Open).Methods("POST", "OPTIONS")

	// WebSocket event stream (token in query param)
	v1.HandleFunc("/ws/forms/{quizId}/events", wsHandler.FormEvents).Methods("GET")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Session-bound routes
	formRoutes := v1.NewRoute().Subrouter()
	formRoutes.Use(sessionMW.RequireSession)

	formRoutes.HandleFunc("/forms/{quizId}", formHandler.State).Methods("GET", "OPTIONS")
	formRoutes.HandleFunc("/forms/{quizId}/answers", formHandler.Answer).Methods("POST", "OPTIONS")
	formRoutes.HandleFunc("/forms/{quizId}/next", formHandler.Next).Methods("POST", "OPTIONS")
	formRoutes.HandleFunc("/forms/{quizId}/back", formHandler.Back).Methods("POST", "OPTIONS")
	formRoutes.HandleFunc("/forms/{quizId}/finalize", formHandler.Finalize).Methods("POST", "OPTIONS")
	formRoutes.HandleFunc("/forms/{quizId}/journal", formHandler.Journal).Methods("GET", "OPTIONS")

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowedOrigins := os.Getenv("CORS_ALLOWED_ORIGINS")
		if allowedOrigins == "" {
			allowedOrigins = "*"
		}

		allowedMethods := os.Getenv("CORS_ALLOWED_METHODS")
		if allowedMethods == "" {
			allowedMethods = "GET, POST, PUT, DELETE, OPTIONS"
		}

		allowedHeaders := os.Getenv("CORS_ALLOWED_HEADERS")
		if allowedHeaders == "" {
			allowedHeaders = "Content-Type, Authorization"
		}

		w.Header().Set("Access-Control-Allow-Origin", allowedOrigins)
		w.Header().Set("Access-Control-Allow-Methods", allowedMethods)
		w.Header().Set("Access-Control-Allow-Headers", allowedHeaders)

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
