package api

import (
	"net/http"

	"github.com/arcadenet/netplay/internal/api/handlers"
	"github.com/arcadenet/netplay/internal/api/middleware"
	"github.com/arcadenet/netplay/internal/service"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

func NewRouter(services *service.Services) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(middleware.CORS)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	sessionHandler := handlers.NewSessionHandler(services.Session)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", sessionHandler.Create)
			r.Get("/", sessionHandler.List)
			r.Post("/expire", sessionHandler.Expire)
			r.Get("/{idOrCode}", sessionHandler.Get)
			r.Post("/{idOrCode}/join", sessionHandler.Join)
			r.Post("/{idOrCode}/end", sessionHandler.End)
		})
	})

	return r
}
