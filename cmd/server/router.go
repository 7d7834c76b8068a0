package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ophelia-ai/ophelia-api/internal/api"
	apiMiddleware "github.com/ophelia-ai/ophelia-api/internal/api/middleware"
)

// setupRouter creates and configures the application router with all
// routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	authHandler := api.NewAuthHandler(
		app.userStore,
		app.jwtService,
		app.passwordVerifier,
		app.config.Auth.TokenLifetimeMinutes,
	)
	contentHandler := api.NewContentHandler(
		app.contentService,
		app.userStore,
		app.limiter,
	)
	userHandler := api.NewUserHandler(app.userService, app.passwordVerifier)
	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService)

	r.Route("/api", func(r chi.Router) {
		// Authentication endpoints (public)
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/refresh", authHandler.RefreshToken)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			r.Post("/content/generate", contentHandler.GenerateContent)
			r.Get("/content", contentHandler.ListHistory)
			r.Get("/content/{id}", contentHandler.GetContent)
			r.Delete("/content/{id}", contentHandler.DeleteContent)

			r.Get("/users/me", userHandler.GetProfile)
			r.Put("/users/me/email", userHandler.UpdateEmail)
			r.Put("/users/me/password", userHandler.UpdatePassword)
			r.Delete("/users/me", userHandler.DeleteAccount)

			r.Get("/admin/content", contentHandler.AdminListContent)
		})
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("Failed to write health check response", "error", err)
		}
	})

	return r
}
