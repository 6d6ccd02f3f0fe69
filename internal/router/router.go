// Package router sets up the HTTP routes and middleware chains of the
// Brand Dos API. Routes are grouped by the authentication they need and
// the rate limit budget they draw from.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"branddos/internal/handlers"
	"branddos/internal/middleware"
	"branddos/internal/session"
)

// Handlers are the handler groups served by the router.
type Handlers struct {
	Auth    *handlers.Auth
	Brand   *handlers.Brand
	Content *handlers.Content
	Images  *handlers.Images
}

// Options tune the middleware. A nil limiter disables that limit.
type Options struct {
	SecureCookies bool
	AuthLimit     *middleware.RateLimiter // login, signup and 2FA attempts
	AILimit       *middleware.RateLimiter // calls that reach an AI provider
}

// New creates the configured Chi router.
func New(sessions *session.Store, h Handlers, opts Options) chi.Router {
	r := chi.NewRouter()

	// Global middleware, applied to every request. The session is loaded
	// before logging so request logs carry the user id.
	r.Use(middleware.Recoverer)
	r.Use(middleware.SecureHeaders)
	r.Use(middleware.LoadSession(sessions))
	r.Use(middleware.Logger)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		jsonError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		jsonError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	// Health check: no auth, no CSRF.
	r.Get("/health", handlers.Health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewCSRF(opts.SecureCookies))

		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				useLimit(r, opts.AuthLimit)
				r.Post("/signup", h.Auth.Signup)
				r.Post("/login", h.Auth.Login)
			})
			r.Post("/logout", h.Auth.Logout)

			// Verification also completes a pending login, so it only
			// needs a session, not a finished one.
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireSession)
				useLimit(r, opts.AuthLimit)
				r.Post("/2fa/verify", h.Auth.Verify2FA)
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAuth)
				r.Get("/me", h.Auth.Me)
				r.Post("/2fa/setup", h.Auth.Setup2FA)
			})
		})

		// Fully authenticated API.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)

			r.Get("/settings", h.Brand.Settings)
			r.Post("/save-settings", h.Brand.SaveSettings)
			r.Post("/settings/logo", h.Brand.UploadLogo)

			r.Get("/chat/history", h.Content.ChatHistory)
			r.Get("/history", h.Content.History)
			r.Post("/delete", h.Content.Delete)
			r.Get("/user-data", h.Images.UserData)

			r.Group(func(r chi.Router) {
				useLimit(r, opts.AILimit)
				r.Post("/chat", h.Content.Chat)
				r.Post("/generate", h.Content.Generate)
				r.Post("/refine-image-prompt", h.Images.RefineImagePrompt)
				r.Post("/generate-image", h.Images.GenerateImage)
				r.Post("/overlay", h.Images.Overlay)
			})
		})
	})

	return r
}

func useLimit(r chi.Router, rl *middleware.RateLimiter) {
	if rl != nil {
		r.Use(rl.Middleware)
	}
}

func jsonError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + msg + `"}`))
}
