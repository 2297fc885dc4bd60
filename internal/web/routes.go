package web

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/kozaktomas/face-registry/internal/web/handlers"
	"github.com/kozaktomas/face-registry/internal/web/static"
)

func (s *Server) setupRoutes() {
	// Create handlers
	configHandler := handlers.NewConfigHandler(s.config)
	usersHandler := handlers.NewUsersHandler(s.repo, s.logger)
	editHandler := handlers.NewEditHandler(s.repo, s.logger)
	captureHandler := handlers.NewCaptureHandler(s.controller, s.logger)
	callbackHandler := handlers.NewCallbackHandler(s.controller, s.repo, s.logger)

	// Health check
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		// Capture events stream indefinitely and must not be cut by the request timeout.
		r.Get("/capture/events", captureHandler.Events)

		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.Timeout(time.Minute))

			// Config
			r.Get("/config", configHandler.Get)
			r.Get("/store/status", usersHandler.StoreStatus)

			// Directory
			r.Get("/users", usersHandler.List)
			r.Post("/users", usersHandler.Create)
			r.Get("/users/search", usersHandler.Search)
			r.Get("/users/{id}", usersHandler.Get)
			r.Put("/users/{id}", usersHandler.Update)
			r.Delete("/users/{id}", usersHandler.Delete)

			// Edit mode
			r.Post("/users/{id}/edit", editHandler.Begin)
			r.Get("/edit", editHandler.Get)
			r.Put("/edit", editHandler.Update)
			r.Delete("/edit", editHandler.Cancel)
			r.Post("/edit/save", editHandler.Save)

			// Capture sessions
			r.Post("/capture/{kind}", captureHandler.Trigger)
			r.Get("/capture/{kind}", captureHandler.Status)

			// Enrollment form
			r.Post("/enroll", callbackHandler.Enroll)
		})
	})

	// Result redirects from the capture process. A browser page load gets the console,
	// which then fetches the same URL as JSON.
	s.router.Get("/signup", s.pageOr(callbackHandler.Signup))
	s.router.Get("/login", s.pageOr(callbackHandler.Login))

	// Serve static files for frontend (SPA)
	s.router.Get("/*", s.serveSPA)
}

// pageOr serves the console to browsers and next to API clients.
func (s *Server) pageOr(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if static.HasDist() && wantsHTML(r) {
			s.serveIndex(w)
			return
		}
		next(w, r)
	}
}

// wantsHTML reports whether the request prefers an HTML page over JSON.
func wantsHTML(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "text/html") && !strings.Contains(accept, "application/json")
}

// serveSPA serves the single-page application
func (s *Server) serveSPA(w http.ResponseWriter, r *http.Request) {
	if !static.HasDist() {
		http.NotFound(w, r)
		return
	}

	fs := static.GetFileSystem()
	path := r.URL.Path
	if path == "/" {
		path = "/index.html"
	}

	f, err := fs.Open(path)
	if err == nil {
		defer f.Close()

		stat, err := f.Stat()
		if err == nil && !stat.IsDir() {
			w.Header().Set("Content-Type", contentTypeFor(path))
			if strings.HasPrefix(path, "/assets/") {
				w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
			}
			w.WriteHeader(http.StatusOK)
			io.Copy(w, f)
			return
		}
	}

	// For SPA routing, serve index.html for non-asset paths
	if strings.HasPrefix(path, "/assets/") || strings.HasPrefix(path, "/api/") {
		http.NotFound(w, r)
		return
	}
	s.serveIndex(w)
}

func (s *Server) serveIndex(w http.ResponseWriter) {
	indexFile, err := static.GetFileSystem().Open("/index.html")
	if err != nil {
		http.Error(w, "console not available", http.StatusNotFound)
		return
	}
	defer indexFile.Close()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	io.Copy(w, indexFile)
}

func contentTypeFor(path string) string {
	switch {
	case strings.HasSuffix(path, ".html"):
		return "text/html; charset=utf-8"
	case strings.HasSuffix(path, ".css"):
		return "text/css; charset=utf-8"
	case strings.HasSuffix(path, ".js"):
		return "application/javascript; charset=utf-8"
	case strings.HasSuffix(path, ".json"):
		return "application/json"
	case strings.HasSuffix(path, ".svg"):
		return "image/svg+xml"
	case strings.HasSuffix(path, ".png"):
		return "image/png"
	case strings.HasSuffix(path, ".ico"):
		return "image/x-icon"
	default:
		return "application/octet-stream"
	}
}
