package api

import (
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/curioapp/curio/internal/auth"
	"github.com/curioapp/curio/internal/logger"
	"github.com/curioapp/curio/internal/scrape"
	"github.com/curioapp/curio/internal/store"
	"github.com/curioapp/curio/internal/stream"
)

// Authenticator gates authenticated routes and places the user on the
// request context.
type Authenticator interface {
	RequireAuth(next http.Handler) http.Handler
}

// Deps holds all dependencies required to build the HTTP router.
type Deps struct {
	SessionManager  *scs.SessionManager
	AuthHandlers    *auth.Handlers
	AuthMiddleware  Authenticator
	Bookmarks       store.BookmarkStoreIface
	Categories      store.CategoryStoreIface
	Hub             *stream.Hub
	Scraper         scrape.Enqueuer
	RefreshInterval time.Duration
	Log             logger.Logger
}

// NewRouter assembles the full chi router: auth flow, JSON API under
// /api/v1, the websocket board, metrics, and health.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	if deps.SessionManager != nil {
		r.Use(deps.SessionManager.LoadAndSave)
	}

	if deps.AuthHandlers != nil {
		r.Get("/auth/login", deps.AuthHandlers.Login)
		r.Get("/auth/callback", deps.AuthHandlers.Callback)
		r.Post("/auth/logout", deps.AuthHandlers.Logout)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(jsonContentType)
		r.Use(deps.AuthMiddleware.RequireAuth)
		registerBookmarkRoutes(r, deps.Bookmarks, deps.Scraper)
		registerCategoryRoutes(r, deps.Categories)
	})

	board := newBoardHandler(deps.Hub, deps.Bookmarks, deps.Categories, deps.Scraper, deps.RefreshInterval, deps.Log)
	r.With(deps.AuthMiddleware.RequireAuth).Get("/ws/board", board.ServeHTTP)

	return r
}

// jsonContentType sets Content-Type: application/json on all API responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
