package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/curioapp/curio/internal/auth"
	"github.com/curioapp/curio/internal/scrape"
	"github.com/curioapp/curio/internal/store"
	"github.com/curioapp/curio/internal/sync"
)

// bookmarksHandler provides REST handlers for bookmark management. Mutations
// made here reach open boards through the change stream.
type bookmarksHandler struct {
	bookmarks store.BookmarkStoreIface
	scraper   scrape.Enqueuer
}

func registerBookmarkRoutes(r chi.Router, bookmarks store.BookmarkStoreIface, scraper scrape.Enqueuer) {
	h := &bookmarksHandler{bookmarks: bookmarks, scraper: scraper}
	r.Get("/bookmarks", h.List)
	r.Post("/bookmarks", h.Create)
	r.Delete("/bookmarks/{id}", h.Delete)
	r.Put("/bookmarks/{id}/favorite", h.SetFavorite)
	r.Put("/bookmarks/{id}/category", h.SetCategory)
}

// List returns the caller's bookmarks, newest first. Supports ?q= substring
// search and ?favorites=true, both applied as pure projections over the
// snapshot.
func (h *bookmarksHandler) List(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "UNAUTHORIZED")
		return
	}

	bookmarks, err := h.bookmarks.ListByOwner(r.Context(), user.ID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	bookmarks = sync.FilterBySearch(bookmarks, r.URL.Query().Get("q"))
	if r.URL.Query().Get("favorites") == "true" {
		bookmarks = sync.FilterFavorites(bookmarks)
	}

	writeJSON(w, http.StatusOK, BookmarkListResponse{Bookmarks: bookmarks})
}

// Create persists a new bookmark and queues its description scrape.
func (h *bookmarksHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "UNAUTHORIZED")
		return
	}

	var req CreateBookmarkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "BAD_REQUEST")
		return
	}

	b, err := h.bookmarks.Create(r.Context(), user.ID, req.Title, req.URL, nil)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	if h.scraper != nil {
		h.scraper.Enqueue(scrape.Job{OwnerID: user.ID, BookmarkID: b.ID, URL: b.URL})
	}

	writeJSON(w, http.StatusCreated, b)
}

func (h *bookmarksHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "UNAUTHORIZED")
		return
	}

	if err := h.bookmarks.Delete(r.Context(), user.ID, chi.URLParam(r, "id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *bookmarksHandler) SetFavorite(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "UNAUTHORIZED")
		return
	}

	var req SetFavoriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "BAD_REQUEST")
		return
	}

	if err := h.bookmarks.SetFavorite(r.Context(), user.ID, chi.URLParam(r, "id"), req.IsFavorite); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *bookmarksHandler) SetCategory(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "UNAUTHORIZED")
		return
	}

	var req SetCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "BAD_REQUEST")
		return
	}

	if err := h.bookmarks.SetCategory(r.Context(), user.ID, chi.URLParam(r, "id"), req.CategoryID); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
