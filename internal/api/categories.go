package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/curioapp/curio/internal/auth"
	"github.com/curioapp/curio/internal/organize"
	"github.com/curioapp/curio/internal/store"
)

type categoriesHandler struct {
	categories store.CategoryStoreIface
}

func registerCategoryRoutes(r chi.Router, categories store.CategoryStoreIface) {
	h := &categoriesHandler{categories: categories}
	r.Get("/categories", h.List)
	r.Post("/categories", h.Create)
	r.Delete("/categories/{id}", h.Delete)
}

// List returns the caller's categories, oldest first, each with its
// positional color. Index 0 is reserved for the unorganized bucket.
func (h *categoriesHandler) List(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "UNAUTHORIZED")
		return
	}

	categories, err := h.categories.ListByOwner(r.Context(), user.ID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	resp := CategoryListResponse{Categories: make([]CategoryResponse, 0, len(categories))}
	for i, c := range categories {
		resp.Categories = append(resp.Categories, CategoryResponse{
			Category: c,
			Color:    organize.ColorFor(i + 1),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *categoriesHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "UNAUTHORIZED")
		return
	}

	var req CreateCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "BAD_REQUEST")
		return
	}

	c, err := h.categories.Create(r.Context(), user.ID, req.Name)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *categoriesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "UNAUTHORIZED")
		return
	}

	if err := h.categories.Delete(r.Context(), user.ID, chi.URLParam(r, "id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
