package api

import "github.com/curioapp/curio/internal/store"

type CreateBookmarkRequest struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type SetFavoriteRequest struct {
	IsFavorite bool `json:"is_favorite"`
}

type SetCategoryRequest struct {
	// CategoryID nil assigns the bookmark to the unorganized bucket.
	CategoryID *string `json:"category_id"`
}

type CreateCategoryRequest struct {
	Name string `json:"name"`
}

type BookmarkListResponse struct {
	Bookmarks []*store.Bookmark `json:"bookmarks"`
}

// CategoryResponse augments a stored category with its positional color.
type CategoryResponse struct {
	*store.Category
	Color string `json:"color"`
}

type CategoryListResponse struct {
	Categories []CategoryResponse `json:"categories"`
}
