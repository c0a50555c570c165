package sync

import (
	"strings"

	"github.com/curioapp/curio/internal/store"
)

// UnorganizedKey is the GroupByCategory key for bookmarks without a living
// category.
const UnorganizedKey = "unorganized"

// FilterBySearch returns the bookmarks whose title or URL contains query,
// case-insensitively, preserving order. An empty query returns the input
// unchanged.
func FilterBySearch(bookmarks []*store.Bookmark, query string) []*store.Bookmark {
	if query == "" {
		return bookmarks
	}
	q := strings.ToLower(query)
	out := make([]*store.Bookmark, 0, len(bookmarks))
	for _, b := range bookmarks {
		if strings.Contains(strings.ToLower(b.Title), q) || strings.Contains(strings.ToLower(b.URL), q) {
			out = append(out, b)
		}
	}
	return out
}

// FilterFavorites returns only the favorited bookmarks, order preserved.
func FilterFavorites(bookmarks []*store.Bookmark) []*store.Bookmark {
	out := make([]*store.Bookmark, 0, len(bookmarks))
	for _, b := range bookmarks {
		if b.IsFavorite {
			out = append(out, b)
		}
	}
	return out
}

// GroupByCategory buckets bookmarks by category id. Every bookmark lands in
// exactly one group; a category_id that no longer resolves to a known
// category counts as unorganized. Every known category gets a key even when
// its group is empty.
func GroupByCategory(bookmarks []*store.Bookmark, categories []*store.Category) map[string][]*store.Bookmark {
	groups := map[string][]*store.Bookmark{
		UnorganizedKey: {},
	}
	known := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		known[c.ID] = struct{}{}
		groups[c.ID] = []*store.Bookmark{}
	}

	for _, b := range bookmarks {
		key := UnorganizedKey
		if b.CategoryID != nil {
			if _, ok := known[*b.CategoryID]; ok {
				key = *b.CategoryID
			}
		}
		groups[key] = append(groups[key], b)
	}
	return groups
}
