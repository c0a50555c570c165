package sync

import (
	"context"

	"github.com/curioapp/curio/internal/scrape"
	"github.com/curioapp/curio/internal/store"
)

// Gateway is the store surface a view mutates through. Implementations are
// bound to a single owner; every call is scoped to that owner's rows.
type Gateway interface {
	Owner() string
	Snapshot(ctx context.Context) ([]*store.Bookmark, []*store.Category, error)
	AddBookmark(ctx context.Context, title, url string) (*store.Bookmark, error)
	DeleteBookmark(ctx context.Context, id string) error
	SetFavorite(ctx context.Context, id string, favorite bool) error
	SetBookmarkCategory(ctx context.Context, id string, categoryID *string) error
	CreateCategory(ctx context.Context, name string) (*store.Category, error)
	DeleteCategory(ctx context.Context, id string) error
}

// StoreGateway adapts the sqlx stores to the Gateway interface for one owner.
// New bookmarks are handed to the scraper for description enrichment,
// fire-and-forget.
type StoreGateway struct {
	owner      string
	bookmarks  store.BookmarkStoreIface
	categories store.CategoryStoreIface
	scraper    scrape.Enqueuer
}

// NewStoreGateway binds the stores to ownerID. scraper may be nil.
func NewStoreGateway(ownerID string, bookmarks store.BookmarkStoreIface, categories store.CategoryStoreIface, scraper scrape.Enqueuer) *StoreGateway {
	return &StoreGateway{
		owner:      ownerID,
		bookmarks:  bookmarks,
		categories: categories,
		scraper:    scraper,
	}
}

func (g *StoreGateway) Owner() string { return g.owner }

func (g *StoreGateway) Snapshot(ctx context.Context) ([]*store.Bookmark, []*store.Category, error) {
	bookmarks, err := g.bookmarks.ListByOwner(ctx, g.owner)
	if err != nil {
		return nil, nil, err
	}
	categories, err := g.categories.ListByOwner(ctx, g.owner)
	if err != nil {
		return nil, nil, err
	}
	return bookmarks, categories, nil
}

func (g *StoreGateway) AddBookmark(ctx context.Context, title, url string) (*store.Bookmark, error) {
	b, err := g.bookmarks.Create(ctx, g.owner, title, url, nil)
	if err != nil {
		return nil, err
	}
	if g.scraper != nil {
		g.scraper.Enqueue(scrape.Job{OwnerID: g.owner, BookmarkID: b.ID, URL: b.URL})
	}
	return b, nil
}

func (g *StoreGateway) DeleteBookmark(ctx context.Context, id string) error {
	return g.bookmarks.Delete(ctx, g.owner, id)
}

func (g *StoreGateway) SetFavorite(ctx context.Context, id string, favorite bool) error {
	return g.bookmarks.SetFavorite(ctx, g.owner, id, favorite)
}

func (g *StoreGateway) SetBookmarkCategory(ctx context.Context, id string, categoryID *string) error {
	return g.bookmarks.SetCategory(ctx, g.owner, id, categoryID)
}

func (g *StoreGateway) CreateCategory(ctx context.Context, name string) (*store.Category, error) {
	return g.categories.Create(ctx, g.owner, name)
}

func (g *StoreGateway) DeleteCategory(ctx context.Context, id string) error {
	return g.categories.Delete(ctx, g.owner, id)
}
