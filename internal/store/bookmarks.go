package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Bookmark represents a row in the bookmarks table. Description and
// CategoryID are nullable; a nil CategoryID means "unorganized".
type Bookmark struct {
	ID          string    `db:"id" json:"id"`
	OwnerID     string    `db:"owner_id" json:"-"`
	Title       string    `db:"title" json:"title"`
	URL         string    `db:"url" json:"url"`
	Description *string   `db:"description" json:"description,omitempty"`
	IsFavorite  bool      `db:"is_favorite" json:"is_favorite"`
	CategoryID  *string   `db:"category_id" json:"category_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// DisplayTitle returns the title, or the URL when the title is empty.
func (b *Bookmark) DisplayTitle() string {
	if b.Title != "" {
		return b.Title
	}
	return b.URL
}

// BookmarkStore is the sqlx-backed implementation of BookmarkStoreIface.
// Committed mutations are published to the change sink.
type BookmarkStore struct {
	db   *sqlx.DB
	sink ChangeSink
}

func NewBookmarkStore(db *sqlx.DB, sink ChangeSink) *BookmarkStore {
	return &BookmarkStore{db: db, sink: sink}
}

func (s *BookmarkStore) publish(ownerID string, ch Change) {
	if s.sink != nil {
		s.sink.Publish(ownerID, ch)
	}
}

// Create validates and inserts a new bookmark, returning the persisted record
// with the server-assigned id and created_at.
func (s *BookmarkStore) Create(ctx context.Context, ownerID, title, url string, description *string) (*Bookmark, error) {
	if ownerID == "" {
		return nil, ErrUnauthorized
	}
	if err := ValidateBookmark(title, url); err != nil {
		return nil, err
	}

	id := uuid.New().String()
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bookmarks (id, owner_id, title, url, description, is_favorite, category_id, created_at)
		VALUES (?, ?, ?, ?, ?, FALSE, NULL, ?)
	`, id, ownerID, title, url, description, now)
	if err != nil {
		return nil, fmt.Errorf("insert bookmark: %w", err)
	}

	b, err := s.GetByID(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	s.publish(ownerID, bookmarkInserted(b))
	return b, nil
}

// GetByID returns the bookmark matching id for this owner, or ErrNotFound.
func (s *BookmarkStore) GetByID(ctx context.Context, ownerID, id string) (*Bookmark, error) {
	var b Bookmark
	err := s.db.GetContext(ctx, &b, `SELECT * FROM bookmarks WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ListByOwner returns all of an owner's bookmarks, newest first. This is the
// snapshot source for live views.
func (s *BookmarkStore) ListByOwner(ctx context.Context, ownerID string) ([]*Bookmark, error) {
	bookmarks := []*Bookmark{}
	err := s.db.SelectContext(ctx, &bookmarks, `
		SELECT * FROM bookmarks WHERE owner_id = ? ORDER BY created_at DESC
	`, ownerID)
	if err != nil {
		return nil, err
	}
	return bookmarks, nil
}

// ListByCategory returns the owner's bookmarks in one category, newest first.
// A nil categoryID selects the unorganized bucket.
func (s *BookmarkStore) ListByCategory(ctx context.Context, ownerID string, categoryID *string) ([]*Bookmark, error) {
	bookmarks := []*Bookmark{}
	var err error
	if categoryID == nil {
		err = s.db.SelectContext(ctx, &bookmarks, `
			SELECT * FROM bookmarks WHERE owner_id = ? AND category_id IS NULL ORDER BY created_at DESC
		`, ownerID)
	} else {
		err = s.db.SelectContext(ctx, &bookmarks, `
			SELECT * FROM bookmarks WHERE owner_id = ? AND category_id = ? ORDER BY created_at DESC
		`, ownerID, *categoryID)
	}
	if err != nil {
		return nil, err
	}
	return bookmarks, nil
}

// Delete removes the bookmark. Deleting an id that is already gone is not an
// error; the caller cannot distinguish a repeated delete from a successful one.
func (s *BookmarkStore) Delete(ctx context.Context, ownerID, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM bookmarks WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete bookmark: %w", err)
	}
	s.publish(ownerID, bookmarkDeleted(id))
	return nil
}

// SetFavorite updates the favorite flag on the bookmark.
func (s *BookmarkStore) SetFavorite(ctx context.Context, ownerID, id string, favorite bool) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE bookmarks SET is_favorite = ? WHERE id = ? AND owner_id = ?
	`, favorite, id, ownerID)
	if err != nil {
		return fmt.Errorf("set favorite: %w", err)
	}
	return s.publishUpdate(ctx, ownerID, id)
}

// SetCategory assigns the bookmark to a category, or to the unorganized
// bucket when categoryID is nil.
func (s *BookmarkStore) SetCategory(ctx context.Context, ownerID, id string, categoryID *string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE bookmarks SET category_id = ? WHERE id = ? AND owner_id = ?
	`, categoryID, id, ownerID)
	if err != nil {
		return fmt.Errorf("set category: %w", err)
	}
	return s.publishUpdate(ctx, ownerID, id)
}

// SetDescription fills in the scraped description. It is only applied once:
// a bookmark that already has a description keeps it.
func (s *BookmarkStore) SetDescription(ctx context.Context, ownerID, id, description string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE bookmarks SET description = ? WHERE id = ? AND owner_id = ? AND description IS NULL
	`, description, id, ownerID)
	if err != nil {
		return fmt.Errorf("set description: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return err
	}
	return s.publishUpdate(ctx, ownerID, id)
}

// publishUpdate re-reads the row after an UPDATE and publishes the full
// record. An update that matched no row surfaces as ErrNotFound here.
func (s *BookmarkStore) publishUpdate(ctx context.Context, ownerID, id string) error {
	b, err := s.GetByID(ctx, ownerID, id)
	if err != nil {
		return err
	}
	s.publish(ownerID, bookmarkUpdated(b))
	return nil
}
