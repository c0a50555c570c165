package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Category represents a row in the categories table. Color is not stored;
// live views derive it from the category's position (see organize.ColorFor).
type Category struct {
	ID        string    `db:"id" json:"id"`
	OwnerID   string    `db:"owner_id" json:"-"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// CategoryStore is the sqlx-backed implementation of CategoryStoreIface.
type CategoryStore struct {
	db   *sqlx.DB
	sink ChangeSink
}

func NewCategoryStore(db *sqlx.DB, sink ChangeSink) *CategoryStore {
	return &CategoryStore{db: db, sink: sink}
}

func (s *CategoryStore) publish(ownerID string, ch Change) {
	if s.sink != nil {
		s.sink.Publish(ownerID, ch)
	}
}

// Create validates and inserts a new category.
func (s *CategoryStore) Create(ctx context.Context, ownerID, name string) (*Category, error) {
	if ownerID == "" {
		return nil, ErrUnauthorized
	}
	if err := ValidateCategoryName(name); err != nil {
		return nil, err
	}

	id := uuid.New().String()
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, owner_id, name, created_at) VALUES (?, ?, ?, ?)
	`, id, ownerID, name, now)
	if err != nil {
		return nil, fmt.Errorf("insert category: %w", err)
	}

	c, err := s.GetByID(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	s.publish(ownerID, categoryInserted(c))
	return c, nil
}

// GetByID returns the category matching id for this owner, or ErrNotFound.
func (s *CategoryStore) GetByID(ctx context.Context, ownerID, id string) (*Category, error) {
	var c Category
	err := s.db.GetContext(ctx, &c, `SELECT * FROM categories WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListByOwner returns the owner's categories, oldest first, so positional
// colors stay stable as new categories are appended.
func (s *CategoryStore) ListByOwner(ctx context.Context, ownerID string) ([]*Category, error) {
	categories := []*Category{}
	err := s.db.SelectContext(ctx, &categories, `
		SELECT * FROM categories WHERE owner_id = ? ORDER BY created_at ASC
	`, ownerID)
	if err != nil {
		return nil, err
	}
	return categories, nil
}

// Delete removes the category. Its bookmarks are orphaned to the unorganized
// bucket by the ON DELETE SET NULL constraint; an Updated event is published
// for each of them so live views move the rows without waiting for a snapshot.
func (s *CategoryStore) Delete(ctx context.Context, ownerID, id string) error {
	var orphaned []string
	err := s.db.SelectContext(ctx, &orphaned, `
		SELECT id FROM bookmarks WHERE owner_id = ? AND category_id = ?
	`, ownerID, id)
	if err != nil {
		return fmt.Errorf("list dependent bookmarks: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}

	s.publish(ownerID, categoryDeleted(id))
	for _, bid := range orphaned {
		var b Bookmark
		if err := s.db.GetContext(ctx, &b, `SELECT * FROM bookmarks WHERE id = ? AND owner_id = ?`, bid, ownerID); err != nil {
			continue
		}
		s.publish(ownerID, bookmarkUpdated(&b))
	}
	return nil
}
