package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a requested entity does not exist or is
	// not owned by the caller.
	ErrNotFound = errors.New("not found")

	// ErrValidation is returned when a required field is missing or malformed.
	// Validation failures never reach the database.
	ErrValidation = errors.New("validation failed")

	// ErrUnauthorized is returned when an operation is attempted without an
	// owner identity.
	ErrUnauthorized = errors.New("unauthorized")
)

// BookmarkStoreIface exposes all bookmark data operations. Every operation is
// scoped to an owner; no caller may see or mutate another owner's rows.
type BookmarkStoreIface interface {
	Create(ctx context.Context, ownerID, title, url string, description *string) (*Bookmark, error)
	GetByID(ctx context.Context, ownerID, id string) (*Bookmark, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*Bookmark, error)
	ListByCategory(ctx context.Context, ownerID string, categoryID *string) ([]*Bookmark, error)
	Delete(ctx context.Context, ownerID, id string) error
	SetFavorite(ctx context.Context, ownerID, id string, favorite bool) error
	SetCategory(ctx context.Context, ownerID, id string, categoryID *string) error
	SetDescription(ctx context.Context, ownerID, id, description string) error
}

// CategoryStoreIface exposes category operations, owner-scoped like bookmarks.
type CategoryStoreIface interface {
	Create(ctx context.Context, ownerID, name string) (*Category, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*Category, error)
	Delete(ctx context.Context, ownerID, id string) error
}

// ChangeSink receives a change event after each committed mutation. The
// stream hub implements it; a nil sink disables publishing.
type ChangeSink interface {
	Publish(ownerID string, ch Change)
}
