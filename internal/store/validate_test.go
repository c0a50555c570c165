package store_test

import (
	"errors"
	"testing"

	"github.com/curioapp/curio/internal/store"
)

func TestValidateBookmark(t *testing.T) {
	cases := []struct {
		name  string
		title string
		url   string
		ok    bool
	}{
		{"valid", "Example", "https://example.com", true},
		{"valid with path", "Example", "https://example.com/a/b?c=d", true},
		{"empty title", "", "https://example.com", false},
		{"whitespace title", "   ", "https://example.com", false},
		{"empty url", "Example", "", false},
		{"relative url", "Example", "/foo/bar", false},
		{"scheme only", "Example", "https://", false},
		{"not a url", "Example", "://bad", false},
	}

	for _, tc := range cases {
		err := store.ValidateBookmark(tc.title, tc.url)
		if tc.ok && err != nil {
			t.Errorf("%s: unexpected error %v", tc.name, err)
		}
		if !tc.ok && !errors.Is(err, store.ErrValidation) {
			t.Errorf("%s: err = %v, want ErrValidation", tc.name, err)
		}
	}
}

func TestValidateCategoryName(t *testing.T) {
	if err := store.ValidateCategoryName("Work"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := store.ValidateCategoryName("  "); !errors.Is(err, store.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestChangeValid(t *testing.T) {
	b := &store.Bookmark{ID: "b1"}
	c := &store.Category{ID: "c1"}

	valid := []store.Change{
		{Kind: store.Resync},
		{Kind: store.Inserted, Table: store.TableBookmarks, Bookmark: b},
		{Kind: store.Updated, Table: store.TableBookmarks, Bookmark: b},
		{Kind: store.Deleted, Table: store.TableBookmarks, ID: "b1"},
		{Kind: store.Inserted, Table: store.TableCategories, Category: c},
		{Kind: store.Deleted, Table: store.TableCategories, ID: "c1"},
	}
	for i, ch := range valid {
		if !ch.Valid() {
			t.Errorf("valid[%d] reported invalid: %+v", i, ch)
		}
	}

	invalid := []store.Change{
		{},
		{Kind: store.Inserted, Table: store.TableBookmarks},
		{Kind: store.Updated, Table: store.TableCategories},
		{Kind: store.Deleted, Table: store.TableBookmarks},
		{Kind: store.Deleted, Table: "links", ID: "x"},
		{Kind: "reordered", Table: store.TableBookmarks, Bookmark: b},
	}
	for i, ch := range invalid {
		if ch.Valid() {
			t.Errorf("invalid[%d] reported valid: %+v", i, ch)
		}
	}
}
