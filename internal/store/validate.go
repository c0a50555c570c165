package store

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidateBookmark checks the user-supplied fields of a new bookmark.
// Returns an error wrapping ErrValidation; no database access.
func ValidateBookmark(title, rawURL string) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if strings.TrimSpace(rawURL) == "" {
		return fmt.Errorf("%w: url is required", ErrValidation)
	}
	u, err := url.Parse(rawURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("%w: url must be absolute", ErrValidation)
	}
	return nil
}

// ValidateCategoryName checks a new category's display name.
func ValidateCategoryName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	return nil
}
