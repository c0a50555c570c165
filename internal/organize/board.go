// Package organize implements the drag-and-drop protocol that maps a dragged
// bookmark and a drop target onto a category assignment.
package organize

import (
	"strings"
	gosync "sync"

	"github.com/curioapp/curio/internal/store"
	"github.com/curioapp/curio/internal/sync"
)

// categoryPrefix namespaces category drop targets so a container id can never
// collide with a bookmark id.
const categoryPrefix = "cat-"

// UnorganizedContainer is the drop target id of the unorganized bucket.
const UnorganizedContainer = "unorganized"

// Outcome is the terminal result of one drag gesture.
type Outcome int

const (
	// DropCancelled: no drop target, an unknown container, or a container
	// that disappeared mid-drag. No mutation occurred.
	DropCancelled Outcome = iota

	// DropNoOp: the bookmark was dropped onto its current container.
	// Required short-circuit — no mutation, no network call.
	DropNoOp

	// DropReassigned: an optimistic category assignment was issued. It
	// commits or rolls back asynchronously in the view.
	DropReassigned
)

// Board tracks one drag gesture over a live view. The view applies the
// optimistic assignment and its rollback; the board only resolves targets.
type Board struct {
	view *sync.View

	mu       gosync.Mutex
	dragging string // bookmark id, "" when idle
}

func NewBoard(view *sync.View) *Board {
	return &Board{view: view}
}

// DragStart enters the dragging state for the given bookmark. Starting a new
// drag while one is active abandons the first — only one gesture exists at a
// time.
func (b *Board) DragStart(bookmarkID string) {
	b.mu.Lock()
	b.dragging = bookmarkID
	b.mu.Unlock()
}

// Dragging returns the active drag source id, or "" when idle.
func (b *Board) Dragging() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dragging
}

// DragCancel exits the drag without any mutation.
func (b *Board) DragCancel() {
	b.mu.Lock()
	b.dragging = ""
	b.mu.Unlock()
}

// DragEnd resolves the drop target and, when it names a different container
// than the bookmark currently occupies, issues the optimistic reassignment.
// An empty overID means the drop landed outside every container.
func (b *Board) DragEnd(overID string) Outcome {
	b.mu.Lock()
	sourceID := b.dragging
	b.dragging = ""
	b.mu.Unlock()

	if sourceID == "" || overID == "" {
		return DropCancelled
	}

	state := b.view.State()

	source := findBookmark(state.Bookmarks, sourceID)
	if source == nil {
		// Deleted mid-drag.
		return DropCancelled
	}

	target, ok := resolveContainer(overID, state)
	if !ok {
		return DropCancelled
	}

	if sameCategory(source.CategoryID, target) {
		return DropNoOp
	}

	b.view.AssignCategory(sourceID, target)
	return DropReassigned
}

// resolveContainer maps a drop target id to a category id (nil for the
// unorganized bucket). A bookmark id resolves to the container that bookmark
// occupies. A category that no longer exists resolves to nothing: the column
// disappeared mid-drag.
func resolveContainer(overID string, state sync.State) (*string, bool) {
	if overID == UnorganizedContainer {
		return nil, true
	}
	if strings.HasPrefix(overID, categoryPrefix) {
		id := strings.TrimPrefix(overID, categoryPrefix)
		for _, c := range state.Categories {
			if c.ID == id {
				return &id, true
			}
		}
		return nil, false
	}
	if over := findBookmark(state.Bookmarks, overID); over != nil {
		if over.CategoryID == nil {
			return nil, true
		}
		for _, c := range state.Categories {
			if c.ID == *over.CategoryID {
				id := *over.CategoryID
				return &id, true
			}
		}
		// Orphaned reference; the row renders in the unorganized bucket.
		return nil, true
	}
	return nil, false
}

func findBookmark(bookmarks []*store.Bookmark, id string) *store.Bookmark {
	for _, b := range bookmarks {
		if b.ID == id {
			return b
		}
	}
	return nil
}

func sameCategory(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
