package store

// ChangeKind tags a change event.
type ChangeKind string

const (
	Inserted ChangeKind = "inserted"
	Updated  ChangeKind = "updated"
	Deleted  ChangeKind = "deleted"

	// Resync carries no entity; it asks live views to refetch a snapshot.
	Resync ChangeKind = "resync"
)

// ChangeTable identifies which entity kind a change refers to.
type ChangeTable string

const (
	TableBookmarks  ChangeTable = "bookmarks"
	TableCategories ChangeTable = "categories"
)

// Change is the tagged union delivered on the change stream. Inserted and
// Updated carry the full entity; Deleted carries only the id.
type Change struct {
	Kind     ChangeKind  `json:"kind"`
	Table    ChangeTable `json:"table"`
	ID       string      `json:"id,omitempty"`
	Bookmark *Bookmark   `json:"bookmark,omitempty"`
	Category *Category   `json:"category,omitempty"`
}

// Valid reports whether the event payload matches its tag. Events arriving
// from outside the process (the Redis bridge) are checked before delivery so
// downstream code never sees a half-formed union.
func (c Change) Valid() bool {
	switch c.Kind {
	case Resync:
		return true
	case Deleted:
		return c.ID != "" && (c.Table == TableBookmarks || c.Table == TableCategories)
	case Inserted, Updated:
		switch c.Table {
		case TableBookmarks:
			return c.Bookmark != nil && c.Bookmark.ID != ""
		case TableCategories:
			return c.Category != nil && c.Category.ID != ""
		}
	}
	return false
}

func bookmarkInserted(b *Bookmark) Change {
	return Change{Kind: Inserted, Table: TableBookmarks, ID: b.ID, Bookmark: b}
}

func bookmarkUpdated(b *Bookmark) Change {
	return Change{Kind: Updated, Table: TableBookmarks, ID: b.ID, Bookmark: b}
}

func bookmarkDeleted(id string) Change {
	return Change{Kind: Deleted, Table: TableBookmarks, ID: id}
}

func categoryInserted(c *Category) Change {
	return Change{Kind: Inserted, Table: TableCategories, ID: c.ID, Category: c}
}

func categoryDeleted(id string) Change {
	return Change{Kind: Deleted, Table: TableCategories, ID: id}
}
