package migrations

// Deleting a category must orphan its bookmarks, not delete them, so the
// category reference carries ON DELETE SET NULL.

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreateBookmarks, downCreateBookmarks)
}

func upCreateBookmarks(ctx context.Context, tx *sql.Tx) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS bookmarks (
    id          %[1]s PRIMARY KEY,
    owner_id    %[1]s NOT NULL,
    title       %[1]s NOT NULL,
    url         TEXT NOT NULL,
    description TEXT,
    is_favorite BOOLEAN NOT NULL DEFAULT FALSE,
    category_id %[1]s REFERENCES categories (id) ON DELETE SET NULL,
    created_at  %[2]s NOT NULL
)`, text(), timestamp())
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create bookmarks table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS bookmarks_owner_idx ON bookmarks (owner_id)`); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS bookmarks_owner_created_idx ON bookmarks (owner_id, created_at)`)
	return err
}

func downCreateBookmarks(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS bookmarks`)
	return err
}
