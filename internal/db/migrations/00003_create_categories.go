package migrations

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreateCategories, downCreateCategories)
}

func upCreateCategories(ctx context.Context, tx *sql.Tx) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS categories (
    id         %[1]s PRIMARY KEY,
    owner_id   %[1]s NOT NULL,
    name       %[1]s NOT NULL,
    created_at %[2]s NOT NULL
)`, text(), timestamp())
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create categories table: %w", err)
	}
	_, err := tx.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS categories_owner_idx ON categories (owner_id)`)
	return err
}

func downCreateCategories(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS categories`)
	return err
}
