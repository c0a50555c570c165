package migrations

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreateUsers, downCreateUsers)
}

func upCreateUsers(ctx context.Context, tx *sql.Tx) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS users (
    id           %[1]s PRIMARY KEY,
    provider     %[1]s NOT NULL,
    subject      %[1]s NOT NULL,
    email        %[1]s NOT NULL,
    display_name %[1]s NOT NULL DEFAULT '',
    created_at   %[2]s NOT NULL,
    updated_at   %[2]s NOT NULL,
    UNIQUE (provider, subject)
)`, text(), timestamp())
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create users table: %w", err)
	}
	return nil
}

func downCreateUsers(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS users`)
	return err
}
