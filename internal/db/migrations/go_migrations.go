// Package migrations contains dialect-aware Go database migrations that cannot
// be expressed as a single cross-database SQL statement.
package migrations

// dialect is set by the parent db package before migrations are applied.
var dialect string

// SetDialect configures the SQL dialect for Go migrations.
// Must be called before goose.Up. Valid values: "sqlite3", "postgres", "mysql".
func SetDialect(d string) {
	dialect = d
}

// text returns the column type for arbitrary-length strings in the active dialect.
func text() string {
	if dialect == "mysql" {
		return "VARCHAR(255)"
	}
	return "TEXT"
}

// timestamp returns the column type for UTC timestamps in the active dialect.
func timestamp() string {
	switch dialect {
	case "postgres":
		return "TIMESTAMPTZ"
	case "mysql":
		return "TIMESTAMP(6)"
	default: // sqlite3
		return "TIMESTAMP"
	}
}
