//go:build !sqlite_fts5

package store

import "database/sql"

func initFTS(_ *sql.DB) error {
	// FTS5 not available; search uses a LIKE fallback over the base table.
	return nil
}

func ftsUpsert(_ *sql.Tx, _, _, _ string, _ []string) error {
	// Searchable fields already live in the resources table; nothing extra to do.
	return nil
}

func ftsDelete(_ *sql.Tx, _ string) {}

// matchClause returns a LIKE-based WHERE fragment (fallback when FTS5 is
// not compiled in).
func matchClause(query string) (string, []any) {
	like := "%" + query + "%"
	return `(name LIKE ? OR description LIKE ? OR tags LIKE ?)`, []any{like, like, like}
}
