//go:build sqlite_fts5

package store

import (
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS resources_fts USING fts5(
			id UNINDEXED,
			name,
			description,
			tags,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, id, name, description string, tags []string) error {
	_, _ = tx.Exec(`DELETE FROM resources_fts WHERE id = ?`, id)
	_, err := tx.Exec(`INSERT INTO resources_fts (id, name, description, tags) VALUES (?, ?, ?, ?)`,
		id, name, description, strings.Join(tags, " "))
	if err != nil {
		return fmt.Errorf("store: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, id string) {
	_, _ = tx.Exec(`DELETE FROM resources_fts WHERE id = ?`, id)
}

// matchClause returns a WHERE fragment restricting rows to FTS5 matches.
func matchClause(query string) (string, []any) {
	return `id IN (SELECT id FROM resources_fts WHERE resources_fts MATCH ?)`, []any{query}
}
