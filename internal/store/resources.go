package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/meridianhq/meridian/internal/apperr"
	"github.com/meridianhq/meridian/internal/models"
)

// Filter narrows list and search results.
type Filter struct {
	Status string
	Tag    string
}

// Facets holds value→count distributions over a matched result set.
type Facets struct {
	Status map[string]int
	Tags   map[string]int
}

const resourceColumns = `id, name, description, status, tags, metadata, created_at, updated_at`

// InsertResource stores a new resource and its FTS entry within a transaction.
func (s *Store) InsertResource(r *models.Resource) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	tagsJSON, _ := json.Marshal(nonNil(r.Tags))
	metaJSON, err := json.Marshal(nonNilMap(r.Metadata))
	if err != nil {
		return fmt.Errorf("store: marshal metadata: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO resources (id, name, description, status, tags, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.Name, r.Description, r.Status, string(tagsJSON), string(metaJSON), r.CreatedAt.UTC(), r.UpdatedAt.UTC())
	if err != nil {
		var sqlErr sqlite3.Error
		if errors.As(err, &sqlErr) && sqlErr.Code == sqlite3.ErrConstraint {
			return apperr.ErrConflict
		}
		return fmt.Errorf("store: insert resource: %w", err)
	}

	if err := ftsUpsert(tx, r.ID, r.Name, r.Description, r.Tags); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdateResource replaces the mutable columns of an existing resource.
func (s *Store) UpdateResource(r *models.Resource) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	tagsJSON, _ := json.Marshal(nonNil(r.Tags))
	metaJSON, err := json.Marshal(nonNilMap(r.Metadata))
	if err != nil {
		return fmt.Errorf("store: marshal metadata: %w", err)
	}

	res, err := tx.Exec(`
		UPDATE resources
		SET name = ?, description = ?, status = ?, tags = ?, metadata = ?, updated_at = ?
		WHERE id = ?
	`, r.Name, r.Description, r.Status, string(tagsJSON), string(metaJSON), r.UpdatedAt.UTC(), r.ID)
	if err != nil {
		return fmt.Errorf("store: update resource: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}

	if err := ftsUpsert(tx, r.ID, r.Name, r.Description, r.Tags); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteResource removes a resource and its FTS entry.
func (s *Store) DeleteResource(id string) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, id)
	res, err := tx.Exec(`DELETE FROM resources WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete resource: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return tx.Commit()
}

// GetResource returns a single resource by id.
func (s *Store) GetResource(id string) (*models.Resource, error) {
	row := s.conn.QueryRow(`SELECT `+resourceColumns+` FROM resources WHERE id = ?`, id)
	r, err := scanResource(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("store: get resource: %w", err)
	}
	return r, nil
}

// ListResources returns a filtered, sorted page of resources plus the total
// match count. orderBy must be a vetted column name.
func (s *Store) ListResources(f Filter, orderBy string, desc bool, limit, offset int) ([]models.Resource, int, error) {
	where, args := filterClause(f)

	var total int
	if err := s.conn.QueryRow(`SELECT COUNT(*) FROM resources`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("store: count resources: %w", err)
	}

	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	switch orderBy {
	case "name", "created_at", "updated_at":
	default:
		orderBy = "updated_at"
	}

	query := fmt.Sprintf(`SELECT %s FROM resources%s ORDER BY %s %s LIMIT ? OFFSET ?`,
		resourceColumns, where, orderBy, dir)
	rows, err := s.conn.Query(query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("store: list resources: %w", err)
	}
	defer rows.Close()

	out, err := collectResources(rows)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// SearchResources runs a full-text query (FTS5 or LIKE fallback) with
// filters and returns a page of matches, the total match count, and facet
// distributions computed over the whole matched set.
func (s *Store) SearchResources(query string, f Filter, limit, offset int) ([]models.Resource, int, Facets, error) {
	facets := Facets{Status: map[string]int{}, Tags: map[string]int{}}

	match, matchArgs := matchClause(query)
	where, args := filterClause(f)
	if where == "" {
		where = " WHERE " + match
	} else {
		where += " AND " + match
	}
	args = append(args, matchArgs...)

	// Aggregate the full matched set for total and facets.
	aggRows, err := s.conn.Query(`SELECT status, tags FROM resources`+where, args...)
	if err != nil {
		return nil, 0, facets, fmt.Errorf("store: search aggregate: %w", err)
	}
	defer aggRows.Close()

	total := 0
	for aggRows.Next() {
		var status, tagsJSON string
		if err := aggRows.Scan(&status, &tagsJSON); err != nil {
			return nil, 0, facets, err
		}
		total++
		facets.Status[status]++
		var tags []string
		_ = json.Unmarshal([]byte(tagsJSON), &tags)
		for _, t := range tags {
			facets.Tags[t]++
		}
	}
	if err := aggRows.Err(); err != nil {
		return nil, 0, facets, err
	}

	query2 := fmt.Sprintf(`SELECT %s FROM resources%s ORDER BY updated_at DESC LIMIT ? OFFSET ?`,
		resourceColumns, where)
	rows, err := s.conn.Query(query2, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, facets, fmt.Errorf("store: search: %w", err)
	}
	defer rows.Close()

	out, err := collectResources(rows)
	if err != nil {
		return nil, 0, facets, err
	}
	return out, total, facets, nil
}

// Summary computes live analytics aggregates over the resource table.
func (s *Store) Summary() (*models.Summary, error) {
	sum := &models.Summary{
		ByStatus:  map[string]int{},
		TagCounts: map[string]int{},
	}

	rows, err := s.conn.Query(`SELECT status, tags, updated_at FROM resources`)
	if err != nil {
		return nil, fmt.Errorf("store: summary: %w", err)
	}
	defer rows.Close()

	cutoff := time.Now().UTC().Add(-24 * time.Hour)
	for rows.Next() {
		var status, tagsJSON string
		var updatedAt time.Time
		if err := rows.Scan(&status, &tagsJSON, &updatedAt); err != nil {
			return nil, err
		}
		sum.Total++
		sum.ByStatus[status]++
		if updatedAt.After(cutoff) {
			sum.UpdatedLast24h++
		}
		var tags []string
		_ = json.Unmarshal([]byte(tagsJSON), &tags)
		for _, t := range tags {
			sum.TagCounts[t]++
		}
	}
	return sum, rows.Err()
}

func filterClause(f Filter) (string, []any) {
	var conds []string
	var args []any
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, f.Status)
	}
	if f.Tag != "" {
		// Tags are stored as a JSON array; match the quoted element.
		conds = append(conds, "tags LIKE ?")
		args = append(args, `%"`+f.Tag+`"%`)
	}
	if len(conds) == 0 {
		return "", nil
	}
	where := " WHERE " + conds[0]
	for _, c := range conds[1:] {
		where += " AND " + c
	}
	return where, args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResource(row rowScanner) (*models.Resource, error) {
	var r models.Resource
	var tagsJSON, metaJSON string
	err := row.Scan(&r.ID, &r.Name, &r.Description, &r.Status, &tagsJSON, &metaJSON, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tagsJSON), &r.Tags); err != nil {
		return nil, fmt.Errorf("store: decode tags: %w", err)
	}
	if err := json.Unmarshal([]byte(metaJSON), &r.Metadata); err != nil {
		return nil, fmt.Errorf("store: decode metadata: %w", err)
	}
	r.Tags = nonNil(r.Tags)
	r.Metadata = nonNilMap(r.Metadata)
	return &r, nil
}

func collectResources(rows *sql.Rows) ([]models.Resource, error) {
	out := []models.Resource{}
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
