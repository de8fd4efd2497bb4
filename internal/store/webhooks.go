package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/meridianhq/meridian/internal/apperr"
	"github.com/meridianhq/meridian/internal/models"
)

// InsertWebhook stores a new webhook registration.
func (s *Store) InsertWebhook(w *models.Webhook) error {
	eventsJSON, _ := json.Marshal(nonNil(w.Events))
	_, err := s.conn.Exec(`
		INSERT INTO webhooks (id, url, events, secret, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, w.ID, w.URL, string(eventsJSON), w.Secret, w.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("store: insert webhook: %w", err)
	}
	return nil
}

// GetWebhook returns a single registration by id, secret included.
func (s *Store) GetWebhook(id string) (*models.Webhook, error) {
	row := s.conn.QueryRow(`SELECT id, url, events, secret, created_at FROM webhooks WHERE id = ?`, id)
	w, err := scanWebhook(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("store: get webhook: %w", err)
	}
	return w, nil
}

// ListWebhooks returns every registration, secrets included; callers that
// serve registrations over the API must not expose the secret.
func (s *Store) ListWebhooks() ([]models.Webhook, error) {
	rows, err := s.conn.Query(`SELECT id, url, events, secret, created_at FROM webhooks ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("store: list webhooks: %w", err)
	}
	defer rows.Close()

	out := []models.Webhook{}
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}

// DeleteWebhook removes a registration.
func (s *Store) DeleteWebhook(id string) error {
	res, err := s.conn.Exec(`DELETE FROM webhooks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete webhook: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func scanWebhook(row rowScanner) (*models.Webhook, error) {
	var w models.Webhook
	var eventsJSON string
	if err := row.Scan(&w.ID, &w.URL, &eventsJSON, &w.Secret, &w.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(eventsJSON), &w.Events); err != nil {
		return nil, fmt.Errorf("store: decode events: %w", err)
	}
	w.Events = nonNil(w.Events)
	return &w, nil
}
