package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Media is a record of an uploaded media object. The bytes live in the
// media store under StorageKey; this row is the catalog entry.
type Media struct {
	ID          string
	Filename    string
	ContentType string
	Size        int64
	StorageKey  string
	CreatedAt   time.Time
}

// CreateMedia inserts a media record. A missing ID is generated.
func (s *Store) CreateMedia(ctx context.Context, m *Media) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.CreatedAt = time.Now()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO media (id, filename, content_type, size, storage_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.Filename, m.ContentType, m.Size, m.StorageKey, m.CreatedAt.Unix())
	return err
}

// MediaByID loads one media record.
func (s *Store) MediaByID(ctx context.Context, id string) (*Media, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, filename, content_type, size, storage_key, created_at
		FROM media WHERE id = ?`, id)

	var m Media
	var createdAt int64
	if err := row.Scan(&m.ID, &m.Filename, &m.ContentType, &m.Size, &m.StorageKey, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	m.CreatedAt = time.Unix(createdAt, 0)
	return &m, nil
}

// ListMedia returns media records, newest first.
func (s *Store) ListMedia(ctx context.Context, limit, offset int) ([]*Media, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, filename, content_type, size, storage_key, created_at
		FROM media ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Media
	for rows.Next() {
		var m Media
		var createdAt int64
		if err := rows.Scan(&m.ID, &m.Filename, &m.ContentType, &m.Size, &m.StorageKey, &createdAt); err != nil {
			return nil, err
		}
		m.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, &m)
	}
	return out, rows.Err()
}

// DeleteMedia removes a media record.
func (s *Store) DeleteMedia(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM media WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
