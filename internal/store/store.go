// Package store implements SQLite persistence for blog content: posts,
// categories, tags, media records and users.
//
// All queries are context-aware and use database/sql with the pure-Go
// modernc.org/sqlite driver, so the binary needs no cgo.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	apperrors "github.com/inkpress-dev/inkpress/internal/errors"
)

// ErrNotFound is returned when a requested record doesn't exist.
var ErrNotFound = errors.New("store: not found")

// ErrDuplicateSlug is returned when a post slug is already taken.
var ErrDuplicateSlug = errors.New("store: duplicate slug")

// Store provides access to the content database. Safe for concurrent use;
// database/sql pools connections internally.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path.
func Open(path string) (*Store, error) {
	// busy_timeout covers concurrent admin writes; WAL keeps readers
	// unblocked during them.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, apperrors.New("E100").Wrap(err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, apperrors.New("E100").Wrap(err)
	}
	return &Store{db: db}, nil
}

// OpenMemory opens a private in-memory database. Intended for tests.
func OpenMemory() (*Store, error) {
	// A uniquely named shared-cache memory database keeps the pool's
	// connections on one database without colliding across tests.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, apperrors.New("E100").Wrap(err)
	}
	// The database disappears when the last connection closes; pin one.
	db.SetMaxIdleConns(1)
	return &Store{db: db}, nil
}

// DB exposes the underlying handle for components that share the
// database (sessions, analytics).
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// schema is applied by InitSchema. Statements are idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS posts (
		id             TEXT PRIMARY KEY,
		slug           TEXT NOT NULL UNIQUE,
		title          TEXT NOT NULL,
		summary        TEXT NOT NULL DEFAULT '',
		body           TEXT NOT NULL DEFAULT '',
		format         TEXT NOT NULL DEFAULT 'markdown',
		status         TEXT NOT NULL DEFAULT 'draft',
		category       TEXT NOT NULL DEFAULT '',
		cover_media_id TEXT NOT NULL DEFAULT '',
		author_id      TEXT NOT NULL DEFAULT '',
		created_at     INTEGER NOT NULL,
		updated_at     INTEGER NOT NULL,
		published_at   INTEGER
	)`,
	`CREATE INDEX IF NOT EXISTS idx_posts_status_published ON posts(status, published_at)`,
	`CREATE INDEX IF NOT EXISTS idx_posts_category ON posts(category)`,
	`CREATE TABLE IF NOT EXISTS post_tags (
		post_id TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
		tag     TEXT NOT NULL,
		PRIMARY KEY (post_id, tag)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_post_tags_tag ON post_tags(tag)`,
	`CREATE TABLE IF NOT EXISTS media (
		id           TEXT PRIMARY KEY,
		filename     TEXT NOT NULL,
		content_type TEXT NOT NULL,
		size         INTEGER NOT NULL,
		storage_key  TEXT NOT NULL,
		created_at   INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		email         TEXT NOT NULL UNIQUE,
		name          TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL DEFAULT 'editor',
		created_at    INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id         TEXT PRIMARY KEY,
		data       BLOB NOT NULL,
		expires_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at)`,
	`CREATE TABLE IF NOT EXISTS page_views (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		path       TEXT NOT NULL,
		post_id    TEXT NOT NULL DEFAULT '',
		referrer   TEXT NOT NULL DEFAULT '',
		client_ip  TEXT NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT '',
		viewed_at  INTEGER NOT NULL,
		day        TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_page_views_day ON page_views(day)`,
	`CREATE INDEX IF NOT EXISTS idx_page_views_post ON page_views(post_id)`,
}

// InitSchema creates all tables and indexes if they don't exist.
func (s *Store) InitSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return apperrors.New("E101").Wrap(err)
		}
	}
	return nil
}
