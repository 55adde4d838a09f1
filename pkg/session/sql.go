package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// SQLStore persists sessions in the content database's sessions table:
//
//	CREATE TABLE sessions (
//	    id         TEXT PRIMARY KEY,
//	    data       BLOB NOT NULL,
//	    expires_at INTEGER NOT NULL
//	);
//
// It works with any database/sql driver using ? placeholders (SQLite,
// MySQL).
type SQLStore struct {
	db              *sql.DB
	done            chan struct{}
	cleanupInterval time.Duration
}

// SQLStoreOption configures SQLStore behavior.
type SQLStoreOption func(*SQLStore)

// WithSQLCleanupInterval sets how often expired rows are swept.
// Default: 5 minutes.
func WithSQLCleanupInterval(d time.Duration) SQLStoreOption {
	return func(s *SQLStore) {
		s.cleanupInterval = d
	}
}

// NewSQLStore creates a SQL-backed session store on an existing database
// handle. The store does not own the handle; Close stops the sweeper but
// leaves the database open.
func NewSQLStore(db *sql.DB, opts ...SQLStoreOption) *SQLStore {
	s := &SQLStore{
		db:              db,
		done:            make(chan struct{}),
		cleanupInterval: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.cleanupLoop()
	return s
}

// Save persists the session.
func (s *SQLStore) Save(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, data, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, expires_at = excluded.expires_at`,
		sess.ID, data, sess.ExpiresAt.Unix())
	return err
}

// Load retrieves a session if it exists and hasn't expired.
func (s *SQLStore) Load(ctx context.Context, id string) (*Session, error) {
	var data []byte
	var expiresAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT data, expires_at FROM sessions WHERE id = ?`, id).Scan(&data, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if time.Now().Unix() >= expiresAt {
		return nil, nil
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, err
	}
	// expires_at column wins over the serialized copy after Touch.
	sess.ExpiresAt = time.Unix(expiresAt, 0)
	return &sess, nil
}

// Delete removes a session.
func (s *SQLStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	return err
}

// Touch extends a session's expiry without rewriting its data.
func (s *SQLStore) Touch(ctx context.Context, id string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET expires_at = ? WHERE id = ?`, expiresAt.Unix(), id)
	return err
}

// Close stops the background sweeper.
func (s *SQLStore) Close() error {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	return nil
}

func (s *SQLStore) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < ?`, time.Now().Unix())
			cancel()
		}
	}
}
