package store

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Post status values.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)

// Post content formats. The render pipeline dispatches on this value.
const (
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

// Post is a blog post in any status.
type Post struct {
	ID           string
	Slug         string
	Title        string
	Summary      string
	Body         string
	Format       string
	Status       string
	Category     string
	Tags         []string
	CoverMediaID string
	AuthorID     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	PublishedAt  *time.Time
}

// ListOptions filters and paginates post listings.
type ListOptions struct {
	// Status filters by post status; empty means all.
	Status string

	// Category filters by category slug; empty means all.
	Category string

	// Tag filters to posts carrying the tag; empty means all.
	Tag string

	// Limit caps the number of rows; 0 means a default of 20.
	Limit int

	// Offset skips rows for pagination.
	Offset int
}

// CreatePost inserts a post. A missing ID is generated; timestamps are
// set to now.
func (s *Store) CreatePost(ctx context.Context, p *Post) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	var publishedAt any
	if p.PublishedAt != nil {
		publishedAt = p.PublishedAt.Unix()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO posts (id, slug, title, summary, body, format, status, category,
			cover_media_id, author_id, created_at, updated_at, published_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Slug, p.Title, p.Summary, p.Body, p.Format, p.Status, p.Category,
		p.CoverMediaID, p.AuthorID, now.Unix(), now.Unix(), publishedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateSlug
		}
		return err
	}
	return s.replaceTags(ctx, p.ID, p.Tags)
}

// UpdatePost rewrites a post's editable fields and tags.
func (s *Store) UpdatePost(ctx context.Context, p *Post) error {
	p.UpdatedAt = time.Now()

	var publishedAt any
	if p.PublishedAt != nil {
		publishedAt = p.PublishedAt.Unix()
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE posts SET slug = ?, title = ?, summary = ?, body = ?, format = ?,
			status = ?, category = ?, cover_media_id = ?, updated_at = ?, published_at = ?
		WHERE id = ?`,
		p.Slug, p.Title, p.Summary, p.Body, p.Format,
		p.Status, p.Category, p.CoverMediaID, p.UpdatedAt.Unix(), publishedAt, p.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateSlug
		}
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return s.replaceTags(ctx, p.ID, p.Tags)
}

// DeletePost removes a post and its tags.
func (s *Store) DeletePost(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// PostByID loads one post by ID.
func (s *Store) PostByID(ctx context.Context, id string) (*Post, error) {
	return s.onePost(ctx, `WHERE id = ?`, id)
}

// PostBySlug loads one post by slug.
func (s *Store) PostBySlug(ctx context.Context, slug string) (*Post, error) {
	return s.onePost(ctx, `WHERE slug = ?`, slug)
}

// Publish transitions a post to published, stamping published_at on the
// first publish only.
func (s *Store) Publish(ctx context.Context, id string) error {
	now := time.Now().Unix()
	res, err := s.db.ExecContext(ctx, `
		UPDATE posts SET status = ?, updated_at = ?,
			published_at = COALESCE(published_at, ?)
		WHERE id = ?`,
		StatusPublished, now, now, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Unpublish returns a post to draft. published_at is retained so a
// re-publish keeps the original date.
func (s *Store) Unpublish(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE posts SET status = ?, updated_at = ? WHERE id = ?`,
		StatusDraft, time.Now().Unix(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListPosts returns posts matching opts, newest first (by published_at
// for published posts, falling back to updated_at).
func (s *Store) ListPosts(ctx context.Context, opts ListOptions) ([]*Post, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}

	var where []string
	var args []any
	if opts.Status != "" {
		where = append(where, "p.status = ?")
		args = append(args, opts.Status)
	}
	if opts.Category != "" {
		where = append(where, "p.category = ?")
		args = append(args, opts.Category)
	}
	if opts.Tag != "" {
		where = append(where, "p.id IN (SELECT post_id FROM post_tags WHERE tag = ?)")
		args = append(args, opts.Tag)
	}

	query := `SELECT p.id, p.slug, p.title, p.summary, p.body, p.format, p.status,
		p.category, p.cover_media_id, p.author_id, p.created_at, p.updated_at, p.published_at
		FROM posts p`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += ` ORDER BY COALESCE(p.published_at, p.updated_at) DESC LIMIT ? OFFSET ?`
	args = append(args, limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []*Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, p := range posts {
		if p.Tags, err = s.tagsFor(ctx, p.ID); err != nil {
			return nil, err
		}
	}
	return posts, nil
}

// CountPosts counts posts matching opts (ignoring pagination).
func (s *Store) CountPosts(ctx context.Context, opts ListOptions) (int, error) {
	var where []string
	var args []any
	if opts.Status != "" {
		where = append(where, "status = ?")
		args = append(args, opts.Status)
	}
	if opts.Category != "" {
		where = append(where, "category = ?")
		args = append(args, opts.Category)
	}
	if opts.Tag != "" {
		where = append(where, "id IN (SELECT post_id FROM post_tags WHERE tag = ?)")
		args = append(args, opts.Tag)
	}

	query := `SELECT COUNT(*) FROM posts`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*Post, error) {
	var p Post
	var createdAt, updatedAt int64
	var publishedAt sql.NullInt64

	err := row.Scan(&p.ID, &p.Slug, &p.Title, &p.Summary, &p.Body, &p.Format,
		&p.Status, &p.Category, &p.CoverMediaID, &p.AuthorID,
		&createdAt, &updatedAt, &publishedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	p.CreatedAt = time.Unix(createdAt, 0)
	p.UpdatedAt = time.Unix(updatedAt, 0)
	if publishedAt.Valid {
		t := time.Unix(publishedAt.Int64, 0)
		p.PublishedAt = &t
	}
	return &p, nil
}

func (s *Store) onePost(ctx context.Context, where string, arg any) (*Post, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, slug, title, summary, body, format, status, category,
			cover_media_id, author_id, created_at, updated_at, published_at
		FROM posts `+where, arg)

	p, err := scanPost(row)
	if err != nil {
		return nil, err
	}
	if p.Tags, err = s.tagsFor(ctx, p.ID); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Store) replaceTags(ctx context.Context, postID string, tags []string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM post_tags WHERE post_id = ?`, postID); err != nil {
		return err
	}
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(strings.ToLower(tag))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO post_tags (post_id, tag) VALUES (?, ?)`, postID, tag); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) tagsFor(ctx context.Context, postID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tag FROM post_tags WHERE post_id = ?`, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags, rows.Err()
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint
// failure. The modernc driver exposes no typed error for this.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
