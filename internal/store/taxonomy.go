package store

import "context"

// CategoryCount is a category slug with its published post count.
type CategoryCount struct {
	Slug  string
	Count int
}

// TagCount is a tag with its published post count.
type TagCount struct {
	Tag   string
	Count int
}

// Categories lists categories used by published posts, most used first.
func (s *Store) Categories(ctx context.Context) ([]CategoryCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, COUNT(*) FROM posts
		WHERE status = ? AND category != ''
		GROUP BY category
		ORDER BY COUNT(*) DESC, category ASC`, StatusPublished)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CategoryCount
	for rows.Next() {
		var c CategoryCount
		if err := rows.Scan(&c.Slug, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Tags lists tags used by published posts, most used first.
func (s *Store) Tags(ctx context.Context) ([]TagCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.tag, COUNT(*) FROM post_tags t
		JOIN posts p ON p.id = t.post_id
		WHERE p.status = ?
		GROUP BY t.tag
		ORDER BY COUNT(*) DESC, t.tag ASC`, StatusPublished)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TagCount
	for rows.Next() {
		var t TagCount
		if err := rows.Scan(&t.Tag, &t.Count); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
