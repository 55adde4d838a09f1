// Package analytics records page views and aggregates them for the
// admin dashboard.
package analytics

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// View is one recorded page view.
type View struct {
	Path      string
	PostID    string
	Referrer  string
	ClientIP  string
	UserAgent string
	ViewedAt  time.Time
}

// Summary is the aggregate set shown on the dashboard.
type Summary struct {
	TotalViews int         `json:"total_views"`
	ViewsToday int         `json:"views_today"`
	ByDay      []DayCount  `json:"by_day"`
	TopPosts   []PostCount `json:"top_posts"`
	Referrers  []RefCount  `json:"top_referrers"`
}

// DayCount is views on one day (YYYY-MM-DD).
type DayCount struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

// PostCount is views for one post.
type PostCount struct {
	PostID string `json:"post_id"`
	Count  int    `json:"count"`
}

// RefCount is views from one referrer.
type RefCount struct {
	Referrer string `json:"referrer"`
	Count    int    `json:"count"`
}

// Recorder writes views into the page_views table and keeps a Prometheus
// counter alongside.
type Recorder struct {
	db      *sql.DB
	trusted *ProxyMatcher
	views   *prometheus.CounterVec
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithTrustedProxies sets proxy CIDRs honored for client IP resolution.
func WithTrustedProxies(cidrs []string) RecorderOption {
	return func(r *Recorder) {
		r.trusted = NewProxyMatcher(cidrs)
	}
}

// WithViewMetrics registers a page-view counter with reg.
func WithViewMetrics(reg prometheus.Registerer, namespace string) RecorderOption {
	return func(r *Recorder) {
		r.views = promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "page_views_total",
			Help:      "Total recorded page views by kind",
		}, []string{"kind"})
	}
}

// NewRecorder creates a recorder over the shared content database.
func NewRecorder(db *sql.DB, opts ...RecorderOption) *Recorder {
	r := &Recorder{db: db}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record inserts one view. ViewedAt defaults to now.
func (r *Recorder) Record(ctx context.Context, v View) error {
	if v.ViewedAt.IsZero() {
		v.ViewedAt = time.Now()
	}
	day := v.ViewedAt.Format("2006-01-02")

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO page_views (path, post_id, referrer, client_ip, user_agent, viewed_at, day)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		v.Path, v.PostID, v.Referrer, v.ClientIP, v.UserAgent, v.ViewedAt.Unix(), day)
	if err != nil {
		return err
	}

	if r.views != nil {
		kind := "page"
		if v.PostID != "" {
			kind = "post"
		}
		r.views.WithLabelValues(kind).Inc()
	}
	return nil
}

// RecordRequest derives a View from an HTTP request and records it.
// Recording failures are swallowed; analytics must never break a page.
func (r *Recorder) RecordRequest(req *http.Request, postID string) {
	v := View{
		Path:      req.URL.Path,
		PostID:    postID,
		Referrer:  req.Referer(),
		ClientIP:  ClientIP(req, r.trusted),
		UserAgent: req.UserAgent(),
	}
	// Detached context: the page response must not wait on or fail with
	// the analytics write.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = r.Record(ctx, v)
}

// Summarize computes dashboard aggregates over the last days days.
func (r *Recorder) Summarize(ctx context.Context, days int) (*Summary, error) {
	if days <= 0 {
		days = 30
	}
	since := time.Now().AddDate(0, 0, -days).Unix()
	today := time.Now().Format("2006-01-02")

	s := &Summary{}

	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM page_views`).Scan(&s.TotalViews); err != nil {
		return nil, err
	}
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM page_views WHERE day = ?`, today).Scan(&s.ViewsToday); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT day, COUNT(*) FROM page_views
		WHERE viewed_at >= ?
		GROUP BY day ORDER BY day ASC`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var d DayCount
		if err := rows.Scan(&d.Day, &d.Count); err != nil {
			return nil, err
		}
		s.ByDay = append(s.ByDay, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.db.QueryContext(ctx, `
		SELECT post_id, COUNT(*) FROM page_views
		WHERE post_id != '' AND viewed_at >= ?
		GROUP BY post_id ORDER BY COUNT(*) DESC LIMIT 10`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var p PostCount
		if err := rows.Scan(&p.PostID, &p.Count); err != nil {
			return nil, err
		}
		s.TopPosts = append(s.TopPosts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.db.QueryContext(ctx, `
		SELECT referrer, COUNT(*) FROM page_views
		WHERE referrer != '' AND viewed_at >= ?
		GROUP BY referrer ORDER BY COUNT(*) DESC LIMIT 10`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var rc RefCount
		if err := rows.Scan(&rc.Referrer, &rc.Count); err != nil {
			return nil, err
		}
		s.Referrers = append(s.Referrers, rc)
	}
	return s, rows.Err()
}

// Prune deletes raw views older than retentionDays. A non-positive
// retention keeps everything.
func (r *Recorder) Prune(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays).Unix()
	res, err := r.db.ExecContext(ctx, `DELETE FROM page_views WHERE viewed_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
