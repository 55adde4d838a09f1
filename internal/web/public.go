package web

import (
	"context"
	"errors"
	"html/template"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/inkpress-dev/inkpress/internal/auth"
	"github.com/inkpress-dev/inkpress/internal/store"
)

const pageSize = 20

func (s *Server) page(r *http.Request, title string, data any) *pageData {
	pd := &pageData{Title: title, Data: data}
	if sess, ok := auth.SessionFromContext(r.Context()); ok {
		pd.Session = sess
	}
	return pd
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	posts, err := s.store.ListPosts(ctx, store.ListOptions{Status: store.StatusPublished, Limit: pageSize})
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	categories, err := s.store.Categories(ctx)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	tags, err := s.store.Tags(ctx)
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	s.record(r, "")
	s.renderPage(w, http.StatusOK, "home.tmpl", s.page(r, "", map[string]any{
		"Posts":      posts,
		"Categories": categories,
		"Tags":       tags,
	}))
}

func (s *Server) handlePostList(w http.ResponseWriter, r *http.Request) {
	s.listPage(w, r, "All posts", store.ListOptions{Status: store.StatusPublished})
}

func (s *Server) handleCategory(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	s.listPage(w, r, "Category: "+slug, store.ListOptions{Status: store.StatusPublished, Category: slug})
}

func (s *Server) handleTag(w http.ResponseWriter, r *http.Request) {
	tag := chi.URLParam(r, "tag")
	s.listPage(w, r, "Tag: "+tag, store.ListOptions{Status: store.StatusPublished, Tag: tag})
}

func (s *Server) listPage(w http.ResponseWriter, r *http.Request, heading string, opts store.ListOptions) {
	opts.Limit = pageSize
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			opts.Offset = n
		}
	}

	posts, err := s.store.ListPosts(r.Context(), opts)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	total, err := s.store.CountPosts(r.Context(), opts)
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	nextOffset := 0
	if opts.Offset+pageSize < total {
		nextOffset = opts.Offset + pageSize
	}

	s.record(r, "")
	s.renderPage(w, http.StatusOK, "list.tmpl", s.page(r, heading, map[string]any{
		"Heading":    heading,
		"Posts":      posts,
		"NextOffset": nextOffset,
	}))
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	post, err := s.store.PostBySlug(r.Context(), slug)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.notFound(w, r)
			return
		}
		s.serverError(w, r, err)
		return
	}

	// Drafts are only visible to signed-in authors.
	if post.Status != store.StatusPublished {
		if _, ok := auth.SessionFromContext(r.Context()); !ok {
			s.notFound(w, r)
			return
		}
	}

	body, err := s.pipeline.Render(post.Format, post.Body)
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	coverURL := ""
	if post.CoverMediaID != "" {
		coverURL = "/media/" + post.CoverMediaID + "/medium"
	}

	s.record(r, post.ID)
	s.renderPage(w, http.StatusOK, "post.tmpl", s.page(r, post.Title, map[string]any{
		"Post":     post,
		"Body":     body,
		"CoverURL": template.URL(coverURL),
	}))
}

// handleMedia serves a media object, or a derived variant of it, through
// the blob registry. The lease spans exactly the response write.
func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	variant := chi.URLParam(r, "variant")
	if variant == "" {
		variant = "orig"
	}

	m, err := s.store.MediaByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		s.serverError(w, r, err)
		return
	}

	lease, err := s.previewer.Preview(r.Context(), m.ID, m.StorageKey, variant)
	if err != nil {
		s.logger.Warn("media preview failed", "id", id, "variant", variant, "error", err)
		http.NotFound(w, r)
		return
	}
	defer lease.Close()

	rc, err := lease.Handle().Open()
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", m.ContentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	io.Copy(w, rc)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.DB().PingContext(ctx); err != nil {
		http.Error(w, "unhealthy", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok\n"))
}

// record notes a page view when analytics is enabled. The write runs
// off the request goroutine.
func (s *Server) record(r *http.Request, postID string) {
	if s.analytics == nil {
		return
	}
	req := r.Clone(context.Background())
	go s.analytics.RecordRequest(req, postID)
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, http.StatusNotFound, "error.tmpl", s.page(r, "Not found", map[string]any{
		"Heading": "Page not found",
		"Message": "The page you were looking for doesn't exist.",
	}))
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	s.renderPage(w, http.StatusInternalServerError, "error.tmpl", s.page(r, "Error", map[string]any{
		"Heading": "Something went wrong",
		"Message": "An internal error occurred. Try again in a moment.",
	}))
}
