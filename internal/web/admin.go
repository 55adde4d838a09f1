package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/inkpress-dev/inkpress/internal/auth"
	"github.com/inkpress-dev/inkpress/internal/store"
	"github.com/inkpress-dev/inkpress/pkg/media"
)

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.SessionFromContext(r.Context()); ok {
		http.Redirect(w, r, "/admin/posts", http.StatusSeeOther)
		return
	}
	s.renderPage(w, http.StatusOK, "admin_login.tmpl", s.page(r, "Sign in", map[string]any{}))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	email := r.PostFormValue("email")
	password := r.PostFormValue("password")

	sess, err := s.auth.Login(r.Context(), email, password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.renderPage(w, http.StatusUnauthorized, "admin_login.tmpl", s.page(r, "Sign in", map[string]any{
				"Error": "Invalid email or password.",
				"Email": email,
			}))
			return
		}
		s.serverError(w, r, err)
		return
	}

	s.auth.SetCookie(w, sess)
	http.Redirect(w, r, "/admin/posts", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.auth.Logout(w, r)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if s.analytics == nil {
		http.Redirect(w, r, "/admin/posts", http.StatusSeeOther)
		return
	}
	summary, err := s.analytics.Summarize(r.Context(), 30)
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	// Resolve post titles for the top-posts table. Posts deleted since
	// their views were recorded are skipped.
	type topPost struct {
		Slug  string
		Title string
		Count int
	}
	var top []topPost
	for _, pc := range summary.TopPosts {
		p, err := s.store.PostByID(r.Context(), pc.PostID)
		if err != nil {
			continue
		}
		top = append(top, topPost{Slug: p.Slug, Title: p.Title, Count: pc.Count})
	}

	s.renderPage(w, http.StatusOK, "admin_dashboard.tmpl", s.page(r, "Analytics", map[string]any{
		"Summary":  summary,
		"TopPosts": top,
	}))
}

func (s *Server) handleDashboardJSON(w http.ResponseWriter, r *http.Request) {
	if s.analytics == nil {
		http.NotFound(w, r)
		return
	}
	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			days = n
		}
	}
	summary, err := s.analytics.Summarize(r.Context(), days)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}

func (s *Server) handleAdminPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := s.store.ListPosts(r.Context(), store.ListOptions{Limit: 100})
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	s.renderPage(w, http.StatusOK, "admin_posts.tmpl", s.page(r, "Posts", map[string]any{
		"Posts": posts,
	}))
}

func (s *Server) handleAdminNewPost(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, http.StatusOK, "admin_edit.tmpl", s.page(r, "New post", map[string]any{
		"Post":    &store.Post{Format: store.FormatMarkdown},
		"TagList": "",
		"Action":  "/admin/posts",
	}))
}

func (s *Server) handleAdminCreatePost(w http.ResponseWriter, r *http.Request) {
	post, err := s.postFromForm(r)
	if err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	post.Status = store.StatusDraft
	if sess, ok := auth.SessionFromContext(r.Context()); ok {
		post.AuthorID = sess.UserID
	}

	if err := s.store.CreatePost(r.Context(), post); err != nil {
		if errors.Is(err, store.ErrDuplicateSlug) {
			s.renderPage(w, http.StatusConflict, "admin_edit.tmpl", s.page(r, "New post", map[string]any{
				"Post":    post,
				"TagList": strings.Join(post.Tags, ", "),
				"Action":  "/admin/posts",
				"Error":   "That slug is already taken.",
			}))
			return
		}
		s.serverError(w, r, err)
		return
	}
	http.Redirect(w, r, "/admin/posts/"+post.ID, http.StatusSeeOther)
}

func (s *Server) handleAdminEditPost(w http.ResponseWriter, r *http.Request) {
	post, err := s.store.PostByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.notFound(w, r)
			return
		}
		s.serverError(w, r, err)
		return
	}
	s.renderPage(w, http.StatusOK, "admin_edit.tmpl", s.page(r, "Edit post", map[string]any{
		"Post":    post,
		"TagList": strings.Join(post.Tags, ", "),
		"Action":  "/admin/posts/" + post.ID,
	}))
}

func (s *Server) handleAdminUpdatePost(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	existing, err := s.store.PostByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.notFound(w, r)
			return
		}
		s.serverError(w, r, err)
		return
	}

	post, err := s.postFromForm(r)
	if err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	post.ID = existing.ID
	post.Status = existing.Status
	post.AuthorID = existing.AuthorID
	post.PublishedAt = existing.PublishedAt

	if err := s.store.UpdatePost(r.Context(), post); err != nil {
		if errors.Is(err, store.ErrDuplicateSlug) {
			s.renderPage(w, http.StatusConflict, "admin_edit.tmpl", s.page(r, "Edit post", map[string]any{
				"Post":    post,
				"TagList": strings.Join(post.Tags, ", "),
				"Action":  "/admin/posts/" + post.ID,
				"Error":   "That slug is already taken.",
			}))
			return
		}
		s.serverError(w, r, err)
		return
	}
	http.Redirect(w, r, "/admin/posts/"+post.ID, http.StatusSeeOther)
}

func (s *Server) handleAdminPublish(w http.ResponseWriter, r *http.Request) {
	s.postTransition(w, r, s.store.Publish)
}

func (s *Server) handleAdminUnpublish(w http.ResponseWriter, r *http.Request) {
	s.postTransition(w, r, s.store.Unpublish)
}

func (s *Server) postTransition(w http.ResponseWriter, r *http.Request, fn func(context.Context, string) error) {
	if err := fn(r.Context(), chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.notFound(w, r)
			return
		}
		s.serverError(w, r, err)
		return
	}
	http.Redirect(w, r, "/admin/posts", http.StatusSeeOther)
}

func (s *Server) handleAdminDeletePost(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeletePost(r.Context(), chi.URLParam(r, "id")); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.serverError(w, r, err)
		return
	}
	http.Redirect(w, r, "/admin/posts", http.StatusSeeOther)
}

func (s *Server) postFromForm(r *http.Request) (*store.Post, error) {
	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	post := &store.Post{
		Slug:     strings.TrimSpace(r.PostFormValue("slug")),
		Title:    strings.TrimSpace(r.PostFormValue("title")),
		Summary:  strings.TrimSpace(r.PostFormValue("summary")),
		Body:     r.PostFormValue("body"),
		Format:   r.PostFormValue("format"),
		Category: strings.TrimSpace(strings.ToLower(r.PostFormValue("category"))),
	}
	if post.Slug == "" || post.Title == "" {
		return nil, errors.New("slug and title are required")
	}
	if post.Format != store.FormatMarkdown && post.Format != store.FormatHTML {
		post.Format = store.FormatMarkdown
	}
	for _, tag := range strings.Split(r.PostFormValue("tags"), ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			post.Tags = append(post.Tags, tag)
		}
	}
	return post, nil
}

func (s *Server) handleAdminMedia(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.ListMedia(r.Context(), 100, 0)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	s.renderPage(w, http.StatusOK, "admin_media.tmpl", s.page(r, "Media", map[string]any{
		"Media": items,
	}))
}

// handleAdminUpload delegates to the media upload handler. Browser form
// posts get a redirect back to the media page instead of the handler's
// JSON response; API clients keep the JSON.
func (s *Server) handleAdminUpload(w http.ResponseWriter, r *http.Request) {
	upload := media.Handler(s.media, &media.HandlerConfig{
		MaxFileSize: s.cfg.Media.MaxUploadBytes,
		OnSaved: func(ctx context.Context, obj *media.Object, filename string) (string, error) {
			m := &store.Media{
				Filename:    filename,
				ContentType: obj.ContentType,
				Size:        obj.Size,
				StorageKey:  obj.Key,
			}
			if err := s.store.CreateMedia(ctx, m); err != nil {
				return "", err
			}
			return m.ID, nil
		},
	})

	if !strings.Contains(r.Header.Get("Accept"), "text/html") {
		upload.ServeHTTP(w, r)
		return
	}

	buf := &bufferedResponse{header: make(http.Header)}
	upload.ServeHTTP(buf, r)
	if buf.status >= 200 && buf.status < 300 {
		http.Redirect(w, r, "/admin/media", http.StatusSeeOther)
		return
	}
	buf.flushTo(w)
}

func (s *Server) handleAdminDeleteMedia(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	m, err := s.store.MediaByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.notFound(w, r)
			return
		}
		s.serverError(w, r, err)
		return
	}

	if err := s.media.Delete(r.Context(), m.StorageKey); err != nil && !errors.Is(err, media.ErrNotFound) {
		s.serverError(w, r, err)
		return
	}
	if err := s.store.DeleteMedia(r.Context(), id); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.serverError(w, r, err)
		return
	}
	http.Redirect(w, r, "/admin/media", http.StatusSeeOther)
}

// bufferedResponse captures a handler's response so the caller can
// decide whether to forward or replace it.
type bufferedResponse struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func (b *bufferedResponse) Header() http.Header { return b.header }

func (b *bufferedResponse) WriteHeader(status int) {
	if b.status == 0 {
		b.status = status
	}
}

func (b *bufferedResponse) Write(p []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.body.Write(p)
}

func (b *bufferedResponse) flushTo(w http.ResponseWriter) {
	for k, vs := range b.header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	status := b.status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	w.Write(b.body.Bytes())
}
