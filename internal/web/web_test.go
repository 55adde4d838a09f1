package web

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/inkpress-dev/inkpress/internal/analytics"
	"github.com/inkpress-dev/inkpress/internal/auth"
	"github.com/inkpress-dev/inkpress/internal/config"
	"github.com/inkpress-dev/inkpress/internal/render"
	"github.com/inkpress-dev/inkpress/internal/store"
	"github.com/inkpress-dev/inkpress/pkg/blob"
	"github.com/inkpress-dev/inkpress/pkg/media"
	"github.com/inkpress-dev/inkpress/pkg/session"
)

type fixture struct {
	server   *Server
	store    *store.Store
	registry *blob.Registry
	ts       *httptest.Server
	client   *http.Client
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.InitSchema(ctx); err != nil {
		t.Fatalf("InitSchema failed: %v", err)
	}

	hash, err := auth.HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if err := st.CreateUser(ctx, &store.User{
		Email: "admin@example.com", Name: "Admin", PasswordHash: hash, Role: store.RoleAdmin,
	}); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	sessions := session.NewMemoryStore()
	t.Cleanup(func() { sessions.Close() })

	mediaStore, err := media.NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskStore failed: %v", err)
	}

	registry := blob.NewRegistry(blob.NewMemoryMaterializer())

	cfg := config.New()
	cfg.Name = "Test Site"

	srv, err := New(Options{
		Config:    cfg,
		Store:     st,
		Media:     mediaStore,
		Registry:  registry,
		Pipeline:  render.NewPipeline(),
		Auth:      auth.New(sessions, st),
		Analytics: analytics.NewRecorder(st.DB()),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	jar, _ := cookiejar.New(nil)
	client := &http.Client{Jar: jar}

	return &fixture{server: srv, store: st, registry: registry, ts: ts, client: client}
}

func (f *fixture) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := f.client.Get(f.ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s failed: %v", path, err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	return resp, string(body)
}

func (f *fixture) postForm(t *testing.T, path string, form url.Values) *http.Response {
	t.Helper()
	resp, err := f.client.PostForm(f.ts.URL+path, form)
	if err != nil {
		t.Fatalf("POST %s failed: %v", path, err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return resp
}

func (f *fixture) login(t *testing.T) {
	t.Helper()
	resp := f.postForm(t, "/admin/login", url.Values{
		"email":    {"admin@example.com"},
		"password": {"hunter2"},
	})
	if resp.Request.URL.Path != "/admin/posts" {
		t.Fatalf("login landed on %s", resp.Request.URL.Path)
	}
}

func (f *fixture) createPost(t *testing.T, p *store.Post) *store.Post {
	t.Helper()
	if err := f.store.CreatePost(context.Background(), p); err != nil {
		t.Fatalf("CreatePost failed: %v", err)
	}
	return p
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 32), G: uint8(y * 32), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode failed: %v", err)
	}
	return buf.Bytes()
}

func TestHome(t *testing.T) {
	f := newFixture(t)
	f.createPost(t, &store.Post{
		Slug: "hello", Title: "Hello World", Body: "# Hi", Format: store.FormatMarkdown,
		Status: store.StatusPublished, Category: "general",
	})
	f.createPost(t, &store.Post{
		Slug: "secret", Title: "Unfinished Draft", Body: "wip", Format: store.FormatMarkdown,
		Status: store.StatusDraft,
	})

	resp, body := f.get(t, "/")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(body, "Hello World") {
		t.Error("published post missing from home page")
	}
	if strings.Contains(body, "Unfinished Draft") {
		t.Error("draft leaked onto home page")
	}
	if !strings.Contains(body, "Test Site") {
		t.Error("site name missing")
	}
}

func TestPostPage(t *testing.T) {
	f := newFixture(t)
	f.createPost(t, &store.Post{
		Slug: "hello", Title: "Hello World", Body: "# Heading\n\n*text*",
		Format: store.FormatMarkdown, Status: store.StatusPublished,
		Tags: []string{"go", "web"},
	})

	t.Run("Published", func(t *testing.T) {
		resp, body := f.get(t, "/posts/hello")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		if !strings.Contains(body, "<em>text</em>") {
			t.Error("markdown body not rendered")
		}
		if !strings.Contains(body, "#go") {
			t.Error("tags missing")
		}
	})

	t.Run("Missing", func(t *testing.T) {
		resp, _ := f.get(t, "/posts/nope")
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want 404", resp.StatusCode)
		}
	})

	t.Run("DraftHiddenFromAnonymous", func(t *testing.T) {
		f.createPost(t, &store.Post{
			Slug: "wip", Title: "WIP", Body: "x", Format: store.FormatMarkdown,
			Status: store.StatusDraft,
		})
		resp, _ := f.get(t, "/posts/wip")
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want 404", resp.StatusCode)
		}
	})
}

func TestTaxonomyPages(t *testing.T) {
	f := newFixture(t)
	f.createPost(t, &store.Post{
		Slug: "a", Title: "Post A", Body: "x", Format: store.FormatMarkdown,
		Status: store.StatusPublished, Category: "golang", Tags: []string{"testing"},
	})

	resp, body := f.get(t, "/categories/golang")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "Post A") {
		t.Errorf("category page: status=%d, contains=%v", resp.StatusCode, strings.Contains(body, "Post A"))
	}

	resp, body = f.get(t, "/tags/testing")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "Post A") {
		t.Errorf("tag page: status=%d, contains=%v", resp.StatusCode, strings.Contains(body, "Post A"))
	}

	resp, body = f.get(t, "/categories/empty")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "No posts here") {
		t.Errorf("empty category page: status=%d", resp.StatusCode)
	}
}

func TestAdminRequiresAuth(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.ts.URL + "/admin/posts")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	// The default client follows the redirect to the login page.
	if resp.Request.URL.Path != "/admin/login" {
		t.Errorf("landed on %s, want /admin/login", resp.Request.URL.Path)
	}
}

func TestLoginFlow(t *testing.T) {
	f := newFixture(t)

	t.Run("BadPassword", func(t *testing.T) {
		resp := f.postForm(t, "/admin/login", url.Values{
			"email":    {"admin@example.com"},
			"password": {"wrong"},
		})
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", resp.StatusCode)
		}
	})

	t.Run("Success", func(t *testing.T) {
		f.login(t)
		resp, _ := f.get(t, "/admin/posts")
		if resp.StatusCode != http.StatusOK {
			t.Errorf("status = %d after login", resp.StatusCode)
		}
	})
}

func TestAdminPostLifecycle(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	ctx := context.Background()

	// Create.
	resp := f.postForm(t, "/admin/posts", url.Values{
		"title":  {"My Post"},
		"slug":   {"my-post"},
		"body":   {"# Hello"},
		"format": {"markdown"},
		"tags":   {"go, web"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	post, err := f.store.PostBySlug(ctx, "my-post")
	if err != nil {
		t.Fatalf("post not created: %v", err)
	}
	if post.Status != store.StatusDraft {
		t.Errorf("new post status = %q, want draft", post.Status)
	}
	if len(post.Tags) != 2 {
		t.Errorf("tags = %v", post.Tags)
	}

	// Publish.
	f.postForm(t, "/admin/posts/"+post.ID+"/publish", nil)
	post, _ = f.store.PostByID(ctx, post.ID)
	if post.Status != store.StatusPublished || post.PublishedAt == nil {
		t.Errorf("after publish: status=%q publishedAt=%v", post.Status, post.PublishedAt)
	}

	// Update keeps status.
	f.postForm(t, "/admin/posts/"+post.ID, url.Values{
		"title":  {"My Post, Revised"},
		"slug":   {"my-post"},
		"body":   {"# Hello again"},
		"format": {"markdown"},
	})
	post, _ = f.store.PostByID(ctx, post.ID)
	if post.Title != "My Post, Revised" {
		t.Errorf("Title = %q", post.Title)
	}
	if post.Status != store.StatusPublished {
		t.Errorf("update reset status to %q", post.Status)
	}

	// Unpublish, then delete.
	f.postForm(t, "/admin/posts/"+post.ID+"/unpublish", nil)
	post, _ = f.store.PostByID(ctx, post.ID)
	if post.Status != store.StatusDraft {
		t.Errorf("after unpublish: status = %q", post.Status)
	}

	f.postForm(t, "/admin/posts/"+post.ID+"/delete", nil)
	if _, err := f.store.PostByID(ctx, post.ID); err == nil {
		t.Error("post survives delete")
	}
}

func TestDuplicateSlugConflict(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.createPost(t, &store.Post{
		Slug: "taken", Title: "First", Body: "x", Format: store.FormatMarkdown, Status: store.StatusDraft,
	})

	resp := f.postForm(t, "/admin/posts", url.Values{
		"title":  {"Second"},
		"slug":   {"taken"},
		"body":   {"y"},
		"format": {"markdown"},
	})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", resp.StatusCode)
	}
}

func TestMediaServing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Seed an object directly in the media store and catalog.
	obj, err := f.server.media.Save(ctx, "ab/test.png", "image/png", bytes.NewReader(testPNG(t)))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	m := &store.Media{Filename: "test.png", ContentType: "image/png", Size: obj.Size, StorageKey: obj.Key}
	if err := f.store.CreateMedia(ctx, m); err != nil {
		t.Fatalf("CreateMedia failed: %v", err)
	}

	t.Run("Original", func(t *testing.T) {
		resp, body := f.get(t, "/media/"+m.ID)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
			t.Errorf("Content-Type = %q", ct)
		}
		if len(body) == 0 {
			t.Error("empty body")
		}
	})

	t.Run("Thumb", func(t *testing.T) {
		resp, body := f.get(t, "/media/"+m.ID+"/thumb")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		if len(body) == 0 {
			t.Error("empty body")
		}
	})

	t.Run("UnknownVariant", func(t *testing.T) {
		resp, _ := f.get(t, "/media/"+m.ID+"/huge")
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want 404", resp.StatusCode)
		}
	})

	t.Run("UnknownID", func(t *testing.T) {
		resp, _ := f.get(t, "/media/nope")
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want 404", resp.StatusCode)
		}
	})

	// Leases are released after each response; nothing lingers.
	if n := f.registry.Len(); n != 0 {
		t.Errorf("registry holds %d entries after serving", n)
	}
}

func TestHealthzAndMetrics(t *testing.T) {
	f := newFixture(t)

	resp, body := f.get(t, "/healthz")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "ok") {
		t.Errorf("healthz: status=%d body=%q", resp.StatusCode, body)
	}

	resp, body = f.get(t, "/metrics")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("metrics status = %d", resp.StatusCode)
	}
	if !strings.Contains(body, "inkpress_http_requests_total") {
		t.Error("request counter missing from metrics output")
	}
}

func TestDashboard(t *testing.T) {
	f := newFixture(t)
	p := f.createPost(t, &store.Post{
		Slug: "seen", Title: "Seen Post", Body: "x", Format: store.FormatMarkdown,
		Status: store.StatusPublished,
	})
	if err := f.server.analytics.Record(context.Background(), analytics.View{
		Path: "/posts/seen", PostID: p.ID,
	}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	f.login(t)
	resp, body := f.get(t, "/admin/")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(body, "Seen Post") {
		t.Error("top post missing from dashboard")
	}

	t.Run("JSON", func(t *testing.T) {
		resp, body := f.get(t, "/admin/analytics.json")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		var summary analytics.Summary
		if err := json.Unmarshal([]byte(body), &summary); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if summary.TotalViews != 1 {
			t.Errorf("TotalViews = %d, want 1", summary.TotalViews)
		}
	})
}
