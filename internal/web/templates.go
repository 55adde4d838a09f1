package web

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"time"

	"github.com/inkpress-dev/inkpress/pkg/session"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// pageData is the envelope passed to every template.
type pageData struct {
	Site    string
	Title   string
	Session *session.Session
	Flash   string
	Data    any
	Year    int
}

// templates holds one parsed template set per page, each sharing the
// layout.
type templates struct {
	pages map[string]*template.Template
}

var templateFuncs = template.FuncMap{
	"date": func(v any) string {
		return formatTime(v, "January 2, 2006")
	},
	"shortdate": func(v any) string {
		return formatTime(v, "2006-01-02")
	},
	"bytes": func(n int64) string {
		switch {
		case n >= 1<<20:
			return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
		case n >= 1<<10:
			return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
		default:
			return fmt.Sprintf("%d B", n)
		}
	},
}

// formatTime accepts time.Time or *time.Time; published dates are
// pointers in the post model.
func formatTime(v any, layout string) string {
	switch t := v.(type) {
	case time.Time:
		return t.Format(layout)
	case *time.Time:
		if t == nil {
			return ""
		}
		return t.Format(layout)
	default:
		return ""
	}
}

func parseTemplates() (*templates, error) {
	entries, err := templateFS.ReadDir("templates")
	if err != nil {
		return nil, err
	}

	t := &templates{pages: make(map[string]*template.Template)}
	for _, entry := range entries {
		name := entry.Name()
		if name == "layout.tmpl" {
			continue
		}
		tmpl, err := template.New("layout.tmpl").Funcs(templateFuncs).
			ParseFS(templateFS, "templates/layout.tmpl", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		t.pages[name] = tmpl
	}
	return t, nil
}

// render writes the named page. The layout pulls the page's "content"
// block.
func (t *templates) render(w io.Writer, name string, data *pageData) error {
	tmpl, ok := t.pages[name]
	if !ok {
		return fmt.Errorf("web: unknown template %q", name)
	}
	if data.Year == 0 {
		data.Year = time.Now().Year()
	}
	return tmpl.ExecuteTemplate(w, "layout.tmpl", data)
}

// renderPage renders to the response, falling back to a plain 500 if
// the template itself fails.
func (s *Server) renderPage(w http.ResponseWriter, status int, name string, data *pageData) {
	data.Site = s.cfg.Name
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.tmpl.render(w, name, data); err != nil {
		s.logger.Error("template render failed", "template", name, "error", err)
	}
}
