// Package render turns stored post bodies into sanitized HTML.
//
// Posts declare a content format; the pipeline dispatches to the renderer
// registered for that format and runs every result through a shared
// sanitization policy, so raw and markdown content end up with the same
// safety guarantees.
package render

import (
	"html/template"

	"github.com/microcosm-cc/bluemonday"

	"github.com/inkpress-dev/inkpress/internal/errors"
)

// Renderer turns a post body into unsanitized HTML.
type Renderer interface {
	Render(body string) (string, error)
}

// RendererFunc adapts a function to the Renderer interface.
type RendererFunc func(body string) (string, error)

// Render implements Renderer.
func (f RendererFunc) Render(body string) (string, error) { return f(body) }

// Pipeline dispatches rendering by content format and sanitizes the
// output. Construct with NewPipeline; the zero value has no renderers.
type Pipeline struct {
	renderers map[string]Renderer
	policy    *bluemonday.Policy
}

// NewPipeline creates a pipeline with the built-in renderers registered:
// "markdown" (goldmark, GFM extensions) and "html" (passthrough). Both
// are sanitized with a UGC policy that additionally allows code-block
// class annotations produced by the markdown renderer.
func NewPipeline() *Pipeline {
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").OnElements("code", "pre")
	policy.AllowAttrs("id").OnElements("h1", "h2", "h3", "h4", "h5", "h6")

	p := &Pipeline{
		renderers: make(map[string]Renderer),
		policy:    policy,
	}
	p.Register("markdown", newMarkdownRenderer())
	p.Register("html", RendererFunc(func(body string) (string, error) {
		return body, nil
	}))
	return p
}

// Register adds or replaces the renderer for a format.
func (p *Pipeline) Register(format string, r Renderer) {
	p.renderers[format] = r
}

// Formats returns the registered format names.
func (p *Pipeline) Formats() []string {
	out := make([]string, 0, len(p.renderers))
	for f := range p.renderers {
		out = append(out, f)
	}
	return out
}

// Render renders body in the given format and sanitizes the result. The
// returned value is safe to interpolate into templates.
func (p *Pipeline) Render(format, body string) (template.HTML, error) {
	r, ok := p.renderers[format]
	if !ok {
		return "", errors.New("E300").WithDetail("format: " + format)
	}

	html, err := r.Render(body)
	if err != nil {
		return "", errors.New("E301").Wrap(err)
	}

	return template.HTML(p.policy.Sanitize(html)), nil
}
