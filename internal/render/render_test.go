package render

import (
	"strings"
	"testing"
)

func TestMarkdownRendering(t *testing.T) {
	p := NewPipeline()

	out, err := p.Render("markdown", "# Title\n\nSome *emphasis* and a [link](https://example.com).")
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	s := string(out)

	if !strings.Contains(s, "<h1") || !strings.Contains(s, "Title") {
		t.Errorf("heading missing from output: %s", s)
	}
	if !strings.Contains(s, "<em>emphasis</em>") {
		t.Errorf("emphasis missing from output: %s", s)
	}
	if !strings.Contains(s, `href="https://example.com"`) {
		t.Errorf("link missing from output: %s", s)
	}
}

func TestMarkdownGFMTable(t *testing.T) {
	p := NewPipeline()

	out, err := p.Render("markdown", "| a | b |\n|---|---|\n| 1 | 2 |\n")
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(string(out), "<table>") {
		t.Errorf("GFM table not rendered: %s", out)
	}
}

func TestHTMLSanitized(t *testing.T) {
	p := NewPipeline()

	out, err := p.Render("html", `<p>ok</p><script>alert(1)</script><img src=x onerror=alert(1)>`)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	s := string(out)

	if !strings.Contains(s, "<p>ok</p>") {
		t.Errorf("benign markup stripped: %s", s)
	}
	if strings.Contains(s, "<script") || strings.Contains(s, "onerror") {
		t.Errorf("unsafe markup survived sanitization: %s", s)
	}
}

func TestMarkdownRawHTMLSanitized(t *testing.T) {
	p := NewPipeline()

	out, err := p.Render("markdown", "hello\n\n<script>alert(1)</script>\n")
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if strings.Contains(string(out), "<script") {
		t.Errorf("script tag survived markdown path: %s", out)
	}
}

func TestUnknownFormat(t *testing.T) {
	p := NewPipeline()

	if _, err := p.Render("mdx", "body"); err == nil {
		t.Fatal("unknown format accepted")
	}
}

func TestRegisterCustomRenderer(t *testing.T) {
	p := NewPipeline()
	p.Register("plain", RendererFunc(func(body string) (string, error) {
		return "<pre>" + body + "</pre>", nil
	}))

	out, err := p.Render("plain", "x < y")
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(string(out), "<pre>") {
		t.Errorf("custom renderer not used: %s", out)
	}
}

func TestHeadingIDsSurviveSanitization(t *testing.T) {
	p := NewPipeline()

	out, err := p.Render("markdown", "## Section One\n")
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(string(out), `id="section-one"`) {
		t.Errorf("auto heading id stripped: %s", out)
	}
}
