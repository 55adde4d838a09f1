package preview

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/inkpress-dev/inkpress/internal/render"
)

func dialPreview(t *testing.T) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(NewHandler(render.NewPipeline(), nil))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, req request) response {
	t.Helper()
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteJSON(req); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var resp response
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	return resp
}

func TestPreviewRender(t *testing.T) {
	conn := dialPreview(t)

	resp := roundTrip(t, conn, request{Format: "markdown", Body: "# Hello\n\nsome *draft* text"})
	if resp.Error != "" {
		t.Fatalf("unexpected error: %s", resp.Error)
	}
	if !strings.Contains(resp.HTML, "<h1") || !strings.Contains(resp.HTML, "<em>draft</em>") {
		t.Errorf("HTML = %q", resp.HTML)
	}
}

func TestPreviewSanitizes(t *testing.T) {
	conn := dialPreview(t)

	resp := roundTrip(t, conn, request{Format: "html", Body: `<p>ok</p><script>alert(1)</script>`})
	if resp.Error != "" {
		t.Fatalf("unexpected error: %s", resp.Error)
	}
	if strings.Contains(resp.HTML, "script") {
		t.Errorf("script survived sanitization: %q", resp.HTML)
	}
}

func TestPreviewErrors(t *testing.T) {
	conn := dialPreview(t)

	t.Run("UnknownFormat", func(t *testing.T) {
		resp := roundTrip(t, conn, request{Format: "asciidoc", Body: "x"})
		if resp.Error == "" {
			t.Error("expected error for unknown format")
		}
	})

	t.Run("MalformedJSON", func(t *testing.T) {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, []byte("{nope")); err != nil {
			t.Fatalf("WriteMessage failed: %v", err)
		}
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var resp response
		if err := conn.ReadJSON(&resp); err != nil {
			t.Fatalf("ReadJSON failed: %v", err)
		}
		if resp.Error == "" {
			t.Error("expected error for malformed request")
		}
	})

	// Connection still works after errors.
	resp := roundTrip(t, conn, request{Format: "markdown", Body: "fine"})
	if resp.Error != "" || resp.HTML == "" {
		t.Errorf("connection unusable after errors: %+v", resp)
	}
}
