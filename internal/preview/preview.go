// Package preview streams live rendering of draft content to the admin
// editor over a WebSocket.
package preview

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/inkpress-dev/inkpress/internal/render"
)

const (
	// maxMessageSize caps an inbound draft body. Drafts larger than this
	// are rejected at the connection level.
	maxMessageSize = 1 << 20

	readTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

// request is one render request from the editor.
type request struct {
	Format string `json:"format"`
	Body   string `json:"body"`
}

// response carries either rendered HTML or an error message.
type response struct {
	HTML  string `json:"html,omitempty"`
	Error string `json:"error,omitempty"`
}

// Handler upgrades editor connections and renders drafts as they are
// typed.
type Handler struct {
	pipeline *render.Pipeline
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a preview handler over the given render pipeline.
func NewHandler(pipeline *render.Pipeline, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		pipeline: pipeline,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Same-origin only: the editor page and this endpoint share
			// a host, and drafts are sensitive.
			CheckOrigin: sameOrigin,
		},
	}
}

func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return u.Host == r.Host
}

// ServeHTTP upgrades the connection and runs the render loop until the
// editor disconnects.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("preview upgrade failed", "error", err)
		return
	}
	go h.serve(conn)
}

func (h *Handler) serve(conn *websocket.Conn) {
	defer conn.Close()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	done := make(chan struct{})
	defer close(done)
	go h.pingLoop(conn, done)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure) {
				h.logger.Warn("preview read error", "error", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		var req request
		if err := json.Unmarshal(msg, &req); err != nil {
			h.write(conn, response{Error: "malformed request"})
			continue
		}

		html, err := h.pipeline.Render(req.Format, req.Body)
		if err != nil {
			h.write(conn, response{Error: err.Error()})
			continue
		}
		if err := h.write(conn, response{HTML: string(html)}); err != nil {
			return
		}
	}
}

func (h *Handler) write(conn *websocket.Conn, resp response) error {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(resp); err != nil {
		h.logger.Warn("preview write error", "error", err)
		return err
	}
	return nil
}

func (h *Handler) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
