package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// sseWriter frames server-sent events on a gin response. Not safe for
// concurrent use; each streaming handler drives it from one loop.
type sseWriter struct {
	c       *gin.Context
	flusher http.Flusher
}

func newSSEWriter(c *gin.Context) (*sseWriter, bool) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // helpful if behind nginx
	c.Status(http.StatusOK)

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		fmt.Fprintf(c.Writer, "event: error\ndata: flusher not supported\n\n")
		return nil, false
	}
	return &sseWriter{c: c, flusher: flusher}, true
}

func (w *sseWriter) WriteJSON(event string, payload any) {
	b, err := json.Marshal(payload)
	if err != nil {
		fmt.Fprintf(w.c.Writer, "event: error\ndata: {\"message\":\"json marshal failed\"}\n\n")
		w.flusher.Flush()
		return
	}
	if event != "" {
		fmt.Fprintf(w.c.Writer, "event: %s\n", event)
	}
	fmt.Fprintf(w.c.Writer, "data: %s\n\n", b)
	w.flusher.Flush()
}

// Ping writes an SSE comment to keep idle connections from being reaped
// by proxies.
func (w *sseWriter) Ping() {
	fmt.Fprint(w.c.Writer, ": ping\n\n")
	w.flusher.Flush()
}
