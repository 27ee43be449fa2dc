package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/simroam/simroam/internal/notify/sse"
	"github.com/simroam/simroam/internal/usercontext"
)

// StreamEvents holds an SSE connection open and forwards the caller's order
// lifecycle events. Clients reconnect on drop; events published while
// disconnected are not replayed.
func (s *Server) StreamEvents(c *gin.Context) {
	userID, ok := usercontext.UserIDFromContext(c.Request.Context())
	if !ok || userID == 0 {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	subscription, err := s.hub.Subscribe(userID)
	if err != nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}
	defer subscription.Close()

	writer := c.Writer
	headers := writer.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	headers.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	flusher, ok := writer.(http.Flusher)
	if !ok {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	s.metrics.SSEClients.Inc()
	defer s.metrics.SSEClients.Dec()

	if _, err := io.WriteString(writer, "retry: 2000\n\n"); err != nil {
		return
	}
	flusher.Flush()

	ctx := c.Request.Context()
	heartbeat := time.NewTicker(25 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-subscription.Events():
			if err := writeEvent(writer, event); err != nil {
				return
			}
			flusher.Flush()
		case <-heartbeat.C:
			if err := writePing(writer); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// writePing keeps idle connections alive. A named event, so browser clients
// can listen for it explicitly.
func writePing(w io.Writer) error {
	_, err := io.WriteString(w, "event: ping\ndata: {}\n\n")
	return err
}

func writeEvent(w io.Writer, event sse.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
	return err
}
