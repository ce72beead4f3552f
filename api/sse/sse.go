// Package sse streams combat events from the event bus to HTTP clients.
package sse

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/combatcore/cache"
	"github.com/kasuganosora/combatcore/game/telemetry"
	"go.uber.org/zap"
)

// Handler handles the SSE endpoint.
type Handler struct {
	pubsub    cache.PubSub
	keepalive time.Duration
	logger    *zap.Logger
}

// NewHandler creates a new SSE Handler.
func NewHandler(pubsub cache.PubSub, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{pubsub: pubsub, keepalive: 30 * time.Second, logger: logger}
}

// ServeSSE handles GET /api/arena/stream?entity=<id>&kind=<kind>.
// Each bus record becomes one event named after its kind.
func (h *Handler) ServeSSE(c *gin.Context) {
	f := telemetry.Filter{EntityID: c.Query("entity"), Kind: c.Query("kind")}

	subCtx, subCancel := context.WithCancel(c.Request.Context())
	defer subCancel()

	msgCh, unsub, err := h.pubsub.Subscribe(subCtx, telemetry.Channel)
	if err != nil {
		h.logger.Error("sse subscribe failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event bus unavailable"})
		return
	}
	defer unsub()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	fmt.Fprintf(c.Writer, "event: connected\ndata: {}\n\n")
	c.Writer.Flush()

	ticker := time.NewTicker(h.keepalive)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-msgCh:
			if !ok {
				return
			}
			kind, pass := f.Match(msg.Payload)
			if !pass {
				continue
			}
			fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", kind, msg.Payload)
			c.Writer.Flush()

		case <-ticker.C:
			// Keepalive comment to prevent proxy timeouts.
			fmt.Fprintf(c.Writer, ": keepalive\n\n")
			c.Writer.Flush()

		case <-c.Request.Context().Done():
			return
		}
	}
}
