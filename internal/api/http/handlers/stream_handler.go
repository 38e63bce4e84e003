package handlers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/tracklite-io/tracklite/internal/config"
	"github.com/tracklite-io/tracklite/internal/push"
)

// StreamHandler serves the live notification channel over SSE.
type StreamHandler struct {
	registry  *push.Registry
	logger    *zap.Logger
	heartbeat time.Duration
}

// NewStreamHandler constructs handler.
func NewStreamHandler(registry *push.Registry, cfg config.NotificationConfig, logger *zap.Logger) *StreamHandler {
	heartbeat := time.Duration(cfg.HeartbeatSeconds) * time.Second
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}
	return &StreamHandler{registry: registry, logger: logger, heartbeat: heartbeat}
}

// Stream GET /notifications/stream. Holds the connection open and writes
// one SSE event per committed notification addressed to the caller.
// Missed events are not replayed here; clients re-fetch the unread list
// on connect.
func (h *StreamHandler) Stream(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	sub := h.registry.Subscribe(actor.ID)
	logger := h.logger.With(zap.String("user_id", actor.ID))
	heartbeat := h.heartbeat

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer h.registry.Unsubscribe(sub)
		logger.Debug("notification stream opened")

		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()

		for {
			select {
			case n, ok := <-sub.C():
				if !ok {
					return
				}
				body, err := json.Marshal(notificationResponse(n))
				if err != nil {
					logger.Warn("encode stream notification", zap.Error(err))
					continue
				}
				fmt.Fprintf(w, "event: notification_created\ndata: %s\n\n", body)
			case <-ticker.C:
				fmt.Fprint(w, ": heartbeat\n\n")
			}
			if err := w.Flush(); err != nil {
				logger.Debug("notification stream closed", zap.Error(err))
				return
			}
		}
	}))
	return nil
}
