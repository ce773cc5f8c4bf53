package api

import (
	"io"

	"github.com/gin-gonic/gin"

	"github.com/Time-Craft/time-crafting-hub/internal/notify"
	"github.com/Time-Craft/time-crafting-hub/internal/realtime"
)

// StreamEvents pushes the caller's slice of the change feed over SSE: raw
// "change" events for cache reconciliation, plus "notification" events where
// a change warrants a user-visible message. The subscription is torn down
// when the client disconnects; nothing leaks across requests.
func (h *Handler) StreamEvents(c *gin.Context) {
	userID := h.currentUserID(c)

	sub := h.broker.Subscribe(realtime.FilterUser(userID))
	defer h.broker.Unsubscribe(sub)

	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-sub.C:
			if !ok {
				return false
			}
			c.SSEvent("change", ev)
			if notification, relevant := notify.ForUser(userID, ev); relevant {
				c.SSEvent("notification", notification)
			}
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
