package handler

import (
	"io"

	"identity-gate/internal/identity"

	"github.com/gin-gonic/gin"
)

const snapshotEvent = "snapshot"

// IdentityStream pushes every identity transition as a server-sent event
// until the client leaves or the resolver stops.
func (h *Handler) IdentityStream(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Header("X-Accel-Buffering", "no")

	r, ok := identity.ResolverFromContext(c.Request.Context())
	if !ok {
		c.SSEvent(snapshotEvent, identity.SignedOut())
		return
	}

	updates, unsubscribe := r.Subscribe()
	defer unsubscribe()

	done := c.Request.Context().Done()
	c.Stream(func(w io.Writer) bool {
		select {
		case snap, ok := <-updates:
			if !ok {
				return false
			}
			c.SSEvent(snapshotEvent, snap)
			return true
		case <-done:
			return false
		}
	})
}
