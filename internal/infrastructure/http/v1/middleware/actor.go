package middleware

import (
	"github.com/gin-gonic/gin"

	appctx "stockforge/internal/core/context"
)

// HeaderActorID carries the opaque caller identity.
const HeaderActorID = "X-Actor-ID"

// Actor middleware extracts the caller identity into the request context.
// The identity is recorded on every adjustment but never authenticated here.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID := c.GetHeader(HeaderActorID)
		if actorID != "" {
			ctx := appctx.WithActor(c.Request.Context(), &appctx.ActorContext{
				ActorID: actorID,
				Source:  "api",
			})
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}
