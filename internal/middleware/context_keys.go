package middleware

import (
	"net/http"

	"github.com/SscSPs/payment_ledger/internal/auditcontext"
	"github.com/SscSPs/payment_ledger/internal/core/domain"
	"github.com/gin-gonic/gin"
)

// Headers the gateway sets after authenticating the caller.
const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorKind = "X-Actor-Kind"
)

// actorKey is the key used to store the acting party in the Gin context.
const actorKey = contextKey("actor")

// ActorMiddleware puts the authenticated caller named by the gateway headers into both the Gin and
// the request context, where services read it for audit rows. Requests without the headers are
// audited as domain.AnonymousActor and stay unauthenticated for RequireAdmin. A caller can never
// claim to be the system.
func ActorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderActorID)
		if id == "" {
			c.Request = c.Request.WithContext(auditcontext.WithActor(c.Request.Context(), domain.AnonymousActor))
			c.Next()
			return
		}
		kind := domain.ActorKind(c.GetHeader(HeaderActorKind))
		if kind != domain.ActorAdmin {
			kind = domain.ActorMember
		}
		actor := domain.Actor{ID: id, Kind: kind}
		c.Set(string(actorKey), actor)
		c.Request = c.Request.WithContext(auditcontext.WithActor(c.Request.Context(), actor))
		c.Next()
	}
}

// GetActorFromContext retrieves the caller stored by ActorMiddleware.
func GetActorFromContext(c *gin.Context) (domain.Actor, bool) {
	val, exists := c.Get(string(actorKey))
	if !exists {
		return domain.Actor{}, false
	}
	actor, ok := val.(domain.Actor)
	return actor, ok
}

// RequireAdmin rejects callers that are not operators.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := GetActorFromContext(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		if actor.Kind != domain.ActorAdmin {
			GetLoggerFromContext(c).Warn("Non admin attempted an admin action", "actor_id", actor.ID)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}
		c.Next()
	}
}
