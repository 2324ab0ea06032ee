package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nansalmad/thriftshop/internal/identity"
)

const (
	// ContextKeyOwner holds the resolved OwnerKey in Gin context.
	ContextKeyOwner = "ownerKey"
	// SessionHeader carries the guest session token both ways.
	SessionHeader = "X-Session-ID"
)

// SessionMiddleware resolves the acting owner of the request: the JWT user
// when one was authenticated upstream, otherwise a Redis-backed guest
// session. A freshly minted session token is handed back to the client in
// the response header. Must run after the auth middleware.
func SessionMiddleware(resolver identity.IResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := CurrentUserID(c)
		sessionToken := c.GetHeader(SessionHeader)

		owner, isNew, err := resolver.Resolve(c.Request.Context(), userID, sessionToken)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve session"})
			return
		}
		if isNew {
			c.Header(SessionHeader, owner.SessionToken)
		}

		c.Set(ContextKeyOwner, owner)
		c.Next()
	}
}

// CurrentOwner returns the resolved OwnerKey from the context. The zero key
// means the session middleware did not run on this route.
func CurrentOwner(c *gin.Context) identity.OwnerKey {
	if v, exists := c.Get(ContextKeyOwner); exists {
		if owner, ok := v.(identity.OwnerKey); ok {
			return owner
		}
	}
	return identity.OwnerKey{}
}
