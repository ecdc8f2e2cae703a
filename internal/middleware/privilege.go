// privilege.go gates the admin surface on Discord staff roles. Every admin
// request re-checks the actor's privilege through the cached role-lookup
// verdicts so a revoked role takes effect within the cache TTL, not at the
// next login.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tavernkeep/tavernkeep/internal/auth"
)

// RequirePrivilege returns middleware that rejects requests from actors
// without a privileged guild role. It must run after AuthMiddleware, which
// populates user_id. API key actors bypass the role lookup because keys are
// only issued to the game bot itself.
func RequirePrivilege(checker *auth.PrivilegeChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if method, _ := c.Get("auth_method"); method == "api_key" {
			c.Next()
			return
		}

		userID := c.GetString("user_id")
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authentication required",
			})
			return
		}

		allowed, err := checker.IsPrivileged(c.Request.Context(), userID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error": "Unable to verify permissions",
			})
			return
		}
		if !allowed {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Admin privileges required",
			})
			return
		}

		c.Next()
	}
}
