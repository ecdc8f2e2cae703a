// Package middleware provides Gin HTTP middleware for authentication,
// authorization, rate limiting, security headers, and request tracing.
//
// Middleware ordering matters and is enforced in router.go:
//
//	Security → RateLimit → Auth → Privilege → Handler
//
// Security headers run first so they appear on all responses including errors.
// Rate limiting runs before auth to block brute-force attacks before any DB
// work. Auth populates the actor identity; the privilege gate reads from that
// context. Mutations are audited inside the gateway after validation, so
// there is no audit middleware in this chain.
package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tavernkeep/tavernkeep/internal/auth"
	"github.com/tavernkeep/tavernkeep/internal/safego"
)

// AuthMiddleware validates authentication (session JWT or API key).
func AuthMiddleware(keys *auth.APIKeyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing authorization header",
			})
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header must start with 'Bearer '",
			})
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization token is empty",
			})
			return
		}

		// JWT validation is attempted first because it is entirely stateless,
		// a cryptographic check against the shared secret with no database
		// round-trip. API key validation always requires a DB query plus a
		// bcrypt comparison, so JWT is the lower-latency path for browser
		// sessions.
		if claims, err := auth.ValidateJWT(token); err == nil {
			c.Set("user_id", claims.UserID)
			c.Set("user_name", claims.Username)
			c.Set("auth_method", "jwt")
			c.Next()
			return
		}

		// Try API key. The raw key is never stored, only its bcrypt hash. The
		// 10-character prefix is stored plaintext alongside the hash so a fast
		// indexed query narrows the candidate set before the expensive bcrypt
		// comparison runs.
		keyPrefix := token
		if len(token) > auth.DisplayPrefixLength {
			keyPrefix = token[:auth.DisplayPrefixLength]
		}
		apiKey, err := authenticateAPIKey(c.Request.Context(), token, keyPrefix, keys)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "Authentication failed",
			})
			return
		}

		if apiKey != nil {
			if apiKey.ExpiresAt != nil && time.Now().After(*apiKey.ExpiresAt) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": "API key expired",
				})
				return
			}

			// Last-used tracking is best-effort, fire and forget. The timeout
			// prevents leaked goroutines if the DB is temporarily unreachable.
			safego.Go("api key last-used update", func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = keys.UpdateLastUsed(ctx, apiKey.ID)
			})

			c.Set("api_key_id", apiKey.ID)
			c.Set("user_id", apiKey.CreatedBy)
			c.Set("user_name", apiKey.Name)
			c.Set("auth_method", "api_key")
			c.Next()
			return
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "Invalid credentials",
		})
	}
}

// authenticateAPIKey attempts to authenticate an API key by prefix lookup
// and bcrypt validation.
func authenticateAPIKey(ctx context.Context, providedKey, keyPrefix string, keys *auth.APIKeyStore) (*auth.APIKey, error) {
	candidates, err := keys.GetByPrefix(ctx, keyPrefix)
	if err != nil {
		return nil, err
	}
	for _, key := range candidates {
		if auth.ValidateAPIKey(providedKey, key.KeyHash) {
			return key, nil
		}
	}
	return nil, nil
}
