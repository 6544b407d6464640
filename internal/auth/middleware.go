package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// CookieName is where the HTTP layer stores the signed token.
const CookieName = "rollcall_token"

const claimsKey = "claims"

// RequireRole gates a route group to callers holding a valid token with
// the given role. The token is read from the auth cookie, with a bearer
// header fallback for non-browser clients. Verified claims are set on the
// request context so handlers know who is calling without any ambient state.
func RequireRole(role, signingKey, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := tokenFromRequest(c)
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		claims, err := Parse(tokenStr, signingKey, issuer)
		if err != nil || claims.Role != role {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// Identity returns the verified claims set by RequireRole.
func Identity(c *gin.Context) Claims {
	claimsAny, _ := c.Get(claimsKey)
	claims, _ := claimsAny.(Claims)
	return claims
}

func tokenFromRequest(c *gin.Context) string {
	if cookie, err := c.Cookie(CookieName); err == nil && cookie != "" {
		return cookie
	}
	authz := c.GetHeader("Authorization")
	if authz != "" && strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return strings.TrimSpace(authz[len("bearer "):])
	}
	return ""
}
