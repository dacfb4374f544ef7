package rbac

import (
	"net/http"

	"pbx-console/internal/auth"

	"github.com/gin-gonic/gin"
)

// RequireAccount enforces the multi-tenant invariant: account_code must exist
// in context. It does not validate that the account exists; that belongs to
// the directory layer.
func RequireAccount() gin.HandlerFunc {
	return func(c *gin.Context) {
		code, err := auth.AccountCode(c.Request.Context())
		if err != nil || code == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "account_code required"})
			return
		}
		c.Next()
	}
}

// RequireAnyRole allows access if the caller has any of the provided roles.
// admin bypasses all checks; tenant isolation is enforced via RequireAccount
// (use it in the chain).
func RequireAnyRole(allowed ...string) gin.HandlerFunc {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, r := range allowed {
		allowedSet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		role, err := auth.Role(c.Request.Context())
		if err != nil || role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "role required"})
			return
		}

		if IsAdmin(role) {
			c.Next()
			return
		}

		if _, ok := allowedSet[role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

// RequireAgentExtension ensures agent callers carry the extension claim their
// scoped views depend on. Non-agent roles pass through.
func RequireAgentExtension() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, err := auth.Role(c.Request.Context())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "role required"})
			return
		}
		if role == RoleAgent && auth.Extension(c.Request.Context()) == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "agent token missing extension"})
			return
		}
		c.Next()
	}
}
