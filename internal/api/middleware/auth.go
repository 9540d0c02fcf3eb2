// server/internal/api/middleware/auth.go
package middleware

import (
	"net/http"
	"strings"

	"freshchain-ledger-server/internal/auth"
	"freshchain-ledger-server/internal/ledger"

	"github.com/gin-gonic/gin"
)

// Keys set on the gin context by Authenticate.
const (
	CallerAddressKey = "caller_address"
	UserEmailKey     = "user_email"
	AccountRoleKey   = "account_role"
)

// Authenticate validates the bearer token and puts the caller's identity into the context.
func Authenticate(issuer *auth.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token format"})
			return
		}

		claims, caller, err := issuer.Parse(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(CallerAddressKey, caller)
		c.Set(UserEmailKey, claims.Email)
		c.Set(AccountRoleKey, claims.AccountRole)

		c.Next()
	}
}

// Authorize checks the account role set by Authenticate against allowedRoles.
func Authorize(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRoleInterface, exists := c.Get(AccountRoleKey)
		if !exists {
			// Authenticate must run first
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "User role not found in context"})
			return
		}

		userRole, ok := userRoleInterface.(string)
		if !ok {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "User role has an invalid type"})
			return
		}

		for _, role := range allowedRoles {
			if role == userRole {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "You do not have permission to access this resource"})
	}
}

// Caller returns the authenticated ledger address. ok is false when Authenticate did not run.
func Caller(c *gin.Context) (addr ledger.Address, ok bool) {
	v, exists := c.Get(CallerAddressKey)
	if !exists {
		return ledger.ZeroAddress, false
	}
	addr, ok = v.(ledger.Address)
	return addr, ok
}
