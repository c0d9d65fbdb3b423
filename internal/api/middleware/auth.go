package middleware

import (
	"net/http"
	"strings"

	"github.com/example/ec-storefront/internal/apperr"
	"github.com/example/ec-storefront/internal/auth"
	"github.com/gin-gonic/gin"
)

// AccessTokenCookie carries the access token for browser clients.
const AccessTokenCookie = "access_token"

const claimsKey = "auth.claims"

// abort writes the API error envelope and stops the chain.
func abort(c *gin.Context, status int, kind apperr.Kind, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error": gin.H{"kind": kind, "message": message},
	})
}

// ExtractToken extracts JWT token from cookie or Authorization header
func ExtractToken(r *http.Request) string {
	// Try cookie first (for browser)
	if cookie, err := r.Cookie(AccessTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	// Fall back to Authorization header (for API clients)
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

// AuthMiddleware validates JWT tokens and stores the claims on the context
func AuthMiddleware(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ExtractToken(c.Request)
		if tokenString == "" {
			abort(c, http.StatusUnauthorized, apperr.KindUnauthorized, "unauthorized")
			return
		}

		claims, err := jwtService.ValidateAccessToken(tokenString)
		if err != nil {
			abort(c, http.StatusUnauthorized, apperr.KindUnauthorized, err.Error())
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

// RequireRole checks if the account has one of the required roles
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := GetClaims(c)
		if !ok {
			abort(c, http.StatusUnauthorized, apperr.KindUnauthorized, "unauthorized")
			return
		}

		for _, role := range roles {
			if claims.Role == role {
				c.Next()
				return
			}
		}

		abort(c, http.StatusForbidden, apperr.KindUnauthorized, "forbidden")
	}
}

// GetClaims retrieves the token claims set by AuthMiddleware
func GetClaims(c *gin.Context) (*auth.Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*auth.Claims)
	return claims, ok
}

// GetAccountID is a helper to get just the account ID
func GetAccountID(c *gin.Context) string {
	claims, ok := GetClaims(c)
	if !ok {
		return ""
	}
	return claims.AccountID
}
