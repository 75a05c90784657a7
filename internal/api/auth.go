package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const claimsKey = "claims"

// Claims are the JWT claims the service understands. CanTrigger gates the
// mutating endpoints (job creation, stops, imports, scheduler writes).
type Claims struct {
	Sub        string `json:"sub"`
	CanTrigger bool   `json:"can_trigger"`
	jwt.RegisteredClaims
}

// AuthMiddleware validates HMAC bearer tokens and stores the claims on the
// context. An empty secret disables authentication entirely, so local
// development runs open.
func AuthMiddleware(secret string) gin.HandlerFunc {
	if secret == "" {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			c.Abort()
			return
		}

		token, err := jwt.ParseWithClaims(parts[1], &Claims{}, func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("invalid signing method")
			}
			return []byte(secret), nil
		})
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		claims, ok := token.Claims.(*Claims)
		if !ok || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

// RequireTrigger rejects tokens without the can_trigger claim. It sits
// behind AuthMiddleware on mutating routes and is likewise a no-op when
// authentication is disabled.
func RequireTrigger(secret string) gin.HandlerFunc {
	if secret == "" {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		claims, ok := GetClaims(c)
		if !ok || !claims.CanTrigger {
			c.JSON(http.StatusForbidden, gin.H{"error": "token lacks the can_trigger permission"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetClaims extracts the validated claims from the gin context.
func GetClaims(c *gin.Context) (*Claims, bool) {
	claims, exists := c.Get(claimsKey)
	if !exists {
		return nil, false
	}
	cl, ok := claims.(*Claims)
	return cl, ok
}
