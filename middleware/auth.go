package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sharath018/calendar-backend/config"
	"github.com/sharath018/calendar-backend/internal/user"
)

// UserLookup resolves the token subject to a live account.
type UserLookup interface {
	GetByID(ctx context.Context, id uint) (*user.User, error)
}

// AuthMiddleware verifies the bearer token and stores the caller in the
// context under "user" and "user_id".
func AuthMiddleware(cfg *config.Config, users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing Authorization header"})
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid Authorization header"})
			return
		}

		token, err := jwt.Parse(parts[1], func(t *jwt.Token) (interface{}, error) {
			return []byte(cfg.JWTAccessSecret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid claims"})
			return
		}

		userIDFloat, ok := claims["user_id"].(float64)
		if !ok || userIDFloat < 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user_id missing in token"})
			return
		}

		u, err := users.GetByID(c.Request.Context(), uint(userIDFloat))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}

		c.Set("user", u)
		c.Set("user_id", u.ID)
		c.Next()
	}
}

// UserID returns the authenticated caller. It writes a 401 and reports
// false when the route was mounted without AuthMiddleware.
func UserID(c *gin.Context) (uint, bool) {
	if v, exists := c.Get("user_id"); exists {
		if id, ok := v.(uint); ok && id > 0 {
			return id, true
		}
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
	return 0, false
}

// CurrentUser returns the account loaded by AuthMiddleware, or nil.
func CurrentUser(c *gin.Context) *user.User {
	if v, exists := c.Get("user"); exists {
		if u, ok := v.(*user.User); ok {
			return u
		}
	}
	return nil
}
