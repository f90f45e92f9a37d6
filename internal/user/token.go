package user

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// IssueAccessToken signs an HS256 bearer token for the user.
func IssueAccessToken(secret string, u *User, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"user_id": u.ID,
		"email":   u.Email,
		"exp":     time.Now().Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
