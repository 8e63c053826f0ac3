package backend

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/nhle/bizdesk/internal/model"
)

// tokenTTL is the lifetime of development tokens.
const tokenTTL = 24 * time.Hour

const (
	ctxUserID   = "user_id"
	ctxUserType = "user_type"
)

// Claims is the JWT payload issued by the development backend.
type Claims struct {
	jwt.RegisteredClaims
	UserID   string         `json:"user_id"`
	UserType model.UserType `json:"user_type"`
}

// GenerateToken signs an HS256 token for userID.
func GenerateToken(secret, userID string, userType model.UserType) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "bizdesk-dev",
			Subject:   userID,
		},
		UserID:   userID,
		UserType: userType,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// ParseToken validates a signed token and returns its claims.
func ParseToken(secret, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}
	if !token.Valid || claims.UserID == "" {
		return nil, fmt.Errorf("parsing token: missing user_id")
	}
	return claims, nil
}

// requireAuth rejects requests without a valid bearer token and stores the
// caller's identity in the context.
func requireAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			return
		}

		tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "bearer token required"})
			return
		}

		claims, err := ParseToken(secret, tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxUserType, string(claims.UserType))
		c.Next()
	}
}

// userID returns the authenticated caller set by requireAuth.
func userID(c *gin.Context) string {
	return c.GetString(ctxUserID)
}
