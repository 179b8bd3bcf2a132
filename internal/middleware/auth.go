package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/sirupsen/logrus"
)

// IdentityKey is the gin context key under which the verified identity is
// stored. The token itself is issued and managed by the upstream identity
// provider; this middleware only verifies the signature and extracts the
// opaque identity claim.
const IdentityKey = "identity"

// ErrMissingAuthHeader indicates no Authorization header was sent.
var ErrMissingAuthHeader = errors.New("missing Authorization header")

// Auth returns a gin middleware that verifies the Bearer JWT and stores
// the caller's identity in the request context.
func Auth(jwtSecret string) gin.HandlerFunc {
	if jwtSecret == "" {
		panic("JWT secret cannot be empty for Auth middleware")
	}

	return func(c *gin.Context) {
		tokenStr, err := extractToken(c)
		if err != nil {
			if errors.Is(err, ErrMissingAuthHeader) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			} else {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token format"})
			}
			c.Abort()
			return
		}

		claims, err := validateToken(tokenStr, jwtSecret)
		if err != nil {
			logrus.WithError(err).Warn("Auth middleware: Invalid token")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		identity := identityFromClaims(claims)
		if identity == "" {
			logrus.Error("Auth middleware: identity claim missing in token")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Token carries no identity"})
			c.Abort()
			return
		}

		c.Set(IdentityKey, identity)
		c.Next()
	}
}

// Identity returns the verified identity for the current request.
func Identity(c *gin.Context) (string, bool) {
	value, exists := c.Get(IdentityKey)
	if !exists {
		return "", false
	}
	identity, ok := value.(string)
	return identity, ok && identity != ""
}

// identityFromClaims pulls the opaque identity out of the token, trying
// the claims different upstream providers use.
func identityFromClaims(claims jwt.MapClaims) string {
	for _, key := range []string{"identity", "email", "sub"} {
		if value, ok := claims[key].(string); ok && value != "" {
			return value
		}
	}
	return ""
}

func extractToken(c *gin.Context) (string, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		// WebSocket clients cannot set headers from the browser; accept
		// the token as a query parameter there.
		if token := c.Query("token"); token != "" {
			return token, nil
		}
		return "", ErrMissingAuthHeader
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", jwt.ErrTokenMalformed
	}
	return parts[1], nil
}

func validateToken(tokenStr, secret string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}
	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrTokenInvalidClaims
}
