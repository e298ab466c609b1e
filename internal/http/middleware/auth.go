// README: JWT auth middleware; populates caller identity on the gin context.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
)

const (
	ctxUserKey    = "auth.user"
	ctxRoleKey    = "auth.role"
	ctxVehicleKey = "auth.vehicle"
)

// Claims is the verified caller identity used by downstream handlers.
type Claims struct {
	UserID   string
	Username string
	Role     string
	Vehicle  string
}

// TokenVerifier verifies a raw bearer token string.
type TokenVerifier interface {
	Verify(token string) (*Claims, error)
}

// JWTVerifier is the production TokenVerifier backed by an HS256 secret.
type JWTVerifier struct {
	Secret string
}

func (v *JWTVerifier) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(v.Secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid claims")
	}
	c := &Claims{}
	c.UserID, _ = mc["user_id"].(string)
	c.Username, _ = mc["username"].(string)
	c.Role, _ = mc["role"].(string)
	c.Vehicle, _ = mc["vehicle_id"].(string)
	if c.Username == "" || c.Role == "" {
		return nil, errors.New("token missing identity claims")
	}
	return c, nil
}

// Auth rejects requests without a valid bearer token and stores the
// caller identity for handlers.
func Auth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		claims, err := verifier.Verify(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(ctxUserKey, claims.Username)
		c.Set(ctxRoleKey, claims.Role)
		c.Set(ctxVehicleKey, claims.Vehicle)
		c.Next()
	}
}

// RequireRole gates a route to the given roles; admin passes everywhere.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := CallerRole(c)
		if role == "admin" {
			c.Next()
			return
		}
		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
	}
}

func CallerUsername(c *gin.Context) string {
	v, _ := c.Get(ctxUserKey)
	s, _ := v.(string)
	return s
}

func CallerRole(c *gin.Context) string {
	v, _ := c.Get(ctxRoleKey)
	s, _ := v.(string)
	return s
}

func CallerVehicle(c *gin.Context) string {
	v, _ := c.Get(ctxVehicleKey)
	s, _ := v.(string)
	return s
}
