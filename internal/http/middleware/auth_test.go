// README: Tests for JWT auth middleware and role gating.
package middleware_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"

	"transit/internal/http/middleware"
)

// stubVerifier is a test double for middleware.TokenVerifier.
type stubVerifier struct {
	claims *middleware.Claims
	err    error
}

func (s *stubVerifier) Verify(_ string) (*middleware.Claims, error) {
	return s.claims, s.err
}

func newTestRouter(verifier middleware.TokenVerifier, roles ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers := []gin.HandlerFunc{middleware.Auth(verifier)}
	if len(roles) > 0 {
		handlers = append(handlers, middleware.RequireRole(roles...))
	}
	handlers = append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user":    middleware.CallerUsername(c),
			"role":    middleware.CallerRole(c),
			"vehicle": middleware.CallerVehicle(c),
		})
	})
	r.GET("/test", handlers...)
	return r
}

func request(r *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth_MissingHeader(t *testing.T) {
	r := newTestRouter(&stubVerifier{claims: &middleware.Claims{Username: "u", Role: "driver"}})
	if w := request(r, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuth_InvalidBearerPrefix(t *testing.T) {
	r := newTestRouter(&stubVerifier{claims: &middleware.Claims{Username: "u", Role: "driver"}})
	if w := request(r, "Token sometoken"); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuth_VerifierError(t *testing.T) {
	r := newTestRouter(&stubVerifier{err: errors.New("bad token")})
	if w := request(r, "Bearer invalid"); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuth_ValidToken_IdentityPopulated(t *testing.T) {
	r := newTestRouter(&stubVerifier{claims: &middleware.Claims{
		Username: "driver3", Role: "driver", Vehicle: "veh3",
	}})
	w := request(r, "Bearer validtoken")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{"driver3", "driver", "veh3"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in body, got %s", want, body)
		}
	}
}

func TestRequireRole_WrongRole(t *testing.T) {
	r := newTestRouter(&stubVerifier{claims: &middleware.Claims{
		Username: "driver1", Role: "driver",
	}}, "dispatcher")
	if w := request(r, "Bearer validtoken"); w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}
}

func TestRequireRole_MatchingRole(t *testing.T) {
	r := newTestRouter(&stubVerifier{claims: &middleware.Claims{
		Username: "dispatcher", Role: "dispatcher",
	}}, "dispatcher")
	if w := request(r, "Bearer validtoken"); w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestRequireRole_AdminPassesEverywhere(t *testing.T) {
	r := newTestRouter(&stubVerifier{claims: &middleware.Claims{
		Username: "admin", Role: "admin",
	}}, "driver")
	if w := request(r, "Bearer validtoken"); w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func TestJWTVerifier_RoundTrip(t *testing.T) {
	v := &middleware.JWTVerifier{Secret: "test-secret"}
	token := signToken(t, "test-secret", jwt.MapClaims{
		"user_id":    "u1",
		"username":   "driver5",
		"role":       "driver",
		"vehicle_id": "veh5",
	})
	claims, err := v.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Username != "driver5" || claims.Role != "driver" || claims.Vehicle != "veh5" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestJWTVerifier_WrongSecret(t *testing.T) {
	v := &middleware.JWTVerifier{Secret: "right-secret"}
	token := signToken(t, "wrong-secret", jwt.MapClaims{"username": "u", "role": "driver"})
	if _, err := v.Verify(token); err == nil {
		t.Fatal("expected verification failure with wrong secret")
	}
}

func TestJWTVerifier_MissingIdentity(t *testing.T) {
	v := &middleware.JWTVerifier{Secret: "test-secret"}
	token := signToken(t, "test-secret", jwt.MapClaims{"user_id": "u1"})
	if _, err := v.Verify(token); err == nil {
		t.Fatal("expected rejection of token without username/role claims")
	}
}
