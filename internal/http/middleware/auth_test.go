package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func serveAuth(t *testing.T, secret, authHeader string) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/scheduling/services", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	called := false
	APIAuth(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, req)
	return rec, called
}

func TestAPIAuthMissingSecret(t *testing.T) {
	rec, called := serveAuth(t, "", "Bearer anything")
	if called || rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without secret, got %d", rec.Code)
	}
}

func TestAPIAuthMissingHeader(t *testing.T) {
	rec, called := serveAuth(t, "secret", "")
	if called || rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q", ct)
	}
}

func TestAPIAuthStaticKey(t *testing.T) {
	rec, called := serveAuth(t, "secret", "Bearer secret")
	if !called || rec.Code != http.StatusOK {
		t.Fatalf("expected static key to pass, got %d", rec.Code)
	}

	rec, called = serveAuth(t, "secret", "Bearer secret2")
	if called || rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected wrong key to fail, got %d", rec.Code)
	}
}

func TestAPIAuthJWT(t *testing.T) {
	rec, called := serveAuth(t, "secret", "Bearer "+signedToken(t, "secret", time.Now().Add(5*time.Minute)))
	if !called || rec.Code != http.StatusOK {
		t.Fatalf("expected valid token to pass, got %d", rec.Code)
	}

	rec, called = serveAuth(t, "secret", "Bearer "+signedToken(t, "wrong", time.Now().Add(5*time.Minute)))
	if called || rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected foreign token to fail, got %d", rec.Code)
	}

	rec, called = serveAuth(t, "secret", "Bearer "+signedToken(t, "secret", time.Now().Add(-time.Minute)))
	if called || rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected expired token to fail, got %d", rec.Code)
	}
}

func TestAPIAuthClaimsInContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, "secret", time.Now().Add(time.Minute)))
	rec := httptest.NewRecorder()

	APIAuth("secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok || claims.Subject != "operator" {
			t.Fatalf("expected claims in context, got %+v", claims)
		}
	})).ServeHTTP(rec, req)
}

func signedToken(t *testing.T, secret string, expires time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   "operator",
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}
