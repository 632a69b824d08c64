package api

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

func signTestToken(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func testAuth(secret []byte) *Auth {
	return &Auth{
		Audience:   "api://aud",
		Issuer:     "https://issuer/",
		TestMode:   true,
		TestSecret: secret,
		parser:     jwt.NewParser(jwt.WithValidMethods([]string{"HS256"})),
	}
}

func TestBearerTokenFromStringSuccess(t *testing.T) {
	token, err := bearerTokenFromString("Bearer header.payload.signature")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(token) != "header.payload.signature" {
		t.Fatalf("unexpected token content: %s", string(token))
	}
}

func TestBearerTokenFromStringManyPeriods(t *testing.T) {
	header := "Bearer " + strings.Repeat(".", 1000)
	if _, err := bearerTokenFromString(header); err == nil || err.Error() != "bad auth header" {
		t.Fatalf("expected bad auth header error, got %v", err)
	}
}

func TestIdentityFromBearerHS256(t *testing.T) {
	secret := []byte("test-secret")
	signed := signTestToken(t, secret, jwt.MapClaims{
		"sub":   "user-123",
		"name":  "Dana",
		"admin": true,
		"aud":   "api://aud",
		"iss":   "https://issuer/",
		"exp":   time.Now().Add(5 * time.Minute).Unix(),
		"nbf":   time.Now().Add(-time.Minute).Unix(),
		"iat":   time.Now().Add(-time.Minute).Unix(),
	})

	identity, err := testAuth(secret).IdentityFromBearer([]byte(signed))
	if err != nil {
		t.Fatalf("unexpected error verifying token: %v", err)
	}
	if identity.ID != "user-123" {
		t.Fatalf("unexpected identity id: %s", identity.ID)
	}
	if identity.DisplayName != "Dana" {
		t.Fatalf("unexpected display name: %s", identity.DisplayName)
	}
	if !identity.IsAdmin {
		t.Fatal("expected admin identity")
	}
}

func TestIdentityFromBearerDisplayNameFallsBackToSub(t *testing.T) {
	secret := []byte("test-secret")
	signed := signTestToken(t, secret, jwt.MapClaims{
		"sub": "user-9",
		"aud": "api://aud",
		"iss": "https://issuer/",
		"exp": time.Now().Add(5 * time.Minute).Unix(),
	})

	identity, err := testAuth(secret).IdentityFromBearer([]byte(signed))
	if err != nil {
		t.Fatalf("unexpected error verifying token: %v", err)
	}
	if identity.DisplayName != "user-9" {
		t.Fatalf("expected display name to fall back to sub, got %s", identity.DisplayName)
	}
}

func TestIdentityFromBearerExpired(t *testing.T) {
	secret := []byte("test-secret")
	signed := signTestToken(t, secret, jwt.MapClaims{
		"sub": "user-123",
		"aud": "api://aud",
		"iss": "https://issuer/",
		"exp": time.Now().Add(-10 * time.Minute).Unix(),
	})

	if _, err := testAuth(secret).IdentityFromBearer([]byte(signed)); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestIdentityFromAuthHeaderMissing(t *testing.T) {
	if _, err := testAuth([]byte("s")).IdentityFromAuthHeader(""); err == nil || err.Error() != "missing authorization header" {
		t.Fatalf("expected missing header error, got %v", err)
	}
}
