package api

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

func testModeAuth(t *testing.T, secret string) *Auth {
	t.Helper()
	t.Setenv(envAuthTestMode, "1")
	t.Setenv(envTestJWTSecret, secret)
	return NewAuth(nil, "", "")
}

func mintToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestAuthTestModeAcceptsSignedToken(t *testing.T) {
	a := testModeAuth(t, "s3cret")
	token := mintToken(t, "s3cret", jwt.MapClaims{
		"sub": "auth0|u1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	sub, err := a.UserIDFromAuthHeader("Bearer " + token)
	if err != nil {
		t.Fatalf("expected token to verify, got %v", err)
	}
	if sub != "auth0|u1" {
		t.Fatalf("expected sub auth0|u1, got %q", sub)
	}
}

func TestAuthRejectsWrongSecret(t *testing.T) {
	a := testModeAuth(t, "s3cret")
	token := mintToken(t, "other-secret", jwt.MapClaims{
		"sub": "auth0|u1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	if _, err := a.UserIDFromAuthHeader("Bearer " + token); err == nil {
		t.Fatal("expected signature verification to fail")
	}
}

func TestAuthRejectsExpiredToken(t *testing.T) {
	a := testModeAuth(t, "s3cret")
	token := mintToken(t, "s3cret", jwt.MapClaims{
		"sub": "auth0|u1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	if _, err := a.UserIDFromAuthHeader("Bearer " + token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestAuthRejectsMissingSub(t *testing.T) {
	a := testModeAuth(t, "s3cret")
	token := mintToken(t, "s3cret", jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	if _, err := a.UserIDFromAuthHeader("Bearer " + token); err == nil {
		t.Fatal("expected token without sub to be rejected")
	}
}

func TestAuthRejectsMalformedHeaders(t *testing.T) {
	a := testModeAuth(t, "s3cret")
	for _, h := range []string{"", "Bearer", "Basic abc", "Bearer not-a-jwt", "Bearer a.b"} {
		if _, err := a.UserIDFromAuthHeader(h); err == nil {
			t.Fatalf("expected header %q to be rejected", h)
		}
	}
}

func TestAuthBearerIsCaseInsensitive(t *testing.T) {
	a := testModeAuth(t, "s3cret")
	token := mintToken(t, "s3cret", jwt.MapClaims{
		"sub": "auth0|u1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	if _, err := a.UserIDFromAuthHeader("bearer " + token); err != nil {
		t.Fatalf("expected lowercase scheme to be accepted, got %v", err)
	}
}
