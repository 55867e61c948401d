package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/cancelmem/cancelmem-backend/pkg/config"
)

func testConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret: "secret",
		Issuer:    "https://project.supabase.co/auth/v1",
		Audience:  "authenticated",
	}
}

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := testConfig()
	userID := uuid.New()

	token, err := MintAccessToken(cfg, time.Now(), time.Hour, AccessTokenPayload{UserID: userID, Email: "me@example.com"})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	claims, err := ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	got, err := claims.UserID()
	if err != nil || got != userID {
		t.Fatalf("expected user %s, got %s (%v)", userID, got, err)
	}
	if claims.Email != "me@example.com" {
		t.Fatalf("unexpected email %q", claims.Email)
	}
	if claims.Role != "authenticated" {
		t.Fatalf("expected default role, got %q", claims.Role)
	}
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	cfg := testConfig()
	token, err := MintAccessToken(cfg, time.Now().Add(-2*time.Hour), time.Hour, AccessTokenPayload{UserID: uuid.New()})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := ParseAccessToken(cfg, token); err == nil {
		t.Fatal("expected expired token to fail")
	}
}

func TestParseAccessTokenRejectsWrongAudience(t *testing.T) {
	cfg := testConfig()
	token, err := MintAccessToken(config.AuthConfig{JWTSecret: cfg.JWTSecret, Issuer: cfg.Issuer, Audience: "anon"}, time.Now(), time.Hour, AccessTokenPayload{UserID: uuid.New()})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := ParseAccessToken(cfg, token); err == nil {
		t.Fatal("expected audience mismatch to fail")
	}
}

func TestParseAccessTokenRejectsBadSubject(t *testing.T) {
	cfg := testConfig()
	claims := AccessTokenClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "not-a-uuid",
		Issuer:    cfg.Issuer,
		Audience:  jwt.ClaimStrings{cfg.Audience},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseAccessToken(cfg, token); err == nil || !strings.Contains(err.Error(), "subject") {
		t.Fatalf("expected subject error, got %v", err)
	}
}

func TestParseAccessTokenRejectsOtherSecret(t *testing.T) {
	cfg := testConfig()
	token, err := MintAccessToken(cfg, time.Now(), time.Hour, AccessTokenPayload{UserID: uuid.New()})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	cfg.JWTSecret = "other"
	if _, err := ParseAccessToken(cfg, token); err == nil {
		t.Fatal("expected signature failure")
	}
}

func TestMintAccessTokenValidation(t *testing.T) {
	if _, err := MintAccessToken(config.AuthConfig{}, time.Now(), time.Hour, AccessTokenPayload{UserID: uuid.New()}); err == nil {
		t.Fatal("expected missing secret error")
	}
	if _, err := MintAccessToken(testConfig(), time.Now(), time.Hour, AccessTokenPayload{}); err == nil {
		t.Fatal("expected missing user error")
	}
}

func TestParseAccessTokenRejectsServiceRole(t *testing.T) {
	cfg := testConfig()
	token, err := MintAccessToken(cfg, time.Now(), time.Hour, AccessTokenPayload{UserID: uuid.New(), Role: "service_role"})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := ParseAccessToken(cfg, token); !errors.Is(err, ErrRoleNotAllowed) {
		t.Fatalf("expected role rejection, got %v", err)
	}
}
