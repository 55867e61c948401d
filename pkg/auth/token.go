package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/cancelmem/cancelmem-backend/pkg/config"
)

const defaultRole = "authenticated"

// ErrRoleNotAllowed rejects anon and service-role tokens; only signed-in
// users own subscriptions.
var ErrRoleNotAllowed = errors.New("token role not allowed")

var jwtSigningMethod = jwt.SigningMethodHS256

// MintAccessToken issues a Supabase-shaped HS256 token valid for ttl.
func MintAccessToken(cfg config.AuthConfig, now time.Time, ttl time.Duration, payload AccessTokenPayload) (string, error) {
	if cfg.JWTSecret == "" {
		return "", fmt.Errorf("jwt secret is required")
	}
	if payload.UserID == uuid.Nil {
		return "", fmt.Errorf("user id is required")
	}
	if ttl <= 0 {
		return "", fmt.Errorf("ttl must be positive")
	}
	role := strings.TrimSpace(payload.Role)
	if role == "" {
		role = defaultRole
	}

	claims := AccessTokenClaims{
		Email: payload.Email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   payload.UserID.String(),
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	if cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{cfg.Audience}
	}

	token := jwt.NewWithClaims(jwtSigningMethod, claims)
	signed, err := token.SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}

// ParseAccessToken validates a Supabase access token and returns its claims.
// Issuer and audience are enforced when configured.
func ParseAccessToken(cfg config.AuthConfig, tokenString string) (*AccessTokenClaims, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwtSigningMethod.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	claims := &AccessTokenClaims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwtSigningMethod {
				return nil, fmt.Errorf("unexpected signing method %s", token.Header["alg"])
			}
			return []byte(cfg.JWTSecret), nil
		},
		opts...,
	)
	if err != nil {
		return nil, err
	}
	if _, err := claims.UserID(); err != nil {
		return nil, fmt.Errorf("subject is not a user id: %w", err)
	}
	if claims.Role != "" && claims.Role != defaultRole {
		return nil, fmt.Errorf("%w: %q", ErrRoleNotAllowed, claims.Role)
	}
	return claims, nil
}
