package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload captures the data needed to mint a token locally. Only
// tests and the CLI mint tokens; Supabase issues them in production.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Email  string
	Role   string
}

// AccessTokenClaims is the subset of a Supabase access token the API reads.
// The user id travels in the standard "sub" claim.
type AccessTokenClaims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// UserID parses the subject as a uuid.
func (c *AccessTokenClaims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}
