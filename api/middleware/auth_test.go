package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cancelmem/cancelmem-backend/pkg/auth"
	"github.com/cancelmem/cancelmem-backend/pkg/config"
)

var testAuthConfig = config.AuthConfig{JWTSecret: "secret", Audience: "authenticated"}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer   abc  ", "abc", true},
		{"abc", "", false},
		{"Basic dXNlcjpwYXNz", "", false},
		{"Bearer ", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		token, ok := bearerToken(tt.header)
		assert.Equal(t, tt.ok, ok, tt.header)
		assert.Equal(t, tt.token, token, tt.header)
	}
}

func TestAuthRejections(t *testing.T) {
	expired := mintTestToken(t, uuid.New(), "a@example.com", "", time.Now().Add(-2*time.Hour))
	service := mintTestToken(t, uuid.New(), "", "service_role", time.Now())

	tests := []struct {
		name      string
		header    string
		challenge string
	}{
		{"missing", "", `Bearer realm="cancelmem"`},
		{"raw token without scheme", expired, `Bearer realm="cancelmem"`},
		{"garbage", "Bearer invalid", "invalid token"},
		{"expired", "Bearer " + expired, "token expired"},
		{"service role", "Bearer " + service, "token role not allowed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := Auth(testAuthConfig, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler must not run")
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp := httptest.NewRecorder()
			handler.ServeHTTP(resp, req)

			require.Equal(t, http.StatusUnauthorized, resp.Code)
			assert.Contains(t, resp.Header().Get("WWW-Authenticate"), tt.challenge)
			assert.True(t, strings.Contains(resp.Body.String(), "UNAUTHORIZED"), resp.Body.String())
		})
	}
}

func TestAuthSeedsUserContext(t *testing.T) {
	userID := uuid.New()
	token := mintTestToken(t, userID, "person@example.com", "", time.Now())

	var user, email string
	handler := Auth(testAuthConfig, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user = UserIDFromContext(r.Context())
		email = EmailFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	require.Equal(t, http.StatusNoContent, resp.Code)
	assert.Equal(t, userID.String(), user)
	assert.Equal(t, "person@example.com", email)
}

func mintTestToken(t *testing.T, userID uuid.UUID, email, role string, now time.Time) string {
	t.Helper()
	token, err := auth.MintAccessToken(testAuthConfig, now, time.Hour, auth.AccessTokenPayload{
		UserID: userID,
		Email:  email,
		Role:   role,
	})
	require.NoError(t, err)
	return token
}
