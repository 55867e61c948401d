package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/cancelmem/cancelmem-backend/api/responses"
	pkgAuth "github.com/cancelmem/cancelmem-backend/pkg/auth"
	"github.com/cancelmem/cancelmem-backend/pkg/config"
	pkgerrors "github.com/cancelmem/cancelmem-backend/pkg/errors"
	"github.com/cancelmem/cancelmem-backend/pkg/logger"
)

// Auth validates a Supabase bearer token and seeds the request context with
// the user id and email. Rejections carry a WWW-Authenticate challenge.
func Auth(cfg config.AuthConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="cancelmem"`)
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing bearer token"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				reason := "invalid token"
				switch {
				case errors.Is(err, jwt.ErrTokenExpired):
					reason = "token expired"
				case errors.Is(err, pkgAuth.ErrRoleNotAllowed):
					reason = "token role not allowed"
				}
				w.Header().Set("WWW-Authenticate", `Bearer realm="cancelmem", error="invalid_token", error_description="`+reason+`"`)
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, reason))
				return
			}

			// ParseAccessToken has already checked the subject.
			userID, _ := claims.UserID()
			ctx := WithUserID(r.Context(), userID.String())
			if email := strings.TrimSpace(claims.Email); email != "" {
				ctx = WithEmail(ctx, email)
			}
			if logg != nil {
				ctx = logg.WithUserID(ctx, userID.String())
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
