package usercontext

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/cancelmem/cancelmem-backend/api/middleware"
	pkgerrors "github.com/cancelmem/cancelmem-backend/pkg/errors"
)

// ResolveUserID extracts the authenticated user from the request.
func ResolveUserID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return id, nil
}
