package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cancelmem/cancelmem-backend/api/responses"
	pkgerrors "github.com/cancelmem/cancelmem-backend/pkg/errors"
	"github.com/cancelmem/cancelmem-backend/pkg/logger"
	pkgredis "github.com/cancelmem/cancelmem-backend/pkg/redis"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayedHeader    = "Idempotent-Replayed"

	defaultIdempotencyTTL  = 24 * time.Hour
	criticalIdempotencyTTL = 7 * 24 * time.Hour
	pendingIdempotencyTTL  = time.Minute

	maxIdempotencyKeyLen = 255
)

type idempotencyRule struct {
	method   string
	segments []string
	ttl      time.Duration
	required bool
}

func rule(method, template string, ttl time.Duration, required bool) idempotencyRule {
	return idempotencyRule{method: method, segments: splitPath(template), ttl: ttl, required: required}
}

// Cancellation outcomes and checkout create external side effects, so a key
// is mandatory there and remembered for a week.
var idempotencyRules = []idempotencyRule{
	rule(http.MethodPost, "/api/v1/subscriptions", defaultIdempotencyTTL, false),
	rule(http.MethodPost, "/api/v1/subscriptions/{id}/reactivate", defaultIdempotencyTTL, false),
	rule(http.MethodPost, "/api/v1/subscriptions/{id}/proofs", defaultIdempotencyTTL, false),
	rule(http.MethodPost, "/api/v1/subscriptions/{id}/timeline", defaultIdempotencyTTL, false),
	rule(http.MethodPost, "/api/v1/billing/portal", defaultIdempotencyTTL, false),
	rule(http.MethodPost, "/api/v1/subscriptions/{id}/cancellation", criticalIdempotencyTTL, true),
	rule(http.MethodPost, "/api/v1/billing/checkout", criticalIdempotencyTTL, true),
}

func (r idempotencyRule) matches(method string, segments []string) bool {
	if r.method != method || len(r.segments) != len(segments) {
		return false
	}
	for i, want := range r.segments {
		if strings.HasPrefix(want, "{") {
			continue
		}
		if want != segments[i] {
			return false
		}
	}
	return true
}

func lookupRule(method, path string) (idempotencyRule, bool) {
	segments := splitPath(path)
	if len(segments) == 0 {
		return idempotencyRule{}, false
	}
	for _, rule := range idempotencyRules {
		if rule.matches(method, segments) {
			return rule, true
		}
	}
	return idempotencyRule{}, false
}

func splitPath(path string) []string {
	return strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
}

// storedResponse is what lives under an idempotency key. A pending record
// marks a request that is still executing.
type storedResponse struct {
	Pending     bool   `json:"pending,omitempty"`
	RequestHash string `json:"request_hash"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// Idempotency replays the first response for a repeated Idempotency-Key on
// the mutating routes listed in idempotencyRules. Keys are scoped per user,
// method and path. Server errors are forgotten so the client can retry.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rule, ok := lookupRule(r.Method, r.URL.Path)
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			switch {
			case clientKey == "" && !rule.required:
				next.ServeHTTP(w, r)
				return
			case clientKey == "":
				responses.WriteError(ctx, logg, w, pkgerrors.Field("header", idempotencyHeader+" header required"))
				return
			case len(clientKey) > maxIdempotencyKeyLen:
				responses.WriteError(ctx, logg, w, pkgerrors.Field("header", idempotencyHeader+" is too long"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			requestHash := fingerprint(r.Method, r.URL.Path, body)
			key := store.IdempotencyKey(UserIDFromContext(ctx)+"|"+r.Method+"|"+strings.TrimSuffix(r.URL.Path, "/"), clientKey)

			pending, _ := json.Marshal(storedResponse{Pending: true, RequestHash: requestHash})
			claimed, err := store.SetNX(ctx, key, string(pending), pendingIdempotencyTTL)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key"))
				return
			}
			if !claimed {
				replayStored(w, r, store, logg, key, requestHash)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			if err := store.Del(ctx, key); err != nil && logg != nil {
				logg.Error(ctx, "release idempotency claim", err)
			}
			status := capture.statusCode()
			if status >= http.StatusInternalServerError {
				return
			}

			done, err := json.Marshal(storedResponse{
				RequestHash: requestHash,
				Status:      status,
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
			})
			if err == nil {
				_, err = store.SetNX(ctx, key, string(done), rule.ttl)
			}
			if err != nil && logg != nil {
				logg.Error(ctx, "persist idempotent response", err)
			}
		})
	}
}

func replayStored(w http.ResponseWriter, r *http.Request, store pkgredis.IdempotencyStore, logg *logger.Logger, key, requestHash string) {
	ctx := r.Context()
	raw, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) || (err == nil && raw == "") {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "request with this idempotency key is still in progress"))
		return
	}
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load idempotent response"))
		return
	}

	var stored storedResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotent response"))
		return
	}
	if stored.RequestHash != requestHash {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
		return
	}
	if stored.Pending {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "request with this idempotency key is still in progress"))
		return
	}

	if stored.ContentType != "" {
		w.Header().Set("Content-Type", stored.ContentType)
	}
	w.Header().Set(replayedHeader, "true")
	w.WriteHeader(stored.Status)
	_, _ = w.Write(stored.Body)
}

func fingerprint(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method + " " + strings.TrimSuffix(path, "/") + "\n"))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (r *responseCapture) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseCapture) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *responseCapture) statusCode() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}
