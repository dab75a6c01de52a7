package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/safar/go-checkout/internal/database"
	"github.com/safar/go-checkout/internal/identity"
	"github.com/safar/go-checkout/internal/metrics"
	"github.com/safar/go-checkout/internal/models"
)

const userHeader = "X-User-ID"

// UserLookup resolves a signed-in user id to its account.
type UserLookup func(ctx context.Context, userID int64) (*models.User, error)

// Authenticate attaches the identity named by the X-User-ID header. A
// missing, malformed or unknown id leaves the request anonymous; handlers
// that need a shopper reject it themselves.
func Authenticate(lookup UserLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(userHeader)
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}

			userID, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || userID <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			user, err := lookup(r.Context(), userID)
			if err != nil {
				if !errors.Is(err, database.ErrUserNotFound) {
					log.Printf("resolve user %d: %v", userID, err)
				}
				next.ServeHTTP(w, r)
				return
			}

			ctx := identity.WithIdentity(r.Context(), identity.Identity{UserID: user.ID})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireFulfillment admits only requests carrying the fulfillment bearer
// token. With no token configured every request is refused.
func RequireFulfillment(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if token == "" || !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				respondError(w, http.StatusUnauthorized, "fulfillment credentials required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Instrument records request count and latency per route pattern.
func Instrument(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			m.Observe(route, status, started)
		})
	}
}
