package handler

import (
	"context"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/nick2726/mandir-reservation-hub/internal/core/domain"
	"github.com/sirupsen/logrus"
)

// RequestLogger writes one access log line per request.
func RequestLogger(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			entry := log.WithFields(logrus.Fields{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      ww.Status(),
				"bytes":       ww.BytesWritten(),
				"duration_ms": time.Since(start).Milliseconds(),
				"request_id":  chimiddleware.GetReqID(r.Context()),
			})

			if ww.Status() >= http.StatusBadRequest {
				entry.Error("request completed")
				return
			}
			entry.Info("request completed")
		})
	}
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func IdentityFrom(ctx context.Context) (domain.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(domain.Identity)
	return id, ok && !id.IsZero()
}

// RequireIdentity reads the caller the gateway verified. Requests that did
// not come through it carry no identity and are refused.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject := r.Header.Get(domain.HeaderUserID)
		if subject == "" {
			writeError(w, http.StatusUnauthorized, domain.KindUnauthorized, domain.ErrUnauthorized.Error())
			return
		}

		role := r.Header.Get(domain.HeaderUserRole)
		if role == "" {
			role = domain.RoleDevotee
		}

		ctx := WithIdentity(r.Context(), domain.Identity{Subject: subject, Role: role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
