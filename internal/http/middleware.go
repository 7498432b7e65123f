package http

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"

	"github.com/robertarktes/venue-ticketing/internal/auth"
	"github.com/robertarktes/venue-ticketing/internal/idempotency"
	"github.com/robertarktes/venue-ticketing/internal/observability"
)

const (
	userRate = 120
	ipRate   = 600
	ratePer  = time.Minute
)

type Limiter interface {
	Allow(ctx context.Context, key string, rate int, period time.Duration) bool
}

type IdempotencyStore interface {
	Get(ctx context.Context, key string) (*idempotency.Response, error)
	Begin(ctx context.Context, key string) error
	Finish(ctx context.Context, key string, resp *idempotency.Response) error
}

func RequestIDMiddleware(next http.Handler) http.Handler {
	return middleware.RequestID(next)
}

func LoggerMiddleware(logger observability.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			entry := logger.WithField("request_id", middleware.GetReqID(r.Context()))
			ctx := observability.ContextWithLogger(r.Context(), entry)
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r.WithContext(ctx))
			entry.WithField("method", r.Method).
				WithField("path", r.URL.Path).
				WithField("status", statusOf(ww)).
				WithField("duration_ms", time.Since(start).Milliseconds()).
				Info("request")
		})
	}
}

func TracingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := otel.Tracer("http").Start(ctx, r.Method+" "+r.URL.Path)
		defer span.End()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		span.SetAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.url", r.URL.String()),
			attribute.Int("http.status_code", statusOf(ww)),
		)
		if statusOf(ww) >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(statusOf(ww)))
		}
	})
}

// MetricsMiddleware counts requests by route pattern, so path parameters do
// not blow up label cardinality.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		observability.RequestsTotal.WithLabelValues(route, strconv.Itoa(statusOf(ww)), r.Method).Inc()
	})
}

// AuthMiddleware resolves a bearer credential into an actor. Requests without
// an Authorization header pass through anonymously; RequireActor guards the
// routes that need one.
func AuthMiddleware(authn *auth.Authenticator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			a, err := authn.Authenticate(header)
			if err != nil {
				writeError(w, r, err)
				return
			}
			ctx := auth.WithActor(r.Context(), a)
			ctx = observability.ContextWithLogger(ctx, requestLogger(r).WithField("user_id", a.UserID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.ActorFromContext(r.Context()); !ok {
			writeError(w, r, auth.ErrUnauthenticated)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func RateLimitMiddleware(rl Limiter) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed := rl.Allow(r.Context(), "ip:"+clientIP(r), ipRate, ratePer)
			if a, ok := auth.ActorFromContext(r.Context()); ok && allowed {
				allowed = rl.Allow(r.Context(), "user:"+a.UserID.String(), userRate, ratePer)
			}
			if !allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(ratePer.Seconds())))
				writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded", Kind: "rate_limited"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// statusOf reports the written status; handlers that never write send 200.
func statusOf(ww middleware.WrapResponseWriter) int {
	if ww.Status() == 0 {
		return http.StatusOK
	}
	return ww.Status()
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// IdempotencyMiddleware replays the stored response of a POST carrying an
// Idempotency-Key the caller has used before on the same route. Keys are
// optional; server errors are not stored so the client may retry them.
func IdempotencyMiddleware(store IdempotencyStore) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientKey := r.Header.Get("Idempotency-Key")
			if r.Method != http.MethodPost || clientKey == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(clientKey) < 8 || len(clientKey) > 128 {
				writeError(w, r, badRequest("Idempotency-Key must be 8 to 128 characters"))
				return
			}

			scope := "ip:" + clientIP(r)
			if a, ok := auth.ActorFromContext(r.Context()); ok {
				scope = a.UserID.String()
			}
			key := idempotency.Key(scope, r.URL.Path, clientKey)

			stored, err := store.Get(r.Context(), key)
			if err != nil {
				writeError(w, r, err)
				return
			}
			if stored != nil {
				replay(w, stored)
				return
			}
			if err := store.Begin(r.Context(), key); err != nil {
				writeError(w, r, err)
				return
			}

			var body bytes.Buffer
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			ww.Tee(&body)
			next.ServeHTTP(ww, r)

			var resp *idempotency.Response
			if statusOf(ww) < http.StatusInternalServerError {
				resp = &idempotency.Response{Status: statusOf(ww), ContentType: ww.Header().Get("Content-Type"), Result: body.Bytes()}
			}
			if err := store.Finish(context.WithoutCancel(r.Context()), key, resp); err != nil {
				requestLogger(r).WithError(err).Warn("failed to store idempotent response")
			}
		})
	}
}

func replay(w http.ResponseWriter, resp *idempotency.Response) {
	if resp.ContentType != "" {
		w.Header().Set("Content-Type", resp.ContentType)
	}
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Result)
}
