package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/okian/acolyte/internal/domain/model"
	"github.com/okian/acolyte/pkg/logger"
	"github.com/okian/acolyte/pkg/metrics"
)

// Header names.
const (
	HeaderParticipant = "X-Participant"
	HeaderRequestID   = "X-Request-ID"
)

const (
	// cleanupThreshold is the minimum map size before a cleanup pass runs.
	cleanupThreshold = 500
	// maxIdleAge is the duration after which an idle participant entry is eligible for cleanup.
	maxIdleAge = 10 * time.Minute
)

type ctxKey int

const (
	callerKey ctxKey = iota
	requestIDKey
)

// MetricsMiddleware wraps HTTP handlers to record Prometheus metrics.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a response writer wrapper to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		durationMs := float64(time.Since(start).Microseconds()) / 1000
		statusCodeStr := strconv.Itoa(wrapped.statusCode)
		metrics.RecordHTTPRequest(endpoint, r.Method, statusCodeStr)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, statusCodeStr, durationMs)
	}
}

// RequestIDMiddleware assigns every request an id, echoes it in the response
// and logs the request once it completes.
func RequestIDMiddleware(next http.Handler, log logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r.WithContext(ctx))

		log.Debug(ctx, "request served",
			logger.String("request_id", id),
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", wrapped.statusCode),
			logger.Duration("duration", time.Since(start)))
	})
}

// RequestID returns the id assigned by RequestIDMiddleware, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// IdentityResolver resolves the X-Participant header to a participant.
type IdentityResolver interface {
	Participant(ctx context.Context, name string) (model.Participant, error)
}

// Identity authenticates callers by the X-Participant header.
type Identity struct {
	resolver IdentityResolver
}

// NewIdentity creates an Identity.
func NewIdentity(resolver IdentityResolver) *Identity {
	return &Identity{resolver: resolver}
}

// Require rejects requests without a known caller with 401 and inactive callers with 403,
// then stores the caller in the context.
func (i *Identity) Require(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "api.identity"
		name := strings.TrimSpace(r.Header.Get(HeaderParticipant))
		if name == "" {
			fail(w, WrapKind(op, ErrUnauthorized, fmt.Errorf("missing %s header", HeaderParticipant)))
			return
		}
		p, err := i.resolver.Participant(r.Context(), name)
		if err != nil {
			if status, _ := classify(err); status == http.StatusNotFound {
				fail(w, WrapKind(op, ErrUnauthorized, fmt.Errorf("participant %q", name)))
				return
			}
			fail(w, Wrap(op, err))
			return
		}
		if !p.Active {
			fail(w, Wrap(op, fmt.Errorf("%w: %s", model.ErrInactiveParticipant, p.Name)))
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), callerKey, p)))
	}
}

// Caller returns the participant stored by Identity.Require.
func Caller(ctx context.Context) (model.Participant, bool) {
	p, ok := ctx.Value(callerKey).(model.Participant)
	return p, ok
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// SubmitLimiter is a per-participant rate limiter that prunes stale entries inline.
type SubmitLimiter struct {
	entries map[string]*limiterEntry
	mu      sync.Mutex
	r       rate.Limit
	b       int
}

// NewSubmitLimiter allows perMinute submissions per participant with bursts of burst.
// perMinute 0 disables limiting.
func NewSubmitLimiter(perMinute, burst int) *SubmitLimiter {
	l := &SubmitLimiter{entries: make(map[string]*limiterEntry), r: rate.Inf, b: burst}
	if perMinute > 0 {
		l.r = rate.Every(time.Minute / time.Duration(perMinute))
	}
	if l.b < 1 {
		l.b = 1
	}
	return l
}

// GetLimiter returns the limiter for participant, pruning stale entries when the
// map exceeds cleanupThreshold.
func (l *SubmitLimiter) GetLimiter(participant string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.entries) > cleanupThreshold {
		cutoff := time.Now().Add(-maxIdleAge)
		for k, e := range l.entries {
			if e.lastSeen.Before(cutoff) {
				delete(l.entries, k)
			}
		}
	}

	e, exists := l.entries[participant]
	if !exists {
		e = &limiterEntry{limiter: rate.NewLimiter(l.r, l.b)}
		l.entries[participant] = e
	}
	e.lastSeen = time.Now()
	return e.limiter
}

// Limit rejects the caller's request with 429 once its budget is spent.
// It must run after Identity.Require.
func (l *SubmitLimiter) Limit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "api.rate_limit"
		caller, _ := Caller(r.Context())
		if !l.GetLimiter(caller.Name).Allow() {
			metrics.RecordRateLimited()
			fail(w, NewKind(op, ErrRateLimited))
			return
		}
		next(w, r)
	}
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("failed to write response: %w", err)
	}
	return n, nil
}
