// Package middleware holds the HTTP wrappers shared by every route.
package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/time/rate"

	"no3d-library-api/metrics"
	"no3d-library-api/obs"
)

// HeaderRequestID carries the request id in both directions
const HeaderRequestID = "X-Request-Id"

type ctxKey int

const (
	ctxKeyRequestID ctxKey = iota
)

// RequestIDFromContext returns the id assigned by WithRequestID
func RequestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyRequestID).(string)
	return v
}

type statusRecorder struct {
	h  http.ResponseWriter
	st int
	n  int
}

func (w *statusRecorder) Header() http.Header { return w.h.Header() }
func (w *statusRecorder) WriteHeader(code int) {
	w.st = code
	w.h.WriteHeader(code)
}
func (w *statusRecorder) Write(b []byte) (int, error) {
	n, err := w.h.Write(b)
	w.n += n
	return n, err
}

// WithRequestID reuses the caller's X-Request-Id or assigns a new one
func WithRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(HeaderRequestID)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, reqID)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyRequestID, reqID)))
	})
}

// WithLogging logs one http_request line per request
func WithLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sr := &statusRecorder{h: w, st: http.StatusOK}
		next.ServeHTTP(sr, r)
		lat := time.Since(start)
		obs.Logger.Info("http_request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sr.st,
			"bytes", sr.n,
			"latency_ms", float64(lat.Microseconds())/1000.0,
			"request_id", RequestIDFromContext(r.Context()),
		)
	})
}

// WithMetrics records request count and latency under a fixed route label,
// so arbitrary paths never become label values
func WithMetrics(m metrics.Metrics, route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sr := &statusRecorder{h: w, st: http.StatusOK}
		next.ServeHTTP(sr, r)
		m.ObserveRequest(r.Method, route, strconv.Itoa(sr.st), time.Since(start).Seconds())
	})
}

// ClientLimiter hands out one token bucket per client address.
// A bucket is dropped once its client has been idle long enough to refill it.
type ClientLimiter struct {
	limit   rate.Limit
	burst   int
	clients *ttlcache.Cache[string, *rate.Limiter]
}

// minLimiterIdle is the shortest time an idle bucket is kept
const minLimiterIdle = time.Minute

// limiterIdleTTL is how long a full refill takes, never less than minLimiterIdle
func limiterIdleTTL(perSecond float64, burst int) time.Duration {
	if perSecond <= 0 {
		return minLimiterIdle
	}
	refill := time.Duration(float64(burst) / perSecond * float64(time.Second))
	if refill < minLimiterIdle {
		return minLimiterIdle
	}
	return refill
}

// NewClientLimiter creates a ClientLimiter allowing perSecond requests with the
// given burst. Call Stop to release the expiry goroutine.
func NewClientLimiter(perSecond float64, burst int) *ClientLimiter {
	if burst < 1 {
		burst = 1
	}
	return newClientLimiter(perSecond, burst, limiterIdleTTL(perSecond, burst))
}

// newClientLimiter keeps a bucket until idleTTL passes without a request from its client
func newClientLimiter(perSecond float64, burst int, idleTTL time.Duration) *ClientLimiter {
	clients := ttlcache.New[string, *rate.Limiter](
		ttlcache.WithTTL[string, *rate.Limiter](idleTTL),
	)
	go clients.Start()
	return &ClientLimiter{limit: rate.Limit(perSecond), burst: burst, clients: clients}
}

// Stop ends background expiry
func (l *ClientLimiter) Stop() {
	l.clients.Stop()
}

func (l *ClientLimiter) limiterFor(client string) *rate.Limiter {
	// Get extends the bucket's idle TTL
	if item := l.clients.Get(client); item != nil {
		return item.Value()
	}
	item, _ := l.clients.GetOrSet(client, rate.NewLimiter(l.limit, l.burst))
	return item.Value()
}

// clientAddress prefers the first X-Forwarded-For hop, then RemoteAddr
func clientAddress(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if ip := strings.TrimSpace(strings.Split(fwd, ",")[0]); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimit answers 429 once a client exhausts its bucket. A nil limiter
// disables limiting.
func RateLimit(l *ClientLimiter, next http.Handler) http.Handler {
	if l == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := clientAddress(r)
		limiter := l.limiterFor(client)
		res := limiter.Reserve()
		if delay := res.Delay(); delay > 0 {
			// not proceeding, so hand the token back
			res.Cancel()
			obs.Logger.Warn("rate_limit_exceeded", "path", r.URL.Path, "client", client,
				"request_id", RequestIDFromContext(r.Context()))

			w.Header().Set("Retry-After", fmt.Sprintf("%.0f", math.Ceil(delay.Seconds())))
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%v", limiter.Limit()))
			w.Header().Set("X-RateLimit-Burst", strconv.Itoa(limiter.Burst()))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "Too many requests"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
