package server

import (
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	lrucache "github.com/hashicorp/golang-lru"
	"golang.org/x/time/rate"

	"feed2podcast/internal/logging"
	"feed2podcast/internal/services"
)

const (
	requestIDHeader   = "X-Request-ID"
	maxTrackedClients = 4096
)

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(services.WithRequestID(r.Context(), id)))
	})
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Expose-Headers", requestIDHeader+", X-Cache")
		if r.Method == http.MethodOptions {
			h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "*")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		logging.WithContext(r.Context(), s.logger).Info("http request",
			logging.String("method", r.Method),
			logging.String("route", r.URL.Path),
			logging.Int("status", rec.status),
			logging.Int("response_bytes", rec.bytes),
			logging.Duration("elapsed", time.Since(start)),
			logging.String("remote", clientIP(r)),
		)
	})
}

// clientLimiter keeps one token bucket per client address. The least recently
// seen clients are forgotten once maxTrackedClients is reached.
type clientLimiter struct {
	mu      sync.Mutex
	clients *lrucache.Cache
	limit   rate.Limit
	burst   int
}

func newClientLimiter(perSec float64, burst int) (*clientLimiter, error) {
	clients, err := lrucache.New(maxTrackedClients)
	if err != nil {
		return nil, fmt.Errorf("server: create rate limiter: %w", err)
	}
	if burst < 1 {
		burst = 1
	}
	return &clientLimiter{clients: clients, limit: rate.Limit(perSec), burst: burst}, nil
}

func (l *clientLimiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if v, ok := l.clients.Get(key); ok {
		return v.(*rate.Limiter)
	}
	limiter := rate.NewLimiter(l.limit, l.burst)
	l.clients.Add(key, limiter)
	return limiter
}

func (l *clientLimiter) middleware(next http.Handler, s *Server) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.get(clientIP(r)).Allow() {
			w.Header().Set("Retry-After", "1")
			s.writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
