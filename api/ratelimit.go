package api

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterIdle  = 30 * time.Minute
	limiterSweep = 5 * time.Minute
)

// ---------- Rate limiter per-IP ----------
type ipLimiter struct {
	limiter *rate.Limiter
	last    time.Time
}

type rateLimiter struct {
	rps   rate.Limit
	burst int

	mu        sync.Mutex
	clients   map[string]*ipLimiter
	lastSweep time.Time
}

func newRateLimiter(rps float64, burst int) *rateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &rateLimiter{
		rps:       rate.Limit(rps),
		burst:     burst,
		clients:   make(map[string]*ipLimiter),
		lastSweep: time.Now(),
	}
}

func (l *rateLimiter) allow(ip string) bool {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > limiterSweep {
		for k, c := range l.clients {
			if now.Sub(c.last) > limiterIdle {
				delete(l.clients, k)
			}
		}
		l.lastSweep = now
	}
	c, ok := l.clients[ip]
	if !ok {
		c = &ipLimiter{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.clients[ip] = c
	}
	c.last = now
	return c.limiter.AllowN(now, 1)
}

func (l *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(remoteIP(r)) {
			writeJSON(w, http.StatusTooManyRequests, envelope{
				Success: false,
				Error:   &apiError{Type: "RateLimitError", Message: "rate limit exceeded"},
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// remoteIP expects middleware.RealIP to have applied forwarding headers already.
func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
