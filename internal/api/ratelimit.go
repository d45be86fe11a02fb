package api

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"
)

// Manual evaluation triggers per client address, on top of the per-test Redis limit
const (
	manualTriggerRate  = rate.Limit(1.0 / 5) // one every five seconds
	manualTriggerBurst = 3
	limiterIdleTTL     = 10 * time.Minute
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiters hands out one token bucket per remote address
type clientLimiters struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	limit   rate.Limit
	burst   int
	now     func() time.Time
}

func newClientLimiters(limit rate.Limit, burst int) *clientLimiters {
	return &clientLimiters{
		clients: make(map[string]*clientLimiter),
		limit:   limit,
		burst:   burst,
		now:     time.Now,
	}
}

func (c *clientLimiters) get(addr string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, cl := range c.clients {
		if now.Sub(cl.lastSeen) > limiterIdleTTL {
			delete(c.clients, key)
		}
	}

	cl, ok := c.clients[addr]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(c.limit, c.burst)}
		c.clients[addr] = cl
	}
	cl.lastSeen = now
	return cl.limiter
}

// clientRateLimit rejects requests with 429 once a client exhausts its bucket
func clientRateLimit(limit rate.Limit, burst int) mux.MiddlewareFunc {
	limiters := newClientLimiters(limit, burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiters.get(clientAddr(r)).Allow() {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "5")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":"Too many requests"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
