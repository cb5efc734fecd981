package server

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultLimiterIdleTTL is how long a client's bucket is kept after its last request.
const DefaultLimiterIdleTTL = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ClientRateLimiter keeps one token bucket per client key. Buckets idle for
// longer than idleTTL are dropped, swept at most once per idleTTL.
type ClientRateLimiter struct {
	mu        sync.Mutex
	clients   map[string]*clientLimiter
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	nowTime   func() time.Time
	lastSweep time.Time
}

// NewClientRateLimiter creates a limiter; nowFunc may be nil to use time.Now.
func NewClientRateLimiter(limit rate.Limit, burst int, idleTTL time.Duration, nowFunc func() time.Time) *ClientRateLimiter {
	if nowFunc == nil {
		nowFunc = time.Now
	}
	if idleTTL <= 0 {
		idleTTL = DefaultLimiterIdleTTL
	}
	return &ClientRateLimiter{
		clients:   make(map[string]*clientLimiter),
		limit:     limit,
		burst:     burst,
		idleTTL:   idleTTL,
		nowTime:   nowFunc,
		lastSweep: nowFunc(),
	}
}

// Allow reports whether the client identified by key may make a request now.
func (l *ClientRateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowTime()
	if now.Sub(l.lastSweep) >= l.idleTTL {
		l.sweepLocked(now)
	}

	c, ok := l.clients[key]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

// Len returns the number of tracked clients.
func (l *ClientRateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

func (l *ClientRateLimiter) sweepLocked(now time.Time) {
	for key, c := range l.clients {
		if now.Sub(c.lastSeen) >= l.idleTTL {
			delete(l.clients, key)
		}
	}
	l.lastSweep = now
}

// clientKey identifies the caller for rate limiting. With trustProxy the
// right-most X-Forwarded-For entry, the one appended by our own proxy, wins.
func clientKey(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			parts := strings.Split(fwd, ",")
			if ip := strings.TrimSpace(parts[len(parts)-1]); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
