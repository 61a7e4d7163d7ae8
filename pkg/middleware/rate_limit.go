package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/studyhub/studyhub/pkg/metrics"
	"golang.org/x/time/rate"
)

// limiterSet holds one token bucket per key. A bucket left alone for as long
// as it takes to refill completely is indistinguishable from a fresh one, so
// it is dropped on the next sweep. Anonymous workspace keys would otherwise
// pile up forever.
type limiterSet struct {
	rps   rate.Limit
	burst int
	idle  time.Duration // zero disables eviction
	now   func() time.Time

	mu        sync.Mutex
	entries   map[string]*limiterEntry
	lastSweep time.Time
}

type limiterEntry struct {
	lim  *rate.Limiter
	seen time.Time
}

func newLimiterSet(rps float64, burst int) *limiterSet {
	s := &limiterSet{
		rps:     rate.Limit(rps),
		burst:   burst,
		now:     time.Now,
		entries: make(map[string]*limiterEntry),
	}
	if rps > 0 {
		s.idle = time.Duration(float64(burst) / rps * float64(time.Second))
	}
	return s
}

func (s *limiterSet) allow(key string) bool {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idle > 0 && now.Sub(s.lastSweep) > s.idle {
		for k, e := range s.entries {
			if now.Sub(e.seen) > s.idle {
				delete(s.entries, k)
			}
		}
		s.lastSweep = now
	}
	e, ok := s.entries[key]
	if !ok {
		e = &limiterEntry{lim: rate.NewLimiter(s.rps, s.burst)}
		s.entries[key] = e
	}
	e.seen = now
	return e.lim.AllowN(now, 1)
}

func (s *limiterSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// RateLimitMiddleware returns a Gin middleware enforcing a token-bucket per-key limit.
// Key selection: the signed-in subject when a handler published one, else the
// verified token subject, else the client IP.
// rps = allowed events per second, burst = maximum tokens in bucket.
func RateLimitMiddleware(rps float64, burst int) gin.HandlerFunc {
	return rateLimit(newLimiterSet(rps, burst))
}

func rateLimit(set *limiterSet) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !set.allow(limiterKey(c)) {
			c.Header("Retry-After", "1")
			metrics.RateLimitRejected.WithLabelValues("memory").Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}
		metrics.RateLimitAllowed.WithLabelValues("memory").Inc()
		c.Next()
	}
}
