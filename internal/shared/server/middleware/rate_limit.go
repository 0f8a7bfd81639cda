package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"

	"sentiment-api/internal/shared/server/respond"
)

// RateLimitRule is a token bucket: Rate tokens per second, Burst capacity.
type RateLimitRule struct {
	Rate  float64
	Burst int
}

// Enabled reports whether the rule limits anything.
func (r RateLimitRule) Enabled() bool {
	return r.Rate > 0 && r.Burst > 0
}

const minIdleTTL = time.Minute

// RateLimiter keeps one limiter per client key. Keys idle long enough for
// their bucket to refill are evicted, since a fresh bucket behaves the same.
type RateLimiter struct {
	mu        sync.Mutex
	rule      RateLimitRule
	limiters  map[string]*clientLimiter
	clock     clockwork.Clock
	idleTTL   time.Duration
	lastSweep time.Time
}

type clientLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter constructs a RateLimiter. clock may be nil.
func NewRateLimiter(rule RateLimitRule, clock clockwork.Clock) *RateLimiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	idleTTL := minIdleTTL
	if rule.Enabled() {
		refill := time.Duration(float64(rule.Burst) / rule.Rate * float64(time.Second))
		idleTTL = max(idleTTL, refill)
	}
	return &RateLimiter{
		rule:      rule,
		limiters:  make(map[string]*clientLimiter),
		clock:     clock,
		idleTTL:   idleTTL,
		lastSweep: clock.Now(),
	}
}

// Allow consumes a token for key and, when refused, reports how long until
// one is available.
func (l *RateLimiter) Allow(key string) (bool, time.Duration) {
	if l == nil || !l.rule.Enabled() {
		return true, 0
	}
	now := l.clock.Now()

	l.mu.Lock()
	if now.Sub(l.lastSweep) >= l.idleTTL {
		l.sweep(now)
	}
	cl, ok := l.limiters[key]
	if !ok {
		cl = &clientLimiter{lim: rate.NewLimiter(rate.Limit(l.rule.Rate), l.rule.Burst)}
		l.limiters[key] = cl
	}
	cl.lastSeen = now
	lim := cl.lim
	l.mu.Unlock()

	res := lim.ReserveN(now, 1)
	if !res.OK() {
		return false, time.Second
	}
	delay := res.DelayFrom(now)
	if delay == 0 {
		return true, 0
	}
	res.CancelAt(now)
	return false, delay
}

// sweep drops idle keys. Callers hold l.mu.
func (l *RateLimiter) sweep(now time.Time) {
	for key, cl := range l.limiters {
		if now.Sub(cl.lastSeen) >= l.idleTTL {
			delete(l.limiters, key)
		}
	}
	l.lastSweep = now
}

func (l *RateLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

// RateLimit refuses requests from a client IP once its bucket is empty.
func RateLimit(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, retryAfter := limiter.Allow(c.ClientIP())
		if allowed {
			c.Next()
			return
		}
		seconds := int(math.Ceil(retryAfter.Seconds()))
		if seconds <= 0 {
			seconds = 1
		}
		c.Header("Retry-After", strconv.Itoa(seconds))
		respond.Error(c, http.StatusTooManyRequests, respond.CodeRateLimited, "Too many requests, please retry later", "")
	}
}
