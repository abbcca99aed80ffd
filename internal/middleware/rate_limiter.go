package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Mussapinga011/PartQuip-sub000/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const purgeInterval = 5 * time.Minute

// windowEntry counts requests from one client within a fixed window.
type windowEntry struct {
	count     int
	windowEnd time.Time
}

type rateLimiter struct {
	mu        sync.Mutex
	limit     int
	window    time.Duration
	entries   map[string]*windowEntry
	nextPurge time.Time
	now       func() time.Time
}

// RateLimiter allows limit requests per window for each client, keyed by the
// token's terminal when present and by IP otherwise.
func RateLimiter(limit int, window time.Duration) gin.HandlerFunc {
	rl := &rateLimiter{limit: limit, window: window, entries: make(map[string]*windowEntry), now: time.Now}
	return rl.handle
}

func (rl *rateLimiter) handle(c *gin.Context) {
	key := c.ClientIP()
	if claims := GetClaims(c); claims != nil {
		key = "terminal:" + claims.Terminal
	}

	allowed, retryAfter := rl.allow(key)
	if !allowed {
		c.Header("Retry-After", strconv.Itoa(int(retryAfter.Seconds())+1))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New(apierror.CodeRateLimited, "demasiados pedidos, tente novamente em instantes"))
		return
	}
	c.Next()
}

func (rl *rateLimiter) allow(key string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.After(rl.nextPurge) {
		rl.purge(now)
		rl.nextPurge = now.Add(purgeInterval)
	}

	e, ok := rl.entries[key]
	if !ok || now.After(e.windowEnd) {
		e = &windowEntry{windowEnd: now.Add(rl.window)}
		rl.entries[key] = e
	}
	e.count++
	if e.count > rl.limit {
		return false, e.windowEnd.Sub(now)
	}
	return true, 0
}

// purge drops expired windows so clients that never return do not pile up.
func (rl *rateLimiter) purge(now time.Time) {
	purged := 0
	for k, e := range rl.entries {
		if now.After(e.windowEnd) {
			delete(rl.entries, k)
			purged++
		}
	}
	if purged > 0 {
		log.Debug().Int("purged", purged).Int("remaining", len(rl.entries)).Msg("rate limiter entries purged")
	}
}
