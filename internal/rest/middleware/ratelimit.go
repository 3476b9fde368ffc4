package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	goCache "github.com/patrickmn/go-cache"
	"github.com/rentwise/rentwise/internal/config"
	ierr "github.com/rentwise/rentwise/internal/errors"
	"github.com/rentwise/rentwise/internal/types"
	"golang.org/x/time/rate"
)

// userLimiters holds one token bucket per caller. A bucket idle for longer
// than a full refill is evicted, a fresh one behaves the same.
type userLimiters struct {
	mu    sync.Mutex
	cache *goCache.Cache
	ttl   time.Duration
	limit rate.Limit
	burst int
}

func newUserLimiters(interval time.Duration, burst int) *userLimiters {
	ttl := interval * time.Duration(burst)
	return &userLimiters{
		cache: goCache.New(ttl, ttl),
		ttl:   ttl,
		limit: rate.Every(interval),
		burst: burst,
	}
}

func (u *userLimiters) get(key string) *rate.Limiter {
	u.mu.Lock()
	defer u.mu.Unlock()

	var l *rate.Limiter
	if v, ok := u.cache.Get(key); ok {
		l = v.(*rate.Limiter)
	} else {
		l = rate.NewLimiter(u.limit, u.burst)
	}
	u.cache.Set(key, l, u.ttl)
	return l
}

// SyncRateLimitMiddleware bounds manual sync calls per authenticated user
func SyncRateLimitMiddleware(cfg *config.Configuration) gin.HandlerFunc {
	perMinute := cfg.RateLimit.SyncPerMinute
	if perMinute <= 0 {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	burst := cfg.RateLimit.SyncBurst
	if burst <= 0 {
		burst = 1
	}

	limiters := newUserLimiters(time.Minute/time.Duration(perMinute), burst)

	return func(c *gin.Context) {
		key := types.GetUserID(c.Request.Context())
		if key == "" {
			key = c.ClientIP()
		}

		if !limiters.get(key).Allow() {
			c.Error(ierr.NewError("sync rate limit exceeded").
				WithHint("Too many sync requests, please try again later").
				Mark(ierr.ErrTooManyRequests))
			c.Abort()
			return
		}
		c.Next()
	}
}
