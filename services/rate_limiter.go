package services

import (
	"time"

	"nearby_server/models"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/time/rate"
)

// Limiter is consulted before a discovery is dispatched.
type Limiter interface {
	Allow(userID string, channel models.Channel) bool
}

// RateLimiter is a token bucket per user per channel. Buckets idle for longer than
// the eviction window are dropped and start full again.
type RateLimiter struct {
	limit    rate.Limit
	burst    int
	limiters *ttlcache.Cache[string, *rate.Limiter]
}

// NewRateLimiter allows perMinute discoveries per user and channel with the given burst.
// Call Stop when done to end the eviction loop.
func NewRateLimiter(perMinute, burst int, idle time.Duration) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	if idle <= 0 {
		idle = 10 * time.Minute
	}
	limiters := ttlcache.New[string, *rate.Limiter](
		ttlcache.WithTTL[string, *rate.Limiter](idle),
	)
	go limiters.Start()
	return &RateLimiter{
		limit:    rate.Limit(float64(perMinute) / 60),
		burst:    burst,
		limiters: limiters,
	}
}

func (l *RateLimiter) Allow(userID string, channel models.Channel) bool {
	key := userID + "|" + string(channel)
	item, _ := l.limiters.GetOrSet(key, rate.NewLimiter(l.limit, l.burst))
	return item.Value().Allow()
}

func (l *RateLimiter) Stop() {
	l.limiters.Stop()
}
