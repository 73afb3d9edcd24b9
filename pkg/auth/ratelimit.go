package auth

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter decides whether an identity may make another request.
type RateLimiter interface {
	Allow(ctx context.Context, id *Identity) error
}

// SubjectLimiter keeps one token bucket per subject and tier. Buckets
// refill at RequestsPerMinute and allow bursts of the same size.
type SubjectLimiter struct {
	tiers      map[string]int
	defaultRPM int

	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// idleTTL bounds how long an unused bucket is kept.
const idleTTL = 10 * time.Minute

// NewSubjectLimiter creates a limiter. tiers maps a tier name to its
// requests per minute; other tiers use defaultRPM. A rate of zero or less
// disables limiting for that tier.
func NewSubjectLimiter(tiers map[string]int, defaultRPM int) *SubjectLimiter {
	return &SubjectLimiter{
		tiers:      tiers,
		defaultRPM: defaultRPM,
		buckets:    make(map[string]*bucket),
		now:        time.Now,
	}
}

// Allow consumes one token for id.
func (l *SubjectLimiter) Allow(_ context.Context, id *Identity) error {
	tier := id.Tier
	if tier == "" {
		tier = "default"
	}
	rpm := l.defaultRPM
	if v, ok := l.tiers[tier]; ok {
		rpm = v
	}
	if rpm <= 0 {
		return nil
	}

	now := l.now()
	key := id.Subject + "\x00" + tier

	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), rpm)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	l.evictLocked(now)
	l.mu.Unlock()

	if !b.limiter.AllowN(now, 1) {
		return ErrTooManyRequests
	}
	return nil
}

func (l *SubjectLimiter) evictLocked(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > idleTTL {
			delete(l.buckets, key)
		}
	}
}
