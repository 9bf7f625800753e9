package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Keyed allows at most quota attempts per key (usually a client address)
// in each window. A key's window opens on its first attempt and the full
// quota comes back only when that window has elapsed.
type Keyed struct {
	mu       sync.Mutex
	quota    int
	window   time.Duration
	limiters map[string]*entry
	now      func() time.Time
}

type entry struct {
	// refills one token per window, which never lands before resetAt
	lim     *rate.Limiter
	resetAt time.Time
}

func NewKeyed(quota int, window time.Duration) *Keyed {
	if quota <= 0 {
		quota = 1
	}
	return &Keyed{
		quota:    quota,
		window:   window,
		limiters: make(map[string]*entry),
		now:      time.Now,
	}
}

// Allow consumes one attempt for key.
func (k *Keyed) Allow(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := k.now()
	e, ok := k.limiters[key]
	if !ok || !now.Before(e.resetAt) {
		e = &entry{lim: rate.NewLimiter(rate.Every(k.window), k.quota), resetAt: now.Add(k.window)}
		k.limiters[key] = e
	}
	return e.lim.AllowN(now, 1)
}

// Prune forgets keys whose window has elapsed; their next attempt opens a
// fresh window anyway.
func (k *Keyed) Prune() int {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := k.now()
	removed := 0
	for key, e := range k.limiters {
		if !now.Before(e.resetAt) {
			delete(k.limiters, key)
			removed++
		}
	}
	return removed
}

func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.limiters)
}
