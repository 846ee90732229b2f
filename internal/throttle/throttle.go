// Package throttle suppresses repeated notifications for the same key within
// a cooldown window.
package throttle

import (
	"sync"
	"time"
)

// DefaultCooldown applies to keys without an explicit cooldown.
const DefaultCooldown = 300 * time.Second

// Throttle records the last allowed time per key. It lives for the whole
// process and is safe for concurrent use.
type Throttle struct {
	mu       sync.Mutex
	cooldown time.Duration
	perKey   map[string]time.Duration
	lastSent map[string]time.Time
	now      func() time.Time
}

// Option customises a Throttle.
type Option func(*Throttle)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Throttle) { t.now = now }
}

// WithKeyCooldown gives key its own cooldown.
func WithKeyCooldown(key string, d time.Duration) Option {
	return func(t *Throttle) { t.perKey[key] = d }
}

// New creates a throttle with the given default cooldown. A non-positive
// cooldown selects DefaultCooldown.
func New(cooldown time.Duration, opts ...Option) *Throttle {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	t := &Throttle{
		cooldown: cooldown,
		perKey:   make(map[string]time.Duration),
		lastSent: make(map[string]time.Time),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Allow reports whether key may fire now and, if so, records the time.
// The check and the record happen under one lock.
func (t *Throttle) Allow(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if last, ok := t.lastSent[key]; ok && now.Sub(last) < t.cooldownFor(key) {
		return false
	}
	t.lastSent[key] = now
	return true
}

// SetCooldown changes the default cooldown. Existing records are kept.
func (t *Throttle) SetCooldown(d time.Duration) {
	if d <= 0 {
		return
	}
	t.mu.Lock()
	t.cooldown = d
	t.mu.Unlock()
}

// SetKeyCooldown changes the cooldown of a single key.
func (t *Throttle) SetKeyCooldown(key string, d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if d <= 0 {
		delete(t.perKey, key)
		return
	}
	t.perKey[key] = d
}

// Cooldown returns the cooldown in effect for key.
func (t *Throttle) Cooldown(key string) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cooldownFor(key)
}

func (t *Throttle) cooldownFor(key string) time.Duration {
	if d, ok := t.perKey[key]; ok {
		return d
	}
	return t.cooldown
}
