// Package ratelimit tracks failed logins per (client address, username) and
// locks the pair out after repeated failures.
package ratelimit

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

const (
	DefaultThreshold = 5
	DefaultWindow    = 15 * time.Minute
)

// State is the lifecycle stage of a key.
type State int

const (
	StateClean State = iota
	StateWarned
	StateLocked
)

func (s State) String() string {
	switch s {
	case StateWarned:
		return "warned"
	case StateLocked:
		return "locked"
	default:
		return "clean"
	}
}

// entry is never mutated once stored; updates swap in a new value.
type entry struct {
	count       int
	lastAttempt time.Time
	lockedUntil time.Time
}

type Option func(*Guard)

func WithClock(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

// Guard is safe for concurrent use. Each key is updated with a
// compare-and-swap loop, so concurrent failures for one key are all counted
// and different keys never contend.
type Guard struct {
	threshold int
	window    time.Duration
	now       func() time.Time
	entries   sync.Map // string -> *entry
}

func New(threshold int, window time.Duration, opts ...Option) *Guard {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if window <= 0 {
		window = DefaultWindow
	}
	g := &Guard{threshold: threshold, window: window, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Key builds the composite key. The username is lowercased and hashed so
// raw credential subjects are not kept in memory.
func Key(clientAddr, username string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(username))))
	return clientAddr + "|" + hex.EncodeToString(sum[:])
}

// OnFailure records one failed attempt and returns the resulting count.
func (g *Guard) OnFailure(key string) int {
	for {
		now := g.now()
		cur, loaded := g.entries.Load(key)
		if !loaded {
			next := g.advance(nil, now)
			if _, raced := g.entries.LoadOrStore(key, next); !raced {
				return next.count
			}
			continue
		}
		old := cur.(*entry)
		next := g.advance(old, now)
		if g.entries.CompareAndSwap(key, old, next) {
			return next.count
		}
	}
}

func (g *Guard) advance(old *entry, now time.Time) *entry {
	next := &entry{count: 1, lastAttempt: now}
	if old != nil {
		locked := now.Before(old.lockedUntil)
		stale := now.Sub(old.lastAttempt) > g.window
		if locked || !stale {
			next.count = old.count + 1
			next.lockedUntil = old.lockedUntil
		}
		if !locked && !old.lockedUntil.IsZero() && !now.Before(old.lockedUntil) {
			// expired lock starts over
			next.count = 1
			next.lockedUntil = time.Time{}
		}
	}
	if next.count >= g.threshold && next.lockedUntil.IsZero() {
		next.lockedUntil = now.Add(g.window)
	}
	return next
}

// OnSuccess clears the key.
func (g *Guard) OnSuccess(key string) {
	g.entries.Delete(key)
}

// IsLocked reports whether key is locked. An expired lock is removed and
// reported as unlocked.
func (g *Guard) IsLocked(key string) bool {
	cur, ok := g.entries.Load(key)
	if !ok {
		return false
	}
	e := cur.(*entry)
	if e.lockedUntil.IsZero() {
		return false
	}
	if g.now().Before(e.lockedUntil) {
		return true
	}
	g.entries.CompareAndDelete(key, e)
	return false
}

// State reports the current stage of key without changing it.
func (g *Guard) State(key string) State {
	cur, ok := g.entries.Load(key)
	if !ok {
		return StateClean
	}
	e := cur.(*entry)
	switch {
	case !e.lockedUntil.IsZero() && g.now().Before(e.lockedUntil):
		return StateLocked
	case !e.lockedUntil.IsZero():
		return StateClean
	case e.count > 0:
		return StateWarned
	default:
		return StateClean
	}
}

// Attempts returns the recorded failure count for key.
func (g *Guard) Attempts(key string) int {
	cur, ok := g.entries.Load(key)
	if !ok {
		return 0
	}
	return cur.(*entry).count
}

// Sweep drops entries whose last attempt is older than twice the window and
// whose lock, if any, has expired. It returns the number removed.
func (g *Guard) Sweep() int {
	now := g.now()
	cutoff := 2 * g.window
	removed := 0
	g.entries.Range(func(k, v any) bool {
		e := v.(*entry)
		if now.Sub(e.lastAttempt) > cutoff && !now.Before(e.lockedUntil) {
			if g.entries.CompareAndDelete(k, e) {
				removed++
			}
		}
		return true
	})
	return removed
}

// Len returns the number of tracked keys.
func (g *Guard) Len() int {
	n := 0
	g.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
