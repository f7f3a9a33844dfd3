package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Action is the kind of inbound event being limited.
type Action string

const (
	ActionSendMessage Action = "sendMessage"
	ActionSignal      Action = "signal"
)

type key struct {
	userID string
	action Action
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter enforces a per-(user, action) token bucket. Entries for idle
// users are evicted so the map does not grow with churn.
type Limiter struct {
	mu      sync.Mutex
	entries map[key]*entry
	rates   map[Action]rate.Limit
	bursts  map[Action]int
	idleTTL time.Duration
}

// New builds a limiter from per-minute budgets for each known action.
func New(messagePerMinute, signalPerMinute int) *Limiter {
	return &Limiter{
		entries: make(map[key]*entry),
		rates: map[Action]rate.Limit{
			ActionSendMessage: rate.Limit(float64(messagePerMinute) / 60.0),
			ActionSignal:      rate.Limit(float64(signalPerMinute) / 60.0),
		},
		bursts: map[Action]int{
			ActionSendMessage: max(messagePerMinute/6, 1),
			ActionSignal:      max(signalPerMinute/6, 1),
		},
		idleTTL: 10 * time.Minute,
	}
}

// Allow reports whether the event may proceed. A denied event is
// dropped by the caller, never queued or retried.
func (l *Limiter) Allow(userID string, action Action) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	k := key{userID: userID, action: action}
	e, ok := l.entries[k]
	if !ok {
		limit, known := l.rates[action]
		if !known {
			limit = l.rates[ActionSendMessage]
		}
		burst, known := l.bursts[action]
		if !known {
			burst = 1
		}
		e = &entry{limiter: rate.NewLimiter(limit, burst)}
		l.entries[k] = e
	}
	e.lastSeen = time.Now()

	if len(l.entries) > 4096 {
		l.evictIdleLocked()
	}

	return e.limiter.Allow()
}

// Forget drops all limiter state for a user, typically on disconnect
// of their last connection.
func (l *Limiter) Forget(userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k := range l.entries {
		if k.userID == userID {
			delete(l.entries, k)
		}
	}
}

func (l *Limiter) evictIdleLocked() {
	cutoff := time.Now().Add(-l.idleTTL)
	for k, e := range l.entries {
		if e.lastSeen.Before(cutoff) {
			delete(l.entries, k)
		}
	}
}
