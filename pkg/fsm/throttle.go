package fsm

import (
	"sync"
	"time"
)

// Throttle rate-limits the command entry points per user.
type Throttle struct {
	mu       sync.Mutex
	last     map[int64]time.Time
	cooldown time.Duration
	now      func() time.Time
}

func NewThrottle(cooldown time.Duration) *Throttle {
	return &Throttle{
		last:     make(map[int64]time.Time),
		cooldown: cooldown,
		now:      time.Now,
	}
}

// Allow reports whether userID may run a command now and, if so, starts a
// new cooldown window.
func (t *Throttle) Allow(userID int64) bool {
	if t == nil || t.cooldown <= 0 {
		return true
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if prev, ok := t.last[userID]; ok && now.Sub(prev) < t.cooldown {
		return false
	}
	t.last[userID] = now
	return true
}
