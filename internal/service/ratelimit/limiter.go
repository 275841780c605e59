package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type entry struct {
	lim  *rate.Limiter
	last time.Time
}

// Limiter keeps one token bucket per key. Every key gets the same burst and
// refill rate.
type Limiter struct {
	mu     sync.Mutex
	m      map[string]*entry
	burst  int
	refill rate.Limit // tokens per second
	now    func() time.Time
}

func New(burst int, refillPerSec float64) *Limiter {
	return &Limiter{
		m:      make(map[string]*entry),
		burst:  burst,
		refill: rate.Limit(refillPerSec),
		now:    time.Now,
	}
}

// Allow returns true if one token can be consumed for key.
func (l *Limiter) Allow(key string) bool {
	ok, _ := l.Reserve(key)
	return ok
}

// Reserve consumes a token if one is available. Otherwise it reports how
// long until the next token, for a Retry-After header.
func (l *Limiter) Reserve(key string) (bool, time.Duration) {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.m[key]
	if !ok {
		e = &entry{lim: rate.NewLimiter(l.refill, l.burst)}
		l.m[key] = e
	}
	e.last = now

	r := e.lim.ReserveN(now, 1)
	if !r.OK() {
		return false, 0
	}
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return false, d
	}
	return true, 0
}

// Sweep drops keys idle long enough for their bucket to be full again.
func (l *Limiter) Sweep() int {
	now := l.now()
	full := time.Duration(float64(l.burst) / float64(l.refill) * float64(time.Second))
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for k, e := range l.m {
		if now.Sub(e.last) >= full {
			delete(l.m, k)
			n++
		}
	}
	return n
}

// Len reports the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}
