// Package ratelimit enforces per-session request ceilings: a token bucket
// smooths the per-minute rate and a sliding window caps the hourly total.
package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Kind distinguishes the two limited operation classes.
type Kind int

const (
	KindQuery Kind = iota
	KindToolCall
)

func (k Kind) String() string {
	if k == KindToolCall {
		return "tool_call"
	}
	return "query"
}

// RateLimitError reports a rejected request together with when the caller
// may retry.
type RateLimitError struct {
	Kind       Kind
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s: retry in %s", e.Kind, e.RetryAfter.Round(time.Second))
}

type quota struct {
	perMinute int
	perHour   int
}

var quotas = map[Kind]quota{
	KindQuery:    {perMinute: 10, perHour: 100},
	KindToolCall: {perMinute: 5, perHour: 30},
}

type session struct {
	buckets map[Kind]*rate.Limiter
	history map[Kind][]time.Time
	touched time.Time
}

// Limiter tracks per-session usage. The zero value is not usable; call New.
type Limiter struct {
	mu       sync.Mutex
	sessions map[string]*session
	now      func() time.Time
}

func New() *Limiter {
	return &Limiter{
		sessions: make(map[string]*session),
		now:      time.Now,
	}
}

// Allow records one operation for the session, or rejects it with a
// *RateLimitError when either the per-minute bucket or the hourly window
// is exhausted.
func (l *Limiter) Allow(sessionID string, kind Kind) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	s := l.session(sessionID, now)
	q := quotas[kind]

	recent := pruneOlderThan(s.history[kind], now.Add(-time.Hour))
	s.history[kind] = recent
	if len(recent) >= q.perHour {
		return &RateLimitError{Kind: kind, RetryAfter: recent[0].Add(time.Hour).Sub(now)}
	}

	if !s.buckets[kind].AllowN(now, 1) {
		return &RateLimitError{Kind: kind, RetryAfter: time.Minute / time.Duration(q.perMinute)}
	}

	s.history[kind] = append(recent, now)
	return nil
}

// Remaining reports how many operations of the given kind the session can
// still perform within the current hour.
func (l *Limiter) Remaining(sessionID string, kind Kind) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	s := l.session(sessionID, now)
	q := quotas[kind]
	s.history[kind] = pruneOlderThan(s.history[kind], now.Add(-time.Hour))
	if n := q.perHour - len(s.history[kind]); n > 0 {
		return n
	}
	return 0
}

// Purge drops sessions idle for longer than maxIdle and returns how many
// were removed.
func (l *Limiter) Purge(maxIdle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-maxIdle)
	removed := 0
	for id, s := range l.sessions {
		if s.touched.Before(cutoff) {
			delete(l.sessions, id)
			removed++
		}
	}
	return removed
}

func (l *Limiter) session(id string, now time.Time) *session {
	s, ok := l.sessions[id]
	if !ok {
		s = &session{
			buckets: make(map[Kind]*rate.Limiter, len(quotas)),
			history: make(map[Kind][]time.Time, len(quotas)),
		}
		for kind, q := range quotas {
			s.buckets[kind] = rate.NewLimiter(rate.Every(time.Minute/time.Duration(q.perMinute)), q.perMinute)
		}
		l.sessions[id] = s
	}
	s.touched = now
	return s
}

func pruneOlderThan(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(stamps) && stamps[i].Before(cutoff) {
		i++
	}
	return stamps[i:]
}
