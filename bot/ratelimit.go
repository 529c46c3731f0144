package bot

import (
	"time"

	"github.com/dkamalov/mediagrab/internal/sync_"
)

type rateWindows = map[int64][]time.Time

// rateLimiter is a per-user sliding window. It only needs to be roughly
// fair; the point is stopping one user from monopolizing the worker pools.
type rateLimiter struct {
	limit   int
	window  time.Duration
	now     func() time.Time
	windows *sync_.Mutexed[rateWindows]
}

func newRateLimiter(limit int, window time.Duration, now func() time.Time) *rateLimiter {
	if now == nil {
		now = time.Now
	}
	return &rateLimiter{
		limit:   limit,
		window:  window,
		now:     now,
		windows: sync_.NewMutexed(make(rateWindows)),
	}
}

// Allow records an action for the user and reports whether it is within the
// limit. A limit of 0 disables limiting.
func (r *rateLimiter) Allow(userID int64) bool {
	if r.limit <= 0 {
		return true
	}
	now := r.now()
	cutoff := now.Add(-r.window)
	allowed := false
	_ = r.windows.Locked(func(m rateWindows) error {
		recent := m[userID][:0]
		for _, t := range m[userID] {
			if t.After(cutoff) {
				recent = append(recent, t)
			}
		}
		if len(recent) < r.limit {
			recent = append(recent, now)
			allowed = true
		}
		m[userID] = recent
		return nil
	})
	return allowed
}
