// Package sessioncache links the compact session identifier carried by menu
// buttons to a resolved format list, for long enough that the user can pick a
// format and the bot can finish the download.
package sessioncache

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dkamalov/mediagrab"
	"github.com/dkamalov/mediagrab/internal/sync_"
)

// ErrNotFound covers both a never-stored and an expired session id; callers
// render "session expired, resubmit the link" either way.
var ErrNotFound = errors.New("session not found or expired")

const DefaultTTL = 15 * time.Minute

// An Entry is one cached resolution result. Entries are immutable once stored:
// every access goes through Store/Get, nothing retains a reference across
// calls.
type Entry struct {
	ID       string
	Platform string
	Title    string
	Formats  []mediagrab.Format
	// Hits holds search results when the entry was produced by a free-text
	// query rather than a URL resolution.
	Hits []Hit
	// Meta carries platform-specific fields (author, caption, fallback URLs).
	Meta      map[string]string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// A Hit is one free-text search result.
type Hit struct {
	Title  string
	Author string
	URL    string
}

type entries = map[string]Entry

// Cache is the only structure in the system mutated by more than one flow
// concurrently; all access goes through its single guard, which is never held
// across a network call.
type Cache struct {
	ttl     time.Duration
	now     func() time.Time
	entries *sync_.Mutexed[entries]
	log     *zap.SugaredLogger
}

type Option func(*Cache)

// WithClock injects the time source, so TTL logic is testable without real
// time delays.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func New(ttl time.Duration, opts ...Option) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		ttl:     ttl,
		now:     time.Now,
		entries: sync_.NewMutexed(make(entries)),
		log:     zap.S().Named("sessioncache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store assigns the entry a fresh session id and TTL window and caches it,
// evicting anything already expired while it holds the lock.
func (c *Cache) Store(entry Entry) string {
	id := uuid.NewString()
	now := c.now()
	entry.ID = id
	entry.CreatedAt = now
	entry.ExpiresAt = now.Add(c.ttl)
	_ = c.entries.Locked(func(m entries) error {
		c.evict(m, now)
		m[id] = entry
		return nil
	})
	c.log.Debugw("stored session", "session_id", id, "platform", entry.Platform, "formats", len(entry.Formats))
	return id
}

// Get returns the entry for a session id, or ErrNotFound if it is missing or
// expired. Expired entries are evicted lazily here; there is no background
// sweeper.
func (c *Cache) Get(id string) (Entry, error) {
	var entry Entry
	var found bool
	now := c.now()
	_ = c.entries.Locked(func(m entries) error {
		c.evict(m, now)
		entry, found = m[id]
		return nil
	})
	if !found {
		c.log.Debugw("session miss", "session_id", id)
		return Entry{}, ErrNotFound
	}
	return entry, nil
}

// evict removes expired entries. Caller must hold the lock.
func (c *Cache) evict(m entries, now time.Time) {
	for id, entry := range m {
		if now.After(entry.ExpiresAt) {
			delete(m, id)
		}
	}
}
