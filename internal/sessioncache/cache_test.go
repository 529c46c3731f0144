package sessioncache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dkamalov/mediagrab"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestCache(ttl time.Duration) (*Cache, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	return New(ttl, WithClock(clock.Now)), clock
}

func TestStoreThenGet(t *testing.T) {
	assert := assert.New(t)
	cache, _ := newTestCache(DefaultTTL)

	id := cache.Store(Entry{
		Platform: "yt",
		Title:    "some video",
		Formats:  []mediagrab.Format{{Container: "m4a", Quality: "128K", Kind: mediagrab.MediaAudio}},
	})
	assert.NotEmpty(id)

	entry, err := cache.Get(id)
	assert.NoError(err)
	assert.Equal(id, entry.ID)
	assert.Equal("yt", entry.Platform)
	assert.Equal("some video", entry.Title)
	assert.Len(entry.Formats, 1)
}

func TestGetUnknownID(t *testing.T) {
	assert := assert.New(t)
	cache, _ := newTestCache(DefaultTTL)

	_, err := cache.Get("nope")
	assert.ErrorIs(err, ErrNotFound)
}

func TestExpiry(t *testing.T) {
	assert := assert.New(t)
	cache, clock := newTestCache(15 * time.Minute)

	id := cache.Store(Entry{Platform: "tt"})

	clock.Advance(14 * time.Minute)
	_, err := cache.Get(id)
	assert.NoError(err, "entry should survive inside the TTL window")

	clock.Advance(2 * time.Minute)
	_, err = cache.Get(id)
	assert.ErrorIs(err, ErrNotFound, "entry should be gone after the TTL window")
}

func TestLazyEvictionOnStore(t *testing.T) {
	assert := assert.New(t)
	cache, clock := newTestCache(time.Minute)

	stale := cache.Store(Entry{Platform: "yt"})
	clock.Advance(2 * time.Minute)

	// Storing a new entry sweeps the expired one.
	fresh := cache.Store(Entry{Platform: "insta"})

	var count int
	_ = cache.entries.Locked(func(m entries) error {
		count = len(m)
		return nil
	})
	assert.Equal(1, count)

	_, err := cache.Get(stale)
	assert.ErrorIs(err, ErrNotFound)
	_, err = cache.Get(fresh)
	assert.NoError(err)
}

func TestDistinctSessionIDs(t *testing.T) {
	assert := assert.New(t)
	cache, _ := newTestCache(DefaultTTL)

	a := cache.Store(Entry{Platform: "yt"})
	b := cache.Store(Entry{Platform: "yt"})
	assert.NotEqual(a, b)
}
