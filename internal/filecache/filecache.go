// Package filecache remembers the chat platform's file id for media that was
// already delivered once, so a repeated request re-sends the cached file
// instead of downloading it again.
package filecache

import (
	"encoding/json"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

// Bucket name carries a version so a record-shape change just starts a fresh
// bucket instead of choking on old payloads.
var bucketName = []byte("delivered-v1")

// A Record is one previously delivered file.
type Record struct {
	FileID   string    `json:"file_id"`
	Title    string    `json:"title"`
	Kind     string    `json:"kind"`
	CachedAt time.Time `json:"cached_at"`
}

type Cache struct {
	db  *bolt.DB
	log *zap.SugaredLogger
}

func Open(path string) (*Cache, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Cache{db: db, log: zap.S().Named("filecache")}, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

// Key builds the lookup key for one (platform, source URL, variant) triple.
func Key(platform, sourceURL, selector string) string {
	return strings.Join([]string{platform, sourceURL, selector}, "|")
}

// Put stores a delivered file id. Failures are logged and swallowed; the
// cache is an optimization, not a dependency.
func (c *Cache) Put(key string, record Record) {
	record.CachedAt = time.Now()
	payload, err := json.Marshal(record)
	if err != nil {
		c.log.Warnw("failed to encode record", "key", key, "error", err)
		return
	}
	err = c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(key), payload)
	})
	if err != nil {
		c.log.Warnw("failed to store record", "key", key, "error", err)
	}
}

// Get returns the cached record for a key, or (zero, false).
func (c *Cache) Get(key string) (Record, bool) {
	var record Record
	var found bool
	err := c.db.View(func(tx *bolt.Tx) error {
		payload := tx.Bucket(bucketName).Get([]byte(key))
		if payload == nil {
			return nil
		}
		if err := json.Unmarshal(payload, &record); err != nil {
			// A corrupt record behaves like a miss.
			return nil
		}
		found = true
		return nil
	})
	if err != nil {
		c.log.Warnw("failed to read record", "key", key, "error", err)
		return Record{}, false
	}
	return record, found
}

// Delete drops a record, for when a cached file id stops working.
func (c *Cache) Delete(key string) {
	err := c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Delete([]byte(key))
	})
	if err != nil {
		c.log.Warnw("failed to delete record", "key", key, "error", err)
	}
}
