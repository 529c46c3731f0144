// Package search turns free-text queries into YouTube watch URLs, with a
// short-lived query cache so repeated searches don't hammer the upstream.
package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ppalone/ytsearch"
	"go.uber.org/zap"

	"github.com/dkamalov/mediagrab/internal/sync_"
)

const (
	DefaultLimit    = 30
	DefaultCacheTTL = 5 * time.Minute
)

// A Result is one search hit, already shaped as a resolvable watch URL.
type Result struct {
	VideoID string
	Title   string
	URL     string
}

type cacheEntry struct {
	results   []Result
	expiresAt time.Time
}

type cacheMap = map[string]cacheEntry

type Searcher struct {
	client   *ytsearch.Client
	limit    int
	cacheTTL time.Duration
	now      func() time.Time
	cache    *sync_.Mutexed[cacheMap]
	log      *zap.SugaredLogger
}

type Option func(*Searcher)

func WithLimit(limit int) Option {
	return func(s *Searcher) { s.limit = limit }
}

func WithClock(now func() time.Time) Option {
	return func(s *Searcher) { s.now = now }
}

func New(opts ...Option) *Searcher {
	s := &Searcher{
		client:   ytsearch.NewClient(nil),
		limit:    DefaultLimit,
		cacheTTL: DefaultCacheTTL,
		now:      time.Now,
		cache:    sync_.NewMutexed(make(cacheMap)),
		log:      zap.S().Named("search"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search returns up to the configured limit of results for a query,
// deduplicated by video id. Cached results are reused within the TTL.
func (s *Searcher) Search(ctx context.Context, query string) ([]Result, error) {
	key := strings.ToLower(strings.TrimSpace(query))
	if cached, ok := s.fromCache(key); ok {
		return cached, nil
	}

	response, err := s.client.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	seen := make(map[string]bool)
	var results []Result
	for _, v := range response.Results {
		if v.VideoID == "" || seen[v.VideoID] {
			continue
		}
		seen[v.VideoID] = true
		results = append(results, Result{
			VideoID: v.VideoID,
			Title:   v.Title,
			URL:     "https://www.youtube.com/watch?v=" + v.VideoID,
		})
		if len(results) >= s.limit {
			break
		}
	}
	s.log.Debugw("search complete", "query", query, "results", len(results))

	s.store(key, results)
	return results, nil
}

func (s *Searcher) fromCache(key string) ([]Result, bool) {
	var results []Result
	var found bool
	now := s.now()
	_ = s.cache.Locked(func(m cacheMap) error {
		for k, entry := range m {
			if now.After(entry.expiresAt) {
				delete(m, k)
			}
		}
		if entry, ok := m[key]; ok {
			results, found = entry.results, true
		}
		return nil
	})
	return results, found
}

func (s *Searcher) store(key string, results []Result) {
	expiresAt := s.now().Add(s.cacheTTL)
	_ = s.cache.Locked(func(m cacheMap) error {
		m[key] = cacheEntry{results: results, expiresAt: expiresAt}
		return nil
	})
}
