package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/infomatrix/infomatrix/app/database"
	"github.com/infomatrix/infomatrix/app/sources"
)

// Cache is the key/value contract the service consumes. A Get miss returns
// (nil, nil). Implementations may fail; the service degrades to "no caching
// this cycle" rather than aborting ingestion.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Service drives feed refresh cycles: fetch, ensure blog row, upsert posts,
// refresh the cache entry. The persistent store is the source of truth; the
// cache is purely a read accelerator.
type Service struct {
	srcs    []sources.Source
	byID    map[string]sources.Source
	fetcher *Fetcher
	blogs   database.BlogRepository
	posts   database.PostRepository
	cache   Cache // nil when the cache store is unavailable
	ttl     time.Duration
}

func NewService(srcs []sources.Source, fetcher *Fetcher, blogs database.BlogRepository,
	posts database.PostRepository, cache Cache, ttl time.Duration) *Service {
	byID := make(map[string]sources.Source, len(srcs))
	for _, src := range srcs {
		byID[src.ID] = src
	}

	return &Service{
		srcs:    srcs,
		byID:    byID,
		fetcher: fetcher,
		blogs:   blogs,
		posts:   posts,
		cache:   cache,
		ttl:     ttl,
	}
}

// Sources returns the configured feed sources in configuration order.
func (s *Service) Sources() []sources.Source {
	return s.srcs
}

// RefreshFeed runs one refresh cycle for a single feed and returns the
// posts successfully persisted this cycle. An unknown feed id or a failed
// fetch yields zero posts, not an error; only a blog upsert failure (which
// makes every post write impossible) propagates.
func (s *Service) RefreshFeed(ctx context.Context, feedID string) ([]Post, error) {
	src, ok := s.byID[feedID]
	if !ok {
		slog.Warn("Unknown feed requested", "feed", feedID)
		return nil, nil
	}

	items, skipped, err := s.fetcher.Run(ctx, src.URL)
	if err != nil {
		slog.Warn("Feed fetch failed", "feed", feedID, "url", src.URL, "error", err)
		return nil, nil
	}
	if skipped > 0 {
		slog.Info("Entries without links skipped", "feed", feedID, "skipped", skipped)
	}

	blogID := BlogID(src.ID).String()
	blog := database.Blog{
		ID:          blogID,
		Name:        src.Name,
		RSSURL:      src.URL,
		SiteURL:     src.SiteURL,
		Category:    src.Category,
		Description: src.Description,
	}
	if err := s.blogs.Upsert(blog); err != nil {
		return nil, fmt.Errorf("failed to upsert blog %s: %w", src.ID, err)
	}

	posts := make([]Post, 0, len(items))
	for _, item := range items {
		postID := PostID(src.ID, item.Link).String()

		row := database.Post{
			ID:          postID,
			BlogID:      blogID,
			Title:       item.Title,
			Link:        item.Link,
			Summary:     item.Summary,
			Content:     item.Content,
			Thumbnail:   item.Thumbnail,
			Author:      item.Author,
			PublishedAt: item.Published,
		}
		if err := s.posts.Upsert(row); err != nil {
			slog.Warn("Failed to upsert post", "feed", feedID, "link", item.Link, "error", err)
			continue
		}
		if err := s.posts.RefreshSearchVector(postID); err != nil {
			slog.Warn("Failed to refresh search vector", "feed", feedID, "post", postID, "error", err)
		}

		posts = append(posts, Post{
			ID:        postID,
			BlogID:    blogID,
			BlogName:  src.Name,
			Title:     item.Title,
			Link:      item.Link,
			Summary:   item.Summary,
			Content:   item.Content,
			Thumbnail: item.Thumbnail,
			Author:    item.Author,
			Published: item.Published,
			Category:  src.Category,
		})
	}

	// The cache write strictly follows all per-entry store writes, so a
	// cache hit never precedes the corresponding store state.
	s.storeCache(ctx, feedID, posts)

	return posts, nil
}

// RefreshAll refreshes every configured feed sequentially and returns a
// per-feed count of posts processed. Failures are isolated per feed.
func (s *Service) RefreshAll(ctx context.Context) map[string]int {
	results := make(map[string]int, len(s.srcs))

	for _, src := range s.srcs {
		posts, err := s.RefreshFeed(ctx, src.ID)
		if err != nil {
			slog.Error("Feed refresh failed", "feed", src.ID, "error", err)
			results[src.ID] = 0
			continue
		}
		results[src.ID] = len(posts)
	}

	return results
}

// CachedPosts serves the cache-first read path. With a feed id, a cache
// miss triggers a synchronous refresh cycle for that one feed. Without a
// feed id, it aggregates whatever feeds are currently cached.
func (s *Service) CachedPosts(ctx context.Context, feedID string) ([]Post, error) {
	if feedID == "" {
		return s.allCachedPosts(ctx), nil
	}

	if _, ok := s.byID[feedID]; !ok {
		return nil, nil
	}

	if posts, ok := s.readCache(ctx, feedID); ok {
		return posts, nil
	}

	return s.RefreshFeed(ctx, feedID)
}

func (s *Service) allCachedPosts(ctx context.Context) []Post {
	var all []Post
	for _, src := range s.srcs {
		if posts, ok := s.readCache(ctx, src.ID); ok {
			all = append(all, posts...)
		}
	}
	return all
}

func (s *Service) readCache(ctx context.Context, feedID string) ([]Post, bool) {
	if s.cache == nil {
		return nil, false
	}

	data, err := s.cache.Get(ctx, cacheKey(feedID))
	if err != nil {
		slog.Warn("Cache read failed", "feed", feedID, "error", err)
		return nil, false
	}
	if data == nil {
		return nil, false
	}

	var posts []Post
	if err := json.Unmarshal(data, &posts); err != nil {
		slog.Warn("Invalid cache payload, treating as miss", "feed", feedID, "error", err)
		return nil, false
	}

	return posts, true
}

func (s *Service) storeCache(ctx context.Context, feedID string, posts []Post) {
	if s.cache == nil {
		return
	}

	data, err := json.Marshal(posts)
	if err != nil {
		slog.Warn("Failed to marshal posts for cache", "feed", feedID, "error", err)
		return
	}

	if err := s.cache.SetWithTTL(ctx, cacheKey(feedID), data, s.ttl); err != nil {
		slog.Warn("Failed to cache posts", "feed", feedID, "error", err)
	}
}

func cacheKey(feedID string) string {
	return "posts:" + feedID
}
