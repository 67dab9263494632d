package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/infomatrix/infomatrix/app/database"
	"github.com/infomatrix/infomatrix/app/sources"
)

// mockBlogRepo implements a simple mock for testing
type mockBlogRepo struct {
	blogs   map[string]database.Blog
	upserts int
	err     error
}

func (m *mockBlogRepo) Upsert(blog database.Blog) error {
	if m.err != nil {
		return m.err
	}
	if m.blogs == nil {
		m.blogs = make(map[string]database.Blog)
	}
	m.blogs[blog.ID] = blog
	m.upserts++
	return nil
}

func (m *mockBlogRepo) GetByID(id string) (*database.Blog, error) {
	if blog, ok := m.blogs[id]; ok {
		return &blog, nil
	}
	return nil, nil
}

func (m *mockBlogRepo) GetCategories() ([]string, error) { return nil, nil }
func (m *mockBlogRepo) GetCount() (int, error)           { return len(m.blogs), nil }

// mockPostRepo implements a simple mock for testing
type mockPostRepo struct {
	posts           map[string]database.Post
	upserts         int
	vectorRefreshes int
	failLinks       map[string]bool
}

func (m *mockPostRepo) Upsert(post database.Post) error {
	if m.failLinks[post.Link] {
		return errors.New("mock upsert failure")
	}
	if m.posts == nil {
		m.posts = make(map[string]database.Post)
	}
	m.posts[post.ID] = post
	m.upserts++
	return nil
}

func (m *mockPostRepo) RefreshSearchVector(postID string) error {
	m.vectorRefreshes++
	return nil
}

func (m *mockPostRepo) GetByID(id string) (*database.PostWithBlog, error) { return nil, nil }
func (m *mockPostRepo) GetByBlogAndLink(blogID, link string) (*database.Post, error) {
	return nil, nil
}
func (m *mockPostRepo) List(opts database.PostListOptions) ([]database.PostWithBlog, error) {
	return nil, nil
}
func (m *mockPostRepo) Search(query string, limit int) ([]database.PostWithBlog, error) {
	return nil, nil
}
func (m *mockPostRepo) GetCount() (int, error)                    { return len(m.posts), nil }
func (m *mockPostRepo) GetCountByCategory() (map[string]int, error) { return nil, nil }

// mockCache implements the Cache interface backed by a map
type mockCache struct {
	data   map[string][]byte
	getErr error
	setErr error
	onSet  func(key string, value []byte)
}

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	data, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	return data, nil
}

func (m *mockCache) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.onSet != nil {
		m.onSet(key, value)
	}
	if m.setErr != nil {
		return m.setErr
	}
	if m.data == nil {
		m.data = make(map[string][]byte)
	}
	m.data[key] = value
	return nil
}

func feedXML(entries int) string {
	body := `<?xml version="1.0"?><rss version="2.0"><channel><title>Mock Feed</title>`
	for i := 0; i < entries; i++ {
		body += fmt.Sprintf(`<item><title>Post %d</title><link>https://example.com/post/%d</link><description>Body %d</description></item>`, i, i, i)
	}
	return body + `</channel></rss>`
}

func newTestFetcher(client *http.Client) *Fetcher {
	return NewFetcher(client, NewParser(), "TestAgent/1.0", 5*time.Second)
}

func TestRefreshFeedPersistsPosts(t *testing.T) {
	var fetchCount int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetchCount++
		w.Write([]byte(feedXML(2)))
	}))
	defer server.Close()

	srcs := []sources.Source{{ID: "mock-blog", Name: "Mock Blog", URL: server.URL, Category: "Tech"}}
	blogs := &mockBlogRepo{}
	posts := &mockPostRepo{}
	cache := &mockCache{}
	svc := NewService(srcs, newTestFetcher(server.Client()), blogs, posts, cache, time.Hour)

	result, err := svc.RefreshFeed(context.Background(), "mock-blog")

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if fetchCount != 1 {
		t.Errorf("Expected 1 fetch, got: %d", fetchCount)
	}
	if len(result) != 2 {
		t.Fatalf("Expected 2 posts, got: %d", len(result))
	}

	wantBlogID := BlogID("mock-blog").String()
	if blogs.upserts != 1 {
		t.Errorf("Expected 1 blog upsert, got: %d", blogs.upserts)
	}
	if _, ok := blogs.blogs[wantBlogID]; !ok {
		t.Errorf("Expected blog stored under derived ID %s", wantBlogID)
	}

	if posts.upserts != 2 {
		t.Errorf("Expected 2 post upserts, got: %d", posts.upserts)
	}
	if posts.vectorRefreshes != 2 {
		t.Errorf("Expected 2 search vector refreshes, got: %d", posts.vectorRefreshes)
	}

	wantPostID := PostID("mock-blog", "https://example.com/post/0").String()
	if result[0].ID != wantPostID {
		t.Errorf("Expected derived post ID %s, got: %s", wantPostID, result[0].ID)
	}
	if result[0].BlogName != "Mock Blog" {
		t.Errorf("Expected blog name propagated, got: %s", result[0].BlogName)
	}
	if result[0].Category != "Tech" {
		t.Errorf("Expected category propagated, got: %s", result[0].Category)
	}

	if _, ok := cache.data["posts:mock-blog"]; !ok {
		t.Error("Expected refreshed posts to be cached")
	}
}

func TestRefreshFeedIdempotent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(feedXML(3)))
	}))
	defer server.Close()

	srcs := []sources.Source{{ID: "mock-blog", Name: "Mock Blog", URL: server.URL}}
	posts := &mockPostRepo{}
	svc := NewService(srcs, newTestFetcher(server.Client()), &mockBlogRepo{}, posts, nil, time.Hour)

	for i := 0; i < 3; i++ {
		if _, err := svc.RefreshFeed(context.Background(), "mock-blog"); err != nil {
			t.Fatalf("Refresh %d: expected no error, got: %v", i, err)
		}
	}

	// Upsert keyed by derived ID, so repeated refreshes never grow the store.
	if len(posts.posts) != 3 {
		t.Errorf("Expected 3 distinct posts after repeated refreshes, got: %d", len(posts.posts))
	}
}

func TestRefreshFeedUnknownFeed(t *testing.T) {
	svc := NewService(nil, newTestFetcher(http.DefaultClient), &mockBlogRepo{}, &mockPostRepo{}, nil, time.Hour)

	result, err := svc.RefreshFeed(context.Background(), "no-such-feed")

	if err != nil {
		t.Errorf("Expected no error for unknown feed, got: %v", err)
	}
	if result != nil {
		t.Errorf("Expected nil result for unknown feed, got: %v", result)
	}
}

func TestRefreshFeedFetchFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	srcs := []sources.Source{{ID: "broken", Name: "Broken", URL: server.URL}}
	blogs := &mockBlogRepo{}
	cache := &mockCache{}
	svc := NewService(srcs, newTestFetcher(server.Client()), blogs, &mockPostRepo{}, cache, time.Hour)

	result, err := svc.RefreshFeed(context.Background(), "broken")

	if err != nil {
		t.Errorf("Expected fetch failure to be swallowed, got: %v", err)
	}
	if len(result) != 0 {
		t.Errorf("Expected 0 posts, got: %d", len(result))
	}
	if blogs.upserts != 0 {
		t.Errorf("Expected no blog upsert after fetch failure, got: %d", blogs.upserts)
	}
	if len(cache.data) != 0 {
		t.Error("Expected cache untouched after fetch failure")
	}
}

func TestRefreshFeedBlogUpsertFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(feedXML(2)))
	}))
	defer server.Close()

	srcs := []sources.Source{{ID: "mock-blog", Name: "Mock Blog", URL: server.URL}}
	blogs := &mockBlogRepo{err: errors.New("database down")}
	posts := &mockPostRepo{}
	svc := NewService(srcs, newTestFetcher(server.Client()), blogs, posts, nil, time.Hour)

	_, err := svc.RefreshFeed(context.Background(), "mock-blog")

	if err == nil {
		t.Fatal("Expected error when blog upsert fails")
	}
	if posts.upserts != 0 {
		t.Errorf("Expected no post upserts after blog failure, got: %d", posts.upserts)
	}
}

func TestRefreshFeedPostFailureIsolated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(feedXML(3)))
	}))
	defer server.Close()

	srcs := []sources.Source{{ID: "mock-blog", Name: "Mock Blog", URL: server.URL}}
	posts := &mockPostRepo{failLinks: map[string]bool{"https://example.com/post/1": true}}
	cache := &mockCache{}
	svc := NewService(srcs, newTestFetcher(server.Client()), &mockBlogRepo{}, posts, cache, time.Hour)

	result, err := svc.RefreshFeed(context.Background(), "mock-blog")

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(result) != 2 {
		t.Errorf("Expected 2 posts after one failed upsert, got: %d", len(result))
	}
	for _, post := range result {
		if post.Link == "https://example.com/post/1" {
			t.Error("Failed post must not appear in results")
		}
	}

	var cached []Post
	if err := json.Unmarshal(cache.data["posts:mock-blog"], &cached); err != nil {
		t.Fatalf("Failed to decode cached payload: %v", err)
	}
	for _, post := range cached {
		if _, ok := posts.posts[post.ID]; !ok {
			t.Errorf("Cached post %s is not in the store", post.ID)
		}
	}
}

func TestRefreshFeedCacheWriteFollowsStore(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(feedXML(2)))
	}))
	defer server.Close()

	srcs := []sources.Source{{ID: "mock-blog", Name: "Mock Blog", URL: server.URL}}
	posts := &mockPostRepo{}
	cache := &mockCache{}
	cache.onSet = func(key string, value []byte) {
		// Every post in the payload must already be persisted at write time.
		var payload []Post
		if err := json.Unmarshal(value, &payload); err != nil {
			t.Errorf("Invalid cache payload: %v", err)
			return
		}
		for _, post := range payload {
			if _, ok := posts.posts[post.ID]; !ok {
				t.Errorf("Cache write for %s preceded its store write", post.ID)
			}
		}
	}
	svc := NewService(srcs, newTestFetcher(server.Client()), &mockBlogRepo{}, posts, cache, time.Hour)

	if _, err := svc.RefreshFeed(context.Background(), "mock-blog"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(cache.data) != 1 {
		t.Errorf("Expected exactly 1 cache entry, got: %d", len(cache.data))
	}
}

func TestRefreshFeedCacheFailureTolerated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(feedXML(2)))
	}))
	defer server.Close()

	srcs := []sources.Source{{ID: "mock-blog", Name: "Mock Blog", URL: server.URL}}
	cache := &mockCache{setErr: errors.New("cache store down")}
	svc := NewService(srcs, newTestFetcher(server.Client()), &mockBlogRepo{}, &mockPostRepo{}, cache, time.Hour)

	result, err := svc.RefreshFeed(context.Background(), "mock-blog")

	if err != nil {
		t.Errorf("Expected cache failure to be tolerated, got: %v", err)
	}
	if len(result) != 2 {
		t.Errorf("Expected 2 posts despite cache failure, got: %d", len(result))
	}
}

func TestRefreshAllIsolatesFailures(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/good-a", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(feedXML(2)))
	})
	mux.HandleFunc("/bad", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	mux.HandleFunc("/good-b", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(feedXML(1)))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	srcs := []sources.Source{
		{ID: "feed-a", Name: "Feed A", URL: server.URL + "/good-a"},
		{ID: "feed-bad", Name: "Feed Bad", URL: server.URL + "/bad"},
		{ID: "feed-b", Name: "Feed B", URL: server.URL + "/good-b"},
	}
	svc := NewService(srcs, newTestFetcher(server.Client()), &mockBlogRepo{}, &mockPostRepo{}, nil, time.Hour)

	results := svc.RefreshAll(context.Background())

	if len(results) != 3 {
		t.Fatalf("Expected results for all 3 feeds, got: %d", len(results))
	}
	if results["feed-a"] != 2 {
		t.Errorf("Expected 2 posts for feed-a, got: %d", results["feed-a"])
	}
	if results["feed-bad"] != 0 {
		t.Errorf("Expected 0 posts for failing feed, got: %d", results["feed-bad"])
	}
	if results["feed-b"] != 1 {
		t.Errorf("Expected 1 post for feed-b, got: %d", results["feed-b"])
	}
}

func TestCachedPostsHit(t *testing.T) {
	var fetchCount int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetchCount++
		w.Write([]byte(feedXML(2)))
	}))
	defer server.Close()

	cachedPosts := []Post{{ID: "cached-id", Title: "Cached Post", Link: "https://example.com/cached"}}
	payload, _ := json.Marshal(cachedPosts)

	srcs := []sources.Source{{ID: "mock-blog", Name: "Mock Blog", URL: server.URL}}
	cache := &mockCache{data: map[string][]byte{"posts:mock-blog": payload}}
	svc := NewService(srcs, newTestFetcher(server.Client()), &mockBlogRepo{}, &mockPostRepo{}, cache, time.Hour)

	result, err := svc.CachedPosts(context.Background(), "mock-blog")

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if fetchCount != 0 {
		t.Errorf("Expected no fetch on cache hit, got: %d", fetchCount)
	}
	if len(result) != 1 || result[0].Title != "Cached Post" {
		t.Errorf("Expected cached payload returned verbatim, got: %v", result)
	}
}

func TestCachedPostsMissTriggersRefresh(t *testing.T) {
	var fetchCount int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetchCount++
		w.Write([]byte(feedXML(2)))
	}))
	defer server.Close()

	srcs := []sources.Source{{ID: "mock-blog", Name: "Mock Blog", URL: server.URL}}
	cache := &mockCache{}
	svc := NewService(srcs, newTestFetcher(server.Client()), &mockBlogRepo{}, &mockPostRepo{}, cache, time.Hour)

	result, err := svc.CachedPosts(context.Background(), "mock-blog")

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if fetchCount != 1 {
		t.Errorf("Expected 1 fetch on cache miss, got: %d", fetchCount)
	}
	if len(result) != 2 {
		t.Errorf("Expected 2 posts, got: %d", len(result))
	}
	if _, ok := cache.data["posts:mock-blog"]; !ok {
		t.Error("Expected cache populated after miss")
	}
}

func TestCachedPostsUnknownFeed(t *testing.T) {
	svc := NewService(nil, newTestFetcher(http.DefaultClient), &mockBlogRepo{}, &mockPostRepo{}, &mockCache{}, time.Hour)

	result, err := svc.CachedPosts(context.Background(), "no-such-feed")

	if err != nil {
		t.Errorf("Expected no error for unknown feed, got: %v", err)
	}
	if result != nil {
		t.Errorf("Expected nil result for unknown feed, got: %v", result)
	}
}

func TestCachedPostsAggregatesCachedFeedsOnly(t *testing.T) {
	var fetchCount int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetchCount++
		w.Write([]byte(feedXML(1)))
	}))
	defer server.Close()

	postsA, _ := json.Marshal([]Post{{ID: "a1", Title: "A1"}, {ID: "a2", Title: "A2"}})
	postsB, _ := json.Marshal([]Post{{ID: "b1", Title: "B1"}})

	srcs := []sources.Source{
		{ID: "feed-a", Name: "Feed A", URL: server.URL},
		{ID: "feed-b", Name: "Feed B", URL: server.URL},
		{ID: "feed-c", Name: "Feed C", URL: server.URL}, // not cached
	}
	cache := &mockCache{data: map[string][]byte{
		"posts:feed-a": postsA,
		"posts:feed-b": postsB,
	}}
	svc := NewService(srcs, newTestFetcher(server.Client()), &mockBlogRepo{}, &mockPostRepo{}, cache, time.Hour)

	result, err := svc.CachedPosts(context.Background(), "")

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if fetchCount != 0 {
		t.Errorf("Expected aggregation not to trigger fetches, got: %d", fetchCount)
	}
	if len(result) != 3 {
		t.Errorf("Expected 3 posts from the 2 cached feeds, got: %d", len(result))
	}
	if result[0].ID != "a1" || result[2].ID != "b1" {
		t.Errorf("Expected configuration order preserved, got: %v", result)
	}
}

func TestServiceWithoutCache(t *testing.T) {
	var fetchCount int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetchCount++
		w.Write([]byte(feedXML(1)))
	}))
	defer server.Close()

	srcs := []sources.Source{{ID: "mock-blog", Name: "Mock Blog", URL: server.URL}}
	svc := NewService(srcs, newTestFetcher(server.Client()), &mockBlogRepo{}, &mockPostRepo{}, nil, time.Hour)

	// Every read is a miss without a cache, so each call refreshes.
	for i := 1; i <= 2; i++ {
		result, err := svc.CachedPosts(context.Background(), "mock-blog")
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if len(result) != 1 {
			t.Errorf("Expected 1 post, got: %d", len(result))
		}
		if fetchCount != i {
			t.Errorf("Expected %d fetches, got: %d", i, fetchCount)
		}
	}
}

func TestCachedPostsCacheReadFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(feedXML(1)))
	}))
	defer server.Close()

	srcs := []sources.Source{{ID: "mock-blog", Name: "Mock Blog", URL: server.URL}}
	cache := &mockCache{getErr: errors.New("cache store down")}
	svc := NewService(srcs, newTestFetcher(server.Client()), &mockBlogRepo{}, &mockPostRepo{}, cache, time.Hour)

	result, err := svc.CachedPosts(context.Background(), "mock-blog")

	if err != nil {
		t.Fatalf("Expected read failure treated as miss, got: %v", err)
	}
	if len(result) != 1 {
		t.Errorf("Expected refresh to serve the read, got %d posts", len(result))
	}
}
