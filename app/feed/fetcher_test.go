package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const fetcherTestFeed = `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Test Feed</title>
    <item>
      <title>Test Item</title>
      <link>https://example.com/item1</link>
    </item>
  </channel>
</rss>`

func TestFetcherRun(t *testing.T) {
	var gotUserAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(fetcherTestFeed))
	}))
	defer server.Close()

	fetcher := NewFetcher(server.Client(), NewParser(), "TestAgent/1.0", 5*time.Second)
	items, skipped, err := fetcher.Run(context.Background(), server.URL)

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if skipped != 0 {
		t.Errorf("Expected 0 skipped entries, got: %d", skipped)
	}
	if len(items) != 1 {
		t.Fatalf("Expected 1 item, got: %d", len(items))
	}
	if items[0].Title != "Test Item" {
		t.Errorf("Expected title 'Test Item', got: %s", items[0].Title)
	}
	if gotUserAgent != "TestAgent/1.0" {
		t.Errorf("Expected configured User-Agent header, got: %s", gotUserAgent)
	}
}

func TestFetcherRunHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	fetcher := NewFetcher(server.Client(), NewParser(), "TestAgent/1.0", 5*time.Second)
	_, _, err := fetcher.Run(context.Background(), server.URL)

	if err == nil {
		t.Error("Expected error for HTTP 500 response")
	}
}

func TestFetcherRunNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	fetcher := NewFetcher(server.Client(), NewParser(), "TestAgent/1.0", 5*time.Second)
	_, _, err := fetcher.Run(context.Background(), server.URL)

	if err == nil {
		t.Error("Expected error for HTTP 404 response")
	}
}

func TestFetcherRunTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.Write([]byte(fetcherTestFeed))
	}))
	defer server.Close()

	fetcher := NewFetcher(server.Client(), NewParser(), "TestAgent/1.0", 50*time.Millisecond)
	_, _, err := fetcher.Run(context.Background(), server.URL)

	if err == nil {
		t.Error("Expected error when fetch exceeds timeout")
	}
}

func TestFetcherRunMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("this is not a feed"))
	}))
	defer server.Close()

	fetcher := NewFetcher(server.Client(), NewParser(), "TestAgent/1.0", 5*time.Second)
	_, _, err := fetcher.Run(context.Background(), server.URL)

	if err == nil {
		t.Error("Expected error for unparseable response body")
	}
}

func TestFetcherRunInvalidURL(t *testing.T) {
	fetcher := NewFetcher(http.DefaultClient, NewParser(), "TestAgent/1.0", 5*time.Second)
	_, _, err := fetcher.Run(context.Background(), "http://127.0.0.1:1/feed.xml")

	if err == nil {
		t.Error("Expected error for unreachable host")
	}
}
