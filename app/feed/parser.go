package feed

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// publishedFormats is tried in order; the first format that parses wins.
var publishedFormats = []string{
	time.RFC1123Z,               // Mon, 02 Jan 2006 15:04:05 -0700
	time.RFC1123,                // Mon, 02 Jan 2006 15:04:05 MST
	"2006-01-02T15:04:05-07:00", // ISO 8601 with offset
	"2006-01-02T15:04:05Z",      // ISO 8601 UTC
	"2006-01-02 15:04:05",
}

var imgSrcPatterns = []*regexp.Regexp{
	regexp.MustCompile(`<img[^>]+src="([^"]+)"`),
	regexp.MustCompile(`<img[^>]+src='([^']+)'`),
}

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".svg"}

type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

// Run parses raw RSS/Atom data and returns the normalized entries plus the
// number of entries dropped for lacking a link. At most MaxEntriesPerFetch
// raw entries are considered.
func (p *Parser) Run(data []byte) ([]Item, int, error) {
	parsed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to parse feed: %w", err)
	}

	entries := parsed.Items
	if len(entries) > MaxEntriesPerFetch {
		entries = entries[:MaxEntriesPerFetch]
	}

	items := make([]Item, 0, len(entries))
	skipped := 0
	for _, entry := range entries {
		if entry.Link == "" {
			skipped++
			continue
		}
		items = append(items, p.normalizeItem(entry))
	}

	return items, skipped, nil
}

func (p *Parser) normalizeItem(item *gofeed.Item) Item {
	normalized := Item{
		Title:     item.Title,
		Link:      item.Link,
		Summary:   item.Description,
		Content:   extractContent(item),
		Published: parsePublished(item.Published),
	}

	if item.Author != nil {
		normalized.Author = item.Author.Name
	}

	normalized.Thumbnail = extractThumbnail(item, normalized.Content)

	return normalized
}

// extractContent prefers the full-content field over the summary.
func extractContent(item *gofeed.Item) string {
	if item.Content != "" {
		return item.Content
	}
	return item.Description
}

// parsePublished parses a feed-supplied date string against the known
// format list. An unparseable or missing date yields nil, not an error.
func parsePublished(raw string) *time.Time {
	if raw == "" {
		return nil
	}

	for _, format := range publishedFormats {
		if ts, err := time.Parse(format, raw); err == nil {
			return &ts
		}
	}

	return nil
}

// extractThumbnail tries, in order: the media:thumbnail extension, a
// media:content extension with an image MIME type, and the first <img>
// tag in the extracted content. Structured media fields are more reliable
// than free-text scraping, hence the order.
func extractThumbnail(item *gofeed.Item, content string) string {
	if media, ok := item.Extensions["media"]; ok {
		if thumbs := media["thumbnail"]; len(thumbs) > 0 {
			if url := thumbs[0].Attrs["url"]; url != "" {
				return url
			}
		}
		for _, mc := range media["content"] {
			if strings.HasPrefix(mc.Attrs["type"], "image/") && mc.Attrs["url"] != "" {
				return mc.Attrs["url"]
			}
		}
	}

	return scanContentImage(content)
}

// scanContentImage finds the first <img> src in content, strips any query
// string or fragment, and accepts it only if the remaining path ends in a
// recognized image extension.
func scanContentImage(content string) string {
	if content == "" {
		return ""
	}

	for _, pattern := range imgSrcPatterns {
		match := pattern.FindStringSubmatch(content)
		if match == nil {
			continue
		}

		url := match[1]
		url, _, _ = strings.Cut(url, "?")
		url, _, _ = strings.Cut(url, "#")

		lower := strings.ToLower(url)
		for _, ext := range imageExtensions {
			if strings.HasSuffix(lower, ext) {
				return url
			}
		}
	}

	return ""
}
