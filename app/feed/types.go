package feed

import (
	"time"
)

// MaxEntriesPerFetch bounds per-cycle work against feeds with very long
// backlogs. Entries beyond the bound are ignored for that cycle.
const MaxEntriesPerFetch = 50

// Item is one normalized feed entry. Link is required (entries without one
// are dropped by the parser); every other field is best-effort and stays
// zero when the feed does not provide it.
type Item struct {
	Title     string
	Link      string
	Summary   string
	Content   string
	Author    string
	Thumbnail string
	Published *time.Time
}

// Post is the record produced by a refresh cycle. It is what gets cached
// per feed and served by the read APIs.
type Post struct {
	ID        string     `json:"id"`
	BlogID    string     `json:"blog_id"`
	BlogName  string     `json:"blog_name"`
	Title     string     `json:"title"`
	Link      string     `json:"link"`
	Summary   string     `json:"summary"`
	Content   string     `json:"content"`
	Thumbnail string     `json:"thumbnail,omitempty"`
	Author    string     `json:"author,omitempty"`
	Published *time.Time `json:"published,omitempty"`
	Category  string     `json:"category,omitempty"`
}
