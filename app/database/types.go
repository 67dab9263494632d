package database

import (
	"time"
)

// Blog is the persisted representation of one configured feed source.
type Blog struct {
	ID          string // Deterministic UUID derived from the source id
	Name        string
	RSSURL      string
	SiteURL     string
	Category    string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Post is the persisted representation of one feed entry.
type Post struct {
	ID          string // Deterministic UUID derived from (source id, link)
	BlogID      string
	Title       string
	Link        string
	Summary     string
	Content     string
	Thumbnail   string
	Author      string
	PublishedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PostWithBlog is a post joined with its owning blog's display fields.
type PostWithBlog struct {
	Post
	BlogName     string
	BlogCategory string
}

// FeaturedPost is one editorial pick for a given week, joined with the
// post and blog fields the read API serves.
type FeaturedPost struct {
	ID          int
	PostID      string
	WeekStart   time.Time
	EditorNotes string
	OrderIndex  int
	CreatedAt   time.Time

	Title    string
	Link     string
	BlogName string
}

// WeekInfo summarizes one week that has featured posts.
type WeekInfo struct {
	WeekStart time.Time
	PostCount int
}

// PostListOptions filters and pages the post listing query.
type PostListOptions struct {
	BlogID   string
	Category string
	Limit    int
	Offset   int
}
