package api

import (
	"github.com/infomatrix/infomatrix/app/cache"
	"github.com/infomatrix/infomatrix/app/database"
	"github.com/infomatrix/infomatrix/app/feed"
)

type Handler struct {
	svc      *feed.Service
	db       *database.DB
	blogs    database.BlogRepository
	posts    database.PostRepository
	featured database.FeaturedRepository
	cache    *cache.Client // nil when Redis is unavailable
}

type postResponse struct {
	ID        string  `json:"id"`
	BlogID    string  `json:"blog_id"`
	BlogName  string  `json:"blog_name"`
	Title     string  `json:"title"`
	Link      string  `json:"link"`
	Summary   string  `json:"summary"`
	Content   string  `json:"content"`
	Thumbnail string  `json:"thumbnail,omitempty"`
	Author    string  `json:"author,omitempty"`
	Published *string `json:"published,omitempty"`
	Category  string  `json:"category,omitempty"`
}

type blogResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	URL         string `json:"url"`
	Category    string `json:"category,omitempty"`
	SiteURL     string `json:"site_url,omitempty"`
	Description string `json:"description,omitempty"`
}

type featuredCreateRequest struct {
	PostID      string `json:"post_id" binding:"required"`
	WeekStart   string `json:"week_start" binding:"required"` // YYYY-MM-DD
	EditorNotes string `json:"editor_notes"`
	OrderIndex  *int   `json:"order_index"`
}

type featuredResponse struct {
	ID          int    `json:"id"`
	PostID      string `json:"post_id"`
	WeekStart   string `json:"week_start"`
	EditorNotes string `json:"editor_notes,omitempty"`
	OrderIndex  int    `json:"order_index"`
	CreatedAt   string `json:"created_at"`
	Title       string `json:"title"`
	Link        string `json:"link"`
	BlogName    string `json:"blog_name"`
}
