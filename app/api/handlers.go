package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/infomatrix/infomatrix/app/cache"
	"github.com/infomatrix/infomatrix/app/cfg"
	"github.com/infomatrix/infomatrix/app/database"
	"github.com/infomatrix/infomatrix/app/feed"
)

const weekStartLayout = "2006-01-02"

func NewHandler(svc *feed.Service, db *database.DB, blogs database.BlogRepository,
	posts database.PostRepository, featured database.FeaturedRepository,
	cacheClient *cache.Client) *Handler {
	return &Handler{
		svc:      svc,
		db:       db,
		blogs:    blogs,
		posts:    posts,
		featured: featured,
		cache:    cacheClient,
	}
}

// GetPosts lists persisted posts, newest first, with optional blog and
// category filters.
func (h *Handler) GetPosts(c *gin.Context) {
	blogID := c.Query("blog_id")
	if blogID != "" {
		if _, err := uuid.Parse(blogID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid blog_id format"})
			return
		}
	}

	limit := queryInt(c, "limit", 100)
	if limit < 1 || limit > 500 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 500"})
		return
	}
	offset := queryInt(c, "offset", 0)
	if offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "offset must be non-negative"})
		return
	}

	posts, err := h.posts.List(database.PostListOptions{
		BlogID:   blogID,
		Category: c.Query("category"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		slog.Error("Database error", "operation", "list_posts", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	result := make([]postResponse, 0, len(posts))
	for _, post := range posts {
		result = append(result, toPostResponse(post))
	}

	c.JSON(http.StatusOK, result)
}

// GetLatestPosts serves the cache-first read path. A cache miss for a
// specific feed triggers a synchronous refresh cycle for that feed.
func (h *Handler) GetLatestPosts(c *gin.Context) {
	posts, err := h.svc.CachedPosts(c.Request.Context(), c.Query("feed_id"))
	if err != nil {
		slog.Error("Failed to get cached posts", "feed", c.Query("feed_id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load posts"})
		return
	}

	if posts == nil {
		posts = []feed.Post{}
	}

	c.JSON(http.StatusOK, posts)
}

// RefreshFeeds refreshes every configured feed and reports per-feed counts.
func (h *Handler) RefreshFeeds(c *gin.Context) {
	results := h.svc.RefreshAll(c.Request.Context())

	c.JSON(http.StatusOK, gin.H{
		"message":   "Feeds refreshed",
		"results":   results,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// SearchPosts runs a ranked full-text query.
func (h *Handler) SearchPosts(c *gin.Context) {
	query := c.Query("q")
	if len(query) < 2 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Query must be at least 2 characters"})
		return
	}

	limit := queryInt(c, "limit", 20)
	if limit < 1 || limit > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 100"})
		return
	}

	posts, err := h.posts.Search(query, limit)
	if err != nil {
		slog.Error("Database error", "operation", "search_posts", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	result := make([]postResponse, 0, len(posts))
	for _, post := range posts {
		result = append(result, toPostResponse(post))
	}

	c.JSON(http.StatusOK, result)
}

// GetBlogs lists the configured feed sources with their derived blog ids.
func (h *Handler) GetBlogs(c *gin.Context) {
	srcs := h.svc.Sources()

	result := make([]blogResponse, 0, len(srcs))
	for _, src := range srcs {
		result = append(result, blogResponse{
			ID:          src.ID,
			Name:        src.Name,
			URL:         src.URL,
			Category:    src.Category,
			SiteURL:     src.SiteURL,
			Description: src.Description,
		})
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) GetCategories(c *gin.Context) {
	categories, err := h.blogs.GetCategories()
	if err != nil {
		slog.Error("Database error", "operation", "get_categories", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if categories == nil {
		categories = []string{}
	}

	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

func (h *Handler) AddFeaturedPost(c *gin.Context) {
	var req featuredCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := uuid.Parse(req.PostID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid post_id format"})
		return
	}

	weekStart, err := time.Parse(weekStartLayout, req.WeekStart)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid week_start format, expected YYYY-MM-DD"})
		return
	}

	post, err := h.posts.GetByID(req.PostID)
	if err != nil {
		slog.Error("Database error", "operation", "get_post", "post", req.PostID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if post == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}

	featured, err := h.featured.Add(req.PostID, weekStart, req.EditorNotes, req.OrderIndex)
	if err == database.ErrAlreadyFeatured {
		c.JSON(http.StatusConflict, gin.H{"error": "Post is already featured for this week"})
		return
	}
	if err != nil {
		slog.Error("Database error", "operation", "add_featured", "post", req.PostID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusCreated, toFeaturedResponse(*featured))
}

func (h *Handler) GetFeaturedWeeks(c *gin.Context) {
	weeks, err := h.featured.GetWeeks()
	if err != nil {
		slog.Error("Database error", "operation", "get_featured_weeks", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	result := make([]gin.H, 0, len(weeks))
	for _, week := range weeks {
		result = append(result, gin.H{
			"week_start": week.WeekStart.Format(weekStartLayout),
			"post_count": week.PostCount,
		})
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) GetFeaturedPosts(c *gin.Context) {
	weekStart, err := time.Parse(weekStartLayout, c.Param("week"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid week format, expected YYYY-MM-DD"})
		return
	}

	featured, err := h.featured.GetByWeek(weekStart)
	if err != nil {
		slog.Error("Database error", "operation", "get_featured", "week", c.Param("week"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	posts := make([]featuredResponse, 0, len(featured))
	for _, fp := range featured {
		posts = append(posts, toFeaturedResponse(fp))
	}

	c.JSON(http.StatusOK, gin.H{
		"week_start": weekStart.Format(weekStartLayout),
		"posts":      posts,
	})
}

func (h *Handler) RemoveFeaturedPost(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid featured post id"})
		return
	}

	removed, err := h.featured.Remove(id)
	if err != nil {
		slog.Error("Database error", "operation", "remove_featured", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"error": "Featured post not found"})
		return
	}

	c.Status(http.StatusNoContent)
}

// GetHealth reports component status: unhealthy when the database is down,
// degraded when only the cache is.
func (h *Handler) GetHealth(c *gin.Context) {
	status := "healthy"

	dbHealth := gin.H{"status": "connected"}
	if h.db == nil {
		status = "unhealthy"
		dbHealth = gin.H{"status": "disconnected"}
	} else if err := h.db.Ping(); err != nil {
		status = "unhealthy"
		dbHealth = gin.H{"status": "disconnected", "message": err.Error()}
	}

	cacheHealth := gin.H{"status": "connected"}
	if h.cache == nil {
		if status == "healthy" {
			status = "degraded"
		}
		cacheHealth = gin.H{"status": "disconnected", "message": "caching disabled"}
	} else if err := h.cache.Ping(c.Request.Context()); err != nil {
		if status == "healthy" {
			status = "degraded"
		}
		cacheHealth = gin.H{"status": "disconnected", "message": err.Error()}
	}

	code := http.StatusOK
	if status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"database":  dbHealth,
		"cache":     cacheHealth,
		"feeds":     len(h.svc.Sources()),
	})
}

func (h *Handler) GetStats(c *gin.Context) {
	stats := gin.H{
		"total_feeds": len(h.svc.Sources()),
		"cache_ttl":   cfg.Get().CacheTTL,
	}

	if count, err := h.blogs.GetCount(); err == nil {
		stats["total_blogs"] = count
	}
	if count, err := h.posts.GetCount(); err == nil {
		stats["total_posts"] = count
	}
	if count, err := h.featured.GetCount(); err == nil {
		stats["total_featured"] = count
	}
	if counts, err := h.posts.GetCountByCategory(); err == nil {
		stats["posts_by_category"] = counts
	}

	c.JSON(http.StatusOK, stats)
}

func toPostResponse(post database.PostWithBlog) postResponse {
	resp := postResponse{
		ID:        post.ID,
		BlogID:    post.BlogID,
		BlogName:  post.BlogName,
		Title:     post.Title,
		Link:      post.Link,
		Summary:   post.Summary,
		Content:   post.Content,
		Thumbnail: post.Thumbnail,
		Author:    post.Author,
		Category:  post.BlogCategory,
	}

	if post.PublishedAt != nil {
		published := post.PublishedAt.UTC().Format(time.RFC3339)
		resp.Published = &published
	}

	return resp
}

func toFeaturedResponse(fp database.FeaturedPost) featuredResponse {
	return featuredResponse{
		ID:          fp.ID,
		PostID:      fp.PostID,
		WeekStart:   fp.WeekStart.Format(weekStartLayout),
		EditorNotes: fp.EditorNotes,
		OrderIndex:  fp.OrderIndex,
		CreatedAt:   fp.CreatedAt.UTC().Format(time.RFC3339),
		Title:       fp.Title,
		Link:        fp.Link,
		BlogName:    fp.BlogName,
	}
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}

	return value
}
