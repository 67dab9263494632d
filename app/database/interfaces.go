package database

import (
	"time"
)

type BlogRepository interface {
	Upsert(blog Blog) error
	GetByID(id string) (*Blog, error)
	GetCategories() ([]string, error)
	GetCount() (int, error)
}

type PostRepository interface {
	Upsert(post Post) error
	RefreshSearchVector(postID string) error

	GetByID(id string) (*PostWithBlog, error)
	GetByBlogAndLink(blogID, link string) (*Post, error)
	List(opts PostListOptions) ([]PostWithBlog, error)
	Search(query string, limit int) ([]PostWithBlog, error)

	GetCount() (int, error)
	GetCountByCategory() (map[string]int, error)
}

type FeaturedRepository interface {
	Add(postID string, weekStart time.Time, editorNotes string, orderIndex *int) (*FeaturedPost, error)
	GetByWeek(weekStart time.Time) ([]FeaturedPost, error)
	GetWeeks() ([]WeekInfo, error)
	Remove(id int) (bool, error)
	GetCount() (int, error)
}
