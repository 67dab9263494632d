package database

import (
	"database/sql"
	"fmt"
)

type blogRepository struct {
	db *DB
}

func NewBlogRepository(db *DB) BlogRepository {
	return &blogRepository{db: db}
}

// Upsert creates the blog row on first sight and re-syncs its metadata on
// every subsequent sight. The configuration is authoritative for blog
// metadata, so each refresh overwrites name, URL, category and description.
func (r *blogRepository) Upsert(blog Blog) error {
	_, err := r.db.Exec(`
		INSERT INTO blogs (id, name, rss_url, site_url, category, description)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''))
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			rss_url = EXCLUDED.rss_url,
			site_url = EXCLUDED.site_url,
			category = EXCLUDED.category,
			description = EXCLUDED.description,
			updated_at = NOW()
	`, blog.ID, blog.Name, blog.RSSURL, blog.SiteURL, blog.Category, blog.Description)

	if err != nil {
		return fmt.Errorf("failed to upsert blog: %w", err)
	}

	return nil
}

func (r *blogRepository) GetByID(id string) (*Blog, error) {
	var blog Blog
	err := r.db.QueryRow(`
		SELECT id, name, rss_url, COALESCE(site_url, ''), COALESCE(category, ''),
		       COALESCE(description, ''), created_at, updated_at
		FROM blogs
		WHERE id = $1
	`, id).Scan(
		&blog.ID, &blog.Name, &blog.RSSURL, &blog.SiteURL, &blog.Category,
		&blog.Description, &blog.CreatedAt, &blog.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get blog: %w", err)
	}

	return &blog, nil
}

func (r *blogRepository) GetCategories() ([]string, error) {
	rows, err := r.db.Query(`
		SELECT DISTINCT category
		FROM blogs
		WHERE category IS NOT NULL
		ORDER BY category
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get categories: %w", err)
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var category string
		if err := rows.Scan(&category); err != nil {
			return nil, fmt.Errorf("failed to scan category row: %w", err)
		}
		categories = append(categories, category)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating category rows: %w", err)
	}

	return categories, nil
}

func (r *blogRepository) GetCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM blogs").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get blog count: %w", err)
	}
	return count, nil
}
