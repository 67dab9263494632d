package database

import (
	"database/sql"
	"fmt"
	"strings"
)

type postRepository struct {
	db *DB
}

func NewPostRepository(db *DB) PostRepository {
	return &postRepository{db: db}
}

// Upsert inserts a post or updates its mutable fields in place, keyed by
// the (blog_id, link) uniqueness constraint. A single atomic statement so
// concurrent refreshes of the same feed cannot race the check-then-write.
func (r *postRepository) Upsert(post Post) error {
	_, err := r.db.Exec(`
		INSERT INTO posts (id, blog_id, title, link, summary, content, thumbnail, author, published_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''), $9)
		ON CONFLICT (blog_id, link) DO UPDATE SET
			title = EXCLUDED.title,
			summary = EXCLUDED.summary,
			content = EXCLUDED.content,
			thumbnail = EXCLUDED.thumbnail,
			author = EXCLUDED.author,
			published_at = EXCLUDED.published_at,
			updated_at = NOW()
	`, post.ID, post.BlogID, post.Title, post.Link, post.Summary, post.Content,
		post.Thumbnail, post.Author, post.PublishedAt)

	if err != nil {
		return fmt.Errorf("failed to upsert post: %w", err)
	}

	return nil
}

// RefreshSearchVector recomputes the full-text search vector from the
// post's current text fields.
func (r *postRepository) RefreshSearchVector(postID string) error {
	_, err := r.db.Exec(`
		UPDATE posts
		SET tsv = to_tsvector('english',
			coalesce(title, '') || ' ' ||
			coalesce(summary, '') || ' ' ||
			coalesce(content, ''))
		WHERE id = $1
	`, postID)

	if err != nil {
		return fmt.Errorf("failed to refresh search vector: %w", err)
	}

	return nil
}

const postWithBlogColumns = `
	p.id, p.blog_id, p.title, p.link, COALESCE(p.summary, ''), COALESCE(p.content, ''),
	COALESCE(p.thumbnail, ''), COALESCE(p.author, ''), p.published_at,
	p.created_at, p.updated_at, b.name, COALESCE(b.category, '')`

func (r *postRepository) GetByID(id string) (*PostWithBlog, error) {
	row := r.db.QueryRow(`
		SELECT`+postWithBlogColumns+`
		FROM posts p
		JOIN blogs b ON b.id = p.blog_id
		WHERE p.id = $1
	`, id)

	post, err := scanPostWithBlog(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}

	return post, nil
}

func (r *postRepository) GetByBlogAndLink(blogID, link string) (*Post, error) {
	var post Post
	err := r.db.QueryRow(`
		SELECT id, blog_id, title, link, COALESCE(summary, ''), COALESCE(content, ''),
		       COALESCE(thumbnail, ''), COALESCE(author, ''), published_at, created_at, updated_at
		FROM posts
		WHERE blog_id = $1 AND link = $2
	`, blogID, link).Scan(
		&post.ID, &post.BlogID, &post.Title, &post.Link, &post.Summary, &post.Content,
		&post.Thumbnail, &post.Author, &post.PublishedAt, &post.CreatedAt, &post.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post by blog and link: %w", err)
	}

	return &post, nil
}

func (r *postRepository) List(opts PostListOptions) ([]PostWithBlog, error) {
	query := `
		SELECT` + postWithBlogColumns + `
		FROM posts p
		JOIN blogs b ON b.id = p.blog_id`

	var conditions []string
	var args []interface{}

	if opts.BlogID != "" {
		args = append(args, opts.BlogID)
		conditions = append(conditions, fmt.Sprintf("p.blog_id = $%d", len(args)))
	}
	if opts.Category != "" {
		args = append(args, opts.Category)
		conditions = append(conditions, fmt.Sprintf("b.category = $%d", len(args)))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	args = append(args, opts.Limit)
	query += fmt.Sprintf(" ORDER BY p.published_at DESC NULLS LAST LIMIT $%d", len(args))
	args = append(args, opts.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	return collectPostsWithBlog(rows)
}

// Search runs a ranked full-text query against the tsvector index.
func (r *postRepository) Search(query string, limit int) ([]PostWithBlog, error) {
	rows, err := r.db.Query(`
		SELECT`+postWithBlogColumns+`
		FROM posts p
		JOIN blogs b ON b.id = p.blog_id
		WHERE p.tsv @@ plainto_tsquery('english', $1)
		ORDER BY ts_rank_cd(p.tsv, plainto_tsquery('english', $1)) DESC
		LIMIT $2
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search posts: %w", err)
	}
	defer rows.Close()

	return collectPostsWithBlog(rows)
}

func (r *postRepository) GetCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM posts").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get post count: %w", err)
	}
	return count, nil
}

func (r *postRepository) GetCountByCategory() (map[string]int, error) {
	rows, err := r.db.Query(`
		SELECT COALESCE(b.category, ''), COUNT(p.id)
		FROM blogs b
		JOIN posts p ON p.blog_id = b.id
		GROUP BY b.category
		ORDER BY COUNT(p.id) DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get post counts by category: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var category string
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			return nil, fmt.Errorf("failed to scan category count row: %w", err)
		}
		if category == "" {
			category = "Uncategorized"
		}
		counts[category] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating category count rows: %w", err)
	}

	return counts, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPostWithBlog(row rowScanner) (*PostWithBlog, error) {
	var post PostWithBlog
	err := row.Scan(
		&post.ID, &post.BlogID, &post.Title, &post.Link, &post.Summary, &post.Content,
		&post.Thumbnail, &post.Author, &post.PublishedAt, &post.CreatedAt, &post.UpdatedAt,
		&post.BlogName, &post.BlogCategory,
	)
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func collectPostsWithBlog(rows *sql.Rows) ([]PostWithBlog, error) {
	var posts []PostWithBlog
	for rows.Next() {
		post, err := scanPostWithBlog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post row: %w", err)
		}
		posts = append(posts, *post)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating post rows: %w", err)
	}

	return posts, nil
}
