package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrAlreadyFeatured is returned when a post is already featured for the
// requested week.
var ErrAlreadyFeatured = errors.New("post is already featured for this week")

type featuredRepository struct {
	db *DB
}

func NewFeaturedRepository(db *DB) FeaturedRepository {
	return &featuredRepository{db: db}
}

func (r *featuredRepository) Add(postID string, weekStart time.Time, editorNotes string, orderIndex *int) (*FeaturedPost, error) {
	index := 0
	if orderIndex != nil {
		index = *orderIndex
	} else {
		err := r.db.QueryRow(`
			SELECT COALESCE(MAX(order_index), 0) + 1
			FROM featured_posts
			WHERE week_start = $1
		`, weekStart).Scan(&index)
		if err != nil {
			return nil, fmt.Errorf("failed to compute order index: %w", err)
		}
	}

	var id int
	err := r.db.QueryRow(`
		INSERT INTO featured_posts (post_id, week_start, editor_notes, order_index)
		VALUES ($1, $2, NULLIF($3, ''), $4)
		ON CONFLICT (post_id, week_start) DO NOTHING
		RETURNING id
	`, postID, weekStart, editorNotes, index).Scan(&id)

	if err == sql.ErrNoRows {
		return nil, ErrAlreadyFeatured
	}
	if err != nil {
		return nil, fmt.Errorf("failed to add featured post: %w", err)
	}

	return r.getByID(id)
}

func (r *featuredRepository) getByID(id int) (*FeaturedPost, error) {
	var featured FeaturedPost
	err := r.db.QueryRow(`
		SELECT f.id, f.post_id, f.week_start, COALESCE(f.editor_notes, ''), f.order_index,
		       f.created_at, p.title, p.link, b.name
		FROM featured_posts f
		JOIN posts p ON p.id = f.post_id
		JOIN blogs b ON b.id = p.blog_id
		WHERE f.id = $1
	`, id).Scan(
		&featured.ID, &featured.PostID, &featured.WeekStart, &featured.EditorNotes,
		&featured.OrderIndex, &featured.CreatedAt, &featured.Title, &featured.Link,
		&featured.BlogName,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get featured post: %w", err)
	}

	return &featured, nil
}

func (r *featuredRepository) GetByWeek(weekStart time.Time) ([]FeaturedPost, error) {
	rows, err := r.db.Query(`
		SELECT f.id, f.post_id, f.week_start, COALESCE(f.editor_notes, ''), f.order_index,
		       f.created_at, p.title, p.link, b.name
		FROM featured_posts f
		JOIN posts p ON p.id = f.post_id
		JOIN blogs b ON b.id = p.blog_id
		WHERE f.week_start = $1
		ORDER BY f.order_index
	`, weekStart)
	if err != nil {
		return nil, fmt.Errorf("failed to get featured posts: %w", err)
	}
	defer rows.Close()

	var featured []FeaturedPost
	for rows.Next() {
		var fp FeaturedPost
		err := rows.Scan(
			&fp.ID, &fp.PostID, &fp.WeekStart, &fp.EditorNotes, &fp.OrderIndex,
			&fp.CreatedAt, &fp.Title, &fp.Link, &fp.BlogName,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan featured post row: %w", err)
		}
		featured = append(featured, fp)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating featured post rows: %w", err)
	}

	return featured, nil
}

func (r *featuredRepository) GetWeeks() ([]WeekInfo, error) {
	rows, err := r.db.Query(`
		SELECT week_start, COUNT(*)
		FROM featured_posts
		GROUP BY week_start
		ORDER BY week_start DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get featured weeks: %w", err)
	}
	defer rows.Close()

	var weeks []WeekInfo
	for rows.Next() {
		var week WeekInfo
		if err := rows.Scan(&week.WeekStart, &week.PostCount); err != nil {
			return nil, fmt.Errorf("failed to scan week row: %w", err)
		}
		weeks = append(weeks, week)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating week rows: %w", err)
	}

	return weeks, nil
}

func (r *featuredRepository) Remove(id int) (bool, error) {
	result, err := r.db.Exec("DELETE FROM featured_posts WHERE id = $1", id)
	if err != nil {
		return false, fmt.Errorf("failed to remove featured post: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return affected > 0, nil
}

func (r *featuredRepository) GetCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM featured_posts").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get featured post count: %w", err)
	}
	return count, nil
}
