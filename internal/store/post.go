package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"branddos/internal/models"
)

// PostStore handles generated_posts: one row per successful text generation.
type PostStore struct {
	db *sql.DB
}

// NewPostStore creates a new PostStore.
func NewPostStore(db *sql.DB) *PostStore {
	return &PostStore{db: db}
}

// Create records a generated post.
func (s *PostStore) Create(userID uuid.UUID, input, output, postType string) (*models.GeneratedPost, error) {
	p := &models.GeneratedPost{}
	err := s.db.QueryRow(`
		INSERT INTO generated_posts (user_id, input, output, type)
		VALUES ($1, $2, $3, $4)
		RETURNING id, user_id, input, output, type, created_at
	`, userID, input, output, postType).Scan(
		&p.ID, &p.UserID, &p.Input, &p.Output, &p.Type, &p.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	return p, nil
}

// ListByUser returns the user's posts, newest first. Ties on created_at
// are broken by id so the order is stable. Never returns a nil slice.
func (s *PostStore) ListByUser(userID uuid.UUID) ([]models.GeneratedPost, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, input, output, type, created_at
		FROM generated_posts
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	posts := []models.GeneratedPost{}
	for rows.Next() {
		var p models.GeneratedPost
		if err := rows.Scan(&p.ID, &p.UserID, &p.Input, &p.Output, &p.Type, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// DeleteOwned removes a post only when it belongs to userID. Returns
// false when no row matched (missing, or owned by someone else).
func (s *PostStore) DeleteOwned(id, userID uuid.UUID) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM generated_posts WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, fmt.Errorf("delete post: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete post rows: %w", err)
	}
	return n > 0, nil
}
