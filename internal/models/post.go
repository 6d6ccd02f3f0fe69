package models

import (
	"time"

	"github.com/google/uuid"
)

// GeneratedPost records one successful text generation: the user's idea,
// the model output, and the content-type tag (e.g. "Instagram Caption").
type GeneratedPost struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Input     string    `json:"input"`
	Output    string    `json:"output"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}
