package database

import (
	"database/sql"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"
)

// Demo account created by Seed in development.
const (
	SeedEmail    = "demo@branddos.local"
	seedPassword = "demo"
)

// Seed populates the database with a demo account and brand profile so the
// generation endpoints work right after a fresh start. It is a no-op when
// any user already exists.
func Seed(db *sql.DB) error {
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return fmt.Errorf("seed check users: %w", err)
	}

	if count > 0 {
		slog.Info("database already seeded, skipping")
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(seedPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("seed bcrypt: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("seed begin: %w", err)
	}
	defer tx.Rollback()

	var userID string
	err = tx.QueryRow(`
		INSERT INTO users (email, password_hash, display_name)
		VALUES ($1, $2, $3)
		RETURNING id
	`, SeedEmail, string(hash), "Demo Brand").Scan(&userID)
	if err != nil {
		return fmt.Errorf("seed insert user: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO brand_settings (user_id, brand_name, description, tone, keywords, post_frequency)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, userID, "Bean There", "A neighbourhood coffee roaster with a small cafe.",
		"Friendly", []string{"coffee", "fresh roast", "community"}, 3)
	if err != nil {
		return fmt.Errorf("seed insert brand settings: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed commit: %w", err)
	}

	slog.Info("database seeded with demo account",
		"email", SeedEmail,
		"password", seedPassword,
	)

	return nil
}
