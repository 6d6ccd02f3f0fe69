// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"branddos/internal/models"
)

// BrandStore reads and writes the one-per-user brand_settings row.
type BrandStore struct {
	db *sql.DB
}

// NewBrandStore creates a new BrandStore.
func NewBrandStore(db *sql.DB) *BrandStore {
	return &BrandStore{db: db}
}

const brandColumns = `user_id, brand_name, description, tone, keywords, logo_url, post_frequency, created_at, updated_at`

func scanBrand(row interface{ Scan(...any) error }) (*models.BrandSettings, error) {
	// pgtype.Map caches scan plans and is not safe for concurrent use,
	// so every scan gets its own.
	m := pgtype.NewMap()
	b := &models.BrandSettings{}
	err := row.Scan(
		&b.UserID, &b.BrandName, &b.Description, &b.Tone,
		m.SQLScanner(&b.Keywords), &b.LogoURL, &b.PostFrequency,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if b.Keywords == nil {
		b.Keywords = []string{}
	}
	return b, err
}

// FindByUser returns the user's brand settings, or nil if they have
// never saved any.
func (s *BrandStore) FindByUser(userID uuid.UUID) (*models.BrandSettings, error) {
	b, err := scanBrand(s.db.QueryRow(
		`SELECT `+brandColumns+` FROM brand_settings WHERE user_id = $1`, userID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find brand settings: %w", err)
	}
	return b, nil
}

// Upsert creates the row on first save and overwrites every field on
// later saves, keyed on user_id.
func (s *BrandStore) Upsert(b *models.BrandSettings) (*models.BrandSettings, error) {
	keywords := b.Keywords
	if keywords == nil {
		keywords = []string{}
	}

	saved, err := scanBrand(s.db.QueryRow(`
		INSERT INTO brand_settings (user_id, brand_name, description, tone, keywords, logo_url, post_frequency)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			brand_name     = EXCLUDED.brand_name,
			description    = EXCLUDED.description,
			tone           = EXCLUDED.tone,
			keywords       = EXCLUDED.keywords,
			logo_url       = EXCLUDED.logo_url,
			post_frequency = EXCLUDED.post_frequency,
			updated_at     = NOW()
		RETURNING `+brandColumns,
		b.UserID, b.BrandName, b.Description, string(b.Tone), keywords, b.LogoURL, b.PostFrequency,
	))
	if err != nil {
		return nil, fmt.Errorf("upsert brand settings: %w", err)
	}
	return saved, nil
}

// SetLogo updates only the logo URL. Returns false if the user has no
// brand settings row yet.
func (s *BrandStore) SetLogo(userID uuid.UUID, logoURL string) (bool, error) {
	res, err := s.db.Exec(`
		UPDATE brand_settings SET logo_url = $1, updated_at = NOW() WHERE user_id = $2
	`, logoURL, userID)
	if err != nil {
		return false, fmt.Errorf("set brand logo: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set brand logo rows: %w", err)
	}
	return n > 0, nil
}
