// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Tone is the brand's voice. The first five values are the ones offered
// by the settings form; the rest are the template tones used to pick an
// image overlay preset.
type Tone string

const (
	ToneFriendly      Tone = "Friendly"
	ToneProfessional  Tone = "Professional"
	ToneWitty         Tone = "Witty"
	ToneInspirational Tone = "Inspirational"
	ToneAuthoritative Tone = "Authoritative"

	ToneFunny    Tone = "funny"
	ToneLuxury   Tone = "luxury"
	ToneSerious  Tone = "serious"
	ToneCreative Tone = "creative"
	ToneModern   Tone = "modern"
)

// Tones lists every accepted tone in display order.
var Tones = []Tone{
	ToneFriendly, ToneProfessional, ToneWitty, ToneInspirational, ToneAuthoritative,
	ToneFunny, ToneLuxury, ToneSerious, ToneCreative, ToneModern,
}

// DefaultPostFrequency is the weekly post count used when none is given.
const DefaultPostFrequency = 3

// ParseTone matches s against the known tones, ignoring case and
// surrounding whitespace.
func ParseTone(s string) (Tone, bool) {
	s = strings.TrimSpace(s)
	for _, t := range Tones {
		if strings.EqualFold(string(t), s) {
			return t, true
		}
	}
	return "", false
}

// BrandSettings is the per-user brand profile that steers every
// generation call. There is at most one row per user.
type BrandSettings struct {
	UserID        uuid.UUID `json:"user_id"`
	BrandName     string    `json:"brand_name"`
	Description   string    `json:"description"`
	Tone          Tone      `json:"tone"`
	Keywords      []string  `json:"keywords"`
	LogoURL       *string   `json:"logo_url"`
	PostFrequency int       `json:"post_frequency"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CleanKeywords trims every keyword and drops empty entries and
// case-insensitive duplicates, keeping the first occurrence's order.
func CleanKeywords(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, k := range in {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		key := strings.ToLower(k)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, k)
	}
	return out
}
