// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"
)

// ModerationResult contains the outcome of a prompt safety check.
type ModerationResult struct {
	Safe       bool     // true if the prompt passes moderation
	Categories []string // flagged category names, sorted (empty when safe)
}

// Moderator checks user prompts for policy violations before they reach
// a generation endpoint.
type Moderator interface {
	CheckSafety(ctx context.Context, text string) (*ModerationResult, error)
}

// httpModerator talks to an OpenAI-style POST /moderations endpoint.
// OpenAI and Mistral share the request shape; they differ in model name,
// path and whether a top-level "flagged" flag is present.
type httpModerator struct {
	name    string
	apiKey  string
	url     string
	model   string
	client  *http.Client
	flagged bool // response carries results[0].flagged
}

// newOpenAIModerator uses OpenAI's moderation API, free for all keys.
func newOpenAIModerator(apiKey, baseURL string) *httpModerator {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &httpModerator{
		name:    "openai",
		apiKey:  apiKey,
		url:     baseURL + "/moderations",
		model:   "omni-moderation-latest",
		client:  &http.Client{Timeout: 15 * time.Second},
		flagged: true,
	}
}

// newMistralModerator uses Mistral's moderation API. baseURL is the
// same value the chat provider uses (ending in /v1).
func newMistralModerator(apiKey, baseURL string) *httpModerator {
	if baseURL == "" {
		baseURL = "https://api.mistral.ai/v1"
	}
	return &httpModerator{
		name:   "mistral",
		apiKey: apiKey,
		url:    strings.TrimSuffix(baseURL, "/") + "/moderations",
		model:  "mistral-moderation-latest",
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

func (m *httpModerator) CheckSafety(ctx context.Context, text string) (*ModerationResult, error) {
	payload, err := json.Marshal(modRequest{Model: m.model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("%s moderation marshal: %w", m.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%s moderation request: %w", m.name, err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s moderation http: %w", m.name, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s moderation read body: %w", m.name, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &ModerationStatusError{Provider: m.name, Status: resp.StatusCode, Body: string(respBody)}
	}

	var result modResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("%s moderation unmarshal: %w", m.name, err)
	}

	if len(result.Results) == 0 {
		return &ModerationResult{Safe: true}, nil
	}
	r := result.Results[0]
	if m.flagged && !r.Flagged {
		return &ModerationResult{Safe: true}, nil
	}

	var cats []string
	for cat, hit := range r.Categories {
		if hit {
			cats = append(cats, displayCategory(cat))
		}
	}
	sort.Strings(cats)

	return &ModerationResult{Safe: len(cats) == 0, Categories: cats}, nil
}

// displayCategory turns "hate/threatening" into "hate (threatening)" and
// "self_harm" into "self harm".
func displayCategory(cat string) string {
	if head, tail, ok := strings.Cut(cat, "/"); ok {
		cat = head + " (" + tail + ")"
	}
	return strings.ReplaceAll(cat, "_", " ")
}

// ModerationStatusError is a non-200 answer from a moderation endpoint.
type ModerationStatusError struct {
	Provider string
	Status   int
	Body     string
}

func (e *ModerationStatusError) Error() string {
	return fmt.Sprintf("%s moderation API error (status %d): %s", e.Provider, e.Status, e.Body)
}

// fallbackModerator asks primary first and switches to secondary when
// primary rejects the credentials (project-scoped OpenAI keys cannot call
// the moderation endpoint). Other errors are returned as-is.
type fallbackModerator struct {
	primary   Moderator
	secondary Moderator
}

func newFallbackModerator(primary, secondary Moderator) *fallbackModerator {
	return &fallbackModerator{primary: primary, secondary: secondary}
}

func (f *fallbackModerator) CheckSafety(ctx context.Context, text string) (*ModerationResult, error) {
	res, err := f.primary.CheckSafety(ctx, text)
	if err == nil {
		return res, nil
	}
	var se *ModerationStatusError
	if errors.As(err, &se) && (se.Status == http.StatusUnauthorized || se.Status == http.StatusForbidden) {
		slog.Warn("primary moderator rejected credentials, using fallback", "provider", se.Provider)
		return f.secondary.CheckSafety(ctx, text)
	}
	return nil, err
}

type modRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type modResponse struct {
	Results []modResult `json:"results"`
}

type modResult struct {
	Flagged    bool            `json:"flagged"`
	Categories map[string]bool `json:"categories"`
}
