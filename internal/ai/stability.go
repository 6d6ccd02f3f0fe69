// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// stabilityProvider implements ImageGenerator with the Stability AI v1
// text-to-image endpoint (POST /v1/generation/{engine}/text-to-image).
// The image comes back base64-encoded inside the JSON body.
type stabilityProvider struct {
	config ProviderConfig // Model is the engine id
	client *http.Client
}

func newStability(cfg ProviderConfig) *stabilityProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.stability.ai"
	}
	if cfg.Model == "" {
		cfg.Model = "stable-diffusion-xl-1024-v1-0"
	}
	return &stabilityProvider{config: cfg, client: newImageHTTPClient()}
}

func (p *stabilityProvider) Name() string { return "stability" }

func (p *stabilityProvider) GenerateImage(ctx context.Context, ir ImageRequest) (*Image, error) {
	prompts := []stabilityPrompt{{Text: ir.Prompt, Weight: 1}}
	if ir.NegativePrompt != "" {
		prompts = append(prompts, stabilityPrompt{Text: ir.NegativePrompt, Weight: -1})
	}

	body := stabilityRequest{
		TextPrompts: prompts,
		CFGScale:    ir.CFGScale,
		Height:      ir.Height,
		Width:       ir.Width,
		Steps:       ir.Steps,
		Samples:     1,
		StylePreset: ir.StylePreset,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("stability marshal: %w", err)
	}

	url := fmt.Sprintf("%s/v1/generation/%s/text-to-image", p.config.BaseURL, p.config.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("stability request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stability http: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("stability read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("stability API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result stabilityResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("stability unmarshal: %w", err)
	}

	if len(result.Artifacts) == 0 || result.Artifacts[0].Base64 == "" {
		return nil, fmt.Errorf("stability: %w", ErrNoImage)
	}
	art := result.Artifacts[0]
	if art.FinishReason == "CONTENT_FILTERED" {
		return nil, fmt.Errorf("stability: content filtered: %w", ErrNoImage)
	}

	data, err := base64.StdEncoding.DecodeString(art.Base64)
	if err != nil {
		return nil, fmt.Errorf("stability decode base64: %w", err)
	}

	return &Image{Data: data, ContentType: "image/png"}, nil
}

type stabilityPrompt struct {
	Text   string  `json:"text"`
	Weight float64 `json:"weight"`
}

type stabilityRequest struct {
	TextPrompts []stabilityPrompt `json:"text_prompts"`
	CFGScale    float64           `json:"cfg_scale,omitempty"`
	Height      int               `json:"height,omitempty"`
	Width       int               `json:"width,omitempty"`
	Steps       int               `json:"steps,omitempty"`
	Samples     int               `json:"samples"`
	StylePreset string            `json:"style_preset,omitempty"`
}

type stabilityArtifact struct {
	Base64       string `json:"base64"`
	Seed         int64  `json:"seed"`
	FinishReason string `json:"finishReason"`
}

type stabilityResponse struct {
	Artifacts []stabilityArtifact `json:"artifacts"`
}
