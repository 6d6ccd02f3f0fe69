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
	"strings"
)

// openAIImageProvider implements ImageGenerator with the OpenAI Images
// API (POST /v1/images/generations). The picture arrives either inline
// as b64_json or as a short-lived url, depending on the model.
type openAIImageProvider struct {
	config ProviderConfig
	client *http.Client
}

func newOpenAIImage(cfg ProviderConfig) *openAIImageProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "dall-e-3"
	}
	return &openAIImageProvider{config: cfg, client: newImageHTTPClient()}
}

func (p *openAIImageProvider) Name() string { return "openai" }

func (p *openAIImageProvider) GenerateImage(ctx context.Context, ir ImageRequest) (*Image, error) {
	prompt := ir.Prompt
	if ir.NegativePrompt != "" {
		prompt += "\n\nDo not include: " + ir.NegativePrompt + "."
	}

	body := openAIImageRequest{
		Model:  p.config.Model,
		Prompt: prompt,
		N:      1,
		Size:   fmt.Sprintf("%dx%d", ir.Width, ir.Height),
	}
	// Only the DALL-E models accept response_format; gpt-image models
	// always answer with b64_json.
	if strings.HasPrefix(p.config.Model, "dall-e") {
		body.ResponseFormat = "b64_json"
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("openai image marshal: %w", err)
	}

	url := p.config.BaseURL + "/images/generations"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("openai image request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai image http: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai image read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openai image API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result openAIImageResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("openai image unmarshal: %w", err)
	}

	if len(result.Data) == 0 {
		return nil, fmt.Errorf("openai image: %w", ErrNoImage)
	}

	d := result.Data[0]
	switch {
	case d.B64JSON != "":
		data, err := base64.StdEncoding.DecodeString(d.B64JSON)
		if err != nil {
			return nil, fmt.Errorf("openai image decode base64: %w", err)
		}
		return &Image{Data: data, ContentType: http.DetectContentType(data)}, nil
	case d.URL != "":
		return fetchImage(ctx, p.client, "openai", d.URL)
	}
	return nil, fmt.Errorf("openai image: %w", ErrNoImage)
}

type openAIImageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size"`
	ResponseFormat string `json:"response_format,omitempty"`
}

type openAIImageData struct {
	B64JSON string `json:"b64_json"`
	URL     string `json:"url"`
}

type openAIImageResponse struct {
	Data []openAIImageData `json:"data"`
}
