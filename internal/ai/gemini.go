// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

// geminiProvider implements Provider and JSONGenerator on top of the
// Google Gen AI SDK (Gemini API backend).
type geminiProvider struct {
	config ProviderConfig
	client *genai.Client
}

// newGeminiClient builds an SDK client. BaseURL is only set in tests.
func newGeminiClient(cfg ProviderConfig, timeout time.Duration) (*genai.Client, error) {
	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: timeout},
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return client, nil
}

func newGemini(cfg ProviderConfig) (*geminiProvider, error) {
	client, err := newGeminiClient(cfg, 60*time.Second)
	if err != nil {
		return nil, err
	}
	return &geminiProvider{config: cfg, client: client}, nil
}

func (p *geminiProvider) Name() string { return "gemini" }

// Generate sends a single-turn generateContent request.
func (p *geminiProvider) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return p.Chat(ctx, systemPrompt, []Message{{Role: RoleUser, Content: userPrompt}})
}

// GenerateJSON sets the response MIME type to application/json so the
// model returns a bare JSON object.
func (p *geminiProvider) GenerateJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	contents := []*genai.Content{genai.NewContentFromText(userPrompt, genai.RoleUser)}
	cfg := &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}
	if systemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}
	return p.generate(ctx, contents, cfg)
}

// Chat maps the conversation onto Gemini's user/model roles. System
// turns join the system instruction.
func (p *geminiProvider) Chat(ctx context.Context, systemPrompt string, history []Message) (string, error) {
	system := []string{}
	if systemPrompt != "" {
		system = append(system, systemPrompt)
	}
	contents := make([]*genai.Content, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}

	cfg := &genai.GenerateContentConfig{}
	if len(system) > 0 {
		cfg.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}
	return p.generate(ctx, contents, cfg)
}

func (p *geminiProvider) generate(ctx context.Context, contents []*genai.Content, cfg *genai.GenerateContentConfig) (string, error) {
	result, err := p.client.Models.GenerateContent(ctx, p.config.Model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini API error: %w", err)
	}

	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini: no candidates returned: %w", ErrEmptyCompletion)
	}

	var sb strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	return nonEmpty(sb.String(), nil)
}

// geminiImageProvider implements ImageGenerator with a Gemini image
// model through generateContent; the picture comes back as inline bytes.
type geminiImageProvider struct {
	config ProviderConfig
	client *genai.Client
}

func newGeminiImage(cfg ProviderConfig) (*geminiImageProvider, error) {
	client, err := newGeminiClient(cfg, 120*time.Second)
	if err != nil {
		return nil, err
	}
	return &geminiImageProvider{config: cfg, client: client}, nil
}

func (p *geminiImageProvider) Name() string { return "gemini" }

// GenerateImage requests a single image. Gemini has no negative prompt
// parameter, so exclusions are appended to the prompt text.
func (p *geminiImageProvider) GenerateImage(ctx context.Context, req ImageRequest) (*Image, error) {
	prompt := req.Prompt
	if req.NegativePrompt != "" {
		prompt += "\n\nDo not include: " + req.NegativePrompt + "."
	}

	contents := []*genai.Content{{
		Role:  genai.RoleUser,
		Parts: []*genai.Part{genai.NewPartFromText(prompt)},
	}}

	result, err := p.client.Models.GenerateContent(ctx, p.config.Model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini image API error: %w", err)
	}

	for _, c := range result.Candidates {
		if c.Content == nil {
			continue
		}
		for _, part := range c.Content.Parts {
			if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
				ct := part.InlineData.MIMEType
				if ct == "" {
					ct = http.DetectContentType(part.InlineData.Data)
				}
				return &Image{Data: part.InlineData.Data, ContentType: ct}, nil
			}
		}
	}

	return nil, fmt.Errorf("gemini image: %w", ErrNoImage)
}
