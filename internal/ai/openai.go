package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// openAIProvider implements Provider and JSONGenerator using the OpenAI
// chat completions API (POST /v1/chat/completions). Mistral reuses it
// with a different base URL and name.
type openAIProvider struct {
	name   string
	config ProviderConfig
	client *http.Client
}

func newOpenAI(cfg ProviderConfig) *openAIProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	return &openAIProvider{
		name:   "openai",
		config: cfg,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

func (p *openAIProvider) Name() string { return p.name }

// Generate sends a single-turn chat completion request.
func (p *openAIProvider) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return p.doChat(ctx, openAIRequest{
		Model:    p.config.Model,
		Messages: openAIMessages(systemPrompt, []Message{{Role: RoleUser, Content: userPrompt}}),
	})
}

// Chat sends the whole conversation after the system prompt.
func (p *openAIProvider) Chat(ctx context.Context, systemPrompt string, history []Message) (string, error) {
	return p.doChat(ctx, openAIRequest{
		Model:    p.config.Model,
		Messages: openAIMessages(systemPrompt, history),
	})
}

// GenerateJSON uses response_format json_object, which constrains the
// model to emit one valid JSON object.
func (p *openAIProvider) GenerateJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return p.doChat(ctx, openAIRequest{
		Model:          p.config.Model,
		Messages:       openAIMessages(systemPrompt, []Message{{Role: RoleUser, Content: userPrompt}}),
		ResponseFormat: &openAIResponseFormat{Type: "json_object"},
	})
}

func openAIMessages(systemPrompt string, history []Message) []openAIMessage {
	msgs := make([]openAIMessage, 0, len(history)+1)
	if systemPrompt != "" {
		msgs = append(msgs, openAIMessage{Role: RoleSystem, Content: systemPrompt})
	}
	for _, m := range history {
		msgs = append(msgs, openAIMessage{Role: m.Role, Content: m.Content})
	}
	return msgs
}

// doChat performs the HTTP call to the chat completions endpoint.
func (p *openAIProvider) doChat(ctx context.Context, body openAIRequest) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("%s marshal: %w", p.name, err)
	}

	url := p.config.BaseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%s request: %w", p.name, err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s http: %w", p.name, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%s read body: %w", p.name, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s API error (status %d): %s", p.name, resp.StatusCode, string(respBody))
	}

	var result openAIResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("%s unmarshal: %w", p.name, err)
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("%s: no choices returned: %w", p.name, ErrEmptyCompletion)
	}

	return nonEmpty(result.Choices[0].Message.Content, nil)
}

// --- OpenAI-compatible request/response types ---
// Used by both OpenAI and Mistral providers.

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponseFormat struct {
	Type string `json:"type"`
}

type openAIRequest struct {
	Model          string                `json:"model"`
	Messages       []openAIMessage       `json:"messages"`
	ResponseFormat *openAIResponseFormat `json:"response_format,omitempty"`
}

type openAIResponse struct {
	Choices []openAIChoice `json:"choices"`
}

type openAIChoice struct {
	Message openAIMessage `json:"message"`
}
