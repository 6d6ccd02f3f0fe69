package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// runwareProvider implements ImageGenerator with Runware's task API.
// The response carries a hosted imageURL which is then downloaded.
type runwareProvider struct {
	config ProviderConfig
	client *http.Client
}

func newRunware(cfg ProviderConfig) *runwareProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.runware.ai/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "runware:100@1"
	}
	return &runwareProvider{config: cfg, client: newImageHTTPClient()}
}

func (p *runwareProvider) Name() string { return "runware" }

func (p *runwareProvider) GenerateImage(ctx context.Context, ir ImageRequest) (*Image, error) {
	task := runwareTask{
		TaskType:       "imageInference",
		TaskUUID:       uuid.NewString(),
		PositivePrompt: ir.Prompt,
		NegativePrompt: ir.NegativePrompt,
		Model:          p.config.Model,
		Width:          ir.Width,
		Height:         ir.Height,
		Steps:          ir.Steps,
		CFGScale:       ir.CFGScale,
		NumberResults:  1,
		OutputType:     "URL",
		OutputFormat:   "PNG",
	}

	// The API takes a batch of tasks.
	payload, err := json.Marshal([]runwareTask{task})
	if err != nil {
		return nil, fmt.Errorf("runware marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("runware request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("runware http: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("runware read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("runware API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result runwareResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("runware unmarshal: %w", err)
	}

	if len(result.Errors) > 0 {
		msgs := make([]string, 0, len(result.Errors))
		for _, e := range result.Errors {
			msgs = append(msgs, e.Message)
		}
		return nil, fmt.Errorf("runware API error: %s", strings.Join(msgs, "; "))
	}

	for _, d := range result.Data {
		if d.TaskUUID == task.TaskUUID && d.ImageURL != "" {
			return fetchImage(ctx, p.client, "runware", d.ImageURL)
		}
	}
	return nil, fmt.Errorf("runware: %w", ErrNoImage)
}

type runwareTask struct {
	TaskType       string  `json:"taskType"`
	TaskUUID       string  `json:"taskUUID"`
	PositivePrompt string  `json:"positivePrompt"`
	NegativePrompt string  `json:"negativePrompt,omitempty"`
	Model          string  `json:"model"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	Steps          int     `json:"steps,omitempty"`
	CFGScale       float64 `json:"CFGScale,omitempty"`
	NumberResults  int     `json:"numberResults"`
	OutputType     string  `json:"outputType"`
	OutputFormat   string  `json:"outputFormat"`
}

type runwareResult struct {
	TaskType string `json:"taskType"`
	TaskUUID string `json:"taskUUID"`
	ImageURL string `json:"imageURL"`
}

type runwareError struct {
	Message string `json:"message"`
}

type runwareResponse struct {
	Data   []runwareResult `json:"data"`
	Errors []runwareError  `json:"errors"`
}
