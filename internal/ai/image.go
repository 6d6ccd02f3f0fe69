// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"
)

// ErrNoImage is returned when an image provider answers without any
// usable image data (empty artifact list, content-filtered result,
// missing URL).
var ErrNoImage = errors.New("ai: no image in response")

// ErrImageTooLarge is returned when a hosted image exceeds maxImageBytes.
var ErrImageTooLarge = errors.New("ai: image exceeds size limit")

// maxImageBytes bounds how much a hosted image download may read.
const maxImageBytes = 20 << 20

// ImageRequest carries the generation parameters shared by all image
// providers. Providers ignore fields their API has no equivalent for.
type ImageRequest struct {
	Prompt         string
	NegativePrompt string
	Width          int
	Height         int
	Steps          int
	CFGScale       float64
	StylePreset    string
}

// Image is a generated picture held in memory.
type Image struct {
	Data        []byte
	ContentType string
}

// ImageGenerator creates one image per call.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req ImageRequest) (*Image, error)
	Name() string
}

// ImageRegistry selects the active image provider, mirroring Registry
// for text providers. All methods are safe for concurrent use.
type ImageRegistry struct {
	mu        sync.RWMutex
	providers map[string]ImageGenerator
	active    string
}

// NewImageRegistry initialises an image provider for every config with
// an API key ("stability", "runware", "openai", "gemini").
func NewImageRegistry(active string, configs map[string]ProviderConfig) *ImageRegistry {
	r := &ImageRegistry{
		providers: make(map[string]ImageGenerator),
		active:    active,
	}

	for name, cfg := range configs {
		if cfg.APIKey == "" {
			continue
		}
		switch name {
		case "stability":
			r.providers[name] = newStability(cfg)
		case "runware":
			r.providers[name] = newRunware(cfg)
		case "openai":
			r.providers[name] = newOpenAIImage(cfg)
		case "gemini":
			p, err := newGeminiImage(cfg)
			if err != nil {
				slog.Warn("gemini image provider disabled", "error", err)
				continue
			}
			r.providers[name] = p
		}
	}
	return r
}

// GenerateImage calls the active provider.
func (r *ImageRegistry) GenerateImage(ctx context.Context, req ImageRequest) (*Image, error) {
	p, err := r.Active()
	if err != nil {
		return nil, err
	}
	img, err := p.GenerateImage(ctx, req)
	if err != nil {
		return nil, err
	}
	if img == nil || len(img.Data) == 0 {
		return nil, fmt.Errorf("%s: %w", p.Name(), ErrNoImage)
	}
	return img, nil
}

// Active returns the currently active image provider.
func (r *ImageRegistry) Active() (ImageGenerator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[r.active]
	if !ok {
		return nil, fmt.Errorf("ai: no image provider configured for %q", r.active)
	}
	return p, nil
}

// SetActive switches the active image provider at runtime.
func (r *ImageRegistry) SetActive(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.providers[name]; !ok {
		return fmt.Errorf("ai: image provider %q is not available (no API key?)", name)
	}
	r.active = name
	return nil
}

// ActiveName returns the name of the currently active image provider.
func (r *ImageRegistry) ActiveName() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Available returns the sorted names of all configured image providers.
func (r *ImageRegistry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Register adds or replaces an image provider.
func (r *ImageRegistry) Register(name string, p ImageGenerator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = p
}

// fetchImage downloads a provider-hosted image into memory.
func fetchImage(ctx context.Context, client *http.Client, provider, url string) (*Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%s image download request: %w", provider, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s image download: %w", provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s image download (status %d): %w", provider, resp.StatusCode, ErrNoImage)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%s image download read: %w", provider, err)
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("%s image download: %w", provider, ErrImageTooLarge)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%s image download: %w", provider, ErrNoImage)
	}

	return &Image{Data: data, ContentType: http.DetectContentType(data)}, nil
}

func newImageHTTPClient() *http.Client {
	return &http.Client{Timeout: 120 * time.Second}
}
