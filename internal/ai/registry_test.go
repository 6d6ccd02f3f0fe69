// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package ai

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

// mockProvider is a test double implementing the Provider interface.
// It records calls and returns configurable responses.
type mockProvider struct {
	name        string
	response    string
	err         error
	callCount   int
	lastSystem  string
	lastUser    string
	lastHistory []Message
	mu          sync.Mutex
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount++
	m.lastSystem = systemPrompt
	m.lastUser = userPrompt
	return m.response, m.err
}

func (m *mockProvider) Chat(ctx context.Context, systemPrompt string, history []Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount++
	m.lastSystem = systemPrompt
	m.lastHistory = history
	return m.response, m.err
}

// mockJSONProvider adds a native JSON mode to mockProvider.
type mockJSONProvider struct {
	mockProvider
	jsonCalls int
}

func (m *mockJSONProvider) GenerateJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jsonCalls++
	return `{"refinedPrompt":"x"}`, nil
}

func registryWith(p Provider) *Registry {
	return &Registry{
		providers: map[string]Provider{p.Name(): p},
		active:    p.Name(),
	}
}

func TestRegistryGenerate(t *testing.T) {
	t.Run("delegates to active provider", func(t *testing.T) {
		mock := &mockProvider{name: "test", response: "Hello from mock"}
		reg := registryWith(mock)

		result, err := reg.Generate(context.Background(), "system", "user")
		if err != nil {
			t.Fatalf("Generate: unexpected error: %v", err)
		}
		if result != "Hello from mock" {
			t.Errorf("result: got %q, want %q", result, "Hello from mock")
		}
		if mock.callCount != 1 || mock.lastSystem != "system" || mock.lastUser != "user" {
			t.Errorf("unexpected call record: %+v", mock)
		}
	})

	t.Run("propagates provider error", func(t *testing.T) {
		reg := registryWith(&mockProvider{name: "test", err: fmt.Errorf("api failure")})

		_, err := reg.Generate(context.Background(), "system", "user")
		if err == nil || err.Error() != "api failure" {
			t.Fatalf("got %v, want api failure", err)
		}
	})

	t.Run("blank completion is ErrEmptyCompletion", func(t *testing.T) {
		for _, resp := range []string{"", "   ", "\n\t"} {
			reg := registryWith(&mockProvider{name: "test", response: resp})
			_, err := reg.Generate(context.Background(), "s", "u")
			if !errors.Is(err, ErrEmptyCompletion) {
				t.Errorf("response %q: got %v, want ErrEmptyCompletion", resp, err)
			}
		}
	})
}

func TestRegistryChat(t *testing.T) {
	mock := &mockProvider{name: "test", response: "reply"}
	reg := registryWith(mock)

	history := []Message{
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
		{Role: RoleUser, Content: "tagline please"},
	}
	got, err := reg.Chat(context.Background(), "brand prompt", history)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if got != "reply" {
		t.Errorf("got %q, want reply", got)
	}
	if len(mock.lastHistory) != 3 || mock.lastSystem != "brand prompt" {
		t.Errorf("history not passed through: %+v", mock.lastHistory)
	}

	empty := registryWith(&mockProvider{name: "test", response: " "})
	if _, err := empty.Chat(context.Background(), "s", history); !errors.Is(err, ErrEmptyCompletion) {
		t.Errorf("got %v, want ErrEmptyCompletion", err)
	}
}

func TestRegistryGenerateJSON(t *testing.T) {
	t.Run("uses native JSON mode", func(t *testing.T) {
		mock := &mockJSONProvider{mockProvider: mockProvider{name: "json"}}
		reg := registryWith(mock)

		got, err := reg.GenerateJSON(context.Background(), "s", "u")
		if err != nil {
			t.Fatalf("GenerateJSON: %v", err)
		}
		if got != `{"refinedPrompt":"x"}` || mock.jsonCalls != 1 || mock.callCount != 0 {
			t.Errorf("got %q, jsonCalls=%d callCount=%d", got, mock.jsonCalls, mock.callCount)
		}
	})

	t.Run("falls back to Generate", func(t *testing.T) {
		mock := &mockProvider{name: "plain", response: `{"a":1}`}
		reg := registryWith(mock)

		got, err := reg.GenerateJSON(context.Background(), "s", "u")
		if err != nil || got != `{"a":1}` || mock.callCount != 1 {
			t.Errorf("got %q, %v (calls %d)", got, err, mock.callCount)
		}
	})
}

func TestRegistryGenerateNoProvider(t *testing.T) {
	reg := &Registry{providers: map[string]Provider{}, active: "nonexistent"}

	if _, err := reg.Generate(context.Background(), "s", "u"); err == nil {
		t.Error("Generate: expected error")
	}
	if _, err := reg.Chat(context.Background(), "s", nil); err == nil {
		t.Error("Chat: expected error")
	}
	if _, err := reg.GenerateJSON(context.Background(), "s", "u"); err == nil {
		t.Error("GenerateJSON: expected error")
	}
}

func TestRegistrySetActive(t *testing.T) {
	a := &mockProvider{name: "a", response: "from a"}
	b := &mockProvider{name: "b", response: "from b"}
	reg := &Registry{providers: map[string]Provider{"a": a, "b": b}, active: "a"}

	if err := reg.SetActive("b"); err != nil {
		t.Fatalf("SetActive(b): %v", err)
	}
	got, _ := reg.Generate(context.Background(), "s", "u")
	if got != "from b" {
		t.Errorf("got %q after switch, want from b", got)
	}
	if err := reg.SetActive("missing"); err == nil {
		t.Error("SetActive(missing) should fail")
	}
	if reg.ActiveName() != "b" {
		t.Errorf("ActiveName = %q, want b", reg.ActiveName())
	}
}

func TestRegistryRegister(t *testing.T) {
	reg := NewRegistry("openai", map[string]ProviderConfig{
		"openai": {APIKey: "key1", Model: "gpt-4o"},
	})

	reg.Register("openai", &mockProvider{name: "openai", response: "replaced"})
	got, err := reg.Generate(context.Background(), "sys", "usr")
	if err != nil || got != "replaced" {
		t.Errorf("got %q, %v; want replaced", got, err)
	}

	reg.Register("custom", &mockProvider{name: "custom", response: "custom reply"})
	if !reg.HasProvider("custom") {
		t.Fatal("custom provider should exist after Register")
	}
}

func TestRegistryCheckPrompt(t *testing.T) {
	reg := &Registry{providers: map[string]Provider{}}

	res, err := reg.CheckPrompt(context.Background(), "anything")
	if err != nil || !res.Safe {
		t.Fatalf("no moderator: got %+v, %v; want safe", res, err)
	}

	reg.SetModerator(stubModerator{res: &ModerationResult{Safe: false, Categories: []string{"violence"}}})
	res, err = reg.CheckPrompt(context.Background(), "bad")
	if err != nil || res.Safe || len(res.Categories) != 1 {
		t.Errorf("got %+v, %v; want flagged", res, err)
	}
}

type stubModerator struct {
	res *ModerationResult
	err error
}

func (s stubModerator) CheckSafety(ctx context.Context, text string) (*ModerationResult, error) {
	return s.res, s.err
}

func TestNewRegistryModeratorSelection(t *testing.T) {
	tests := []struct {
		name    string
		configs map[string]ProviderConfig
		check   func(Moderator) bool
	}{
		{"none", map[string]ProviderConfig{"claude": {APIKey: "k"}}, func(m Moderator) bool { return m == nil }},
		{"openai only", map[string]ProviderConfig{"openai": {APIKey: "k"}}, func(m Moderator) bool {
			h, ok := m.(*httpModerator)
			return ok && h.name == "openai"
		}},
		{"mistral only", map[string]ProviderConfig{"mistral": {APIKey: "k"}}, func(m Moderator) bool {
			h, ok := m.(*httpModerator)
			return ok && h.name == "mistral"
		}},
		{"both", map[string]ProviderConfig{"openai": {APIKey: "k"}, "mistral": {APIKey: "k"}}, func(m Moderator) bool {
			_, ok := m.(*fallbackModerator)
			return ok
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewRegistry("openai", tt.configs)
			if !tt.check(reg.moderator) {
				t.Errorf("unexpected moderator %T", reg.moderator)
			}
		})
	}
}

func TestRegistryConcurrency(t *testing.T) {
	a := &mockProvider{name: "a", response: "a"}
	b := &mockProvider{name: "b", response: "b"}
	reg := &Registry{providers: map[string]Provider{"a": a, "b": b}, active: "a"}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				reg.SetActive("a")
			} else {
				reg.SetActive("b")
			}
		}(i)
		go func() {
			defer wg.Done()
			got, err := reg.Generate(context.Background(), "s", "u")
			if err != nil || (got != "a" && got != "b") {
				t.Errorf("Generate: %q, %v", got, err)
			}
		}()
	}
	wg.Wait()
}

// mockImageGenerator is a test double for ImageGenerator.
type mockImageGenerator struct {
	name    string
	img     *Image
	err     error
	lastReq ImageRequest
}

func (m *mockImageGenerator) Name() string { return m.name }

func (m *mockImageGenerator) GenerateImage(ctx context.Context, req ImageRequest) (*Image, error) {
	m.lastReq = req
	return m.img, m.err
}

func TestImageRegistryGenerate(t *testing.T) {
	t.Run("delegates", func(t *testing.T) {
		mock := &mockImageGenerator{name: "m", img: &Image{Data: []byte{1, 2}, ContentType: "image/png"}}
		reg := &ImageRegistry{providers: map[string]ImageGenerator{"m": mock}, active: "m"}

		img, err := reg.GenerateImage(context.Background(), ImageRequest{Prompt: "p", Width: 1024})
		if err != nil {
			t.Fatalf("GenerateImage: %v", err)
		}
		if len(img.Data) != 2 || mock.lastReq.Prompt != "p" || mock.lastReq.Width != 1024 {
			t.Errorf("unexpected result %+v / request %+v", img, mock.lastReq)
		}
	})

	t.Run("empty image is ErrNoImage", func(t *testing.T) {
		for _, img := range []*Image{nil, {}} {
			mock := &mockImageGenerator{name: "m", img: img}
			reg := &ImageRegistry{providers: map[string]ImageGenerator{"m": mock}, active: "m"}
			if _, err := reg.GenerateImage(context.Background(), ImageRequest{}); !errors.Is(err, ErrNoImage) {
				t.Errorf("got %v, want ErrNoImage", err)
			}
		}
	})

	t.Run("no active provider", func(t *testing.T) {
		reg := &ImageRegistry{providers: map[string]ImageGenerator{}, active: "x"}
		if _, err := reg.GenerateImage(context.Background(), ImageRequest{}); err == nil {
			t.Error("expected error")
		}
	})
}
