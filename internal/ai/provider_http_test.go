// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// ---------- Helpers ----------

// newTestServer creates an httptest.Server that responds with the given status
// code and body bytes.
func newTestServer(t *testing.T, statusCode int, body []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// capture records the last request a test server received.
type capture struct {
	method string
	path   string
	header http.Header
	body   []byte
}

func newCapturingServer(t *testing.T, c *capture, respond []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.method = r.Method
		c.path = r.URL.Path
		c.header = r.Header.Clone()
		c.body, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.Write(respond)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func openAISuccessBody(text string) []byte {
	b, _ := json.Marshal(openAIResponse{
		Choices: []openAIChoice{{Message: openAIMessage{Role: "assistant", Content: text}}},
	})
	return b
}

func claudeSuccessBody(text string) []byte {
	b, _ := json.Marshal(claudeResponse{
		Content: []claudeContentBlock{{Type: "text", Text: text}},
	})
	return b
}

// testPNG returns a tiny valid PNG.
func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// =====================================================================
// OpenAI / Mistral
// =====================================================================

func TestOpenAIGenerate_Success(t *testing.T) {
	var c capture
	srv := newCapturingServer(t, &c, openAISuccessBody("Hello from OpenAI"))

	p := newOpenAI(ProviderConfig{APIKey: "test-key", Model: "gpt-4o", BaseURL: srv.URL})

	got, err := p.Generate(context.Background(), "You are helpful.", "Say hello")
	if err != nil {
		t.Fatalf("Generate: unexpected error: %v", err)
	}
	if got != "Hello from OpenAI" {
		t.Errorf("Generate: got %q", got)
	}

	if c.method != http.MethodPost || c.path != "/chat/completions" {
		t.Errorf("request: %s %s", c.method, c.path)
	}
	if got := c.header.Get("Authorization"); got != "Bearer test-key" {
		t.Errorf("Authorization: got %q", got)
	}

	var req openAIRequest
	if err := json.Unmarshal(c.body, &req); err != nil {
		t.Fatalf("unmarshal request: %v", err)
	}
	if req.Model != "gpt-4o" || len(req.Messages) != 2 {
		t.Fatalf("unexpected request: %+v", req)
	}
	if req.Messages[0].Role != "system" || req.Messages[1].Content != "Say hello" {
		t.Errorf("messages: %+v", req.Messages)
	}
	if req.ResponseFormat != nil {
		t.Error("plain Generate must not set response_format")
	}
}

func TestOpenAIChat_SendsHistory(t *testing.T) {
	var c capture
	srv := newCapturingServer(t, &c, openAISuccessBody("sure"))
	p := newOpenAI(ProviderConfig{APIKey: "k", Model: "m", BaseURL: srv.URL})

	history := []Message{
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
		{Role: RoleUser, Content: "write a post"},
	}
	if _, err := p.Chat(context.Background(), "brand system", history); err != nil {
		t.Fatalf("Chat: %v", err)
	}

	var req openAIRequest
	json.Unmarshal(c.body, &req)
	if len(req.Messages) != 4 {
		t.Fatalf("got %d messages, want 4", len(req.Messages))
	}
	wantRoles := []string{"system", "user", "assistant", "user"}
	for i, m := range req.Messages {
		if m.Role != wantRoles[i] {
			t.Errorf("message %d role %q, want %q", i, m.Role, wantRoles[i])
		}
	}
}

func TestOpenAIGenerateJSON_SetsResponseFormat(t *testing.T) {
	var c capture
	srv := newCapturingServer(t, &c, openAISuccessBody(`{"refinedPrompt":"p"}`))
	p := newOpenAI(ProviderConfig{APIKey: "k", Model: "m", BaseURL: srv.URL})

	got, err := p.GenerateJSON(context.Background(), "sys", "idea")
	if err != nil {
		t.Fatalf("GenerateJSON: %v", err)
	}
	if got != `{"refinedPrompt":"p"}` {
		t.Errorf("got %q", got)
	}
	if !bytes.Contains(c.body, []byte(`"response_format":{"type":"json_object"}`)) {
		t.Errorf("request body missing response_format: %s", c.body)
	}
}

func TestOpenAIGenerate_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantSub   string
		wantEmpty bool
	}{
		{"http error", http.StatusTooManyRequests, `{"error":"rate limited"}`, "openai API error (status 429)", false},
		{"malformed json", http.StatusOK, `{not json`, "openai unmarshal", false},
		{"no choices", http.StatusOK, `{"choices":[]}`, "no choices", true},
		{"blank content", http.StatusOK, string(openAISuccessBody("  \n ")), "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.status, []byte(tt.body))
			p := newOpenAI(ProviderConfig{APIKey: "k", Model: "m", BaseURL: srv.URL})

			_, err := p.Generate(context.Background(), "s", "u")
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantSub != "" && !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q should contain %q", err, tt.wantSub)
			}
			if errors.Is(err, ErrEmptyCompletion) != tt.wantEmpty {
				t.Errorf("errors.Is(ErrEmptyCompletion) = %v, want %v", !tt.wantEmpty, tt.wantEmpty)
			}
		})
	}
}

func TestOpenAIGenerate_ErrorBodyIncluded(t *testing.T) {
	srv := newTestServer(t, http.StatusBadRequest, []byte(`{"error":{"message":"model not found"}}`))
	p := newOpenAI(ProviderConfig{APIKey: "k", Model: "m", BaseURL: srv.URL})

	_, err := p.Generate(context.Background(), "s", "u")
	if err == nil || !strings.Contains(err.Error(), "model not found") {
		t.Errorf("error should include the response body, got %v", err)
	}
}

func TestOpenAIGenerate_CancelledContext(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, openAISuccessBody("ok"))
	p := newOpenAI(ProviderConfig{APIKey: "k", Model: "m", BaseURL: srv.URL})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Generate(ctx, "s", "u"); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

func TestOpenAIGenerate_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	p := newOpenAI(ProviderConfig{APIKey: "k", Model: "m", BaseURL: srv.URL})
	_, err := p.Generate(context.Background(), "s", "u")
	if err == nil || !strings.Contains(err.Error(), "openai http") {
		t.Errorf("got %v, want transport error", err)
	}
}

func TestDefaultBaseURLs(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"openai", newOpenAI(ProviderConfig{}).config.BaseURL, "https://api.openai.com/v1"},
		{"mistral", newMistral(ProviderConfig{}).config.BaseURL, "https://api.mistral.ai/v1"},
		{"claude", newClaude(ProviderConfig{}).config.BaseURL, "https://api.anthropic.com"},
		{"stability", newStability(ProviderConfig{}).config.BaseURL, "https://api.stability.ai"},
		{"runware", newRunware(ProviderConfig{}).config.BaseURL, "https://api.runware.ai/v1"},
		{"openai image", newOpenAIImage(ProviderConfig{}).config.BaseURL, "https://api.openai.com/v1"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}

func TestMistral_UsesOpenAIWireFormat(t *testing.T) {
	var c capture
	srv := newCapturingServer(t, &c, openAISuccessBody("bonjour"))
	p := newMistral(ProviderConfig{APIKey: "mk", Model: "mistral-large", BaseURL: srv.URL})

	if p.Name() != "mistral" {
		t.Errorf("Name() = %q", p.Name())
	}
	got, err := p.GenerateJSON(context.Background(), "s", "u")
	if err != nil || got != "bonjour" {
		t.Fatalf("GenerateJSON: %q, %v", got, err)
	}
	if c.path != "/chat/completions" || c.header.Get("Authorization") != "Bearer mk" {
		t.Errorf("request: %s auth=%q", c.path, c.header.Get("Authorization"))
	}

	srvErr := newTestServer(t, http.StatusInternalServerError, []byte("boom"))
	p = newMistral(ProviderConfig{APIKey: "mk", BaseURL: srvErr.URL})
	if _, err := p.Generate(context.Background(), "s", "u"); err == nil || !strings.Contains(err.Error(), "mistral API error (status 500)") {
		t.Errorf("error should be tagged with mistral, got %v", err)
	}
}

// =====================================================================
// Claude
// =====================================================================

func TestClaudeGenerate_Success(t *testing.T) {
	var c capture
	srv := newCapturingServer(t, &c, claudeSuccessBody("Hello from Claude"))
	p := newClaude(ProviderConfig{APIKey: "ck", Model: "claude-sonnet-4-6", BaseURL: srv.URL})

	got, err := p.Generate(context.Background(), "be brief", "hi")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "Hello from Claude" {
		t.Errorf("got %q", got)
	}

	if c.path != "/v1/messages" {
		t.Errorf("path: got %q", c.path)
	}
	if c.header.Get("x-api-key") != "ck" || c.header.Get("anthropic-version") != "2023-06-01" {
		t.Errorf("headers: %v", c.header)
	}

	var req claudeRequest
	json.Unmarshal(c.body, &req)
	if req.System != "be brief" || req.MaxTokens != 4096 || len(req.Messages) != 1 {
		t.Errorf("unexpected request: %+v", req)
	}
}

func TestClaudeChat_FoldsSystemTurns(t *testing.T) {
	var c capture
	srv := newCapturingServer(t, &c, claudeSuccessBody("ok"))
	p := newClaude(ProviderConfig{APIKey: "ck", Model: "m", BaseURL: srv.URL})

	history := []Message{
		{Role: RoleSystem, Content: "extra rule"},
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
		{Role: RoleUser, Content: "more"},
	}
	if _, err := p.Chat(context.Background(), "base", history); err != nil {
		t.Fatalf("Chat: %v", err)
	}

	var req claudeRequest
	json.Unmarshal(c.body, &req)
	if req.System != "base\n\nextra rule" {
		t.Errorf("system: got %q", req.System)
	}
	if len(req.Messages) != 3 || req.Messages[0].Role != "user" {
		t.Errorf("messages: %+v", req.Messages)
	}
}

func TestClaudeGenerate_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantEmpty bool
	}{
		{"http error", http.StatusUnauthorized, `{"error":"bad key"}`, false},
		{"malformed json", http.StatusOK, `nope`, false},
		{"no text block", http.StatusOK, `{"content":[{"type":"tool_use"}]}`, true},
		{"no blocks", http.StatusOK, `{"content":[]}`, true},
		{"blank text", http.StatusOK, string(claudeSuccessBody(" ")), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.status, []byte(tt.body))
			p := newClaude(ProviderConfig{APIKey: "k", Model: "m", BaseURL: srv.URL})

			_, err := p.Generate(context.Background(), "s", "u")
			if err == nil {
				t.Fatal("expected error")
			}
			if errors.Is(err, ErrEmptyCompletion) != tt.wantEmpty {
				t.Errorf("errors.Is(ErrEmptyCompletion) mismatch for %v", err)
			}
		})
	}
}

func TestClaudeHasNoJSONMode(t *testing.T) {
	var p Provider = newClaude(ProviderConfig{})
	if _, ok := p.(JSONGenerator); ok {
		t.Error("claude should rely on the registry's Generate fallback")
	}
}

// =====================================================================
// Gemini (Gen AI SDK against a local server)
// =====================================================================

func TestGeminiGenerate_Success(t *testing.T) {
	var c capture
	srv := newCapturingServer(t, &c, []byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"Hello from Gemini"}]}}]}`))

	p, err := newGemini(ProviderConfig{APIKey: "gk", Model: "gemini-2.5-flash", BaseURL: srv.URL + "/"})
	if err != nil {
		t.Fatalf("newGemini: %v", err)
	}

	got, err := p.Generate(context.Background(), "be brief", "hi")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "Hello from Gemini" {
		t.Errorf("got %q", got)
	}
	if !strings.HasSuffix(c.path, "gemini-2.5-flash:generateContent") {
		t.Errorf("path: got %q", c.path)
	}
	if !bytes.Contains(c.body, []byte("be brief")) {
		t.Errorf("system instruction missing from request: %s", c.body)
	}
}

func TestGeminiGenerate_NoCandidates(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, []byte(`{"candidates":[]}`))
	p, err := newGemini(ProviderConfig{APIKey: "gk", Model: "gemini-2.5-flash", BaseURL: srv.URL + "/"})
	if err != nil {
		t.Fatalf("newGemini: %v", err)
	}

	if _, err := p.Generate(context.Background(), "s", "u"); !errors.Is(err, ErrEmptyCompletion) {
		t.Errorf("got %v, want ErrEmptyCompletion", err)
	}
}

// =====================================================================
// Image providers
// =====================================================================

func TestStabilityGenerateImage(t *testing.T) {
	pngData := testPNG(t)
	var c capture
	body, _ := json.Marshal(stabilityResponse{Artifacts: []stabilityArtifact{
		{Base64: base64.StdEncoding.EncodeToString(pngData), FinishReason: "SUCCESS"},
	}})
	srv := newCapturingServer(t, &c, body)

	p := newStability(ProviderConfig{APIKey: "sk", BaseURL: srv.URL})
	img, err := p.GenerateImage(context.Background(), ImageRequest{
		Prompt: "coffee", NegativePrompt: "text, watermark",
		Width: 1024, Height: 1024, Steps: 30, CFGScale: 7, StylePreset: "photographic",
	})
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if !bytes.Equal(img.Data, pngData) || img.ContentType != "image/png" {
		t.Errorf("unexpected image: %d bytes, %s", len(img.Data), img.ContentType)
	}

	if c.path != "/v1/generation/stable-diffusion-xl-1024-v1-0/text-to-image" {
		t.Errorf("path: got %q", c.path)
	}
	if c.header.Get("Authorization") != "Bearer sk" || c.header.Get("Accept") != "application/json" {
		t.Errorf("headers: %v", c.header)
	}

	var req stabilityRequest
	json.Unmarshal(c.body, &req)
	if len(req.TextPrompts) != 2 || req.TextPrompts[1].Weight != -1 {
		t.Errorf("text_prompts: %+v", req.TextPrompts)
	}
	if req.CFGScale != 7 || req.Steps != 30 || req.Width != 1024 || req.Samples != 1 || req.StylePreset != "photographic" {
		t.Errorf("parameters: %+v", req)
	}
}

func TestStabilityGenerateImage_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantNoI bool
	}{
		{"http error", http.StatusBadRequest, `{"message":"invalid prompt"}`, false},
		{"no artifacts", http.StatusOK, `{"artifacts":[]}`, true},
		{"filtered", http.StatusOK, `{"artifacts":[{"base64":"aGk=","finishReason":"CONTENT_FILTERED"}]}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.status, []byte(tt.body))
			p := newStability(ProviderConfig{APIKey: "k", BaseURL: srv.URL})
			_, err := p.GenerateImage(context.Background(), ImageRequest{Prompt: "p"})
			if err == nil {
				t.Fatal("expected error")
			}
			if errors.Is(err, ErrNoImage) != tt.wantNoI {
				t.Errorf("errors.Is(ErrNoImage) mismatch for %v", err)
			}
		})
	}
}

func TestRunwareGenerateImage(t *testing.T) {
	pngData := testPNG(t)
	var task runwareTask

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	mux.HandleFunc("/v1", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer rk" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var tasks []runwareTask
		json.NewDecoder(r.Body).Decode(&tasks)
		if len(tasks) != 1 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		task = tasks[0]
		json.NewEncoder(w).Encode(runwareResponse{Data: []runwareResult{{
			TaskType: "imageInference", TaskUUID: task.TaskUUID, ImageURL: srv.URL + "/img/out.png",
		}}})
	})
	mux.HandleFunc("/img/out.png", func(w http.ResponseWriter, r *http.Request) {
		w.Write(pngData)
	})

	p := newRunware(ProviderConfig{APIKey: "rk", BaseURL: srv.URL + "/v1"})
	img, err := p.GenerateImage(context.Background(), ImageRequest{
		Prompt: "coffee", NegativePrompt: "text", Width: 1024, Height: 1024, Steps: 30, CFGScale: 7,
	})
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if !bytes.Equal(img.Data, pngData) || img.ContentType != "image/png" {
		t.Errorf("unexpected image: %d bytes, %s", len(img.Data), img.ContentType)
	}
	if task.TaskType != "imageInference" || task.Model != "runware:100@1" || task.NegativePrompt != "text" || task.OutputType != "URL" {
		t.Errorf("task: %+v", task)
	}
}

func TestRunwareGenerateImage_Failures(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantNoI bool
	}{
		{"api errors", `{"errors":[{"message":"insufficient credits"}]}`, false},
		{"no data", `{"data":[]}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, http.StatusOK, []byte(tt.body))
			p := newRunware(ProviderConfig{APIKey: "k", BaseURL: srv.URL})
			_, err := p.GenerateImage(context.Background(), ImageRequest{Prompt: "p"})
			if err == nil {
				t.Fatal("expected error")
			}
			if errors.Is(err, ErrNoImage) != tt.wantNoI {
				t.Errorf("errors.Is(ErrNoImage) mismatch for %v", err)
			}
		})
	}
}

func TestOpenAIImage_B64AndURL(t *testing.T) {
	pngData := testPNG(t)

	t.Run("b64_json", func(t *testing.T) {
		var c capture
		body, _ := json.Marshal(openAIImageResponse{Data: []openAIImageData{{B64JSON: base64.StdEncoding.EncodeToString(pngData)}}})
		srv := newCapturingServer(t, &c, body)

		p := newOpenAIImage(ProviderConfig{APIKey: "k", BaseURL: srv.URL})
		img, err := p.GenerateImage(context.Background(), ImageRequest{Prompt: "p", NegativePrompt: "logo", Width: 1024, Height: 1024})
		if err != nil {
			t.Fatalf("GenerateImage: %v", err)
		}
		if !bytes.Equal(img.Data, pngData) {
			t.Error("image bytes mismatch")
		}

		var req openAIImageRequest
		json.Unmarshal(c.body, &req)
		if c.path != "/images/generations" || req.Size != "1024x1024" || req.ResponseFormat != "b64_json" {
			t.Errorf("request: %s %+v", c.path, req)
		}
		if !strings.Contains(req.Prompt, "Do not include: logo") {
			t.Errorf("negative prompt not folded into prompt: %q", req.Prompt)
		}
	})

	t.Run("url", func(t *testing.T) {
		mux := http.NewServeMux()
		srv := httptest.NewServer(mux)
		t.Cleanup(srv.Close)
		mux.HandleFunc("/images/generations", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(openAIImageResponse{Data: []openAIImageData{{URL: srv.URL + "/files/a.png"}}})
		})
		mux.HandleFunc("/files/a.png", func(w http.ResponseWriter, r *http.Request) {
			w.Write(pngData)
		})

		p := newOpenAIImage(ProviderConfig{APIKey: "k", Model: "gpt-image-1", BaseURL: srv.URL})
		img, err := p.GenerateImage(context.Background(), ImageRequest{Prompt: "p", Width: 1024, Height: 1024})
		if err != nil {
			t.Fatalf("GenerateImage: %v", err)
		}
		if !bytes.Equal(img.Data, pngData) {
			t.Error("image bytes mismatch")
		}
	})

	t.Run("empty data", func(t *testing.T) {
		srv := newTestServer(t, http.StatusOK, []byte(`{"data":[]}`))
		p := newOpenAIImage(ProviderConfig{APIKey: "k", BaseURL: srv.URL})
		if _, err := p.GenerateImage(context.Background(), ImageRequest{Prompt: "p"}); !errors.Is(err, ErrNoImage) {
			t.Errorf("got %v, want ErrNoImage", err)
		}
	})
}

func TestFetchImage_BadStatus(t *testing.T) {
	srv := newTestServer(t, http.StatusNotFound, nil)
	_, err := fetchImage(context.Background(), http.DefaultClient, "test", srv.URL)
	if !errors.Is(err, ErrNoImage) {
		t.Errorf("got %v, want ErrNoImage", err)
	}
}

func TestFetchImage_TooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(make([]byte, maxImageBytes+1))
	}))
	t.Cleanup(srv.Close)

	_, err := fetchImage(context.Background(), http.DefaultClient, "test", srv.URL)
	if !errors.Is(err, ErrImageTooLarge) {
		t.Errorf("got %v, want ErrImageTooLarge", err)
	}
}

// =====================================================================
// Moderation
// =====================================================================

func TestOpenAIModerator(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantSafe bool
		wantCats []string
	}{
		{"clean", `{"results":[{"flagged":false,"categories":{"violence":false}}]}`, true, nil},
		{"flagged", `{"results":[{"flagged":true,"categories":{"hate/threatening":true,"self_harm":true,"sexual":false}}]}`, false, []string{"hate (threatening)", "self harm"}},
		{"no results", `{"results":[]}`, true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c capture
			srv := newCapturingServer(t, &c, []byte(tt.body))
			m := newOpenAIModerator("k", srv.URL)

			res, err := m.CheckSafety(context.Background(), "text")
			if err != nil {
				t.Fatalf("CheckSafety: %v", err)
			}
			if res.Safe != tt.wantSafe {
				t.Errorf("Safe = %v, want %v", res.Safe, tt.wantSafe)
			}
			if strings.Join(res.Categories, ",") != strings.Join(tt.wantCats, ",") {
				t.Errorf("Categories = %v, want %v", res.Categories, tt.wantCats)
			}
			if c.path != "/moderations" {
				t.Errorf("path: got %q", c.path)
			}
		})
	}
}

func TestMistralModerator(t *testing.T) {
	var c capture
	srv := newCapturingServer(t, &c, []byte(`{"results":[{"categories":{"violence_and_threats":true,"pii":false}}]}`))
	m := newMistralModerator("k", srv.URL+"/v1")

	res, err := m.CheckSafety(context.Background(), "text")
	if err != nil {
		t.Fatalf("CheckSafety: %v", err)
	}
	if res.Safe || len(res.Categories) != 1 || res.Categories[0] != "violence and threats" {
		t.Errorf("got %+v", res)
	}
	if c.path != "/v1/moderations" {
		t.Errorf("path: got %q", c.path)
	}
}

func TestFallbackModerator(t *testing.T) {
	safe := &ModerationResult{Safe: true}

	t.Run("falls back on auth errors", func(t *testing.T) {
		primary := stubModerator{err: &ModerationStatusError{Provider: "openai", Status: http.StatusForbidden}}
		f := newFallbackModerator(primary, stubModerator{res: safe})
		res, err := f.CheckSafety(context.Background(), "x")
		if err != nil || res != safe {
			t.Errorf("got %+v, %v", res, err)
		}
	})

	t.Run("returns other errors", func(t *testing.T) {
		primary := stubModerator{err: &ModerationStatusError{Provider: "openai", Status: http.StatusInternalServerError}}
		f := newFallbackModerator(primary, stubModerator{res: safe})
		if _, err := f.CheckSafety(context.Background(), "x"); err == nil {
			t.Error("expected primary error")
		}
	})
}

func TestRegistryGenerate_WithRealHTTPProviders(t *testing.T) {
	openaiSrv := newTestServer(t, http.StatusOK, openAISuccessBody("openai response"))
	claudeSrv := newTestServer(t, http.StatusOK, claudeSuccessBody("claude response"))
	mistralSrv := newTestServer(t, http.StatusOK, openAISuccessBody("mistral response"))

	reg := NewRegistry("openai", map[string]ProviderConfig{
		"openai":  {APIKey: "ok1", Model: "gpt-4o", BaseURL: openaiSrv.URL},
		"claude":  {APIKey: "ok2", Model: "claude-sonnet-4-6", BaseURL: claudeSrv.URL},
		"mistral": {APIKey: "ok4", Model: "mistral-large", BaseURL: mistralSrv.URL},
	})

	for _, name := range []string{"openai", "claude", "mistral"} {
		t.Run(name, func(t *testing.T) {
			if err := reg.SetActive(name); err != nil {
				t.Fatalf("SetActive(%q): %v", name, err)
			}
			got, err := reg.Chat(context.Background(), "system", []Message{{Role: RoleUser, Content: "hi"}})
			if err != nil {
				t.Fatalf("Chat with %s: %v", name, err)
			}
			if got != name+" response" {
				t.Errorf("Chat with %s: got %q", name, got)
			}
		})
	}
}
