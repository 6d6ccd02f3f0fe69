// Package handlers implements the JSON API. Each handler group receives its
// dependencies through a constructor; nothing here reaches for globals.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"branddos/internal/ai"
	"branddos/internal/library"
	"branddos/internal/models"
	"branddos/internal/pipeline"
	"branddos/internal/storage"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// msgNoSettings is returned whenever a generation route needs brand settings
// the caller has not saved yet.
const msgNoSettings = "Brand settings not found. Please complete your settings first."

// UserStore is the subset of store.UserStore the auth handlers use.
type UserStore interface {
	FindByEmail(email string) (*models.User, error)
	FindByID(id uuid.UUID) (*models.User, error)
	Create(email, password, displayName string) (*models.User, error)
	SetTOTPSecret(userID uuid.UUID, secret string) error
	EnableTOTP(userID uuid.UUID) error
	CheckPassword(user *models.User, password string) bool
}

// BrandStore reads and writes a user's brand settings.
type BrandStore interface {
	FindByUser(userID uuid.UUID) (*models.BrandSettings, error)
	Upsert(b *models.BrandSettings) (*models.BrandSettings, error)
	SetLogo(userID uuid.UUID, logoURL string) (bool, error)
}

// PostStore persists generated text.
type PostStore interface {
	Create(userID uuid.UUID, input, output, postType string) (*models.GeneratedPost, error)
	ListByUser(userID uuid.UUID) ([]models.GeneratedPost, error)
	DeleteOwned(id, userID uuid.UUID) (bool, error)
}

// ChatStore persists the chat log.
type ChatStore interface {
	Append(userID uuid.UUID, role models.ChatRole, content string) error
	ListByUser(userID uuid.UUID) ([]models.ChatMessage, error)
}

// TextAI is the text generation surface of ai.Registry.
type TextAI interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	Chat(ctx context.Context, systemPrompt string, history []ai.Message) (string, error)
	CheckPrompt(ctx context.Context, prompt string) (*ai.ModerationResult, error)
}

// Refiner turns an idea into an image prompt and an image.
type Refiner interface {
	Refine(ctx context.Context, brand *models.BrandSettings, idea string) (*pipeline.Refinement, error)
	Synthesize(ctx context.Context, ref *pipeline.Refinement) (*ai.Image, error)
	SynthesizePrompt(ctx context.Context, p string) (*ai.Image, error)
}

// ImageLibrary stores and lists a user's generated images.
type ImageLibrary interface {
	SaveImage(ctx context.Context, userID uuid.UUID, data []byte) (string, error)
	SignedURL(ctx context.Context, key string) (string, error)
	Images(ctx context.Context, userID uuid.UUID) ([]models.LibraryImage, error)
	Open(ctx context.Context, userID uuid.UUID, name string) ([]byte, error)
}

// LogoStore uploads brand logos to the public bucket.
type LogoStore interface {
	LogosBucket() string
	Upload(ctx context.Context, bucket, key, contentType string, data []byte) error
	Delete(ctx context.Context, bucket, key string) error
	FileURL(key string) string
	LogoKey(rawURL string) (string, bool)
}

// writeJSON sends a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("json encode failed", "error", err)
	}
}

// writeError sends the API's {"error": "..."} body.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON reads a size-limited JSON body into dst and validates it.
// On failure it writes a 400 and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return false
	}
	if msg := validateStruct(dst); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return false
	}
	return true
}

// writeFailure maps a failed operation onto a status code and a message.
// msg is the generic message used for upstream and persistence failures.
func writeFailure(w http.ResponseWriter, op string, err error, msg string) {
	var stageErr *pipeline.StageError
	var parseErr *pipeline.ParseError

	switch {
	case errors.Is(err, pipeline.ErrEmptyIdea):
		writeError(w, http.StatusBadRequest, "Please enter a prompt.")
		return
	case errors.Is(err, library.ErrInvalidName):
		writeError(w, http.StatusBadRequest, "Invalid image name.")
		return
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "Image not found.")
		return
	case errors.As(err, &stageErr):
		slog.Error(op+" failed", "error", err, "stage", stageErr.Stage)
		msg = fmt.Sprintf("%s: %s failed.", strings.TrimSuffix(msg, "."), stageErr.Stage)
	case errors.As(err, &parseErr):
		slog.Error(op+" failed", "error", err, "raw", truncate(parseErr.Raw, 500))
	default:
		slog.Error(op+" failed", "error", err)
	}
	writeError(w, http.StatusInternalServerError, msg)
}

// checkPromptSafety runs text through moderation. It writes the response and
// returns false when the prompt is flagged. A moderation outage is logged
// and the prompt is allowed through.
func checkPromptSafety(w http.ResponseWriter, r *http.Request, texts TextAI, op, text string) bool {
	result, err := texts.CheckPrompt(r.Context(), text)
	if err != nil {
		slog.Warn("moderation check failed", "op", op, "error", err)
		return true
	}
	if result.Safe {
		return true
	}
	categories := strings.Join(result.Categories, ", ")
	slog.Warn("prompt flagged by moderation", "op", op, "categories", categories)
	writeError(w, http.StatusBadRequest,
		fmt.Sprintf("Your prompt was flagged for: %s. Please reformulate your request and try again.", categories))
	return false
}

// loadBrand fetches the caller's brand settings, writing a 404 when they
// are missing or cannot be read.
func loadBrand(w http.ResponseWriter, brands BrandStore, userID uuid.UUID, op string) (*models.BrandSettings, bool) {
	brand, err := brands.FindByUser(userID)
	if err != nil {
		// Reported like missing settings; the log keeps the cause.
		slog.Error(op+" brand lookup failed", "error", err)
		brand = nil
	}
	if brand == nil {
		writeError(w, http.StatusNotFound, msgNoSettings)
		return nil, false
	}
	return brand, true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}

// Health reports liveness.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
