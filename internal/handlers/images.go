package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"branddos/internal/imaging"
	"branddos/internal/middleware"
	"branddos/internal/models"
	"branddos/internal/prompt"
)

// Images groups the image generation, overlay and library handlers.
type Images struct {
	brands     BrandStore
	posts      PostStore
	texts      TextAI
	refiner    Refiner
	library    ImageLibrary // nil when object storage is not configured
	catalog    *imaging.Catalog
	recompress func([]byte) ([]byte, error) // nil stores PNG as is
}

// NewImages creates a new Images handler group. library and recompress
// may be nil.
func NewImages(brands BrandStore, posts PostStore, texts TextAI, refiner Refiner,
	library ImageLibrary, catalog *imaging.Catalog, recompress func([]byte) ([]byte, error)) *Images {
	return &Images{
		brands:     brands,
		posts:      posts,
		texts:      texts,
		refiner:    refiner,
		library:    library,
		catalog:    catalog,
		recompress: recompress,
	}
}

type refineRequest struct {
	UserPrompt   string `json:"userPrompt" validate:"max=4000"`
	BusinessType string `json:"businessType" validate:"max=50"`
	Template     string `json:"template" validate:"max=50"`
}

type overlayRequest struct {
	Image    string `json:"image" validate:"required,max=100"`
	Headline string `json:"headline" validate:"max=120"`
	Subtext  string `json:"subtext" validate:"max=240"`
	Template string `json:"template" validate:"max=50"`
}

type imageResponse struct {
	ImageURL      string `json:"imageUrl"`
	Path          string `json:"path"`
	Headline      string `json:"headline,omitempty"`
	Subtext       string `json:"subtext,omitempty"`
	RefinedPrompt string `json:"refinedPrompt,omitempty"`
	Prompt        string `json:"prompt,omitempty"`
}

// RefineImagePrompt turns the user's idea into an image prompt, generates
// the image, overlays the headline and subtext when the refinement produced
// them, and stores the result in the caller's library.
func (h *Images) RefineImagePrompt(w http.ResponseWriter, r *http.Request) {
	var req refineRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	idea := strings.TrimSpace(req.UserPrompt)
	if idea == "" {
		writeError(w, http.StatusBadRequest, "Please enter a prompt.")
		return
	}
	if !h.requireLibrary(w) {
		return
	}
	if req.Template != "" {
		if _, ok := h.catalog.Lookup(req.Template); !ok {
			writeError(w, http.StatusBadRequest, "Unknown template.")
			return
		}
	}

	ctx := r.Context()
	userID := middleware.UserID(ctx)
	brand, ok := loadBrand(w, h.brands, userID, "refine image prompt")
	if !ok {
		return
	}
	if !checkPromptSafety(w, r, h.texts, "refine image prompt", idea) {
		return
	}

	ref, err := h.refiner.Refine(ctx, brand, idea)
	if err != nil {
		writeFailure(w, "refine image prompt", err, "Failed to refine the image prompt.")
		return
	}

	img, err := h.refiner.Synthesize(ctx, ref)
	if err != nil {
		writeFailure(w, "image synthesis", err, "Image generation failed.")
		return
	}

	data := img.Data
	if ref.Headline != "" || ref.Subtext != "" {
		preset := h.resolvePreset(req.Template, brand, req.BusinessType)
		data, err = imaging.Compose(data, imaging.Overlay{
			Headline: ref.Headline,
			Subtext:  ref.Subtext,
			Preset:   preset,
		})
		if err != nil {
			writeFailure(w, "image overlay", err, "Failed to compose the image.")
			return
		}
	}

	key, url, err := h.store(ctx, userID, data)
	if err != nil {
		writeFailure(w, "image upload", err, "Failed to upload the generated image.")
		return
	}

	writeJSON(w, http.StatusOK, imageResponse{
		ImageURL:      url,
		Path:          key,
		Headline:      ref.Headline,
		Subtext:       ref.Subtext,
		RefinedPrompt: ref.RefinedPrompt,
	})
}

// GenerateImage creates a brand-themed image without text and stores it in
// the caller's library.
func (h *Images) GenerateImage(w http.ResponseWriter, r *http.Request) {
	if !h.requireLibrary(w) {
		return
	}
	ctx := r.Context()
	userID := middleware.UserID(ctx)
	brand, ok := loadBrand(w, h.brands, userID, "generate image")
	if !ok {
		return
	}

	p := prompt.BrandImage(brand)
	img, err := h.refiner.SynthesizePrompt(ctx, p)
	if err != nil {
		writeFailure(w, "generate image", err, "Image generation failed.")
		return
	}

	key, url, err := h.store(ctx, userID, img.Data)
	if err != nil {
		writeFailure(w, "image upload", err, "Failed to upload the generated image.")
		return
	}
	writeJSON(w, http.StatusOK, imageResponse{ImageURL: url, Path: key, Prompt: p})
}

// Overlay draws a headline and subtext over one of the caller's library
// images and returns the PNG. Nothing is stored.
func (h *Images) Overlay(w http.ResponseWriter, r *http.Request) {
	var req overlayRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	headline := strings.TrimSpace(req.Headline)
	subtext := strings.TrimSpace(req.Subtext)
	if headline == "" && subtext == "" {
		writeError(w, http.StatusBadRequest, "Headline or subtext is required.")
		return
	}
	if !h.requireLibrary(w) {
		return
	}
	if req.Template != "" {
		if _, ok := h.catalog.Lookup(req.Template); !ok {
			writeError(w, http.StatusBadRequest, "Unknown template.")
			return
		}
	}

	ctx := r.Context()
	userID := middleware.UserID(ctx)
	brand, err := h.brands.FindByUser(userID)
	if err != nil {
		slog.Error("overlay brand lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load brand settings.")
		return
	}

	src, err := h.library.Open(ctx, userID, req.Image)
	if err != nil {
		writeFailure(w, "overlay", err, "Failed to load the image.")
		return
	}

	out, err := imaging.Compose(src, imaging.Overlay{
		Headline: headline,
		Subtext:  subtext,
		Preset:   h.resolvePreset(req.Template, brand, ""),
	})
	if err != nil {
		writeFailure(w, "overlay", err, "Failed to compose the image.")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", fmt.Sprint(len(out)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(out); err != nil {
		slog.Warn("overlay write failed", "error", err)
	}
}

// UserData returns the caller's post history and image library. Both are
// fetched concurrently. Without object storage the library is empty.
func (h *Images) UserData(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserID(ctx)

	var (
		posts  []models.GeneratedPost
		images []models.LibraryImage
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		posts, err = h.posts.ListByUser(userID)
		return err
	})
	if h.library != nil {
		eg.Go(func() error {
			var err error
			images, err = h.library.Images(egCtx, userID)
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		slog.Error("user data failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load your data.")
		return
	}
	if images == nil {
		images = []models.LibraryImage{}
	}

	writeJSON(w, http.StatusOK, userDataResponse{History: nonNilPosts(posts), Library: images})
}

type userDataResponse struct {
	History []models.GeneratedPost `json:"history"`
	Library []models.LibraryImage  `json:"library"`
}

func (h *Images) requireLibrary(w http.ResponseWriter) bool {
	if h.library == nil {
		writeError(w, http.StatusServiceUnavailable, "Object storage is not configured.")
		return false
	}
	return true
}

// resolvePreset picks the explicit template when given, otherwise one that
// fits the brand tone and business type.
func (h *Images) resolvePreset(template string, brand *models.BrandSettings, businessType string) imaging.Preset {
	name := template
	if name == "" {
		tone := ""
		if brand != nil {
			tone = string(brand.Tone)
		}
		name = h.catalog.SelectPreset(tone, businessType)
	}
	if p, ok := h.catalog.Lookup(name); ok {
		return p
	}
	p, _ := h.catalog.Lookup(imaging.FallbackPreset)
	return p
}

// store normalizes data to PNG, recompresses it when enabled, saves it to
// the library and returns the key with a signed URL.
func (h *Images) store(ctx context.Context, userID uuid.UUID, data []byte) (key, url string, err error) {
	data, err = imaging.ToPNG(data)
	if err != nil {
		return "", "", err
	}
	if h.recompress != nil {
		if small, rerr := h.recompress(data); rerr != nil {
			slog.Warn("image recompression failed, keeping png", "error", rerr)
		} else {
			data = small
		}
	}

	key, err = h.library.SaveImage(ctx, userID, data)
	if err != nil {
		return "", "", err
	}
	url, err = h.library.SignedURL(ctx, key)
	if err != nil {
		return "", "", err
	}
	return key, url, nil
}
