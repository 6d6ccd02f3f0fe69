package handlers

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"branddos/internal/imaging"
	"branddos/internal/middleware"
	"branddos/internal/models"
)

// maxLogoSize is the largest accepted logo upload (5 MB).
const maxLogoSize = 5 << 20

// allowedLogoTypes maps accepted logo MIME types to file extensions.
var allowedLogoTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
}

// Brand groups the brand settings handlers.
type Brand struct {
	brands BrandStore
	logos  LogoStore // nil when object storage is not configured
}

// NewBrand creates a new Brand handler group. logos may be nil.
func NewBrand(brands BrandStore, logos LogoStore) *Brand {
	return &Brand{brands: brands, logos: logos}
}

type saveSettingsRequest struct {
	BrandName     string   `json:"brand_name" validate:"notblank,max=100"`
	Description   string   `json:"description" validate:"max=2000"`
	Tone          string   `json:"tone" validate:"required,tone"`
	Keywords      []string `json:"keywords" validate:"max=20,dive,max=50"`
	LogoURL       *string  `json:"logo_url" validate:"omitempty,max=2048"`
	PostFrequency int      `json:"post_frequency" validate:"omitempty,min=1,max=7"`
}

// Settings returns the caller's brand settings, or null before the first save.
func (b *Brand) Settings(w http.ResponseWriter, r *http.Request) {
	settings, err := b.brands.FindByUser(middleware.UserID(r.Context()))
	if err != nil {
		slog.Error("load settings failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load brand settings.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]*models.BrandSettings{"settings": settings})
}

// SaveSettings creates or replaces the caller's brand settings. An omitted
// logo_url keeps the current logo; an empty one clears it.
func (b *Brand) SaveSettings(w http.ResponseWriter, r *http.Request) {
	var req saveSettingsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	userID := middleware.UserID(r.Context())

	tone, _ := models.ParseTone(req.Tone)
	settings := &models.BrandSettings{
		UserID:        userID,
		BrandName:     strings.TrimSpace(req.BrandName),
		Description:   strings.TrimSpace(req.Description),
		Tone:          tone,
		Keywords:      models.CleanKeywords(req.Keywords),
		PostFrequency: req.PostFrequency,
	}
	if settings.PostFrequency == 0 {
		settings.PostFrequency = models.DefaultPostFrequency
	}

	switch {
	case req.LogoURL == nil:
		existing, err := b.brands.FindByUser(userID)
		if err != nil {
			slog.Error("save settings lookup failed", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to save settings.")
			return
		}
		if existing != nil {
			settings.LogoURL = existing.LogoURL
		}
	case strings.TrimSpace(*req.LogoURL) != "":
		logo := strings.TrimSpace(*req.LogoURL)
		if err := validate.Var(logo, "http_url"); err != nil {
			writeError(w, http.StatusBadRequest, "Logo url must be a valid URL.")
			return
		}
		if !b.ownsLogoURL(userID, logo) {
			writeError(w, http.StatusBadRequest, "Logo url must point to one of your own logos.")
			return
		}
		settings.LogoURL = &logo
	}

	if _, err := b.brands.Upsert(settings); err != nil {
		slog.Error("save settings failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to save settings.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Settings saved successfully"})
}

// UploadLogo stores a new logo in the public bucket, points the brand
// settings at it and removes the previous logo object.
func (b *Brand) UploadLogo(w http.ResponseWriter, r *http.Request) {
	if b.logos == nil {
		writeError(w, http.StatusServiceUnavailable, "Object storage is not configured.")
		return
	}
	userID := middleware.UserID(r.Context())

	brand, ok := loadBrand(w, b.brands, userID, "upload logo")
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxLogoSize+1024)
	if err := r.ParseMultipartForm(maxLogoSize); err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "File too large. Maximum size is 5 MB.")
		return
	}

	file, header, err := r.FormFile("logo")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file provided.")
		return
	}
	defer file.Close()

	if header.Size > maxLogoSize {
		writeError(w, http.StatusRequestEntityTooLarge, "File too large. Maximum size is 5 MB.")
		return
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(file, maxLogoSize+1)); err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read file.")
		return
	}
	data := buf.Bytes()

	contentType := http.DetectContentType(data)
	ext, allowed := allowedLogoTypes[contentType]
	if !allowed {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("File type %q is not allowed.", contentType))
		return
	}
	// Sniffing only checks the magic bytes; make sure the image decodes.
	if _, _, err := imaging.Decode(data); err != nil {
		writeError(w, http.StatusBadRequest, "The file is not a valid image.")
		return
	}

	key := userID.String() + "/" + uuid.New().String() + ext
	bucket := b.logos.LogosBucket()
	if err := b.logos.Upload(r.Context(), bucket, key, contentType, data); err != nil {
		slog.Error("logo upload failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to upload logo.")
		return
	}

	var oldURL string
	if brand.LogoURL != nil {
		oldURL = *brand.LogoURL
	}

	logoURL := b.logos.FileURL(key)
	updated, err := b.brands.SetLogo(userID, logoURL)
	if err != nil || !updated {
		if err != nil {
			slog.Error("set logo failed", "error", err)
		}
		if delErr := b.logos.Delete(r.Context(), bucket, key); delErr != nil {
			slog.Warn("orphaned logo cleanup failed", "key", key, "error", delErr)
		}
		if !updated && err == nil {
			writeError(w, http.StatusNotFound, msgNoSettings)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to upload logo.")
		return
	}

	if oldURL != "" {
		// Only objects under the caller's prefix are theirs to remove.
		oldKey, ok := b.logos.LogoKey(oldURL)
		if ok && oldKey != key && ownsLogoKey(userID, oldKey) {
			if err := b.logos.Delete(r.Context(), bucket, oldKey); err != nil {
				slog.Warn("old logo delete failed", "key", oldKey, "error", err)
			}
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"logo_url": logoURL})
}

// ownsLogoURL reports whether rawURL may be stored as the user's logo.
// External URLs are allowed; URLs into the logos bucket must sit under
// the user's own prefix.
func (b *Brand) ownsLogoURL(userID uuid.UUID, rawURL string) bool {
	if b.logos == nil {
		return true
	}
	key, ok := b.logos.LogoKey(rawURL)
	if !ok {
		return true
	}
	return ownsLogoKey(userID, key)
}

func ownsLogoKey(userID uuid.UUID, key string) bool {
	return strings.HasPrefix(key, userID.String()+"/") && !strings.Contains(key, "..")
}
