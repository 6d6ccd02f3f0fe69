// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package library stores generated images per user in the private
// images bucket and hands them back as time-limited signed URLs.
package library

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"regexp"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"branddos/internal/cache"
	"branddos/internal/models"
	"branddos/internal/storage"
)

const (
	// MaxListed is the most images Images returns.
	MaxListed = 100

	// maxImageBytes bounds downloads of library images.
	maxImageBytes = 20 << 20

	// signConcurrency bounds parallel presign calls.
	signConcurrency = 8
)

// ErrInvalidName is returned for image names that are not a plain
// "<id>.png" or "<id>.webp" file name.
var ErrInvalidName = errors.New("library: invalid image name")

var validName = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}\.(png|webp)$`)

// ObjectStore is the subset of storage.Client the gateway uses.
type ObjectStore interface {
	Upload(ctx context.Context, bucket, key, contentType string, data []byte) error
	Download(ctx context.Context, bucket, key string, maxBytes int64) ([]byte, error)
	List(ctx context.Context, bucket, prefix string, limit int) ([]storage.Object, error)
	PresignedURL(ctx context.Context, bucket, key string, expires time.Duration) (string, error)
}

// Gateway reads and writes one bucket of user images.
type Gateway struct {
	store  ObjectStore
	bucket string
	ttl    time.Duration
	urls   *cache.URLCache
}

// New creates a Gateway. urls may be nil to disable URL caching.
func New(store ObjectStore, bucket string, signedTTL time.Duration, urls *cache.URLCache) *Gateway {
	return &Gateway{store: store, bucket: bucket, ttl: signedTTL, urls: urls}
}

// SaveImage uploads data under {userID}/{uuid}.png, or .webp when data
// is WebP, and returns the object key.
func (g *Gateway) SaveImage(ctx context.Context, userID uuid.UUID, data []byte) (string, error) {
	contentType := http.DetectContentType(data)
	ext := ".png"
	switch contentType {
	case "image/png":
	case "image/webp":
		ext = ".webp"
	default:
		return "", fmt.Errorf("library: unexpected content type %s", contentType)
	}

	key := userID.String() + "/" + uuid.New().String() + ext
	if err := g.store.Upload(ctx, g.bucket, key, contentType, data); err != nil {
		return "", fmt.Errorf("library: save image: %w", err)
	}
	return key, nil
}

// SignedURL returns a presigned GET URL for key, served from the URL
// cache when possible.
func (g *Gateway) SignedURL(ctx context.Context, key string) (string, error) {
	if u, ok := g.urls.Get(ctx, key); ok {
		return u, nil
	}
	u, err := g.store.PresignedURL(ctx, g.bucket, key, g.ttl)
	if err != nil {
		return "", fmt.Errorf("library: sign %s: %w", key, err)
	}
	g.urls.Set(ctx, key, u)
	return u, nil
}

// Images lists the user's images newest first, at most MaxListed, each
// with a signed URL. URLs are produced concurrently.
func (g *Gateway) Images(ctx context.Context, userID uuid.UUID) ([]models.LibraryImage, error) {
	objects, err := g.store.List(ctx, g.bucket, userID.String()+"/", MaxListed)
	if err != nil {
		return nil, fmt.Errorf("library: list: %w", err)
	}

	images := make([]models.LibraryImage, len(objects))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(signConcurrency)
	for i, obj := range objects {
		eg.Go(func() error {
			u, err := g.SignedURL(egCtx, obj.Key)
			if err != nil {
				return err
			}
			images[i] = models.LibraryImage{URL: u, Name: path.Base(obj.Key), CreatedAt: obj.LastModified}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return images, nil
}

// Open loads one of the user's images by file name.
func (g *Gateway) Open(ctx context.Context, userID uuid.UUID, name string) ([]byte, error) {
	if !validName.MatchString(name) {
		return nil, ErrInvalidName
	}
	data, err := g.store.Download(ctx, g.bucket, userID.String()+"/"+name, maxImageBytes)
	if err != nil {
		return nil, fmt.Errorf("library: open %s: %w", name, err)
	}
	return data, nil
}
