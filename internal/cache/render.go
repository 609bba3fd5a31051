package cache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os"
	"time"

	"github.com/spherical/ghostview/internal/observability"
)

// PageKey identifies one rendered page of one version of a document.
type PageKey struct {
	Path       string
	ModTime    time.Time
	Size       int64
	Page       int
	Resolution int
	Antialias  bool
}

// KeyFor stats path so edits to the file invalidate its pages.
func KeyFor(path string, page, resolution int, antialias bool) (PageKey, error) {
	st, err := os.Stat(path)
	if err != nil {
		return PageKey{}, err
	}
	return PageKey{
		Path:       path,
		ModTime:    st.ModTime(),
		Size:       st.Size(),
		Page:       page,
		Resolution: resolution,
		Antialias:  antialias,
	}, nil
}

// document is the per-file key prefix shared by all pages.
func (k PageKey) document() string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%d", k.Path, k.ModTime.UnixNano(), k.Size)))
	return "page:" + hex.EncodeToString(sum[:16]) + ":"
}

// SameDocument reports whether k and o belong to the same version of the
// same file.
func (k PageKey) SameDocument(o PageKey) bool {
	return k.document() == o.document()
}

func (k PageKey) String() string {
	return fmt.Sprintf("%s%d:%d:%t", k.document(), k.Page, k.Resolution, k.Antialias)
}

// RenderCache stores rendered pages as PNG.
type RenderCache struct {
	client Client
	ttl    time.Duration
	logger *observability.Logger
}

// NewRenderCache wraps client. A nil client disables caching.
func NewRenderCache(client Client, ttl time.Duration, logger *observability.Logger) *RenderCache {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if logger == nil {
		logger = observability.Nop()
	}
	return &RenderCache{client: client, ttl: ttl, logger: logger}
}

// Enabled reports whether a backing client is configured.
func (c *RenderCache) Enabled() bool {
	return c != nil && c.client != nil
}

// Get returns the cached page or ErrCacheMiss.
func (c *RenderCache) Get(ctx context.Context, key PageKey) (*image.RGBA, error) {
	if !c.Enabled() {
		return nil, ErrCacheMiss
	}
	data, err := c.client.Get(ctx, key.String())
	if err != nil {
		return nil, err
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		// drop the corrupt entry so the page is rendered again
		_ = c.client.Delete(ctx, key.String())
		return nil, ErrCacheMiss
	}
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba, nil
	}
	rgba := image.NewRGBA(img.Bounds())
	draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)
	return rgba, nil
}

// Put stores img. Failures are logged, never returned: the cache is optional.
func (c *RenderCache) Put(ctx context.Context, key PageKey, img image.Image) {
	if !c.Enabled() {
		return
	}
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		c.logger.Warn().Err(err).Int("page", key.Page).Msg("Failed to encode page for cache")
		return
	}
	if err := c.client.Set(ctx, key.String(), buf.Bytes(), c.ttl); err != nil {
		c.logger.Warn().Err(err).Int("page", key.Page).Msg("Failed to cache page")
	}
}

// Invalidate drops every cached page of the document key belongs to.
func (c *RenderCache) Invalidate(ctx context.Context, key PageKey) error {
	if !c.Enabled() {
		return nil
	}
	return c.client.DeleteByPrefix(ctx, key.document())
}

// IsMiss reports whether err is a cache miss.
func IsMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}
