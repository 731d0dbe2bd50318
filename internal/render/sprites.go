package render

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"  // Support GIF format
	_ "image/jpeg" // Support JPEG format
	_ "image/png"  // Support PNG format
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Support WebP format
)

const (
	DefaultMaxSprites    = 64
	SpriteTTL            = 10 * time.Minute
	MaxConcurrentFetches = 3
	FetchTimeout         = 5 * time.Second
)

// SpriteCache stores decoded sprite images with oldest-first eviction.
// Image references in snapshots are resolved against the game server's
// HTTP base.
type SpriteCache struct {
	mu      sync.RWMutex
	images  map[string]*cachedSprite
	order   []string // insertion order (oldest first)
	maxSize int
	base    *url.URL

	// Pending fetches
	pending map[string]bool
	failed  map[string]time.Time
	client  *http.Client
	sem     chan struct{} // Semaphore for concurrent fetches
}

type cachedSprite struct {
	image     image.Image
	fetchedAt time.Time
}

// NewSpriteCache creates a cache resolving references against base, an
// http(s) or ws(s) URL of the game server.
func NewSpriteCache(base string, maxSize int) (*SpriteCache, error) {
	u, err := SpriteBase(base)
	if err != nil {
		return nil, err
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxSprites
	}
	return &SpriteCache{
		images:  make(map[string]*cachedSprite),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		base:    u,
		pending: make(map[string]bool),
		failed:  make(map[string]time.Time),
		client: &http.Client{
			Timeout: FetchTimeout,
		},
		sem: make(chan struct{}, MaxConcurrentFetches),
	}, nil
}

// SpriteBase turns a server URL into the HTTP origin sprites are served from.
func SpriteBase(server string) (*url.URL, error) {
	u, err := url.Parse(server)
	if err != nil {
		return nil, fmt.Errorf("parse sprite base %q: %w", server, err)
	}
	switch u.Scheme {
	case "ws", "http":
		u.Scheme = "http"
	case "wss", "https":
		u.Scheme = "https"
	default:
		return nil, fmt.Errorf("sprite base %q: unsupported scheme %q", server, u.Scheme)
	}
	return &url.URL{Scheme: u.Scheme, Host: u.Host}, nil
}

// Resolve returns the absolute URL of an image reference.
func (c *SpriteCache) Resolve(ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return c.base.ResolveReference(u).String()
}

// Get returns a cached sprite or nil
func (c *SpriteCache) Get(ref string) image.Image {
	if ref == "" {
		return nil
	}

	c.mu.RLock()
	cached, exists := c.images[ref]
	c.mu.RUnlock()

	if !exists {
		return nil
	}

	if time.Since(cached.fetchedAt) > SpriteTTL {
		c.mu.Lock()
		c.remove(ref)
		c.mu.Unlock()
		return nil
	}

	return cached.image
}

// GetOrFetch returns a cached sprite or starts an async fetch.
// Never blocks; returns nil until the sprite has arrived. A failed fetch
// is not retried until SpriteTTL has passed.
func (c *SpriteCache) GetOrFetch(ref string) image.Image {
	if ref == "" {
		return nil
	}
	if img := c.Get(ref); img != nil {
		return img
	}

	c.mu.Lock()
	failedAt, failed := c.failed[ref]
	if !c.pending[ref] && (!failed || time.Since(failedAt) > SpriteTTL) {
		c.pending[ref] = true
		go c.fetchAsync(ref)
	}
	c.mu.Unlock()

	return nil
}

func (c *SpriteCache) fetchAsync(ref string) {
	// Acquire semaphore
	c.sem <- struct{}{}
	defer func() { <-c.sem }()

	ctx, cancel := context.WithTimeout(context.Background(), FetchTimeout)
	defer cancel()
	_, err := c.Fetch(ctx, ref)

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, ref)
	if err != nil {
		c.failed[ref] = time.Now()
		log.Printf("⚠️ Sprite fetch failed for %s: %v", ref, err)
	}
}

// Fetch downloads, decodes and caches a sprite.
func (c *SpriteCache) Fetch(ctx context.Context, ref string) (image.Image, error) {
	target := c.Resolve(ref)
	if target == "" {
		return nil, fmt.Errorf("bad sprite reference %q", ref)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", target, resp.StatusCode)
	}

	img, format, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decode %s (Content-Type: %s): %w", target, resp.Header.Get("Content-Type"), err)
	}
	log.Printf("🖼️ Sprite decoded (format: %s) for %s", format, ref)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.images[ref]; exists {
		c.remove(ref)
	}
	// Evict if at capacity
	if len(c.images) >= c.maxSize {
		c.evict()
	}
	c.images[ref] = &cachedSprite{image: img, fetchedAt: time.Now()}
	c.order = append(c.order, ref)
	delete(c.failed, ref)

	return img, nil
}

// evict removes the oldest cached sprite
func (c *SpriteCache) evict() {
	if len(c.order) == 0 {
		return
	}
	c.remove(c.order[0])
}

func (c *SpriteCache) remove(ref string) {
	delete(c.images, ref)
	for i, r := range c.order {
		if r == ref {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Size returns the current cache size
func (c *SpriteCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.images)
}

// scaleSprite resizes img to w x h pixels.
func scaleSprite(img image.Image, w, h int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, max(w, 1), max(h, 1)))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}
