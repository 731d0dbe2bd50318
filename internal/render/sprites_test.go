package render

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Flgjfvevdk/pilot-together/internal/scene"
)

// newSpriteServer serves a solid red 8x8 PNG for every path except /missing.png
func newSpriteServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path == "/missing.png" {
			http.NotFound(w, r)
			return
		}
		img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
		for i := 0; i < len(img.Pix); i += 4 {
			img.Pix[i], img.Pix[i+3] = 255, 255
		}
		w.Header().Set("Content-Type", "image/png")
		png.Encode(w, img)
	}))
	t.Cleanup(ts.Close)
	return ts, &hits
}

// TestSpriteBase tests server URL to sprite origin conversion
func TestSpriteBase(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"ws://localhost:5000/ws", "http://localhost:5000"},
		{"wss://game.example.com/socket", "https://game.example.com"},
		{"http://127.0.0.1:8080/", "http://127.0.0.1:8080"},
	}
	for _, tt := range tests {
		u, err := SpriteBase(tt.in)
		if err != nil {
			t.Errorf("SpriteBase(%q) failed: %v", tt.in, err)
			continue
		}
		if u.String() != tt.want {
			t.Errorf("SpriteBase(%q) = %q, expected %q", tt.in, u, tt.want)
		}
	}

	if _, err := SpriteBase("ftp://example.com"); err == nil {
		t.Error("Expected error for unsupported scheme")
	}
}

// TestSpriteCacheFetch tests fetching, caching and eviction
func TestSpriteCacheFetch(t *testing.T) {
	ts, hits := newSpriteServer(t)
	c, err := NewSpriteCache(ts.URL, 1)
	if err != nil {
		t.Fatalf("NewSpriteCache failed: %v", err)
	}

	if got := c.Resolve("/static/images/asteroid.png"); got != ts.URL+"/static/images/asteroid.png" {
		t.Errorf("Expected resolved URL, got %q", got)
	}

	img, err := c.Fetch(context.Background(), "/a.png")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 8 {
		t.Errorf("Expected 8px sprite, got %v", b)
	}
	if c.Get("/a.png") == nil {
		t.Error("Expected sprite cached")
	}

	if _, err := c.Fetch(context.Background(), "/b.png"); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if c.Size() != 1 || c.Get("/a.png") != nil {
		t.Errorf("Expected oldest sprite evicted, size %d", c.Size())
	}

	if _, err := c.Fetch(context.Background(), "/missing.png"); err == nil {
		t.Error("Expected error for missing sprite")
	}
	if hits.Load() != 3 {
		t.Errorf("Expected 3 requests, got %d", hits.Load())
	}
}

// TestSpriteCacheGetOrFetch tests the non-blocking fetch path
func TestSpriteCacheGetOrFetch(t *testing.T) {
	ts, _ := newSpriteServer(t)
	c, err := NewSpriteCache(ts.URL, 0)
	if err != nil {
		t.Fatalf("NewSpriteCache failed: %v", err)
	}

	if c.GetOrFetch("/ship.png") != nil {
		t.Error("Expected nil before the sprite arrives")
	}
	deadline := time.Now().Add(3 * time.Second)
	for c.GetOrFetch("/ship.png") == nil {
		if time.Now().After(deadline) {
			t.Fatal("Sprite never arrived")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// TestRenderSprite tests that a cached sprite replaces the shape
func TestRenderSprite(t *testing.T) {
	ts, _ := newSpriteServer(t)
	sprites, err := NewSpriteCache(ts.URL, 0)
	if err != nil {
		t.Fatalf("NewSpriteCache failed: %v", err)
	}
	if _, err := sprites.Fetch(context.Background(), "/static/images/asteroid.png"); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	cfg := DefaultConfig()
	cfg.Sprites = sprites
	img := New(cfg).Render(Frame{Entries: []scene.Entry{{
		ID: "asteroid-1",
		Attributes: scene.Attributes{
			X: 50, Y: 50, Width: 10, Height: 10,
			Image: "/static/images/asteroid.png", Opacity: 1, Visible: true,
		},
	}}})

	if got, want := rgbaAt(t, img, 400, 300), (color.RGBA{255, 0, 0, 255}); got != want {
		t.Errorf("Expected sprite color %v at centre, got %v", want, got)
	}
}
