package render

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/Flgjfvevdk/pilot-together/internal/scene"
)

func rgbaAt(t *testing.T, img image.Image, x, y int) color.RGBA {
	t.Helper()
	rgba, ok := img.(*image.RGBA)
	if !ok {
		t.Fatalf("Expected *image.RGBA, got %T", img)
	}
	return rgba.RGBAAt(x, y)
}

// TestRenderEntities tests that visible entities are drawn and hidden ones are not
func TestRenderEntities(t *testing.T) {
	r := New(DefaultConfig())

	img := r.Render(Frame{
		Entries: []scene.Entry{
			{
				ID: "asteroid-1",
				Attributes: scene.Attributes{
					X: 50, Y: 50, Width: 10, Height: 10,
					Image: "/static/images/asteroid.png", Opacity: 1, Visible: true,
				},
			},
			{
				ID: "asteroid-2",
				Attributes: scene.Attributes{
					X: 25, Y: 25, Width: 10, Height: 10,
					Image: "/static/images/asteroid.png", Opacity: 1, Visible: false,
				},
			},
		},
	})

	if got, want := rgbaAt(t, img, 400, 300), color.RGBAModel.Convert(palette["asteroid"]); got != want {
		t.Errorf("Expected asteroid color %v at centre, got %v", want, got)
	}
	if got, want := rgbaAt(t, img, 200, 150), (color.RGBA{12, 12, 28, 255}); got != want {
		t.Errorf("Expected background %v for hidden entity, got %v", want, got)
	}
}

// TestRenderGauges tests the health bar
func TestRenderGauges(t *testing.T) {
	r := New(DefaultConfig())

	img := r.Render(Frame{Health: &scene.Gauge{Current: 100, Max: 100}})
	if got := rgbaAt(t, img, 20, 565); got != healthColor(1) {
		t.Errorf("Expected full health bar color %v, got %v", healthColor(1), got)
	}

	img = r.Render(Frame{Health: &scene.Gauge{Current: 10, Max: 100}})
	if got := rgbaAt(t, img, 20, 565); got != healthColor(0.1) {
		t.Errorf("Expected low health color %v, got %v", healthColor(0.1), got)
	}
	// Past the filled part the bar background shows
	if got, want := rgbaAt(t, img, 150, 565), (color.RGBA{51, 51, 51, 255}); got != want {
		t.Errorf("Expected empty bar %v, got %v", want, got)
	}
}

// TestRenderReturnsCopy tests that a rendered image is not overwritten by the next render
func TestRenderReturnsCopy(t *testing.T) {
	r := New(DefaultConfig())
	first := r.Render(Frame{Health: &scene.Gauge{Current: 100, Max: 100}})
	r.Render(Frame{})

	if got := rgbaAt(t, first, 20, 565); got != healthColor(1) {
		t.Errorf("Expected first frame unchanged, got %v", got)
	}
}

// TestEncodePNG tests PNG output dimensions
func TestEncodePNG(t *testing.T) {
	r := New(Config{Width: 320, Height: 240, Colliders: true})

	var buf bytes.Buffer
	err := r.EncodePNG(&buf, Frame{Entries: []scene.Entry{{
		ID:         scene.SelfID,
		Attributes: scene.Attributes{X: 50, Y: 50, Width: 8, Height: 8, Opacity: 1, Visible: true},
		Colliders:  []scene.Collider{{Width: 8, Height: 8}},
	}}})
	if err != nil {
		t.Fatalf("EncodePNG failed: %v", err)
	}

	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 320 || b.Dy() != 240 {
		t.Errorf("Expected 320x240, got %dx%d", b.Dx(), b.Dy())
	}
}

// TestColorFor tests sprite color lookup
func TestColorFor(t *testing.T) {
	if got := colorFor("x", "/static/images/projectile.png"); got != palette["projectile"] {
		t.Errorf("Expected projectile color, got %v", got)
	}
	if got := colorFor(scene.SelfID, ""); got != palette["spaceship"] {
		t.Errorf("Expected spaceship color for self without image, got %v", got)
	}
	if colorFor("a", "/img/mine.png") != colorFor("b", "/img/mine.png") {
		t.Error("Expected the same image to hash to the same color")
	}
}
