package devserver

import (
	"bytes"
	"image/color"
	"net/http"
	"sync"

	"github.com/fogleman/gg"
	"github.com/go-chi/chi/v5"
)

// SpriteSize is the edge of every generated sprite in pixels
const SpriteSize = 64

var (
	spritesOnce sync.Once
	sprites     map[string][]byte
)

// drawSprites paints the PNGs referenced by snapshots.
func drawSprites() map[string][]byte {
	const s = float64(SpriteSize)
	out := make(map[string][]byte)

	paint := func(name string, fn func(dc *gg.Context)) {
		dc := gg.NewContext(SpriteSize, SpriteSize)
		fn(dc)
		var buf bytes.Buffer
		if err := dc.EncodePNG(&buf); err == nil {
			out[name] = buf.Bytes()
		}
	}

	paint("spaceship.png", func(dc *gg.Context) {
		// Nose points right, angle 0
		dc.SetColor(color.RGBA{0, 212, 255, 255})
		dc.MoveTo(s, s/2)
		dc.LineTo(0, 0)
		dc.LineTo(s/4, s/2)
		dc.LineTo(0, s)
		dc.ClosePath()
		dc.Fill()
	})
	paint("asteroid.png", func(dc *gg.Context) {
		dc.SetColor(color.RGBA{150, 140, 130, 255})
		dc.DrawCircle(s/2, s/2, s/2-2)
		dc.Fill()
		dc.SetColor(color.RGBA{110, 100, 95, 255})
		dc.DrawCircle(s/3, s/3, s/8)
		dc.Fill()
	})
	paint("projectile.png", func(dc *gg.Context) {
		dc.SetColor(color.RGBA{255, 230, 80, 255})
		dc.DrawEllipse(s/2, s/2, s/2, s/6)
		dc.Fill()
	})
	paint("shield.png", func(dc *gg.Context) {
		dc.SetColor(color.RGBA{80, 160, 255, 200})
		dc.SetLineWidth(6)
		dc.DrawArc(s/2, s/2, s/2-4, -gg.Radians(45), gg.Radians(45))
		dc.Stroke()
	})
	return out
}

// handleSprite serves /static/images/{name}.
func handleSprite(w http.ResponseWriter, r *http.Request) {
	spritesOnce.Do(func() { sprites = drawSprites() })

	data, ok := sprites[chi.URLParam(r, "name")]
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(data)
}
