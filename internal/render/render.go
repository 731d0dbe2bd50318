// Package render rasterizes the client's visual tree into an image. It backs
// the debug frame endpoint and needs no display.
package render

import (
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fogleman/gg"

	"github.com/Flgjfvevdk/pilot-together/internal/metrics"
	"github.com/Flgjfvevdk/pilot-together/internal/scene"
)

// Config configures the renderer
type Config struct {
	Width     int
	Height    int
	Colliders bool // draw collider outlines

	// Sprites, when set, draws fetched sprite images in place of shapes.
	Sprites *SpriteCache
}

// DefaultConfig returns an 800x600 frame without colliders
func DefaultConfig() Config {
	return Config{Width: 800, Height: 600}
}

// Frame is everything drawn in one image. Entries are back-to-front.
type Frame struct {
	Entries     []scene.Entry
	Health      *scene.Gauge
	Temperature *scene.Gauge
	Status      string
	Notice      string // game notice, may be empty
	Weapon      int
	Weapons     int // enabled weapon count
	Players     []string
}

// Renderer draws frames. A Renderer reuses one drawing context and is safe
// for concurrent use.
type Renderer struct {
	config Config

	mu       sync.Mutex
	dc       *gg.Context
	fontPath string
}

// New creates a renderer
func New(config Config) *Renderer {
	if config.Width <= 0 || config.Height <= 0 {
		d := DefaultConfig()
		config.Width, config.Height = d.Width, d.Height
	}
	return &Renderer{
		config:   config,
		dc:       gg.NewContext(config.Width, config.Height),
		fontPath: getFontPath(),
	}
}

// Render draws f and returns a copy of the image.
func (r *Renderer) Render(f Frame) image.Image {
	start := time.Now()
	defer func() { metrics.RecordRender(time.Since(start)) }()

	r.mu.Lock()
	defer r.mu.Unlock()

	dc := r.dc
	r.drawBackground(dc)
	for _, e := range f.Entries {
		if !e.Attributes.Visible {
			continue
		}
		r.drawEntity(dc, e)
		if r.config.Colliders {
			r.drawColliders(dc, e)
		}
	}
	r.drawUI(dc, f)

	src := dc.Image().(*image.RGBA)
	out := image.NewRGBA(src.Bounds())
	copy(out.Pix, src.Pix)
	return out
}

// EncodePNG renders f as PNG into w.
func (r *Renderer) EncodePNG(w io.Writer, f Frame) error {
	if err := png.Encode(w, r.Render(f)); err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	return nil
}

func (r *Renderer) drawBackground(dc *gg.Context) {
	w, h := float64(r.config.Width), float64(r.config.Height)
	dc.SetColor(color.RGBA{12, 12, 28, 255})
	dc.DrawRectangle(0, 0, w, h)
	dc.Fill()

	dc.SetColor(color.White)
	for i := 0; i < 30; i++ {
		x := float64((i * 67) % r.config.Width)
		y := float64((i * 47) % r.config.Height)
		dc.DrawCircle(x, y, 1)
		dc.Fill()
	}
}

// toPixels converts play field percent to pixels
func (r *Renderer) toPixels(x, y float64) (float64, float64) {
	return x / 100 * float64(r.config.Width), y / 100 * float64(r.config.Height)
}

func (r *Renderer) drawEntity(dc *gg.Context, e scene.Entry) {
	a := e.Attributes
	cx, cy := r.toPixels(a.X, a.Y)
	w, h := r.toPixels(a.Width, a.Height)

	if r.config.Sprites != nil {
		if img := r.config.Sprites.GetOrFetch(a.Image); img != nil {
			sprite := scaleSprite(img, int(w), int(h))
			fade(sprite, a.Opacity)
			dc.Push()
			dc.RotateAbout(a.Angle, cx, cy)
			dc.DrawImageAnchored(sprite, int(cx), int(cy), 0.5, 0.5)
			dc.Pop()
			return
		}
	}

	c := colorFor(e.ID, a.Image)
	c.A = uint8(float64(c.A) * a.Opacity)

	dc.Push()
	dc.RotateAbout(a.Angle, cx, cy)
	dc.SetColor(c)
	if e.ID == scene.SelfID {
		// Nose points along the image angle
		dc.MoveTo(cx+w/2, cy)
		dc.LineTo(cx-w/2, cy-h/2)
		dc.LineTo(cx-w/4, cy)
		dc.LineTo(cx-w/2, cy+h/2)
		dc.ClosePath()
		dc.Fill()
	} else {
		dc.DrawEllipse(cx, cy, w/2, h/2)
		dc.Fill()
	}
	dc.Pop()
}

// fade scales the alpha channel of img by opacity.
func fade(img *image.NRGBA, opacity float64) {
	if opacity >= 1 {
		return
	}
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = uint8(float64(img.Pix[i]) * opacity)
	}
}

func (r *Renderer) drawColliders(dc *gg.Context, e scene.Entry) {
	cx, cy := r.toPixels(e.Attributes.X, e.Attributes.Y)
	dc.SetColor(color.RGBA{255, 62, 62, 255})
	dc.SetLineWidth(1)
	for _, col := range e.Colliders {
		ox, oy := r.toPixels(col.OffsetX, col.OffsetY)
		w, h := r.toPixels(col.Width, col.Height)
		x, y := cx+ox, cy+oy
		dc.Push()
		dc.RotateAbout(col.Angle, x, y)
		dc.DrawRectangle(x-w/2, y-h/2, w, h)
		dc.Stroke()
		dc.Pop()
	}
}

func (r *Renderer) drawUI(dc *gg.Context, f Frame) {
	const barWidth, barHeight = 160.0, 10.0
	x := 16.0
	y := float64(r.config.Height) - 40

	if f.Health != nil {
		drawBar(dc, x, y, barWidth, barHeight, f.Health.Ratio(), healthColor(f.Health.Ratio()))
	}
	if f.Temperature != nil {
		drawBar(dc, x, y+16, barWidth, barHeight, f.Temperature.Ratio(), color.RGBA{255, 149, 0, 255})
	}

	if r.fontPath == "" {
		return
	}
	if err := dc.LoadFontFace(r.fontPath, 14); err != nil {
		return
	}
	dc.SetColor(color.White)
	if f.Status != "" {
		dc.DrawString(f.Status, 16, 24)
	}
	if f.Notice != "" {
		dc.DrawStringAnchored(f.Notice, float64(r.config.Width)/2, 48, 0.5, 0)
	}
	if f.Weapon > 0 {
		dc.DrawString(fmt.Sprintf("Weapon %d/%d", f.Weapon, f.Weapons), x+barWidth+16, y+barHeight)
	}
	for i, name := range f.Players {
		dc.DrawStringAnchored(name, float64(r.config.Width)-16, 24+float64(i)*18, 1, 0)
	}
}

func drawBar(dc *gg.Context, x, y, w, h, ratio float64, fill color.Color) {
	dc.SetColor(color.RGBA{51, 51, 51, 255})
	dc.DrawRectangle(x, y, w, h)
	dc.Fill()
	dc.SetColor(fill)
	dc.DrawRectangle(x, y, w*ratio, h)
	dc.Fill()
}

func healthColor(ratio float64) color.RGBA {
	switch {
	case ratio > 0.5:
		return color.RGBA{83, 255, 69, 255}
	case ratio > 0.25:
		return color.RGBA{255, 149, 0, 255}
	default:
		return color.RGBA{255, 62, 62, 255}
	}
}

// Known sprites get fixed colors; anything else hashes to a stable one.
var palette = map[string]color.NRGBA{
	"spaceship":  {0, 212, 255, 255},
	"asteroid":   {150, 140, 130, 255},
	"projectile": {255, 230, 80, 255},
	"shield":     {80, 160, 255, 120},
}

func colorFor(id, img string) color.NRGBA {
	name := strings.TrimSuffix(path.Base(img), path.Ext(img))
	if c, ok := palette[name]; ok {
		return c
	}
	if c, ok := palette[id]; ok {
		return c
	}
	h := fnv.New32a()
	h.Write([]byte(name))
	sum := h.Sum32()
	return color.NRGBA{uint8(sum>>16) | 64, uint8(sum>>8) | 64, uint8(sum) | 64, 255}
}

func getFontPath() string {
	paths := []string{
		"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
		"/System/Library/Fonts/Helvetica.ttc",
		"C:\\Windows\\Fonts\\arial.ttf",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	matches, _ := filepath.Glob("*.ttf")
	if len(matches) > 0 {
		return matches[0]
	}
	return ""
}
