// Package render draws game snapshots with gg. It is used for the debug
// frame endpoint; the browser client does its own drawing from the
// websocket snapshots.
package render

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"sync"
	"time"

	"cyber-defense/internal/game"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"
)

var (
	backgroundColor = color.RGBA{10, 10, 26, 255}
	gridColor       = color.RGBA{30, 30, 60, 255}
	baseColor       = color.RGBA{0, 200, 255, 255}
)

// FrameRenderer draws a full frame from a snapshot. One context is reused
// across frames, so calls are serialized.
type FrameRenderer struct {
	width, height int
	cache         *Cache

	mu sync.Mutex
	dc *gg.Context

	frames   uint64
	lastTook time.Duration
}

// NewFrameRenderer creates a renderer for a width x height field.
func NewFrameRenderer(width, height int, cache *Cache) *FrameRenderer {
	if cache == nil {
		cache = NewCache()
	}
	dc := gg.NewContext(width, height)
	dc.SetFontFace(basicfont.Face7x13)

	return &FrameRenderer{
		width:  width,
		height: height,
		cache:  cache,
		dc:     dc,
	}
}

// Cache returns the renderer's drawable cache.
func (r *FrameRenderer) Cache() *Cache {
	return r.cache
}

// LastDuration returns how long the previous frame took to draw.
func (r *FrameRenderer) LastDuration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastTook
}

// RenderPNG draws snap and writes it to w as a PNG.
func (r *FrameRenderer) RenderPNG(w io.Writer, snap *game.GameSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.draw(snap)
	if err := r.dc.EncodePNG(w); err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	return nil
}

// Render draws snap and returns a copy of the frame.
func (r *FrameRenderer) Render(snap *game.GameSnapshot) image.Image {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.draw(snap)
	src := r.dc.Image().(*image.RGBA)
	out := image.NewRGBA(src.Rect)
	copy(out.Pix, src.Pix)
	return out
}

func (r *FrameRenderer) draw(snap *game.GameSnapshot) {
	start := time.Now()
	dc := r.dc
	r.cache.Cleanup(start)

	dc.Identity()
	dc.DrawImage(r.background(), 0, 0)

	dc.Push()
	if snap.Shake.Intensity > 0 {
		dc.Translate(snap.Shake.OffsetX, snap.Shake.OffsetY)
	}

	r.drawBase(dc, snap.Base)
	r.drawEnemies(dc, snap.Enemies)
	r.drawProjectiles(dc, snap.Projectiles)
	r.drawParticles(dc, snap.Particles)
	r.drawFlashes(dc, snap.Flashes)

	dc.Pop()

	r.drawHUD(dc, snap)

	r.frames++
	r.lastTook = time.Since(start)
}

// background is the static grid, kept in the pattern cache.
func (r *FrameRenderer) background() image.Image {
	key := fmt.Sprintf("grid:%dx%d", r.width, r.height)
	return r.cache.Pattern(key, r.width, r.height, func(dc *gg.Context) {
		dc.SetColor(backgroundColor)
		dc.Clear()

		dc.SetColor(gridColor)
		dc.SetLineWidth(1)
		const gridSize = 50.0
		for x := 0.0; x < float64(r.width); x += gridSize {
			dc.DrawLine(x, 0, x, float64(r.height))
			dc.Stroke()
		}
		for y := 0.0; y < float64(r.height); y += gridSize {
			dc.DrawLine(0, y, float64(r.width), y)
			dc.Stroke()
		}
	})
}

func (r *FrameRenderer) drawBase(dc *gg.Context, b game.BaseSnapshot) {
	// Range ring
	dc.SetRGBA(0, 0.8, 1, 0.15)
	dc.SetLineWidth(1)
	dc.DrawCircle(b.X, b.Y, b.Range)
	dc.Stroke()

	dc.DrawImageAnchored(r.cache.Glow(b.Radius*1.6, "#00ccff"), int(b.X), int(b.Y), 0.5, 0.5)

	dc.SetColor(baseColor)
	dc.SetLineWidth(3)
	dc.DrawRegularPolygon(6, b.X, b.Y, b.Radius, 0)
	dc.Stroke()

	// Lives arc
	if b.MaxLives > 0 {
		frac := float64(b.Lives) / float64(b.MaxLives)
		dc.SetRGBA(1-frac, frac, 0.3, 0.9)
		dc.SetLineWidth(4)
		dc.DrawArc(b.X, b.Y, b.Radius+6, -math.Pi/2, -math.Pi/2+frac*2*math.Pi)
		dc.Stroke()
	}
}

func enemyShape(t game.EnemyType) Shape {
	switch t {
	case game.EnemyFast:
		return ShapeTriangle
	case game.EnemyTank:
		return ShapeSquare
	case game.EnemyBoss:
		return ShapeHexagon
	default:
		return ShapeCircle
	}
}

func (r *FrameRenderer) drawEnemies(dc *gg.Context, enemies []game.EnemySnapshot) {
	for _, e := range enemies {
		if e.Type == game.EnemyBoss {
			dc.DrawImageAnchored(r.cache.Glow(e.Size*2, e.Color), int(e.X), int(e.Y), 0.5, 0.5)
		}
		dc.DrawImageAnchored(r.cache.Sprite(enemyShape(e.Type), e.Size, e.Color), int(e.X), int(e.Y), 0.5, 0.5)

		if e.Health >= e.MaxHealth || e.MaxHealth <= 0 {
			continue
		}
		// Health bar
		w := e.Size * 2
		x := e.X - e.Size
		y := e.Y - e.Size - 6
		dc.SetRGBA(0, 0, 0, 0.6)
		dc.DrawRectangle(x, y, w, 3)
		dc.Fill()
		dc.SetRGBA(1, 0.2, 0.2, 1)
		dc.DrawRectangle(x, y, w*e.Health/e.MaxHealth, 3)
		dc.Fill()
	}
}

func (r *FrameRenderer) drawProjectiles(dc *gg.Context, projectiles []game.ProjectileSnapshot) {
	for _, p := range projectiles {
		c := ParseHexColor(p.Color)

		// Trail, oldest first, fading in toward the head
		for i := 1; i < p.TrailCount; i++ {
			a, b := p.Trail[i-1], p.Trail[i]
			c.A = uint8(40 + 120*i/p.TrailCount)
			dc.SetColor(c)
			dc.SetLineWidth(p.Size * float64(i) / float64(p.TrailCount))
			dc.DrawLine(a.X, a.Y, b.X, b.Y)
			dc.Stroke()
		}

		dc.Push()
		dc.Translate(p.X, p.Y)
		dc.Rotate(p.Rotation)
		c.A = 255
		dc.SetColor(c)
		dc.DrawEllipse(0, 0, p.Size*2, p.Size)
		dc.Fill()
		dc.Pop()
	}
}

func (r *FrameRenderer) drawParticles(dc *gg.Context, particles []game.ParticleSnapshot) {
	for _, p := range particles {
		if p.Glow {
			dc.DrawImageAnchored(r.cache.Glow(p.Size*3, p.Color), int(p.X), int(p.Y), 0.5, 0.5)
		}
		c := ParseHexColor(p.Color)
		c.A = uint8(p.Alpha * 255)
		dc.SetColor(c)
		dc.DrawCircle(p.X, p.Y, p.Size)
		dc.Fill()
	}
}

func (r *FrameRenderer) drawFlashes(dc *gg.Context, flashes []game.FlashSnapshot) {
	for _, fl := range flashes {
		c := ParseHexColor(fl.Color)
		c.A = uint8(fl.Intensity * 200)
		dc.SetColor(c)
		dc.DrawCircle(fl.X, fl.Y, fl.Radius)
		dc.Fill()
	}
}

func (r *FrameRenderer) drawHUD(dc *gg.Context, snap *game.GameSnapshot) {
	dc.SetRGBA(0, 0, 0, 0.5)
	dc.DrawRoundedRectangle(8, 8, 220, 74, 6)
	dc.Fill()

	dc.SetColor(color.White)
	dc.DrawString(fmt.Sprintf("WAVE %d  %s", snap.Wave, snap.WaveName), 16, 24)
	dc.DrawString(fmt.Sprintf("LIVES %d/%d  GOLD %d", snap.Base.Lives, snap.Base.MaxLives, snap.Gold), 16, 40)
	dc.DrawString(fmt.Sprintf("SCORE %d  KILLS %d  LV %d", snap.Score, snap.Kills, snap.Level), 16, 56)
	if snap.Streak > 1 {
		dc.SetRGBA(1, 0.8, 0, 1)
		dc.DrawString(fmt.Sprintf("STREAK x%d", snap.Streak), 16, 72)
	}

	if snap.GameOver {
		dc.SetRGBA(0, 0, 0, 0.6)
		dc.DrawRectangle(0, float64(r.height)/2-30, float64(r.width), 60)
		dc.Fill()
		dc.SetRGBA(1, 0.2, 0.3, 1)
		dc.DrawStringAnchored("GAME OVER", float64(r.width)/2, float64(r.height)/2, 0.5, 0.5)
	}
}
