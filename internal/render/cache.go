package render

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fogleman/gg"
)

// PatternSweepInterval is how often the ephemeral pattern cache is emptied.
const PatternSweepInterval = 30 * time.Second

// Shape selects the outline of a cached sprite.
type Shape uint8

const (
	ShapeCircle Shape = iota
	ShapeTriangle
	ShapeSquare
	ShapeHexagon
)

func (s Shape) sides() int {
	switch s {
	case ShapeTriangle:
		return 3
	case ShapeSquare:
		return 4
	case ShapeHexagon:
		return 6
	default:
		return 0
	}
}

type spriteKey struct {
	shape  Shape
	radius int // half pixels
	color  string
}

type glowKey struct {
	radius int
	color  string
}

type cachedPattern struct {
	img     image.Image
	created time.Time
}

// Cache memoises drawables. Sprites and glows are keyed by their drawing
// parameters and live forever; patterns are short-lived and dropped
// wholesale by Cleanup.
type Cache struct {
	mu       sync.RWMutex
	sprites  map[spriteKey]image.Image
	glows    map[glowKey]image.Image
	patterns map[string]cachedPattern

	lastSweep time.Time

	hits   uint64 // atomic
	misses uint64 // atomic
}

// CacheStats is reported with the frame stats.
type CacheStats struct {
	Sprites  int    `json:"sprites"`
	Glows    int    `json:"glows"`
	Patterns int    `json:"patterns"`
	Hits     uint64 `json:"hits"`
	Misses   uint64 `json:"misses"`
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{
		sprites:   make(map[spriteKey]image.Image),
		glows:     make(map[glowKey]image.Image),
		patterns:  make(map[string]cachedPattern),
		lastSweep: time.Now(),
	}
}

func quantize(radius float64) int {
	return int(math.Round(radius * 2))
}

// Sprite returns a filled shape of the given radius and color with a soft
// white rim.
func (c *Cache) Sprite(shape Shape, radius float64, hex string) image.Image {
	key := spriteKey{shape: shape, radius: quantize(radius), color: hex}

	c.mu.RLock()
	img, ok := c.sprites[key]
	c.mu.RUnlock()
	if ok {
		atomic.AddUint64(&c.hits, 1)
		return img
	}
	atomic.AddUint64(&c.misses, 1)

	img = drawSprite(shape, float64(key.radius)/2, ParseHexColor(hex))

	c.mu.Lock()
	if existing, ok := c.sprites[key]; ok {
		img = existing
	} else {
		c.sprites[key] = img
	}
	c.mu.Unlock()
	return img
}

func drawSprite(shape Shape, radius float64, col color.RGBA) image.Image {
	size := int(math.Ceil(radius*2)) + 4
	dc := gg.NewContext(size, size)
	cx, cy := float64(size)/2, float64(size)/2

	if n := shape.sides(); n > 0 {
		dc.DrawRegularPolygon(n, cx, cy, radius, -math.Pi/2)
	} else {
		dc.DrawCircle(cx, cy, radius)
	}
	dc.SetColor(col)
	dc.FillPreserve()
	dc.SetRGBA(1, 1, 1, 0.6)
	dc.SetLineWidth(1.5)
	dc.Stroke()

	return dc.Image()
}

// Glow returns a radial gradient fading from color to transparent.
func (c *Cache) Glow(radius float64, hex string) image.Image {
	key := glowKey{radius: quantize(radius), color: hex}

	c.mu.RLock()
	img, ok := c.glows[key]
	c.mu.RUnlock()
	if ok {
		atomic.AddUint64(&c.hits, 1)
		return img
	}
	atomic.AddUint64(&c.misses, 1)

	r := float64(key.radius) / 2
	size := int(math.Ceil(r*2)) + 2
	dc := gg.NewContext(size, size)
	cx, cy := float64(size)/2, float64(size)/2

	col := ParseHexColor(hex)
	inner := color.NRGBA{col.R, col.G, col.B, 160}
	outer := color.NRGBA{col.R, col.G, col.B, 0}
	grad := gg.NewRadialGradient(cx, cy, 0, cx, cy, r)
	grad.AddColorStop(0, inner)
	grad.AddColorStop(1, outer)
	dc.SetFillStyle(grad)
	dc.DrawCircle(cx, cy, r)
	dc.Fill()
	img = dc.Image()

	c.mu.Lock()
	c.glows[key] = img
	c.mu.Unlock()
	return img
}

// Pattern returns the image stored under key, building it with draw on a
// w x h context if missing.
func (c *Cache) Pattern(key string, w, h int, draw func(dc *gg.Context)) image.Image {
	c.mu.RLock()
	p, ok := c.patterns[key]
	c.mu.RUnlock()
	if ok {
		atomic.AddUint64(&c.hits, 1)
		return p.img
	}
	atomic.AddUint64(&c.misses, 1)

	dc := gg.NewContext(w, h)
	draw(dc)
	img := dc.Image()

	c.mu.Lock()
	c.patterns[key] = cachedPattern{img: img, created: time.Now()}
	c.mu.Unlock()
	return img
}

// Cleanup empties the pattern cache once PatternSweepInterval has passed
// since the last sweep. It returns the number of patterns removed.
func (c *Cache) Cleanup(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if now.Sub(c.lastSweep) < PatternSweepInterval {
		return 0
	}
	c.lastSweep = now

	n := len(c.patterns)
	for k := range c.patterns {
		delete(c.patterns, k)
	}
	return n
}

// Stats returns the cache sizes and hit counters.
func (c *Cache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return CacheStats{
		Sprites:  len(c.sprites),
		Glows:    len(c.glows),
		Patterns: len(c.patterns),
		Hits:     atomic.LoadUint64(&c.hits),
		Misses:   atomic.LoadUint64(&c.misses),
	}
}

// ParseHexColor parses "#rrggbb". Anything else is white.
func ParseHexColor(hex string) color.RGBA {
	if len(hex) != 7 || hex[0] != '#' {
		return color.RGBA{255, 255, 255, 255}
	}

	var r, g, b uint8
	if _, err := fmt.Sscanf(hex[1:], "%02x%02x%02x", &r, &g, &b); err != nil {
		return color.RGBA{255, 255, 255, 255}
	}
	return color.RGBA{r, g, b, 255}
}
