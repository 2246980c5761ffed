// Package render draws the scene onto camera frames with gocv.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/ayusman/handtower/internal/mapper"
	"github.com/ayusman/handtower/internal/scene"
	"gocv.io/x/gocv"
)

// ErrSpriteNotFound is returned when the creature sprite cannot be read.
var ErrSpriteNotFound = errors.New("sprite not found")

// Colors used by the overlay (BGR order is handled by gocv).
var (
	TowerColor    = color.RGBA{R: 90, G: 170, B: 255, A: 0}
	OutlineColor  = color.RGBA{R: 230, G: 240, B: 255, A: 0}
	TrailColor    = color.RGBA{R: 255, G: 220, B: 120, A: 0}
	ParticleColor = color.RGBA{R: 255, G: 150, B: 60, A: 0}
	HUDColor      = color.RGBA{R: 255, G: 255, B: 255, A: 0}
)

// Options controls optional overlay elements.
type Options struct {
	// ShowHUD draws the mode and grip readout in the top-left corner.
	ShowHUD bool
	// TowerOpacity is how much the tower covers the video behind it (0-1).
	TowerOpacity float64
}

// DefaultOptions returns the standard overlay options.
func DefaultOptions() Options {
	return Options{
		ShowHUD:      true,
		TowerOpacity: 0.85,
	}
}

// Renderer draws scene state onto frames. It keeps the creature sprite and a
// scaled copy of it, so Close must be called when done.
type Renderer struct {
	opts Options

	sprite       gocv.Mat
	scaled       gocv.Mat
	scaledHeight int
}

// New creates a Renderer without a sprite.
func New(opts Options) *Renderer {
	return &Renderer{
		opts:   opts,
		sprite: gocv.NewMat(),
		scaled: gocv.NewMat(),
	}
}

// LoadSprite reads the creature image from path. PNG alpha is kept.
// On failure the renderer keeps drawing everything except the creature.
func (r *Renderer) LoadSprite(path string) error {
	img := gocv.IMRead(path, gocv.IMReadUnchanged)
	if img.Empty() {
		img.Close()
		return fmt.Errorf("%w: %s", ErrSpriteNotFound, path)
	}
	r.SetSprite(img)
	return nil
}

// SetSprite replaces the creature image. The renderer takes ownership of img.
func (r *Renderer) SetSprite(img gocv.Mat) {
	r.sprite.Close()
	r.sprite = img
	r.scaledHeight = 0
}

// HasSprite reports whether a creature image is loaded.
func (r *Renderer) HasSprite() bool {
	return !r.sprite.Empty()
}

// Close releases the sprite images.
func (r *Renderer) Close() error {
	r.sprite.Close()
	r.scaled.Close()
	return nil
}

// Render draws s onto frame in place. frame must be an 8-bit BGR image.
func (r *Renderer) Render(frame *gocv.Mat, s *scene.Scene) {
	if frame == nil || frame.Empty() || frame.Type() != gocv.MatTypeCV8UC3 {
		return
	}
	size := image.Pt(frame.Cols(), frame.Rows())

	r.drawTrail(frame, size, s.Trail())

	if s.TowerVisible() {
		rect := toPixels(s.TowerRect(), size).Intersect(image.Rect(0, 0, size.X, size.Y))
		if !rect.Empty() {
			r.shadeTower(frame, rect)
			gocv.Rectangle(frame, rect, OutlineColor, 2)
		}
	}

	for _, p := range s.Particles() {
		radius := 2 + int(math.Round(3*p.Life))
		gocv.Circle(frame, toPoint(scene.Point{X: p.X, Y: p.Y}, size), radius, ParticleColor, -1)
	}

	if alpha := s.CreatureAlpha(); alpha > 0.01 && r.HasSprite() {
		r.drawCreature(frame, size, scene.CreatureAnchor(s.TowerRect()), alpha)
	}

	if r.opts.ShowHUD {
		drawHUD(frame, s)
	}
}

func (r *Renderer) drawTrail(frame *gocv.Mat, size image.Point, trail []scene.Point) {
	n := len(trail)
	for i := 1; i < n; i++ {
		thickness := 1 + 5*i/n
		gocv.Line(frame, toPoint(trail[i-1], size), toPoint(trail[i], size), TrailColor, thickness)
	}
}

// shadeTower fills rect with the tower color, darker toward the sides and
// the base, blended over the frame.
func (r *Renderer) shadeTower(frame *gocv.Mat, rect image.Rectangle) {
	data, err := frame.DataPtrUint8()
	if err != nil {
		return
	}
	step := frame.Step()
	opacity := clamp01(r.opts.TowerOpacity)

	cx := float64(rect.Min.X+rect.Max.X) / 2
	half := math.Max(float64(rect.Dx())/2, 1)
	height := math.Max(float64(rect.Dy()), 1)
	base := [3]float64{float64(TowerColor.B), float64(TowerColor.G), float64(TowerColor.R)}

	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		vertical := 1 - 0.35*float64(y-rect.Min.Y)/height
		row := y * step
		for x := rect.Min.X; x < rect.Max.X; x++ {
			horizontal := 1 - 0.5*math.Abs(float64(x)+0.5-cx)/half
			shade := vertical * horizontal
			i := row + x*3
			for c := 0; c < 3; c++ {
				v := float64(data[i+c])*(1-opacity) + base[c]*shade*opacity
				data[i+c] = uint8(math.Min(255, v))
			}
		}
	}
}

// drawCreature composites the sprite with its bottom-center at anchor.
func (r *Renderer) drawCreature(frame *gocv.Mat, size image.Point, anchor scene.Point, alpha float64) {
	targetH := int(float64(size.Y) * scene.CreatureScale)
	if targetH < 1 {
		return
	}
	if r.scaledHeight != targetH {
		targetW := max(1, r.sprite.Cols()*targetH/r.sprite.Rows())
		gocv.Resize(r.sprite, &r.scaled, image.Pt(targetW, targetH), 0, 0, gocv.InterpolationLinear)
		r.scaledHeight = targetH
	}

	channels := r.scaled.Channels()
	if channels != 3 && channels != 4 {
		return
	}
	src, err := r.scaled.DataPtrUint8()
	if err != nil {
		return
	}
	dst, err := frame.DataPtrUint8()
	if err != nil {
		return
	}
	srcStep, dstStep := r.scaled.Step(), frame.Step()

	bottom := toPoint(anchor, size)
	origin := image.Pt(bottom.X-r.scaled.Cols()/2, bottom.Y-r.scaled.Rows())
	area := image.Rect(origin.X, origin.Y, origin.X+r.scaled.Cols(), origin.Y+r.scaled.Rows()).
		Intersect(image.Rect(0, 0, size.X, size.Y))

	for y := area.Min.Y; y < area.Max.Y; y++ {
		sy := y - origin.Y
		for x := area.Min.X; x < area.Max.X; x++ {
			sx := x - origin.X
			si := sy*srcStep + sx*channels
			a := alpha
			if channels == 4 {
				a *= float64(src[si+3]) / 255
			}
			if a <= 0 {
				continue
			}
			di := y*dstStep + x*3
			for c := 0; c < 3; c++ {
				dst[di+c] = uint8(float64(dst[di+c])*(1-a) + float64(src[si+c])*a)
			}
		}
	}
}

func drawHUD(frame *gocv.Mat, s *scene.Scene) {
	status := "no hands"
	switch {
	case s.Breaking():
		status = "break!"
	case s.Active():
		status = string(s.Mode())
	}
	gocv.PutText(frame, status, image.Pt(10, 24), gocv.FontHersheySimplex, 0.6, HUDColor, 2)

	right, okR := s.Grip(mapper.SideRight)
	left, okL := s.Grip(mapper.SideLeft)
	if okR && okL {
		text := fmt.Sprintf("grip R %.2f  L %.2f", right, left)
		gocv.PutText(frame, text, image.Pt(10, 48), gocv.FontHersheySimplex, 0.5, HUDColor, 1)
	}
}

// toPixels converts a normalized rectangle to frame pixels.
func toPixels(r scene.Rect, size image.Point) image.Rectangle {
	return image.Rectangle{Min: toPoint(r.Min, size), Max: toPoint(r.Max, size)}
}

func toPoint(p scene.Point, size image.Point) image.Point {
	return image.Pt(int(math.Round(p.X*float64(size.X))), int(math.Round(p.Y*float64(size.Y))))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
