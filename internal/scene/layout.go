package scene

// Layout constants in normalized frame coordinates.
const (
	OffsetSpan = 0.35
	MinWidth   = 0.08
	WidthSpan  = 0.30
	MinHeight  = 0.15
	HeightSpan = 0.75
	BaseY      = 0.98

	// CreatureScale is the creature height as a fraction of the frame height.
	CreatureScale = 0.35
)

// Rect is an axis-aligned box in normalized frame coordinates.
type Rect struct {
	Min, Max Point
}

// Dx returns the width of r.
func (r Rect) Dx() float64 { return r.Max.X - r.Min.X }

// Dy returns the height of r.
func (r Rect) Dy() float64 { return r.Max.Y - r.Min.Y }

// TowerRect places a tower on the frame. height and width are 0..1, offset is
// -1..1 with 0 at the frame center. The base stays on the floor line.
func TowerRect(height, width, offset float64) Rect {
	cx := 0.5 + clamp(offset, -1, 1)*OffsetSpan
	w := MinWidth + WidthSpan*clamp(width, 0, 1)
	h := MinHeight + HeightSpan*clamp(height, 0, 1)
	return Rect{
		Min: Point{X: cx - w/2, Y: BaseY - h},
		Max: Point{X: cx + w/2, Y: BaseY},
	}
}

// CreatureAnchor returns the bottom-center of the creature sprite: beside the
// tower base, on whichever side has more room.
func CreatureAnchor(tower Rect) Point {
	gap := 0.02
	x := tower.Max.X + gap + CreatureScale/4
	if (tower.Min.X+tower.Max.X)/2 > 0.5 {
		x = tower.Min.X - gap - CreatureScale/4
	}
	return Point{X: clamp(x, 0, 1), Y: BaseY}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
