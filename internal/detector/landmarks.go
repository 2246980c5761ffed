// Package detector provides hand and pose landmark detection for the tower overlay.
package detector

import "math"

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// Pose landmark indices used by the tracker (MediaPipe pose, 33 points).
const (
	PoseNose       = 0
	PoseLeftWrist  = 15
	PoseRightWrist = 16
	NumPosePoints  = 33
)

// Handedness labels reported by the detector.
const (
	HandLeft  = "Left"
	HandRight = "Right"
)

// FingerTips lists the five fingertip landmark indices.
var FingerTips = [5]int{ThumbTip, IndexTip, MiddleTip, RingTip, PinkyTip}

// Point3D represents a 3D point in space with x, y, z coordinates.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// HandLandmarks represents the 21 hand landmarks detected by MediaPipe.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"` // "Left" or "Right"
	Score      float64               `json:"score"`
}

// PosePoint is a pose landmark with its visibility score.
type PosePoint struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Visibility float64 `json:"visibility"`
}

// PoseLandmarks holds the body pose landmarks.
type PoseLandmarks struct {
	Points [NumPosePoints]PosePoint `json:"points"`
}

// Visible returns the landmark at index i if its visibility is at least minVisibility.
func (p *PoseLandmarks) Visible(i int, minVisibility float64) (PosePoint, bool) {
	if p == nil || i < 0 || i >= NumPosePoints {
		return PosePoint{}, false
	}
	pt := p.Points[i]
	return pt, pt.Visibility >= minVisibility
}

// Distance3D calculates the Euclidean distance between two 3D points.
func Distance3D(a, b Point3D) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	dz := a.Z - b.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Normalize normalizes the hand landmarks relative to wrist position and hand size.
// The normalized landmarks have the wrist at origin (0,0,0) and are scaled
// so that the distance from wrist to middle finger MCP is 1.0.
// Returns a new HandLandmarks instance with normalized points.
func (h *HandLandmarks) Normalize() *HandLandmarks {
	if h == nil {
		return nil
	}

	normalized := &HandLandmarks{
		Handedness: h.Handedness,
		Score:      h.Score,
	}

	wrist := h.Points[Wrist]

	for i := 0; i < NumLandmarks; i++ {
		normalized.Points[i] = Point3D{
			X: h.Points[i].X - wrist.X,
			Y: h.Points[i].Y - wrist.Y,
			Z: h.Points[i].Z - wrist.Z,
		}
	}

	scale := Distance3D(Point3D{}, normalized.Points[MiddleMCP])

	// Avoid division by zero
	if scale < 1e-10 {
		return normalized
	}

	for i := 0; i < NumLandmarks; i++ {
		normalized.Points[i].X /= scale
		normalized.Points[i].Y /= scale
		normalized.Points[i].Z /= scale
	}

	return normalized
}

// Spread returns the mean fingertip-to-wrist distance of the normalized hand,
// in units of the wrist to middle MCP distance. An open palm is around 3,
// a fist around 1. Returns 0 for a degenerate hand.
func (h *HandLandmarks) Spread() float64 {
	n := h.Normalize()
	if n == nil {
		return 0
	}
	if Distance3D(Point3D{}, n.Points[MiddleMCP]) < 1e-10 {
		return 0
	}

	var sum float64
	for _, tip := range FingerTips {
		sum += Distance3D(Point3D{}, n.Points[tip])
	}
	return sum / float64(len(FingerTips))
}
