package mapper

import "github.com/ayusman/handtower/internal/body"

// Hands is the set of raised hands seen in one frame. It is one of
// NoHands, OneHand or TwoHands.
type Hands interface {
	Count() int
	hands()
}

// NoHands means neither hand is above the presence threshold.
type NoHands struct{}

// OneHand carries the single raised hand.
type OneHand struct {
	Side string // "right" or "left"
	Y    float64
	X    float64
}

// TwoHands carries both raised hands.
type TwoHands struct {
	RightY, LeftY float64
	RightX, LeftX float64
}

func (NoHands) Count() int  { return 0 }
func (OneHand) Count() int  { return 1 }
func (TwoHands) Count() int { return 2 }

func (NoHands) hands()  {}
func (OneHand) hands()  {}
func (TwoHands) hands() {}

// ClassifyHands builds the hand variant for st using the given presence threshold.
// A hand is present when its height is strictly above the threshold.
func ClassifyHands(st body.State, threshold float64) Hands {
	rightY := st.Get(body.RightHandY)
	leftY := st.Get(body.LeftHandY)
	right := rightY > threshold
	left := leftY > threshold

	switch {
	case right && left:
		return TwoHands{
			RightY: rightY,
			LeftY:  leftY,
			RightX: st.Get(body.RightHandX),
			LeftX:  st.Get(body.LeftHandX),
		}
	case right:
		return OneHand{Side: SideRight, Y: rightY, X: st.Get(body.RightHandX)}
	case left:
		return OneHand{Side: SideLeft, Y: leftY, X: st.Get(body.LeftHandX)}
	default:
		return NoHands{}
	}
}
