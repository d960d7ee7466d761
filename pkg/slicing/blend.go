package slicing

import "math"

// MinWeight is the smallest blend weight that still counts as a hit.
// Weights below it are treated as "not included".
const MinWeight = 0.01

// Blender computes the edge-softening weight used by the linear strategy.
type Blender struct {
	// Softness is the width of the feathered transition, measured in the
	// same half-band units as the position passed to Weight. Values below
	// MinWeight disable feathering.
	Softness float64
}

// Weight maps a signed distance past a band's nominal boundary to a weight
// in [0, 1].
//
// With feathering disabled the result is a step: 1 for pos < 1, 0 otherwise.
// Otherwise a linear ramp centred on |pos| == 1 is clamped to [0, 1] and then
// corrected so that two complementary weights keep a constant combined
// luminance (s / sqrt(s² + (1-s)²)). The three steps must run in this order.
func (b Blender) Weight(pos float64) float64 {
	if b.Softness < MinWeight {
		if pos < 1 {
			return 1
		}
		return 0
	}

	s := 0.5 - (math.Abs(pos)-1)/(2*b.Softness)

	if s < 0 {
		s = 0
	} else if s > 1 {
		s = 1
	}

	// rounding in the square root can push the ratio an ulp past 1
	return math.Min(1, s/math.Sqrt(s*s+(1-s)*(1-s)))
}
