package input

import (
	"math"
	"testing"

	"go.viam.com/test"
)

func TestAxesSanitized(t *testing.T) {
	raw := Axes{LeftX: math.NaN(), LeftY: 1.5, RightX: -2, RightY: math.Inf(1), RightTwist: 0.25}
	test.That(t, raw.Sanitized(), test.ShouldResemble, Axes{LeftY: 1, RightX: -1, RightTwist: 0.25})
}
