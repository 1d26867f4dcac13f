package kinematics

import (
	"fmt"
	"math"

	"github.com/pkg/errors"

	"go.viam.com/swerve/utils"
)

// ModuleIndex identifies one of the four swerve modules.
type ModuleIndex int

// The four modules. Per-module collections are arrays indexed by these values.
const (
	FrontLeft ModuleIndex = iota
	FrontRight
	BackLeft
	BackRight
)

// NumModules is the number of modules on the base.
const NumModules = 4

// ModuleIndices lists every module in index order.
var ModuleIndices = [NumModules]ModuleIndex{FrontLeft, FrontRight, BackLeft, BackRight}

var moduleNames = [NumModules]string{"front_left", "front_right", "back_left", "back_right"}

func (i ModuleIndex) String() string {
	if i < 0 || int(i) >= NumModules {
		return fmt.Sprintf("module(%d)", int(i))
	}
	return moduleNames[i]
}

// ParseModuleIndex returns the module with the given configuration name.
func ParseModuleIndex(name string) (ModuleIndex, error) {
	for i, n := range moduleNames {
		if n == name {
			return ModuleIndex(i), nil
		}
	}
	return 0, errors.Errorf("unknown module %q", name)
}

// ModuleState is the target or measured state of one module: wheel speed in m/s and
// steering angle in radians.
type ModuleState struct {
	Speed float64
	Angle float64
}

// ModulePosition is the distance a wheel has rolled, in meters, and its steering angle.
type ModulePosition struct {
	Distance float64
	Angle    float64
}

// Optimize returns a state equivalent to desired that requires at most a quarter turn of
// steering from currentAngle, reversing the wheel when that is shorter. The returned angle is
// in [0, 2π).
func Optimize(desired ModuleState, currentAngle float64) ModuleState {
	delta := utils.NormalizeAngle(desired.Angle - currentAngle)
	if math.Abs(delta) > math.Pi/2 {
		return ModuleState{Speed: -desired.Speed, Angle: utils.WrapAngle(desired.Angle + math.Pi)}
	}
	return ModuleState{Speed: desired.Speed, Angle: utils.WrapAngle(desired.Angle)}
}

// DesaturateWheelSpeeds scales every module speed by the same factor so that none exceeds
// maxSpeed in magnitude. States already within the limit are returned unchanged.
func DesaturateWheelSpeeds(states [NumModules]ModuleState, maxSpeed float64) [NumModules]ModuleState {
	realMax := 0.0
	for _, s := range states {
		realMax = math.Max(realMax, math.Abs(s.Speed))
	}
	if realMax <= maxSpeed || realMax == 0 {
		return states
	}
	scale := maxSpeed / realMax
	for i := range states {
		states[i].Speed *= scale
	}
	return states
}
