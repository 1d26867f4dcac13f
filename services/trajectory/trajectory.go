// Package trajectory supplies autonomous chassis commands.
package trajectory

import (
	"context"
	"time"

	"go.viam.com/swerve/kinematics"
	"go.viam.com/swerve/spatialmath"
)

// Follower produces the robot-relative command for the current cycle from the estimated pose
// and the measured robot-relative velocity. It reports false once the trajectory is finished.
type Follower interface {
	Next(
		ctx context.Context,
		now time.Time,
		pose spatialmath.Pose2D,
		velocity kinematics.ChassisSpeeds,
	) (kinematics.ChassisSpeeds, bool)
}
