// Package poseestimator tracks the robot's pose on the field from wheel odometry and the gyro.
package poseestimator

import (
	"sync"
	"time"

	"go.viam.com/swerve/kinematics"
	"go.viam.com/swerve/spatialmath"
	"go.viam.com/swerve/utils"
)

// Estimator fuses module positions and heading into a field pose. Headings are in radians.
type Estimator interface {
	// Update integrates the motion since the previous update and returns the new pose.
	Update(ts time.Time, heading float64, positions [kinematics.NumModules]kinematics.ModulePosition) spatialmath.Pose2D

	// Reset places the robot at pose; the heading and positions given become the new reference.
	Reset(heading float64, positions [kinematics.NumModules]kinematics.ModulePosition, pose spatialmath.Pose2D)

	// Pose returns the latest estimate.
	Pose() spatialmath.Pose2D
}

// Odometry is an Estimator that trusts the wheels for translation and the gyro for rotation.
type Odometry struct {
	kin *kinematics.SwerveKinematics

	mu            sync.Mutex
	pose          spatialmath.Pose2D
	headingOffset float64
	prevHeading   float64
	prevPositions [kinematics.NumModules]kinematics.ModulePosition
	lastUpdate    time.Time
}

// NewOdometry returns an estimator at the origin with the given starting readings.
func NewOdometry(
	kin *kinematics.SwerveKinematics,
	heading float64,
	positions [kinematics.NumModules]kinematics.ModulePosition,
) *Odometry {
	o := &Odometry{kin: kin}
	o.Reset(heading, positions, spatialmath.Pose2D{})
	return o
}

// Reset implements Estimator.
func (o *Odometry) Reset(
	heading float64,
	positions [kinematics.NumModules]kinematics.ModulePosition,
	pose spatialmath.Pose2D,
) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pose = pose
	o.headingOffset = pose.Theta - heading
	o.prevHeading = utils.NormalizeAngle(heading + o.headingOffset)
	o.prevPositions = positions
}

// Update implements Estimator. If the module positions cannot be resolved into a motion the
// pose only picks up the heading change.
func (o *Odometry) Update(
	ts time.Time,
	heading float64,
	positions [kinematics.NumModules]kinematics.ModulePosition,
) spatialmath.Pose2D {
	o.mu.Lock()
	defer o.mu.Unlock()

	angle := utils.NormalizeAngle(heading + o.headingOffset)
	twist, err := o.kin.ToTwist(o.prevPositions, positions)
	if err != nil {
		twist = spatialmath.Twist2D{}
	}
	// the gyro is a better yaw source than wheel slip
	twist.Dtheta = utils.NormalizeAngle(angle - o.prevHeading)

	next := o.pose.Exp(twist)
	next.Theta = angle

	o.pose = next
	o.prevHeading = angle
	o.prevPositions = positions
	o.lastUpdate = ts
	return next
}

// Pose implements Estimator.
func (o *Odometry) Pose() spatialmath.Pose2D {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pose
}

// LastUpdate returns the timestamp of the latest update.
func (o *Odometry) LastUpdate() time.Time {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastUpdate
}
