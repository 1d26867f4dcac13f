// Package gyro defines the heading sensor used by the drive.
package gyro

import (
	"context"
)

// Gyro reports the robot's yaw.
type Gyro interface {
	// Heading returns the yaw in degrees, counter-clockwise positive, in (-180, 180].
	Heading(ctx context.Context) (float64, error)

	// Reset makes the current yaw read as zero.
	Reset(ctx context.Context) error
}
