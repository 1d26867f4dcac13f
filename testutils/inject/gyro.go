package inject

import (
	"context"

	"go.viam.com/swerve/components/gyro"
)

// Gyro is an injected gyro.Gyro.
type Gyro struct {
	gyro.Gyro
	HeadingFunc func(ctx context.Context) (float64, error)
	ResetFunc   func(ctx context.Context) error
}

// Heading calls the injected function or the real version.
func (g *Gyro) Heading(ctx context.Context) (float64, error) {
	if g.HeadingFunc == nil {
		return g.Gyro.Heading(ctx)
	}
	return g.HeadingFunc(ctx)
}

// Reset calls the injected function or the real version.
func (g *Gyro) Reset(ctx context.Context) error {
	if g.ResetFunc == nil {
		return g.Gyro.Reset(ctx)
	}
	return g.ResetFunc(ctx)
}
