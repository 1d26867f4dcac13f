//go:build !linux

package main

import (
	"context"
	"runtime"

	"github.com/pkg/errors"

	"go.viam.com/swerve/config"
	"go.viam.com/swerve/logging"
)

func openHardware(ctx context.Context, cfg *config.Config, logger logging.Logger) (*hardware, error) {
	return nil, errors.Errorf("SocketCAN is not available on %s", runtime.GOOS)
}
