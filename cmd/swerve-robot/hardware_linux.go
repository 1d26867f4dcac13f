//go:build linux

package main

import (
	"context"

	"go.uber.org/multierr"

	"go.viam.com/swerve/components/gyro/cangyro"
	"go.viam.com/swerve/components/swervemodule/canmodule"
	"go.viam.com/swerve/config"
	"go.viam.com/swerve/logging"
)

// openHardware dials the configured SocketCAN interface and binds the modules and the IMU to it.
func openHardware(ctx context.Context, cfg *config.Config, logger logging.Logger) (*hardware, error) {
	moduleCfgs, err := cfg.ModuleConfigs("modules")
	if err != nil {
		return nil, err
	}

	bus, err := canmodule.Dial(ctx, cfg.CAN.Interface, logger.Sublogger("can"))
	if err != nil {
		return nil, err
	}
	hw := &hardware{closers: []func() error{bus.Close}}

	if hw.modules, err = newModules(bus, moduleCfgs, logger); err != nil {
		return nil, multierr.Combine(err, hw.Close())
	}
	for _, m := range hw.modules {
		bus.AddHandler(m)
	}

	imu, err := cangyro.Open(cfg.CAN.Interface, cfg.CAN.GyroID, logger.Sublogger("gyro"))
	if err != nil {
		return nil, multierr.Combine(err, hw.Close())
	}
	hw.gyro = imu
	hw.closers = append(hw.closers, imu.Close)

	logger.Infow("CAN devices opened", "interface", cfg.CAN.Interface, "gyro_id", cfg.CAN.GyroID)
	return hw, nil
}
