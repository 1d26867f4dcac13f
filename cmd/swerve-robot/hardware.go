package main

import (
	"context"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"go.viam.com/swerve/components/base/swerve"
	"go.viam.com/swerve/components/gyro"
	"go.viam.com/swerve/components/swervemodule/canmodule"
	"go.viam.com/swerve/config"
	"go.viam.com/swerve/kinematics"
	"go.viam.com/swerve/logging"
	"go.viam.com/swerve/services/match"
)

const telemetryPollInterval = 20 * time.Millisecond

// listener is anything that can tell whether its device has reported in.
type listener interface {
	Heard() bool
}

// hardware is the set of CAN devices the drive runs on.
type hardware struct {
	modules [kinematics.NumModules]*canmodule.Module
	gyro    gyro.Gyro
	closers []func() error
}

// newModules addresses one CAN module per configured drive and turn controller pair.
func newModules(
	tx canmodule.Transmitter,
	cfgs [kinematics.NumModules]config.ModuleConfig,
	logger logging.Logger,
) ([kinematics.NumModules]*canmodule.Module, error) {
	var modules [kinematics.NumModules]*canmodule.Module
	for _, idx := range kinematics.ModuleIndices {
		m, err := canmodule.New(tx, cfgs[idx].DriveID, cfgs[idx].TurnID, logger.Sublogger(idx.String()))
		if err != nil {
			return modules, errors.Wrapf(err, "module %s", idx)
		}
		modules[idx] = m
	}
	return modules, nil
}

// dependencies hands the devices to the drivetrain.
func (hw *hardware) dependencies(state match.State, clk clock.Clock) swerve.Dependencies {
	deps := swerve.Dependencies{Gyro: hw.gyro, Match: state, Clock: clk}
	for i, m := range hw.modules {
		deps.Modules[i] = m
	}
	return deps
}

// waitForTelemetry blocks until the gyro has a reading and every module has reported, so the
// drivetrain starts from real state.
func (hw *hardware) waitForTelemetry(ctx context.Context, timeout time.Duration) error {
	listeners := map[string]listener{}
	for _, idx := range kinematics.ModuleIndices {
		listeners[idx.String()] = hw.modules[idx]
	}
	return waitForDevices(ctx, listeners, hw.gyro, timeout)
}

func waitForDevices(ctx context.Context, listeners map[string]listener, g gyro.Gyro, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	for {
		var silent []string
		for _, idx := range kinematics.ModuleIndices {
			if l, ok := listeners[idx.String()]; ok && !l.Heard() {
				silent = append(silent, idx.String())
			}
		}
		_, gyroErr := g.Heading(ctx)
		if len(silent) == 0 && gyroErr == nil {
			return nil
		}
		if !goutils.SelectContextOrWait(ctx, telemetryPollInterval) {
			var errs error
			if len(silent) > 0 {
				errs = multierr.Append(errs, errors.Errorf("no status from modules %s", strings.Join(silent, ", ")))
			}
			if gyroErr != nil {
				errs = multierr.Append(errs, gyroErr)
			}
			return errors.Wrapf(errs, "devices silent after %v", timeout)
		}
	}
}

// Close releases the devices in reverse order of opening.
func (hw *hardware) Close() error {
	var errs error
	for i := len(hw.closers) - 1; i >= 0; i-- {
		errs = multierr.Append(errs, hw.closers[i]())
	}
	hw.closers = nil
	return errs
}
