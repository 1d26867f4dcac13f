//go:build linux

package main

import (
	"context"
	"testing"

	"go.viam.com/test"

	"go.viam.com/swerve/config"
	"go.viam.com/swerve/logging"
)

func TestOpenHardwareUnknownInterface(t *testing.T) {
	cfg := config.Default()
	cfg.CAN.Interface = "nosuchcan9"
	hw, err := openHardware(context.Background(), cfg, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, hw, test.ShouldBeNil)
}
