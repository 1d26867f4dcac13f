package main

import (
	"context"
	"math"
	"testing"
	"time"

	"go.viam.com/test"

	"go.viam.com/swerve/components/swervemodule"
	"go.viam.com/swerve/config"
	"go.viam.com/swerve/logging"
	"go.viam.com/swerve/services/driverinput"
	"go.viam.com/swerve/services/match"
	"go.viam.com/swerve/services/trajectory"
)

func TestSimulateTeleopForward(t *testing.T) {
	res, err := simulate(context.Background(), config.Default(), simOptions{
		Phase:    match.Teleop,
		Duration: 2 * time.Second,
		Forward:  1,
	}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Stats.Cycles, test.ShouldEqual, 100)
	test.That(t, res.Velocity.Vx, test.ShouldAlmostEqual, 5.24256, 1e-6)
	test.That(t, res.Pose.Point.X, test.ShouldBeGreaterThan, 5)
	test.That(t, math.Abs(res.Pose.Point.Y), test.ShouldBeLessThan, 1e-6)
	for _, mode := range res.IdleModes {
		test.That(t, mode, test.ShouldEqual, swervemodule.Brake)
	}
	test.That(t, res.String(), test.ShouldContainSubstring, "front_left")
}

func TestSimulateSlowTwist(t *testing.T) {
	res, err := simulate(context.Background(), config.Default(), simOptions{
		Phase:    match.Teleop,
		Duration: 2 * time.Second,
		Twist:    1,
		Slow:     true,
	}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.SpeedMode, test.ShouldEqual, driverinput.Slow)
	// full twist turns clockwise at the slow mode rate
	test.That(t, res.Velocity.Omega, test.ShouldAlmostEqual, -0.2*4*math.Pi/3, 1e-6)
	test.That(t, res.Heading, test.ShouldBeLessThan, 0)
}

func TestSimulateHeadingHoldFightsDrift(t *testing.T) {
	opts := simOptions{Phase: match.Teleop, Duration: 3 * time.Second, Forward: 1, Drift: -5}
	held, err := simulate(context.Background(), config.Default(), opts, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	cfg := config.Default()
	cfg.Drive.UseHeadingCorrection = false
	free, err := simulate(context.Background(), cfg, opts, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	test.That(t, math.Abs(held.Heading), test.ShouldBeLessThan, math.Abs(free.Heading))
}

func TestSimulateAutonomous(t *testing.T) {
	traj := &trajectory.File{
		Name: "strafe",
		Samples: []trajectory.Sample{
			{At: 0, Vy: 0.5},
			{At: time.Second, Vy: 0.5},
		},
	}
	res, err := simulate(context.Background(), config.Default(), simOptions{
		Phase:      match.Autonomous,
		Duration:   1500 * time.Millisecond,
		Trajectory: traj,
	}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Pose.Point.Y, test.ShouldAlmostEqual, 0.5, 0.05)
	for _, mode := range res.IdleModes {
		test.That(t, mode, test.ShouldEqual, swervemodule.Coast)
	}
}

func TestPushSticksRejectsOutOfRange(t *testing.T) {
	_, err := simulate(context.Background(), config.Default(), simOptions{
		Phase:    match.Teleop,
		Duration: time.Second,
		Forward:  1.5,
	}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
}
