package swerve

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.uber.org/zap/zaptest/observer"
	"go.viam.com/test"

	gyrofake "go.viam.com/swerve/components/gyro/fake"
	"go.viam.com/swerve/components/swervemodule"
	"go.viam.com/swerve/components/swervemodule/fake"
	"go.viam.com/swerve/config"
	"go.viam.com/swerve/kinematics"
	"go.viam.com/swerve/logging"
	"go.viam.com/swerve/services/match"
	"go.viam.com/swerve/spatialmath"
	"go.viam.com/swerve/testutils/inject"
	"go.viam.com/swerve/utils"
)

type harness struct {
	ctx     context.Context
	cfg     *config.Config
	clk     *clock.Mock
	modules [kinematics.NumModules]*fake.Module
	injects [kinematics.NumModules]*inject.Actuator
	gyro    *gyrofake.Gyro
	match   *match.Manual
	logs    *observer.ObservedLogs
	dt      *Drivetrain
}

func newHarness(t *testing.T, phase match.Phase, mutate func(cfg *config.Config)) *harness {
	t.Helper()
	cfg := config.Default()
	cfg.Drive.UseHeadingCorrection = false
	if mutate != nil {
		mutate(cfg)
	}
	moduleCfgs, err := cfg.ModuleConfigs("modules")
	test.That(t, err, test.ShouldBeNil)

	logger, logs := logging.NewObservedTestLogger(t)
	h := &harness{
		ctx:   context.Background(),
		cfg:   cfg,
		clk:   clock.NewMock(),
		match: match.NewManual(phase),
		logs:  logs,
	}
	h.gyro = gyrofake.NewGyro(h.clk)

	var deps Dependencies
	for _, idx := range kinematics.ModuleIndices {
		// mounted so that every module starts pointing straight ahead
		h.modules[idx] = fake.NewModule(idx.String(), moduleCfgs[idx].AngleOffset, h.clk, logger)
		h.injects[idx] = &inject.Actuator{Actuator: h.modules[idx]}
		deps.Modules[idx] = h.injects[idx]
	}
	deps.Gyro = h.gyro
	deps.Match = h.match
	deps.Clock = h.clk

	h.dt, err = New(h.ctx, cfg, deps, logger)
	test.That(t, err, test.ShouldBeNil)
	return h
}

func (h *harness) velocity(t *testing.T) kinematics.ChassisSpeeds {
	t.Helper()
	v, err := h.dt.ChassisVelocity(h.ctx)
	test.That(t, err, test.ShouldBeNil)
	return v
}

func (h *harness) states(t *testing.T) [kinematics.NumModules]kinematics.ModuleState {
	t.Helper()
	s, err := h.dt.ModuleStates(h.ctx)
	test.That(t, err, test.ShouldBeNil)
	return s
}

func TestNew(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewMock()
	logger := logging.NewTestLogger(t)

	var deps Dependencies
	for _, idx := range kinematics.ModuleIndices {
		deps.Modules[idx] = fake.NewModule(idx.String(), 0, clk, logger)
	}
	deps.Match = match.NewManual(match.Disabled)
	deps.Clock = clk

	_, err := New(ctx, config.Default(), deps, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "gyro")

	deps.Gyro = gyrofake.NewGyro(clk)
	cfg := config.Default()
	cfg.Drive.MaxSpeedMetersPerSec = 0
	_, err = New(ctx, cfg, deps, logger)
	test.That(t, err, test.ShouldNotBeNil)

	missing := deps
	missing.Modules[kinematics.BackRight] = nil
	_, err = New(ctx, config.Default(), missing, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "back_right")

	d, err := New(ctx, config.Default(), deps, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, d.Pose(), test.ShouldResemble, spatialmath.Pose2D{})
	test.That(t, d.Kinematics(), test.ShouldNotBeNil)
}

func TestDriveRobotOriented(t *testing.T) {
	h := newHarness(t, match.Teleop, nil)

	test.That(t, h.dt.Drive(h.ctx, TeleopRequest{Translation: r2.Point{X: 1}}), test.ShouldBeNil)
	for _, idx := range kinematics.ModuleIndices {
		raw, err := h.modules[idx].State(h.ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, raw.Speed, test.ShouldAlmostEqual, 1)
		// the mounting offset is added back on the way out
		test.That(t, raw.Angle, test.ShouldAlmostEqual, utils.WrapAngle(h.cfg.Modules[idx.String()].AngleOffset))
	}
	v := h.velocity(t)
	test.That(t, v.Vx, test.ShouldAlmostEqual, 1)
	test.That(t, v.Vy, test.ShouldAlmostEqual, 0)
	test.That(t, v.Omega, test.ShouldAlmostEqual, 0)
	test.That(t, h.dt.Speed(), test.ShouldAlmostEqual, 1)
}

func TestDriveFieldOriented(t *testing.T) {
	h := newHarness(t, match.Teleop, nil)
	h.gyro.SetYaw(45)

	err := h.dt.Drive(h.ctx, TeleopRequest{Translation: r2.Point{X: 1}, FieldOriented: true})
	test.That(t, err, test.ShouldBeNil)
	v := h.velocity(t)
	test.That(t, v.Vx, test.ShouldAlmostEqual, math.Sqrt2/2)
	test.That(t, v.Vy, test.ShouldAlmostEqual, -math.Sqrt2/2)

	t.Run("flipped", func(t *testing.T) {
		h.gyro.SetYaw(0)
		h.dt.SetFlipped(true)
		test.That(t, h.dt.Flipped(), test.ShouldBeTrue)
		err := h.dt.Drive(h.ctx, TeleopRequest{Translation: r2.Point{X: 1}, FieldOriented: true})
		test.That(t, err, test.ShouldBeNil)
		v := h.velocity(t)
		test.That(t, v.Vx, test.ShouldAlmostEqual, -1)
		test.That(t, v.Vy, test.ShouldAlmostEqual, 0)
		// reversing is done with the wheel, not the steering
		for _, s := range h.states(t) {
			test.That(t, s.Speed, test.ShouldAlmostEqual, -1)
			test.That(t, utils.AngleDifference(s.Angle, math.Pi/4), test.ShouldBeLessThan, math.Pi/2)
		}
	})
}

func TestZeroSpeedHoldsSteering(t *testing.T) {
	h := newHarness(t, match.Teleop, nil)
	want := math.Atan2(1, 0.5)

	test.That(t, h.dt.Drive(h.ctx, TeleopRequest{Translation: r2.Point{X: 0.5, Y: 1}}), test.ShouldBeNil)
	for _, s := range h.states(t) {
		test.That(t, utils.AngleDifference(s.Angle, want), test.ShouldBeLessThan, 1e-9)
	}

	test.That(t, h.dt.Drive(h.ctx, TeleopRequest{}), test.ShouldBeNil)
	for _, s := range h.states(t) {
		test.That(t, s.Speed, test.ShouldEqual, 0)
		test.That(t, utils.AngleDifference(s.Angle, want), test.ShouldBeLessThan, 1e-9)
	}
}

func TestIdleArbitration(t *testing.T) {
	h := newHarness(t, match.Teleop, nil)
	for _, m := range h.modules {
		test.That(t, m.SetIdleMode(h.ctx, swervemodule.Coast), test.ShouldBeNil)
	}
	idleModes := func(want swervemodule.IdleMode) {
		t.Helper()
		for _, m := range h.modules {
			mode, err := m.IdleMode(h.ctx)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, mode, test.ShouldEqual, want)
		}
	}

	test.That(t, h.dt.Drive(h.ctx, TeleopRequest{}), test.ShouldBeNil)
	idleModes(swervemodule.Brake)

	h.match.SetPhase(match.Autonomous)
	test.That(t, h.dt.Drive(h.ctx, TeleopRequest{}), test.ShouldBeNil)
	idleModes(swervemodule.Brake)
	test.That(t, h.dt.AutoDrive(h.ctx, kinematics.ChassisSpeeds{}), test.ShouldBeNil)
	idleModes(swervemodule.Coast)

	h.match.SetPhase(match.Disabled)
	test.That(t, h.dt.Drive(h.ctx, TeleopRequest{}), test.ShouldBeNil)
	idleModes(swervemodule.Coast)

	test.That(t, h.logs.FilterMessage("drive idle mode changed").Len(), test.ShouldEqual, 2)
}

func TestAutoDrive(t *testing.T) {
	h := newHarness(t, match.Autonomous, nil)

	test.That(t, h.dt.AutoDrive(h.ctx, kinematics.ChassisSpeeds{Vx: 1}), test.ShouldBeNil)
	v := h.velocity(t)
	test.That(t, v.Vx, test.ShouldAlmostEqual, 1)
	test.That(t, v.Vy, test.ShouldAlmostEqual, 0)
	test.That(t, h.dt.Speed(), test.ShouldAlmostEqual, 1)

	err := h.dt.AutoDrive(h.ctx, kinematics.ChassisSpeeds{Vx: math.NaN()})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestDriveDesaturates(t *testing.T) {
	h := newHarness(t, match.Teleop, nil)
	maxSpeed := h.cfg.Drive.MaxSpeedMetersPerSec

	test.That(t, h.dt.Drive(h.ctx, TeleopRequest{Translation: r2.Point{X: 10}}), test.ShouldBeNil)
	for _, s := range h.states(t) {
		test.That(t, s.Speed, test.ShouldAlmostEqual, maxSpeed)
	}

	err := h.dt.Drive(h.ctx, TeleopRequest{Translation: r2.Point{X: 4, Y: 3}, Rotation: 6})
	test.That(t, err, test.ShouldBeNil)
	fastest := 0.0
	for _, s := range h.states(t) {
		fastest = math.Max(fastest, math.Abs(s.Speed))
	}
	test.That(t, fastest, test.ShouldAlmostEqual, maxSpeed)
}

func TestHeadingCorrection(t *testing.T) {
	h := newHarness(t, match.Teleop, func(cfg *config.Config) {
		cfg.Drive.UseHeadingCorrection = true
	})
	forward := TeleopRequest{Translation: r2.Point{X: 2}}

	h.clk.Add(time.Second)
	test.That(t, h.dt.Drive(h.ctx, forward), test.ShouldBeNil)
	test.That(t, h.velocity(t).Omega, test.ShouldAlmostEqual, 0)

	// the robot yawed clockwise without being asked to
	h.gyro.SetYaw(-10)
	h.clk.Add(20 * time.Millisecond)
	test.That(t, h.dt.Drive(h.ctx, forward), test.ShouldBeNil)
	test.That(t, h.velocity(t).Omega, test.ShouldBeGreaterThan, 0)

	t.Run("operator rotation wins", func(t *testing.T) {
		h.clk.Add(20 * time.Millisecond)
		err := h.dt.Drive(h.ctx, TeleopRequest{Translation: r2.Point{X: 2}, Rotation: 1})
		test.That(t, err, test.ShouldBeNil)
		test.That(t, h.velocity(t).Omega, test.ShouldAlmostEqual, 1)
	})

	t.Run("disabled", func(t *testing.T) {
		test.That(t, h.dt.SetUseHeadingCorrection(h.ctx, false), test.ShouldBeNil)
		h.gyro.SetYaw(-40)
		h.clk.Add(time.Second)
		test.That(t, h.dt.Drive(h.ctx, forward), test.ShouldBeNil)
		test.That(t, h.velocity(t).Omega, test.ShouldAlmostEqual, 0)
	})

	t.Run("re-enabled holds the new heading", func(t *testing.T) {
		test.That(t, h.dt.SetUseHeadingCorrection(h.ctx, true), test.ShouldBeNil)
		h.clk.Add(time.Second)
		test.That(t, h.dt.Drive(h.ctx, forward), test.ShouldBeNil)
		test.That(t, h.velocity(t).Omega, test.ShouldAlmostEqual, 0)
	})
}

func TestStop(t *testing.T) {
	h := newHarness(t, match.Teleop, nil)
	test.That(t, h.dt.Drive(h.ctx, TeleopRequest{Translation: r2.Point{X: 1}}), test.ShouldBeNil)

	h.injects[kinematics.FrontRight].StopFunc = func(ctx context.Context) error {
		return errors.New("bus off")
	}
	err := h.dt.Stop(h.ctx)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "front_right")
	test.That(t, err.Error(), test.ShouldContainSubstring, "bus off")
	for _, idx := range kinematics.ModuleIndices {
		test.That(t, h.modules[idx].IsStopped(), test.ShouldEqual, idx != kinematics.FrontRight)
	}
	test.That(t, h.dt.Speed(), test.ShouldEqual, 0)
}

func TestDispatchFailure(t *testing.T) {
	h := newHarness(t, match.Teleop, nil)
	h.injects[kinematics.BackLeft].SetTargetFunc = func(ctx context.Context, speed, angle float64) error {
		return errors.New("no ack")
	}
	err := h.dt.Drive(h.ctx, TeleopRequest{Translation: r2.Point{X: 1}})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "back_left")
}

func TestNonFiniteHeading(t *testing.T) {
	clk := clock.NewMock()
	logger := logging.NewTestLogger(t)
	g := &inject.Gyro{Gyro: gyrofake.NewGyro(clk)}

	var deps Dependencies
	for _, idx := range kinematics.ModuleIndices {
		deps.Modules[idx] = fake.NewModule(idx.String(), 0, clk, logger)
	}
	deps.Gyro = g
	deps.Match = match.NewManual(match.Teleop)
	deps.Clock = clk
	d, err := New(context.Background(), config.Default(), deps, logger)
	test.That(t, err, test.ShouldBeNil)

	g.HeadingFunc = func(ctx context.Context) (float64, error) {
		return math.NaN(), nil
	}
	err = d.Drive(context.Background(), TeleopRequest{Translation: r2.Point{X: 1}})
	test.That(t, errors.Is(err, ErrNonFiniteHeading), test.ShouldBeTrue)
	_, err = d.UpdateOdometry(context.Background(), clk.Now())
	test.That(t, errors.Is(err, ErrNonFiniteHeading), test.ShouldBeTrue)
}

func TestHeadingAndPose(t *testing.T) {
	h := newHarness(t, match.Teleop, nil)

	h.gyro.SetYaw(30)
	heading, err := h.dt.Heading(h.ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, heading, test.ShouldAlmostEqual, 30)

	test.That(t, h.dt.ResetHeading(h.ctx), test.ShouldBeNil)
	heading, err = h.dt.Heading(h.ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, heading, test.ShouldAlmostEqual, 0)
	test.That(t, h.gyro.Resets(), test.ShouldEqual, 1)

	test.That(t, h.dt.ResetPose(h.ctx, spatialmath.NewPose2D(1, 2, 0)), test.ShouldBeNil)
	test.That(t, h.dt.Drive(h.ctx, TeleopRequest{Translation: r2.Point{X: 1}}), test.ShouldBeNil)
	h.clk.Add(time.Second)
	pose, err := h.dt.UpdateOdometry(h.ctx, h.clk.Now())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pose.Point.X, test.ShouldAlmostEqual, 2)
	test.That(t, pose.Point.Y, test.ShouldAlmostEqual, 2)
	test.That(t, h.dt.Pose(), test.ShouldResemble, pose)

	h.dt.SetFlippedFromPose()
	test.That(t, h.dt.Flipped(), test.ShouldBeTrue)

	test.That(t, h.dt.ResetPose(h.ctx, spatialmath.NewPose2D(0, 0, math.Pi)), test.ShouldBeNil)
	h.dt.SetFlippedFromPose()
	test.That(t, h.dt.Flipped(), test.ShouldBeFalse)
	test.That(t, h.dt.Close(h.ctx), test.ShouldBeNil)
}
