package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.viam.com/test"

	"go.viam.com/swerve/kinematics"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	test.That(t, cfg.Validate("swerve"), test.ShouldBeNil)
	test.That(t, cfg.Drive.WheelBaseMeters, test.ShouldAlmostEqual, 0.6154, 1e-4)
	test.That(t, cfg.Drive.LoopPeriod, test.ShouldEqual, 20*time.Millisecond)

	mods, err := cfg.ModuleConfigs("")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, mods[kinematics.FrontRight], test.ShouldResemble, ModuleConfig{DriveID: 22, TurnID: 21, AngleOffset: 1.68})
	test.That(t, mods[kinematics.BackRight].TurnID, test.ShouldEqual, 41)
}

func TestValidateDrive(t *testing.T) {
	cfg := Default()
	cfg.Drive.MaxSpeedMetersPerSec = 0
	err := cfg.Validate("swerve")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "max_speed_meters_per_sec")
	test.That(t, err.Error(), test.ShouldContainSubstring, "swerve.drive")

	cfg = Default()
	cfg.Drive.MaxSpeedMetersPerSec = -1
	cfg.Drive.LoopPeriod = 0
	err = cfg.Validate("")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "positive number")
	test.That(t, err.Error(), test.ShouldContainSubstring, "loop_period")
}

func TestValidateShaper(t *testing.T) {
	cfg := Default()
	cfg.Shaper.RotationDeadband = 1
	cfg.Shaper.Slow.RotationScale = 0
	err := cfg.Validate("")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "rotation_deadband")
	test.That(t, err.Error(), test.ShouldContainSubstring, "shaper.slow")

	cfg = Default()
	cfg.Shaper.UseRateLimit = false
	cfg.Shaper.MagnitudeSlewRate = 0
	test.That(t, cfg.Validate(""), test.ShouldBeNil)
}

func TestValidateModules(t *testing.T) {
	t.Run("missing module", func(t *testing.T) {
		cfg := Default()
		delete(cfg.Modules, "back_left")
		err := cfg.Validate("")
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "back_left")
	})
	t.Run("unknown module", func(t *testing.T) {
		cfg := Default()
		cfg.Modules["middle"] = ModuleConfig{DriveID: 1, TurnID: 2}
		err := cfg.Validate("")
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "middle")
	})
	t.Run("duplicate id", func(t *testing.T) {
		cfg := Default()
		cfg.Modules["back_right"] = ModuleConfig{DriveID: 12, TurnID: 41}
		err := cfg.Validate("")
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "already used by front_left")
	})
	t.Run("missing ids", func(t *testing.T) {
		cfg := Default()
		cfg.Modules["front_left"] = ModuleConfig{AngleOffset: 0.1}
		err := cfg.Validate("")
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "drive_id")
		test.That(t, err.Error(), test.ShouldContainSubstring, "turn_id")
	})
}

func TestValidateLogLevel(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "chatty"
	test.That(t, cfg.Validate(""), test.ShouldNotBeNil)
}

func TestRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "robot.yaml")
	doc := `
log_level: debug
drive:
  max_speed_meters_per_sec: 4
  loop_period: 10ms
  field_oriented: false
shaper:
  use_rate_limit: false
  slow:
    translation_scale: 0.5
    rotation_scale: 0.25
heading:
  cooldown: 1s
modules:
  front_left:
    drive_id: 1
    turn_id: 2
    angle_offset: 0.5
    inverted: true
can:
  interface: vcan0
`
	test.That(t, os.WriteFile(path, []byte(doc), 0o600), test.ShouldBeNil)

	cfg, err := Read(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.LogLevel, test.ShouldEqual, "debug")
	test.That(t, cfg.Drive.MaxSpeedMetersPerSec, test.ShouldEqual, 4.0)
	test.That(t, cfg.Drive.LoopPeriod, test.ShouldEqual, 10*time.Millisecond)
	test.That(t, cfg.Drive.FieldOriented, test.ShouldBeFalse)
	test.That(t, cfg.Drive.UseHeadingCorrection, test.ShouldBeTrue)
	test.That(t, cfg.Shaper.UseRateLimit, test.ShouldBeFalse)
	test.That(t, cfg.Shaper.Slow, test.ShouldResemble, SpeedModeConfig{TranslationScale: 0.5, RotationScale: 0.25})
	test.That(t, cfg.Shaper.Normal, test.ShouldResemble, SpeedModeConfig{TranslationScale: 1, RotationScale: 1})
	test.That(t, cfg.Heading.Cooldown, test.ShouldEqual, time.Second)
	test.That(t, cfg.Heading.Gain, test.ShouldEqual, 0.04)
	test.That(t, cfg.Modules["front_left"], test.ShouldResemble, ModuleConfig{DriveID: 1, TurnID: 2, AngleOffset: 0.5, Inverted: true})
	test.That(t, cfg.Modules["back_right"].DriveID, test.ShouldEqual, 42)
	test.That(t, cfg.CAN.Interface, test.ShouldEqual, "vcan0")
	test.That(t, cfg.CAN.GyroID, test.ShouldEqual, uint32(0x50))
}

func TestReadErrors(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "missing.yaml"))
	test.That(t, err, test.ShouldNotBeNil)

	_, err = FromYAML([]byte("drive: [1, 2"))
	test.That(t, err, test.ShouldNotBeNil)

	_, err = FromYAML([]byte("drive:\n  wheel_bass: 1\n"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "drive.wheel_bass")

	_, err = FromYAML([]byte("drive:\n  max_speed_meters_per_sec: -2\n"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "max_speed_meters_per_sec")
}
