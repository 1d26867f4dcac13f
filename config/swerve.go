// Package config defines the drive configuration, its defaults and its validation.
package config

import (
	"fmt"
	"math"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"go.viam.com/swerve/control"
	"go.viam.com/swerve/kinematics"
	"go.viam.com/swerve/logging"
)

const inchesToMeters = 0.0254

// Config is the whole drive configuration.
type Config struct {
	LogLevel string                  `json:"log_level"`
	Drive    DriveConfig             `json:"drive"`
	Shaper   ShaperConfig            `json:"shaper"`
	Heading  HeadingConfig           `json:"heading"`
	Modules  map[string]ModuleConfig `json:"modules"`
	CAN      CANConfig               `json:"can"`
}

// DriveConfig describes the chassis and how it is driven.
type DriveConfig struct {
	WheelBaseMeters           float64       `json:"wheel_base_meters"`
	TrackWidthMeters          float64       `json:"track_width_meters"`
	MaxSpeedMetersPerSec      float64       `json:"max_speed_meters_per_sec"`
	MaxAngularSpeedRadsPerSec float64       `json:"max_angular_speed_rads_per_sec"`
	LoopPeriod                time.Duration `json:"loop_period"`
	FieldOriented             bool          `json:"field_oriented"`
	UseHeadingCorrection      bool          `json:"use_heading_correction"`
}

// SpeedModeConfig scales the operator command in one speed mode.
type SpeedModeConfig struct {
	TranslationScale float64 `json:"translation_scale"`
	RotationScale    float64 `json:"rotation_scale"`
}

// ShaperConfig tunes how raw joystick axes become a velocity command.
type ShaperConfig struct {
	TranslationDeadband   float64         `json:"translation_deadband"`
	RotationDeadband      float64         `json:"rotation_deadband"`
	OutputDeadband        float64         `json:"output_deadband"`
	LinearScale           float64         `json:"linear_scale"`
	CubeThreshold         float64         `json:"cube_threshold"`
	UseRateLimit          bool            `json:"use_rate_limit"`
	MagnitudeSlewRate     float64         `json:"magnitude_slew_rate"`
	DirectionSlewRate     float64         `json:"direction_slew_rate"`
	RotationalSlewRate    float64         `json:"rotational_slew_rate"`
	CenterOfRotationScale float64         `json:"center_of_rotation_scale"`
	Normal                SpeedModeConfig `json:"normal"`
	Slow                  SpeedModeConfig `json:"slow"`
}

// HeadingConfig tunes the heading hold.
type HeadingConfig struct {
	RotationEpsilon float64       `json:"rotation_epsilon"`
	Cooldown        time.Duration `json:"cooldown"`
	StationarySpeed float64       `json:"stationary_speed"`
	ToleranceDeg    float64       `json:"tolerance_deg"`
	Gain            float64       `json:"gain"`
}

// ModuleConfig is the static calibration of one swerve module.
type ModuleConfig struct {
	DriveID     int     `json:"drive_id"`
	TurnID      int     `json:"turn_id"`
	AngleOffset float64 `json:"angle_offset"`
	Inverted    bool    `json:"inverted"`
}

// CANConfig selects the bus used by the hardware adapters.
type CANConfig struct {
	Interface string `json:"interface"`
	GyroID    uint32 `json:"gyro_id"`
}

// Default returns the configuration of the competition robot.
func Default() *Config {
	wheelBase := 24.229226 * inchesToMeters
	return &Config{
		LogLevel: "info",
		Drive: DriveConfig{
			WheelBaseMeters:           wheelBase,
			TrackWidthMeters:          wheelBase,
			MaxSpeedMetersPerSec:      5.24256,
			MaxAngularSpeedRadsPerSec: 4 * math.Pi / 3,
			LoopPeriod:                time.Duration(kinematics.LoopPeriod * float64(time.Second)),
			FieldOriented:             true,
			UseHeadingCorrection:      true,
		},
		Shaper: ShaperConfig{
			RotationDeadband:      0.3,
			OutputDeadband:        0.15,
			LinearScale:           0.7777,
			CubeThreshold:         0.9,
			UseRateLimit:          true,
			MagnitudeSlewRate:     4.5,
			DirectionSlewRate:     4.5,
			RotationalSlewRate:    2.0,
			CenterOfRotationScale: 0.75,
			Normal:                SpeedModeConfig{TranslationScale: 1, RotationScale: 1},
			Slow:                  SpeedModeConfig{TranslationScale: 0.2, RotationScale: 0.2},
		},
		Heading: HeadingConfig{
			RotationEpsilon: 0.01,
			Cooldown:        500 * time.Millisecond,
			StationarySpeed: 0.05,
			ToleranceDeg:    2,
			Gain:            0.04,
		},
		Modules: map[string]ModuleConfig{
			kinematics.FrontLeft.String():  {DriveID: 12, TurnID: 11, AngleOffset: 0.07},
			kinematics.FrontRight.String(): {DriveID: 22, TurnID: 21, AngleOffset: 1.68},
			kinematics.BackLeft.String():   {DriveID: 32, TurnID: 31, AngleOffset: 0.26},
			kinematics.BackRight.String():  {DriveID: 42, TurnID: 41, AngleOffset: 1.16},
		},
		CAN: CANConfig{Interface: "can0", GyroID: 0x50},
	}
}

// Validate reports every problem with the configuration at once.
func (cfg *Config) Validate(path string) error {
	var errs error
	if _, err := logging.LevelFromString(cfg.LogLevel); err != nil {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path, err))
	}
	errs = multierr.Append(errs, cfg.Drive.Validate(join(path, "drive")))
	errs = multierr.Append(errs, cfg.Shaper.Validate(join(path, "shaper")))
	errs = multierr.Append(errs, cfg.Heading.Validate(join(path, "heading")))
	if _, err := cfg.ModuleConfigs(join(path, "modules")); err != nil {
		errs = multierr.Append(errs, err)
	}
	return errs
}

// Validate checks the chassis description.
func (cfg DriveConfig) Validate(path string) error {
	var errs error
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"wheel_base_meters", cfg.WheelBaseMeters},
		{"track_width_meters", cfg.TrackWidthMeters},
		{"max_speed_meters_per_sec", cfg.MaxSpeedMetersPerSec},
		{"max_angular_speed_rads_per_sec", cfg.MaxAngularSpeedRadsPerSec},
	} {
		switch {
		case f.value == 0:
			errs = multierr.Append(errs, goutils.NewConfigValidationFieldRequiredError(path, f.name))
		case f.value < 0 || math.IsNaN(f.value) || math.IsInf(f.value, 0):
			errs = multierr.Append(errs, goutils.NewConfigValidationError(path,
				errors.Errorf("%s must be a positive number, got %v", f.name, f.value)))
		}
	}
	if cfg.LoopPeriod <= 0 {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path,
			errors.Errorf("loop_period must be positive, got %v", cfg.LoopPeriod)))
	}
	return errs
}

// Validate checks the shaper tuning.
func (cfg ShaperConfig) Validate(path string) error {
	var errs error
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"translation_deadband", cfg.TranslationDeadband},
		{"rotation_deadband", cfg.RotationDeadband},
		{"output_deadband", cfg.OutputDeadband},
	} {
		if f.value < 0 || f.value >= 1 {
			errs = multierr.Append(errs, goutils.NewConfigValidationError(path,
				errors.Errorf("%s must be in [0, 1), got %v", f.name, f.value)))
		}
	}
	if cfg.LinearScale <= 0 {
		errs = multierr.Append(errs, goutils.NewConfigValidationFieldRequiredError(path, "linear_scale"))
	}
	if cfg.CubeThreshold < 0 || cfg.CubeThreshold > 1 {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path,
			errors.Errorf("cube_threshold must be in [0, 1], got %v", cfg.CubeThreshold)))
	}
	if cfg.UseRateLimit {
		if cfg.MagnitudeSlewRate <= 0 {
			errs = multierr.Append(errs, goutils.NewConfigValidationFieldRequiredError(path, "magnitude_slew_rate"))
		}
		if cfg.DirectionSlewRate <= 0 {
			errs = multierr.Append(errs, goutils.NewConfigValidationFieldRequiredError(path, "direction_slew_rate"))
		}
		if cfg.RotationalSlewRate <= 0 {
			errs = multierr.Append(errs, goutils.NewConfigValidationFieldRequiredError(path, "rotational_slew_rate"))
		}
	}
	for name, mode := range map[string]SpeedModeConfig{"normal": cfg.Normal, "slow": cfg.Slow} {
		if mode.TranslationScale <= 0 || mode.RotationScale <= 0 {
			errs = multierr.Append(errs, goutils.NewConfigValidationError(join(path, name),
				errors.New("translation_scale and rotation_scale must be positive")))
		}
	}
	return errs
}

// Validate checks the heading hold tuning.
func (cfg HeadingConfig) Validate(path string) error {
	if err := cfg.CorrectorConfig().Validate(); err != nil {
		return goutils.NewConfigValidationError(path, err)
	}
	return nil
}

// CorrectorConfig converts the configuration into heading corrector tuning.
func (cfg HeadingConfig) CorrectorConfig() control.HeadingCorrectorConfig {
	return control.HeadingCorrectorConfig{
		RotationEpsilon: cfg.RotationEpsilon,
		Cooldown:        cfg.Cooldown,
		StationarySpeed: cfg.StationarySpeed,
		ToleranceDeg:    cfg.ToleranceDeg,
		Gain:            cfg.Gain,
	}
}

// ModuleConfigs returns the module calibrations indexed by module. All four modules must be
// present and every actuator ID must be unique.
func (cfg *Config) ModuleConfigs(path string) ([kinematics.NumModules]ModuleConfig, error) {
	var out [kinematics.NumModules]ModuleConfig
	var errs error
	for name := range cfg.Modules {
		if _, err := kinematics.ParseModuleIndex(name); err != nil {
			errs = multierr.Append(errs, goutils.NewConfigValidationError(path, err))
		}
	}
	ids := map[int]string{}
	for _, idx := range kinematics.ModuleIndices {
		modPath := join(path, idx.String())
		mod, ok := cfg.Modules[idx.String()]
		if !ok {
			errs = multierr.Append(errs, goutils.NewConfigValidationFieldRequiredError(path, idx.String()))
			continue
		}
		if mod.DriveID == 0 {
			errs = multierr.Append(errs, goutils.NewConfigValidationFieldRequiredError(modPath, "drive_id"))
		}
		if mod.TurnID == 0 {
			errs = multierr.Append(errs, goutils.NewConfigValidationFieldRequiredError(modPath, "turn_id"))
		}
		for _, id := range []int{mod.DriveID, mod.TurnID} {
			if id == 0 {
				continue
			}
			if other, dup := ids[id]; dup {
				errs = multierr.Append(errs, goutils.NewConfigValidationError(modPath,
					errors.Errorf("actuator id %d is already used by %s", id, other)))
			}
			ids[id] = idx.String()
		}
		out[idx] = mod
	}
	return out, errs
}

func join(path, field string) string {
	if path == "" {
		return field
	}
	return fmt.Sprintf("%s.%s", path, field)
}
