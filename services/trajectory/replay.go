package trajectory

import (
	"context"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"go.viam.com/swerve/kinematics"
	"go.viam.com/swerve/logging"
	"go.viam.com/swerve/spatialmath"
	"go.viam.com/swerve/utils"
)

// Sample is one timed point of a recorded trajectory. Speeds are field relative. When HasPose
// is set the replay also steers towards the recorded pose.
type Sample struct {
	At    time.Duration `yaml:"at"`
	Vx    float64       `yaml:"vx"`
	Vy    float64       `yaml:"vy"`
	Omega float64       `yaml:"omega"`

	HasPose bool    `yaml:"has_pose"`
	X       float64 `yaml:"x"`
	Y       float64 `yaml:"y"`
	Theta   float64 `yaml:"theta"`
}

// File is the on-disk form of a trajectory. VelocityGain scales the correction applied for the
// difference between the recorded and the measured velocity.
type File struct {
	Name            string   `yaml:"name"`
	TranslationGain float64  `yaml:"translation_gain"`
	RotationGain    float64  `yaml:"rotation_gain"`
	VelocityGain    float64  `yaml:"velocity_gain"`
	Samples         []Sample `yaml:"samples"`
}

// Validate checks that the samples can be replayed.
func (f *File) Validate() error {
	if len(f.Samples) == 0 {
		return errors.Errorf("trajectory %q has no samples", f.Name)
	}
	var errs error
	if f.TranslationGain < 0 || f.RotationGain < 0 || f.VelocityGain < 0 {
		errs = multierr.Append(errs, errors.New("feedback gains must not be negative"))
	}
	for i, s := range f.Samples {
		if !utils.Finite(s.Vx, s.Vy, s.Omega, s.X, s.Y, s.Theta) {
			errs = multierr.Append(errs, errors.Errorf("sample %d is not finite", i))
		}
		if s.At < 0 {
			errs = multierr.Append(errs, errors.Errorf("sample %d has negative time %v", i, s.At))
		}
		if i > 0 && s.At <= f.Samples[i-1].At {
			errs = multierr.Append(errs, errors.Errorf("sample %d at %v is not after sample %d", i, s.At, i-1))
		}
	}
	return errs
}

// ReadFile loads and validates a trajectory file.
func ReadFile(path string) (*File, error) {
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading trajectory")
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrapf(err, "parsing trajectory %s", path)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Replay plays a recorded trajectory back against the clock, linearly interpolating between
// samples. Time starts at the first call to Next or at Start.
type Replay struct {
	file   *File
	logger logging.Logger

	mu       sync.Mutex
	start    time.Time
	finished bool
}

// NewReplay returns a replay of f.
func NewReplay(f *File, logger logging.Logger) (*Replay, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &Replay{file: f, logger: logger}, nil
}

// Start restarts the replay at now.
func (r *Replay) Start(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.startLocked(now)
}

func (r *Replay) startLocked(now time.Time) {
	r.start = now
	r.finished = false
	r.logger.Infow("trajectory started", "name", r.file.Name, "duration", r.Duration())
}

// Duration is the time of the last sample.
func (r *Replay) Duration() time.Duration {
	return r.file.Samples[len(r.file.Samples)-1].At
}

// Next implements Follower.
func (r *Replay) Next(
	ctx context.Context,
	now time.Time,
	pose spatialmath.Pose2D,
	velocity kinematics.ChassisSpeeds,
) (kinematics.ChassisSpeeds, bool) {
	r.mu.Lock()
	if r.start.IsZero() {
		r.startLocked(now)
	}
	elapsed := now.Sub(r.start)
	if elapsed >= r.Duration() {
		if !r.finished {
			r.logger.Infow("trajectory finished", "name", r.file.Name)
		}
		r.finished = true
		r.mu.Unlock()
		return kinematics.ChassisSpeeds{}, false
	}
	r.mu.Unlock()

	target := r.sample(elapsed)
	field := kinematics.ChassisSpeeds{Vx: target.Vx, Vy: target.Vy, Omega: target.Omega}
	if target.HasPose {
		errPoint := r2.Point{X: target.X, Y: target.Y}.Sub(pose.Point)
		field.Vx += r.file.TranslationGain * errPoint.X
		field.Vy += r.file.TranslationGain * errPoint.Y
		field.Omega += r.file.RotationGain * utils.NormalizeAngle(target.Theta-pose.Theta)
	}
	if r.file.VelocityGain > 0 {
		measured := spatialmath.Rotate(velocity.Translation(), pose.Theta)
		field.Vx += r.file.VelocityGain * (target.Vx - measured.X)
		field.Vy += r.file.VelocityGain * (target.Vy - measured.Y)
		field.Omega += r.file.VelocityGain * (target.Omega - velocity.Omega)
	}
	return kinematics.FieldToRobot(field, pose.Theta, false), true
}

func (r *Replay) sample(elapsed time.Duration) Sample {
	samples := r.file.Samples
	i := sort.Search(len(samples), func(i int) bool { return samples[i].At > elapsed })
	if i == 0 {
		return samples[0]
	}
	if i == len(samples) {
		return samples[len(samples)-1]
	}
	a, b := samples[i-1], samples[i]
	frac := float64(elapsed-a.At) / float64(b.At-a.At)
	lerp := func(x, y float64) float64 { return x + (y-x)*frac }
	return Sample{
		At:      elapsed,
		Vx:      lerp(a.Vx, b.Vx),
		Vy:      lerp(a.Vy, b.Vy),
		Omega:   lerp(a.Omega, b.Omega),
		HasPose: a.HasPose && b.HasPose,
		X:       lerp(a.X, b.X),
		Y:       lerp(a.Y, b.Y),
		Theta:   a.Theta + utils.NormalizeAngle(b.Theta-a.Theta)*frac,
	}
}

// Finished reports whether the replay has run past its last sample.
func (r *Replay) Finished() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finished
}
