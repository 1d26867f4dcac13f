//go:build linux

// Package cangyro reads an IMU that broadcasts its yaw on a CAN bus.
//
// The IMU sends an extended frame with the configured id carrying the unwrapped yaw as a
// little-endian int32 in hundredths of a degree. Writing 0x01 to id+1 re-zeros it.
package cangyro

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/go-daq/canbus"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"go.viam.com/swerve/components/gyro"
	"go.viam.com/swerve/logging"
	"go.viam.com/swerve/utils"
)

const (
	centiDegrees = 100.0
	resetCommand = 0x01
)

// Socket is the subset of a CAN socket the gyro uses.
type Socket interface {
	Send(frame canbus.Frame) (int, error)
	Recv() (canbus.Frame, error)
	Close() error
}

var _ gyro.Gyro = &Gyro{}

// Gyro is a CAN-connected IMU.
type Gyro struct {
	id     uint32
	tx, rx Socket
	logger logging.Logger

	mu    sync.Mutex
	yaw   float64
	heard bool

	cancelCtx               context.Context
	cancel                  func()
	activeBackgroundWorkers sync.WaitGroup
}

// Open binds sockets on the named interface and starts listening for yaw broadcasts.
func Open(iface string, id uint32, logger logging.Logger) (*Gyro, error) {
	tx, err := bindSocket(iface)
	if err != nil {
		return nil, err
	}
	rx, err := bindSocket(iface)
	if err != nil {
		return nil, multierr.Combine(err, tx.Close())
	}
	return New(tx, rx, id, logger), nil
}

func bindSocket(iface string) (*canbus.Socket, error) {
	sock, err := canbus.New()
	if err != nil {
		return nil, errors.Wrap(err, "cannot open CAN socket")
	}
	if err := sock.Bind(iface); err != nil {
		return nil, multierr.Combine(errors.Wrapf(err, "cannot bind %s", iface), sock.Close())
	}
	return sock, nil
}

// New returns a gyro that sends on tx and reads broadcasts from rx until closed.
func New(tx, rx Socket, id uint32, logger logging.Logger) *Gyro {
	cancelCtx, cancel := context.WithCancel(context.Background())
	g := &Gyro{id: id, tx: tx, rx: rx, logger: logger, cancelCtx: cancelCtx, cancel: cancel}
	g.activeBackgroundWorkers.Add(1)
	goutils.ManagedGo(g.receiveLoop, g.activeBackgroundWorkers.Done)
	return g
}

func (g *Gyro) receiveLoop() {
	for {
		if g.cancelCtx.Err() != nil {
			return
		}
		frame, err := g.rx.Recv()
		if err != nil {
			if g.cancelCtx.Err() != nil {
				return
			}
			g.logger.Errorw("CAN Rx error", "error", err)
			continue
		}
		g.handleFrame(frame)
	}
}

func (g *Gyro) handleFrame(frame canbus.Frame) bool {
	if frame.ID != g.id || len(frame.Data) < 4 {
		return false
	}
	//nolint:gosec
	raw := int32(binary.LittleEndian.Uint32(frame.Data[:4]))
	g.mu.Lock()
	g.yaw = float64(raw) / centiDegrees
	g.heard = true
	g.mu.Unlock()
	return true
}

// Heading returns the last broadcast yaw wrapped to (-180, 180].
func (g *Gyro) Heading(ctx context.Context) (float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.heard {
		return 0, errors.Errorf("no yaw received from IMU 0x%x", g.id)
	}
	return utils.NormalizeDegrees(g.yaw), nil
}

// Reset asks the IMU to re-zero. The local reading is zeroed until the next broadcast.
func (g *Gyro) Reset(ctx context.Context) error {
	frame := canbus.Frame{
		ID:   g.id + 1,
		Data: []byte{resetCommand},
		Kind: canbus.EFF,
	}
	if _, err := g.tx.Send(frame); err != nil {
		return errors.Wrap(err, "cannot reset IMU")
	}
	g.mu.Lock()
	g.yaw = 0
	g.mu.Unlock()
	return nil
}

// Close stops the receiver and closes both sockets.
func (g *Gyro) Close() error {
	g.cancel()
	err := g.rx.Close()
	g.activeBackgroundWorkers.Wait()
	return errors.Wrap(multierr.Combine(err, g.tx.Close()), "closing IMU sockets")
}
