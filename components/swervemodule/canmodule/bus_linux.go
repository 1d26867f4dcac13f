//go:build linux

package canmodule

import (
	"context"
	"net"
	"sync"

	"github.com/pkg/errors"
	"go.einride.tech/can"
	"go.einride.tech/can/pkg/socketcan"
	goutils "go.viam.com/utils"

	"go.viam.com/swerve/logging"
)

// FrameHandler consumes frames read from the bus.
type FrameHandler interface {
	HandleFrame(f can.Frame) bool
}

// Bus is a SocketCAN interface shared by several modules. Received frames are offered to
// every handler until one accepts them.
type Bus struct {
	conn   net.Conn
	tx     *socketcan.Transmitter
	logger logging.Logger

	mu       sync.Mutex
	handlers []FrameHandler

	activeBackgroundWorkers sync.WaitGroup
}

// Dial opens the named interface (for example "can0" or "vcan0") and starts receiving.
func Dial(ctx context.Context, iface string, logger logging.Logger) (*Bus, error) {
	conn, err := socketcan.DialContext(ctx, "can", iface)
	if err != nil {
		return nil, errors.Wrapf(err, "socketcan dial %s", iface)
	}
	b := &Bus{conn: conn, tx: socketcan.NewTransmitter(conn), logger: logger}

	recv := socketcan.NewReceiver(conn)
	b.activeBackgroundWorkers.Add(1)
	goutils.ManagedGo(func() {
		for recv.Receive() {
			if recv.HasErrorFrame() {
				b.logger.Warnw("CAN error frame", "frame", recv.ErrorFrame())
				continue
			}
			b.dispatch(recv.Frame())
		}
		if err := recv.Err(); err != nil {
			b.logger.Debugw("CAN receiver stopped", "error", err)
		}
	}, b.activeBackgroundWorkers.Done)
	return b, nil
}

// TransmitFrame sends one frame.
func (b *Bus) TransmitFrame(ctx context.Context, frame can.Frame) error {
	return b.tx.TransmitFrame(ctx, frame)
}

// AddHandler registers a consumer of received frames.
func (b *Bus) AddHandler(h FrameHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

func (b *Bus) dispatch(f can.Frame) {
	b.mu.Lock()
	handlers := b.handlers
	b.mu.Unlock()
	for _, h := range handlers {
		if h.HandleFrame(f) {
			return
		}
	}
}

// Close closes the socket and waits for the receiver to exit.
func (b *Bus) Close() error {
	err := b.conn.Close()
	b.activeBackgroundWorkers.Wait()
	return err
}
