//go:build linux

package cangyro

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"testing"

	"github.com/go-daq/canbus"
	"go.viam.com/test"
	"go.viam.com/utils/testutils"

	"go.viam.com/swerve/logging"
)

type chanSocket struct {
	mu     sync.Mutex
	sent   []canbus.Frame
	frames chan canbus.Frame
	closed chan struct{}
	once   sync.Once
}

func newChanSocket() *chanSocket {
	return &chanSocket{frames: make(chan canbus.Frame, 8), closed: make(chan struct{})}
}

func (s *chanSocket) Send(frame canbus.Frame) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, frame)
	return len(frame.Data), nil
}

func (s *chanSocket) Recv() (canbus.Frame, error) {
	select {
	case f := <-s.frames:
		return f, nil
	case <-s.closed:
		return canbus.Frame{}, errors.New("socket closed")
	}
}

func (s *chanSocket) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

func yawFrame(id uint32, centiDeg int32) canbus.Frame {
	data := make([]byte, 4)
	//nolint:gosec
	binary.LittleEndian.PutUint32(data, uint32(centiDeg))
	return canbus.Frame{ID: id, Data: data, Kind: canbus.EFF}
}

func TestCANGyro(t *testing.T) {
	ctx := context.Background()
	tx, rx := newChanSocket(), newChanSocket()
	g := New(tx, rx, 0x50, logging.NewTestLogger(t))
	defer func() {
		test.That(t, g.Close(), test.ShouldBeNil)
	}()

	_, err := g.Heading(ctx)
	test.That(t, err, test.ShouldNotBeNil)

	rx.frames <- yawFrame(0x51, 9000)
	rx.frames <- yawFrame(0x50, 27050)
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		heading, err := g.Heading(ctx)
		test.That(tb, err, test.ShouldBeNil)
		test.That(tb, heading, test.ShouldAlmostEqual, -89.5)
	})

	test.That(t, g.Reset(ctx), test.ShouldBeNil)
	heading, err := g.Heading(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, heading, test.ShouldEqual, 0)

	tx.mu.Lock()
	defer tx.mu.Unlock()
	test.That(t, tx.sent, test.ShouldHaveLength, 1)
	test.That(t, tx.sent[0].ID, test.ShouldEqual, uint32(0x51))
	test.That(t, tx.sent[0].Data, test.ShouldResemble, []byte{resetCommand})
}

func TestOpenUnknownInterface(t *testing.T) {
	g, err := Open("nosuchcan9", 0x50, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, g, test.ShouldBeNil)
}
