// Package canmodule drives a swerve module whose motor controllers speak a small fixed-layout
// protocol over SocketCAN. All frames use standard identifiers and little-endian signals.
//
//	0x200+turn  command   speed int32 mm/s, angle uint32 µrad
//	0x280+drive control   opcode uint8 (0 stop, 1 brake, 2 coast)
//	0x300+turn  status    speed int32 mm/s, angle uint32 µrad
//	0x380+drive odometry  distance int32 mm, idle mode uint8
package canmodule

import (
	"math"

	"github.com/pkg/errors"
	"go.einride.tech/can"

	"go.viam.com/swerve/components/swervemodule"
	"go.viam.com/swerve/utils"
)

const (
	commandBase  = 0x200
	controlBase  = 0x280
	statusBase   = 0x300
	odometryBase = 0x380

	// maxDeviceID keeps every frame base in its own 0x80 block.
	maxDeviceID = 0x7F
)

const (
	opStop  = 0
	opBrake = 1
	opCoast = 2
)

const (
	metersToMillis   = 1e3
	radiansToMicros  = 1e6
	signalBits       = 32
	speedStartBit    = 0
	angleStartBit    = 32
	distanceStartBit = 0
	idleStartBit     = 32
	opcodeStartBit   = 0
	opcodeBits       = 8
)

func validateDeviceID(id int) error {
	if id <= 0 || id > maxDeviceID {
		return errors.Errorf("CAN device id %d must be in [1, %d]", id, maxDeviceID)
	}
	return nil
}

func encodeCommand(turnID int, speed, angle float64) can.Frame {
	f := can.Frame{ID: uint32(commandBase + turnID), Length: 8}
	f.Data.SetSignedBitsLittleEndian(speedStartBit, signalBits, int64(math.Round(speed*metersToMillis)))
	f.Data.SetUnsignedBitsLittleEndian(angleStartBit, signalBits, uint64(math.Round(utils.WrapAngle(angle)*radiansToMicros)))
	return f
}

func encodeControl(driveID int, opcode uint64) can.Frame {
	f := can.Frame{ID: uint32(controlBase + driveID), Length: 1}
	f.Data.SetUnsignedBitsLittleEndian(opcodeStartBit, opcodeBits, opcode)
	return f
}

func encodeIdleMode(driveID int, mode swervemodule.IdleMode) can.Frame {
	if mode == swervemodule.Coast {
		return encodeControl(driveID, opCoast)
	}
	return encodeControl(driveID, opBrake)
}

func decodeStatus(f can.Frame) (speed, angle float64) {
	speed = float64(f.Data.SignedBitsLittleEndian(speedStartBit, signalBits)) / metersToMillis
	angle = float64(f.Data.UnsignedBitsLittleEndian(angleStartBit, signalBits)) / radiansToMicros
	return speed, angle
}

func decodeOdometry(f can.Frame) (distance float64, mode swervemodule.IdleMode) {
	distance = float64(f.Data.SignedBitsLittleEndian(distanceStartBit, signalBits)) / metersToMillis
	if f.Data.UnsignedBitsLittleEndian(idleStartBit, opcodeBits) == opCoast {
		mode = swervemodule.Coast
	}
	return distance, mode
}
