// Package motor packs setpoints into, and unpacks state out of, the 8 byte
// CAN payloads understood by the motor controller.
package motor

import (
	"errors"
	"fmt"

	"github.com/roffe/motorcan/pkg/fixedpoint"
	"github.com/roffe/motorcan/pkg/frame"
)

// Field widths.
const (
	PositionBits = 16
	VelocityBits = 12
	KpBits       = 12
	KdBits       = 12
	TorqueBits   = 12
)

// Fields holds the per-channel field descriptors of one range set.
type Fields struct {
	Position fixedpoint.Field
	Velocity fixedpoint.Field
	Kp       fixedpoint.Field
	Kd       fixedpoint.Field
	Torque   fixedpoint.Field
}

// FieldsFor pairs the channel widths with the spans of rs.
func FieldsFor(rs fixedpoint.RangeSet) Fields {
	return Fields{
		Position: fixedpoint.Field{Bits: PositionBits, Range: rs.Position},
		Velocity: fixedpoint.Field{Bits: VelocityBits, Range: rs.Velocity},
		Kp:       fixedpoint.Field{Bits: KpBits, Range: rs.Kp},
		Kd:       fixedpoint.Field{Bits: KdBits, Range: rs.Kd},
		Torque:   fixedpoint.Field{Bits: TorqueBits, Range: rs.Torque},
	}
}

// Opcode is a control byte sent in place of setpoints.
type Opcode byte

const (
	EnterMotorMode Opcode = 0xFC
	ExitMotorMode  Opcode = 0xFD
	ZeroPosition   Opcode = 0xFE
)

func (op Opcode) String() string {
	switch op {
	case EnterMotorMode:
		return "enter motor mode"
	case ExitMotorMode:
		return "exit motor mode"
	case ZeroPosition:
		return "zero position"
	default:
		return fmt.Sprintf("opcode 0x%02X", byte(op))
	}
}

// Command holds the five setpoints of a motor command in physical units.
type Command struct {
	Position float64 // rad
	Velocity float64 // rad/s
	Kp       float64 // N·m/rad
	Kd       float64 // N·m·s/rad
	Torque   float64 // N·m
}

// Validate reports every channel outside its range. Encoding saturates
// such channels, so the error is informational.
func (c Command) Validate(rs fixedpoint.RangeSet) error {
	var errs []error
	for _, ch := range []struct {
		name string
		v    float64
		r    fixedpoint.Range
	}{
		{"position", c.Position, rs.Position},
		{"velocity", c.Velocity, rs.Velocity},
		{"kp", c.Kp, rs.Kp},
		{"kd", c.Kd, rs.Kd},
		{"torque", c.Torque, rs.Torque},
	} {
		if _, err := ch.r.Clamp(ch.v); err != nil {
			var rerr *fixedpoint.ValueRangeError
			if errors.As(err, &rerr) {
				rerr.Channel = ch.name
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Clamped returns a copy of c with every channel saturated to rs.
func (c Command) Clamped(rs fixedpoint.RangeSet) Command {
	c.Position, _ = rs.Position.Clamp(c.Position)
	c.Velocity, _ = rs.Velocity.Clamp(c.Velocity)
	c.Kp, _ = rs.Kp.Clamp(c.Kp)
	c.Kd, _ = rs.Kd.Clamp(c.Kd)
	c.Torque, _ = rs.Torque.Clamp(c.Torque)
	return c
}

func (c Command) String() string {
	return fmt.Sprintf("p=%.3f v=%.3f kp=%.2f kd=%.3f t=%.3f", c.Position, c.Velocity, c.Kp, c.Kd, c.Torque)
}

// EncodeCommand packs c MSB first:
//
//	0: position[15:8]
//	1: position[7:0]
//	2: velocity[11:4]
//	3: velocity[3:0] kp[11:8]
//	4: kp[7:0]
//	5: kd[11:4]
//	6: kd[3:0] torque[11:8]
//	7: torque[7:0]
func EncodeCommand(c Command, rs fixedpoint.RangeSet) [frame.PayloadSize]byte {
	f := FieldsFor(rs)
	p := f.Position.Encode(c.Position)
	v := f.Velocity.Encode(c.Velocity)
	kp := f.Kp.Encode(c.Kp)
	kd := f.Kd.Encode(c.Kd)
	t := f.Torque.Encode(c.Torque)

	var b [frame.PayloadSize]byte
	b[0] = byte(p >> 8)
	b[1] = byte(p)
	b[2] = byte(v >> 4)
	b[3] = byte(v<<4)&0xF0 | byte(kp>>8)&0x0F
	b[4] = byte(kp)
	b[5] = byte(kd >> 4)
	b[6] = byte(kd<<4)&0xF0 | byte(t>>8)&0x0F
	b[7] = byte(t)
	return b
}

// DecodeCommand is the inverse of EncodeCommand.
func DecodeCommand(b [frame.PayloadSize]byte, rs fixedpoint.RangeSet) Command {
	p := uint32(b[0])<<8 | uint32(b[1])
	v := uint32(b[2])<<4 | uint32(b[3]>>4)
	kp := uint32(b[3]&0x0F)<<8 | uint32(b[4])
	kd := uint32(b[5])<<4 | uint32(b[6]>>4)
	t := uint32(b[6]&0x0F)<<8 | uint32(b[7])

	f := FieldsFor(rs)
	return Command{
		Position: f.Position.Decode(p),
		Velocity: f.Velocity.Decode(v),
		Kp:       f.Kp.Decode(kp),
		Kd:       f.Kd.Decode(kd),
		Torque:   f.Torque.Decode(t),
	}
}

// EncodeOpcode builds a control payload, seven 0xFF bytes followed by op.
func EncodeOpcode(op Opcode) [frame.PayloadSize]byte {
	return [frame.PayloadSize]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, byte(op)}
}

// NewCommandFrame wraps an encoded command in a transmit envelope.
func NewCommandFrame(deviceID uint32, c Command, rs fixedpoint.RangeSet) *frame.TxFrame {
	return frame.NewTx(deviceID, EncodeCommand(c, rs))
}

// NewOpcodeFrame wraps a control payload in a transmit envelope.
func NewOpcodeFrame(deviceID uint32, op Opcode) *frame.TxFrame {
	return frame.NewTx(deviceID, EncodeOpcode(op))
}

// IsOpcode reports whether payload is a control payload and returns its
// opcode.
func IsOpcode(payload [frame.PayloadSize]byte) (Opcode, bool) {
	for _, b := range payload[:7] {
		if b != 0xFF {
			return 0, false
		}
	}
	return Opcode(payload[7]), true
}
