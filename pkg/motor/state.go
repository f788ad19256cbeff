package motor

import (
	"fmt"

	"github.com/roffe/motorcan/pkg/fixedpoint"
	"github.com/roffe/motorcan/pkg/frame"
)

// State is the motor state reported in a reply payload.
type State struct {
	DeviceID uint8
	Position float64 // rad
	Velocity float64 // rad/s
	Torque   float64 // N·m
}

func (s State) String() string {
	return fmt.Sprintf("id=0x%02X p=%.3f v=%.3f t=%.3f", s.DeviceID, s.Position, s.Velocity, s.Torque)
}

// DecodeState unpacks a reply payload:
//
//	0: id
//	1: position[15:8]
//	2: position[7:0]
//	3: velocity[11:4]
//	4: velocity[3:0] torque[11:8]
//	5: torque[7:0]
func DecodeState(b [frame.PayloadSize]byte, rs fixedpoint.RangeSet) State {
	p := uint32(b[1])<<8 | uint32(b[2])
	v := uint32(b[3])<<4 | uint32(b[4]>>4)
	t := uint32(b[4]&0x0F)<<8 | uint32(b[5])

	f := FieldsFor(rs)
	return State{
		DeviceID: b[0],
		Position: f.Position.Decode(p),
		Velocity: f.Velocity.Decode(v),
		Torque:   f.Torque.Decode(t),
	}
}

// EncodeState is the inverse of DecodeState. The bridge never sends it to
// the controller; it exists for simulators and tests.
func EncodeState(s State, rs fixedpoint.RangeSet) [frame.PayloadSize]byte {
	f := FieldsFor(rs)
	p := f.Position.Encode(s.Position)
	v := f.Velocity.Encode(s.Velocity)
	t := f.Torque.Encode(s.Torque)

	var b [frame.PayloadSize]byte
	b[0] = s.DeviceID
	b[1] = byte(p >> 8)
	b[2] = byte(p)
	b[3] = byte(v >> 4)
	b[4] = byte(v<<4)&0xF0 | byte(t>>8)&0x0F
	b[5] = byte(t)
	return b
}

// NewStateFrame wraps an encoded state in a receive envelope.
func NewStateFrame(deviceID uint32, s State, rs fixedpoint.RangeSet) *frame.RxFrame {
	return &frame.RxFrame{
		Header: frame.Header{
			Magic:    frame.MagicRx,
			Tag:      frame.TagRx,
			Length:   frame.Length,
			DeviceID: deviceID,
			IDE:      frame.IDStandard,
			DLC:      frame.PayloadSize,
		},
		Payload:  EncodeState(s, rs),
		Checksum: frame.ChecksumSentinel,
	}
}
