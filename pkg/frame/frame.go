// Package frame packs and unpacks the fixed 24 byte envelope the USB-CAN
// bridge exchanges over its serial link. Every envelope carries one 8 byte
// CAN payload.
package frame

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/fatih/color"
)

const (
	// Size is the length of one envelope on the wire.
	Size = 24
	// ChecksumSize is the width of the trailing checksum field.
	ChecksumSize = 4
	// Length is the value of the header length field, the envelope size
	// without the checksum.
	Length = Size - ChecksumSize
	// PayloadSize is the CAN data length carried by every envelope.
	PayloadSize = 8

	// ChecksumSentinel is written in place of a checksum. The bridge never
	// computes or verifies it.
	ChecksumSentinel uint32 = 0
)

// Direction specific magic numbers.
const (
	MagicTx uint16 = 0xA55A // host -> bridge
	MagicRx uint16 = 0x5AA5 // bridge -> host
)

// Tags used by the bridge firmware.
const (
	TagMsg   uint8 = 0x01
	TagError uint8 = 0x02
	TagRx    uint8 = 0x11
	TagTx    uint8 = 0x12
)

// TagName names a firmware tag for display.
func TagName(tag uint8) string {
	switch tag {
	case TagMsg:
		return "msg"
	case TagError:
		return "error"
	case TagRx:
		return "rx"
	case TagTx:
		return "tx"
	default:
		return fmt.Sprintf("tag 0x%02X", tag)
	}
}

// Identifier kinds.
const (
	IDStandard uint8 = 0
	IDExtended uint8 = 4
)

// MaxStandardID is the largest 11 bit CAN identifier.
const MaxStandardID = 0x7FF

const (
	offMagic    = 0
	offTag      = 2
	offLength   = 3
	offDeviceID = 4
	offIDE      = 8
	offDLC      = 9
	offPadding  = 10
	offPayload  = 12
	offChecksum = 20
)

// Header is the part of the envelope shared by both directions.
type Header struct {
	Magic    uint16
	Tag      uint8
	Length   uint8
	DeviceID uint32
	IDE      uint8
	DLC      uint8
	Padding  uint16
}

// Validate checks the length field. Decoding does not call it.
func (h Header) Validate() error {
	if h.Length != Length {
		return newError(InvalidLength, "header length %d, want %d", h.Length, Length)
	}
	return nil
}

// TxFrame is an envelope travelling from the host to the bridge.
type TxFrame struct {
	Header
	Payload  [PayloadSize]byte
	Checksum uint32
}

// NewTx returns a transmit envelope addressed to a standard identifier.
func NewTx(deviceID uint32, payload [PayloadSize]byte) *TxFrame {
	return &TxFrame{
		Header: Header{
			Magic:    MagicTx,
			Tag:      TagTx,
			Length:   Length,
			DeviceID: deviceID,
			IDE:      IDStandard,
			DLC:      PayloadSize,
		},
		Payload:  payload,
		Checksum: ChecksumSentinel,
	}
}

func (f *TxFrame) MarshalBinary() ([]byte, error) {
	b := Encode(f.Header, f.Payload)
	return b[:], nil
}

func (f *TxFrame) String() string {
	return format(false, "<o>", f.Header, f.Payload)
}

func (f *TxFrame) ColorString() string {
	return format(true, "<o>", f.Header, f.Payload)
}

// RxFrame is an envelope travelling from the bridge to the host.
type RxFrame struct {
	Header
	Payload  [PayloadSize]byte
	Checksum uint32
}

func (f *RxFrame) MarshalBinary() ([]byte, error) {
	b := Encode(f.Header, f.Payload)
	return b[:], nil
}

func (f *RxFrame) String() string {
	return format(false, "<i>", f.Header, f.Payload)
}

func (f *RxFrame) ColorString() string {
	return format(true, "<i>", f.Header, f.Payload)
}

// Encode serializes an envelope. The length field is always written as
// Length and the checksum as ChecksumSentinel, whatever h holds.
func Encode(h Header, payload [PayloadSize]byte) [Size]byte {
	var b [Size]byte
	binary.LittleEndian.PutUint16(b[offMagic:], h.Magic)
	b[offTag] = h.Tag
	b[offLength] = Length
	binary.LittleEndian.PutUint32(b[offDeviceID:], h.DeviceID)
	b[offIDE] = h.IDE
	b[offDLC] = h.DLC
	binary.LittleEndian.PutUint16(b[offPadding:], h.Padding)
	copy(b[offPayload:offChecksum], payload[:])
	binary.LittleEndian.PutUint32(b[offChecksum:], ChecksumSentinel)
	return b
}

// DecodeTx parses a host -> bridge envelope.
func DecodeTx(b []byte) (*TxFrame, error) {
	h, payload, checksum, err := decode(b, MagicTx)
	if err != nil {
		return nil, err
	}
	return &TxFrame{Header: h, Payload: payload, Checksum: checksum}, nil
}

// DecodeRx parses a bridge -> host envelope.
func DecodeRx(b []byte) (*RxFrame, error) {
	h, payload, checksum, err := decode(b, MagicRx)
	if err != nil {
		return nil, err
	}
	return &RxFrame{Header: h, Payload: payload, Checksum: checksum}, nil
}

func decode(b []byte, magic uint16) (h Header, payload [PayloadSize]byte, checksum uint32, err error) {
	if len(b) != Size {
		return h, payload, 0, newError(InvalidLength, "got %d bytes, want %d", len(b), Size)
	}
	h.Magic = binary.LittleEndian.Uint16(b[offMagic:])
	if h.Magic != magic {
		return h, payload, 0, newError(InvalidMagic, "got 0x%04X, want 0x%04X", h.Magic, magic)
	}
	h.Tag = b[offTag]
	h.Length = b[offLength]
	h.DeviceID = binary.LittleEndian.Uint32(b[offDeviceID:])
	h.IDE = b[offIDE]
	h.DLC = b[offDLC]
	h.Padding = binary.LittleEndian.Uint16(b[offPadding:])
	copy(payload[:], b[offPayload:offChecksum])
	checksum = binary.LittleEndian.Uint32(b[offChecksum:])
	return h, payload, checksum, nil
}

var (
	yellow = color.New(color.FgHiBlue).SprintfFunc()
	red    = color.New(color.FgRed).SprintfFunc()
	green  = color.New(color.FgGreen).SprintfFunc()
)

func format(colored bool, dir string, h Header, payload [PayloadSize]byte) string {
	var out strings.Builder
	out.WriteString(dir + " || ")

	id := fmt.Sprintf("0x%03X", h.DeviceID)
	if colored {
		id = green("0x%03X", h.DeviceID)
	}
	out.WriteString(id + " || ")
	tag := TagName(h.Tag)
	if colored && h.Tag == TagError {
		tag = red("%s", tag)
	}
	out.WriteString(fmt.Sprintf("%s dlc %d", tag, h.DLC) + " || ")

	var hexView strings.Builder
	for i, b := range payload {
		hexView.WriteString(fmt.Sprintf("%02X", b))
		if i != len(payload)-1 {
			hexView.WriteString(" ")
		}
	}
	hex := fmt.Sprintf("%-23s", hexView.String())
	if colored {
		hex = yellow("%-23s", hexView.String())
	}
	out.WriteString(hex)

	out.WriteString(" || ")

	var binView strings.Builder
	for i, b := range payload {
		binView.WriteString(fmt.Sprintf("%08b", b))
		if i != len(payload)-1 {
			binView.WriteString(" ")
		}
	}
	bin := fmt.Sprintf("%-71s", binView.String())
	if colored {
		bin = red("%s", bin)
	}
	out.WriteString(bin)
	return out.String()
}
