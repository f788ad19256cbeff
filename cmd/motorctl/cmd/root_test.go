package cmd

import (
	"testing"

	"github.com/roffe/motorcan/pkg/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDeviceID(t *testing.T) {
	tests := []struct {
		in      string
		want    uint32
		wantErr bool
	}{
		{"0x01", 0x01, false},
		{"0x7FF", 0x7FF, false},
		{"7ff", 0x7FF, false},
		{"10", 0x10, false},
		{"17", 0x17, false},
		{"0X1a", 0x1A, false},
		{"", 0, true},
		{"0x", 0, true},
		{"0x800", 0, true},
		{"motor", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseDeviceID(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseHex(t *testing.T) {
	b, err := parseHex("A5 5A 11 14 01 00 00 00 00 08 00 00 01 80 00 80 08 00 00 00 00 00 00 00")
	require.NoError(t, err)
	require.Len(t, b, frame.Size)

	rx, err := frame.DecodeRx(b)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), rx.DeviceID)

	_, err = parseHex("zz")
	assert.Error(t, err)
}
