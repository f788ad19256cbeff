package fixedpoint

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTripWithinOneStep(t *testing.T) {
	tests := []struct {
		name     string
		min, max float64
		bits     uint
	}{
		{"position16", -12.5, 12.5, 16},
		{"velocity12", -65, 65, 12},
		{"kp12", 0, 500, 12},
		{"kd12", 0, 5, 12},
		{"torque12", -40, 40, 12},
		{"v1position16", -95.5, 95.5, 16},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			step := Step(tt.min, tt.max, tt.bits)
			n := 5000
			for i := 0; i <= n; i++ {
				v := tt.min + (tt.max-tt.min)*float64(i)/float64(n)
				got := Decode(Encode(v, tt.min, tt.max, tt.bits), tt.min, tt.max, tt.bits)
				if math.Abs(got-v) > step {
					t.Fatalf("decode(encode(%g)) = %g, off by more than %g", v, got, step)
				}
			}
		})
	}
}

func TestEncodeBounds(t *testing.T) {
	assert.Equal(t, uint32(0), Encode(-12.5, -12.5, 12.5, 16))
	assert.Equal(t, uint32(0xFFFF), Encode(12.5, -12.5, 12.5, 16))
	assert.Equal(t, uint32(0xFFF), Encode(40, -40, 40, 12))
	assert.Equal(t, uint32(2048), Encode(0, -40, 40, 12))
}

func TestEncodeSaturates(t *testing.T) {
	assert.Equal(t, uint32(0xFFF), Encode(1000, -65, 65, 12), "above range")
	assert.Equal(t, uint32(0), Encode(-1000, -65, 65, 12), "below range")
	assert.Equal(t, uint32(0), Encode(math.NaN(), -65, 65, 12), "nan")
	assert.Equal(t, uint32(0xFFF), Encode(math.Inf(1), -65, 65, 12), "+inf")
}

func TestDecodeEndpoints(t *testing.T) {
	assert.InDelta(t, -12.5, Decode(0, -12.5, 12.5, 16), 1e-12)
	assert.InDelta(t, 12.5, Decode(0xFFFF, -12.5, 12.5, 16), 1e-12)
}

func TestFieldMasksCode(t *testing.T) {
	f := Field{Bits: 12, Range: Range{-40, 40}}
	assert.InDelta(t, f.Decode(0xFFF), f.Decode(0xFFFF), 1e-12)
	assert.InDelta(t, 80.0/4095.0, f.Step(), 1e-12)
}

func TestRangeClamp(t *testing.T) {
	r := Range{-1, 1}

	v, err := r.Clamp(0.5)
	require.NoError(t, err)
	assert.Equal(t, 0.5, v)

	v, err = r.Clamp(3)
	var rerr *ValueRangeError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, 1.0, v)
	assert.Equal(t, 3.0, rerr.Value)

	v, err = r.Clamp(-3)
	require.Error(t, err)
	assert.Equal(t, -1.0, v)

	v, err = r.Clamp(1)
	require.NoError(t, err, "endpoints are inside the range")
	assert.Equal(t, 1.0, v)

	v, err = r.Clamp(math.NaN())
	require.Error(t, err)
	assert.Equal(t, -1.0, v)
}

func TestLookup(t *testing.T) {
	rs, err := Lookup("V2")
	require.NoError(t, err)
	assert.Equal(t, V2, rs)

	rs, err = Lookup("v1")
	require.NoError(t, err)
	assert.Equal(t, 18.0, rs.Torque.Max)

	_, err = Lookup("v9")
	assert.Error(t, err)
	assert.Equal(t, []string{"v1", "v2"}, Names())
}

func TestRangeSetValidate(t *testing.T) {
	require.NoError(t, V1.Validate())
	require.NoError(t, V2.Validate())

	bad := V2
	bad.Kd = Range{5, 0}
	assert.Error(t, bad.Validate())
}
