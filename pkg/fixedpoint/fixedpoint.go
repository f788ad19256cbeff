// Package fixedpoint scales physical quantities to and from the unsigned
// fixed-width codes packed into motor controller CAN payloads.
package fixedpoint

import (
	"fmt"
	"math"
)

// MaxCode returns the largest code representable in bits, 2^bits - 1.
func MaxCode(bits uint) uint32 {
	return uint32(1)<<bits - 1
}

// Step returns the quantization step of a field, (max-min)/(2^bits-1).
func Step(min, max float64, bits uint) float64 {
	return (max - min) / float64(MaxCode(bits))
}

// Encode scales value from [min,max] into a code of the given width.
// Values outside the range saturate at the range boundary, NaN encodes as 0.
func Encode(value, min, max float64, bits uint) uint32 {
	top := MaxCode(bits)
	if math.IsNaN(value) {
		return 0
	}
	x := math.Round((value - min) * float64(top) / (max - min))
	switch {
	case x <= 0:
		return 0
	case x >= float64(top):
		return top
	}
	return uint32(x)
}

// Decode is the inverse of Encode.
func Decode(code uint32, min, max float64, bits uint) float64 {
	return float64(code)*(max-min)/float64(MaxCode(bits)) + min
}

// Range is the physical span covered by a field.
type Range struct {
	Min float64 `mapstructure:"min"`
	Max float64 `mapstructure:"max"`
}

func (r Range) String() string {
	return fmt.Sprintf("[%g, %g]", r.Min, r.Max)
}

// Contains reports whether v lies within the closed range.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Clamp saturates v to the range. The returned error is a *ValueRangeError
// when v had to be adjusted; the clamped value is valid either way.
func (r Range) Clamp(v float64) (float64, error) {
	if r.Contains(v) {
		return v, nil
	}
	if v > r.Max {
		return r.Max, &ValueRangeError{Value: v, Range: r}
	}
	// below the range, or NaN
	return r.Min, &ValueRangeError{Value: v, Range: r}
}

func (r Range) valid() bool {
	return r.Max > r.Min && !math.IsInf(r.Min, 0) && !math.IsInf(r.Max, 0)
}

// Field describes one packed quantity.
type Field struct {
	Bits  uint
	Range Range
}

func (f Field) Encode(v float64) uint32 {
	return Encode(v, f.Range.Min, f.Range.Max, f.Bits)
}

func (f Field) Decode(code uint32) float64 {
	return Decode(code&MaxCode(f.Bits), f.Range.Min, f.Range.Max, f.Bits)
}

// Step returns the resolution of the field.
func (f Field) Step() float64 {
	return Step(f.Range.Min, f.Range.Max, f.Bits)
}

// ValueRangeError reports a setpoint outside its physical range. The value
// is saturated, never wrapped.
type ValueRangeError struct {
	Channel string
	Value   float64
	Range   Range
}

func (e *ValueRangeError) Error() string {
	if e.Channel == "" {
		return fmt.Sprintf("value %g outside range %s", e.Value, e.Range)
	}
	return fmt.Sprintf("%s %g outside range %s", e.Channel, e.Value, e.Range)
}
