package frame

import "fmt"

// ErrorKind classifies a decode failure.
type ErrorKind int

const (
	InvalidLength ErrorKind = iota + 1
	InvalidMagic
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidLength:
		return "invalid length"
	case InvalidMagic:
		return "invalid magic"
	default:
		return "unknown"
	}
}

// Error is returned by the decoders.
type Error struct {
	Kind   ErrorKind
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return "frame: " + e.Kind.String()
	}
	return "frame: " + e.Kind.String() + ": " + e.Detail
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrInvalidMagic)
// works regardless of the detail text.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrInvalidLength = &Error{Kind: InvalidLength}
	ErrInvalidMagic  = &Error{Kind: InvalidMagic}
)

func newError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}
