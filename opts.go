package motorcan

import (
	"context"
	"fmt"
	"time"

	"github.com/roffe/motorcan/pkg/fixedpoint"
	"github.com/roffe/motorcan/pkg/frame"
	"go.uber.org/zap"
)

const (
	MinPeriodHz = 2
	MaxPeriodHz = 1000

	// DefaultBaudrate is ignored by USB CDC bridges but required to open
	// the port.
	DefaultBaudrate = 115200

	// FaultAfter is how long the receiver tolerates silence.
	FaultAfter = 500 * time.Millisecond
	// MaxRxErrors is the number of bad frames tolerated per session.
	MaxRxErrors = 10

	readTimeoutPeriods = 100
)

// PortOpener opens the serial device named by a SessionConfig.
type PortOpener func(ctx context.Context, name string, baudrate int) (Port, error)

type SessionConfig struct {
	Port         string
	PortBaudrate int
	DeviceID     uint32 // 11 bit CAN identifier of the motor controller
	PeriodHz     int
	Ranges       fixedpoint.RangeSet
	ZeroOnStart  bool // send ZeroPosition before entering motor mode
	StrictHeader bool // reject received frames whose length field is not 20
	Debug        bool // log every frame
	Logger       *zap.Logger
	Open         PortOpener
}

// Opt configures a SessionConfig.
type Opt func(*SessionConfig) error

// NewSessionConfig returns a config with defaults applied, then opts.
func NewSessionConfig(opts ...Opt) (*SessionConfig, error) {
	cfg := &SessionConfig{
		PortBaudrate: DefaultBaudrate,
		PeriodHz:     100,
		Ranges:       fixedpoint.Default,
	}
	for _, o := range opts {
		if err := o(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func OptPort(port string, baudrate int) Opt {
	return func(c *SessionConfig) error {
		c.Port = port
		if baudrate > 0 {
			c.PortBaudrate = baudrate
		}
		return nil
	}
}

func OptDeviceID(id uint32) Opt {
	return func(c *SessionConfig) error {
		if id > frame.MaxStandardID {
			return fmt.Errorf("%w: device id 0x%X outside 0x000-0x%03X", ErrInvalidConfig, id, frame.MaxStandardID)
		}
		c.DeviceID = id
		return nil
	}
}

func OptPeriod(hz int) Opt {
	return func(c *SessionConfig) error {
		c.PeriodHz = hz
		return nil
	}
}

// OptProtocol selects the range set by revision name.
func OptProtocol(name string) Opt {
	return func(c *SessionConfig) error {
		rs, err := fixedpoint.Lookup(name)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		c.Ranges = rs
		return nil
	}
}

func OptZeroOnStart(enabled bool) Opt {
	return func(c *SessionConfig) error {
		c.ZeroOnStart = enabled
		return nil
	}
}

func OptStrictHeader(enabled bool) Opt {
	return func(c *SessionConfig) error {
		c.StrictHeader = enabled
		return nil
	}
}

func OptDebug(enabled bool) Opt {
	return func(c *SessionConfig) error {
		c.Debug = enabled
		return nil
	}
}

func OptLogger(l *zap.Logger) Opt {
	return func(c *SessionConfig) error {
		c.Logger = l
		return nil
	}
}

func OptPortOpener(open PortOpener) Opt {
	return func(c *SessionConfig) error {
		c.Open = open
		return nil
	}
}

// Validate checks the parameters the UI is expected to supply.
func (c *SessionConfig) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("%w: no port selected", ErrInvalidConfig)
	}
	if c.DeviceID > frame.MaxStandardID {
		return fmt.Errorf("%w: device id 0x%X outside 0x000-0x%03X", ErrInvalidConfig, c.DeviceID, frame.MaxStandardID)
	}
	if c.PeriodHz < MinPeriodHz || c.PeriodHz > MaxPeriodHz {
		return fmt.Errorf("%w: period %d Hz outside %d-%d", ErrInvalidConfig, c.PeriodHz, MinPeriodHz, MaxPeriodHz)
	}
	if err := c.Ranges.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Period is the transmit interval, 1/PeriodHz.
func (c *SessionConfig) Period() time.Duration {
	return time.Second / time.Duration(c.PeriodHz)
}

// ReadTimeout is the device read timeout, 100 transmit periods.
func (c *SessionConfig) ReadTimeout() time.Duration {
	return readTimeoutPeriods * c.Period()
}
