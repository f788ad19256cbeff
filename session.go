// Package motorcan drives a brushless motor controller through a USB-CAN
// bridge. A Session owns the serial device and runs two tasks: a
// transmitter writing the current setpoints at a fixed period, and a
// receiver decoding the state frames sent back.
package motorcan

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roffe/motorcan/pkg/fixedpoint"
	"github.com/roffe/motorcan/pkg/frame"
	"github.com/roffe/motorcan/pkg/motor"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Session is a point to point link with one motor controller. The zero
// value is not usable, create one with NewSession.
//
// Both tasks observe cancellation through a single flag checked once per
// loop iteration. A task blocked in a read, write or sleep only notices
// the flag once that call returns, so Stop may wait up to one read timeout.
type Session struct {
	mu sync.Mutex // serializes Start and Stop

	cfg     SessionConfig
	log     *zap.Logger
	started atomic.Int64 // unix nanos

	state   atomic.Int32
	running atomic.Bool
	ranges  atomic.Pointer[fixedpoint.RangeSet]

	writeMu sync.Mutex
	port    Port

	command atomic.Pointer[motor.Command]
	latest  atomic.Pointer[motor.State]

	rxCount  atomic.Uint64
	txCount  atomic.Uint64
	rxErrors atomic.Uint64

	tasks  *errgroup.Group
	txDone chan struct{}

	faultMu sync.Mutex
	fault   error
	errChan chan error

	evtChan chan Event
}

func NewSession() *Session {
	s := &Session{
		log:     zap.NewNop(),
		errChan: make(chan error, 1),
		evtChan: make(chan Event, 100),
	}
	s.command.Store(&motor.Command{})
	return s
}

// Start opens the device, puts the controller in motor mode and spawns the
// transmit and receive tasks. It is only valid from Idle; a faulted session
// has to be stopped first.
func (s *Session) Start(ctx context.Context, cfg SessionConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st := s.SessionState(); st != Idle {
		return fmt.Errorf("%w: %s", ErrSessionActive, st)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Open == nil {
		cfg.Open = OpenPort
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	s.setState(Starting)
	s.cfg = cfg
	s.log = cfg.Logger.Named("session").With(
		zap.String("port", cfg.Port),
		zap.String("device", fmt.Sprintf("0x%03X", cfg.DeviceID)),
	)

	port, err := s.open(ctx)
	if err != nil {
		s.setState(Idle)
		s.Error(err)
		return err
	}

	s.faultMu.Lock()
	s.fault = nil
	s.errChan = make(chan error, 1)
	s.faultMu.Unlock()
	s.latest.Store(nil)
	s.resetStats()
	s.ranges.Store(&cfg.Ranges)
	s.writeMu.Lock()
	s.port = port
	s.writeMu.Unlock()

	if cfg.ZeroOnStart {
		if err := s.writeOpcode(motor.ZeroPosition); err != nil {
			return s.abortStart(err)
		}
	}
	if err := s.writeOpcode(motor.EnterMotorMode); err != nil {
		return s.abortStart(err)
	}

	s.started.Store(time.Now().UnixNano())
	s.txDone = make(chan struct{})
	s.running.Store(true)
	s.setState(Running)

	s.tasks = new(errgroup.Group)
	s.tasks.Go(s.transmit)
	s.tasks.Go(s.receive)

	s.log.Info("session started",
		zap.Int("period_hz", cfg.PeriodHz),
		zap.Duration("read_timeout", cfg.ReadTimeout()),
		zap.String("protocol", cfg.Ranges.Name),
	)
	s.Info(fmt.Sprintf("started %s at %d Hz", cfg.Port, cfg.PeriodHz))
	return nil
}

func (s *Session) open(ctx context.Context) (Port, error) {
	port, err := s.cfg.Open(ctx, s.cfg.Port, s.cfg.PortBaudrate)
	if err != nil {
		return nil, Unrecoverable(&TransportError{Op: "open", Err: err})
	}
	if err := port.SetReadTimeout(s.cfg.ReadTimeout()); err != nil {
		port.Close()
		return nil, Unrecoverable(&TransportError{Op: "configure", Err: err})
	}
	if err := port.ResetInputBuffer(); err != nil {
		s.log.Warn("failed to reset input buffer", zap.Error(err))
	}
	return port, nil
}

func (s *Session) abortStart(err error) error {
	if cerr := s.closePort(); cerr != nil {
		s.log.Warn("failed to close port", zap.Error(cerr))
	}
	s.setState(Idle)
	s.Error(err)
	return err
}

// Stop leaves motor mode, joins both tasks and closes the device. The exit
// frame is written after the transmitter has returned so no setpoint frame
// follows it. Stop on an idle session is a no-op.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.SessionState() == Idle {
		return nil
	}
	s.running.Store(false)
	s.setState(Stopping)

	<-s.txDone
	if err := s.writeOpcode(motor.ExitMotorMode); err != nil {
		s.log.Warn("failed to exit motor mode", zap.Error(err))
	}

	if err := s.tasks.Wait(); err != nil {
		s.log.Debug("tasks exited", zap.Error(err))
	}

	var err error
	if cerr := s.closePort(); cerr != nil {
		err = &TransportError{Op: "close", Err: cerr}
	}
	uptime := s.Uptime()
	s.resetStats()
	s.setState(Idle)
	s.log.Info("session stopped", zap.Duration("uptime", uptime))
	s.Info("stopped")
	return err
}

// SetCommand hands the next setpoints to the transmitter. While running,
// channels outside the active range set are saturated and a warning event
// is sent; Command then reports the saturated values.
func (s *Session) SetCommand(cmd motor.Command) {
	if rs := s.ranges.Load(); rs != nil && s.SessionState() == Running {
		if err := cmd.Validate(*rs); err != nil {
			s.Warn(err.Error())
			cmd = cmd.Clamped(*rs)
		}
	}
	s.command.Store(&cmd)
}

// Command returns the setpoints the transmitter will send next.
func (s *Session) Command() motor.Command {
	return *s.command.Load()
}

// SendOpcode writes a control frame between two setpoint frames.
func (s *Session) SendOpcode(op motor.Opcode) error {
	if s.SessionState() != Running {
		return ErrNotRunning
	}
	if err := s.writeOpcode(op); err != nil {
		s.fatal(err)
		return err
	}
	s.Info(op.String())
	return nil
}

// State returns the last decoded motor state, false until one arrives.
func (s *Session) State() (motor.State, bool) {
	st := s.latest.Load()
	if st == nil {
		return motor.State{}, false
	}
	return *st, true
}

func (s *Session) SessionState() SessionState {
	return SessionState(s.state.Load())
}

func (s *Session) setState(st SessionState) {
	s.state.Store(int32(st))
}

// Uptime is the time since the last successful Start.
func (s *Session) Uptime() time.Duration {
	if s.SessionState() == Idle {
		return 0
	}
	return time.Since(time.Unix(0, s.started.Load()))
}

// Err delivers the error that faulted the running session. Each Start
// creates a new channel, so call Err after Start.
func (s *Session) Err() <-chan error {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	return s.errChan
}

// Fault returns the error that faulted the session, nil if none did since
// the last Start.
func (s *Session) Fault() error {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	return s.fault
}

func (s *Session) Events() <-chan Event {
	return s.evtChan
}

// fatal moves a running session to Faulted and stops both tasks. Only the
// first fault is recorded; errors seen while stopping are dropped.
func (s *Session) fatal(err error) {
	s.running.Store(false)
	// Faulted and its fault become visible together
	s.faultMu.Lock()
	if !s.state.CompareAndSwap(int32(Running), int32(Faulted)) {
		s.faultMu.Unlock()
		return
	}
	s.fault = err
	select {
	case s.errChan <- err:
	default:
	}
	s.faultMu.Unlock()

	s.log.Error("session faulted", zap.Error(err))
	s.Error(err)
}

func (s *Session) transmit() error {
	defer close(s.txDone)
	rl := ratelimit.New(s.cfg.PeriodHz, ratelimit.WithoutSlack)
	rl.Take() // the first take never blocks, ENTER was just written
	for s.running.Load() {
		rl.Take()
		cmd := s.command.Load()
		f := motor.NewCommandFrame(s.cfg.DeviceID, *cmd, s.cfg.Ranges)
		if err := s.write(f); err != nil {
			s.fatal(err)
			return err
		}
		s.txCount.Add(1)
	}
	return nil
}

func (s *Session) receive() error {
	buf := make([]byte, frame.Size)
	readTimeout := s.cfg.ReadTimeout()
	var waited time.Duration
	for s.running.Load() {
		n, err := readFrame(s.port, buf)
		if err != nil {
			err = Unrecoverable(&TransportError{Op: "read", Err: err})
			s.fatal(err)
			return err
		}
		switch {
		case n == 0:
			waited += readTimeout
		case n < frame.Size:
			s.rxErrors.Add(1)
			s.Debug(fmt.Sprintf("short frame, %d bytes", n))
		default:
			st, err := s.decode(buf)
			if err != nil {
				s.rxErrors.Add(1)
				s.Debug(err.Error())
				break
			}
			s.rxCount.Add(1)
			waited = 0
			s.latest.Store(&st)
		}

		if waited > FaultAfter {
			err := Unrecoverable(&FaultError{Reason: FaultTimeout, Waited: waited, RxErrors: s.rxErrors.Load()})
			s.fatal(err)
			return err
		}
		if errs := s.rxErrors.Load(); errs > MaxRxErrors {
			err := Unrecoverable(&FaultError{Reason: FaultRxErrors, Waited: waited, RxErrors: errs})
			s.fatal(err)
			return err
		}
	}
	return nil
}

func (s *Session) decode(b []byte) (motor.State, error) {
	f, err := frame.DecodeRx(b)
	if err != nil {
		return motor.State{}, err
	}
	if s.cfg.StrictHeader {
		if err := f.Validate(); err != nil {
			return motor.State{}, err
		}
	}
	if s.cfg.Debug {
		s.log.Debug("rx", zap.Stringer("frame", f))
	}
	return motor.DecodeState(f.Payload, s.cfg.Ranges), nil
}

// readFrame fills buf with consecutive reads until it is full or a read
// times out. It returns the number of bytes read.
func readFrame(p Port, buf []byte) (int, error) {
	var n int
	for n < len(buf) {
		m, err := p.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
		if m == 0 {
			break
		}
	}
	return n, nil
}

func (s *Session) writeOpcode(op motor.Opcode) error {
	return s.write(motor.NewOpcodeFrame(s.cfg.DeviceID, op))
}

func (s *Session) write(f *frame.TxFrame) error {
	b := frame.Encode(f.Header, f.Payload)
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.port == nil {
		return ErrNotRunning
	}
	if _, err := s.port.Write(b[:]); err != nil {
		return Unrecoverable(&TransportError{Op: "write", Err: err})
	}
	if s.cfg.Debug {
		s.log.Debug("tx", zap.Stringer("frame", f))
	}
	return nil
}

func (s *Session) closePort() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}
