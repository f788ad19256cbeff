package motorcan

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/roffe/motorcan/pkg/fixedpoint"
	"github.com/roffe/motorcan/pkg/frame"
	"github.com/roffe/motorcan/pkg/motor"
)

// fakePort replays scripted reads. An empty chunk reads as a timeout. Once
// the script is exhausted it either stays silent or keeps replying with
// state frames.
type fakePort struct {
	mu          sync.Mutex
	script      [][]byte
	pending     []byte
	reply       bool
	state       motor.State
	written     [][]byte
	readTimeout time.Duration
	closed      bool
	writeErr    error
	readErr     error
	timeoutErr  error
}

func newSilentPort(script ...[]byte) *fakePort {
	return &fakePort{script: script}
}

func newReplyPort(st motor.State) *fakePort {
	return &fakePort{reply: true, state: st}
}

func (p *fakePort) opener() PortOpener {
	return func(context.Context, string, int) (Port, error) {
		return p, nil
	}
}

func (p *fakePort) Read(b []byte) (int, error) {
	time.Sleep(time.Millisecond)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, errors.New("port closed")
	}
	if p.readErr != nil {
		return 0, p.readErr
	}
	if len(p.pending) == 0 {
		switch {
		case len(p.script) > 0:
			p.pending = p.script[0]
			p.script = p.script[1:]
			if len(p.pending) == 0 {
				return 0, nil
			}
		case p.reply:
			f := motor.NewStateFrame(0, p.state, fixedpoint.V2)
			raw := frame.Encode(f.Header, f.Payload)
			p.pending = raw[:]
		default:
			return 0, nil
		}
	}
	n := copy(b, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, errors.New("port closed")
	}
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	p.written = append(p.written, append([]byte(nil), b...))
	return len(b), nil
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePort) SetReadTimeout(t time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timeoutErr != nil {
		return p.timeoutErr
	}
	p.readTimeout = t
	return nil
}

func (p *fakePort) ResetInputBuffer() error {
	return nil
}

func (p *fakePort) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *fakePort) setWriteErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writeErr = err
}

func (p *fakePort) setReadErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readErr = err
}

func (p *fakePort) frames() []*frame.TxFrame {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*frame.TxFrame
	for _, b := range p.written {
		f, err := frame.DecodeTx(b)
		if err != nil {
			panic(err)
		}
		out = append(out, f)
	}
	return out
}
