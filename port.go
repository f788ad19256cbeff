package motorcan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// Port is the part of a serial device the session uses. A Read returning
// (0, nil) means the read timeout expired.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
}

// OpenPort opens a serial device in 8N1 mode. A busy device is retried a
// few times since the bridge may still be released by a previous session.
func OpenPort(ctx context.Context, name string, baudrate int) (Port, error) {
	if runtime.GOOS == "windows" {
		name = strings.ToUpper(name)
	}
	mode := &serial.Mode{
		BaudRate: baudrate,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}
	var p serial.Port
	err := retry.Do(func() error {
		var err error
		p, err = serial.Open(name, mode)
		if err != nil {
			return fmt.Errorf("failed to open com port %q: %w", name, err)
		}
		return nil
	},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(100*time.Millisecond),
		retry.RetryIf(isBusy),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func isBusy(err error) bool {
	var perr *serial.PortError
	if errors.As(err, &perr) {
		return perr.Code() == serial.PortBusy
	}
	return false
}

// PortInfo describes a serial device found on the system.
type PortInfo struct {
	Name         string
	Product      string
	IsUSB        bool
	VID, PID     string
	SerialNumber string
}

// LikelyCAN reports whether the device describes itself as a CAN bridge.
func (p PortInfo) LikelyCAN() bool {
	return strings.Contains(strings.ToLower(p.Product), "can")
}

func (p PortInfo) String() string {
	if p.Product == "" {
		return p.Name
	}
	return fmt.Sprintf("%s [%s]", p.Product, p.Name)
}

// ListPorts returns the serial devices present, likely CAN bridges first.
func ListPorts() ([]PortInfo, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, err
	}
	out := make([]PortInfo, 0, len(ports))
	for _, port := range ports {
		out = append(out, PortInfo{
			Name:         port.Name,
			Product:      port.Product,
			IsUSB:        port.IsUSB,
			VID:          port.VID,
			PID:          port.PID,
			SerialNumber: port.SerialNumber,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LikelyCAN() && !out[j].LikelyCAN()
	})
	return out, nil
}

// FindPort returns the first likely CAN bridge.
func FindPort() (PortInfo, error) {
	ports, err := ListPorts()
	if err != nil {
		return PortInfo{}, err
	}
	if len(ports) == 0 {
		return PortInfo{}, errors.New("no serial ports found")
	}
	if !ports[0].LikelyCAN() {
		return PortInfo{}, errors.New("no CAN bridge found")
	}
	return ports[0], nil
}
