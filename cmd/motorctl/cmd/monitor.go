package cmd

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jroimartin/gocui"
	"github.com/roffe/motorcan"
	"github.com/roffe/motorcan/cmd/motorctl/pkg/ui"
	"github.com/roffe/motorcan/pkg/fixedpoint"
	"github.com/roffe/motorcan/pkg/motor"
	"github.com/spf13/cobra"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Interactive console for driving the motor",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := sessionConfig()
		if err != nil {
			return err
		}
		m := &monitor{
			ctx:    ctx,
			cfg:    *cfg,
			s:      motorcan.NewSession(),
			fields: motor.FieldsFor(cfg.Ranges),
			value: &ui.Input{
				Name:      "value",
				Title:     "Value",
				X:         0,
				Y:         9,
				W:         30,
				MaxLength: 20,
			},
		}
		if err := m.s.Start(ctx, m.cfg); err != nil {
			return err
		}
		defer m.s.Stop()

		g, err := gocui.NewGui(gocui.OutputNormal)
		if err != nil {
			return err
		}
		g.Cursor = true
		defer g.Close()

		g.SetManagerFunc(m.layout)
		if err := m.keybindings(g); err != nil {
			return err
		}

		go m.refresh(g)

		if err := g.MainLoop(); err != nil && err != gocui.ErrQuit {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}

type channel struct {
	name  string
	get   func(motor.Command) float64
	set   func(*motor.Command, float64)
	field func(motor.Fields) fixedpoint.Field
}

var channels = []channel{
	{"position", func(c motor.Command) float64 { return c.Position }, func(c *motor.Command, v float64) { c.Position = v }, func(f motor.Fields) fixedpoint.Field { return f.Position }},
	{"velocity", func(c motor.Command) float64 { return c.Velocity }, func(c *motor.Command, v float64) { c.Velocity = v }, func(f motor.Fields) fixedpoint.Field { return f.Velocity }},
	{"kp", func(c motor.Command) float64 { return c.Kp }, func(c *motor.Command, v float64) { c.Kp = v }, func(f motor.Fields) fixedpoint.Field { return f.Kp }},
	{"kd", func(c motor.Command) float64 { return c.Kd }, func(c *motor.Command, v float64) { c.Kd = v }, func(f motor.Fields) fixedpoint.Field { return f.Kd }},
	{"torque", func(c motor.Command) float64 { return c.Torque }, func(c *motor.Command, v float64) { c.Torque = v }, func(f motor.Fields) fixedpoint.Field { return f.Torque }},
}

// nudgeSteps is how many quantization steps one arrow press moves a setpoint.
const nudgeSteps = 64

type monitor struct {
	ctx    context.Context
	cfg    motorcan.SessionConfig
	s      *motorcan.Session
	fields motor.Fields
	value  *ui.Input

	selected int
	busy     atomic.Bool // a start or stop is in flight
}

// refresh redraws state and stats at 10 Hz until the gui exits.
func (m *monitor) refresh(g *gocui.Gui) {
	t := time.NewTicker(100 * time.Millisecond)
	defer t.Stop()
	for {
		select {
		case <-m.ctx.Done():
			g.Update(func(*gocui.Gui) error { return gocui.ErrQuit })
			return
		case e := <-m.s.Events():
			g.Update(func(g *gocui.Gui) error {
				v, err := g.View("events")
				if err != nil {
					return err
				}
				fmt.Fprintf(v, "%s %s\n", time.Now().Format("15:04:05.000"), e)
				return nil
			})
		case <-t.C:
			g.Update(m.draw)
		}
	}
}

func (m *monitor) draw(g *gocui.Gui) error {
	v, err := g.View("state")
	if err != nil {
		return err
	}
	v.Clear()
	fmt.Fprintf(v, "session  %s\n", m.s.SessionState())
	fmt.Fprintf(v, "uptime   %s\n", m.s.Uptime().Truncate(time.Millisecond))
	if st, ok := m.s.State(); ok {
		fmt.Fprintf(v, "device   0x%02X\n", st.DeviceID)
		fmt.Fprintf(v, "position %9.4f rad\n", st.Position)
		fmt.Fprintf(v, "velocity %9.4f rad/s\n", st.Velocity)
		fmt.Fprintf(v, "torque   %9.4f N·m\n", st.Torque)
	} else {
		fmt.Fprintln(v, "no state received")
	}
	if err := m.s.Fault(); err != nil {
		fmt.Fprintln(v, red(err.Error()))
	}

	v, err = g.View("stats")
	if err != nil {
		return err
	}
	v.Clear()
	stats := m.s.Stats()
	fmt.Fprintf(v, "tx     %d\nrx     %d\nerrors %d\n", stats.Tx, stats.Rx, stats.RxErrors)

	v, err = g.View("setpoints")
	if err != nil {
		return err
	}
	v.Clear()
	c := m.s.Command()
	for i, ch := range channels {
		marker := " "
		if i == m.selected {
			marker = ">"
		}
		fmt.Fprintf(v, "%s %-8s %9.4f %s\n", marker, ch.name, ch.get(c), ch.field(m.fields).Range)
	}
	return nil
}

func (m *monitor) layout(g *gocui.Gui) error {
	maxX, maxY := g.Size()

	if v, err := g.SetView("setpoints", 0, 0, 45, 6); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Setpoints"
	}
	if v, err := g.SetView("stats", 46, 0, 70, 6); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Stats"
	}
	if v, err := g.SetView("state", 0, 12, 45, 20); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Motor"
	}
	if v, err := g.SetView("help", 46, 7, 70, 20); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Wrap = true
		v.Title = "Help"
		fmt.Fprintln(v, "<Up/Down> Select")
		fmt.Fprintln(v, "<Left/Right> Nudge")
		fmt.Fprintln(v, "<Tab> Edit value")
		fmt.Fprintln(v, "<Enter> Apply value")
		fmt.Fprintln(v, "<z> Zero position")
		fmt.Fprintln(v, "<s> Start/stop")
		fmt.Fprintln(v, "<Q, Ctrl-C> Quit")
	}

	if err := m.value.Layout(g); err != nil {
		return err
	}

	if v, err := g.SetView("events", 0, 21, maxX-1, maxY-1); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Autoscroll = true
		v.Wrap = true
		v.Title = "Events"
		if _, err := g.SetCurrentView("setpoints"); err != nil {
			return err
		}
	}
	return nil
}

func (m *monitor) keybindings(g *gocui.Gui) error {
	for _, kb := range []struct {
		view    string
		key     interface{}
		handler func(*gocui.Gui, *gocui.View) error
	}{
		{"", gocui.KeyCtrlC, quit},
		{"setpoints", 'q', quit},
		{"setpoints", gocui.KeyArrowUp, m.selectBy(-1)},
		{"setpoints", gocui.KeyArrowDown, m.selectBy(1)},
		{"setpoints", gocui.KeyArrowLeft, m.nudge(-1)},
		{"setpoints", gocui.KeyArrowRight, m.nudge(1)},
		{"setpoints", gocui.KeyTab, focus("value")},
		{"setpoints", 'z', m.zero},
		{"setpoints", 's', m.toggleKey},
		{"value", gocui.KeyEnter, m.apply},
		{"value", gocui.KeyTab, focus("setpoints")},
	} {
		if err := g.SetKeybinding(kb.view, kb.key, gocui.ModNone, kb.handler); err != nil {
			return err
		}
	}
	return nil
}

func quit(g *gocui.Gui, v *gocui.View) error {
	return gocui.ErrQuit
}

func focus(name string) func(*gocui.Gui, *gocui.View) error {
	return func(g *gocui.Gui, v *gocui.View) error {
		_, err := g.SetCurrentView(name)
		return err
	}
}

func (m *monitor) selectBy(delta int) func(*gocui.Gui, *gocui.View) error {
	return func(g *gocui.Gui, v *gocui.View) error {
		m.selected = (m.selected + delta + len(channels)) % len(channels)
		return m.draw(g)
	}
}

func (m *monitor) nudge(dir float64) func(*gocui.Gui, *gocui.View) error {
	return func(g *gocui.Gui, v *gocui.View) error {
		ch := channels[m.selected]
		f := ch.field(m.fields)
		c := m.s.Command()
		next, _ := f.Range.Clamp(ch.get(c) + dir*nudgeSteps*f.Step())
		ch.set(&c, next)
		m.s.SetCommand(c)
		return m.draw(g)
	}
}

func (m *monitor) apply(g *gocui.Gui, v *gocui.View) error {
	val, err := m.value.Value(v)
	if err != nil {
		m.event(g, red(fmt.Sprintf("invalid value: %v", err)))
	} else {
		c := m.s.Command()
		channels[m.selected].set(&c, val)
		m.s.SetCommand(c)
	}
	if _, err := g.SetCurrentView("setpoints"); err != nil {
		return err
	}
	return m.draw(g)
}

func (m *monitor) zero(g *gocui.Gui, v *gocui.View) error {
	if err := m.s.SendOpcode(motor.ZeroPosition); err != nil {
		m.event(g, red(err.Error()))
	}
	return nil
}

// toggle starts an idle session and stops a running or faulted one on a
// separate goroutine, since Stop may wait a full read timeout. done gets
// the result. It returns false, doing nothing, while a toggle is in flight.
func (m *monitor) toggle(done func(error)) bool {
	if !m.busy.CompareAndSwap(false, true) {
		return false
	}
	go func() {
		var err error
		if m.s.SessionState() == motorcan.Idle {
			err = m.s.Start(m.ctx, m.cfg)
		} else {
			err = m.s.Stop()
		}
		m.busy.Store(false)
		done(err)
	}()
	return true
}

func (m *monitor) toggleKey(g *gocui.Gui, v *gocui.View) error {
	started := m.toggle(func(err error) {
		g.Update(func(g *gocui.Gui) error {
			if err != nil {
				m.event(g, red(err.Error()))
			}
			return m.draw(g)
		})
	})
	if !started {
		m.event(g, yellow("start/stop already in progress"))
	}
	return nil
}

// event writes to the events view from inside a gui callback.
func (m *monitor) event(g *gocui.Gui, line string) {
	if v, err := g.View("events"); err == nil {
		fmt.Fprintf(v, "%s %s\n", time.Now().Format("15:04:05.000"), line)
	}
}
