package cmd

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/roffe/motorcan"
	"github.com/roffe/motorcan/pkg/motor"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	flagPosition = "position"
	flagVelocity = "velocity"
	flagKp       = "kp"
	flagKd       = "kd"
	flagTorque   = "torque"
	flagDuration = "duration"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Hold a fixed setpoint and print the motor state",
	Long: `Puts the controller in motor mode and streams one setpoint until
ctrl-c or --duration has passed, then exits motor mode.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		flags := cmd.Flags()

		var c motor.Command
		for name, dst := range map[string]*float64{
			flagPosition: &c.Position,
			flagVelocity: &c.Velocity,
			flagKp:       &c.Kp,
			flagKd:       &c.Kd,
			flagTorque:   &c.Torque,
		} {
			v, err := flags.GetFloat64(name)
			if err != nil {
				return err
			}
			*dst = v
		}
		duration, err := flags.GetDuration(flagDuration)
		if err != nil {
			return err
		}

		cfg, err := sessionConfig()
		if err != nil {
			return err
		}

		s := motorcan.NewSession()
		s.SetCommand(c)
		if err := s.Start(ctx, *cfg); err != nil {
			return err
		}
		defer func() {
			fmt.Println()
			stats := s.Stats()
			if err := s.Stop(); err != nil {
				logger.Error("stop failed", zap.Error(err))
			}
			fmt.Println(stats)
		}()

		var deadline <-chan time.Time
		if duration > 0 {
			deadline = time.After(duration)
		}

		t := time.NewTicker(100 * time.Millisecond)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-deadline:
				return nil
			case err := <-s.Err():
				return err
			case e := <-s.Events():
				printEvent(e)
			case <-t.C:
				printStatus(s)
			}
		}
	},
}

func init() {
	f := runCmd.Flags()
	f.Float64(flagPosition, 0, "position setpoint, rad")
	f.Float64(flagVelocity, 0, "velocity setpoint, rad/s")
	f.Float64(flagKp, 0, "position gain")
	f.Float64(flagKd, 0, "velocity gain")
	f.Float64(flagTorque, 0, "feed forward torque, N·m")
	f.Duration(flagDuration, 0, "stop after this long, 0 = until ctrl-c")
	rootCmd.AddCommand(runCmd)
}

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
)

func printStatus(s *motorcan.Session) {
	st, ok := s.State()
	state := "waiting for controller"
	if ok {
		state = st.String()
	}
	fmt.Printf("\r%s %8s %s  %s   ", green(s.SessionState()), s.Uptime().Truncate(time.Millisecond), state, s.Stats())
}

func printEvent(e motorcan.Event) {
	line := e.String()
	switch e.Type {
	case motorcan.EventTypeError:
		line = red(line)
	case motorcan.EventTypeWarning:
		line = yellow(line)
	case motorcan.EventTypeDebug:
		return
	}
	fmt.Printf("\r\n%s\n", line)
}
