package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/roffe/motorcan"
	"github.com/roffe/motorcan/pkg/bar"
	"github.com/roffe/motorcan/pkg/motor"
	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep <from> <to>",
	Short: "Step the position setpoint from one angle to another",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		var from, to float64
		if _, err := fmt.Sscan(args[0], &from); err != nil {
			return fmt.Errorf("invalid start position: %w", err)
		}
		if _, err := fmt.Sscan(args[1], &to); err != nil {
			return fmt.Errorf("invalid end position: %w", err)
		}
		flags := cmd.Flags()
		steps, err := flags.GetInt("steps")
		if err != nil {
			return err
		}
		if steps < 1 {
			return errors.New("steps must be at least 1")
		}
		dwell, err := flags.GetDuration("dwell")
		if err != nil {
			return err
		}
		kp, err := flags.GetFloat64(flagKp)
		if err != nil {
			return err
		}
		kd, err := flags.GetFloat64(flagKd)
		if err != nil {
			return err
		}

		cfg, err := sessionConfig()
		if err != nil {
			return err
		}
		if _, err := cfg.Ranges.Position.Clamp(from); err != nil {
			return err
		}
		if _, err := cfg.Ranges.Position.Clamp(to); err != nil {
			return err
		}

		s := motorcan.NewSession()
		c := motor.Command{Position: from, Kp: kp, Kd: kd}
		s.SetCommand(c)
		if err := s.Start(ctx, *cfg); err != nil {
			return err
		}
		defer s.Stop()

		pb := bar.New(steps, fmt.Sprintf("sweep %.3f → %.3f rad", from, to))
		for i := 1; i <= steps; i++ {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case err := <-s.Err():
				return err
			case <-time.After(dwell):
			}
			c.Position = from + (to-from)*float64(i)/float64(steps)
			s.SetCommand(c)
			if err := pb.Add(1); err != nil {
				return err
			}
		}

		if st, ok := s.State(); ok {
			fmt.Printf("final: %s (error %.4f rad)\n", st, st.Position-to)
		}
		fmt.Println(s.Stats())
		return nil
	},
}

func init() {
	f := sweepCmd.Flags()
	f.Int("steps", 50, "number of setpoint steps")
	f.Duration("dwell", 100*time.Millisecond, "time spent at each step")
	f.Float64(flagKp, 5, "position gain")
	f.Float64(flagKd, 0.5, "velocity gain")
	rootCmd.AddCommand(sweepCmd)
}
