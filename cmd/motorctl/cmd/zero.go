package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/roffe/motorcan"
	"github.com/roffe/motorcan/pkg/motor"
	"github.com/spf13/cobra"
)

var zeroCmd = &cobra.Command{
	Use:   "zero",
	Short: "Make the current shaft angle the controller's zero position",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		yes, err := cmd.Flags().GetBool("yes")
		if err != nil {
			return err
		}
		if !yes {
			fmt.Println("The controller will forget its current zero. Continue?")
			if !yesNo() {
				return nil
			}
		}

		cfg, err := sessionConfig()
		if err != nil {
			return err
		}

		s := motorcan.NewSession()
		if err := s.Start(ctx, *cfg); err != nil {
			return err
		}
		defer s.Stop()

		if st, ok := waitForState(s, time.Second); ok {
			fmt.Printf("before: %s\n", st)
		}
		if err := s.SendOpcode(motor.ZeroPosition); err != nil {
			return err
		}
		// give the controller a few periods to report the new origin
		time.Sleep(20 * cfg.Period())
		st, ok := waitForState(s, time.Second)
		if !ok {
			return fmt.Errorf("no state received from 0x%03X", cfg.DeviceID)
		}
		fmt.Printf("after:  %s\n", green(st))
		return nil
	},
}

func init() {
	zeroCmd.Flags().BoolP("yes", "y", false, "don't ask for confirmation")
	rootCmd.AddCommand(zeroCmd)
}

func yesNo() bool {
	prompt := promptui.Select{
		Label:    "[Yes/No]",
		HideHelp: true,
		Items:    []string{"Yes", "No"},
	}
	_, result, err := prompt.Run()
	if err != nil {
		log.Fatalf("Prompt failed %v\n", err)
	}
	return result == "Yes"
}

func waitForState(s *motorcan.Session, timeout time.Duration) (motor.State, bool) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if st, ok := s.State(); ok {
			return st, true
		}
		if s.SessionState() != motorcan.Running {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	return motor.State{}, false
}
