package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/roffe/motorcan"
	"github.com/spf13/cobra"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports, likely CAN bridges first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ports, err := motorcan.ListPorts()
		if err != nil {
			return err
		}
		if len(ports) == 0 {
			fmt.Println("no serial ports found")
			return nil
		}
		green := color.New(color.FgGreen).SprintFunc()
		for _, port := range ports {
			name := port.String()
			if port.LikelyCAN() {
				name = green(name)
			}
			fmt.Println(name)
			if port.IsUSB {
				fmt.Printf("   USB ID      %s:%s\n", port.VID, port.PID)
				fmt.Printf("   USB serial  %s\n", port.SerialNumber)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(portsCmd)
}
