package cmd

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/roffe/motorcan/pkg/frame"
	"github.com/roffe/motorcan/pkg/motor"
	"github.com/spf13/cobra"
)

var decodeCmd = &cobra.Command{
	Use:   "decode <hex>",
	Short: "Decode a captured 24 byte frame",
	Long: `Decodes a frame as sent to or received from the bridge, e.g.

  motorctl decode "A5 5A 11 14 01 00 00 00 00 08 00 00 01 80 00 80 08 00 00 00 00 00 00 00"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := parseHex(strings.Join(args, ""))
		if err != nil {
			return err
		}
		rs, err := profile.RangeSet()
		if err != nil {
			return err
		}

		if rx, err := frame.DecodeRx(b); err == nil {
			fmt.Println(rx.ColorString())
			fmt.Println(motor.DecodeState(rx.Payload, rs))
			return nil
		} else if !errors.Is(err, frame.ErrInvalidMagic) {
			return err
		}

		tx, err := frame.DecodeTx(b)
		if err != nil {
			return err
		}
		fmt.Println(tx.ColorString())
		if op, ok := motor.IsOpcode(tx.Payload); ok {
			fmt.Println(op)
			return nil
		}
		fmt.Println(motor.DecodeCommand(tx.Payload, rs))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(decodeCmd)
}

func parseHex(s string) ([]byte, error) {
	s = strings.NewReplacer(" ", "", ":", "", "0x", "", "0X", "").Replace(s)
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	return b, nil
}
