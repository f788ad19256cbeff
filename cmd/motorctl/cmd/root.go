package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/roffe/motorcan"
	"github.com/roffe/motorcan/pkg/config"
	"github.com/roffe/motorcan/pkg/fixedpoint"
	"github.com/roffe/motorcan/pkg/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:          "motorctl",
	Short:        "Command a brushless motor controller over a USB-CAN bridge",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadProfile(cmd.Flags())
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

const (
	flagConfig    = "config"
	flagPort      = "port"
	flagBaudrate  = "baudrate"
	flagDeviceID  = "id"
	flagPeriod    = "rate"
	flagProtocol  = "protocol"
	flagDebug     = "debug"
	flagLogLevel  = "log-level"
	flagLogFormat = "log-format"
)

var (
	profile *config.Config
	logger  *zap.Logger
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringP(flagConfig, "c", "", "profile file (default ./motorcan.yaml)")
	pf.StringP(flagPort, "p", "", "com-port, empty = first CAN bridge found")
	pf.IntP(flagBaudrate, "b", motorcan.DefaultBaudrate, "baudrate")
	pf.StringP(flagDeviceID, "i", "0x01", "CAN id of the motor controller in hex, 000-7FF")
	pf.IntP(flagPeriod, "r", 100, fmt.Sprintf("command rate in Hz, %d-%d", motorcan.MinPeriodHz, motorcan.MaxPeriodHz))
	pf.String(flagProtocol, fixedpoint.Default.Name, fmt.Sprintf("protocol revision %v", fixedpoint.Names()))
	pf.BoolP(flagDebug, "d", false, "log every frame")
	pf.String(flagLogLevel, "info", "log level: debug, info, warn, error")
	pf.String(flagLogFormat, "console", "log format: console, json")
}

func loadProfile(flags *pflag.FlagSet) error {
	v, err := config.New(flags.Lookup(flagConfig).Value.String())
	if err != nil {
		return err
	}
	for key, name := range map[string]string{
		"port":           flagPort,
		"baudrate":       flagBaudrate,
		"periodHz":       flagPeriod,
		"protocol":       flagProtocol,
		"debug":          flagDebug,
		"logging.level":  flagLogLevel,
		"logging.format": flagLogFormat,
	} {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return err
		}
	}
	if f := flags.Lookup(flagDeviceID); f.Changed {
		id, err := parseDeviceID(f.Value.String())
		if err != nil {
			return err
		}
		v.Set("deviceId", id)
	}

	profile, err = config.Decode(v)
	if err != nil {
		return err
	}
	logger = logging.New(profile.Logging.Level, profile.Logging.Format)
	return nil
}

// parseDeviceID reads a hex CAN id, the 0x prefix is optional.
func parseDeviceID(s string) (uint32, error) {
	digits := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	id, err := strconv.ParseUint(digits, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid device id %q: %w", s, err)
	}
	if id > 0x7FF {
		return 0, fmt.Errorf("device id 0x%X outside 0x000-0x7FF", id)
	}
	return uint32(id), nil
}

// sessionConfig resolves the profile, picking the first CAN bridge when no
// port was given.
func sessionConfig() (*motorcan.SessionConfig, error) {
	if profile.Port == "" {
		p, err := motorcan.FindPort()
		if err != nil {
			return nil, fmt.Errorf("no port given and %w", err)
		}
		logger.Info("using port", zap.Stringer("port", p))
		profile.Port = p.Name
	}
	return profile.SessionConfig(logger)
}
