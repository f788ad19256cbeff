// Package config loads the operator profile: which bridge to open, which
// controller to address and how fast to command it.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roffe/motorcan"
	"github.com/roffe/motorcan/pkg/fixedpoint"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// LoggingConfig selects log level and encoding.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Config is the profile file layout.
type Config struct {
	Port         string `mapstructure:"port"`
	Baudrate     int    `mapstructure:"baudrate"`
	DeviceID     uint32 `mapstructure:"deviceId"`
	PeriodHz     int    `mapstructure:"periodHz"`
	Protocol     string `mapstructure:"protocol"`
	ZeroOnStart  bool   `mapstructure:"zeroOnStart"`
	StrictHeader bool   `mapstructure:"strictHeader"`
	Debug        bool   `mapstructure:"debug"`

	// Ranges overrides the named protocol revision when set.
	Ranges *fixedpoint.RangeSet `mapstructure:"ranges"`

	Logging LoggingConfig `mapstructure:"logging"`
}

// New returns a viper instance with defaults and MOTORCAN_ environment
// overrides, reading path if given, else motorcan.yaml from the working
// directory or $HOME/.config/motorcan when present.
func New(path string) (*viper.Viper, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/motorcan")
		v.SetConfigName("motorcan")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	v.SetEnvPrefix("MOTORCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

// Load is New followed by Decode.
func Load(path string) (*Config, error) {
	v, err := New(path)
	if err != nil {
		return nil, err
	}
	return Decode(v)
}

// Decode unmarshals v, including any flags bound to it.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "")
	v.SetDefault("baudrate", motorcan.DefaultBaudrate)
	v.SetDefault("deviceId", 1)
	v.SetDefault("periodHz", 100)
	v.SetDefault("protocol", fixedpoint.Default.Name)
	v.SetDefault("zeroOnStart", false)
	v.SetDefault("strictHeader", false)
	v.SetDefault("debug", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// RangeSet resolves the configured revision, honouring an inline override.
func (c *Config) RangeSet() (fixedpoint.RangeSet, error) {
	if c.Ranges != nil {
		rs := *c.Ranges
		if rs.Name == "" {
			rs.Name = "custom"
		}
		if err := rs.Validate(); err != nil {
			return fixedpoint.RangeSet{}, err
		}
		return rs, nil
	}
	return fixedpoint.Lookup(c.Protocol)
}

// SessionConfig converts the profile into a session config.
func (c *Config) SessionConfig(log *zap.Logger) (*motorcan.SessionConfig, error) {
	rs, err := c.RangeSet()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", motorcan.ErrInvalidConfig, err)
	}
	cfg, err := motorcan.NewSessionConfig(
		motorcan.OptPort(c.Port, c.Baudrate),
		motorcan.OptDeviceID(c.DeviceID),
		motorcan.OptPeriod(c.PeriodHz),
		motorcan.OptZeroOnStart(c.ZeroOnStart),
		motorcan.OptStrictHeader(c.StrictHeader),
		motorcan.OptDebug(c.Debug),
		motorcan.OptLogger(log),
	)
	if err != nil {
		return nil, err
	}
	cfg.Ranges = rs
	return cfg, cfg.Validate()
}
