package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/roffe/motorcan"
	"github.com/roffe/motorcan/pkg/fixedpoint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "motorcan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.PeriodHz)
	assert.Equal(t, uint32(1), cfg.DeviceID)
	assert.Equal(t, "v2", cfg.Protocol)
	assert.Equal(t, "info", cfg.Logging.Level)

	rs, err := cfg.RangeSet()
	require.NoError(t, err)
	assert.Equal(t, fixedpoint.V2, rs)
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
port: /dev/ttyACM1
deviceId: 0x10
periodHz: 500
protocol: v1
zeroOnStart: true
logging:
  level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyACM1", cfg.Port)
	assert.Equal(t, uint32(0x10), cfg.DeviceID)
	assert.Equal(t, 500, cfg.PeriodHz)
	assert.True(t, cfg.ZeroOnStart)

	sc, err := cfg.SessionConfig(zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, fixedpoint.V1, sc.Ranges)
	assert.Equal(t, 2*1000*1000, int(sc.Period().Nanoseconds()))
}

func TestInlineRanges(t *testing.T) {
	path := writeFile(t, `
port: /dev/ttyACM0
ranges:
  position: {min: -6.28, max: 6.28}
  velocity: {min: -30, max: 30}
  kp: {min: 0, max: 100}
  kd: {min: 0, max: 2}
  torque: {min: -10, max: 10}
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	rs, err := cfg.RangeSet()
	require.NoError(t, err)
	assert.Equal(t, "custom", rs.Name)
	assert.Equal(t, 30.0, rs.Velocity.Max)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("MOTORCAN_PERIODHZ", "250")
	path := writeFile(t, "port: /dev/ttyACM0\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 250, cfg.PeriodHz)
}

func TestSessionConfigRejectsBadValues(t *testing.T) {
	cfg := &Config{Port: "/dev/ttyACM0", DeviceID: 0x800, PeriodHz: 100, Protocol: "v2"}
	_, err := cfg.SessionConfig(zaptest.NewLogger(t))
	assert.True(t, errors.Is(err, motorcan.ErrInvalidConfig))

	cfg = &Config{Port: "/dev/ttyACM0", DeviceID: 1, PeriodHz: 5000, Protocol: "v2"}
	_, err = cfg.SessionConfig(zaptest.NewLogger(t))
	assert.True(t, errors.Is(err, motorcan.ErrInvalidConfig))

	cfg = &Config{Port: "/dev/ttyACM0", DeviceID: 1, PeriodHz: 100, Protocol: "v3"}
	_, err = cfg.SessionConfig(zaptest.NewLogger(t))
	assert.True(t, errors.Is(err, motorcan.ErrInvalidConfig))
}

func TestMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
