package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/org-arl/go-fjage/config"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadTCPDefaults(t *testing.T) {
	path := writeConfig(t, "tcp:\n  host: localhost\n")
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "tcp", cfg.Transport)
	assert.Equal(t, 5081, cfg.TCP.Port)
	assert.Equal(t, "localhost:5081", cfg.Addr())
}

func TestLoadSerialDefaults(t *testing.T) {
	path := writeConfig(t, "transport: serial\nserial:\n  device: /dev/ttyUSB0\n")
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "N81", cfg.Serial.Settings)
	assert.Equal(t, 9600, cfg.Serial.Baud)
}

func TestLoadExplicitOverridesDefaults(t *testing.T) {
	path := writeConfig(t, "tcp:\n  host: localhost\n  port: 1100\ndebug: true\nsubscribe: [\"#mytopic\"]\n")
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1100, cfg.TCP.Port)
	assert.True(t, cfg.Debug)
	assert.Equal(t, []string{"#mytopic"}, cfg.Subscribe)
}

func TestLoadMissingTCPHostFails(t *testing.T) {
	path := writeConfig(t, "transport: tcp\n")
	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestLoadMissingSerialDeviceFails(t *testing.T) {
	path := writeConfig(t, "transport: serial\n")
	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestLoadUnknownTransportFails(t *testing.T) {
	path := writeConfig(t, "transport: carrier-pigeon\n")
	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
