package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/waterdeep/usersync/internal/conf"
)

func TestWriteConfigRefusesExistingFile(t *testing.T) {
	t.Parallel()

	output := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(output, []byte("debug: true\n"), 0o644))

	err := writeConfig(&conf.Settings{}, output, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	// The existing file is untouched.
	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, "debug: true\n", string(data))
}

func TestWriteConfigForceOverwrites(t *testing.T) {
	t.Parallel()

	output := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(output, []byte("debug: true\n"), 0o644))

	settings := &conf.Settings{}
	settings.Main.Name = "usersync"
	require.NoError(t, writeConfig(settings, output, true))

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(data), "usersync")
}

func TestWriteConfigNewFile(t *testing.T) {
	t.Parallel()

	output := filepath.Join(t.TempDir(), "config.yaml")
	settings := &conf.Settings{}
	settings.Queue.Broker = "tcp://localhost:1883"

	require.NoError(t, writeConfig(settings, output, false))

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(data), "tcp://localhost:1883")
}
