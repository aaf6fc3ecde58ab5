package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"abipanel/internal/store"
	"abipanel/internal/units"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDefaultConfig(t *testing.T) {
	config := GetDefaultConfig()

	assert.NotNil(t, config.Server)
	assert.NotNil(t, config.Store)
	assert.NotNil(t, config.Fetch)
	assert.NotNil(t, config.Panel)
	assert.NotNil(t, config.Events)
	assert.NotNil(t, config.Logging)

	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, store.DriverBolt, config.Store.Driver)
	assert.Equal(t, "0s", config.Fetch.Timeout)
	assert.Equal(t, "ether", config.Panel.DefaultUnit)
	assert.False(t, config.Events.Enabled)
	assert.Equal(t, "info", config.Logging.Level)

	assert.NoError(t, config.Validate())
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	config, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, GetDefaultConfig().Server.Port, config.Server.Port)
	assert.Equal(t, GetDefaultConfig().Store.Path, config.Store.Path)
}

func TestLoadConfig_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9090
store:
  driver: memory
fetch:
  timeout: 15s
panel:
  location: "?abiUrl=https%3A%2F%2Fx%2Fabi.json"
  default_unit: gwei
  default_gas_limit: "21000"
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, config.Server.Port)
	assert.Equal(t, "30s", config.Server.ShutdownTimeout) // 未配置的字段保留默认值
	assert.Equal(t, store.DriverMemory, config.Store.Driver)
	assert.Equal(t, "?abiUrl=https%3A%2F%2Fx%2Fabi.json", config.Panel.Location)
	assert.Equal(t, "debug", config.Logging.Level)
	assert.Equal(t, "text", config.Logging.Format)

	timeout, err := config.FetchTimeout()
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, timeout)

	settings := config.DefaultSettings()
	assert.Equal(t, units.GWei, settings.Unit)
	assert.Equal(t, "21000", settings.GasLimit)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("ABIPANEL_SERVER_PORT", "7070")
	t.Setenv("ABIPANEL_STORE_DRIVER", "memory")

	config, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 7070, config.Server.Port)
	assert.Equal(t, store.DriverMemory, config.Store.Driver)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"bad driver", func(c *Config) { c.Store.Driver = "redis" }},
		{"postgres without dsn", func(c *Config) { c.Store.Driver = store.DriverPostgres }},
		{"bad unit", func(c *Config) { c.Panel.DefaultUnit = "finney" }},
		{"bad timeout", func(c *Config) { c.Fetch.Timeout = "soon" }},
		{"events without brokers", func(c *Config) { c.Events.Enabled = true; c.Events.Brokers = nil }},
		{"missing section", func(c *Config) { c.Panel = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := GetDefaultConfig()
			tt.mutate(config)
			assert.Error(t, config.Validate())
		})
	}
}

func TestStoreOptions(t *testing.T) {
	config := GetDefaultConfig()
	config.Store.Driver = store.DriverMemory

	opts := config.StoreOptions()
	assert.Equal(t, store.DriverMemory, opts.Driver)
	assert.Equal(t, units.Ether, opts.Defaults.Unit)
}
