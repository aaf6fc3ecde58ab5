package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"abipanel/internal/logging"
	"abipanel/internal/store"
	"abipanel/internal/units"

	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀，例如 ABIPANEL_SERVER_PORT
const EnvPrefix = "ABIPANEL"

// Config 主配置
type Config struct {
	Server  *ServerConfig      `mapstructure:"server"`
	Store   *StoreConfig       `mapstructure:"store"`
	Fetch   *FetchConfig       `mapstructure:"fetch"`
	Panel   *PanelConfig       `mapstructure:"panel"`
	Events  *EventsConfig      `mapstructure:"events"`
	Logging *logging.LogConfig `mapstructure:"logging"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Port            int    `mapstructure:"port"`
	ShutdownTimeout string `mapstructure:"shutdown_timeout"`
	MaxLogs         int    `mapstructure:"max_logs"`
}

// StoreConfig 共享状态存储配置
type StoreConfig struct {
	Driver string `mapstructure:"driver"` // memory, bolt, postgres
	Path   string `mapstructure:"path"`
	DSN    string `mapstructure:"dsn"`
}

// FetchConfig ABI 获取配置
type FetchConfig struct {
	Timeout   string `mapstructure:"timeout"` // 0s 表示不设超时
	UserAgent string `mapstructure:"user_agent"`
	MaxBytes  int64  `mapstructure:"max_bytes"`
}

// PanelConfig 面板配置
type PanelConfig struct {
	Location        string `mapstructure:"location"` // 初始查询串，例如 ?abiUrl=...&address=...
	DefaultUnit     string `mapstructure:"default_unit"`
	DefaultGasLimit string `mapstructure:"default_gas_limit"`
}

// EventsConfig 状态变更通知配置
type EventsConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// LoadConfig 加载配置，文件不存在时使用默认配置，环境变量优先
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvKeys(v)

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("读取配置文件失败: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("检查配置文件失败: %w", err)
		}
	}

	config := GetDefaultConfig()
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// bindEnvKeys 绑定环境变量，AutomaticEnv 对 Unmarshal 只识别已知键
func bindEnvKeys(v *viper.Viper) {
	keys := []string{
		"server.port", "server.shutdown_timeout", "server.max_logs",
		"store.driver", "store.path", "store.dsn",
		"fetch.timeout", "fetch.user_agent", "fetch.max_bytes",
		"panel.location", "panel.default_unit", "panel.default_gas_limit",
		"events.enabled", "events.brokers", "events.topic",
		"logging.level", "logging.format", "logging.output",
	}
	for _, key := range keys {
		_ = v.BindEnv(key)
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.Server == nil || c.Store == nil || c.Fetch == nil || c.Panel == nil || c.Events == nil || c.Logging == nil {
		return fmt.Errorf("配置无效: 缺少必要的配置段")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("配置无效: 端口超出范围 %d", c.Server.Port)
	}

	if _, err := c.ShutdownTimeout(); err != nil {
		return fmt.Errorf("配置无效: shutdown_timeout: %w", err)
	}

	if _, err := c.FetchTimeout(); err != nil {
		return fmt.Errorf("配置无效: fetch.timeout: %w", err)
	}

	switch c.Store.Driver {
	case store.DriverMemory, store.DriverBolt:
	case store.DriverPostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("配置无效: postgres 存储需要 dsn")
		}
	default:
		return fmt.Errorf("配置无效: 不支持的存储驱动 %s", c.Store.Driver)
	}

	if _, err := units.Parse(c.Panel.DefaultUnit); err != nil {
		return fmt.Errorf("配置无效: default_unit: %w", err)
	}

	if c.Events.Enabled {
		if len(c.Events.Brokers) == 0 {
			return fmt.Errorf("配置无效: 启用事件通知需要配置 brokers")
		}
		if c.Events.Topic == "" {
			return fmt.Errorf("配置无效: 启用事件通知需要配置 topic")
		}
	}

	return nil
}

// FetchTimeout 解析获取超时，0 表示不设超时
func (c *Config) FetchTimeout() (time.Duration, error) {
	if c.Fetch.Timeout == "" {
		return 0, nil
	}
	return time.ParseDuration(c.Fetch.Timeout)
}

// ShutdownTimeout 解析停机超时
func (c *Config) ShutdownTimeout() (time.Duration, error) {
	if c.Server.ShutdownTimeout == "" {
		return 30 * time.Second, nil
	}
	return time.ParseDuration(c.Server.ShutdownTimeout)
}

// DefaultSettings 用户设置默认值
func (c *Config) DefaultSettings() store.UserSettings {
	unit, err := units.Parse(c.Panel.DefaultUnit)
	if err != nil {
		unit = units.Ether
	}
	return store.UserSettings{
		Unit:     unit,
		GasLimit: c.Panel.DefaultGasLimit,
	}
}

// StoreOptions 转换为存储选项
func (c *Config) StoreOptions() store.Options {
	return store.Options{
		Driver:   c.Store.Driver,
		Path:     c.Store.Path,
		DSN:      c.Store.DSN,
		Defaults: c.DefaultSettings(),
	}
}

// GetDefaultConfig 获取默认配置
func GetDefaultConfig() *Config {
	return &Config{
		Server: &ServerConfig{
			Port:            8080,
			ShutdownTimeout: "30s",
			MaxLogs:         1000,
		},
		Store: &StoreConfig{
			Driver: store.DriverBolt,
			Path:   store.DefaultBoltPath,
		},
		Fetch: &FetchConfig{
			Timeout:   "0s",
			UserAgent: "abipanel/1.0",
			MaxBytes:  10 << 20,
		},
		Panel: &PanelConfig{
			Location:        "",
			DefaultUnit:     string(units.Ether),
			DefaultGasLimit: "",
		},
		Events: &EventsConfig{
			Enabled: false,
			Brokers: []string{"localhost:9092"},
			Topic:   "abipanel_events",
		},
		Logging: logging.DefaultLogConfig(),
	}
}
