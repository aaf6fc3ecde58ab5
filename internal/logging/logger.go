package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level" json:"level" yaml:"level"`                   // 日志级别 (debug, info, warn, error)
	Format     string `mapstructure:"format" json:"format" yaml:"format"`                // 日志格式 (json, text)
	Output     string `mapstructure:"output" json:"output" yaml:"output"`                // 输出路径 (stdout, stderr, file path)
	Rotation   bool   `mapstructure:"rotation" json:"rotation" yaml:"rotation"`          // 是否启用日志轮转
	MaxSize    int    `mapstructure:"max_size" json:"max_size" yaml:"max_size"`          // 单个日志文件最大大小(MB)
	MaxAge     int    `mapstructure:"max_age" json:"max_age" yaml:"max_age"`             // 日志文件保留天数
	MaxBackups int    `mapstructure:"max_backups" json:"max_backups" yaml:"max_backups"` // 保留的日志文件数量
	Compress   bool   `mapstructure:"compress" json:"compress" yaml:"compress"`          // 是否压缩轮转的日志文件
}

// DefaultLogConfig 默认日志配置
func DefaultLogConfig() *LogConfig {
	return &LogConfig{
		Level:      "info",
		Format:     "text",
		Output:     "stderr",
		Rotation:   false,
		MaxSize:    100,
		MaxAge:     30,
		MaxBackups: 3,
		Compress:   true,
	}
}

// NewLogger 按配置创建 logrus 日志器
func NewLogger(config *LogConfig) (*logrus.Logger, error) {
	if config == nil {
		config = DefaultLogConfig()
	}

	level, err := logrus.ParseLevel(strings.ToLower(config.Level))
	if err != nil {
		return nil, fmt.Errorf("无效的日志级别 '%s': %w", config.Level, err)
	}

	writer, err := getLogWriter(config)
	if err != nil {
		return nil, fmt.Errorf("创建日志输出失败: %w", err)
	}

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetOutput(writer)

	switch config.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	default:
		return nil, fmt.Errorf("不支持的日志格式: %s", config.Format)
	}

	return logger, nil
}

// getLogWriter 获取日志输出
func getLogWriter(config *LogConfig) (io.Writer, error) {
	switch config.Output {
	case "stdout":
		return os.Stdout, nil
	case "stderr", "":
		return os.Stderr, nil
	}

	// 文件输出
	dir := filepath.Dir(config.Output)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("创建日志目录失败: %w", err)
	}

	if config.Rotation {
		return &lumberjack.Logger{
			Filename:   config.Output,
			MaxSize:    config.MaxSize,
			MaxAge:     config.MaxAge,
			MaxBackups: config.MaxBackups,
			Compress:   config.Compress,
		}, nil
	}

	file, err := os.OpenFile(config.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("打开日志文件失败: %w", err)
	}

	return file, nil
}

// ComponentLogger 组件专用日志器
func ComponentLogger(base *logrus.Logger, component string) *logrus.Entry {
	return base.WithField("component", component)
}
