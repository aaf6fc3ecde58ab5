package store

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// 存储驱动
const (
	DriverMemory   = "memory"
	DriverBolt     = "bolt"
	DriverPostgres = "postgres"
)

// Options 存储选项
type Options struct {
	Driver   string
	Path     string
	DSN      string
	Defaults UserSettings
}

// Open 按驱动创建存储
func Open(opts Options, logger *logrus.Logger) (Store, error) {
	switch opts.Driver {
	case DriverMemory, "":
		s := NewMemoryStore(opts.Defaults)
		s.logger = logger
		return s, nil
	case DriverBolt:
		return NewBoltStore(opts.Path, opts.Defaults, logger)
	case DriverPostgres:
		if opts.DSN == "" {
			return nil, fmt.Errorf("postgres 存储需要配置 dsn")
		}
		return NewPostgresStore(opts.DSN, opts.Defaults, logger)
	default:
		return nil, fmt.Errorf("不支持的存储驱动: %s", opts.Driver)
	}
}
