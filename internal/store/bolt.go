package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

const (
	// DefaultBoltPath 默认数据库路径
	DefaultBoltPath = "./data/abipanel.db"

	// StateBucket 存储桶名称
	StateBucket = "state"
)

// boltBackend BoltDB 持久化后端
type boltBackend struct {
	db     *bolt.DB
	dbPath string
	logger *logrus.Logger
}

// NewBoltStore 创建基于 BoltDB 的存储
func NewBoltStore(dbPath string, defaults UserSettings, logger *logrus.Logger) (*StateStore, error) {
	if dbPath == "" {
		dbPath = DefaultBoltPath
	}

	// 确保目录存在
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("创建数据目录失败: %w", err)
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("打开状态数据库失败: %w", err)
	}

	backend := &boltBackend{
		db:     db,
		dbPath: dbPath,
		logger: logger,
	}

	if err := backend.initDB(); err != nil {
		db.Close()
		return nil, fmt.Errorf("初始化数据库失败: %w", err)
	}

	store, err := newStateStore(backend, defaults, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	logger.Infof("状态存储已初始化，数据库路径: %s", dbPath)
	return store, nil
}

// initDB 初始化数据库结构
func (b *boltBackend) initDB() error {
	return b.db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(StateBucket)); err != nil {
			return fmt.Errorf("创建状态存储桶失败: %w", err)
		}
		return nil
	})
}

// Load 读取全部键值
func (b *boltBackend) Load() (map[string]string, error) {
	entries := make(map[string]string)

	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(StateBucket))
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			entries[string(k)] = string(v)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return entries, nil
}

// Save 在一个事务内写入
func (b *boltBackend) Save(entries map[string]string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(StateBucket))
		if bucket == nil {
			return fmt.Errorf("状态存储桶不存在")
		}

		for k, v := range entries {
			if err := bucket.Put([]byte(k), []byte(v)); err != nil {
				return fmt.Errorf("保存 %s 失败: %w", k, err)
			}
		}
		return nil
	})
}

// Close 关闭数据库
func (b *boltBackend) Close() error {
	if b.db != nil {
		b.logger.Info("关闭状态数据库")
		return b.db.Close()
	}
	return nil
}
