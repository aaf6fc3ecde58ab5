package store

import (
	"context"
	"database/sql"
	"fmt"

	"abipanel/internal/retry"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

const createStateTable = `
	CREATE TABLE IF NOT EXISTS panel_state (
		state_key   TEXT PRIMARY KEY,
		state_value TEXT NOT NULL,
		updated_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`

const upsertState = `
	INSERT INTO panel_state (state_key, state_value, updated_at)
	VALUES ($1, $2, CURRENT_TIMESTAMP)
	ON CONFLICT (state_key)
	DO UPDATE SET state_value = $2, updated_at = CURRENT_TIMESTAMP`

// postgresBackend PostgreSQL 持久化后端
type postgresBackend struct {
	db     *sql.DB
	logger *logrus.Logger
}

// NewPostgresStore 创建基于 PostgreSQL 的存储
func NewPostgresStore(dsn string, defaults UserSettings, logger *logrus.Logger) (*StateStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	// 测试连接，数据库可能晚于本服务启动
	err = retry.Do(context.Background(), retry.ConnectPolicy, logger, "连接PostgreSQL", func(ctx context.Context) error {
		return db.PingContext(ctx)
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("数据库连接测试失败: %w", err)
	}

	if _, err := db.Exec(createStateTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("创建状态表失败: %w", err)
	}

	backend := &postgresBackend{db: db, logger: logger}
	store, err := newStateStore(backend, defaults, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("状态存储已连接PostgreSQL")
	return store, nil
}

// Load 读取全部键值
func (p *postgresBackend) Load() (map[string]string, error) {
	rows, err := p.db.Query(`SELECT state_key, state_value FROM panel_state`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		entries[key] = value
	}

	return entries, rows.Err()
}

// Save 在一个事务内写入
func (p *postgresBackend) Save(entries map[string]string) error {
	tx, err := p.db.Begin()
	if err != nil {
		return fmt.Errorf("开启事务失败: %w", err)
	}

	for k, v := range entries {
		if _, err := tx.Exec(upsertState, k, v); err != nil {
			tx.Rollback()
			return fmt.Errorf("保存 %s 失败: %w", k, err)
		}
	}

	return tx.Commit()
}

// Close 关闭数据库连接
func (p *postgresBackend) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}
