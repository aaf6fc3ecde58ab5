package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"abipanel/internal/config"
	"abipanel/internal/errors"
	"abipanel/internal/events"
	"abipanel/internal/logging"
	"abipanel/internal/panel"
	"abipanel/internal/store"
)

// app 命令共享的组件
type app struct {
	cfg        *config.Config
	logger     *logrus.Logger
	store      store.Store
	publisher  events.Publisher
	controller *panel.Controller
	misc       *panel.MiscForm
}

// newApp 按配置创建各组件，控制器创建时读取一次查询串
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if query != "" {
		cfg.Panel.Location = query
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.KindConfig, errors.CodeConfigInvalid, err.Error())
	}

	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}

	st, err := store.Open(cfg.StoreOptions(), logger)
	if err != nil {
		return nil, fmt.Errorf("打开存储失败: %w", err)
	}

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.Events.Enabled {
		kafka, err := events.NewKafkaPublisher(cfg.Events.Brokers, cfg.Events.Topic, logger)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("创建事件发布器失败: %w", err)
		}
		publisher = kafka
	}

	timeout, _ := cfg.FetchTimeout()
	fetcher := panel.NewHTTPFetcher(timeout, cfg.Fetch.UserAgent, cfg.Fetch.MaxBytes, logger)

	controller := panel.New(ctx, panel.Deps{
		Contracts: st,
		Fetcher:   fetcher,
		Location:  panel.NewMemoryLocation(cfg.Panel.Location),
		Publisher: publisher,
		Logger:    logger,
	})

	logging.ComponentLogger(logger, "app").WithFields(logrus.Fields{
		"store":  cfg.Store.Driver,
		"events": cfg.Events.Enabled,
	}).Debug("组件初始化完成")

	return &app{
		cfg:        cfg,
		logger:     logger,
		store:      st,
		publisher:  publisher,
		controller: controller,
		misc:       panel.NewMiscForm(st, publisher, logger),
	}, nil
}

// Close 依次关闭事件发布和存储
func (a *app) Close() {
	if err := a.publisher.Close(); err != nil {
		a.logger.Warnf("关闭事件发布器失败: %v", err)
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warnf("关闭存储失败: %v", err)
	}
}
