package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

// 停机顺序，数字越小越早执行
const (
	OrderHTTPServer = 10 // 停止接受请求
	OrderPublisher  = 20 // 关闭事件发布
	OrderStore      = 30 // 关闭共享状态存储
)

// Hook 停机处理
type Hook struct {
	Name  string
	Order int
	Func  func(ctx context.Context) error
}

// Manager 优雅停机管理器
type Manager struct {
	logger  *logrus.Logger
	timeout time.Duration

	mu    sync.Mutex
	hooks []Hook
	done  bool
}

// NewManager 创建停机管理器，timeout 不大于 0 时使用 30 秒
func NewManager(timeout time.Duration, logger *logrus.Logger) *Manager {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Manager{logger: logger, timeout: timeout}
}

// Register 注册停机处理
func (m *Manager) Register(name string, order int, fn func(ctx context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.hooks = append(m.hooks, Hook{Name: name, Order: order, Func: fn})
	m.logger.Debugf("注册停机处理: %s (order: %d)", name, order)
}

// Hooks 按执行顺序返回已注册的处理名称
func (m *Manager) Hooks() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.hooks))
	for _, h := range m.sorted() {
		names = append(names, h.Name)
	}
	return names
}

func (m *Manager) sorted() []Hook {
	hooks := make([]Hook, len(m.hooks))
	copy(hooks, m.hooks)
	sort.SliceStable(hooks, func(i, j int) bool { return hooks[i].Order < hooks[j].Order })
	return hooks
}

// SignalContext 收到 SIGINT/SIGTERM 时取消的上下文
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// Wait 等待 ctx 结束或 serveErr 返回，然后执行停机
func (m *Manager) Wait(ctx context.Context, serveErr <-chan error) error {
	var runErr error
	select {
	case <-ctx.Done():
		m.logger.Info("收到停机信号")
	case runErr = <-serveErr:
		if runErr != nil {
			m.logger.Errorf("服务异常退出: %v", runErr)
		}
	}

	return errors.Join(runErr, m.Shutdown())
}

// Shutdown 按顺序执行停机处理，只执行一次
// 单个处理失败不影响后续处理，超时后跳过剩余处理
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	if m.done {
		m.mu.Unlock()
		return nil
	}
	m.done = true
	hooks := m.sorted()
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	var errs []error
	for _, h := range hooks {
		if ctx.Err() != nil {
			m.logger.Warnf("停机超时，跳过: %s", h.Name)
			errs = append(errs, fmt.Errorf("%s: %w", h.Name, ctx.Err()))
			continue
		}

		start := time.Now()
		if err := h.Func(ctx); err != nil {
			m.logger.Errorf("停机处理 '%s' 失败 (耗时: %v): %v", h.Name, time.Since(start), err)
			errs = append(errs, fmt.Errorf("%s: %w", h.Name, err))
			continue
		}
		m.logger.Infof("停机处理 '%s' 完成 (耗时: %v)", h.Name, time.Since(start))
	}

	return errors.Join(errs...)
}
