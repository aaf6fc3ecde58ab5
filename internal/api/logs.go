package api

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// LogRecord 缓存的日志条目
type LogRecord struct {
	Timestamp time.Time         `json:"timestamp"`
	Level     string            `json:"level"`
	Component string            `json:"component,omitempty"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// LogQuery 日志查询条件
type LogQuery struct {
	// MinLevel 只返回不低于该级别的日志，为空时不过滤
	MinLevel  string
	Component string
	Page      int
	PageSize  int
}

// LogBuffer 环形日志缓存，供 /api/v1/logs 查询
type LogBuffer struct {
	mu      sync.RWMutex
	records []LogRecord
	next    int
	full    bool
}

// NewLogBuffer 创建日志缓存
func NewLogBuffer(capacity int) *LogBuffer {
	if capacity <= 0 {
		capacity = 1000
	}
	return &LogBuffer{records: make([]LogRecord, capacity)}
}

// Add 写入一条日志，满了覆盖最旧的
func (b *LogBuffer) Add(entry *logrus.Entry) {
	record := LogRecord{
		Timestamp: entry.Time,
		Level:     entry.Level.String(),
		Message:   entry.Message,
	}
	if len(entry.Data) > 0 {
		record.Fields = make(map[string]string, len(entry.Data))
		for k, v := range entry.Data {
			if k == "component" {
				record.Component = fmt.Sprint(v)
				continue
			}
			record.Fields[k] = fmt.Sprint(v)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.records[b.next] = record
	b.next = (b.next + 1) % len(b.records)
	if b.next == 0 {
		b.full = true
	}
}

// ordered 按时间从旧到新，调用方持有读锁
func (b *LogBuffer) ordered() []LogRecord {
	if !b.full {
		out := make([]LogRecord, b.next)
		copy(out, b.records[:b.next])
		return out
	}
	out := make([]LogRecord, 0, len(b.records))
	out = append(out, b.records[b.next:]...)
	out = append(out, b.records[:b.next]...)
	return out
}

// Query 过滤并分页，最新的在前
func (b *LogBuffer) Query(q LogQuery) ([]LogRecord, int, error) {
	var minLevel logrus.Level = logrus.TraceLevel
	if q.MinLevel != "" {
		level, err := logrus.ParseLevel(q.MinLevel)
		if err != nil {
			return nil, 0, fmt.Errorf("无效的日志级别: %w", err)
		}
		minLevel = level
	}
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = 20
	}

	b.mu.RLock()
	all := b.ordered()
	b.mu.RUnlock()

	filtered := make([]LogRecord, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		record := all[i]
		level, err := logrus.ParseLevel(record.Level)
		// logrus 的级别数值越小越严重
		if err != nil || level > minLevel {
			continue
		}
		if q.Component != "" && record.Component != q.Component {
			continue
		}
		filtered = append(filtered, record)
	}

	total := len(filtered)
	start := (q.Page - 1) * q.PageSize
	if start >= total {
		return []LogRecord{}, total, nil
	}
	end := start + q.PageSize
	if end > total {
		end = total
	}
	return filtered[start:end], total, nil
}

// Clear 清空缓存
func (b *LogBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.records = make([]LogRecord, len(b.records))
	b.next = 0
	b.full = false
}

// LogHook 把日志写入缓存的 logrus 钩子
type LogHook struct {
	buffer *LogBuffer
}

// NewLogHook 创建日志钩子
func NewLogHook(buffer *LogBuffer) *LogHook {
	return &LogHook{buffer: buffer}
}

// Fire 实现 logrus.Hook 接口
func (h *LogHook) Fire(entry *logrus.Entry) error {
	h.buffer.Add(entry)
	return nil
}

// Levels 实现 logrus.Hook 接口
func (h *LogHook) Levels() []logrus.Level {
	return logrus.AllLevels
}
