package panel

import (
	"net/url"
	"strings"
	"sync"
)

// 查询串参数
const (
	ParamAbiURL  = "abiUrl"
	ParamAddress = "address"
)

// Location 页面位置，只暴露查询串的读取和无跳转替换
type Location interface {
	Search() string
	Replace(search string)
}

// MemoryLocation 内存中的页面位置，记录替换历史
type MemoryLocation struct {
	mu      sync.RWMutex
	search  string
	history []string
}

// NewMemoryLocation 创建页面位置
func NewMemoryLocation(search string) *MemoryLocation {
	return &MemoryLocation{search: normalizeSearch(search)}
}

// Search 当前查询串，带前导 ?，为空时返回空串
func (l *MemoryLocation) Search() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.search
}

// Replace 替换查询串，不产生新的历史记录
func (l *MemoryLocation) Replace(search string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.history = append(l.history, l.search)
	l.search = normalizeSearch(search)
}

// Replaced 被替换掉的旧查询串
func (l *MemoryLocation) Replaced() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]string, len(l.history))
	copy(out, l.history)
	return out
}

func normalizeSearch(search string) string {
	search = strings.TrimPrefix(strings.TrimSpace(search), "?")
	if search == "" {
		return ""
	}
	return "?" + search
}

// AbiURLSearch 成功加载 URL 后写回的查询串
func AbiURLSearch(abiURL string) string {
	return "?" + ParamAbiURL + "=" + url.QueryEscape(abiURL)
}

// queryParam 读取单值参数，重复或空值视为缺失
func queryParam(values url.Values, key string) (string, bool) {
	v, ok := values[key]
	if !ok || len(v) != 1 || v[0] == "" {
		return "", false
	}
	return v[0], true
}

// parseSearch 解析查询串，忽略格式错误的片段
func parseSearch(search string) url.Values {
	values, err := url.ParseQuery(strings.TrimPrefix(search, "?"))
	if err != nil && values == nil {
		return url.Values{}
	}
	return values
}
