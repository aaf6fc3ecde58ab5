package panel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"sync"

	"abipanel/internal/errors"
	"abipanel/internal/events"
	"abipanel/internal/store"
	"abipanel/internal/validation"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrSuperseded 获取结果已被更新的请求取代，结果被丢弃
var ErrSuperseded = fmt.Errorf("ABI获取已被新的请求取代")

// AbiLoadState ABI 表单状态
type AbiLoadState struct {
	Label     string             `json:"label"`
	SourceURL string             `json:"source_url"`
	Err       *errors.PanelError `json:"error,omitempty"`
}

// AddressEditState 地址表单状态
type AddressEditState struct {
	EditingValue string             `json:"editing_value"`
	Err          *errors.PanelError `json:"error,omitempty"`
}

// State 渲染用的状态快照
type State struct {
	Contract store.ContractConfig `json:"contract"`
	ABI      AbiLoadState         `json:"abi"`
	Address  AddressEditState     `json:"address"`
	Location string               `json:"location"`
	Loading  bool                 `json:"loading"`
}

// CanLoad 是否允许点击 Load
func (s State) CanLoad() bool {
	return CanLoad(s.ABI.SourceURL)
}

// CanSetAddress 是否允许点击 Set
func (s State) CanSetAddress() bool {
	return CanSetAddress(s.Address.EditingValue)
}

// CanLoad URL 非空才允许加载
func CanLoad(abiURL string) bool {
	return abiURL != ""
}

// CanSetAddress 地址有效才允许提交
func CanSetAddress(address string) bool {
	return validation.IsAddress(address)
}

// Deps 控制器依赖
type Deps struct {
	Contracts store.ContractStore
	Fetcher   Fetcher
	Location  Location
	Publisher events.Publisher
	Logger    *logrus.Logger
}

// Controller 设置表单控制器
type Controller struct {
	contracts store.ContractStore
	fetcher   Fetcher
	location  Location
	publisher events.Publisher
	logger    *logrus.Logger

	mu      sync.Mutex
	abi     AbiLoadState
	address AddressEditState
	outbox  []events.Event

	// 当前进行中的获取
	pending       string
	cancelPending context.CancelFunc

	initOnce sync.Once
}

// New 创建控制器，并按页面查询串执行一次初始化
func New(ctx context.Context, deps Deps) *Controller {
	if deps.Publisher == nil {
		deps.Publisher = events.NopPublisher{}
	}
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	if deps.Location == nil {
		deps.Location = NewMemoryLocation("")
	}

	c := &Controller{
		contracts: deps.Contracts,
		fetcher:   deps.Fetcher,
		location:  deps.Location,
		publisher: deps.Publisher,
		logger:    deps.Logger,
	}

	c.initOnce.Do(func() { c.initialize(ctx) })
	return c
}

// initialize 读取 abiUrl 和 address 参数，失败走正常的错误通道
func (c *Controller) initialize(ctx context.Context) {
	values := parseSearch(c.location.Search())

	if abiURL, ok := queryParam(values, ParamAbiURL); ok {
		c.logger.Debugf("从查询串加载ABI: %s", abiURL)
		_ = c.FetchAbi(ctx, abiURL)
	}

	if address, ok := queryParam(values, ParamAddress); ok {
		c.logger.Debugf("从查询串设置合约地址: %s", address)
		_ = c.UpdateContractAddress(address)
	}
}

// SetAbiURL 更新 URL 输入框
func (c *Controller) SetAbiURL(abiURL string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.abi.SourceURL = abiURL
}

// SetEditingAddress 更新地址输入框
func (c *Controller) SetEditingAddress(address string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.address.EditingValue = address
}

// UpdateContractAddress 校验并提交合约地址
func (c *Controller) UpdateContractAddress(address string) error {
	c.mu.Lock()
	err := c.updateContractAddressLocked(address)
	c.mu.Unlock()

	c.flush(context.Background())
	return asError(err)
}

func (c *Controller) updateContractAddressLocked(address string) *errors.PanelError {
	c.address.Err = nil

	if !validation.IsAddress(address) {
		c.address.Err = errors.NewInvalidAddress()
		c.address.EditingValue = address
		return c.address.Err
	}

	if err := c.contracts.SetContractAddress(address); err != nil {
		c.address.Err = errors.NewStorageError(err)
		c.address.EditingValue = address
		return c.address.Err
	}

	c.address.EditingValue = ""
	c.outbox = append(c.outbox, events.NewEvent(events.EventAddressSet, map[string]string{
		"address": address,
	}))
	return nil
}

// UpdateAbi 解析 ABI 文本并写入共享状态
// 数组直接作为 ABI；对象按 address、abi 字段分别应用
func (c *Controller) UpdateAbi(raw, label string) error {
	c.mu.Lock()
	err := c.updateAbiLocked(raw, label)
	c.mu.Unlock()

	c.flush(context.Background())
	return asError(err)
}

func (c *Controller) updateAbiLocked(raw, label string) *errors.PanelError {
	c.abi.Err = nil

	var doc json.RawMessage
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		c.abi.Err = errors.NewParseError(err)
		return c.abi.Err
	}

	switch doc[0] {
	case '[':
		if err := c.contracts.SetAbi(doc); err != nil {
			c.abi.Err = errors.NewStorageError(err)
			return c.abi.Err
		}
	case '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(doc, &fields); err != nil {
			c.abi.Err = errors.NewParseError(err)
			return c.abi.Err
		}
		if perr := c.applyDocumentLocked(fields); perr != nil {
			return perr
		}
	default:
		c.abi.Err = errors.New(errors.KindParse, errors.CodeABIShape,
			"ABI must be a JSON array or an object with \"abi\" and/or \"address\" fields")
		return c.abi.Err
	}

	c.abi.Label = label
	c.abi.SourceURL = ""
	c.outbox = append(c.outbox, events.NewEvent(events.EventABILoaded, map[string]string{
		"label": label,
	}))
	c.logger.Debugf("ABI已加载: %s", label)
	return nil
}

// applyDocumentLocked 应用 {address, abi} 文档中存在的字段
// 地址走与手动输入相同的校验，失败只影响地址通道
func (c *Controller) applyDocumentLocked(fields map[string]json.RawMessage) *errors.PanelError {
	if rawAddr, ok := fields["address"]; ok && !isFalsy(rawAddr) {
		var address string
		if err := json.Unmarshal(rawAddr, &address); err != nil {
			address = string(rawAddr)
		}
		_ = c.updateContractAddressLocked(address)
	}

	if rawABI, ok := fields["abi"]; ok && !isFalsy(rawABI) {
		if err := c.contracts.SetAbi(rawABI); err != nil {
			c.abi.Err = errors.NewStorageError(err)
			return c.abi.Err
		}
	}

	return nil
}

// isFalsy null、false、空串和值为零的数字（0、0.0、-0、0e5）视为未提供
func isFalsy(raw json.RawMessage) bool {
	text := string(bytes.TrimSpace(raw))
	switch text {
	case "null", "false", `""`:
		return true
	}
	if f, err := strconv.ParseFloat(text, 64); err == nil && f == 0 {
		return true
	}
	return false
}

// FetchAbi 获取远程 ABI 并写回查询串
// 新请求会取消旧请求，过期的响应被丢弃
func (c *Controller) FetchAbi(ctx context.Context, abiURL string) error {
	token := uuid.NewString()
	fetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	if c.cancelPending != nil {
		c.cancelPending()
	}
	c.pending = token
	c.cancelPending = cancel
	c.mu.Unlock()

	body, fetchErr := c.fetcher.Fetch(fetchCtx, abiURL)

	c.mu.Lock()
	if c.pending != token {
		c.mu.Unlock()
		c.logger.Debugf("丢弃过期的ABI响应: %s (token %s)", abiURL, token)
		return ErrSuperseded
	}
	c.pending = ""
	c.cancelPending = nil

	if fetchErr != nil {
		c.abi.Err = errors.NewNetworkError(fetchErr)
		c.mu.Unlock()
		return c.abi.Err
	}

	perr := c.updateAbiLocked(body, abiURL)
	c.location.Replace(AbiURLSearch(abiURL))
	c.mu.Unlock()

	c.flush(ctx)
	return asError(perr)
}

// LoadFile 读取本地文件内容，文件名作为标签
func (c *Controller) LoadFile(name string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		c.mu.Lock()
		c.abi.Err = errors.NewFileError(err)
		perr := c.abi.Err
		c.mu.Unlock()
		return perr
	}

	return c.UpdateAbi(string(data), name)
}

// Snapshot 当前状态副本
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return State{
		Contract: c.contracts.Contract(),
		ABI:      c.abi,
		Address:  c.address,
		Location: c.location.Search(),
		Loading:  c.pending != "",
	}
}

// asError 避免把 nil 指针包装成非 nil 的 error
func asError(err *errors.PanelError) error {
	if err == nil {
		return nil
	}
	return err
}

// flush 在锁外发布累积的事件，发布失败只记录日志
func (c *Controller) flush(ctx context.Context) {
	c.mu.Lock()
	pending := c.outbox
	c.outbox = nil
	c.mu.Unlock()

	for _, event := range pending {
		if err := c.publisher.Publish(ctx, event); err != nil {
			c.logger.Warnf("发布事件 %s 失败: %v", event.Type, err)
		}
	}
}
