package store

import (
	"encoding/json"
	"fmt"
	"sync"

	"abipanel/internal/units"

	"github.com/sirupsen/logrus"
)

// 持久化键
const (
	KeyContractAddress = "contract.address"
	KeyContractABI     = "contract.abi"
	KeySettingsUnit    = "settings.unit"
	KeySettingsGas     = "settings.gas_limit"
)

// Backend 键值持久化后端
type Backend interface {
	Load() (map[string]string, error)
	Save(entries map[string]string) error
	Close() error
}

// StateStore 带内存缓存的共享状态存储
// 写入先落盘再更新缓存，落盘失败时状态不变
type StateStore struct {
	mu       sync.RWMutex
	contract ContractConfig
	settings UserSettings
	backend  Backend
	logger   *logrus.Logger
}

// NewMemoryStore 创建纯内存存储
func NewMemoryStore(defaults UserSettings) *StateStore {
	return &StateStore{
		settings: defaults,
		logger:   logrus.StandardLogger(),
	}
}

// newStateStore 基于后端创建存储并加载已有状态
func newStateStore(backend Backend, defaults UserSettings, logger *logrus.Logger) (*StateStore, error) {
	s := &StateStore{
		settings: defaults,
		backend:  backend,
		logger:   logger,
	}

	entries, err := backend.Load()
	if err != nil {
		return nil, fmt.Errorf("加载持久化状态失败: %w", err)
	}
	s.restore(entries)

	return s, nil
}

// restore 从键值恢复缓存，无效值回退为默认
func (s *StateStore) restore(entries map[string]string) {
	if addr, ok := entries[KeyContractAddress]; ok && addr != "" {
		if err := checkAddress(addr); err != nil {
			s.logger.Warnf("忽略持久化的合约地址: %v", err)
		} else {
			s.contract.Address = addr
		}
	}

	if raw, ok := entries[KeyContractABI]; ok && raw != "" {
		if json.Valid([]byte(raw)) {
			s.contract.ABI = json.RawMessage(raw)
		} else {
			s.logger.Warn("忽略持久化的ABI: 不是合法JSON")
		}
	}

	if unit, ok := entries[KeySettingsUnit]; ok {
		if u := units.Unit(unit); u.Valid() {
			s.settings.Unit = u
		} else {
			s.logger.Warnf("忽略持久化的单位: %q", unit)
		}
	}

	if gas, ok := entries[KeySettingsGas]; ok {
		s.settings.GasLimit = gas
	}
}

func (s *StateStore) persist(entries map[string]string) error {
	if s.backend == nil {
		return nil
	}
	if err := s.backend.Save(entries); err != nil {
		return fmt.Errorf("保存状态失败: %w", err)
	}
	return nil
}

// Contract 获取合约配置副本
func (s *StateStore) Contract() ContractConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return ContractConfig{
		Address: s.contract.Address,
		ABI:     cloneRaw(s.contract.ABI),
	}
}

// SetContractAddress 设置合约地址
func (s *StateStore) SetContractAddress(address string) error {
	if err := checkAddress(address); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.persist(map[string]string{KeyContractAddress: address}); err != nil {
		return err
	}
	s.contract.Address = address

	s.logger.Debugf("合约地址已更新: %s", address)
	return nil
}

// SetAbi 设置 ABI
func (s *StateStore) SetAbi(abi json.RawMessage) error {
	if !json.Valid(abi) {
		return fmt.Errorf("ABI不是合法JSON")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.persist(map[string]string{KeyContractABI: string(abi)}); err != nil {
		return err
	}
	s.contract.ABI = cloneRaw(abi)

	s.logger.Debugf("ABI已更新: %d 字节", len(abi))
	return nil
}

// Settings 获取用户设置
func (s *StateStore) Settings() UserSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// SetSettings 部分更新用户设置
func (s *StateStore) SetSettings(patch SettingsPatch) error {
	if err := checkPatch(patch); err != nil {
		return err
	}

	entries := make(map[string]string, 2)
	if patch.Unit != nil {
		entries[KeySettingsUnit] = string(*patch.Unit)
	}
	if patch.GasLimit != nil {
		entries[KeySettingsGas] = *patch.GasLimit
	}
	if len(entries) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.persist(entries); err != nil {
		return err
	}
	s.settings = s.settings.Apply(patch)

	return nil
}

// Close 关闭后端
func (s *StateStore) Close() error {
	if s.backend == nil {
		return nil
	}
	return s.backend.Close()
}
