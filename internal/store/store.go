package store

import (
	"encoding/json"
	"fmt"

	"abipanel/internal/units"
	"abipanel/internal/validation"
)

// ContractConfig 当前合约配置，Address 为空或 ABI 为 nil 表示未设置
type ContractConfig struct {
	Address string          `json:"address"`
	ABI     json.RawMessage `json:"abi"`
}

// HasABI 是否已加载 ABI
func (c ContractConfig) HasABI() bool {
	return len(c.ABI) > 0
}

// UserSettings 用户设置
type UserSettings struct {
	Unit     units.Unit `json:"unit"`
	GasLimit string     `json:"gas_limit"`
}

// SettingsPatch 部分更新，nil 字段保持不变
type SettingsPatch struct {
	Unit     *units.Unit `json:"unit,omitempty"`
	GasLimit *string     `json:"gas_limit,omitempty"`
}

// Apply 合并部分更新
func (s UserSettings) Apply(p SettingsPatch) UserSettings {
	if p.Unit != nil {
		s.Unit = *p.Unit
	}
	if p.GasLimit != nil {
		s.GasLimit = *p.GasLimit
	}
	return s
}

// DefaultSettings 默认用户设置
func DefaultSettings() UserSettings {
	return UserSettings{
		Unit:     units.Ether,
		GasLimit: "",
	}
}

// ContractStore 合约配置存储
type ContractStore interface {
	Contract() ContractConfig
	SetContractAddress(address string) error
	SetAbi(abi json.RawMessage) error
}

// SettingsStore 用户设置存储
type SettingsStore interface {
	Settings() UserSettings
	SetSettings(patch SettingsPatch) error
}

// Store 同时提供两类存储
type Store interface {
	ContractStore
	SettingsStore
	Close() error
}

func checkAddress(address string) error {
	if !validation.IsAddress(address) {
		return fmt.Errorf("无效的合约地址: %q", address)
	}
	return nil
}

func checkPatch(p SettingsPatch) error {
	if p.Unit != nil && !p.Unit.Valid() {
		return fmt.Errorf("无效的单位: %q", *p.Unit)
	}
	return nil
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out
}
