package units

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/ethereum/go-ethereum/params"
	"github.com/shopspring/decimal"
)

// Unit 输入单位
type Unit string

const (
	Wei   Unit = "wei"
	GWei  Unit = "gwei"
	Ether Unit = "ether"
)

// Option 下拉选项
type Option struct {
	Value Unit   `json:"value"`
	Label string `json:"label"`
}

// Options 固定的单位枚举，顺序即展示顺序
var Options = []Option{
	{Value: Wei, Label: "WEI"},
	{Value: GWei, Label: "GWEI"},
	{Value: Ether, Label: "ETH"},
}

var multipliers = map[Unit]int64{
	Wei:   params.Wei,
	GWei:  params.GWei,
	Ether: params.Ether,
}

// decimals 单位相对 wei 的小数位数
var decimals = map[Unit]int32{
	Wei:   0,
	GWei:  9,
	Ether: 18,
}

// Valid 是否属于枚举
func (u Unit) Valid() bool {
	_, ok := multipliers[u]
	return ok
}

// Label 展示名称
func (u Unit) Label() string {
	for _, opt := range Options {
		if opt.Value == u {
			return opt.Label
		}
	}
	return string(u)
}

// Multiplier 换算为 wei 的倍数
func (u Unit) Multiplier() *big.Int {
	return big.NewInt(multipliers[u])
}

// Parse 解析单位，接受取值或展示名称（不区分大小写）
func Parse(s string) (Unit, error) {
	s = strings.TrimSpace(s)
	for _, opt := range Options {
		if strings.EqualFold(s, string(opt.Value)) || strings.EqualFold(s, opt.Label) {
			return opt.Value, nil
		}
	}

	if suggestion := Suggest(s); suggestion != "" {
		return "", fmt.Errorf("未知的单位 %q，是否为 %q", s, suggestion)
	}
	return "", fmt.Errorf("未知的单位 %q", s)
}

// Suggest 返回编辑距离最近的单位，距离过大时返回空
func Suggest(s string) Unit {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}

	best := Unit("")
	bestDist := 3
	for _, opt := range Options {
		dist := levenshtein.ComputeDistance(s, string(opt.Value))
		if dist < bestDist {
			best = opt.Value
			bestDist = dist
		}
	}
	return best
}

// ToWei 将十进制金额按单位换算为 wei，结果必须为非负整数
func ToWei(amount string, unit Unit) (*big.Int, error) {
	if !unit.Valid() {
		return nil, fmt.Errorf("未知的单位 %q", unit)
	}

	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return nil, fmt.Errorf("无效的金额 %q: %w", amount, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("金额不能为负数: %s", amount)
	}

	wei := d.Mul(decimal.NewFromBigInt(unit.Multiplier(), 0))
	if !wei.Equal(wei.Truncate(0)) {
		return nil, fmt.Errorf("金额 %s %s 换算后不是整数wei", amount, unit.Label())
	}

	return wei.BigInt(), nil
}

// FromWei 将 wei 换算为指定单位的十进制字符串
func FromWei(wei *big.Int, unit Unit) (string, error) {
	if !unit.Valid() {
		return "", fmt.Errorf("未知的单位 %q", unit)
	}
	if wei == nil {
		return "0", nil
	}

	// 按小数位移位，避免除法的默认精度截断
	return decimal.NewFromBigInt(wei, -decimals[unit]).String(), nil
}
