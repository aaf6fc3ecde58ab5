package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// ABISummary ABI 摘要
type ABISummary struct {
	Methods     []string `json:"methods"`
	Events      []string `json:"events"`
	Errors      []string `json:"errors"`
	HasFallback bool     `json:"has_fallback"`
	HasReceive  bool     `json:"has_receive"`
}

// DescribeABI 解析 ABI 并列出方法、事件和自定义错误签名
// 只用于展示，不参与 ABI 的写入判定
func DescribeABI(raw json.RawMessage) (*ABISummary, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("ABI为空")
	}

	parsed, err := abi.JSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("解析ABI失败: %w", err)
	}

	summary := &ABISummary{
		Methods:     make([]string, 0, len(parsed.Methods)),
		Events:      make([]string, 0, len(parsed.Events)),
		Errors:      make([]string, 0, len(parsed.Errors)),
		HasFallback: parsed.HasFallback(),
		HasReceive:  parsed.HasReceive(),
	}

	for _, method := range parsed.Methods {
		summary.Methods = append(summary.Methods, method.Sig)
	}
	for _, event := range parsed.Events {
		summary.Events = append(summary.Events, event.Sig)
	}
	for _, abiErr := range parsed.Errors {
		summary.Errors = append(summary.Errors, abiErr.Sig)
	}

	sort.Strings(summary.Methods)
	sort.Strings(summary.Events)
	sort.Strings(summary.Errors)

	return summary, nil
}
