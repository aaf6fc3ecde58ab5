package decoder

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/sirupsen/logrus"
)

// DecodedCall 解码后的调用
type DecodedCall struct {
	Selector  string                 `json:"selector"`
	Method    string                 `json:"method"`
	Signature string                 `json:"signature"`
	Params    map[string]interface{} `json:"params"`
}

// InputDecoder 按当前 ABI 解码调用数据
type InputDecoder struct {
	logger *logrus.Logger

	mu     sync.Mutex
	raw    string // 已解析 ABI 的原文
	parsed abi.ABI
}

// NewInputDecoder 创建解码器
func NewInputDecoder(logger *logrus.Logger) *InputDecoder {
	return &InputDecoder{logger: logger}
}

// parse 解析 ABI，原文不变时复用上次结果
func (d *InputDecoder) parse(contractABI json.RawMessage) (abi.ABI, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.raw != "" && d.raw == string(contractABI) {
		return d.parsed, nil
	}

	parsed, err := abi.JSON(bytes.NewReader(contractABI))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("解析ABI失败: %w", err)
	}
	d.raw = string(contractABI)
	d.parsed = parsed
	d.logger.Debugf("ABI解析完成，方法数: %d", len(parsed.Methods))
	return parsed, nil
}

// DecodeInput 解码交易输入数据，前 4 字节为方法选择器
func (d *InputDecoder) DecodeInput(contractABI json.RawMessage, input string) (*DecodedCall, error) {
	if len(contractABI) == 0 {
		return nil, fmt.Errorf("尚未加载ABI")
	}

	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "0x") && !strings.HasPrefix(input, "0X") {
		input = "0x" + input
	}
	data, err := hexutil.Decode(input)
	if err != nil {
		return nil, fmt.Errorf("调用数据不是有效的十六进制: %w", err)
	}
	if len(data) < 4 {
		return nil, fmt.Errorf("调用数据不足4字节")
	}

	parsed, err := d.parse(contractABI)
	if err != nil {
		return nil, err
	}

	method, err := parsed.MethodById(data[:4])
	if err != nil {
		return nil, fmt.Errorf("ABI中没有选择器 0x%x 对应的方法", data[:4])
	}

	values, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, fmt.Errorf("解码 %s 参数失败: %w", method.Sig, err)
	}

	// 未命名的参数按位置命名
	params := make(map[string]interface{}, len(values))
	for i, arg := range method.Inputs {
		name := arg.Name
		if name == "" {
			name = fmt.Sprintf("arg%d", i)
		}
		params[name] = values[i]
	}

	return &DecodedCall{
		Selector:  hexutil.Encode(data[:4]),
		Method:    method.RawName,
		Signature: method.Sig,
		Params:    params,
	}, nil
}
