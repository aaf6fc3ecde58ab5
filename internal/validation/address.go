package validation

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// IsAddress 验证合约地址格式
// 要求 0x 前缀加 40 位十六进制；大小写混合时必须符合 EIP-55 校验和
func IsAddress(addr string) bool {
	if !strings.HasPrefix(addr, "0x") {
		return false
	}

	if !common.IsHexAddress(addr) {
		return false
	}

	body := addr[2:]
	if body == strings.ToLower(body) || body == strings.ToUpper(body) {
		return true
	}

	return common.HexToAddress(addr).Hex() == addr
}

// ChecksumAddress 返回 EIP-55 格式地址，无效地址返回空串
func ChecksumAddress(addr string) string {
	if !IsAddress(addr) {
		return ""
	}
	return common.HexToAddress(addr).Hex()
}
