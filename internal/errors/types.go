package errors

import (
	"fmt"
	"time"
)

// ErrorKind 错误类别
type ErrorKind int

const (
	// ABI 通道
	KindParse ErrorKind = iota
	KindNetwork
	KindFile

	// 地址与设置校验
	KindValidation

	// 基础设施
	KindStorage
	KindConfig
	KindEvents
)

// 错误码
const (
	CodeABIParse        = "ABI_PARSE_FAILED"
	CodeABIShape        = "ABI_UNSUPPORTED_SHAPE"
	CodeFetchFailed     = "ABI_FETCH_FAILED"
	CodeFileRead        = "ABI_FILE_READ_FAILED"
	CodeInvalidAddress  = "INVALID_ADDRESS"
	CodeInvalidUnit     = "INVALID_UNIT"
	CodeStoreWrite      = "STORE_WRITE_FAILED"
	CodeConfigInvalid   = "CONFIG_INVALID"
	CodePublishFailed   = "EVENT_PUBLISH_FAILED"
	InvalidAddressLabel = "Invalid address."
)

// PanelError 面板错误，Message 即界面上展示的文本
type PanelError struct {
	Kind      ErrorKind `json:"kind"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Cause     error     `json:"-"`
	Timestamp time.Time `json:"timestamp"`
}

// Error 实现error接口
func (e *PanelError) Error() string {
	if e.Cause != nil && e.Cause.Error() != e.Message {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 支持errors.Unwrap
func (e *PanelError) Unwrap() error {
	return e.Cause
}

// Is 按错误码比较
func (e *PanelError) Is(target error) bool {
	t, ok := target.(*PanelError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New 创建新的错误
func New(kind ErrorKind, code, message string) *PanelError {
	return &PanelError{
		Kind:      kind,
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Wrap 包装现有错误
func Wrap(err error, kind ErrorKind, code, message string) *PanelError {
	return &PanelError{
		Kind:      kind,
		Code:      code,
		Message:   message,
		Cause:     err,
		Timestamp: time.Now(),
	}
}

// Verbatim 包装错误，界面文本直接取原始错误信息
func Verbatim(err error, kind ErrorKind, code string) *PanelError {
	return Wrap(err, kind, code, err.Error())
}

// NewParseError JSON 解析失败
func NewParseError(err error) *PanelError {
	return Verbatim(err, KindParse, CodeABIParse)
}

// NewNetworkError 网络获取失败
func NewNetworkError(err error) *PanelError {
	return Verbatim(err, KindNetwork, CodeFetchFailed)
}

// NewFileError 文件读取失败
func NewFileError(err error) *PanelError {
	return Verbatim(err, KindFile, CodeFileRead)
}

// NewInvalidAddress 地址格式无效
func NewInvalidAddress() *PanelError {
	return New(KindValidation, CodeInvalidAddress, InvalidAddressLabel)
}

// NewStorageError 写入共享存储失败
func NewStorageError(err error) *PanelError {
	return Verbatim(err, KindStorage, CodeStoreWrite)
}

// 预定义错误
var (
	ErrInvalidAddress = New(KindValidation, CodeInvalidAddress, InvalidAddressLabel)
	ErrInvalidUnit    = New(KindValidation, CodeInvalidUnit, "Invalid unit.")
	ErrConfigInvalid  = New(KindConfig, CodeConfigInvalid, "配置无效")
)

var kindNames = map[ErrorKind]string{
	KindParse:      "parse",
	KindNetwork:    "network",
	KindFile:       "file",
	KindValidation: "validation",
	KindStorage:    "storage",
	KindConfig:     "config",
	KindEvents:     "events",
}

// String 返回错误类别的字符串表示
func (k ErrorKind) String() string {
	if name, exists := kindNames[k]; exists {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int(k))
}

// MarshalText 以名称序列化
func (k ErrorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// MessageOf 返回界面文本，nil 时为空串
func MessageOf(err *PanelError) string {
	if err == nil {
		return ""
	}
	return err.Message
}
