package view

import (
	"net/url"

	"abipanel/internal/errors"
	"abipanel/internal/panel"
	"abipanel/internal/store"
	"abipanel/internal/units"
	"abipanel/internal/validation"
)

// FormItem 表单项：标题、输出读数、错误提示，子控件由渲染器放在最后
type FormItem struct {
	Title  string `json:"title"`
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

// HasOutput 输出非空才展示
func (f FormItem) HasOutput() bool {
	return f.Output != ""
}

// OutputIsLink 输出是绝对 http(s) 地址时渲染为链接
func (f FormItem) OutputIsLink() bool {
	u, err := url.Parse(f.Output)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// HasError 错误非空才展示
func (f FormItem) HasError() bool {
	return f.Error != ""
}

// GasLimitSuffix Gas 上限输入框后的单位标注，Gas 上限始终以 wei 计
const GasLimitSuffix = "WEI"

// Page 设置页面的渲染模型
type Page struct {
	State    panel.State
	Settings store.UserSettings
	Units    []units.Option
	Summary  *validation.ABISummary

	ABI     FormItem
	Address FormItem
	Unit    FormItem
	Gas     FormItem
}

// NewPage 由控制器快照和用户设置构建页面
func NewPage(state panel.State, settings store.UserSettings) Page {
	page := Page{
		State:    state,
		Settings: settings,
		Units:    units.Options,
		ABI: FormItem{
			Title:  "ABI",
			Output: state.ABI.Label,
			Error:  errors.MessageOf(state.ABI.Err),
		},
		Address: FormItem{
			Title:  "Contract Address",
			Output: state.Contract.Address,
			Error:  errors.MessageOf(state.Address.Err),
		},
		Unit: FormItem{
			Title:  "Input Unit",
			Output: settings.Unit.Label(),
		},
		Gas: FormItem{
			Title:  "Gas Limit",
			Output: settings.GasLimit,
		},
	}

	if state.Contract.HasABI() {
		// 摘要仅用于展示，解析不了就不显示
		if summary, err := validation.DescribeABI(state.Contract.ABI); err == nil {
			page.Summary = summary
		}
	}

	return page
}

// GasSuffix 模板中使用
func (Page) GasSuffix() string {
	return GasLimitSuffix
}
