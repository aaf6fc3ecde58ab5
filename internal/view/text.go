package view

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#89b4fa")).Bold(true)
	outputStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#cdd6f4"))
	linkStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#74c7ec")).Underline(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#f38ba8"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#7f849c"))
	focusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#1e1e2e")).Background(lipgloss.Color("#89b4fa"))
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#45475a")).Padding(0, 1)
)

// RenderItem 按 标题、输出、错误、子控件 的顺序渲染表单项
func RenderItem(item FormItem, children ...string) string {
	lines := []string{titleStyle.Render(item.Title)}
	if item.HasOutput() {
		if item.OutputIsLink() {
			lines = append(lines, linkStyle.Render(item.Output))
		} else {
			lines = append(lines, outputStyle.Render(item.Output))
		}
	}
	if item.HasError() {
		lines = append(lines, errorStyle.Render(item.Error))
	}
	lines = append(lines, children...)
	return strings.Join(lines, "\n")
}

// Field 终端输入框
type Field struct {
	Label   string
	Value   string
	Focused bool
	// Disabled 为真时对应的按钮不可用
	Disabled bool
}

// Render 渲染输入框
func (f Field) Render() string {
	value := f.Value
	if value == "" {
		value = mutedStyle.Render("(empty)")
	}
	line := fmt.Sprintf("%s: %s", f.Label, value)
	if f.Focused {
		line = focusStyle.Render(line)
	}
	if f.Disabled {
		line += " " + mutedStyle.Render("[disabled]")
	}
	return line
}

// TextInputs 终端界面的输入状态，没有输入状态时传零值
type TextInputs struct {
	AbiURL  Field
	Address Field
	Unit    Field
	Gas     Field
}

// RenderText 渲染终端设置页面
func RenderText(page Page, inputs TextInputs) string {
	abiChildren := []string{}
	if inputs.AbiURL.Label != "" {
		abiChildren = append(abiChildren, inputs.AbiURL.Render())
	}
	if page.State.Loading {
		abiChildren = append(abiChildren, mutedStyle.Render("loading..."))
	}
	if page.Summary != nil {
		abiChildren = append(abiChildren, mutedStyle.Render(fmt.Sprintf("%d methods, %d events, %d errors",
			len(page.Summary.Methods), len(page.Summary.Events), len(page.Summary.Errors))))
	}

	var addressChildren, unitChildren, gasChildren []string
	if inputs.Address.Label != "" {
		addressChildren = append(addressChildren, inputs.Address.Render())
	}
	if inputs.Unit.Label != "" {
		unitChildren = append(unitChildren, inputs.Unit.Render())
	}
	if inputs.Gas.Label != "" {
		gasChildren = append(gasChildren, inputs.Gas.Render())
	}

	misc := lipgloss.JoinHorizontal(lipgloss.Top,
		boxStyle.Render(RenderItem(page.Unit, unitChildren...)),
		boxStyle.Render(RenderItem(page.Gas, gasChildren...)),
	)

	return lipgloss.JoinVertical(lipgloss.Left,
		boxStyle.Render(RenderItem(page.ABI, abiChildren...)),
		boxStyle.Render(RenderItem(page.Address, addressChildren...)),
		misc,
	)
}
