package tui

import (
	"context"
	stderrors "errors"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"abipanel/internal/errors"
	"abipanel/internal/panel"
	"abipanel/internal/units"
	"abipanel/internal/view"
)

type field int

const (
	fieldAbiURL field = iota
	fieldAddress
	fieldUnit
	fieldGas
	fieldCount
)

var (
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#a6e3a1"))
	statusErrStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#f38ba8"))
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#7f849c"))
)

// abiFetchedMsg 远程 ABI 获取结束
type abiFetchedMsg struct {
	url string
	err error
}

// Model 终端设置面板
type Model struct {
	ctx        context.Context
	controller *panel.Controller
	misc       *panel.MiscForm

	focus     field
	status    string
	statusErr bool
	quitting  bool
}

// New 创建终端面板
func New(ctx context.Context, controller *panel.Controller, misc *panel.MiscForm) Model {
	return Model{
		ctx:        ctx,
		controller: controller,
		misc:       misc,
	}
}

// Run 运行终端面板直到退出
func Run(ctx context.Context, controller *panel.Controller, misc *panel.MiscForm) error {
	_, err := tea.NewProgram(New(ctx, controller, misc), tea.WithContext(ctx)).Run()
	if stderrors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}

func (m Model) Init() tea.Cmd {
	return nil
}

func fetchCmd(ctx context.Context, c *panel.Controller, abiURL string) tea.Cmd {
	return func() tea.Msg {
		return abiFetchedMsg{url: abiURL, err: c.FetchAbi(ctx, abiURL)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case abiFetchedMsg:
		return m.handleFetched(msg), nil
	case tea.KeyMsg:
		return m.updateKey(msg)
	}
	return m, nil
}

func (m Model) handleFetched(msg abiFetchedMsg) Model {
	switch {
	case stderrors.Is(msg.err, panel.ErrSuperseded):
		// 被新的请求取代，不覆盖状态栏
	case msg.err != nil:
		m.setError("Failed to load " + msg.url)
	default:
		m.setStatus("Loaded " + msg.url)
	}
	return m
}

func (m *Model) setStatus(s string) {
	m.status = s
	m.statusErr = false
}

func (m *Model) setError(s string) {
	m.status = s
	m.statusErr = true
}

func (m Model) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		m.quitting = true
		return m, tea.Quit
	case "tab", "down":
		m.focus = (m.focus + 1) % fieldCount
		return m, nil
	case "shift+tab", "up":
		m.focus = (m.focus + fieldCount - 1) % fieldCount
		return m, nil
	case "enter":
		return m.submit()
	case "left":
		if m.focus == fieldUnit {
			m.cycleUnit(-1)
		}
		return m, nil
	case "right":
		if m.focus == fieldUnit {
			m.cycleUnit(1)
		}
		return m, nil
	case "backspace":
		m.editText(func(s string) string {
			if s == "" {
				return s
			}
			r := []rune(s)
			return string(r[:len(r)-1])
		})
		return m, nil
	case "ctrl+u":
		m.editText(func(string) string { return "" })
		return m, nil
	}

	if msg.Type == tea.KeyRunes || msg.Type == tea.KeySpace {
		text := string(msg.Runes)
		if msg.Type == tea.KeySpace {
			text = " "
		}
		m.editText(func(s string) string { return s + text })
	}
	return m, nil
}

// editText 修改当前聚焦的文本框，Gas 上限直接写入存储
func (m *Model) editText(edit func(string) string) {
	state := m.controller.Snapshot()
	switch m.focus {
	case fieldAbiURL:
		m.controller.SetAbiURL(edit(state.ABI.SourceURL))
	case fieldAddress:
		m.controller.SetEditingAddress(edit(state.Address.EditingValue))
	case fieldGas:
		if err := m.misc.SetGasLimit(edit(m.misc.Settings().GasLimit)); err != nil {
			m.setError(errors.MessageOf(asPanelError(err)))
		}
	}
}

func (m *Model) cycleUnit(step int) {
	current := m.misc.Settings().Unit
	idx := 0
	for i, opt := range units.Options {
		if opt.Value == current {
			idx = i
			break
		}
	}
	n := len(units.Options)
	next := units.Options[(idx+step+n)%n]
	if err := m.misc.SetUnit(string(next.Value)); err != nil {
		m.setError(errors.MessageOf(asPanelError(err)))
	}
}

// submit Load 和 Set 在不可用时不响应
func (m Model) submit() (tea.Model, tea.Cmd) {
	state := m.controller.Snapshot()
	switch m.focus {
	case fieldAbiURL:
		if !state.CanLoad() {
			return m, nil
		}
		m.setStatus("Loading " + state.ABI.SourceURL + "...")
		return m, fetchCmd(m.ctx, m.controller, state.ABI.SourceURL)
	case fieldAddress:
		if !state.CanSetAddress() {
			return m, nil
		}
		if err := m.controller.UpdateContractAddress(state.Address.EditingValue); err == nil {
			m.setStatus("Contract address set")
		}
	}
	return m, nil
}

func asPanelError(err error) *errors.PanelError {
	var perr *errors.PanelError
	if stderrors.As(err, &perr) {
		return perr
	}
	return errors.Verbatim(err, errors.KindStorage, errors.CodeStoreWrite)
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	state := m.controller.Snapshot()
	settings := m.misc.Settings()
	page := view.NewPage(state, settings)

	inputs := view.TextInputs{
		AbiURL: view.Field{
			Label:    "url (enter to Load)",
			Value:    state.ABI.SourceURL,
			Focused:  m.focus == fieldAbiURL,
			Disabled: !state.CanLoad(),
		},
		Address: view.Field{
			Label:    "address (enter to Set)",
			Value:    state.Address.EditingValue,
			Focused:  m.focus == fieldAddress,
			Disabled: !state.CanSetAddress(),
		},
		Unit: view.Field{
			Label:   "unit (left/right)",
			Value:   settings.Unit.Label(),
			Focused: m.focus == fieldUnit,
		},
		Gas: view.Field{
			Label:   "gas limit (" + view.GasLimitSuffix + ")",
			Value:   settings.GasLimit,
			Focused: m.focus == fieldGas,
		},
	}

	var b strings.Builder
	b.WriteString(view.RenderText(page, inputs))
	b.WriteString("\n")
	if m.status != "" {
		if m.statusErr {
			b.WriteString(statusErrStyle.Render(m.status))
		} else {
			b.WriteString(statusStyle.Render(m.status))
		}
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("tab: next field  enter: load/set  left/right: unit  ctrl+u: clear  esc: quit"))
	return b.String()
}
