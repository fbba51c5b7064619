package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/wasm-decoder/wasm"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

const defaultPageSize = 20

type browserState int

const (
	stateSelectFunc browserState = iota
	stateJump
	stateShowCode
)

type interactiveModel struct {
	err      error
	module   *wasm.Module
	filename string
	opts     wasm.Options
	lines    []string
	jump     textinput.Model
	selected int
	scroll   int
	pageSize int
	loaded   bool
	state    browserState
}

type loadedMsg struct {
	err    error
	module *wasm.Module
}

func newInteractiveModel(filename string, opts wasm.Options) *interactiveModel {
	ti := textinput.New()
	ti.Prompt = "func index: "
	ti.Placeholder = "0"
	ti.Width = 12
	ti.CharLimit = 10

	return &interactiveModel{
		filename: filename,
		opts:     opts,
		jump:     ti,
		pageSize: defaultPageSize,
		state:    stateSelectFunc,
	}
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.loadModule
}

func (m *interactiveModel) loadModule() tea.Msg {
	data, err := os.ReadFile(m.filename)
	if err != nil {
		return loadedMsg{err: err}
	}
	mod, err := wasm.NewDecoder(m.opts).Decode(data)
	if err != nil {
		return loadedMsg{err: err}
	}
	return loadedMsg{module: mod}
}

func (m *interactiveModel) funcs() []wasm.Function {
	if m.module == nil {
		return nil
	}
	return functions(m.module)
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.state == stateJump {
			return m.updateJump(msg)
		}

		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit

		case "up", "k":
			switch m.state {
			case stateSelectFunc:
				if m.selected > 0 {
					m.selected--
				}
			case stateShowCode:
				if m.scroll > 0 {
					m.scroll--
				}
			}

		case "down", "j":
			switch m.state {
			case stateSelectFunc:
				if m.selected < len(m.funcs())-1 {
					m.selected++
				}
			case stateShowCode:
				if m.scroll < len(m.lines)-m.pageSize {
					m.scroll++
				}
			}

		case "/":
			if m.state == stateSelectFunc && len(m.funcs()) > 0 {
				m.state = stateJump
				m.jump.Reset()
				return m, m.jump.Focus()
			}

		case "enter":
			switch m.state {
			case stateSelectFunc:
				if fns := m.funcs(); len(fns) > 0 {
					m.lines = disassemble(fns[m.selected].Code)
					m.scroll = 0
					m.state = stateShowCode
				}
			case stateShowCode:
				m.state = stateSelectFunc
			}

		case "esc":
			if m.state == stateShowCode {
				m.state = stateSelectFunc
			}
		}

	case tea.WindowSizeMsg:
		// title, header and help lines
		if h := msg.Height - 6; h > 0 {
			m.pageSize = h
		}

	case loadedMsg:
		m.loaded = true
		m.err = msg.err
		m.module = msg.module
	}

	return m, nil
}

func (m *interactiveModel) updateJump(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.jump.Blur()
		m.state = stateSelectFunc
		return m, nil
	case "enter":
		if n, err := strconv.Atoi(strings.TrimSpace(m.jump.Value())); err == nil && n >= 0 && n < len(m.funcs()) {
			m.selected = n
		}
		m.jump.Blur()
		m.state = stateSelectFunc
		return m, nil
	}

	var cmd tea.Cmd
	m.jump, cmd = m.jump.Update(msg)
	return m, cmd
}

func (m *interactiveModel) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}
	if !m.loaded {
		return "Decoding module..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("WASM Decoder"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	fmt.Fprintf(&b, " (version %d)\n\n", m.module.Version)

	fns := m.funcs()
	switch m.state {
	case stateSelectFunc, stateJump:
		if len(fns) == 0 {
			b.WriteString("Module has no code section.\n\n")
			b.WriteString(helpStyle.Render("q quit"))
			break
		}
		start, end := window(m.selected, len(fns), m.pageSize)
		for i := start; i < end; i++ {
			line := m.formatFunc(i, fns[i])
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		if m.state == stateJump {
			b.WriteString(m.jump.View())
			b.WriteString("\n")
			b.WriteString(helpStyle.Render("enter jump • esc cancel"))
		} else {
			b.WriteString(helpStyle.Render("↑/↓ select • enter show code • / jump • q quit"))
		}

	case stateShowCode:
		fmt.Fprintf(&b, "%s %s\n\n", funcStyle.Render(fmt.Sprintf("func[%d]", m.selected)),
			typeStyle.Render(signature(m.module, m.selected)))
		end := min(m.scroll+m.pageSize, len(m.lines))
		for _, line := range m.lines[m.scroll:end] {
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ scroll • enter/esc back • q quit"))
	}

	return b.String()
}

func (m *interactiveModel) formatFunc(i int, fn wasm.Function) string {
	return fmt.Sprintf("%s %s locals=%d instructions=%d",
		funcStyle.Render(fmt.Sprintf("func[%d]", i)),
		typeStyle.Render(signature(m.module, i)),
		fn.NumLocals(),
		countInstructions(fn.Code))
}

// window returns the visible [start, end) range of n rows of which
// selected must be shown.
func window(selected, n, size int) (int, int) {
	if n <= size {
		return 0, n
	}
	start := selected - size/2
	start = max(start, 0)
	start = min(start, n-size)
	return start, start + size
}

func runInteractive(filename string, opts wasm.Options) error {
	// log output would corrupt the alt screen
	opts.Logger = nil
	p := tea.NewProgram(newInteractiveModel(filename, opts), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
