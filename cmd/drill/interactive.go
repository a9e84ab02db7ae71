package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/handletable"
	"github.com/wippyai/handletable/arena"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type interactiveModel struct {
	err    error
	plan   *handletable.Plan
	arena  *arena.Arena
	result string
	input  textinput.Model
}

func newInteractiveModel(p *handletable.Plan, a *arena.Arena) *interactiveModel {
	ti := textinput.New()
	ti.Placeholder = "0x8080000000000000 or alloc 100"
	ti.Prompt = "> "
	ti.Width = 40
	ti.Focus()
	return &interactiveModel{plan: p, arena: a, input: ti}
}

func (m *interactiveModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			m.result, m.err = m.eval(m.input.Value())
			m.input.SetValue("")
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// eval handles one line: "alloc <size>" issues a handle from the arena,
// anything else is read as a hex handle.
func (m *interactiveModel) eval(line string) (string, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", nil
	}

	if size, ok := strings.CutPrefix(line, "alloc "); ok {
		n, err := strconv.ParseUint(strings.TrimSpace(size), 0, 64)
		if err != nil {
			return "", fmt.Errorf("parse size: %w", err)
		}
		h, _, err := m.arena.Allocate(n)
		if err != nil {
			return "", err
		}
		return describe(m.plan, h)
	}

	h, err := parseHandle(line)
	if err != nil {
		return "", err
	}
	out, err := describe(m.plan, h)
	if err != nil {
		return "", err
	}
	if mp, err := m.arena.Translate(h, false); err == nil && mp.Live() {
		out += fmt.Sprintf("mapped  %d bytes, %d pins\n", mp.Size, mp.Pins())
	}
	return out, nil
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Handle Explorer"))
	fmt.Fprintf(&b, " %d of %d size classes supported\n\n",
		m.plan.Dispatch.Supported(), m.plan.Dispatch.Len())
	b.WriteString(m.input.View())
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n\n")
	} else if m.result != "" {
		b.WriteString(resultStyle.Render(m.result))
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render("enter decompose • alloc <size> issue a handle • esc quit"))
	return b.String()
}

func runInteractive(p *handletable.Plan) error {
	a, err := arena.New(0, p)
	if err != nil {
		return err
	}
	prog := tea.NewProgram(newInteractiveModel(p, a), tea.WithAltScreen())
	_, err = prog.Run()
	return err
}
