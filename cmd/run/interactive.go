package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/wasi-runner/runtime"
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

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type entry struct {
	section string
	label   string
	detail  string
	search  string
}

type modelState int

const (
	stateBrowse modelState = iota
	stateFilter
	stateDetail
)

type interactiveModel struct {
	report   *runtime.Report
	filter   textinput.Model
	filename string
	entries  []entry
	visible  []int
	selected int
	state    modelState
}

func newInteractiveModel(filename string, report *runtime.Report) *interactiveModel {
	ti := textinput.New()
	ti.Placeholder = "name"
	ti.Prompt = "filter: "
	ti.Width = 40

	m := &interactiveModel{
		report:   report,
		filter:   ti,
		filename: filename,
		state:    stateBrowse,
	}
	for _, imp := range report.Imports {
		status := "supported"
		if !imp.Supported {
			status = "missing"
		}
		m.entries = append(m.entries, entry{
			section: "import",
			label:   formatImport(imp),
			detail: fmt.Sprintf("module:    %s\nname:      %s\nkind:      %s\nsignature: %s\nstatus:    %s",
				imp.Module, imp.Name, imp.Kind, orNone(imp.Signature), status),
			search: strings.ToLower(imp.Module + "." + imp.Name),
		})
	}
	for _, exp := range report.Exports {
		m.entries = append(m.entries, entry{
			section: "export",
			label:   formatExport(exp),
			detail: fmt.Sprintf("name:      %s\nkind:      %s\nsignature: %s",
				exp.Name, exp.Kind, orNone(exp.Signature)),
			search: strings.ToLower(exp.Name),
		})
	}
	m.applyFilter()
	return m
}

func orNone(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func (m *interactiveModel) applyFilter() {
	q := strings.ToLower(strings.TrimSpace(m.filter.Value()))
	m.visible = m.visible[:0]
	for i, e := range m.entries {
		if q == "" || strings.Contains(e.search, q) {
			m.visible = append(m.visible, i)
		}
	}
	if m.selected >= len(m.visible) {
		m.selected = len(m.visible) - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
}

func (m *interactiveModel) Init() tea.Cmd {
	return nil
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	if m.state == stateFilter {
		switch key.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "enter", "esc":
			if key.String() == "esc" {
				m.filter.SetValue("")
				m.applyFilter()
			}
			m.filter.Blur()
			m.state = stateBrowse
			return m, nil
		}
		var cmd tea.Cmd
		m.filter, cmd = m.filter.Update(msg)
		m.applyFilter()
		return m, cmd
	}

	switch key.String() {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "up", "k":
		if m.state == stateBrowse && m.selected > 0 {
			m.selected--
		}

	case "down", "j":
		if m.state == stateBrowse && m.selected < len(m.visible)-1 {
			m.selected++
		}

	case "/":
		if m.state == stateBrowse {
			m.state = stateFilter
			return m, m.filter.Focus()
		}

	case "enter":
		switch m.state {
		case stateBrowse:
			if len(m.visible) > 0 {
				m.state = stateDetail
			}
		case stateDetail:
			m.state = stateBrowse
		}

	case "esc":
		m.state = stateBrowse
	}
	return m, nil
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("WASI Inspector"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	switch m.state {
	case stateDetail:
		e := m.entries[m.visible[m.selected]]
		b.WriteString(funcStyle.Render(e.section))
		b.WriteString("\n\n")
		b.WriteString(e.detail)
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter/esc back • q quit"))

	default:
		if m.state == stateFilter || m.filter.Value() != "" {
			b.WriteString(m.filter.View())
			b.WriteString("\n\n")
		}
		section := ""
		for i, idx := range m.visible {
			e := m.entries[idx]
			if e.section != section {
				section = e.section
				b.WriteString(typeStyle.Render(section + "s"))
				b.WriteString("\n")
			}
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + e.label))
			} else {
				b.WriteString("  " + e.label)
			}
			b.WriteString("\n")
		}
		if len(m.visible) == 0 {
			b.WriteString(helpStyle.Render("no matches"))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		switch missing := len(m.report.Missing()); {
		case m.report.Runnable():
			b.WriteString(resultStyle.Render("runnable"))
		case missing > 0:
			b.WriteString(errorStyle.Render(fmt.Sprintf("not runnable: %d missing import(s)", missing)))
		default:
			b.WriteString(errorStyle.Render("not runnable: no " + runtime.EntryPoint + " export"))
		}
		b.WriteString("\n\n")
		if m.state == stateFilter {
			b.WriteString(helpStyle.Render("enter apply • esc clear"))
		} else {
			b.WriteString(helpStyle.Render("↑/↓ select • enter details • / filter • q quit"))
		}
	}
	return b.String()
}

func runInteractive(filename string, report *runtime.Report) error {
	p := tea.NewProgram(newInteractiveModel(filename, report), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
