package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	wavetranslate "github.com/wippyai/wave-translate"
	"github.com/wippyai/wave-translate/errors"
	"github.com/wippyai/wave-translate/scheduler"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	nameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	translatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

func (c *cli) newViewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "view",
		Short: "Browse a trace interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !term.IsTerminal(int(os.Stdout.Fd())) {
				return errors.InvalidInput(errors.PhaseTrace, "view needs a terminal")
			}
			eng, err := c.open(cmd.Context(), true)
			if err != nil {
				return err
			}
			m := newViewModel(cmd.Context(), eng, c.trace.Variables())
			if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run(); err != nil {
				return err
			}
			return c.saveSession()
		},
	}
}

type viewModel struct {
	ctx      context.Context
	err      error
	eng      *wavetranslate.Engine
	results  map[string]scheduler.VariableResult
	vars     []string
	jump     textinput.Model
	time     uint64
	selected int
	pending  bool
	jumping  bool
}

type resultsMsg struct {
	err error
	res *scheduler.Results
}

func newViewModel(ctx context.Context, eng *wavetranslate.Engine, vars []string) *viewModel {
	return &viewModel{
		ctx:     ctx,
		eng:     eng,
		vars:    vars,
		results: make(map[string]scheduler.VariableResult),
	}
}

func (m *viewModel) Init() tea.Cmd {
	return m.refresh()
}

// refresh submits a batch for every variable. A newer refresh supersedes
// an older one still running.
func (m *viewModel) refresh() tea.Cmd {
	b := scheduler.Batch{Viewport: "view"}
	for _, v := range m.vars {
		b.Requests = append(b.Requests, scheduler.Request{Variable: v, From: 0, To: math.MaxUint64})
	}
	m.pending = true
	job := m.eng.Scheduler().Submit(m.ctx, b)
	return func() tea.Msg {
		res, err := job.Wait(m.ctx)
		return resultsMsg{res: res, err: err}
	}
}

func (m *viewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && m.jumping {
		return m.updateJump(key)
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit

		case "up", "k":
			if m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.selected < len(m.vars)-1 {
				m.selected++
			}

		case "right", "l":
			m.step(1)

		case "left", "h":
			m.step(-1)

		case "tab":
			if len(m.vars) > 0 {
				if err := m.cycleTranslator(m.vars[m.selected]); err != nil {
					m.err = err
					return m, nil
				}
				m.err = nil
				return m, m.refresh()
			}

		case "g":
			m.jump = textinput.New()
			m.jump.Prompt = "time: "
			m.jump.Placeholder = strconv.FormatUint(m.time, 10)
			m.jump.Width = 20
			m.jump.Focus()
			m.jumping = true
			return m, textinput.Blink

		case "r":
			if err := m.eng.Reload(m.ctx); err != nil {
				m.err = err
			}
			return m, m.refresh()

		case "R":
			if len(m.vars) == 0 {
				return m, nil
			}
			name, err := m.eng.Translator(m.vars[m.selected], "")
			if err == nil {
				err = m.eng.ReloadTranslator(m.ctx, name)
			}
			m.err = err
			return m, m.refresh()
		}

	case resultsMsg:
		if msg.err != nil {
			if errors.IsCancelled(msg.err) {
				return m, nil
			}
			m.err = msg.err
		}
		m.pending = false
		if msg.res != nil {
			for _, vr := range msg.res.Variables {
				m.results[vr.Variable] = vr
			}
		}
	}
	return m, nil
}

// updateJump handles keys while the time input is open.
func (m *viewModel) updateJump(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.jumping = false
		return m, nil
	case "enter":
		m.jumping = false
		t, err := strconv.ParseUint(strings.TrimSpace(m.jump.Value()), 10, 64)
		if err != nil {
			m.err = fmt.Errorf("bad time %q", m.jump.Value())
			return m, nil
		}
		m.err = nil
		m.time = t
		return m, nil
	}
	var cmd tea.Cmd
	m.jump, cmd = m.jump.Update(key)
	return m, cmd
}

// step moves the cursor to the next or previous value change of the
// selected variable.
func (m *viewModel) step(dir int) {
	if len(m.vars) == 0 {
		return
	}
	runs := m.results[m.vars[m.selected]].Runs
	if dir > 0 {
		for _, r := range runs {
			if r.Start > m.time {
				m.time = r.Start
				return
			}
		}
		return
	}
	for i := len(runs) - 1; i >= 0; i-- {
		if runs[i].Start < m.time {
			m.time = runs[i].Start
			return
		}
	}
}

// cycleTranslator binds the next applicable translator to variable.
func (m *viewModel) cycleTranslator(variable string) error {
	a, err := m.eng.ApplicableTranslators(variable, "")
	if err != nil {
		return err
	}
	names := a.All()
	if len(names) == 0 {
		return nil
	}
	current, err := m.eng.Translator(variable, "")
	if err != nil {
		return err
	}
	next := names[0]
	for i, n := range names {
		if n == current {
			next = names[(i+1)%len(names)]
			break
		}
	}
	return m.eng.SetTranslator(variable, "", next)
}

func (m *viewModel) valueAt(vr scheduler.VariableResult) (scheduler.Run, bool) {
	for _, r := range vr.Runs {
		if r.Start <= m.time && m.time < r.End {
			return r, true
		}
	}
	return scheduler.Run{}, false
}

func (m *viewModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Wave Translate"))
	b.WriteString(fmt.Sprintf(" t = %d", m.time))
	if m.pending {
		b.WriteString(helpStyle.Render("  translating..."))
	}
	b.WriteString("\n\n")

	th := m.eng.Theme()
	for i, v := range m.vars {
		vr := m.results[v]
		line := nameStyle.Render(v) + " " + translatorStyle.Render("["+vr.Translator+"]") + " "
		switch {
		case vr.Err != nil:
			line += errorStyle.Render(vr.Err.Error())
		default:
			if run, ok := m.valueAt(vr); ok {
				line += th.Render(run.Result, nil)
			} else {
				line += helpStyle.Render("-")
			}
		}
		if i == m.selected {
			b.WriteString(selectedStyle.Render("> ") + line)
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}

	if m.jumping {
		b.WriteString("\n")
		b.WriteString(m.jump.View())
		b.WriteString("\n")
	}
	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("↑/↓ select • ←/→ previous/next change • tab next translator • g go to time • r reload all • R reload translator • q quit"))
	return b.String()
}
