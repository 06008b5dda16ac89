package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const inspectTimeout = 3 * time.Minute

type inspectDoneMsg struct {
	ins Inspection
}

type loaderModel struct {
	sourceName string
	inspectFn  func(ctx context.Context) Inspection
	ctx        context.Context
	cancel     context.CancelFunc
	spinner    spinner.Model
	result     Inspection
	cancelled  bool
	done       bool
}

func newLoaderModel(ctx context.Context, sourceName string, fn func(ctx context.Context) Inspection) loaderModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("33"))
	ctx, cancel := context.WithTimeout(ctx, inspectTimeout)
	return loaderModel{sourceName: sourceName, inspectFn: fn, ctx: ctx, cancel: cancel, spinner: s}
}

func (m loaderModel) Init() tea.Cmd {
	return tea.Batch(m.doInspect(), m.spinner.Tick)
}

func (m loaderModel) doInspect() tea.Cmd {
	fn, ctx := m.inspectFn, m.ctx
	return func() tea.Msg {
		return inspectDoneMsg{ins: fn(ctx)}
	}
}

func (m loaderModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case inspectDoneMsg:
		m.result = msg.ins
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.done = true
			m.cancelled = true
			m.cancel()
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m loaderModel) View() string {
	if m.done {
		return ""
	}
	return fmt.Sprintf("%s Collecting candidates from %s...\n", m.spinner.View(), m.sourceName)
}

// RunLoader shows an inline spinner while fn inspects the source. ctrl+c
// cancels the context passed to fn.
func RunLoader(sourceName string, fn func(ctx context.Context) Inspection) (Inspection, error) {
	m := newLoaderModel(context.Background(), sourceName, fn)
	defer m.cancel()
	result, err := tea.NewProgram(m).Run()
	if err != nil {
		return Inspection{}, err
	}
	final := result.(loaderModel)
	if final.cancelled {
		return Inspection{}, context.Canceled
	}
	return final.result, nil
}
