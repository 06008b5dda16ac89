package audit

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/amishk599/freshpost/internal/adapter"
	"github.com/amishk599/freshpost/internal/config"
)

const (
	pickPending = -1
	pickQuit    = -2
)

type pickerModel struct {
	sources []config.SourceConfig
	cursor  int
	chosen  int
}

func (m pickerModel) Init() tea.Cmd { return nil }

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	km, ok := msg.(tea.KeyMsg)
	if !ok || len(m.sources) == 0 {
		if ok && (km.String() == "q" || km.String() == "ctrl+c") {
			m.chosen = pickQuit
			return m, tea.Quit
		}
		return m, nil
	}

	n := len(m.sources)
	switch k := km.String(); k {
	case "q", "ctrl+c":
		m.chosen = pickQuit
		return m, tea.Quit
	case "up", "k":
		m.cursor = (m.cursor + n - 1) % n
	case "down", "j":
		m.cursor = (m.cursor + 1) % n
	case "enter":
		m.chosen = m.cursor
		return m, tea.Quit
	default:
		// 1-9 jump straight to a source.
		if len(k) == 1 && k[0] >= '1' && k[0] <= '9' && int(k[0]-'1') < n {
			m.chosen = int(k[0] - '1')
			return m, tea.Quit
		}
	}
	return m, nil
}

func sourceLabel(s config.SourceConfig) string {
	label := fmt.Sprintf("%s (%s", s.Name, adapter.Describe(s.Primary))
	if s.Fallback != nil {
		label += ", fallback " + adapter.Describe(*s.Fallback)
	}
	return label + ")"
}

func (m pickerModel) View() string {
	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(palette.accent).Padding(1, 0, 1, 2).
		Render(fmt.Sprintf("Source Audit · %d enabled", len(m.sources))))
	b.WriteByte('\n')

	row := lipgloss.NewStyle().PaddingLeft(2)
	for i, src := range m.sources {
		line := fmt.Sprintf("  %d. %s", i+1, sourceLabel(src))
		if i == m.cursor {
			line = lipgloss.NewStyle().Bold(true).Foreground(palette.accent).Render(fmt.Sprintf("> %d. %s", i+1, sourceLabel(src)))
		}
		b.WriteString(row.Render(line) + "\n")
	}

	b.WriteString(lipgloss.NewStyle().Foreground(palette.muted).Padding(1, 0, 0, 2).
		Render("↑/↓ move  1-9 or enter select  q quit"))
	return b.String()
}

// RunSourcePicker lets the user choose a source. A negative index means quit.
func RunSourcePicker(sources []config.SourceConfig) (int, error) {
	result, err := tea.NewProgram(pickerModel{sources: sources, chosen: pickPending}).Run()
	if err != nil {
		return pickPending, err
	}
	return result.(pickerModel).chosen, nil
}
