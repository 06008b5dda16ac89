package audit

import (
	"fmt"
	"os/exec"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/amishk599/freshpost/internal/filter"
	"github.com/amishk599/freshpost/internal/model"
)

// rowLines is the height of one rendered item: title, subtitle, gap.
const rowLines = 3

const (
	paneCandidates = iota
	panePostings
)

type screen int

const (
	screenList screen = iota
	screenDetail
)

type theme struct {
	accent, muted, bar, highlight lipgloss.Color
}

var palette = theme{
	accent:    lipgloss.Color("39"),
	muted:     lipgloss.Color("240"),
	bar:       lipgloss.Color("236"),
	highlight: lipgloss.Color("24"),
}

func (t theme) frame(focused bool, width int) lipgloss.Style {
	c := t.muted
	if focused {
		c = t.accent
	}
	return lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(c).Width(width)
}

func (t theme) heading(focused bool) lipgloss.Style {
	c := t.muted
	if focused {
		c = t.accent
	}
	return lipgloss.NewStyle().Bold(true).Padding(0, 1).Foreground(c)
}

func (t theme) status(width int) lipgloss.Style {
	return lipgloss.NewStyle().Padding(0, 1).Width(width).
		Foreground(lipgloss.Color("252")).Background(t.bar)
}

func (t theme) title(it item, selected bool) lipgloss.Style {
	switch {
	case selected:
		return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(t.highlight)
	case it.rejected:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("243")).Strikethrough(true)
	default:
		return lipgloss.NewStyle().Bold(true)
	}
}

func (t theme) subtitle(selected bool) lipgloss.Style {
	if selected {
		return lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Background(t.highlight)
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
}

// item is one entry in either pane.
type item struct {
	title    string
	subtitle string
	rejected bool
	fields   [][2]string // label, value for the detail screen
	url      string
}

// pane is a scrollable list with its own cursor.
type pane struct {
	label  string
	empty  string
	items  []item
	cursor int
	vp     viewport.Model
}

func (p *pane) move(delta int) {
	p.cursor = min(max(p.cursor+delta, 0), max(len(p.items)-1, 0))
	top := p.cursor * rowLines
	bottom := top + rowLines - 1
	switch {
	case top < p.vp.YOffset:
		p.vp.SetYOffset(top)
	case bottom >= p.vp.YOffset+p.vp.Height:
		p.vp.SetYOffset(bottom - p.vp.Height + 1)
	}
}

func (p *pane) selected() (item, bool) {
	if len(p.items) == 0 {
		return item{}, false
	}
	return p.items[p.cursor], true
}

func (p *pane) refresh(focused bool) {
	if len(p.items) == 0 {
		p.vp.SetContent("  " + p.empty)
		return
	}
	var b strings.Builder
	for i, it := range p.items {
		sel := focused && i == p.cursor
		marker := "  "
		if sel {
			marker = "> "
		}
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s%s\n%s%s\n", marker, palette.title(it, sel).Render(it.title), marker, palette.subtitle(sel).Render(it.subtitle))
	}
	p.vp.SetContent(b.String())
}

type auditModel struct {
	ins          Inspection
	rows         []Row // accepted first
	hideRejected bool

	panes  [2]pane
	focus  int
	width  int
	height int
	sized  bool

	screen screen
	detail item
	page   viewport.Model

	wantQuit bool
}

func newAuditModel(ins Inspection) auditModel {
	rows := append([]Row(nil), ins.Rows...)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Accepted() && !rows[j].Accepted() })

	m := auditModel{ins: ins, rows: rows}
	m.panes[paneCandidates] = pane{label: "Raw Candidates", empty: "(no candidates)"}
	m.panes[panePostings] = pane{label: "Accepted Postings", empty: "(nothing accepted)"}
	m.fillCandidates()
	for _, p := range ins.Postings {
		m.panes[panePostings].items = append(m.panes[panePostings].items, postingItem(p))
	}
	return m
}

func (m *auditModel) fillCandidates() {
	p := &m.panes[paneCandidates]
	p.items = nil
	for _, r := range m.rows {
		if m.hideRejected && !r.Accepted() {
			continue
		}
		p.items = append(p.items, rowItem(r))
	}
	p.cursor = 0
	p.vp.SetYOffset(0)
}

func rowItem(r Row) item {
	c := r.Candidate
	parts := []string{string(r.Reason)}
	if c.Location != "" {
		parts = append(parts, c.Location)
	}
	if c.PostedAt != nil {
		parts = append(parts, c.PostedAt.Format("2006-01-02"))
	}
	link := c.Link
	if link == "" {
		link = c.PageURL
	}
	return item{
		title:    singleLine(c.Text),
		subtitle: strings.Join(parts, " · "),
		rejected: !r.Accepted(),
		url:      link,
		fields: [][2]string{
			{"Text", c.Text},
			{"Verdict", string(r.Reason)},
			{"Key", r.Key},
			{"External ID", c.ExternalID},
			{"Link", c.Link},
			{"Page", c.PageURL},
			{"Location", c.Location},
			{"Posted At", formatTime(c.PostedAt)},
		},
	}
}

func postingItem(p model.Posting) item {
	sub := p.Key
	if p.Location != "" {
		sub += " · " + p.Location
	}
	return item{
		title:    p.Title,
		subtitle: sub,
		url:      p.URL,
		fields: [][2]string{
			{"Title", p.Title},
			{"Key", p.Key},
			{"URL", p.URL},
			{"Location", p.Location},
			{"Posted At", formatTime(p.PostedAt)},
		},
	}
}

func (m auditModel) Init() tea.Cmd { return nil }

func (m auditModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			m.wantQuit = true
			return m, tea.Quit
		}
		if m.screen == screenDetail {
			return m.detailKey(msg)
		}
		return m.listKey(msg)
	}
	return m, nil
}

func (m auditModel) listKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	active := &m.panes[m.focus]
	switch msg.String() {
	case "esc", "b":
		return m, tea.Quit
	case "tab", "left", "right":
		m.focus = 1 - m.focus
	case "up", "k":
		active.move(-1)
	case "down", "j":
		active.move(1)
	case "r":
		m.hideRejected = !m.hideRejected
		m.fillCandidates()
	case "enter":
		it, ok := active.selected()
		if !ok {
			return m, nil
		}
		m.screen = screenDetail
		m.detail = it
		m.page = viewport.New(m.width-4, m.height-4)
		m.page.SetContent(m.renderDetail())
		return m, nil
	default:
		var cmd tea.Cmd
		active.vp, cmd = active.vp.Update(msg)
		return m, cmd
	}
	m.refresh()
	return m, nil
}

func (m auditModel) detailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "backspace":
		m.screen = screenList
		return m, nil
	case "o":
		if m.detail.url != "" {
			openInBrowser(m.detail.url)
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.page, cmd = m.page.Update(msg)
	return m, cmd
}

func (m *auditModel) resize(w, h int) {
	m.width, m.height = w, h
	// Two borders per pane plus a one-column gap; header, borders and status bar take four rows.
	pw, ph := max((w-5)/2, 20), max(h-4, 5)
	for i := range m.panes {
		if !m.sized {
			m.panes[i].vp = viewport.New(pw, ph)
			continue
		}
		m.panes[i].vp.Width, m.panes[i].vp.Height = pw, ph
	}
	m.sized = true
	m.refresh()
	if m.screen == screenDetail {
		m.page.Width, m.page.Height = w-4, h-4
		m.page.SetContent(m.renderDetail())
	}
}

func (m *auditModel) refresh() {
	for i := range m.panes {
		m.panes[i].refresh(i == m.focus)
	}
}

func (m auditModel) View() string {
	switch {
	case !m.sized:
		return "Initializing..."
	case m.screen == screenDetail:
		return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).MarginBottom(1).Render("Candidate Details") + "\n" +
			palette.frame(true, m.width-2).Render(m.page.View()) + "\n" +
			palette.status(m.width).Render(" o open URL  esc back  ↑/↓ scroll  q quit")
	}

	w := m.panes[0].vp.Width
	var heads, bodies []string
	for i, p := range m.panes {
		focused := i == m.focus
		head := fmt.Sprintf(" %s (%d)", p.label, len(p.items))
		if i == paneCandidates {
			head += " · " + m.ins.Adapter
		}
		if i > 0 {
			heads, bodies = append(heads, " "), append(bodies, " ")
		}
		heads = append(heads, lipgloss.NewStyle().Width(w+2).Render(palette.heading(focused).Render(head)))
		bodies = append(bodies, palette.frame(focused, w).Render(p.vp.View()))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, heads...) + "\n" +
		lipgloss.JoinHorizontal(lipgloss.Top, bodies...) + "\n" +
		palette.status(m.width).Render(m.statusText())
}

func (m auditModel) statusText() string {
	if m.ins.Err != nil {
		return " error: " + singleLine(m.ins.Err.Error())
	}
	counts := m.ins.Counts()
	accepted, irrelevant := counts[filter.ReasonAccepted], counts[ReasonIrrelevant]
	return fmt.Sprintf(" %d accepted | %d noise | %d irrelevant    tab switch  ↑/↓ move  r hide rejected  enter detail  esc back  q quit",
		accepted, len(m.ins.Rows)-accepted-irrelevant, irrelevant)
}

func (m auditModel) renderDetail() string {
	label := lipgloss.NewStyle().Bold(true).Foreground(palette.accent).Width(14)
	var b strings.Builder
	for _, f := range m.detail.fields {
		if f[1] == "" {
			continue
		}
		b.WriteString(label.Render(f[0]) + wordWrap(f[1], max(m.width-24, 20)) + "\n")
	}
	if m.ins.Err != nil {
		b.WriteString("\n" + lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("⚠ "+m.ins.Err.Error()) + "\n")
	}
	return b.String()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04 MST")
}

func singleLine(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > 120 {
		return string(r[:119]) + "…"
	}
	return s
}

func wordWrap(text string, width int) string {
	var out strings.Builder
	n := 0
	for i, w := range strings.Fields(text) {
		switch {
		case i == 0:
		case n+1+len(w) > width:
			out.WriteByte('\n')
			n = 0
		default:
			out.WriteByte(' ')
			n++
		}
		out.WriteString(w)
		n += len(w)
	}
	return out.String()
}

func openInBrowser(url string) {
	var name string
	args := []string{url}
	switch runtime.GOOS {
	case "darwin":
		name = "open"
	case "linux":
		name = "xdg-open"
	case "windows":
		name, args = "cmd", []string{"/c", "start", url}
	default:
		return
	}
	_ = exec.Command(name, args...).Start()
}

// RunAuditTUI shows one inspection. It reports true when the user quit and
// false when they went back to the source picker.
func RunAuditTUI(ins Inspection) (bool, error) {
	result, err := tea.NewProgram(newAuditModel(ins), tea.WithAltScreen()).Run()
	if err != nil {
		return false, err
	}
	return result.(auditModel).wantQuit, nil
}
