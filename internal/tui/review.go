package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/jenkins2gha/internal/output"
	"github.com/mattjoyce/jenkins2gha/internal/report"
	"github.com/mattjoyce/jenkins2gha/internal/simulate"
)

// View is one tab of the review program.
type View int

const (
	ViewStages View = iota
	ViewPlan
	ViewFiles
	ViewManual
)

var viewNames = []string{"Stages", "Plan", "Files", "Manual"}

func (v View) String() string { return viewNames[v] }

// Input is everything the review program shows.
type Input struct {
	Report *report.Report
	Plan   *simulate.Plan
	Files  []output.File
}

type checkItem struct {
	report.ManualItem
	done bool
}

func (i checkItem) Title() string {
	check := "[ ]"
	if i.done {
		check = "[x]"
	}
	return fmt.Sprintf("%s %s", check, i.Item)
}
func (i checkItem) Description() string { return i.Stage }
func (i checkItem) FilterValue() string { return i.Item }

// planRow ties a table row back to its wave.
type planRow struct {
	wave     int
	decision simulate.Decision
}

// Model is the review program. It is read-only apart from the manual
// checklist.
type Model struct {
	in    Input
	theme Theme

	width  int
	height int

	active    View
	table     table.Model
	detail    viewport.Model
	checklist list.Model
	planRows  []planRow
	quitting  bool
}

// New builds the review model.
func New(in Input) Model {
	t := table.New(
		table.WithFocused(true),
		table.WithHeight(10),
	)
	t.SetStyles(tableStyles())

	items := make([]list.Item, 0)
	if in.Report != nil {
		for _, mi := range in.Report.Manual {
			items = append(items, checkItem{ManualItem: mi})
		}
	}
	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Manual conversion items (space to toggle)"
	l.SetFilteringEnabled(false)
	listStyles(&l)

	m := Model{
		in:        in,
		theme:     NewDefaultTheme(),
		table:     t,
		checklist: l,
	}
	if in.Plan != nil {
		for _, w := range in.Plan.Waves {
			for _, d := range w.Jobs {
				m.planRows = append(m.planRows, planRow{wave: w.Index, decision: d})
			}
		}
	}
	m.loadView()
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.EnterAltScreen
}

// Active returns the visible tab.
func (m Model) Active() View { return m.active }

// Reviewed returns the manual items ticked off, in report order.
func (m Model) Reviewed() []report.ManualItem {
	var out []report.ManualItem
	for _, li := range m.checklist.Items() {
		if it, ok := li.(checkItem); ok && it.done {
			out = append(out, it.ManualItem)
		}
	}
	return out
}

// Pending returns the manual items not yet ticked off.
func (m Model) Pending() []report.ManualItem {
	var out []report.ManualItem
	for _, li := range m.checklist.Items() {
		if it, ok := li.(checkItem); ok && !it.done {
			out = append(out, it.ManualItem)
		}
	}
	return out
}

// Detail returns the text in the detail pane.
func (m Model) Detail() string { return m.detailText() }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "tab":
			m.active = (m.active + 1) % View(len(viewNames))
			m.loadView()
			return m, nil
		case "shift+tab":
			m.active = (m.active + View(len(viewNames)) - 1) % View(len(viewNames))
			m.loadView()
			return m, nil
		case "pgup", "pgdown":
			m.detail, cmd = m.detail.Update(msg)
			return m, cmd
		case " ":
			if m.active == ViewManual {
				if it, ok := m.checklist.SelectedItem().(checkItem); ok {
					it.done = !it.done
					cmd = m.checklist.SetItem(m.checklist.Index(), it)
				}
				return m, cmd
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetWidth(m.width - 6)
		m.table.SetHeight(max(m.height/3, 3))
		m.detail.Width = m.width - 6
		m.detail.Height = max(m.height/3, 3)
		m.checklist.SetSize(m.width-6, max(m.height-8, 4))
		m.detail.SetContent(m.detailText())
		return m, nil
	}

	if m.active == ViewManual {
		m.checklist, cmd = m.checklist.Update(msg)
		return m, cmd
	}

	before := m.table.Cursor()
	m.table, cmd = m.table.Update(msg)
	if m.table.Cursor() != before {
		m.detail.SetContent(m.detailText())
		m.detail.GotoTop()
	}
	return m, cmd
}

// loadView swaps the table columns and rows for the active tab.
func (m *Model) loadView() {
	m.table.SetRows(nil)
	switch m.active {
	case ViewStages:
		m.table.SetColumns([]table.Column{
			{Title: "ST", Width: 2},
			{Title: "Stage", Width: 24},
			{Title: "Job", Width: 20},
			{Title: "Score", Width: 6},
			{Title: "Manual", Width: 6},
		})
		m.table.SetRows(m.stageRows())
	case ViewPlan:
		m.table.SetColumns([]table.Column{
			{Title: "Wave", Width: 4},
			{Title: "Job", Width: 24},
			{Title: "Run", Width: 4},
			{Title: "State", Width: 10},
		})
		rows := make([]table.Row, 0, len(m.planRows))
		for _, pr := range m.planRows {
			run := "skip"
			if pr.decision.Run {
				run = "run"
			}
			rows = append(rows, table.Row{fmt.Sprint(pr.wave), pr.decision.Job, run, pr.decision.State})
		}
		m.table.SetRows(rows)
	case ViewFiles:
		m.table.SetColumns([]table.Column{
			{Title: "Path", Width: 48},
			{Title: "Bytes", Width: 8},
		})
		rows := make([]table.Row, 0, len(m.in.Files))
		for _, f := range m.in.Files {
			rows = append(rows, table.Row{f.Path, fmt.Sprint(len(f.Content))})
		}
		m.table.SetRows(rows)
	}
	m.table.SetCursor(0)
	m.detail.SetContent(m.detailText())
	m.detail.GotoTop()
}

func (m Model) stageRows() []table.Row {
	if m.in.Report == nil {
		return nil
	}
	rows := make([]table.Row, 0, len(m.in.Report.Stages))
	for _, st := range m.in.Report.Stages {
		rows = append(rows, table.Row{
			m.stageSymbol(st),
			st.Name,
			st.JobID,
			fmt.Sprint(st.Complexity),
			fmt.Sprint(st.Manual),
		})
	}
	return rows
}

func (m Model) stageSymbol(st report.Stage) string {
	switch {
	case st.Fallback:
		return m.theme.StatusFailed.Render("∅")
	case st.Manual > 0:
		return m.theme.StatusReview.Render("◑")
	default:
		return m.theme.StatusOK.Render("●")
	}
}

func (m Model) detailText() string {
	i := m.table.Cursor()
	switch m.active {
	case ViewStages:
		if m.in.Report == nil || i < 0 || i >= len(m.in.Report.Stages) {
			return "No stages."
		}
		st := m.in.Report.Stages[i]
		var b strings.Builder
		fmt.Fprintf(&b, "Stage    : %s\n", st.Name)
		fmt.Fprintf(&b, "Job      : %s\n", st.JobID)
		if st.Path != "" {
			fmt.Fprintf(&b, "Action   : %s\n", st.Path)
		}
		if st.Group != "" {
			fmt.Fprintf(&b, "Parallel : %s\n", st.Group)
		}
		if len(st.Features) > 0 {
			fmt.Fprintf(&b, "Features : %s\n", strings.Join(st.Features, ", "))
		}
		if st.Fallback {
			b.WriteString("Fallback : conversion failed, placeholder job emitted\n")
		}
		for _, mi := range m.in.Report.Manual {
			if mi.Stage == st.Name {
				fmt.Fprintf(&b, "  - %s\n", mi.Item)
			}
		}
		return b.String()
	case ViewPlan:
		if i < 0 || i >= len(m.planRows) {
			return "No plan."
		}
		d := m.planRows[i].decision
		var b strings.Builder
		fmt.Fprintf(&b, "Job       : %s\n", d.Job)
		if d.Name != "" {
			fmt.Fprintf(&b, "Name      : %s\n", d.Name)
		}
		if d.Condition != "" {
			fmt.Fprintf(&b, "Condition : %s\n", d.Condition)
		}
		fmt.Fprintf(&b, "State     : %s\n", d.State)
		if d.Reason != "" {
			fmt.Fprintf(&b, "Reason    : %s\n", d.Reason)
		}
		return b.String()
	case ViewFiles:
		if i < 0 || i >= len(m.in.Files) {
			return "No files."
		}
		return string(m.in.Files[i].Content)
	}
	return ""
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 {
		return "Loading review..."
	}

	tabs := make([]string, len(viewNames))
	for i, name := range viewNames {
		if View(i) == m.active {
			tabs[i] = m.theme.ActiveTab.Render(name)
		} else {
			tabs[i] = m.theme.Tab.Render(name)
		}
	}

	parts := []string{m.renderHeader(), lipgloss.JoinHorizontal(lipgloss.Top, tabs...)}
	if m.active == ViewManual {
		parts = append(parts, m.checklist.View())
	} else {
		parts = append(parts,
			m.theme.Border.Width(m.width-4).Render(m.table.View()),
			m.theme.Border.Width(m.width-4).Render(m.detail.View()),
		)
	}
	parts = append(parts, m.theme.Dim.Render(" [q] Quit • [tab] Switch view • [↑/↓] Select • [pgup/pgdn] Scroll detail"))

	return m.theme.Doc.Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func (m Model) renderHeader() string {
	r := m.in.Report
	if r == nil {
		return m.theme.Border.Width(m.width - 4).Render(m.theme.Title.Render("jenkins2gha review"))
	}
	status := m.theme.StatusStyle(r.Status).Render(r.Status)
	title := m.theme.Title.Render(fmt.Sprintf("jenkins2gha review: %s", r.Workflow))
	stats := fmt.Sprintf(" Status: %s  Jobs: %d  Actions: %d  Secrets: %d  Manual: %d/%d done",
		status, r.Stats.Jobs, r.Stats.Actions, r.Stats.Secrets,
		len(m.Reviewed()), len(r.Manual))
	fp := m.theme.Dim.Render(" " + r.Fingerprint)
	return m.theme.Border.Width(m.width - 4).Render(lipgloss.JoinVertical(lipgloss.Left, title, stats, fp))
}

// Run starts the review program and returns the final model.
func Run(in Input) (Model, error) {
	final, err := tea.NewProgram(New(in)).Run()
	if err != nil {
		return Model{}, fmt.Errorf("review program: %w", err)
	}
	m, _ := final.(Model)
	return m, nil
}
