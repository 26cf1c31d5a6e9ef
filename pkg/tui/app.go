package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/weftworks/weft/pkg/chain"
	"github.com/weftworks/weft/pkg/schema"
)

// --- Tea messages ---

// stepDoneMsg is sent after a Next or Continue step finishes.
type stepDoneMsg struct {
	res  *chain.RunResult
	from int
}

// settledMsg is sent after a confirmation gate is approved.
type settledMsg struct {
	res  *chain.RunResult
	from int
	err  error
}

// --- Row state ---

type rowStatus int

const (
	rowPending rowStatus = iota
	rowCurrent
	rowDone
	rowSkipped
	rowAborted
	rowErrored
	rowGate
	rowDismissed
)

type actionRow struct {
	Kind    string
	Confirm bool
	Status  rowStatus
	Err     string
}

// --- Overlay state ---

type overlayKind int

const (
	overlayNone overlayKind = iota
	overlayConfirm
	overlayResults
	overlayHelp
)

// Config holds the parameters needed to launch the walkthrough.
type Config struct {
	AppName   string
	Screen    string
	Component string
	Event     string
	Notes     string // component notes markdown
	Actions   []schema.Action
	Compiler  *chain.Compiler
	Base      map[string]any
}

// Model is the top-level Bubble Tea model for the walkthrough.
type Model struct {
	cfg     Config
	stepper *chain.Stepper
	spinner spinner.Model

	rows    []actionRow
	cursor  int
	running bool
	overlay overlayKind

	confirmText string
	resultsText string
	fatalErr    string

	width  int
	height int
}

// Run starts the walkthrough and blocks until the user quits.
func Run(cfg Config) error {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	rows := make([]actionRow, len(cfg.Actions))
	for i, act := range cfg.Actions {
		rows[i] = actionRow{
			Kind:    act.Kind,
			Confirm: schema.WantsConfirm(act.Params),
		}
	}
	if len(rows) > 0 {
		rows[0].Status = rowCurrent
	}

	m := Model{
		cfg:     cfg,
		stepper: chain.NewStepper(cfg.Compiler, cfg.Actions, cfg.Base),
		spinner: sp,
		rows:    rows,
	}

	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Init starts the spinner.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// stepCmd runs one action off the UI goroutine.
func (m Model) stepCmd() tea.Cmd {
	s := m.stepper
	from := s.Index()
	return func() tea.Msg {
		return stepDoneMsg{res: s.Next(context.Background()), from: from}
	}
}

// continueCmd runs the rest of the chain.
func (m Model) continueCmd() tea.Cmd {
	s := m.stepper
	from := s.Index()
	return func() tea.Msg {
		return stepDoneMsg{res: s.Continue(context.Background()), from: from}
	}
}

// approveCmd settles the pending gate.
func (m Model) approveCmd() tea.Cmd {
	s := m.stepper
	from := s.Index()
	return func() tea.Msg {
		res, err := s.Approve(context.Background())
		return settledMsg{res: res, from: from, err: err}
	}
}

// Update processes messages and returns the updated model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case stepDoneMsg:
		m.running = false
		m.applyResult(msg.res, msg.from)

	case settledMsg:
		m.running = false
		if msg.err != nil {
			m.fatalErr = msg.err.Error()
			return m, nil
		}
		m.applyResult(msg.res, msg.from)
	}

	return m, tea.Batch(cmds...)
}

// applyResult marks rows for the span a sub-run covered and opens the
// confirmation overlay when the chain suspended.
func (m *Model) applyResult(res *chain.RunResult, from int) {
	to := m.stepper.Index()
	if m.stepper.Done() {
		to = len(m.rows)
	}

	switch res.Status {
	case chain.StatusCompleted:
		for i := from; i < to && i < len(m.rows); i++ {
			m.rows[i].Status = rowDone
		}
	case chain.StatusSuspended:
		for i := from; i < to && i < len(m.rows); i++ {
			m.rows[i].Status = rowDone
		}
		if p := m.stepper.Pending(); p != nil && p.Index < len(m.rows) {
			m.rows[p.Index].Status = rowGate
			m.confirmText = p.Text
			m.overlay = overlayConfirm
			m.cursor = p.Index
			return
		}
	case chain.StatusAborted:
		if from < len(m.rows) {
			m.rows[from].Status = rowAborted
		}
		m.markRemaining(from+1, rowSkipped)
	case chain.StatusErrored:
		if from < len(m.rows) {
			m.rows[from].Status = rowErrored
			if res.Err != nil {
				m.rows[from].Err = res.Err.Error()
			}
		}
		m.markRemaining(from+1, rowSkipped)
	case chain.StatusDismissed:
		m.markRemaining(from, rowDismissed)
	}

	m.overlay = overlayNone
	if !m.stepper.Done() && m.stepper.Index() < len(m.rows) {
		m.rows[m.stepper.Index()].Status = rowCurrent
		m.cursor = m.stepper.Index()
	}
}

func (m *Model) markRemaining(from int, st rowStatus) {
	for i := from; i < len(m.rows); i++ {
		if m.rows[i].Status == rowPending || m.rows[i].Status == rowCurrent || m.rows[i].Status == rowGate {
			m.rows[i].Status = st
		}
	}
}

// handleKey processes key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, keys.Quit) {
		return m, tea.Quit
	}

	if m.overlay == overlayConfirm {
		switch {
		case key.Matches(msg, keys.Approve):
			m.running = true
			return m, m.approveCmd()
		case key.Matches(msg, keys.Dismiss):
			if err := m.stepper.Dismiss(); err == nil {
				m.applyResult(&chain.RunResult{ChainID: m.stepper.ChainID(), Status: chain.StatusDismissed}, m.cursor)
			}
			m.overlay = overlayNone
			return m, nil
		}
		return m, nil
	}

	if m.overlay == overlayResults || m.overlay == overlayHelp {
		if msg.String() == "esc" || key.Matches(msg, keys.Results) {
			m.overlay = overlayNone
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, keys.Advance):
		if !m.running && !m.stepper.Done() {
			m.running = true
			return m, m.stepCmd()
		}

	case key.Matches(msg, keys.Continue):
		if !m.running && !m.stepper.Done() {
			m.running = true
			return m, m.continueCmd()
		}

	case key.Matches(msg, keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, keys.Down):
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}

	case key.Matches(msg, keys.Results):
		m.resultsText = m.formatResults()
		m.overlay = overlayResults

	case key.Matches(msg, keys.Help):
		m.overlay = overlayHelp
	}

	return m, nil
}

// View renders the complete walkthrough.
func (m Model) View() string {
	if m.fatalErr != "" {
		return errorStyle.Render("Fatal: "+m.fatalErr) + "\n\nPress q to quit."
	}

	switch m.overlay {
	case overlayConfirm:
		return m.renderConfirmOverlay()
	case overlayResults:
		return m.renderTextOverlay(m.resultsText)
	case overlayHelp:
		return m.renderTextOverlay(m.helpText())
	}

	header := m.renderHeader()
	list := m.renderActionList()
	detail := m.renderDetail()
	bar := keyBarText(false, m.stepper.Done())

	return header + "\n" + list + "\n" + detail + "\n" + bar
}

// renderHeader builds the top line: app name, chain coordinates, state.
func (m Model) renderHeader() string {
	title := headerStyle.Render("weft")
	badge := chainBadgeStyle.Render(fmt.Sprintf("%s/%s %s", m.cfg.Screen, m.cfg.Component, m.cfg.Event))

	var status string
	switch {
	case m.running:
		status = m.spinner.View() + " executing"
	case m.stepper.Done():
		status = m.renderFinalStatus()
	default:
		status = fmt.Sprintf("action %d/%d", m.stepper.Index()+1, len(m.rows))
	}

	left := title + " " + badge
	padding := m.width - lipgloss.Width(left) - lipgloss.Width(status) - 2
	if padding < 1 {
		padding = 1
	}
	return left + strings.Repeat(" ", padding) + status
}

func (m Model) renderFinalStatus() string {
	switch m.stepper.Status() {
	case chain.StatusCompleted:
		return summaryDoneStyle.Render(fmt.Sprintf("completed ✓ (%d results)", len(m.stepper.Results())))
	case chain.StatusAborted:
		return summaryStoppedStyle.Render("aborted")
	case chain.StatusErrored:
		return summaryStoppedStyle.Render("errored")
	case chain.StatusDismissed:
		return actionSkipped.Render("dismissed")
	}
	return ""
}

// renderActionList draws the chain with one glyph per action.
func (m Model) renderActionList() string {
	var b strings.Builder
	b.WriteString(panelTitle.Render("Actions") + "\n")
	for i, row := range m.rows {
		glyph, style := rowGlyph(row)
		label := row.Kind
		if row.Confirm {
			label += " " + keyDescStyle.Render("[confirm]")
		}
		line := fmt.Sprintf(" %s %2d. %s", glyph, i+1, style.Render(label))
		if i == m.cursor {
			line = actionCurrent.Render(">") + line[1:]
		}
		b.WriteString(line + "\n")
		if row.Err != "" {
			b.WriteString("      " + errorStyle.Render(row.Err) + "\n")
		}
	}
	body := strings.TrimRight(b.String(), "\n")
	if m.width > 4 {
		return panelBorder.Width(m.width - 2).Render(body)
	}
	return body
}

func rowGlyph(row actionRow) (string, lipgloss.Style) {
	switch row.Status {
	case rowCurrent:
		return GlyphCurrent, actionCurrent
	case rowDone:
		return GlyphDone, actionDone
	case rowSkipped:
		return GlyphSkipped, actionSkipped
	case rowAborted:
		return GlyphAborted, actionFailed
	case rowErrored:
		return GlyphErrored, actionFailed
	case rowGate:
		return GlyphGate, actionCurrent
	case rowDismissed:
		return GlyphDismissed, actionSkipped
	}
	return GlyphPending, actionNormal
}

// renderDetail shows the browsed action's parameters and the component
// notes, if any.
func (m Model) renderDetail() string {
	var b strings.Builder
	if m.cursor < len(m.cfg.Actions) {
		act := m.cfg.Actions[m.cursor]
		b.WriteString(detailLabelStyle.Render("kind ") + detailValueStyle.Render(act.Kind))
		if len(act.Params) > 0 {
			if data, err := json.Marshal(act.Params); err == nil {
				b.WriteString("\n" + detailLabelStyle.Render("params ") + detailValueStyle.Render(string(data)))
			}
		}
	}
	if m.cfg.Notes != "" {
		b.WriteString("\n" + renderMarkdown(m.cfg.Notes))
	}
	if m.width > 4 {
		return detailBarStyle.Width(m.width - 2).Render(b.String())
	}
	return b.String()
}

// renderConfirmOverlay draws the pending gate as a centered prompt.
func (m Model) renderConfirmOverlay() string {
	p := m.stepper.Pending()
	kind := ""
	if p != nil {
		kind = string(p.Kind)
	}
	body := confirmTitleStyle.Render("Confirm "+kind) + "\n\n" +
		renderMarkdownWidth(m.confirmText, 56) + "\n\n" +
		keyBarText(true, false)
	box := overlayBorder.Render(body)
	if m.width > 0 && m.height > 0 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
	}
	return box
}

func (m Model) renderTextOverlay(text string) string {
	body := text + "\n\n" + keyStyle.Render("Esc") + keyDescStyle.Render(":close")
	box := overlayBorder.Render(body)
	if m.width > 0 && m.height > 0 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
	}
	return box
}

// formatResults renders the accumulated result log as indented JSON.
func (m Model) formatResults() string {
	results := m.stepper.Results()
	if len(results) == 0 {
		return panelTitle.Render("Results") + "\n\n" + keyDescStyle.Render("(no results yet)")
	}
	var b strings.Builder
	b.WriteString(panelTitle.Render("Results") + "\n")
	for i, r := range results {
		data, err := json.MarshalIndent(r, "  ", "  ")
		if err != nil {
			data = []byte(fmt.Sprintf("%v", r))
		}
		b.WriteString(fmt.Sprintf("\n%s %s", detailLabelStyle.Render(fmt.Sprintf("[%d]", i)), data))
	}
	return b.String()
}

func (m Model) helpText() string {
	var b strings.Builder
	b.WriteString(panelTitle.Render("Keys") + "\n\n")
	for _, binding := range []key.Binding{
		keys.Advance, keys.Continue, keys.Up, keys.Down,
		keys.Approve, keys.Dismiss, keys.Results, keys.Quit,
	} {
		h := binding.Help()
		b.WriteString(fmt.Sprintf("  %s  %s\n", keyStyle.Render(h.Key), keyDescStyle.Render(h.Desc)))
	}
	return strings.TrimRight(b.String(), "\n")
}
