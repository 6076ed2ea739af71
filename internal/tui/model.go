// Package tui renders a tenant's quote board and drives card moves through
// the board reconciler.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/atotto/clipboard"

	"github.com/hylla/cotiza/internal/app"
	"github.com/hylla/cotiza/internal/domain"
)

// loadedMsg reports the outcome of a board load.
type loadedMsg struct {
	err error
}

// noticeMsg carries one reconciler notice into the update loop.
type noticeMsg struct {
	notice app.Notice
}

// clipboardMsg reports the outcome of copying a quote number.
type clipboardMsg struct {
	number string
	err    error
}

// Model is the bubbletea model for the quote board.
type Model struct {
	ctx      context.Context
	board    *app.BoardReconciler
	notices  <-chan app.Notice
	copyText func(string) error

	keys  keyMap
	help  help.Model
	md    *markdownRenderer
	title string

	width  int
	height int
	ready  bool
	err    error

	status    string
	statusErr bool

	selectedColumn int
	selectedRow    int
	showDetail     bool
}

// NewModel constructs a board model. notices may be nil.
func NewModel(board *app.BoardReconciler, notices <-chan app.Notice, opts ...Option) Model {
	m := Model{
		ctx:      context.Background(),
		board:    board,
		notices:  notices,
		copyText: clipboard.WriteAll,
		keys:     newKeyMap(),
		help:     help.New(),
		md:       &markdownRenderer{},
		title:    "cotiza",
		status:   "loading",
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}
	return m
}

// Init loads the board and starts listening for notices.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadBoard, waitForNotice(m.notices))
}

// Update handles one message.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.SetWidth(max(0, msg.Width-2))
		return m, nil

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.setStatus("load failed: "+msg.err.Error(), true)
			return m, nil
		}
		m.err = nil
		m.ready = true
		m.clampSelection()
		m.setStatus("ready", false)
		return m, nil

	case noticeMsg:
		n := msg.notice
		text := n.Title
		if n.Message != "" {
			text += ": " + n.Message
		}
		m.setStatus(text, n.Kind == app.NoticeError)
		m.clampSelection()
		return m, waitForNotice(m.notices)

	case clipboardMsg:
		if msg.err != nil {
			m.setStatus("copy failed: "+msg.err.Error(), true)
			return m, nil
		}
		m.setStatus("copied "+msg.number, false)
		return m, nil

	case tea.KeyPressMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

// handleKey routes one key press by board phase.
func (m Model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		if _, _, dragging := m.board.Dragging(); dragging {
			m.board.EndDrag(m.ctx, app.NoDropTarget)
		}
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggleHelp):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.reload):
		m.setStatus("reloading", false)
		return m, m.loadBoard
	}
	if !m.ready {
		return m, nil
	}
	if _, _, dragging := m.board.Dragging(); dragging {
		return m.handleDragKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.cancel):
		m.showDetail = false
		return m, nil
	case key.Matches(msg, m.keys.moveLeft):
		m.selectedColumn = max(0, m.selectedColumn-1)
		m.clampSelection()
		return m, nil
	case key.Matches(msg, m.keys.moveRight):
		m.selectedColumn = min(len(domain.QuoteStatuses())-1, m.selectedColumn+1)
		m.clampSelection()
		return m, nil
	case key.Matches(msg, m.keys.moveUp):
		m.selectedRow = max(0, m.selectedRow-1)
		m.clampSelection()
		return m, nil
	case key.Matches(msg, m.keys.moveDown):
		m.selectedRow++
		m.clampSelection()
		return m, nil
	case key.Matches(msg, m.keys.detail):
		m.showDetail = !m.showDetail
		return m, nil
	case key.Matches(msg, m.keys.copyNumber):
		q, ok := m.selectedQuote()
		if !ok {
			return m, nil
		}
		write, number := m.copyText, q.Number
		return m, func() tea.Msg {
			return clipboardMsg{number: number, err: write(number)}
		}
	case key.Matches(msg, m.keys.pickUp):
		q, ok := m.selectedQuote()
		if !ok {
			return m, nil
		}
		if err := m.board.BeginDrag(q.ID); err != nil {
			m.setStatus(pickUpError(q, err), true)
			return m, nil
		}
		m.setStatus(fmt.Sprintf("moving %s: h/l choose column, enter drop, esc cancel", q.Number), false)
		return m, nil
	}
	return m, nil
}

// handleDragKey handles keys while a card is picked up.
func (m Model) handleDragKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	quoteID, hovered, _ := m.board.Dragging()
	statuses := domain.QuoteStatuses()
	idx := statusIndex(hovered)

	switch {
	case key.Matches(msg, m.keys.moveLeft):
		if idx > 0 {
			m.board.HoverTarget(statuses[idx-1])
		}
		m.focusQuote(quoteID)
	case key.Matches(msg, m.keys.moveRight):
		if idx < len(statuses)-1 {
			m.board.HoverTarget(statuses[idx+1])
		}
		m.focusQuote(quoteID)
	case key.Matches(msg, m.keys.drop):
		m.board.EndDrag(m.ctx, hovered)
		m.focusQuote(quoteID)
		if m.board.Pending(quoteID) {
			q, _ := m.board.Quote(quoteID)
			m.setStatus(fmt.Sprintf("saving %s as %s", q.Number, hovered.Label()), false)
		} else if m.status != "" && strings.HasPrefix(m.status, "moving ") {
			m.setStatus("ready", false)
		}
	case key.Matches(msg, m.keys.cancel):
		m.board.EndDrag(m.ctx, app.NoDropTarget)
		m.focusQuote(quoteID)
		m.setStatus("move cancelled", false)
	}
	return m, nil
}

// loadBoard loads required data for the current operation.
func (m Model) loadBoard() tea.Msg {
	return loadedMsg{err: m.board.Load(m.ctx)}
}

// waitForNotice waits for the next reconciler notice.
func waitForNotice(notices <-chan app.Notice) tea.Cmd {
	if notices == nil {
		return nil
	}
	return func() tea.Msg {
		n, ok := <-notices
		if !ok {
			return nil
		}
		return noticeMsg{notice: n}
	}
}

func (m *Model) setStatus(text string, isErr bool) {
	m.status = text
	m.statusErr = isErr
}

// selectedQuote returns the quote under the cursor.
func (m Model) selectedQuote() (domain.Quote, bool) {
	columns := m.board.Columns()
	if m.selectedColumn < 0 || m.selectedColumn >= len(columns) {
		return domain.Quote{}, false
	}
	quotes := columns[m.selectedColumn].Quotes
	if m.selectedRow < 0 || m.selectedRow >= len(quotes) {
		return domain.Quote{}, false
	}
	return quotes[m.selectedRow], true
}

// focusQuote moves the cursor onto quoteID wherever it currently sits.
func (m *Model) focusQuote(quoteID string) {
	for ci, col := range m.board.Columns() {
		for ri, q := range col.Quotes {
			if q.ID == quoteID {
				m.selectedColumn, m.selectedRow = ci, ri
				return
			}
		}
	}
	m.clampSelection()
}

func (m *Model) clampSelection() {
	columns := m.board.Columns()
	if len(columns) == 0 {
		m.selectedColumn, m.selectedRow = 0, 0
		return
	}
	m.selectedColumn = min(max(0, m.selectedColumn), len(columns)-1)
	n := len(columns[m.selectedColumn].Quotes)
	m.selectedRow = min(max(0, m.selectedRow), max(0, n-1))
}

func statusIndex(status domain.QuoteStatus) int {
	for i, s := range domain.QuoteStatuses() {
		if s == status {
			return i
		}
	}
	return 0
}

func pickUpError(q domain.Quote, err error) string {
	switch {
	case errors.Is(err, app.ErrWriteInFlight):
		return fmt.Sprintf("%s is still saving", q.Number)
	case errors.Is(err, app.ErrDragInProgress):
		return "another card is already picked up"
	default:
		return err.Error()
	}
}

// View renders the board.
func (m Model) View() tea.View {
	if m.err != nil && !m.ready {
		v := tea.NewView("error: " + m.err.Error() + "\n\npress r to retry • q quit\n")
		v.AltScreen = true
		return v
	}
	if !m.ready {
		v := tea.NewView("loading...")
		v.AltScreen = true
		return v
	}

	accent := lipgloss.Color("62")
	muted := lipgloss.Color("241")
	dim := lipgloss.Color("239")
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	statusStyle := lipgloss.NewStyle().Foreground(dim)
	errorStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203"))

	phase := m.board.Phase()
	header := fmt.Sprintf("%s  tenant: %s  [%s]", titleStyle.Render(m.title), m.board.TenantID(), phase)

	columns := m.board.Columns()
	colWidth := 22
	if m.width > 0 {
		colWidth = max(16, m.width/len(columns)-1)
	}
	baseColStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(dim).
		Padding(0, 1).
		Width(colWidth)
	selColStyle := baseColStyle.BorderForeground(accent)
	colTitle := lipgloss.NewStyle().Bold(true).Foreground(accent)
	selectedCardStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	subStyle := lipgloss.NewStyle().Foreground(muted)

	draggingID, _, dragging := m.board.Dragging()
	columnViews := make([]string, 0, len(columns))
	for ci, col := range columns {
		lines := []string{colTitle.Render(fmt.Sprintf("%s (%d)", col.Label, len(col.Quotes))), ""}
		for ri, q := range col.Quotes {
			prefix := "  "
			if dragging && q.ID == draggingID {
				prefix = "» "
			}
			card := prefix + q.Number
			if m.board.Pending(q.ID) {
				card += " saving"
			}
			if ci == m.selectedColumn && ri == m.selectedRow {
				card = selectedCardStyle.Render(card)
			}
			lines = append(lines, card, subStyle.Render("  "+q.Total.StringFixed(2)))
		}
		style := baseColStyle
		if ci == m.selectedColumn {
			style = selColStyle
		}
		columnViews = append(columnViews, style.Render(strings.Join(lines, "\n")))
	}
	body := lipgloss.JoinHorizontal(lipgloss.Top, columnViews...)

	sections := []string{header, "", body}
	if m.showDetail {
		if q, ok := m.selectedQuote(); ok {
			panelWidth := max(24, m.width-4)
			if m.width == 0 {
				panelWidth = 72
			}
			panel := lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(accent).
				Padding(0, 1).
				Render(m.md.render(quoteMarkdown(q), panelWidth-4))
			sections = append(sections, panel)
		}
	}
	if strings.TrimSpace(m.status) != "" && m.status != "ready" {
		if m.statusErr {
			sections = append(sections, errorStyle.Render(m.status))
		} else {
			sections = append(sections, statusStyle.Render(m.status))
		}
	}
	content := strings.Join(sections, "\n")

	helpBubble := m.help
	helpBubble.SetWidth(max(0, m.width-2))
	helpLine := lipgloss.NewStyle().
		Foreground(muted).
		BorderTop(true).
		BorderForeground(dim).
		Padding(0, 1).
		Render(helpBubble.View(m.keys))

	if m.height > 0 {
		content = fitLines(content, max(0, m.height-lipgloss.Height(helpLine)))
	}

	v := tea.NewView(content + "\n" + helpLine)
	v.AltScreen = true
	return v
}

// fitLines pads or truncates content to exactly maxLines lines.
func fitLines(content string, maxLines int) string {
	if maxLines <= 0 {
		return ""
	}
	lines := strings.Split(content, "\n")
	switch {
	case len(lines) > maxLines:
		if maxLines == 1 {
			lines = []string{"…"}
		} else {
			lines = append(lines[:maxLines-1], "…")
		}
	case len(lines) < maxLines:
		lines = append(lines, make([]string, maxLines-len(lines))...)
	}
	return strings.Join(lines, "\n")
}
