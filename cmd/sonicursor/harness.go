package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	feedback "github.com/koscakluka/sonicursor/core"
	"github.com/koscakluka/sonicursor/core/events"
	"github.com/muesli/reflow/truncate"
)

const (
	pageLines     = 20
	jumpLines     = 10
	wheelLines    = 3
	snapshotEvery = 100 * time.Millisecond

	headerLines = 1
	footerLines = 2
	gutterWidth = 6
	tabWidth    = 4
)

// engineClient is the part of the feedback engine the editor talks to.
type engineClient interface {
	Handle(event events.Event) bool
	Snapshot(ctx context.Context) (feedback.Snapshot, error)
}

type keyMap struct {
	Up        key.Binding
	Down      key.Binding
	Left      key.Binding
	Right     key.Binding
	Home      key.Binding
	End       key.Binding
	PageUp    key.Binding
	PageDown  key.Binding
	Top       key.Binding
	Bottom    key.Binding
	Jump      key.Binding
	Tab       key.Binding
	Enter     key.Binding
	Backspace key.Binding
	Undo      key.Binding
	Switch    key.Binding
	Close     key.Binding
	Quit      key.Binding
}

var defaultKeys = keyMap{
	Up:        key.NewBinding(key.WithKeys("up"), key.WithHelp("↑", "line up")),
	Down:      key.NewBinding(key.WithKeys("down"), key.WithHelp("↓", "line down")),
	Left:      key.NewBinding(key.WithKeys("left"), key.WithHelp("←", "left")),
	Right:     key.NewBinding(key.WithKeys("right"), key.WithHelp("→", "right")),
	Home:      key.NewBinding(key.WithKeys("home"), key.WithHelp("home", "line start")),
	End:       key.NewBinding(key.WithKeys("end"), key.WithHelp("end", "line end")),
	PageUp:    key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "page up")),
	PageDown:  key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("pgdn", "page down")),
	Top:       key.NewBinding(key.WithKeys("ctrl+home"), key.WithHelp("ctrl+home", "top")),
	Bottom:    key.NewBinding(key.WithKeys("ctrl+end"), key.WithHelp("ctrl+end", "bottom")),
	Jump:      key.NewBinding(key.WithKeys("ctrl+g"), key.WithHelp("ctrl+g", "go to definition")),
	Tab:       key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "indent")),
	Enter:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "new line")),
	Backspace: key.NewBinding(key.WithKeys("backspace"), key.WithHelp("backspace", "delete")),
	Undo:      key.NewBinding(key.WithKeys("ctrl+z"), key.WithHelp("ctrl+z", "undo")),
	Switch:    key.NewBinding(key.WithKeys("ctrl+o"), key.WithHelp("ctrl+o", "switch editor")),
	Close:     key.NewBinding(key.WithKeys("ctrl+w"), key.WithHelp("ctrl+w", "close")),
	Quit:      key.NewBinding(key.WithKeys("ctrl+c", "esc"), key.WithHelp("esc", "quit")),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.PageDown, k.Jump, k.Undo, k.Switch, k.Close, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Left, k.Right, k.Home, k.End},
		{k.PageUp, k.PageDown, k.Top, k.Bottom, k.Jump},
		{k.Tab, k.Enter, k.Backspace, k.Undo},
		{k.Switch, k.Close, k.Quit},
	}
}

var (
	titleStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	gutterStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	currentLineStyle = lipgloss.NewStyle().Bold(true)
	cursorStyle      = lipgloss.NewStyle().Reverse(true)
	statusStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

type tickMsg struct{}

type snapshotMsg struct {
	snapshot feedback.Snapshot
	err      error
}

// model is a minimal terminal editor that reports every cursor move and
// edit to the feedback engine the way an editor integration would.
type model struct {
	engine engineClient
	keys   keyMap
	help   help.Model

	docs   []*document
	active int
	top    int

	width  int
	height int

	status    feedback.Snapshot
	statusErr error
}

func newModel(engine engineClient, docs ...*document) model {
	m := model{
		engine: engine,
		keys:   defaultKeys,
		help:   help.New(),
		docs:   docs,
		width:  80,
		height: 24,
	}
	m.engine.Handle(m.doc().cursorMoved(events.SelectionCommand))
	return m
}

func (m model) doc() *document { return m.docs[m.active] }

func (m model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(snapshotEvery, func(time.Time) tea.Msg { return tickMsg{} })
}

func (m model) fetchSnapshot() tea.Cmd {
	engine := m.engine
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), snapshotEvery)
		defer cancel()
		s, err := engine.Snapshot(ctx)
		return snapshotMsg{snapshot: s, err: err}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.scroll()
	case tickMsg:
		return m, tea.Batch(m.fetchSnapshot(), tick())
	case snapshotMsg:
		m.status, m.statusErr = msg.snapshot, msg.err
	case tea.MouseMsg:
		m.mouse(msg)
		m.scroll()
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
		if quit := m.key(msg); quit {
			return m, tea.Quit
		}
		m.scroll()
	}
	return m, nil
}

// key applies one key press and reports whether the editor should exit.
func (m *model) key(msg tea.KeyMsg) bool {
	d := m.doc()
	switch {
	case key.Matches(msg, m.keys.Up):
		m.moved(d.moveLines(-1), events.SelectionKeyboard)
	case key.Matches(msg, m.keys.Down):
		m.moved(d.moveLines(1), events.SelectionKeyboard)
	case key.Matches(msg, m.keys.Left):
		m.moved(d.moveColumn(-1), events.SelectionKeyboard)
	case key.Matches(msg, m.keys.Right):
		m.moved(d.moveColumn(1), events.SelectionKeyboard)
	case key.Matches(msg, m.keys.Home):
		m.moved(d.moveTo(d.line, 0), events.SelectionKeyboard)
	case key.Matches(msg, m.keys.End):
		m.moved(d.moveTo(d.line, d.lineLength(d.line)), events.SelectionKeyboard)
	case key.Matches(msg, m.keys.PageUp):
		m.moved(d.moveLines(-pageLines), events.SelectionKeyboard)
	case key.Matches(msg, m.keys.PageDown):
		m.moved(d.moveLines(pageLines), events.SelectionKeyboard)
	case key.Matches(msg, m.keys.Top):
		m.moved(d.moveTo(0, 0), events.SelectionKeyboard)
	case key.Matches(msg, m.keys.Bottom):
		m.moved(d.moveTo(len(d.lines)-1, 0), events.SelectionKeyboard)
	case key.Matches(msg, m.keys.Jump):
		m.moved(d.moveLines(jumpLines), events.SelectionCommand)
	case key.Matches(msg, m.keys.Tab):
		m.edited(d.insert("\t"))
	case key.Matches(msg, m.keys.Enter):
		m.edited(d.newline())
	case key.Matches(msg, m.keys.Backspace):
		if ev, ok := d.backspace(); ok {
			m.edited(ev)
		}
	case key.Matches(msg, m.keys.Undo):
		if ev, ok := d.undo(); ok {
			m.edited(ev)
		}
	case key.Matches(msg, m.keys.Switch):
		m.switchDocument()
	case key.Matches(msg, m.keys.Close):
		return m.closeDocument()
	case msg.Type == tea.KeySpace:
		m.edited(d.insert(" "))
	case msg.Type == tea.KeyRunes:
		text := strings.NewReplacer("\r\n", " ", "\n", " ").Replace(string(msg.Runes))
		m.edited(d.insert(text))
	}
	return false
}

func (m *model) mouse(msg tea.MouseMsg) {
	d := m.doc()
	switch {
	case msg.Button == tea.MouseButtonWheelUp:
		m.moved(d.moveLines(-wheelLines), events.SelectionMouse)
	case msg.Button == tea.MouseButtonWheelDown:
		m.moved(d.moveLines(wheelLines), events.SelectionMouse)
	case msg.Button == tea.MouseButtonLeft && msg.Action == tea.MouseActionPress:
		if msg.Y < headerLines || msg.X < gutterWidth {
			return
		}
		line := min(msg.Y-headerLines+m.top, len(d.lines)-1)
		m.moved(d.moveTo(line, columnAt(d.lines[line], msg.X-gutterWidth)), events.SelectionMouse)
	}
}

func (m *model) moved(changed bool, source events.SelectionKind) {
	if changed {
		m.engine.Handle(m.doc().cursorMoved(source))
	}
}

// edited reports an edit followed by the selection change editors send
// after it.
func (m *model) edited(ev events.TextChanged) {
	m.engine.Handle(ev)
	m.engine.Handle(m.doc().cursorMoved(events.SelectionKeyboard))
}

func (m *model) switchDocument() {
	if len(m.docs) < 2 {
		return
	}
	m.active = (m.active + 1) % len(m.docs)
	m.focus()
}

// closeDocument closes the active document and reports whether none is
// left.
func (m *model) closeDocument() bool {
	m.engine.Handle(events.NewDocumentClosed(m.doc().uri))
	m.docs = append(m.docs[:m.active], m.docs[m.active+1:]...)
	if len(m.docs) == 0 {
		return true
	}
	m.active %= len(m.docs)
	m.focus()
	return false
}

func (m *model) focus() {
	m.top = 0
	m.engine.Handle(events.NewEditorSwitched(m.doc().uri))
	m.engine.Handle(m.doc().cursorMoved(events.SelectionCommand))
}

func (m model) bodyHeight() int {
	return max(m.height-headerLines-footerLines, 1)
}

func (m *model) scroll() {
	line, height := m.doc().line, m.bodyHeight()
	if line < m.top {
		m.top = line
	} else if line >= m.top+height {
		m.top = line - height + 1
	}
}

func (m model) View() string {
	d := m.doc()
	width := uint(max(m.width, 1))

	var b strings.Builder
	b.WriteString(truncate.StringWithTail(titleStyle.Render("sonicursor")+"  "+d.uri, width, "…"))
	b.WriteString("\n")

	shown := 0
	for i := m.top; i < len(d.lines) && shown < m.bodyHeight(); i++ {
		gutter := gutterStyle.Render(fmt.Sprintf("%*d ", gutterWidth-1, i+1))
		text := expandTabs(d.lines[i])
		if i == d.line {
			text = renderCursorLine(d.lines[i], d.col)
		}
		b.WriteString(truncate.StringWithTail(gutter+text, width, "…"))
		b.WriteString("\n")
		shown++
	}
	for ; shown < m.bodyHeight(); shown++ {
		b.WriteString(gutterStyle.Render("~"))
		b.WriteString("\n")
	}

	b.WriteString(truncate.StringWithTail(m.statusLine(), width, "…"))
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m model) statusLine() string {
	d := m.doc()
	pos := fmt.Sprintf("Ln %d, Col %d of %d", d.line+1, d.col+1, len(d.lines))
	if m.statusErr != nil {
		return errorStyle.Render(pos + " │ " + m.statusErr.Error())
	}

	s := m.status
	toneInfo := s.Tone.String()
	if s.Frequency > 0 {
		toneInfo += fmt.Sprintf(" %.0f Hz", s.Frequency)
	}
	return statusStyle.Render(fmt.Sprintf(
		"%s │ tone %s │ threshold %.1f lines/s │ audible %d │ played %d, preempted %d",
		pos, toneInfo, s.Threshold, s.Audible, s.Stats.Completed, s.Stats.Preemptions,
	))
}

func expandTabs(s string) string {
	return strings.ReplaceAll(s, "\t", strings.Repeat(" ", tabWidth))
}

func renderCursorLine(line string, col int) string {
	r := []rune(line)
	under, rest := " ", ""
	if col < len(r) {
		under, rest = string(r[col]), string(r[col+1:])
	}
	return currentLineStyle.Render(expandTabs(string(r[:col]))) +
		cursorStyle.Render(expandTabs(under)) +
		currentLineStyle.Render(expandTabs(rest))
}

// columnAt maps a screen column inside the text area to a rune index.
func columnAt(line string, x int) int {
	width := 0
	r := []rune(line)
	for i, c := range r {
		w := 1
		if c == '\t' {
			w = tabWidth
		}
		if x < width+w {
			return i
		}
		width += w
	}
	return len(r)
}
