// Package tui is the terminal front end of the joke list: a spinner while
// jokes are fetched, then the list sorted by votes with vote, lock,
// regenerate and reset gestures.
package tui

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/reflow/wordwrap"

	"jokeboard/internal/jokelist"
	"jokeboard/internal/models"
	"jokeboard/pkg/logger"
)

const defaultWidth = 80

// filledMsg reports the end of an Initialize or Regenerate run.
type filledMsg struct {
	err error
}

type Model struct {
	ctrl   *jokelist.Controller
	ctx    context.Context
	cancel context.CancelFunc

	keys    keyMap
	help    help.Model
	spinner spinner.Model

	snap     jokelist.Snapshot
	cursor   int
	selected string
	notice   string
	width    int
	quitting bool
}

// New builds the model. Fills started from it run under a child of ctx that
// is cancelled when the user quits.
func New(ctx context.Context, ctrl *jokelist.Controller) Model {
	ctx, cancel := context.WithCancel(ctx)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = accentStyle

	h := help.New()
	h.Styles.ShortKey = helpStyle
	h.Styles.ShortDesc = helpStyle

	return Model{
		ctrl:    ctrl,
		ctx:     ctx,
		cancel:  cancel,
		keys:    defaultKeyMap(),
		help:    h,
		spinner: s,
		snap:    jokelist.Snapshot{Status: jokelist.StatusLoading},
		width:   defaultWidth,
	}
}

// Run starts the full-screen program and blocks until the user quits.
func Run(ctx context.Context, ctrl *jokelist.Controller) error {
	p := tea.NewProgram(New(ctx, ctrl), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fillCmd(m.ctrl.Initialize))
}

func (m Model) fillCmd(fill func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return filledMsg{err: fill(ctx)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case spinner.TickMsg:
		if m.snap.Status != jokelist.StatusLoading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case filledMsg:
		m.refresh()
		switch {
		case msg.err == nil:
			m.notice = ""
		case errors.Is(msg.err, jokelist.ErrBusy):
			m.notice = "Still fetching jokes…"
		case errors.Is(msg.err, context.Canceled):
		default:
			logger.Error("Fetching jokes failed", logger.Err(msg.err))
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.quitting = true
		m.cancel()
		return m, tea.Quit
	}
	if m.snap.Status == jokelist.StatusLoading {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll

	case key.Matches(msg, m.keys.Up):
		m.moveCursor(-1)

	case key.Matches(msg, m.keys.Down):
		m.moveCursor(1)

	case key.Matches(msg, m.keys.FetchMore):
		m.snap.Status = jokelist.StatusLoading
		m.notice = ""
		return m, tea.Batch(m.spinner.Tick, m.fillCmd(m.ctrl.Regenerate))

	case key.Matches(msg, m.keys.Reset):
		m.apply(m.ctrl.ResetVotes(m.ctx))
		m.notice = "Votes reset"

	case m.selected == "":
		// Row gestures need a row.

	case key.Matches(msg, m.keys.Upvote):
		m.apply(m.ctrl.Upvote(m.ctx, m.selected))

	case key.Matches(msg, m.keys.Downvote):
		m.apply(m.ctrl.Downvote(m.ctx, m.selected))

	case key.Matches(msg, m.keys.ToggleLock):
		m.apply(m.ctrl.ToggleLock(m.ctx, m.selected))
	}

	return m, nil
}

func (m *Model) apply(err error) {
	if err != nil {
		m.notice = err.Error()
	} else {
		m.notice = ""
	}
	m.refresh()
}

// refresh re-reads the controller and keeps the cursor on the selected joke
// even when votes moved it.
func (m *Model) refresh() {
	m.snap = m.ctrl.Snapshot()

	if i := slices.IndexFunc(m.snap.Jokes, func(j models.Joke) bool { return j.ID == m.selected }); i >= 0 {
		m.cursor = i
	}
	m.cursor = min(m.cursor, len(m.snap.Jokes)-1)
	m.cursor = max(m.cursor, 0)
	m.selected = ""
	if len(m.snap.Jokes) > 0 {
		m.selected = m.snap.Jokes[m.cursor].ID
	}
}

func (m *Model) moveCursor(delta int) {
	if len(m.snap.Jokes) == 0 {
		return
	}
	m.cursor = max(0, min(m.cursor+delta, len(m.snap.Jokes)-1))
	m.selected = m.snap.Jokes[m.cursor].ID
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	switch m.snap.Status {
	case jokelist.StatusLoading, jokelist.StatusIdle:
		fmt.Fprintf(&b, "\n  %s Fetching jokes…\n\n", m.spinner.View())
		b.WriteString("  " + m.help.ShortHelpView([]key.Binding{m.keys.Quit}) + "\n")
		return b.String()

	case jokelist.StatusFailed:
		b.WriteString("\n  " + errorStyle.Render("Could not fetch jokes") + "\n")
		if m.snap.Err != nil {
			b.WriteString("  " + mutedStyle.Render(wordwrap.String(m.snap.Err.Error(), m.textWidth())) + "\n")
		}
		b.WriteString("\n  Press n to try again.\n\n")
		if len(m.snap.Jokes) > 0 {
			b.WriteString(m.listView())
		}

	default:
		b.WriteString(m.listView())
	}

	if m.notice != "" {
		b.WriteString("\n  " + accentStyle.Render(m.notice) + "\n")
	}
	b.WriteString("\n  " + m.help.View(m.keys) + "\n")
	return b.String()
}

func (m Model) listView() string {
	var b strings.Builder

	locked := 0
	for _, j := range m.snap.Jokes {
		if j.Locked {
			locked++
		}
	}
	fmt.Fprintf(&b, "\n  %s   %s %d  %s %d\n\n",
		titleStyle.Render("Jokes"),
		accentStyle.Render("Total"), len(m.snap.Jokes),
		lockedStyle.Render(glyphLocked), locked,
	)

	for i, j := range m.snap.Jokes {
		b.WriteString(m.row(i, j))
	}
	return b.String()
}

// row renders one joke: cursor, vote count, padlock, then the text wrapped
// and indented under itself.
func (m Model) row(i int, j models.Joke) string {
	prefix := "  "
	if i == m.cursor {
		prefix = selectedStyle.Render("> ")
	}

	votes := VoteStyle(j.Votes).Render(fmt.Sprintf("%+4d", j.Votes))
	lines := strings.Split(wordwrap.String(j.Text, m.textWidth()), "\n")
	text := lines[0]
	if i == m.cursor {
		text = selectedStyle.Render(text)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s%s %s  %s\n", prefix, votes, LockGlyph(j.Locked), text)
	for _, line := range lines[1:] {
		fmt.Fprintf(&b, "%s%s\n", strings.Repeat(" ", 12), line)
	}
	return b.String()
}

func (m Model) textWidth() int {
	return max(m.width-14, 20)
}
