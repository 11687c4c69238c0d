// Package tui implements the live watch dashboard: a terminal view of the
// running timer that refreshes on bus events and supports basic timer
// control from the keyboard.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/colonyops/tempo/internal/core/eventbus"
	"github.com/colonyops/tempo/internal/core/styles"
	"github.com/colonyops/tempo/internal/core/timer"
	"github.com/colonyops/tempo/internal/tempo"
	"github.com/colonyops/tempo/pkg/timeutil"
)

const maxActivityLines = 8

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(styles.ColorPrimary)
	elapsedStyle = lipgloss.NewStyle().Bold(true).Foreground(styles.ColorSuccess)
	idleStyle    = lipgloss.NewStyle().Foreground(styles.ColorMuted)
	frameStyle   = lipgloss.NewStyle().Padding(1, 2)
)

// keyMap defines the dashboard keybindings for the bubbles help line.
type keyMap struct {
	Toggle key.Binding
	Finish key.Binding
	Quit   key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Finish, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Toggle, k.Finish, k.Quit}}
}

var keys = keyMap{
	Toggle: key.NewBinding(
		key.WithKeys(" "),
		key.WithHelp("space", "stop/resume"),
	),
	Finish: key.NewBinding(
		key.WithKeys("f"),
		key.WithHelp("f", "finish task"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "esc", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// busEventMsg wraps an eventbus payload forwarded into the program.
type busEventMsg struct {
	line string
}

type refreshMsg struct {
	snap    timer.Snapshot
	todayMs int64
}

type refreshErrMsg struct{ err error }

type pollMsg time.Time

// Model is the watch dashboard. It holds the latest timer snapshot and a
// short activity log fed by the event bus.
type Model struct {
	app  *tempo.App
	tick time.Duration

	snap     timer.Snapshot
	todayMs  int64
	activity []string
	err      error
	width    int
	help     help.Model
}

// NewModel creates the watch model polling at the app's configured
// refresh interval.
func NewModel(app *tempo.App) Model {
	return Model{app: app, tick: app.WatchRefresh(), help: help.New()}
}

// Run starts the dashboard and blocks until it exits. Bus subscriptions
// are registered before the program starts so no event is missed.
func Run(ctx context.Context, app *tempo.App) error {
	p := tea.NewProgram(NewModel(app), tea.WithContext(ctx), tea.WithAltScreen())

	bus := app.Bus()
	bus.SubscribeTimerStarted(func(e eventbus.TimerStartedPayload) {
		p.Send(busEventMsg{line: fmt.Sprintf("started  %s", e.Task)})
	})
	bus.SubscribeTimerStopped(func(e eventbus.TimerStoppedPayload) {
		p.Send(busEventMsg{line: fmt.Sprintf("stopped  %s (%s)", e.Task, timeutil.FormatHMS(e.Block.DurationMs))})
	})
	bus.SubscribeTimerFinished(func(e eventbus.TimerFinishedPayload) {
		p.Send(busEventMsg{line: fmt.Sprintf("finished %s (%s)", e.Task, timeutil.FormatHMS(e.ElapsedMs))})
	})
	bus.SubscribeSyncProgress(func(e eventbus.SyncProgressPayload) {
		p.Send(busEventMsg{line: fmt.Sprintf("sync     %s %s", e.Outcome, e.GroupKey)})
	})

	_, err := p.Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.refresh(), m.pollTick())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Toggle):
			return m, m.toggle()
		case key.Matches(msg, keys.Finish):
			return m, m.finish()
		}
		return m, nil

	case pollMsg:
		return m, tea.Batch(m.refresh(), m.pollTick())

	case refreshMsg:
		m.snap = msg.snap
		m.todayMs = msg.todayMs
		m.err = nil
		return m, nil

	case refreshErrMsg:
		m.err = msg.err
		return m, nil

	case busEventMsg:
		stamp := time.Now().Format("15:04:05")
		m.activity = append(m.activity, fmt.Sprintf("%s  %s", stamp, msg.line))
		if len(m.activity) > maxActivityLines {
			m.activity = m.activity[len(m.activity)-maxActivityLines:]
		}
		return m, m.refresh()
	}

	return m, nil
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("tempo watch"))
	b.WriteString("\n\n")

	rt := m.snap.Runtime
	switch {
	case rt.Idle():
		b.WriteString(idleStyle.Render("no task saved"))
		b.WriteString("\n")
	case rt.IsRunning:
		b.WriteString(fmt.Sprintf("%s  %s\n", elapsedStyle.Render(m.snap.Display), rt.SavedTaskName))
	default:
		b.WriteString(fmt.Sprintf("%s  %s %s\n", m.snap.Display, rt.SavedTaskName, idleStyle.Render("(paused)")))
	}
	b.WriteString(fmt.Sprintf("today  %s\n", timeutil.FormatHMS(m.todayMs)))

	if len(m.activity) > 0 {
		b.WriteString("\n")
		for _, line := range m.activity {
			b.WriteString(idleStyle.Render(line))
			b.WriteString("\n")
		}
	}

	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(styles.Error.Render(m.err.Error()))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(keys))

	return frameStyle.Render(b.String())
}

// refresh reloads the timer snapshot and today's total.
func (m Model) refresh() tea.Cmd {
	app := m.app
	return func() tea.Msg {
		ctx := context.Background()

		snap, err := app.Status(ctx)
		if err != nil {
			return refreshErrMsg{err: err}
		}

		window, err := tempo.ResolveWindow("today", time.Now(), "", "")
		if err != nil {
			return refreshErrMsg{err: err}
		}
		rows, err := app.AggregatedSessions(ctx, window)
		if err != nil {
			return refreshErrMsg{err: err}
		}

		var todayMs int64
		for _, r := range rows {
			todayMs += r.DurationMs
		}
		if snap.Runtime.IsRunning && snap.Runtime.ActiveBlockStartMs != nil {
			todayMs += snap.ElapsedMs - snap.Runtime.ElapsedBeforeActiveMs
		}
		return refreshMsg{snap: snap, todayMs: todayMs}
	}
}

// toggle stops a running timer or resumes the saved task.
func (m Model) toggle() tea.Cmd {
	app := m.app
	running := m.snap.Runtime.IsRunning
	idle := m.snap.Runtime.Idle()
	return func() tea.Msg {
		ctx := context.Background()
		var err error
		switch {
		case running:
			err = app.Stop(ctx)
		case idle:
			return busEventMsg{line: "no saved task to resume"}
		default:
			err = app.Start(ctx, "", m.snap.Runtime.Assignment)
		}
		if err != nil {
			return refreshErrMsg{err: err}
		}
		// The bus delivers the started/stopped event, which triggers the
		// refresh from Update.
		return nil
	}
}

// finish completes the current task and resets the timer.
func (m Model) finish() tea.Cmd {
	app := m.app
	if m.snap.Runtime.Idle() {
		return nil
	}
	return func() tea.Msg {
		if _, err := app.Finish(context.Background()); err != nil {
			return refreshErrMsg{err: err}
		}
		return nil
	}
}

func (m Model) pollTick() tea.Cmd {
	return tea.Tick(m.tick, func(t time.Time) tea.Msg {
		return pollMsg(t)
	})
}
