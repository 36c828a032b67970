// Package tui implements the interactive run monitor behind
// `drover runs --watch`: a polling list of recent runs with a
// transcript viewer.
package tui

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/droverhq/drover/internal/store"
)

// pollInterval is how often the run list is re-read from the store.
const pollInterval = 2 * time.Second

// listLimit bounds how many runs the monitor shows.
const listLimit = 50

type View int

const (
	ViewRunList View = iota
	ViewTranscript
)

// App is the bubbletea model for the run monitor.
type App struct {
	store *store.Store

	view        View
	runs        []*store.Run
	selectedIdx int
	selected    *store.Run

	viewport      viewport.Model
	viewportReady bool
	spinner       spinner.Model

	width  int
	height int
	err    error
}

// NewApp creates a run monitor over the given store.
func NewApp(st *store.Store) *App {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle

	return &App{
		store:   st,
		view:    ViewRunList,
		spinner: s,
	}
}

// Run starts the monitor and blocks until the user quits.
func Run(st *store.Store) error {
	p := tea.NewProgram(NewApp(st), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(a.loadRuns, a.tickCmd(), a.spinner.Tick)
}

func (a *App) tickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (a *App) hasActiveRuns() bool {
	for _, run := range a.runs {
		if run.Status == store.StatusRunning || run.Status == store.StatusAwaitingInput {
			return true
		}
	}
	return false
}

// Messages

type tickMsg time.Time

type runsLoadedMsg struct {
	runs []*store.Run
	err  error
}

type transcriptLoadedMsg struct {
	run     *store.Run
	content string
	err     error
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKey(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		if a.viewportReady {
			a.viewport.Width = msg.Width
			a.viewport.Height = transcriptHeight(msg.Height)
		}
		return a, nil

	case runsLoadedMsg:
		a.runs = msg.runs
		a.err = msg.err
		if a.selectedIdx >= len(a.runs) {
			a.selectedIdx = len(a.runs) - 1
		}
		if a.selectedIdx < 0 {
			a.selectedIdx = 0
		}
		return a, nil

	case tickMsg:
		// The serve process mutates run state out from under us, so the
		// list view re-reads on every tick.
		if a.view == ViewRunList {
			return a, tea.Batch(a.loadRuns, a.tickCmd())
		}
		return a, a.tickCmd()

	case transcriptLoadedMsg:
		if msg.err != nil {
			a.err = msg.err
			return a, nil
		}
		a.selected = msg.run
		a.viewport = viewport.New(a.width, transcriptHeight(a.height))
		a.viewport.SetContent(msg.content)
		a.viewport.GotoBottom()
		a.viewportReady = true
		a.view = ViewTranscript
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}

	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch a.view {
	case ViewRunList:
		return a.handleRunListKey(msg)
	case ViewTranscript:
		return a.handleTranscriptKey(msg)
	}
	return a, nil
}

func (a *App) handleRunListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return a, tea.Quit

	case "up", "k":
		if a.selectedIdx > 0 {
			a.selectedIdx--
		}

	case "down", "j":
		if a.selectedIdx < len(a.runs)-1 {
			a.selectedIdx++
		}

	case "enter":
		if len(a.runs) > 0 && a.selectedIdx < len(a.runs) {
			return a, a.loadTranscript(a.runs[a.selectedIdx].ID)
		}

	case "r":
		return a, a.loadRuns
	}

	return a, nil
}

func (a *App) handleTranscriptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		a.view = ViewRunList
		a.selected = nil
		return a, nil

	case "ctrl+c":
		return a, tea.Quit
	}

	// Remaining keys scroll the transcript.
	var cmd tea.Cmd
	a.viewport, cmd = a.viewport.Update(msg)
	return a, cmd
}

// Commands

func (a *App) loadRuns() tea.Msg {
	runs, err := a.store.ListRuns(listLimit)
	return runsLoadedMsg{runs: runs, err: err}
}

func (a *App) loadTranscript(id int64) tea.Cmd {
	return func() tea.Msg {
		run, err := a.store.GetRun(id)
		if err != nil {
			return transcriptLoadedMsg{err: err}
		}
		if run.TranscriptPath == "" {
			return transcriptLoadedMsg{run: run, content: "(no transcript recorded)"}
		}
		data, err := os.ReadFile(run.TranscriptPath)
		if err != nil {
			if os.IsNotExist(err) {
				return transcriptLoadedMsg{run: run, content: "(no transcript recorded)"}
			}
			return transcriptLoadedMsg{err: err}
		}
		return transcriptLoadedMsg{run: run, content: string(data)}
	}
}

// Views

func (a *App) View() string {
	switch a.view {
	case ViewRunList:
		return a.viewRunList()
	case ViewTranscript:
		return a.viewTranscript()
	}
	return ""
}

func (a *App) viewRunList() string {
	s := titleStyle.Render("Drover Runs")
	if a.hasActiveRuns() {
		s += " " + a.spinner.View()
	}
	s += "\n\n"

	if a.err != nil {
		s += errorStyle.Render(fmt.Sprintf("Error: %v", a.err)) + "\n\n"
	}

	if len(a.runs) == 0 {
		s += "No runs yet. Start one with `drover run` or `drover plan run`.\n"
	} else {
		for i, run := range a.runs {
			line := a.formatRunLine(run)
			switch {
			case i == a.selectedIdx:
				line = selectedStyle.Render("▶ " + line)
			case terminalStatus(run.Status):
				line = "  " + dimStyle.Render(line)
			default:
				line = "  " + line
			}
			s += line + "\n"
		}
	}

	s += "\n" + helpStyle.Render("[j/k] select  [enter] transcript  [r] refresh  [q] quit")
	return s
}

func (a *App) viewTranscript() string {
	if a.selected == nil {
		return "No run selected"
	}

	header := fmt.Sprintf("Run #%d · %s", a.selected.ID, a.selected.Tool)
	s := titleStyle.Render(header) + "  " + statusBadge(a.selected.Status) + "\n\n"
	s += a.viewport.View() + "\n\n"
	s += helpStyle.Render("[j/k] scroll  [esc] back  [q] back  [ctrl+c] quit")
	return s
}

func (a *App) formatRunLine(run *store.Run) string {
	age := formatAge(run.StartedAt)
	return fmt.Sprintf("#%-4d %-9s %s %-5s %s",
		run.ID, run.Tool, statusBadge(run.Status), age, truncate(run.Prompt, 40))
}

// statusBadge renders a fixed-width colored status so the run columns
// line up.
func statusBadge(status string) string {
	pad := func(s string) string { return fmt.Sprintf("%-17s", s) }
	switch status {
	case store.StatusRunning:
		return runningStyle.Render(pad("● running"))
	case store.StatusAwaitingInput:
		return awaitingStyle.Render(pad("⚠ awaiting input"))
	case store.StatusCompleted:
		return completedStyle.Render(pad("✓ completed"))
	case store.StatusFailed:
		return failedStyle.Render(pad("✗ failed"))
	case store.StatusTimedOut:
		return failedStyle.Render(pad("✗ timed out"))
	case store.StatusCancelled:
		return cancelledStyle.Render(pad("◌ cancelled"))
	default:
		return pad(status)
	}
}

func terminalStatus(status string) bool {
	switch status {
	case store.StatusCompleted, store.StatusFailed, store.StatusTimedOut, store.StatusCancelled:
		return true
	}
	return false
}

func transcriptHeight(total int) int {
	// Header and help lines take four rows.
	h := total - 4
	if h < 1 {
		h = 1
	}
	return h
}

func formatAge(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
