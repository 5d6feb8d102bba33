package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Camier/2SEARX2COOL-sub001/internal/orchestrator"
	"github.com/Camier/2SEARX2COOL-sub001/pkg/models"
)

// maxLogEntries bounds the activity log kept in memory.
const maxLogEntries = 200

// visibleLogEntries is how many log lines are rendered.
const visibleLogEntries = 10

// Source is what the dashboard reads and controls. The orchestrator
// implements it.
type Source interface {
	GetMetrics() models.SystemMetrics
	Pause()
	Resume()
	Paused() bool
	AddTask(task *models.Task) error
}

// Options configures the dashboard.
type Options struct {
	Title       string
	RefreshRate time.Duration
	// OnQuit is called once when the user quits, typically to cancel the run.
	OnQuit func()
}

// EventMsg wraps an orchestrator event.
type EventMsg struct {
	Event orchestrator.Event
}

// DoneMsg is sent when the run finishes.
type DoneMsg struct {
	Err error
}

type tickMsg time.Time

// LogEntry is one line of the activity log.
type LogEntry struct {
	Timestamp time.Time
	Kind      string
	Message   string
	Failure   bool
}

// Dashboard is the bubbletea model of the run dashboard.
type Dashboard struct {
	src     Source
	opts    Options
	input   *InputField
	spinner spinner.Model

	metrics  models.SystemMetrics
	phase    string
	plan     string
	logs     []LogEntry
	width    int
	height   int
	done     bool
	err      error
	quitting bool

	// Styles
	headerStyle   lipgloss.Style
	labelStyle    lipgloss.Style
	valueStyle    lipgloss.Style
	progressFull  lipgloss.Style
	progressEmpty lipgloss.Style
	phaseStyle    lipgloss.Style
	warningStyle  lipgloss.Style
	errorStyle    lipgloss.Style
	runningStyle  lipgloss.Style
	dimStyle      lipgloss.Style
}

// NewDashboard creates the dashboard model.
func NewDashboard(src Source, opts Options) *Dashboard {
	if opts.RefreshRate <= 0 {
		opts.RefreshRate = 250 * time.Millisecond
	}
	if opts.Title == "" {
		opts.Title = "autopilot"
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return &Dashboard{
		src:     src,
		opts:    opts,
		input:   NewInputField(),
		spinner: sp,
		metrics: src.GetMetrics(),

		headerStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("238")).
			MarginBottom(1),

		labelStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(16),

		valueStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Bold(true),

		progressFull: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")),

		progressEmpty: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),

		phaseStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true),

		warningStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")),

		errorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")),

		runningStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")),

		dimStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),
	}
}

// Init implements tea.Model.
func (d *Dashboard) Init() tea.Cmd {
	return tea.Batch(d.spinner.Tick, d.tick())
}

func (d *Dashboard) tick() tea.Cmd {
	return tea.Tick(d.opts.RefreshRate, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update implements tea.Model.
func (d *Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return d.handleKey(msg)

	case tea.WindowSizeMsg:
		d.width = msg.Width
		d.height = msg.Height
		d.input.SetWidth(msg.Width)

	case tickMsg:
		d.metrics = d.src.GetMetrics()
		return d, d.tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		d.spinner, cmd = d.spinner.Update(msg)
		return d, cmd

	case EventMsg:
		d.applyEvent(msg.Event)

	case TaskSubmittedMsg:
		if err := d.src.AddTask(msg.Task); err != nil {
			d.log("submit", fmt.Sprintf("rejected %q: %v", msg.Task.Title, err), true)
		} else {
			d.log("submit", fmt.Sprintf("queued %s %q", msg.Task.ID, msg.Task.Title), false)
		}

	case TaskRejectedMsg:
		d.log("submit", msg.Err.Error(), true)

	case DoneMsg:
		d.done = true
		d.err = msg.Err
		d.metrics = d.src.GetMetrics()
	}
	return d, nil
}

func (d *Dashboard) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if d.input.Focused() {
		switch msg.Type {
		case tea.KeyEsc:
			d.input.Blur()
			return d, nil
		case tea.KeyCtrlC:
			return d.quit()
		}
		var cmd tea.Cmd
		d.input, cmd = d.input.Update(msg)
		if msg.Type == tea.KeyEnter {
			d.input.Blur()
		}
		return d, cmd
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return d.quit()
	case "p":
		if d.src.Paused() {
			d.src.Resume()
		} else {
			d.src.Pause()
		}
	case "a", "/":
		return d, d.input.Focus()
	}
	return d, nil
}

func (d *Dashboard) quit() (tea.Model, tea.Cmd) {
	if !d.quitting && d.opts.OnQuit != nil {
		d.opts.OnQuit()
	}
	d.quitting = true
	return d, tea.Quit
}

// applyEvent records an event in the activity log and tracks plan progress.
func (d *Dashboard) applyEvent(ev orchestrator.Event) {
	switch ev.Type {
	case orchestrator.EventPhaseStarted:
		d.phase = ev.Phase
		d.plan = ev.PlanID
	case orchestrator.EventPlanCompleted, orchestrator.EventPlanCancelled:
		d.phase = ""
	case orchestrator.EventTaskQueued, orchestrator.EventWorkerRegistered:
		// Too frequent to be worth a log line.
		return
	}

	msg := ev.Message
	if ev.TaskID != "" {
		subject := ev.TaskID
		if ev.TaskTitle != "" {
			subject += " " + ev.TaskTitle
		}
		msg = strings.TrimSpace(subject + " " + msg)
	}
	if ev.Phase != "" && ev.TaskID == "" {
		msg = strings.TrimSpace(ev.Phase + " " + msg)
	}
	if ev.Error != nil {
		msg += ": " + ev.Error.Error()
	}
	failure := ev.Error != nil || ev.Type == orchestrator.EventTaskFailed ||
		ev.Type == orchestrator.EventTaskBlocked || ev.Type == orchestrator.EventPlanCancelled
	d.logAt(ev.Timestamp, string(ev.Type), msg, failure)
}

func (d *Dashboard) log(kind, message string, failure bool) {
	d.logAt(time.Now(), kind, message, failure)
}

func (d *Dashboard) logAt(ts time.Time, kind, message string, failure bool) {
	if ts.IsZero() {
		ts = time.Now()
	}
	d.logs = append(d.logs, LogEntry{Timestamp: ts, Kind: kind, Message: message, Failure: failure})
	if len(d.logs) > maxLogEntries {
		d.logs = d.logs[len(d.logs)-maxLogEntries:]
	}
}

// Logs returns the activity log, oldest first.
func (d *Dashboard) Logs() []LogEntry {
	return d.logs
}

// View implements tea.Model.
func (d *Dashboard) View() string {
	if d.quitting {
		return "Run cancelled.\n"
	}

	var b strings.Builder
	b.WriteString(d.headerStyle.Render(fmt.Sprintf("=== %s ===", d.opts.Title)))
	b.WriteString("\n")

	b.WriteString(d.renderProgress())
	b.WriteString("\n")
	b.WriteString(d.renderWorkers())
	b.WriteString("\n")
	b.WriteString(d.renderLogs())
	b.WriteString("\n")

	if d.input.Focused() {
		b.WriteString(d.input.View())
		b.WriteString("\n")
	}
	b.WriteString(d.renderFooter())
	b.WriteString("\n")
	return b.String()
}

func (d *Dashboard) renderProgress() string {
	m := d.metrics
	var b strings.Builder

	state := d.runningStyle.Render(d.spinner.View() + " running")
	switch {
	case d.done && d.err != nil:
		state = d.errorStyle.Render("failed")
	case d.done:
		state = d.runningStyle.Render("finished")
	case d.src.Paused():
		state = d.warningStyle.Render("paused")
	}
	b.WriteString(d.labelStyle.Render("State:"))
	b.WriteString(state)
	b.WriteString("\n")

	phase := d.phase
	if phase == "" {
		phase = "none"
	}
	b.WriteString(d.labelStyle.Render("Phase:"))
	b.WriteString(d.phaseStyle.Render(phase))
	b.WriteString("\n")

	settled := m.CompletedTasks + m.BlockedTasks
	pct := 0.0
	if m.TotalTasks > 0 {
		pct = float64(settled) / float64(m.TotalTasks) * 100
	}
	b.WriteString(d.labelStyle.Render("Tasks:"))
	b.WriteString(d.valueStyle.Render(fmt.Sprintf("%d/%d settled", settled, m.TotalTasks)))
	b.WriteString(d.dimStyle.Render(fmt.Sprintf("  %d pending, %d running, %d blocked, %d failed attempts",
		m.PendingTasks, m.InProgressTasks, m.BlockedTasks, m.FailedTasks)))
	b.WriteString("\n")
	b.WriteString(d.renderProgressBar(pct, 30))
	b.WriteString("\n")

	b.WriteString(d.labelStyle.Render("Throughput:"))
	b.WriteString(d.valueStyle.Render(fmt.Sprintf("%.1f tasks/min", m.TasksPerMinute)))
	b.WriteString(d.dimStyle.Render(fmt.Sprintf("  success %.0f%%, healing %.0f%%", m.SuccessRate*100, m.HealingRate*100)))
	b.WriteString("\n")

	if m.Health.ValidatedTasks > 0 {
		b.WriteString(d.labelStyle.Render("Quality:"))
		b.WriteString(d.valueStyle.Render(fmt.Sprintf("%.1f", m.Health.AverageQuality)))
		b.WriteString(d.dimStyle.Render(fmt.Sprintf("  %d validated, %d failed, %d open issues",
			m.Health.ValidatedTasks, m.Health.ValidationFailures, m.Health.OpenIssues)))
		b.WriteString("\n")
	}
	return b.String()
}

// renderProgressBar renders a progress bar.
func (d *Dashboard) renderProgressBar(pct float64, width int) string {
	if pct > 100 {
		pct = 100
	}
	if pct < 0 {
		pct = 0
	}

	filled := int(pct / 100 * float64(width))
	empty := width - filled

	bar := d.progressFull.Render(strings.Repeat("█", filled)) +
		d.progressEmpty.Render(strings.Repeat("░", empty))

	return fmt.Sprintf("  %s %.0f%%", bar, pct)
}

func (d *Dashboard) renderWorkers() string {
	workers := append([]models.WorkerStatus(nil), d.metrics.Workers...)
	if len(workers) == 0 {
		return ""
	}
	sort.Slice(workers, func(i, j int) bool {
		if workers[i].Role != workers[j].Role {
			return workers[i].Role > workers[j].Role
		}
		return workers[i].ID < workers[j].ID
	})

	var b strings.Builder
	b.WriteString(d.labelStyle.Render("Workers:"))
	b.WriteString("\n")
	for _, w := range workers {
		stateStyle := d.dimStyle
		switch w.State {
		case models.WorkerBusy:
			stateStyle = d.runningStyle
		case models.WorkerError, models.WorkerOffline:
			stateStyle = d.errorStyle
		}
		line := fmt.Sprintf("  %-8s %-12s %d/%d  done %d, failed %d",
			stateStyle.Render(string(w.State)), w.ID, len(w.CurrentTasks), w.Capacity, w.Completed, w.Failed)
		if len(w.CurrentTasks) > 0 {
			line += d.dimStyle.Render("  " + strings.Join(w.CurrentTasks, ", "))
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

// renderLogs renders the recent log entries.
func (d *Dashboard) renderLogs() string {
	if len(d.logs) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("252")).
		Render("Activity Log"))
	b.WriteString("\n")

	start := max(len(d.logs)-visibleLogEntries, 0)
	for _, entry := range d.logs[start:] {
		ts := d.dimStyle.Render(entry.Timestamp.Format("15:04:05"))
		kind := lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Width(16).
			Render(entry.Kind)
		style := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
		if entry.Failure {
			style = d.errorStyle
		}
		b.WriteString(fmt.Sprintf("  %s %s %s\n", ts, kind, style.Render(entry.Message)))
	}
	return b.String()
}

func (d *Dashboard) renderFooter() string {
	if d.done {
		if d.err != nil {
			return d.errorStyle.Bold(true).Render(fmt.Sprintf("Error: %v. Press q to exit.", d.err))
		}
		return d.runningStyle.Bold(true).Render("Run complete! Press q to exit.")
	}
	if d.input.Focused() {
		return d.dimStyle.Render("enter submit • esc cancel")
	}
	pause := "pause"
	if d.src.Paused() {
		pause = "resume"
	}
	return d.dimStyle.Render(fmt.Sprintf("p %s • a add task • q quit", pause))
}

// NewProgram creates the bubbletea program for the dashboard.
func NewProgram(src Source, opts Options) (*tea.Program, *Dashboard) {
	d := NewDashboard(src, opts)
	return tea.NewProgram(d, tea.WithAltScreen()), d
}

// Forward sends orchestrator events to the program until ctx is done or
// the event stream closes.
func Forward(ctx context.Context, p *tea.Program, events <-chan orchestrator.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			p.Send(EventMsg{Event: ev})
		}
	}
}
