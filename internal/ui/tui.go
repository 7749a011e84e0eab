package ui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	tickInterval  = 100 * time.Millisecond
	defaultWidth  = 64
	maxPanelWidth = 80
	maxErrorLines = 3
)

// TUIRenderer drives a bubbletea program showing live indexing progress.
// Construction fails when the output is not a terminal; callers fall back
// to the plain renderer.
type TUIRenderer struct {
	program *tea.Program
	tracker *ProgressTracker

	done    chan struct{}
	runErr  error
	stopped sync.Once
}

var _ Renderer = (*TUIRenderer)(nil)

// NewTUIRenderer starts the TUI event loop on cfg.Output.
func NewTUIRenderer(cfg Config) (*TUIRenderer, error) {
	if !IsTTY(cfg.Output) {
		return nil, fmt.Errorf("tui: output is not a terminal")
	}

	tracker := NewProgressTracker()
	model := newIndexingModel(cfg, tracker)
	program := tea.NewProgram(model, tea.WithOutput(cfg.Output))

	r := &TUIRenderer{
		program: program,
		tracker: tracker,
		done:    make(chan struct{}),
	}
	go func() {
		_, err := program.Run()
		r.runErr = err
		close(r.done)
	}()
	return r, nil
}

// Start resets the tracker and ties the program's lifetime to ctx.
func (r *TUIRenderer) Start(ctx context.Context) error {
	r.tracker.Start(0)
	go func() {
		select {
		case <-ctx.Done():
			r.program.Quit()
		case <-r.done:
		}
	}()
	return nil
}

// UpdateProgress folds a progress event into the tracker; the model picks
// it up on the next tick.
func (r *TUIRenderer) UpdateProgress(ev ProgressEvent) {
	r.tracker.Update(ev)
}

// AddError records the failure and surfaces it in the error pane.
func (r *TUIRenderer) AddError(ev ErrorEvent) {
	r.tracker.RecordError(ev.IsWarn)
	r.program.Send(errorMsg{ev})
}

// Complete shows the final summary and waits for the program to exit so
// the summary stays on screen.
func (r *TUIRenderer) Complete(stats CompletionStats) {
	r.program.Send(completeMsg{stats})
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
	}
}

// Stop tears the program down. Safe to call more than once.
func (r *TUIRenderer) Stop() error {
	r.stopped.Do(func() {
		r.program.Quit()
		select {
		case <-r.done:
		case <-time.After(2 * time.Second):
		}
	})
	return r.runErr
}

type (
	tickMsg     time.Time
	errorMsg    struct{ ev ErrorEvent }
	completeMsg struct{ stats CompletionStats }
)

func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// indexingModel is the bubbletea model behind TUIRenderer. It reads live
// numbers from the shared ProgressTracker on every tick.
type indexingModel struct {
	title   string
	tracker *ProgressTracker
	styles  Styles

	spin spinner.Model
	bar  progress.Model

	width  int
	errors []ErrorEvent

	done  bool
	stats CompletionStats
}

func newIndexingModel(cfg Config, tracker *ProgressTracker) indexingModel {
	styles := GetStyles(cfg.NoColor || DetectNoColor())

	title := "Lorekeep"
	if cfg.LibraryDir != "" {
		title = "Lorekeep • " + cfg.LibraryDir
	}

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = styles.Active

	bar := progress.New(progress.WithSolidFill(ColorAccent))
	bar.ShowPercentage = false

	return indexingModel{
		title:   title,
		tracker: tracker,
		styles:  styles,
		spin:    sp,
		bar:     bar,
		width:   defaultWidth,
	}
}

func (m indexingModel) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, tickCmd())
}

func (m indexingModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		if m.width > maxPanelWidth {
			m.width = maxPanelWidth
		}
		m.bar.Width = m.innerWidth()
		return m, nil

	case tickMsg:
		if m.done {
			return m, nil
		}
		return m, tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case errorMsg:
		m.errors = append(m.errors, msg.ev)
		if len(m.errors) > maxErrorLines {
			m.errors = m.errors[len(m.errors)-maxErrorLines:]
		}
		return m, nil

	case completeMsg:
		m.done = true
		m.stats = msg.stats
		return m, tea.Quit
	}
	return m, nil
}

func (m indexingModel) View() string {
	if m.done {
		return m.wrapInPanel(m.renderComplete()) + "\n"
	}
	return m.wrapInPanel(m.renderProgress()) + "\n"
}

func (m indexingModel) renderProgress() string {
	var b strings.Builder

	b.WriteString(m.styles.Header.Render(m.title))
	b.WriteString("\n\n")

	b.WriteString(m.renderStages())
	b.WriteString("\n\n")

	current, total := m.tracker.Counts()
	b.WriteString(m.bar.ViewAs(m.tracker.Percent()))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%d / %d documents", current, total))
	b.WriteString("\n")

	if file := m.tracker.CurrentFile(); file != "" {
		b.WriteString(m.styles.Dim.Render(truncateFilePath(file, m.innerWidth())))
		b.WriteString("\n")
	}

	if speed, ok := m.tracker.Speed(); ok {
		line := m.styles.Sparkline.Render(m.tracker.SpeedChart(16))
		line += " " + m.styles.Speed.Render(FormatSpeed(speed))
		if eta, ok := m.tracker.ETA(); ok {
			line += m.styles.Dim.Render("  eta " + formatDuration(eta))
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	if len(m.errors) > 0 {
		b.WriteString("\n")
		for _, ev := range m.errors {
			style := m.styles.Error
			if ev.IsWarn {
				style = m.styles.Warning
			}
			line := fmt.Sprintf("%s: %v", ev.File, ev.Err)
			b.WriteString(style.Render(truncateFilePath(line, m.innerWidth())))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())
	return b.String()
}

// renderStages draws the pipeline as a row of stage markers: a filled dot
// for finished stages, the spinner for the active one, an empty circle for
// stages not yet reached.
func (m indexingModel) renderStages() string {
	active := m.tracker.Stage()
	stages := []Stage{StageScanning, StageCleaning, StageIndexing, StageFlushing}

	parts := make([]string, 0, len(stages))
	for _, st := range stages {
		switch {
		case st < active || active == StageComplete:
			parts = append(parts, m.styles.Success.Render("● "+st.String()))
		case st == active:
			parts = append(parts, m.spin.View()+" "+m.styles.Active.Render(st.String()))
		default:
			parts = append(parts, m.styles.Dim.Render("○ "+st.String()))
		}
	}
	return strings.Join(parts, "  ")
}

func (m indexingModel) renderStatusBar() string {
	hints := "q to quit"
	errs, warns := m.tracker.ErrorCounts()
	if errs > 0 || warns > 0 {
		hints += fmt.Sprintf("  •  %d errors, %d warnings", errs, warns)
	}
	return m.styles.Dim.Render(hints)
}

func (m indexingModel) renderComplete() string {
	var b strings.Builder
	st := m.stats

	mark := m.styles.Success.Render("✓")
	if st.Errors > 0 {
		mark = m.styles.Warning.Render("⚠")
	}
	b.WriteString(fmt.Sprintf("%s Indexed %d documents (%d chunks) in %s\n",
		mark, st.Documents, st.Chunks, formatDuration(st.Duration)))

	if st.Mode == "update" {
		b.WriteString(m.styles.Label.Render(fmt.Sprintf(
			"  added %d, modified %d, removed %d, unchanged %d\n",
			st.Added, st.Modified, st.Removed, st.Unchanged)))
	}

	if !st.Stages.isZero() {
		b.WriteString(m.styles.Dim.Render(fmt.Sprintf(
			"  scan %s | clean %s | index %s | flush %s\n",
			formatDuration(st.Stages.Scan),
			formatDuration(st.Stages.Clean),
			formatDuration(st.Stages.Index),
			formatDuration(st.Stages.Flush))))
	}

	if st.Embedder.Model != "" {
		b.WriteString(m.styles.Dim.Render(fmt.Sprintf(
			"  embeddings: %s/%s (%d dims)\n",
			st.Embedder.Provider, st.Embedder.Model, st.Embedder.Dimensions)))
	}

	if st.Errors > 0 || st.Warnings > 0 {
		b.WriteString(m.styles.Warning.Render(fmt.Sprintf(
			"  %d errors, %d warnings\n", st.Errors, st.Warnings)))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m indexingModel) innerWidth() int {
	// Panel padding and borders take six columns.
	w := m.width - 6
	if w < 20 {
		w = 20
	}
	return w
}

func (m indexingModel) wrapInPanel(content string) string {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorDarkGray)).
		Padding(1, 2).
		Width(m.width - 2).
		Render(content)
}

// truncateFilePath shortens a path to max runes, keeping the tail, which
// carries the filename.
func truncateFilePath(path string, max int) string {
	runes := []rune(path)
	if len(runes) <= max {
		return path
	}
	if max <= 1 {
		return "…"
	}
	return "…" + string(runes[len(runes)-max+1:])
}
