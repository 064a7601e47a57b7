// Package tui is a terminal view of a running session.
package tui

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/cwbudde/routeviz/internal/history"
	"github.com/cwbudde/routeviz/internal/points"
	"github.com/cwbudde/routeviz/internal/render"
	"github.com/cwbudde/routeviz/internal/session"
)

const (
	defaultRefreshInterval = 250 * time.Millisecond
	defaultWidth           = 100
	sparkWidth             = 60
	toggleTimeout          = 30 * time.Second
)

// Session is the part of the run controller the TUI drives.
type Session interface {
	State() session.State
	RunID() string
	History() *history.Store
	Points() *points.PointSet
	Toggle(ctx context.Context) error
}

// Viewer redraws and exports routes.
type Viewer interface {
	Select(g int) (history.GenerationResult, bool)
	RoutePNG(src render.PointSource, route []int) ([]byte, error)
}

// Config controls TUI behavior.
type Config struct {
	Session         Session
	Viewer          Viewer
	ExportDir       string
	RefreshInterval time.Duration
	Rand            *rand.Rand
}

// Run starts the TUI and blocks until the user quits or ctx is done.
func Run(ctx context.Context, cfg Config) error {
	program := tea.NewProgram(newModel(cfg), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

type keyMap struct {
	Toggle    key.Binding
	Randomize key.Binding
	Prev      key.Binding
	Next      key.Binding
	Export    key.Binding
	Quit      key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Randomize, k.Prev, k.Next, k.Export, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

func defaultKeys() keyMap {
	return keyMap{
		Toggle:    key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "start/stop")),
		Randomize: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "randomize")),
		Prev:      key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←", "prev gen")),
		Next:      key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→", "next gen")),
		Export:    key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "export png")),
		Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

type styles struct {
	title   lipgloss.Style
	running lipgloss.Style
	idle    lipgloss.Style
	panel   lipgloss.Style
	label   lipgloss.Style
	spark   lipgloss.Style
	dim     lipgloss.Style
	err     lipgloss.Style
}

func defaultStyles() styles {
	brand := lipgloss.AdaptiveColor{Light: "26", Dark: "81"}
	subtle := lipgloss.AdaptiveColor{Light: "245", Dark: "244"}
	border := lipgloss.AdaptiveColor{Light: "250", Dark: "238"}
	return styles{
		title:   lipgloss.NewStyle().Bold(true).Foreground(brand),
		running: lipgloss.NewStyle().Padding(0, 1).Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("34")),
		idle:    lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("240")),
		panel:   lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(border).Padding(0, 1),
		label:   lipgloss.NewStyle().Foreground(subtle),
		spark:   lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		dim:     lipgloss.NewStyle().Foreground(subtle),
		err:     lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true),
	}
}

type tickMsg struct{}

// refreshMsg carries a consistent view of the session.
type refreshMsg struct {
	state   session.State
	runID   string
	results []history.GenerationResult
	best    history.GenerationResult
	hasBest bool
	points  points.Snapshot
}

type actionMsg struct {
	text string
	err  error
}

type model struct {
	sess      Session
	viewer    Viewer
	exportDir string
	refresh   time.Duration
	rng       *rand.Rand

	keys   keyMap
	help   help.Model
	styles styles
	width  int

	view refreshMsg
	// selected is the index into view.results, or -1 to follow the latest.
	selected int
	busy     bool
	status   string
	err      error
}

func newModel(cfg Config) model {
	refresh := cfg.RefreshInterval
	if refresh <= 0 {
		refresh = defaultRefreshInterval
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	exportDir := cfg.ExportDir
	if exportDir == "" {
		exportDir = "."
	}
	return model{
		sess:      cfg.Session,
		viewer:    cfg.Viewer,
		exportDir: exportDir,
		refresh:   refresh,
		rng:       rng,
		keys:      defaultKeys(),
		help:      help.New(),
		styles:    defaultStyles(),
		width:     defaultWidth,
		selected:  -1,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.fetchCmd(), m.tickCmd())
}

func (m model) tickCmd() tea.Cmd {
	return tea.Tick(m.refresh, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m model) fetchCmd() tea.Cmd {
	sess := m.sess
	return func() tea.Msg {
		snap := sess.History().Snapshot()
		best, ok := snap.Best()
		return refreshMsg{
			state:   sess.State(),
			runID:   sess.RunID(),
			results: snap.Results(),
			best:    best,
			hasBest: ok,
			points:  sess.Points().Snapshot(),
		}
	}
}

func (m model) toggleCmd() tea.Cmd {
	sess := m.sess
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), toggleTimeout)
		defer cancel()
		before := sess.State()
		if err := sess.Toggle(ctx); err != nil {
			return actionMsg{err: err}
		}
		if before == session.StateIdle {
			return actionMsg{text: "run started"}
		}
		return actionMsg{text: "run stopped"}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.fetchCmd(), m.tickCmd())

	case refreshMsg:
		// A new run replaces the history; drop a selection that no longer exists.
		if msg.runID != m.view.runID || m.selected >= len(msg.results) {
			m.selected = -1
		}
		m.view = msg
		return m, nil

	case actionMsg:
		m.busy = false
		m.err = msg.err
		if msg.err == nil {
			m.status = msg.text
		}
		return m, m.fetchCmd()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Toggle):
		if m.busy {
			return m, nil
		}
		m.busy = true
		m.status = "…"
		return m, m.toggleCmd()

	case key.Matches(msg, m.keys.Randomize):
		if err := m.sess.Points().Randomize(m.rng); err != nil {
			m.err = err
			return m, nil
		}
		m.err = nil
		m.status = "points randomized"
		return m, m.fetchCmd()

	case key.Matches(msg, m.keys.Prev):
		m.moveSelection(-1)
		m.selectCurrent()
		return m, nil

	case key.Matches(msg, m.keys.Next):
		m.moveSelection(1)
		m.selectCurrent()
		return m, nil

	case key.Matches(msg, m.keys.Export):
		m.export()
		return m, nil
	}
	return m, nil
}

func (m *model) moveSelection(delta int) {
	n := len(m.view.results)
	if n == 0 {
		return
	}
	idx := m.selected
	if idx < 0 {
		idx = n - 1
	}
	idx += delta
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		// Moving past the newest generation follows the run again.
		m.selected = -1
		return
	}
	m.selected = idx
}

// current returns the selected result, or the latest when following.
func (m model) current() (history.GenerationResult, bool) {
	n := len(m.view.results)
	if n == 0 {
		return history.GenerationResult{}, false
	}
	if m.selected < 0 {
		return m.view.results[n-1], true
	}
	return m.view.results[m.selected], true
}

func (m *model) selectCurrent() {
	res, ok := m.current()
	if !ok || m.viewer == nil {
		return
	}
	m.viewer.Select(res.Generation)
}

func (m *model) export() {
	res, ok := m.current()
	if !ok {
		m.err = errors.New("no generation to export")
		return
	}
	if m.viewer == nil {
		m.err = errors.New("export is not available")
		return
	}
	data, err := m.viewer.RoutePNG(render.Static(m.view.points), res.Route)
	if err != nil {
		m.err = err
		return
	}
	if err := os.MkdirAll(m.exportDir, 0755); err != nil {
		m.err = fmt.Errorf("failed to create export directory: %w", err)
		return
	}
	path := filepath.Join(m.exportDir, fmt.Sprintf("route-gen-%d.png", res.Generation))
	if err := os.WriteFile(path, data, 0644); err != nil {
		m.err = fmt.Errorf("failed to write %s: %w", path, err)
		return
	}
	m.err = nil
	m.status = "exported " + path
}

func (m model) View() string {
	var b strings.Builder

	badge := m.styles.idle.Render(string(m.view.state))
	if m.view.state == session.StateRunning || m.view.state == session.StateStopping {
		badge = m.styles.running.Render(string(m.view.state))
	}
	runID := m.view.runID
	if runID == "" {
		runID = "-"
	}
	b.WriteString(m.styles.title.Render("routeviz") + "  " + badge + "  " + m.styles.label.Render("run ") + runID + "\n")

	var stats []string
	stats = append(stats, fmt.Sprintf("%s %d", m.styles.label.Render("points"), m.view.points.Len()))
	if n := len(m.view.results); n > 0 {
		last := m.view.results[n-1]
		stats = append(stats,
			fmt.Sprintf("%s %d", m.styles.label.Render("generation"), last.Generation),
			fmt.Sprintf("%s %.4f", m.styles.label.Render("last"), last.Distance),
		)
	}
	if m.view.hasBest {
		stats = append(stats, fmt.Sprintf("%s %.4f @%d", m.styles.label.Render("best"), m.view.best.Distance, m.view.best.Generation))
	}

	distances := make([]float64, len(m.view.results))
	for i, r := range m.view.results {
		distances[i] = r.Distance
	}
	width := min(sparkWidth, max(10, m.width-12))
	body := []string{
		strings.Join(stats, "   "),
		m.styles.label.Render("distance ") + m.styles.spark.Render(sparkline(distances, width)),
	}

	if res, ok := m.current(); ok {
		mode := "latest"
		if m.selected >= 0 {
			mode = "selected"
		}
		route := strings.Join(m.view.points.RouteLabels(res.Route), " → ")
		if m.view.points.Closed() && len(res.Route) > 0 {
			route += " → " + m.view.points.RouteLabels(res.Route[:1])[0]
		}
		body = append(body,
			fmt.Sprintf("%s gen %d  %.4f", m.styles.label.Render(mode), res.Generation, res.Distance),
			truncate(route, max(20, m.width-6)),
		)
	} else {
		body = append(body, m.styles.dim.Render("no generations yet"))
	}
	b.WriteString(m.styles.panel.Render(strings.Join(body, "\n")) + "\n")

	if m.err != nil {
		b.WriteString(m.styles.err.Render("error: "+m.err.Error()) + "\n")
	} else if m.status != "" {
		b.WriteString(m.styles.dim.Render(m.status) + "\n")
	}
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width <= 1 {
		return string(r[:width])
	}
	return string(r[:width-1]) + "…"
}

// sparkline renders series scaled into width block characters. Long series
// are sampled evenly.
func sparkline(series []float64, width int) string {
	if width < 4 {
		width = 4
	}
	if len(series) == 0 {
		return strings.Repeat(".", width)
	}
	sampled := make([]float64, 0, width)
	if len(series) <= width {
		sampled = append(sampled, series...)
	} else {
		step := float64(len(series)-1) / float64(width-1)
		for i := 0; i < width; i++ {
			idx := int(math.Round(float64(i) * step))
			sampled = append(sampled, series[min(idx, len(series)-1)])
		}
	}

	minV, maxV := sampled[0], sampled[0]
	for _, v := range sampled[1:] {
		minV = math.Min(minV, v)
		maxV = math.Max(maxV, v)
	}
	chars := []rune("▁▂▃▄▅▆▇█")
	if maxV == minV {
		return strings.Repeat(string(chars[len(chars)-2]), len(sampled))
	}

	var b strings.Builder
	for _, v := range sampled {
		pos := int(math.Round((v - minV) / (maxV - minV) * float64(len(chars)-1)))
		b.WriteRune(chars[pos])
	}
	return b.String()
}
