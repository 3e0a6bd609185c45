package viz

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/sirupsen/logrus"

	"github.com/san-kum/physloop/internal/experiment"
	"github.com/san-kum/physloop/internal/sim"
)

const (
	width        = 64
	height       = 20
	graphCycles  = 60
	frameRate    = 60
	sparkColumns = 30
)

type TickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(time.Second/frameRate, func(t time.Time) tea.Msg { return TickMsg(t) })
}

// Model drives a set-up experiment from the terminal frame clock and renders
// the selected scene next to the scheduler's counters.
type Model struct {
	exp    *experiment.Experiment
	ctx    context.Context
	canvas *Canvas
	view   Viewport
	log    *logrus.Entry

	scene    int
	last     time.Time
	frames   int
	err      error
	showHelp bool
	snapDir  string
	snaps    []string
}

// NewModel wraps exp, which must already be set up. Updates run under ctx.
func NewModel(ctx context.Context, exp *experiment.Experiment) Model {
	return Model{
		exp:    exp,
		ctx:    ctx,
		canvas: NewCanvas(width, height),
		view:   Viewport{MinX: -12, MaxX: 12, MinY: -1, MaxY: 16},
		log:    logrus.WithField("component", "viz"),
	}
}

func (m Model) Init() tea.Cmd { return tick() }

// WithSnapshots enables the snapshot key, writing SVG files into dir.
func (m Model) WithSnapshots(dir string) Model {
	m.snapDir = dir
	return m
}

// Snapshots returns the files written so far.
func (m Model) Snapshots() []string { return m.snaps }

// Err returns the last error reported by an update or a key action.
func (m Model) Err() error { return m.err }

// Frames returns the number of frame ticks handled.
func (m Model) Frames() int { return m.frames }

// Selected returns the index of the rendered scene.
func (m Model) Selected() int { return m.scene }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case TickMsg:
		m.advance(time.Time(msg))
		return m, tick()
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	sys := m.exp.System()
	n := len(m.exp.Scenes())
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case " ":
		sys.SetDisabled(!sys.Disabled())
	case "a":
		m.setErr(m.exp.Spawn(m.scene))
	case "d":
		m.setErr(m.exp.Despawn(m.scene))
	case "c":
		m.setErr(m.exp.Reset(m.scene))
	case "tab":
		if n > 0 {
			m.scene = (m.scene + 1) % n
		}
	case "shift+tab":
		if n > 0 {
			m.scene = (m.scene + n - 1) % n
		}
	case "s":
		m.setErr(m.snapshot())
	case "?":
		m.showHelp = !m.showHelp
	}
	return m, nil
}

func (m *Model) snapshot() error {
	if m.snapDir == "" {
		return nil
	}
	if err := os.MkdirAll(m.snapDir, 0755); err != nil {
		return err
	}
	m.draw(m.selected())
	path := filepath.Join(m.snapDir, fmt.Sprintf("scene%d-cycle%d.svg", m.scene, m.exp.System().Cycles()))
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := m.canvas.WriteSVG(f, 4); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	m.snaps = append(m.snaps, path)
	m.log.WithField("path", path).Info("snapshot written")
	return nil
}

func (m *Model) setErr(err error) {
	if err != nil {
		m.log.WithError(err).Warn("scene action failed")
		m.err = err
	}
}

// advance feeds the wall time since the previous tick to the system.
func (m *Model) advance(now time.Time) {
	dt := float32(1.0 / frameRate)
	if !m.last.IsZero() {
		dt = float32(now.Sub(m.last).Seconds())
	}
	m.last = now
	m.frames++
	if err := m.exp.System().Update(m.ctx, dt); err != nil {
		m.log.WithError(err).Warn("update failed")
		m.err = err
	}
}

func (m Model) selected() *sim.Scene {
	scenes := m.exp.Scenes()
	if m.scene < 0 || m.scene >= len(scenes) {
		return nil
	}
	return scenes[m.scene]
}

func (m Model) draw(sc *sim.Scene) {
	c := m.canvas
	c.Clear()
	w, _ := c.Dots()
	_, gy := m.view.Project(c, 0, 0)
	c.Line(0, gy, w-1, gy)
	if sc == nil {
		return
	}
	for _, b := range sc.Bodies() {
		p := b.Motion().Position
		x, y := m.view.Project(c, p.X(), p.Y())
		c.Disc(x, y, m.view.Scale(c, b.Desc.Radius))
	}
}

func (m Model) status(sys *sim.System) string {
	if sys.Disabled() {
		return statusDisabled.Render("DISABLED")
	}
	if !sys.Config().Multithreaded {
		return statusStepping.Render("LOCKSTEP")
	}
	switch st := sys.WorkerState(); st {
	case sim.WorkerStepping:
		return statusStepping.Render(strings.ToUpper(st.String()))
	case sim.WorkerWaiting:
		return statusWaiting.Render(strings.ToUpper(st.String()))
	default:
		return statusStopped.Render(strings.ToUpper(st.String()))
	}
}

func row(label, value string) string {
	return labelStyle.Render(label) + valueStyle.Render(value) + "\n"
}

func (m Model) View() string {
	sys := m.exp.System()
	sc := m.selected()
	m.draw(sc)

	cfg := sys.Config()
	limit := float64(cfg.FixedStep) * float64(cfg.MaxSubSteps)
	budget := float64(sys.Budget())

	var s strings.Builder
	s.WriteString(titleStyle.Render(strings.ToUpper(m.exp.Config().Run.Scenario)) + "\n\n")
	s.WriteString(m.status(sys) + "\n\n")
	s.WriteString(row("Mode", sys.Mode()))
	s.WriteString(row("Scene", fmt.Sprintf("%d/%d", m.scene+1, len(m.exp.Scenes()))))
	if sc != nil {
		adds, removes, cr := sc.Pending()
		s.WriteString(row("Bodies", fmt.Sprintf("%d", sc.Len())))
		pending := fmt.Sprintf("+%d -%d", adds, removes)
		if cr != sim.ClearNone {
			pending += " " + cr.String()
		}
		s.WriteString(row("Pending", pending))
	}
	s.WriteString(row("Cycles", fmt.Sprintf("%d", sys.Cycles())))
	s.WriteString(row("Events", fmt.Sprintf("%d", m.exp.Events())))
	s.WriteString(labelStyle.Render("Budget") + Gauge(budget/limit, 16) +
		valueStyle.Render(fmt.Sprintf(" %.3fs", budget)) + "\n")
	s.WriteString(row("Dropped", fmt.Sprintf("%.3fs", sys.Dropped())))

	recent := m.exp.Recent(graphCycles)
	substeps := make([]float64, len(recent))
	latency := make([]float64, len(recent))
	for i, r := range recent {
		substeps[i] = float64(r.Substeps())
		latency[i] = float64(r.Duration.Microseconds()) / 1000
	}
	if len(substeps) > 1 {
		chart := asciigraph.Plot(substeps,
			asciigraph.Height(4), asciigraph.Width(sparkColumns),
			asciigraph.LowerBound(0), asciigraph.UpperBound(float64(cfg.MaxSubSteps)),
			asciigraph.Caption("substeps/cycle"))
		s.WriteString("\n" + graphStyle.Render(chart) + "\n")
	}
	s.WriteString(labelStyle.Render("Latency") + Sparkline(latency, sparkColumns) + "\n")

	s.WriteString("\n" + separator(sparkColumns+14) + "\n")
	metrics := m.exp.Metrics()
	for _, name := range metrics.Names() {
		v, _ := metrics.Value(name)
		s.WriteString(subtleStyle.Render(fmt.Sprintf("%-20s", name)) + valueStyle.Render(fmt.Sprintf("%.4f", v)) + "\n")
	}
	if m.err != nil {
		s.WriteString("\n" + errorStyle.Render(truncate(m.err.Error(), sparkColumns+14)) + "\n")
	}
	s.WriteString("\n" + hintStyle.Render("SP:Enable/Disable A:Spawn D:Despawn\nC:Clear S:Snapshot TAB:Scene ?:Help Q:Quit"))

	out := lipgloss.JoinHorizontal(lipgloss.Top, canvasStyle.Render(m.canvas.String()), panelStyle.Render(s.String()))
	if m.showHelp {
		return panelStyle.Render(helpText) + "\n" + out
	}
	return out
}

const helpText = `Space      toggle stepping (time is still consumed)
A          spawn a body in the selected scene
D          despawn the oldest body
C          clear and repopulate the scene
S          write the scene as an SVG snapshot
Tab        next scene (Shift+Tab previous)
?          toggle this help
Q          quit`

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// Run sets up exp if needed, runs the live view until the user quits and
// closes the system. Snapshots go to snapDir when it is set.
func Run(ctx context.Context, exp *experiment.Experiment, snapDir string) error {
	if exp.System() == nil {
		if err := exp.Setup(); err != nil {
			return err
		}
	}
	final, err := tea.NewProgram(NewModel(ctx, exp).WithSnapshots(snapDir), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	closeErr := exp.System().Close()
	if err != nil {
		return err
	}
	if fm, ok := final.(Model); ok && fm.err != nil {
		logrus.WithField("component", "viz").WithError(fm.err).Info("live view ended with error")
	}
	return closeErr
}
