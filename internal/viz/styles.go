package viz

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444466")).
			Padding(0, 2)

	canvasStyle = lipgloss.NewStyle().Padding(1, 2)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00ffff")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("#444466"))

	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#666688"))

	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888899")).Width(14)
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00ccff")).Bold(true)
	hintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#666688")).Italic(true)
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff4444"))
	graphStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00ff88"))

	statusStepping = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ff88"))
	statusWaiting  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ccff"))
	statusStopped  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ff4444"))
	statusDisabled = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ffaa00"))

	levelLow  = lipgloss.NewStyle().Foreground(lipgloss.Color("#00ff88"))
	levelMid  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffcc00"))
	levelHigh = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff4444"))
)

func levelStyle(frac float64) lipgloss.Style {
	switch {
	case frac > 0.8:
		return levelHigh
	case frac > 0.4:
		return levelMid
	}
	return levelLow
}

// Gauge renders frac of width as a filled bar. A fuller bar is drawn hotter,
// so a budget near its cap reads as a warning.
func Gauge(frac float64, width int) string {
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	filled := int(frac * float64(width))
	return levelStyle(frac).Render(strings.Repeat("█", filled) + strings.Repeat("░", width-filled))
}

var sparkRunes = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Sparkline renders the last width values scaled between their min and max.
func Sparkline(values []float64, width int) string {
	if len(values) == 0 || width <= 0 {
		return subtleStyle.Render(strings.Repeat("─", max(width, 0)))
	}
	if len(values) > width {
		values = values[len(values)-width:]
	}
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo, hi = min(lo, v), max(hi, v)
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}

	var b strings.Builder
	for _, v := range values {
		norm := (v - lo) / span
		idx := int(norm * float64(len(sparkRunes)-1))
		idx = min(max(idx, 0), len(sparkRunes)-1)
		b.WriteString(levelStyle(norm).Render(string(sparkRunes[idx])))
	}
	return b.String()
}

func separator(width int) string {
	mid := width / 2
	return subtleStyle.Render(strings.Repeat("─", mid-2) + " ◆ " + strings.Repeat("─", width-mid-1))
}
