// Package report renders routine runs for the terminal: per-tick traces as ascii
// graphs, a styled step summary and a CSV export of the samples.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"chassis-controller/internal/motion"
	"chassis-controller/internal/pose"
	"chassis-controller/internal/routine"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00ccff"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("245"))

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444466")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(12)
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00ccff")).Bold(true)

	outcomeStyles = map[motion.Outcome]lipgloss.Style{
		motion.Settled:       lipgloss.NewStyle().Foreground(lipgloss.Color("#00ff88")),
		motion.Threshold:     lipgloss.NewStyle().Foreground(lipgloss.Color("#00ff88")),
		motion.Crossed:       lipgloss.NewStyle().Foreground(lipgloss.Color("#00ff88")),
		motion.FinalApproach: lipgloss.NewStyle().Foreground(lipgloss.Color("#00ff88")),
		motion.Timeout:       lipgloss.NewStyle().Foreground(lipgloss.Color("#ffaa00")),
		motion.Preempted:     lipgloss.NewStyle().Foreground(lipgloss.Color("#ff4444")).Bold(true),
	}
)

// Column widths of the step table.
const (
	indexWidth   = 4
	opWidth      = 18
	outcomeWidth = 16
	elapsedWidth = 10
)

// Summary renders the step results of a routine and the pose it ended at.
func Summary(name string, results []routine.StepResult, final pose.Pose, heading float64) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("routine "+name) + "\n")
	b.WriteString(row(headerStyle, "#", "op", "outcome", "elapsed") + "\n")

	var total float64
	for _, res := range results {
		total += res.Elapsed.Seconds()
		style, ok := outcomeStyles[res.Outcome]
		if !ok {
			style = lipgloss.NewStyle()
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			lipgloss.NewStyle().Width(indexWidth).Render(strconv.Itoa(res.Index)),
			lipgloss.NewStyle().Width(opWidth).Render(res.Op),
			style.Width(outcomeWidth).Render(string(res.Outcome)),
			lipgloss.NewStyle().Width(elapsedWidth).Render(fmt.Sprintf("%.2fs", res.Elapsed.Seconds())),
		) + "\n")
	}

	stats := strings.Join([]string{
		field("steps", strconv.Itoa(len(results))),
		field("total", fmt.Sprintf("%.2fs", total)),
		field("x", fmt.Sprintf("%.2f in", final.X)),
		field("y", fmt.Sprintf("%.2f in", final.Y)),
		field("heading", fmt.Sprintf("%.2f°", heading)),
		field("correct", fmt.Sprintf("%.2f°", final.CorrectAngle)),
	}, "\n")
	b.WriteString(panelStyle.Render(stats))
	return b.String()
}

func row(style lipgloss.Style, cols ...string) string {
	widths := []int{indexWidth, opWidth, outcomeWidth, elapsedWidth}
	cells := make([]string, len(cols))
	for i, c := range cols {
		cells[i] = style.Width(widths[i]).Render(c)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cells...)
}

func field(label, value string) string {
	return labelStyle.Render(label) + valueStyle.Render(value)
}

// Traces plots heading against target, and both side voltages, over the samples.
// It returns an empty string when there is nothing to plot.
func Traces(samples []motion.Sample, width int) string {
	if len(samples) < 2 {
		return ""
	}
	if width <= 0 {
		width = 80
	}

	heading := make([]float64, len(samples))
	target := make([]float64, len(samples))
	left := make([]float64, len(samples))
	right := make([]float64, len(samples))
	for i, s := range samples {
		heading[i] = s.Heading
		target[i] = s.Target
		left[i] = s.Left
		right[i] = s.Right
	}

	headingGraph := asciigraph.PlotMany([][]float64{heading, target},
		asciigraph.Height(10),
		asciigraph.Width(width),
		asciigraph.SeriesColors(asciigraph.Blue, asciigraph.Red),
		asciigraph.Caption(fmt.Sprintf("heading (blue) and target (red), deg, %d ticks", len(samples))),
	)
	voltageGraph := asciigraph.PlotMany([][]float64{left, right},
		asciigraph.Height(8),
		asciigraph.Width(width),
		asciigraph.SeriesColors(asciigraph.Green, asciigraph.Yellow),
		asciigraph.Caption("left (green) and right (yellow) output, V"),
	)
	return headingGraph + "\n\n" + voltageGraph
}

// Path plots the recorded x and y positions tick by tick.
func Path(samples []motion.Sample, width int) string {
	if len(samples) < 2 {
		return ""
	}
	if width <= 0 {
		width = 80
	}
	xs := make([]float64, len(samples))
	ys := make([]float64, len(samples))
	for i, s := range samples {
		xs[i] = s.X
		ys[i] = s.Y
	}
	return asciigraph.PlotMany([][]float64{xs, ys},
		asciigraph.Height(8),
		asciigraph.Width(width),
		asciigraph.SeriesColors(asciigraph.Blue, asciigraph.Green),
		asciigraph.Caption("x (blue) and y (green) position, in"),
	)
}

var csvHeader = []string{"time", "primitive", "heading", "target", "left", "right", "x", "y"}

// WriteCSV writes one row per sample.
func WriteCSV(w io.Writer, samples []motion.Sample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write trace header: %w", err)
	}
	for _, s := range samples {
		record := []string{
			strconv.FormatFloat(s.Time.Seconds(), 'f', 3, 64),
			s.Primitive,
			strconv.FormatFloat(s.Heading, 'f', 6, 64),
			strconv.FormatFloat(s.Target, 'f', 6, 64),
			strconv.FormatFloat(s.Left, 'f', 6, 64),
			strconv.FormatFloat(s.Right, 'f', 6, 64),
			strconv.FormatFloat(s.X, 'f', 6, 64),
			strconv.FormatFloat(s.Y, 'f', 6, 64),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write trace row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
