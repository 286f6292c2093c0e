// Package report renders computed metrics as a control vs treatment table,
// in markdown and HTML.
package report

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"variatio/domain/metric"
)

// StrongAlpha is the p-value at or below which a difference is strong
const StrongAlpha = 0.01

// Class grades a treatment arm against control
type Class string

const (
	NotSignificant Class = "not_significant"
	Positive       Class = "positive"
	Negative       Class = "negative"
	StrongPositive Class = "strong_positive"
	StrongNegative Class = "strong_negative"
)

// Classify grades a p-value and the sign of treatment minus control. NaN
// p-values and a zero difference are never significant.
func Classify(pValue, diff, alpha float64) Class {
	if math.IsNaN(pValue) || pValue > alpha || diff == 0 || math.IsNaN(diff) {
		return NotSignificant
	}
	if pValue <= StrongAlpha {
		if diff > 0 {
			return StrongPositive
		}
		return StrongNegative
	}
	if diff > 0 {
		return Positive
	}
	return Negative
}

// RelativeDiff returns (treatment-control)/control in percent. It is
// undefined when control is zero or either mean is missing.
func RelativeDiff(control, treatment float64, ok bool) (float64, bool) {
	if !ok || control == 0 || math.IsNaN(control) || math.IsNaN(treatment) {
		return 0, false
	}
	return (treatment - control) / control * 100, true
}

// Cell is one treatment arm of one metric row
type Cell struct {
	Arm     string
	Mean    float64
	HasMean bool
	// RelDiff is in percent and only meaningful when HasRelDiff is set.
	RelDiff    float64
	HasRelDiff bool
	PValue     float64
	Class      Class
}

// Row is one metric of the report
type Row struct {
	Name        string
	Method      metric.Method
	Degraded    bool
	ControlMean float64
	HasControl  bool
	Cells       []Cell
}

// Renderer builds reports at a given significance level
type Renderer struct {
	alpha float64
}

// NewRenderer creates a renderer; a non-positive alpha falls back to 0.05
func NewRenderer(alpha float64) *Renderer {
	if alpha <= 0 || alpha >= 1 {
		alpha = 0.05
	}
	return &Renderer{alpha: alpha}
}

// Alpha returns the significance level in use
func (r *Renderer) Alpha() float64 {
	return r.alpha
}

// Rows turns metrics into report rows
func (r *Renderer) Rows(metrics []metric.Metric) []Row {
	rows := make([]Row, 0, len(metrics))
	for _, m := range metrics {
		res := m.Result
		row := Row{
			Name:     m.Definition.Describe(),
			Method:   res.Method(),
			Degraded: res.Degraded(),
		}
		row.ControlMean, row.HasControl = res.Mean(res.ControlArm())

		for _, arm := range res.TreatmentArms() {
			cell := Cell{Arm: arm, PValue: math.NaN()}
			cell.Mean, cell.HasMean = res.Mean(arm)
			if p, ok := res.PValue(arm); ok {
				cell.PValue = p
			}
			cell.RelDiff, cell.HasRelDiff = RelativeDiff(row.ControlMean, cell.Mean, row.HasControl && cell.HasMean)

			diff := math.NaN()
			if row.HasControl && cell.HasMean {
				diff = cell.Mean - row.ControlMean
			}
			cell.Class = Classify(cell.PValue, diff, r.alpha)
			row.Cells = append(row.Cells, cell)
		}
		rows = append(rows, row)
	}
	return rows
}

// Markdown renders the metrics as a markdown table. Columns follow the
// first metric's arms.
func (r *Renderer) Markdown(metrics []metric.Metric) string {
	var b strings.Builder
	b.WriteString("# Experiment report\n\n")
	if len(metrics) == 0 {
		b.WriteString("No metrics computed.\n")
		return b.String()
	}

	first := metrics[0].Result
	arms := first.TreatmentArms()
	fmt.Fprintf(&b, "Significance level: %g\n\n", r.alpha)

	b.WriteString("| Metric | Method | " + escape(first.ControlArm()) + " (control)")
	for _, arm := range arms {
		b.WriteString(" | " + escape(arm))
	}
	b.WriteString(" |\n|---|---|---")
	for range arms {
		b.WriteString("|---")
	}
	b.WriteString("|\n")

	for _, row := range r.Rows(metrics) {
		method := string(row.Method)
		if row.Degraded {
			method += " (degraded)"
		}
		fmt.Fprintf(&b, "| %s | %s | %s", escape(row.Name), method, FormatMean(row.ControlMean, row.HasControl))
		for _, cell := range row.Cells {
			fmt.Fprintf(&b, " | %s (%s), p=%s, %s",
				FormatMean(cell.Mean, cell.HasMean), FormatDiff(cell), FormatPValue(cell.PValue), cell.Class)
		}
		b.WriteString(" |\n")
	}
	return b.String()
}

// HTML renders the markdown report as a complete HTML page
func (r *Renderer) HTML(metrics []metric.Metric) []byte {
	return ToHTML(r.Markdown(metrics))
}

// ToHTML converts markdown with tables to a complete HTML page
func ToHTML(md string) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	renderer := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.CompletePage,
		Title: "Experiment report",
	})
	return markdown.ToHTML([]byte(md), p, renderer)
}

// SaveReport writes the report to path; a .md extension writes markdown,
// anything else HTML
func (r *Renderer) SaveReport(path string, metrics []metric.Metric) error {
	var content []byte
	if strings.EqualFold(filepath.Ext(path), ".md") {
		content = []byte(r.Markdown(metrics))
	} else {
		content = r.HTML(metrics)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("failed to save report %s: %w", path, err)
	}
	return nil
}

// FormatMean renders a mean with two decimals, or n/a
func FormatMean(v float64, ok bool) string {
	if !ok {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", v)
}

// FormatDiff renders a cell's signed relative difference
func FormatDiff(c Cell) string {
	if !c.HasRelDiff {
		return "undefined"
	}
	return fmt.Sprintf("%+.1f%%", c.RelDiff)
}

// FormatPValue renders a p-value, or n/a when undefined
func FormatPValue(p float64) string {
	if math.IsNaN(p) {
		return "n/a"
	}
	return fmt.Sprintf("%.4f", p)
}

func escape(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
