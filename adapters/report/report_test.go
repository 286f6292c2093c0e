package report

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"variatio/domain/metric"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		p    float64
		diff float64
		want Class
	}{
		{"above alpha", 0.2, 5, NotSignificant},
		{"weak positive", 0.03, 5, Positive},
		{"weak negative", 0.05, -1, Negative},
		{"strong positive", 0.01, 2, StrongPositive},
		{"strong negative", 0.0001, -2, StrongNegative},
		{"undefined p", math.NaN(), 2, NotSignificant},
		{"no difference", 0.001, 0, NotSignificant},
		{"missing mean", 0.001, math.NaN(), NotSignificant},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.p, tt.diff, 0.05))
		})
	}
}

func TestRelativeDiff(t *testing.T) {
	d, ok := RelativeDiff(10, 12, true)
	require.True(t, ok)
	assert.InDelta(t, 20, d, 1e-12)

	_, ok = RelativeDiff(0, 12, true)
	assert.False(t, ok)
	_, ok = RelativeDiff(10, 12, false)
	assert.False(t, ok)
}

func sampleMetrics() []metric.Metric {
	return []metric.Metric{
		{
			Definition: metric.Count("purchase"),
			Result: metric.NewResult(metric.ResultInput{
				ControlArm:    "A",
				TreatmentArms: []string{"B", "C"},
				Means:         map[string]float64{"A": 0, "B": 1.5},
				PValues:       map[string]float64{"B": 0.001, "C": math.NaN()},
				Method:        metric.MethodPureCupedTTest,
			}),
		},
		{
			Definition: metric.AttributeSum("purchase", "value"),
			Result: metric.NewResult(metric.ResultInput{
				ControlArm:    "A",
				TreatmentArms: []string{"B", "C"},
				Means:         map[string]float64{"A": 10, "B": 9, "C": 12},
				PValues:       map[string]float64{"B": 0.03, "C": 0.4},
				Method:        metric.MethodBoostedCupedTTest,
				Degraded:      true,
			}),
		},
	}
}

func TestRenderer_Markdown(t *testing.T) {
	md := NewRenderer(0.05).Markdown(sampleMetrics())
	lines := strings.Split(strings.TrimSpace(md), "\n")

	assert.Contains(t, md, "| Metric | Method | A (control) | B | C |")
	require.Len(t, lines, 8)

	countRow := lines[6]
	assert.Contains(t, countRow, "| 0.00 |")
	assert.Contains(t, countRow, "1.50 (undefined), p=0.0010, strong_positive")
	assert.Contains(t, countRow, "n/a (undefined), p=n/a, not_significant")

	sumRow := lines[7]
	assert.Contains(t, sumRow, "gboost_cuped_t_test (degraded)")
	assert.Contains(t, sumRow, "9.00 (-10.0%), p=0.0300, negative")
	assert.Contains(t, sumRow, "12.00 (+20.0%), p=0.4000, not_significant")
}

func TestRenderer_Empty(t *testing.T) {
	assert.Contains(t, NewRenderer(0.05).Markdown(nil), "No metrics computed.")
}

func TestRenderer_HTMLAndSave(t *testing.T) {
	r := NewRenderer(0)
	page := string(r.HTML(sampleMetrics()))
	assert.Contains(t, page, "<table>")
	assert.Contains(t, page, "<title>Experiment report</title>")
	assert.Contains(t, page, "strong_positive")

	dir := t.TempDir()
	htmlPath := filepath.Join(dir, "report.html")
	mdPath := filepath.Join(dir, "report.md")
	require.NoError(t, r.SaveReport(htmlPath, sampleMetrics()))
	require.NoError(t, r.SaveReport(mdPath, sampleMetrics()))

	html, err := os.ReadFile(htmlPath)
	require.NoError(t, err)
	assert.Contains(t, string(html), "<table>")

	md, err := os.ReadFile(mdPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(md), "# Experiment report"))

	assert.Error(t, r.SaveReport(filepath.Join(dir, "missing", "report.html"), nil))
}
