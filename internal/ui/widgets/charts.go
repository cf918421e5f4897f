package widgets

import (
	"math"
	"strings"

	plot "github.com/chriskim06/drawille-go"
)

var blocks = []rune("▁▂▃▄▅▆▇█")

// Spark draws vals scaled against their own maximum. When there are more
// values than columns the most recent ones win.
func Spark(vals []float64, width int) string {
	if len(vals) == 0 || width <= 0 {
		return ""
	}
	if len(vals) > width {
		vals = vals[len(vals)-width:]
	}
	peak := 0.0
	for _, v := range vals {
		if v > peak && !math.IsInf(v, 0) {
			peak = v
		}
	}
	var b strings.Builder
	for _, v := range vals {
		level := 0
		if peak > 0 {
			level = int(math.Round(clamp01(v/peak) * float64(len(blocks)-1)))
		}
		b.WriteRune(blocks[level])
	}
	return b.String()
}

// Bar renders a 0..1 fraction as a left-filled bar of the given width.
// Any positive value shows at least one cell.
func Bar(v float64, width int) string {
	if width <= 0 {
		return ""
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	v = clamp01(v)
	fill := int(math.Round(v * float64(width)))
	if v > 0 && fill == 0 {
		fill = 1
	}
	return strings.Repeat("█", fill) + strings.Repeat(" ", width-fill)
}

// Trend plots every series on one braille canvas. Series are padded on the
// left so they share the time axis; empty input yields "".
func Trend(series [][]float64, width, height int) string {
	if width <= 0 || height <= 0 {
		return ""
	}
	points := 0
	for _, s := range series {
		points = max(points, len(s))
	}
	if points < 2 {
		return ""
	}
	data := make([][]float64, len(series))
	colors := make([]plot.Color, len(series))
	for i, s := range series {
		data[i] = make([]float64, points)
		copy(data[i][points-len(s):], s)
		colors[i] = plot.DimGray
		if i == 0 {
			colors[i] = plot.Red
		}
	}
	c := plot.NewCanvas(width, height)
	c.NumDataPoints = points
	c.ShowAxis = false
	c.LineColors = colors
	c.Fill(data)
	return c.String()
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
