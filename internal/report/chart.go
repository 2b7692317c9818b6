// Package report renders the analysis table as SVG charts, a multi-page
// HTML report, a plain-text summary and optionally a PDF.
package report

import (
	"fmt"
	"math"
	"strings"

	"github.com/seenimoa/fredcycle/internal/series"
	"github.com/seenimoa/fredcycle/internal/stats"
)

// ════════════════════════════════════════════════════════════════════
// SVG Chart Generator
// ════════════════════════════════════════════════════════════════════

// ChartConfig holds rendering parameters for SVG charts.
type ChartConfig struct {
	Width        int    // SVG width in pixels (default: 800)
	Height       int    // SVG height in pixels (default: 420)
	MarginTop    int    // top margin (default: 40)
	MarginRight  int    // right margin (default: 160, leaves room for the legend)
	MarginBottom int    // bottom margin (default: 60)
	MarginLeft   int    // left margin (default: 70)
	BgColor      string // background color (default: "#ffffff")
	GridColor    string // grid line color (default: "#e8e8e8")
	TextColor    string // axis label color (default: "#333333")
	FontSize     int    // axis label font size (default: 11)
	Title        string // chart title
	XLabel       string
	YLabel       string
	Annotation   string // small print under the plot, e.g. the data source
}

// DefaultChartConfig returns sensible defaults for chart rendering.
func DefaultChartConfig() ChartConfig {
	return ChartConfig{
		Width:        800,
		Height:       420,
		MarginTop:    40,
		MarginRight:  160,
		MarginBottom: 60,
		MarginLeft:   70,
		BgColor:      "#ffffff",
		GridColor:    "#e8e8e8",
		TextColor:    "#333333",
		FontSize:     11,
	}
}

// plotArea returns the usable drawing area dimensions.
func (c ChartConfig) plotArea() (x, y, w, h int) {
	return c.MarginLeft, c.MarginTop,
		c.Width - c.MarginLeft - c.MarginRight,
		c.Height - c.MarginTop - c.MarginBottom
}

// withDefaults fills a zero config, keeping the caller's text fields.
func (c ChartConfig) withDefaults() ChartConfig {
	if c.Width != 0 {
		return c
	}
	d := DefaultChartConfig()
	d.Title, d.XLabel, d.YLabel, d.Annotation = c.Title, c.XLabel, c.YLabel, c.Annotation
	return d
}

// axis maps data values onto pixel coordinates with 5% padding.
type axis struct {
	min, max float64
	lo, hi   float64 // pixel range; hi may be smaller than lo for the y axis
}

func newAxis(lo, hi float64, vals ...[]float64) axis {
	minV, maxV := math.MaxFloat64, -math.MaxFloat64
	for _, vs := range vals {
		for _, v := range vs {
			if math.IsNaN(v) {
				continue
			}
			minV = math.Min(minV, v)
			maxV = math.Max(maxV, v)
		}
	}
	r := maxV - minV
	if r < 1e-9 {
		r = 1
	}
	return axis{min: minV - r*0.05, max: maxV + r*0.05, lo: lo, hi: hi}
}

func (a axis) px(v float64) float64 {
	return a.lo + (v-a.min)/(a.max-a.min)*(a.hi-a.lo)
}

func (a axis) tick(i, n int) float64 {
	return a.min + (a.max-a.min)*float64(i)/float64(n)
}

// ════════════════════════════════════════════════════════════════════
// Scatter Chart
// ════════════════════════════════════════════════════════════════════

// ScatterPoint is one dot. Group selects the legend entry and colour.
type ScatterPoint struct {
	X, Y  float64
	Group string
}

// ScatterGroup is a legend entry.
type ScatterGroup struct {
	Name  string
	Color string
}

// ScatterChart draws points coloured by group, in the order of groups, with
// an optional OLS trendline over all points. Points whose group is not
// listed are drawn in grey.
func ScatterChart(points []ScatterPoint, groups []ScatterGroup, trend *stats.Trend, cfg ChartConfig) string {
	cfg = cfg.withDefaults()
	if len(points) == 0 {
		return emptySVG(cfg, "No data points")
	}

	px, py, pw, ph := cfg.plotArea()
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i], ys[i] = p.X, p.Y
	}
	ax := newAxis(float64(px), float64(px+pw), xs)
	ay := newAxis(float64(py+ph), float64(py), ys)

	colors := make(map[string]string, len(groups))
	for _, g := range groups {
		colors[g.Name] = g.Color
	}

	var sb strings.Builder
	writeFrame(&sb, cfg)
	writeGrid(&sb, cfg, ax, ay)

	// Group order controls the paint order, so later regimes sit on top.
	paint := append(append([]ScatterGroup(nil), groups...), ScatterGroup{Color: "#9e9e9e"})
	for _, g := range paint {
		for _, p := range points {
			if g.Name == "" {
				if _, known := colors[p.Group]; known {
					continue
				}
			} else if p.Group != g.Name {
				continue
			}
			fmt.Fprintf(&sb, `<circle class="point" cx="%.1f" cy="%.1f" r="4" fill="%s" fill-opacity="0.75" data-group="%s"/>`,
				ax.px(p.X), ay.px(p.Y), g.Color, escapeXML(p.Group))
		}
	}

	if trend != nil {
		x0, x1 := minMax(xs)
		fmt.Fprintf(&sb, `<line class="trend" x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="#d32f2f" stroke-width="2" stroke-dasharray="6,4"/>`,
			ax.px(x0), ay.px(trend.At(x0)), ax.px(x1), ay.px(trend.At(x1)))
	}

	for i, g := range groups {
		ly := py + 10 + i*18
		lx := px + pw + 15
		fmt.Fprintf(&sb, `<circle cx="%d" cy="%d" r="5" fill="%s"/>`, lx, ly, g.Color)
		fmt.Fprintf(&sb, `<text x="%d" y="%d" font-size="10" fill="%s">%s</text>`,
			lx+10, ly+4, cfg.TextColor, escapeXML(g.Name))
	}
	if trend != nil {
		ly := py + 10 + len(groups)*18
		lx := px + pw + 10
		fmt.Fprintf(&sb, `<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="#d32f2f" stroke-width="2" stroke-dasharray="6,4"/>`,
			lx, ly, lx+12, ly)
		fmt.Fprintf(&sb, `<text x="%d" y="%d" font-size="10" fill="%s">Trend (R² %.2f)</text>`,
			lx+15, ly+4, cfg.TextColor, trend.RSquared)
	}

	sb.WriteString("</svg>")
	return sb.String()
}

// ════════════════════════════════════════════════════════════════════
// Line Chart
// ════════════════════════════════════════════════════════════════════

// LineChartSeries represents a named data series for line charts.
type LineChartSeries struct {
	Name   string
	Values []float64 // NaN breaks the line
	Color  string    // hex color (optional, auto-assigned if empty)
}

// LineChart generates an SVG line chart with one or more series sharing the
// x positions of labels.
func LineChart(lines []LineChartSeries, labels []string, cfg ChartConfig) string {
	cfg = cfg.withDefaults()
	maxLen := 0
	vals := make([][]float64, len(lines))
	for i, s := range lines {
		maxLen = max(maxLen, len(s.Values))
		vals[i] = s.Values
	}
	if maxLen < 2 {
		return emptySVG(cfg, "No data points")
	}

	px, py, pw, ph := cfg.plotArea()
	ax := newAxis(0, 0)
	ay := newAxis(float64(py+ph), float64(py), vals...)
	xAt := func(i int) float64 { return float64(px) + float64(i)*float64(pw)/float64(maxLen-1) }

	var sb strings.Builder
	writeFrame(&sb, cfg)
	writeGrid(&sb, cfg, ax, ay)

	defaultColors := []string{"#2196f3", "#ff9800", "#4caf50", "#e91e63", "#9c27b0", "#00bcd4"}
	for si, s := range lines {
		color := s.Color
		if color == "" {
			color = defaultColors[si%len(defaultColors)]
		}

		var path []string
		cmd := "M"
		for i, v := range s.Values {
			if math.IsNaN(v) {
				cmd = "M"
				continue
			}
			path = append(path, fmt.Sprintf("%s%.1f,%.1f", cmd, xAt(i), ay.px(v)))
			cmd = "L"
		}
		if len(path) > 1 {
			fmt.Fprintf(&sb, `<path class="line" d="%s" fill="none" stroke="%s" stroke-width="1.5"/>`,
				strings.Join(path, " "), color)
		}

		ly := py + 10 + si*18
		lx := px + pw + 10
		fmt.Fprintf(&sb, `<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="%s" stroke-width="2"/>`, lx, ly, lx+15, ly, color)
		fmt.Fprintf(&sb, `<text x="%d" y="%d" font-size="10" fill="%s">%s</text>`,
			lx+20, ly+4, cfg.TextColor, escapeXML(s.Name))
	}

	// X-axis labels, about eight of them.
	if len(labels) > 0 {
		step := max(1, len(labels)/8)
		for i := 0; i < len(labels) && i < maxLen; i += step {
			fmt.Fprintf(&sb, `<text x="%.1f" y="%d" font-size="%d" fill="%s" text-anchor="middle">%s</text>`,
				xAt(i), py+ph+16, cfg.FontSize, cfg.TextColor, escapeXML(labels[i]))
		}
	}

	sb.WriteString("</svg>")
	return sb.String()
}

// ════════════════════════════════════════════════════════════════════
// Helpers
// ════════════════════════════════════════════════════════════════════

// writeFrame writes the header, background, title, axis labels and annotation.
func writeFrame(sb *strings.Builder, cfg ChartConfig) {
	px, py, pw, ph := cfg.plotArea()
	sb.WriteString(svgHeader(cfg))
	fmt.Fprintf(sb, `<rect x="0" y="0" width="%d" height="%d" fill="%s"/>`, cfg.Width, cfg.Height, cfg.BgColor)
	fmt.Fprintf(sb, `<text class="title" x="%d" y="22" font-size="14" font-weight="bold" fill="%s" text-anchor="middle">%s</text>`,
		px+pw/2, cfg.TextColor, escapeXML(cfg.Title))
	fmt.Fprintf(sb, `<rect x="%d" y="%d" width="%d" height="%d" fill="none" stroke="%s"/>`, px, py, pw, ph, cfg.GridColor)
	if cfg.XLabel != "" {
		fmt.Fprintf(sb, `<text x="%d" y="%d" font-size="%d" fill="%s" text-anchor="middle">%s</text>`,
			px+pw/2, py+ph+34, cfg.FontSize+1, cfg.TextColor, escapeXML(cfg.XLabel))
	}
	if cfg.YLabel != "" {
		fmt.Fprintf(sb, `<text x="16" y="%d" font-size="%d" fill="%s" text-anchor="middle" transform="rotate(-90 16 %d)">%s</text>`,
			py+ph/2, cfg.FontSize+1, cfg.TextColor, py+ph/2, escapeXML(cfg.YLabel))
	}
	if cfg.Annotation != "" {
		fmt.Fprintf(sb, `<text class="annotation" x="%d" y="%d" font-size="9" fill="#777" font-style="italic">%s</text>`,
			px, cfg.Height-8, escapeXML(cfg.Annotation))
	}
}

// writeGrid draws horizontal grid lines and, when ax spans pixels, vertical ones.
func writeGrid(sb *strings.Builder, cfg ChartConfig, ax, ay axis) {
	px, py, pw, ph := cfg.plotArea()
	const n = 5
	for i := 0; i <= n; i++ {
		v := ay.tick(i, n)
		y := ay.px(v)
		fmt.Fprintf(sb, `<line x1="%d" y1="%.1f" x2="%d" y2="%.1f" stroke="%s" stroke-dasharray="3,3"/>`,
			px, y, px+pw, y, cfg.GridColor)
		fmt.Fprintf(sb, `<text x="%d" y="%.1f" font-size="%d" fill="%s" text-anchor="end">%.2f</text>`,
			px-5, y+4, cfg.FontSize, cfg.TextColor, v)
	}
	if ax.lo == ax.hi {
		return
	}
	for i := 0; i <= n; i++ {
		v := ax.tick(i, n)
		x := ax.px(v)
		fmt.Fprintf(sb, `<line x1="%.1f" y1="%d" x2="%.1f" y2="%d" stroke="%s" stroke-dasharray="3,3"/>`,
			x, py, x, py+ph, cfg.GridColor)
		fmt.Fprintf(sb, `<text x="%.1f" y="%d" font-size="%d" fill="%s" text-anchor="middle">%.2f</text>`,
			x, py+ph+16, cfg.FontSize, cfg.TextColor, v)
	}
}

// Floats converts values for charting, mapping nulls to NaN.
func Floats(vs []series.Value) []float64 {
	out := make([]float64, len(vs))
	for i, v := range vs {
		out[i] = v.OrNaN()
	}
	return out
}

func minMax(xs []float64) (float64, float64) {
	lo, hi := math.MaxFloat64, -math.MaxFloat64
	for _, x := range xs {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	return lo, hi
}

func svgHeader(cfg ChartConfig) string {
	return fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" font-family="sans-serif">`,
		cfg.Width, cfg.Height, cfg.Width, cfg.Height)
}

func emptySVG(cfg ChartConfig, msg string) string {
	if cfg.Width == 0 {
		cfg.Width = 400
	}
	if cfg.Height == 0 {
		cfg.Height = 200
	}
	return fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d"><rect width="%d" height="%d" fill="#f5f5f5"/><text x="%d" y="%d" text-anchor="middle" fill="#999" font-size="14">%s</text></svg>`,
		cfg.Width, cfg.Height, cfg.Width, cfg.Height, cfg.Width/2, cfg.Height/2, escapeXML(msg))
}

func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, `"`, "&quot;")
	return s
}
