package report

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/seenimoa/fredcycle/internal/analysis"
	"github.com/seenimoa/fredcycle/internal/catalog"
	"github.com/seenimoa/fredcycle/internal/config"
	"github.com/seenimoa/fredcycle/internal/providers/offline"
	"github.com/seenimoa/fredcycle/internal/series"
	"github.com/seenimoa/fredcycle/internal/stats"
)

// ════════════════════════════════════════════════════════════════════
// Report Generator: orchestrates chart + template rendering
// ════════════════════════════════════════════════════════════════════

// Format specifies the output format.
type Format string

const (
	FormatHTML Format = "html"
	FormatPDF  Format = "pdf"
	FormatText Format = "text"
)

// ParseFormat accepts html, pdf or text; empty means html.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatHTML, nil
	case FormatHTML, FormatPDF, FormatText:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported report format %q (want html, pdf or text)", s)
	}
}

// Config controls report generation.
type Config struct {
	Format    Format
	PDFEngine PDFEngine
	Title     string
	Author    string
	OutputDir string
	Chart     ChartConfig
}

const defaultTitle = "Credit Spreads and Delinquency"

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Format:    FormatHTML,
		Title:     defaultTitle,
		OutputDir: "./reports",
		Chart:     DefaultChartConfig(),
	}
}

// ConfigFrom builds a report config from the report section of the
// application config.
func ConfigFrom(rc config.ReportConfig) (Config, error) {
	cfg := DefaultConfig()
	f, err := ParseFormat(rc.Format)
	if err != nil {
		return Config{}, err
	}
	engine, err := ParsePDFEngine(rc.PDFEngine)
	if err != nil {
		return Config{}, err
	}
	cfg.Format = f
	cfg.PDFEngine = engine
	if rc.Title != "" {
		cfg.Title = rc.Title
	}
	cfg.Author = rc.Author
	if rc.OutputDir != "" {
		cfg.OutputDir = rc.OutputDir
	}
	return cfg, nil
}

// Generator renders snapshots.
type Generator struct {
	cfg  Config
	tmpl *template.Template
	now  func() time.Time
}

// NewGenerator parses the report template.
func NewGenerator(cfg Config) (*Generator, error) {
	if cfg.Title == "" {
		cfg.Title = defaultTitle
	}
	if cfg.Chart.Width == 0 {
		cfg.Chart = DefaultChartConfig()
	}
	tmpl, err := template.New("report").Parse(ReportTemplate)
	if err != nil {
		return nil, fmt.Errorf("parsing template: %w", err)
	}
	return &Generator{cfg: cfg, tmpl: tmpl, now: time.Now}, nil
}

// Config returns the generator configuration.
func (g *Generator) Config() Config { return g.cfg }

// ════════════════════════════════════════════════════════════════════
// Report Data: flattened for template rendering
// ════════════════════════════════════════════════════════════════════

// Data is the template model.
type Data struct {
	Title       string
	Subtitle    string
	Author      string
	GeneratedAt string
	Source      string
	Summary     string

	Rows     int
	Quarters int
	From     string
	To       string

	Indicators []catalog.Indicator
	Periods    []PeriodRow

	CurrentChart    template.HTML
	Predictive      []PredictiveChart
	TimeSeriesChart template.HTML

	HorizonHeaders []int
	Regimes        []RegimeRow
	Series         []SeriesRow
}

// PeriodRow is one line of the period legend.
type PeriodRow struct {
	Label string
	Range string
	Color string
}

// PredictiveChart is one forward-horizon scatter.
type PredictiveChart struct {
	Months int
	Chart  template.HTML
}

// RegimeRow is a formatted analysis.RegimeStats.
type RegimeRow struct {
	Period          string
	Color           string
	All             bool
	Quarters        int
	MeanSpread      string
	MeanDelinquency string
	StdDelinquency  string
	Correlation     string
	Horizons        []HorizonCell
}

// HorizonCell holds the formatted statistics of one horizon.
type HorizonCell struct {
	Correlation string
	RSquared    string
}

// SeriesRow is a formatted load summary.
type SeriesRow struct {
	Name         string
	SeriesID     string
	Source       string
	Stored       bool
	Observations int
	Valid        int
	First        string
	Last         string
	FetchedAt    string
}

// Build flattens a snapshot into template data.
func (g *Generator) Build(snap *analysis.Snapshot) (*Data, error) {
	if snap == nil || snap.Table == nil {
		return nil, fmt.Errorf("snapshot is nil")
	}
	regimes, points, err := snap.Regimes()
	if err != nil {
		return nil, err
	}
	cols := analysis.ColumnsFor(snap.Pipeline)
	cat := snap.Catalog

	d := &Data{
		Title:       g.cfg.Title,
		Author:      g.cfg.Author,
		GeneratedAt: g.now().UTC().Format("02 Jan 2006, 15:04 MST"),
		Source:      catalog.Source,
		Rows:        snap.Table.Len(),
		Quarters:    len(points),
		Indicators:  cat.Indicators(),
	}
	if dates := snap.Table.Dates(); len(dates) > 0 {
		d.From = dates[0].String()
		d.To = dates[len(dates)-1].String()
	}

	spreadTitle := columnTitle(cat, snap.Pipeline.Config().Spread.Source, cols.Spread)
	delinqTitle := columnTitle(cat, cols.Current, cols.Current)
	d.Subtitle = fmt.Sprintf("%s vs %s", spreadTitle, delinqTitle)

	for _, iv := range cat.Periods().Intervals() {
		rng := "from " + iv.Start.String()
		if iv.End != nil {
			rng = iv.Start.String() + " to " + iv.End.String()
		}
		d.Periods = append(d.Periods, PeriodRow{Label: iv.Label, Range: rng, Color: cat.Color(iv.Label)})
	}

	groups := make([]ScatterGroup, 0, len(cat.Periods().Labels()))
	for _, label := range cat.Periods().Labels() {
		groups = append(groups, ScatterGroup{Name: label, Color: cat.Color(label)})
	}

	current := func(p analysis.QuarterPoint) series.Value { return p.Current }
	chart := g.cfg.Chart
	chart.XLabel = "Quarterly " + spreadTitle + " (%)"
	chart.YLabel = delinqTitle + " (%)"
	chart.Annotation = catalog.Source
	chart.Title = "Current Relationship"
	d.CurrentChart = template.HTML(relationshipChart(points, groups, current, chart))

	for j, h := range cols.Horizons {
		fwd := func(p analysis.QuarterPoint) series.Value {
			if j < len(p.Forward) {
				return p.Forward[j]
			}
			return series.Null()
		}
		c := chart
		c.Title = fmt.Sprintf("Predictive Relationship: %d Months Ahead", h)
		c.YLabel = fmt.Sprintf("%s, %d Months Later (%%)", delinqTitle, h)
		d.Predictive = append(d.Predictive, PredictiveChart{Months: h, Chart: template.HTML(relationshipChart(points, groups, fwd, c))})
		d.HorizonHeaders = append(d.HorizonHeaders, h)
	}

	d.TimeSeriesChart = template.HTML(timeSeriesChart(points, spreadTitle, delinqTitle, chart))

	for _, r := range regimes {
		row := RegimeRow{
			Period:          r.Period,
			Color:           r.Color,
			All:             r.Period == analysis.AllPeriods,
			Quarters:        r.Quarters,
			MeanSpread:      formatValue(r.MeanSpread),
			MeanDelinquency: formatValue(r.MeanDelinquency),
			StdDelinquency:  formatValue(r.StdDelinquency),
			Correlation:     formatValue(r.Current.Correlation),
		}
		for _, h := range r.Horizons {
			row.Horizons = append(row.Horizons, HorizonCell{
				Correlation: formatValue(h.Correlation),
				RSquared:    formatValue(h.RSquared),
			})
		}
		d.Regimes = append(d.Regimes, row)
	}

	for _, s := range snap.Series {
		row := SeriesRow{
			Name:         s.Name,
			SeriesID:     s.SeriesID,
			Source:       s.Source,
			Stored:       s.Source == offline.Name,
			Observations: s.Observations,
			Valid:        s.Valid,
			First:        s.First,
			Last:         s.Last,
		}
		if !s.FetchedAt.IsZero() {
			row.FetchedAt = s.FetchedAt.UTC().Format("2006-01-02 15:04")
		}
		d.Series = append(d.Series, row)
	}

	d.Summary = summarize(d, regimes, cols.Horizons, spreadTitle, delinqTitle)
	return d, nil
}

// ════════════════════════════════════════════════════════════════════
// Generate Report
// ════════════════════════════════════════════════════════════════════

// HTML renders the multi-page HTML report.
func (g *Generator) HTML(snap *analysis.Snapshot) (string, error) {
	d, err := g.Build(snap)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := g.tmpl.Execute(&buf, d); err != nil {
		return "", fmt.Errorf("executing template: %w", err)
	}
	return buf.String(), nil
}

// Text renders a plain-text report (terminal / CLI friendly).
func (g *Generator) Text(snap *analysis.Snapshot) (string, error) {
	d, err := g.Build(snap)
	if err != nil {
		return "", err
	}
	return renderTextReport(d), nil
}

// Write renders the report in the configured format into OutputDir and
// returns the path written. PDF falls back to HTML when no engine is
// installed.
func (g *Generator) Write(ctx context.Context, snap *analysis.Snapshot) (string, error) {
	base := filepath.Join(g.cfg.OutputDir, "credit_cycle_report_"+g.now().UTC().Format("20060102"))

	switch g.cfg.Format {
	case FormatText:
		text, err := g.Text(snap)
		if err != nil {
			return "", err
		}
		return writeFile(base+".txt", text)
	case FormatPDF:
		html, err := g.HTML(snap)
		if err != nil {
			return "", err
		}
		pdf := DefaultPDFConfig()
		pdf.Engine = g.cfg.PDFEngine
		pdf.OutputPath = base + ".pdf"
		return GeneratePDF(ctx, html, pdf)
	default:
		html, err := g.HTML(snap)
		if err != nil {
			return "", err
		}
		return writeFile(base+".html", html)
	}
}

func writeFile(path, content string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("writing report: %w", err)
	}
	return path, nil
}

// ════════════════════════════════════════════════════════════════════
// Internal: charts and formatting
// ════════════════════════════════════════════════════════════════════

// relationshipChart plots spread against y(p) for every quarter where both
// are valid, with the OLS trend and correlation in the title.
func relationshipChart(points []analysis.QuarterPoint, groups []ScatterGroup, y func(analysis.QuarterPoint) series.Value, cfg ChartConfig) string {
	var sp []ScatterPoint
	xs := make([]series.Value, len(points))
	ys := make([]series.Value, len(points))
	for i, p := range points {
		xs[i], ys[i] = p.Spread, y(p)
		if xs[i].Valid && ys[i].Valid {
			sp = append(sp, ScatterPoint{X: xs[i].Float, Y: ys[i].Float, Group: p.Period})
		}
	}
	if r := stats.Reduce(stats.OpCorrelation, xs, ys); r.Valid {
		cfg.Title = fmt.Sprintf("%s (r = %.2f)", cfg.Title, r.Float)
	}
	var trend *stats.Trend
	if t, ok := stats.Fit(xs, ys); ok {
		trend = &t
	}
	return ScatterChart(sp, groups, trend, cfg)
}

func timeSeriesChart(points []analysis.QuarterPoint, spreadTitle, delinqTitle string, cfg ChartConfig) string {
	labels := make([]string, len(points))
	spread := make([]float64, len(points))
	delinq := make([]float64, len(points))
	for i, p := range points {
		labels[i] = p.Quarter
		spread[i] = p.Spread.OrNaN()
		delinq[i] = p.Current.OrNaN()
	}
	cfg.Title = "Spread and Delinquency by Quarter"
	cfg.XLabel = "Quarter"
	cfg.YLabel = "Percent"
	return LineChart([]LineChartSeries{
		{Name: spreadTitle, Values: spread, Color: "#2196f3"},
		{Name: delinqTitle, Values: delinq, Color: "#e91e63"},
	}, labels, cfg)
}

func columnTitle(cat *catalog.Catalog, name, fallback string) string {
	if ind, ok := cat.Lookup(name); ok && ind.Title != "" {
		return ind.Title
	}
	return fallback
}

func formatValue(v series.Value) string {
	if !v.Valid {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", v.Float)
}

func summarize(d *Data, regimes []analysis.RegimeStats, horizons []int, spreadTitle, delinqTitle string) string {
	if len(regimes) == 0 {
		return "No complete quarters are available for the selected range."
	}
	all := regimes[len(regimes)-1]
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d quarters from %s to %s. ", d.Quarters, d.From, d.To)
	fmt.Fprintf(&sb, "Correlation between the %s and the current %s is %s",
		strings.ToLower(spreadTitle), strings.ToLower(delinqTitle), formatValue(all.Current.Correlation))
	for i, h := range horizons {
		if i < len(all.Horizons) {
			fmt.Fprintf(&sb, "; %d months ahead %s", h, formatValue(all.Horizons[i].Correlation))
		}
	}
	sb.WriteString(".")
	return sb.String()
}

// ════════════════════════════════════════════════════════════════════
// Plain-text renderer
// ════════════════════════════════════════════════════════════════════

func renderTextReport(d *Data) string {
	var sb strings.Builder
	line := strings.Repeat("═", 72)
	thinLine := strings.Repeat("─", 72)

	sb.WriteString("\n" + line + "\n")
	fmt.Fprintf(&sb, "  %s\n", d.Title)
	fmt.Fprintf(&sb, "  %s\n", d.Subtitle)
	fmt.Fprintf(&sb, "  Generated: %s", d.GeneratedAt)
	if d.Author != "" {
		fmt.Fprintf(&sb, " | Author: %s", d.Author)
	}
	sb.WriteString("\n" + line + "\n\n")

	fmt.Fprintf(&sb, "  Rows: %d | Quarters: %d | %s to %s\n", d.Rows, d.Quarters, d.From, d.To)
	fmt.Fprintf(&sb, "  %s\n", d.Summary)
	sb.WriteString(thinLine + "\n")

	sb.WriteString("\n  ■ STATISTICS BY REGIME\n")
	fmt.Fprintf(&sb, "    %-20s %4s %8s %8s %8s %8s", "Period", "Qtrs", "Spread", "Delinq", "Std", "Corr")
	for _, h := range d.HorizonHeaders {
		fmt.Fprintf(&sb, " %8s", fmt.Sprintf("r%dm", h))
	}
	sb.WriteString("\n")
	for _, r := range d.Regimes {
		fmt.Fprintf(&sb, "    %-20s %4d %8s %8s %8s %8s", r.Period, r.Quarters, r.MeanSpread, r.MeanDelinquency, r.StdDelinquency, r.Correlation)
		for _, h := range r.Horizons {
			fmt.Fprintf(&sb, " %8s", h.Correlation)
		}
		sb.WriteString("\n")
	}
	sb.WriteString(thinLine + "\n")

	if len(d.Series) > 0 {
		sb.WriteString("\n  ■ SERIES\n")
		for _, s := range d.Series {
			fmt.Fprintf(&sb, "    %-30s %-14s %-6s %6d obs  %s to %s\n", s.Name, s.SeriesID, s.Source, s.Observations, s.First, s.Last)
		}
		sb.WriteString(thinLine + "\n")
	}

	sb.WriteString("\n" + line + "\n")
	fmt.Fprintf(&sb, "  %s\n", d.Source)
	sb.WriteString(line + "\n")
	return sb.String()
}
