package report

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/seenimoa/fredcycle/internal/analysis"
	"github.com/seenimoa/fredcycle/internal/catalog"
	"github.com/seenimoa/fredcycle/internal/config"
	"github.com/seenimoa/fredcycle/internal/series"
	"github.com/seenimoa/fredcycle/internal/stats"
	"github.com/seenimoa/fredcycle/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Test Helpers
// ════════════════════════════════════════════════════════════════════

// sampleSnapshot covers 2019Q1-2020Q4 with a spread that rises one point a
// quarter and delinquency that follows it.
func sampleSnapshot(t *testing.T) *analysis.Snapshot {
	t.Helper()
	var gdp, loans, oas []series.Point
	for q := 0; q < 8; q++ {
		start := series.NewDate(2019, time.January, 1).AddQuarters(q)
		gdp = append(gdp, series.Point{Date: start, Value: series.Some(100 + float64(q))})
		loans = append(loans, series.Point{Date: start, Value: series.Some(1 + 0.1*float64(q))})
		oas = append(oas, series.Point{Date: start, Value: series.Some(3 + float64(q))})
	}
	raw := map[string]series.Series{
		"gdp":                    series.New("gdp", gdp...),
		"delinquency_rate_loans": series.New("delinquency_rate_loans", loans...),
		"option_adjusted_spread": series.New("option_adjusted_spread", oas...),
	}

	cat := catalog.Default()
	pipe, err := cat.Pipeline(config.PipelineConfig{})
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	table, err := pipe.Run(raw)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	return &analysis.Snapshot{
		Table:    table,
		Pipeline: pipe,
		Catalog:  cat,
		BuiltAt:  time.Now(),
		Series: []models.SeriesSummary{
			{Name: "gdp", SeriesID: "GDPC1", Source: "fred", Observations: 8, Valid: 8, First: "2019-01-01", Last: "2020-10-01", FetchedAt: time.Now()},
			{Name: "delinquency_rate_loans", SeriesID: "DRBLACBS", Source: "store", Observations: 8, Valid: 8},
		},
	}
}

func newTestGenerator(t *testing.T, cfg Config) *Generator {
	t.Helper()
	g, err := NewGenerator(cfg)
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	g.now = func() time.Time { return time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC) }
	return g
}

func parseHTML(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parsing HTML: %v", err)
	}
	return doc
}

// ════════════════════════════════════════════════════════════════════
// Chart Tests
// ════════════════════════════════════════════════════════════════════

func TestScatterChart(t *testing.T) {
	points := []ScatterPoint{
		{X: 1, Y: 2, Group: "A"},
		{X: 2, Y: 4, Group: "B"},
		{X: 3, Y: 6, Group: "unknown"},
	}
	groups := []ScatterGroup{{Name: "A", Color: "#111111"}, {Name: "B", Color: "#222222"}}
	trend := &stats.Trend{Intercept: 0, Slope: 2, RSquared: 1, N: 3}
	cfg := DefaultChartConfig()
	cfg.Title = "Spread <vs> delinquency"
	cfg.Annotation = catalog.Source

	svg := ScatterChart(points, groups, trend, cfg)
	if !strings.HasPrefix(svg, "<svg") || !strings.HasSuffix(svg, "</svg>") {
		t.Fatalf("not an SVG document: %.60s", svg)
	}
	if got := strings.Count(svg, `class="point"`); got != 3 {
		t.Errorf("points = %d, want 3", got)
	}
	if !strings.Contains(svg, `fill="#9e9e9e" fill-opacity="0.75" data-group="unknown"`) {
		t.Error("unlisted group should be drawn in grey")
	}
	if !strings.Contains(svg, `class="trend"`) {
		t.Error("missing trendline")
	}
	if !strings.Contains(svg, "Spread &lt;vs&gt; delinquency") {
		t.Error("title not escaped")
	}
	if !strings.Contains(svg, catalog.Source) {
		t.Error("missing source annotation")
	}
	if len(groups) != 2 {
		t.Error("groups slice modified")
	}
}

func TestScatterChartEmpty(t *testing.T) {
	svg := ScatterChart(nil, nil, nil, ChartConfig{})
	if !strings.Contains(svg, "No data points") {
		t.Errorf("empty chart = %q", svg)
	}
}

func TestLineChartBreaksOnNaN(t *testing.T) {
	svg := LineChart([]LineChartSeries{
		{Name: "spread", Values: []float64{1, 2, math.NaN(), 4, 5}},
	}, []string{"1Q19", "2Q19", "3Q19", "4Q19", "1Q20"}, ChartConfig{Title: "Lines"})

	if !strings.Contains(svg, "Lines") {
		t.Error("title lost when defaults were applied")
	}
	if got := strings.Count(svg, "M"); got < 2 {
		t.Errorf("path should restart after NaN, got %d move commands", got)
	}
	if !strings.Contains(svg, "1Q19") {
		t.Error("missing x labels")
	}
	if !strings.Contains(LineChart(nil, nil, ChartConfig{}), "No data points") {
		t.Error("empty line chart should render placeholder")
	}
}

func TestFloats(t *testing.T) {
	got := Floats([]series.Value{series.Some(1.5), series.Null()})
	if got[0] != 1.5 || !math.IsNaN(got[1]) {
		t.Errorf("Floats = %v", got)
	}
}

// ════════════════════════════════════════════════════════════════════
// Report Tests
// ════════════════════════════════════════════════════════════════════

func TestHTMLReportPages(t *testing.T) {
	g := newTestGenerator(t, Config{Title: "Cycle Review", Author: "Research"})
	snap := sampleSnapshot(t)
	html, err := g.HTML(snap)
	if err != nil {
		t.Fatalf("HTML: %v", err)
	}
	doc := parseHTML(t, html)

	if got := doc.Find("title").Text(); got != "Cycle Review" {
		t.Errorf("title = %q", got)
	}
	// overview, current, one per horizon, time series, regimes, series
	wantPages := 5 + len(snap.Pipeline.Config().Forward.Horizons)
	if got := doc.Find("div.page").Length(); got != wantPages {
		t.Errorf("pages = %d, want %d", got, wantPages)
	}
	if doc.Find("#current svg").Length() != 1 {
		t.Error("current relationship chart missing")
	}
	if got := doc.Find("#current .title").Text(); !strings.Contains(got, "r = 1.00") {
		t.Errorf("current chart title = %q, want correlation", got)
	}
	if doc.Find(".predictive svg").Length() == 0 {
		t.Error("no predictive charts")
	}
	if doc.Find("#timeseries path.line").Length() != 2 {
		t.Error("time series should draw spread and delinquency")
	}
	if got := doc.Find("#indicators tbody tr").Length(); got != len(catalog.DefaultIndicators()) {
		t.Errorf("indicator rows = %d", got)
	}
	if !strings.Contains(doc.Find(".footer").Text(), catalog.Source) {
		t.Error("footer missing source")
	}
	if !strings.Contains(doc.Find(".header").Text(), "Research") {
		t.Error("author missing")
	}
}

func TestHTMLRegimeTable(t *testing.T) {
	g := newTestGenerator(t, DefaultConfig())
	html, err := g.HTML(sampleSnapshot(t))
	if err != nil {
		t.Fatalf("HTML: %v", err)
	}
	doc := parseHTML(t, html)

	rows := doc.Find("#regimes tbody tr")
	if rows.Length() != 3 {
		t.Fatalf("regime rows = %d, want 3", rows.Length())
	}
	first := rows.First().Find("td")
	if got := strings.TrimSpace(first.Eq(0).Text()); got != "Post-Crisis" {
		t.Errorf("first regime = %q", got)
	}
	if got := strings.TrimSpace(first.Eq(1).Text()); got != "4" {
		t.Errorf("quarters = %q", got)
	}
	all := doc.Find("#regimes tr.all td")
	if got := strings.TrimSpace(all.Eq(0).Text()); got != analysis.AllPeriods {
		t.Errorf("summary row = %q", got)
	}
	if got := strings.TrimSpace(all.Eq(5).Text()); got != "1.00" {
		t.Errorf("current correlation = %q", got)
	}
	if doc.Find("#regimes td:contains(\"n/a\")").Length() == 0 {
		t.Error("long horizons with no pairs should render n/a")
	}

	if doc.Find("#series td.stale").Length() != 1 {
		t.Error("series served from the store should be flagged")
	}
}

func TestTextReport(t *testing.T) {
	g := newTestGenerator(t, Config{Title: "Cycle Review"})
	text, err := g.Text(sampleSnapshot(t))
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	for _, want := range []string{"Cycle Review", "STATISTICS BY REGIME", "Post-Crisis", analysis.AllPeriods, "GDPC1", catalog.Source} {
		if !strings.Contains(text, want) {
			t.Errorf("text report missing %q", want)
		}
	}
}

func TestBuildNilSnapshot(t *testing.T) {
	g := newTestGenerator(t, DefaultConfig())
	if _, err := g.Build(nil); err == nil {
		t.Error("expected error for nil snapshot")
	}
}

func TestWriteFormats(t *testing.T) {
	snap := sampleSnapshot(t)
	tests := []struct {
		format Format
		ext    string
	}{
		{FormatHTML, ".html"},
		{FormatText, ".txt"},
		// No engine writes the HTML next to the requested PDF.
		{FormatPDF, ".html"},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			dir := t.TempDir()
			g := newTestGenerator(t, Config{Format: tt.format, PDFEngine: EngineNone, OutputDir: dir})
			path, err := g.Write(context.Background(), snap)
			if err != nil {
				t.Fatalf("Write: %v", err)
			}
			if want := filepath.Join(dir, "credit_cycle_report_20260302"+tt.ext); path != want {
				t.Errorf("path = %s, want %s", path, want)
			}
			info, err := os.Stat(path)
			if err != nil || info.Size() == 0 {
				t.Errorf("report not written: %v", err)
			}
		})
	}
}

// ════════════════════════════════════════════════════════════════════
// Config Tests
// ════════════════════════════════════════════════════════════════════

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatHTML, false},
		{"HTML", FormatHTML, false},
		{"pdf", FormatPDF, false},
		{" text ", FormatText, false},
		{"docx", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestConfigFrom(t *testing.T) {
	cfg, err := ConfigFrom(config.ReportConfig{Format: "pdf", PDFEngine: "chromium", Author: "desk"})
	if err != nil {
		t.Fatalf("ConfigFrom: %v", err)
	}
	if cfg.Format != FormatPDF || cfg.PDFEngine != EngineChromium || cfg.Author != "desk" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Title != defaultTitle || cfg.OutputDir != "./reports" {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if _, err := ConfigFrom(config.ReportConfig{PDFEngine: "prince"}); err == nil {
		t.Error("expected error for unknown engine")
	}
}

// ════════════════════════════════════════════════════════════════════
// PDF Tests
// ════════════════════════════════════════════════════════════════════

func TestGeneratePDFRequiresOutput(t *testing.T) {
	if _, err := GeneratePDF(context.Background(), "<html></html>", PDFConfig{}); err == nil {
		t.Error("expected error without output path")
	}
}

func TestGeneratePDFFallback(t *testing.T) {
	out := filepath.Join(t.TempDir(), "nested", "report.pdf")
	cfg := DefaultPDFConfig()
	cfg.Engine = EngineNone
	cfg.OutputPath = out

	path, err := GeneratePDF(context.Background(), "<html><body>hi</body></html>", cfg)
	if err != nil {
		t.Fatalf("GeneratePDF: %v", err)
	}
	if !strings.HasSuffix(path, "report.html") {
		t.Errorf("fallback path = %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil || !strings.Contains(string(data), "hi") {
		t.Errorf("fallback content: %q, %v", data, err)
	}
}

func TestParsePDFEngine(t *testing.T) {
	for in, want := range map[string]PDFEngine{"": EngineAuto, "auto": EngineAuto, "wkhtmltopdf": EngineWKHTML, "none": EngineNone} {
		got, err := ParsePDFEngine(in)
		if err != nil || got != want {
			t.Errorf("ParsePDFEngine(%q) = %q, %v", in, got, err)
		}
	}
}
