// Package catalog holds the indicator and period tables the analysis runs on.
// Tables are built from configuration and passed explicitly; nothing here is
// package-level mutable state.
package catalog

import (
	"fmt"
	"strings"

	"github.com/seenimoa/fredcycle/internal/config"
	"github.com/seenimoa/fredcycle/internal/period"
	"github.com/seenimoa/fredcycle/internal/pipeline"
	"github.com/seenimoa/fredcycle/internal/series"
	"github.com/seenimoa/fredcycle/internal/stats"
)

// Source is the attribution printed under every chart.
const Source = "Source: Federal Reserve Economic Data (FRED)"

// Frequency values as reported by FRED.
const (
	Daily     = "daily"
	Monthly   = "monthly"
	Quarterly = "quarterly"
)

// Indicator maps a table column to a FRED series.
type Indicator struct {
	Name        string `json:"name"`
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Frequency   string `json:"frequency,omitempty"`
}

// DefaultIndicators returns the built-in indicator table in display order.
func DefaultIndicators() []Indicator {
	return []Indicator{
		{Name: "yield_spread", ID: "T10Y2Y", Title: "Treasury Yield Spread (10Y-2Y)", Frequency: Daily,
			Description: "Difference between 10-Year and 2-Year Treasury Constant Maturity Rates"},
		{Name: "gdp", ID: "GDPC1", Title: "Real GDP", Frequency: Quarterly,
			Description: "Real Gross Domestic Product"},
		{Name: "fed_funds", ID: "DFF", Title: "Federal Funds Rate", Frequency: Daily,
			Description: "Federal Funds Effective Rate"},
		{Name: "unemployment", ID: "UNRATE", Title: "Unemployment Rate", Frequency: Monthly,
			Description: "Civilian Unemployment Rate"},
		{Name: "option_adjusted_spread", ID: "BAMLH0A0HYM2", Title: "High Yield Bond Spread", Frequency: Daily,
			Description: "ICE BofA US High Yield Index Option-Adjusted Spread"},
		{Name: "delinquency_rate_credit_cards", ID: "DRCCLACBS", Title: "Credit Card Delinquency Rate", Frequency: Quarterly,
			Description: "Delinquency Rate on Credit Card Loans"},
		{Name: "delinquency_rate_loans", ID: "DRBLACBS", Title: "Business Loan Delinquency Rate", Frequency: Quarterly,
			Description: "Delinquency Rate on Business Loans"},
		{Name: "cpi", ID: "CPIAUCSL", Title: "Consumer Price Index", Frequency: Monthly,
			Description: "Measures average change in prices paid by consumers. Main inflation indicator."},
		{Name: "pce", ID: "PCEPI", Title: "PCE Price Index", Frequency: Monthly,
			Description: "Federal Reserve's preferred inflation measure. Tracks personal consumption costs."},
	}
}

// DefaultPeriods returns the built-in credit-cycle regimes.
func DefaultPeriods() []period.Interval {
	end := func(s string) *series.Date {
		d := series.MustParseDate(s)
		return &d
	}
	return []period.Interval{
		{Label: "Pre-GFC", Start: series.MustParseDate("1996-12-31"), End: end("2007-10-01"), Color: "#0081AF"},
		{Label: "Great Recession", Start: series.MustParseDate("2007-10-01"), End: end("2009-06-30"), Color: "#2D936C"},
		{Label: "Post-Crisis", Start: series.MustParseDate("2009-06-30"), End: end("2020-01-01"), Color: "#764B8E"},
		{Label: "Covid to Present", Start: series.MustParseDate("2020-01-01"), Color: "#9E2A2B"},
	}
}

// DefaultColor is used for the default period label when none is configured.
const DefaultColor = "#2E86C1"

// Catalog is the validated set of indicators plus the period classifier.
type Catalog struct {
	indicators   []Indicator
	byName       map[string]int
	periods      *period.Classifier
	defaultColor string
}

// New validates the indicator table. Names and FRED ids must be non-empty
// and names unique. A nil classifier means the built-in periods.
func New(indicators []Indicator, periods *period.Classifier, defaultColor string) (*Catalog, error) {
	if len(indicators) == 0 {
		return nil, fmt.Errorf("catalog: at least one indicator is required")
	}
	c := &Catalog{
		indicators:   make([]Indicator, 0, len(indicators)),
		byName:       make(map[string]int, len(indicators)),
		periods:      periods,
		defaultColor: defaultColor,
	}
	for i, ind := range indicators {
		ind.Name = strings.TrimSpace(ind.Name)
		ind.ID = strings.TrimSpace(ind.ID)
		if ind.Name == "" {
			return nil, fmt.Errorf("catalog: indicator %d: name is required", i)
		}
		if ind.ID == "" {
			return nil, fmt.Errorf("catalog: indicator %q: FRED series id is required", ind.Name)
		}
		if _, dup := c.byName[ind.Name]; dup {
			return nil, fmt.Errorf("catalog: indicator %q listed twice", ind.Name)
		}
		if ind.Title == "" {
			ind.Title = ind.Name
		}
		c.byName[ind.Name] = len(c.indicators)
		c.indicators = append(c.indicators, ind)
	}
	if c.periods == nil {
		p, err := period.NewClassifier(DefaultPeriods(), period.DefaultLabel)
		if err != nil {
			return nil, err
		}
		c.periods = p
	}
	if c.defaultColor == "" {
		c.defaultColor = DefaultColor
	}
	return c, nil
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := New(DefaultIndicators(), nil, "")
	if err != nil {
		panic(err)
	}
	return c
}

// FromConfig builds a catalog from the indicators, periods and pipeline
// sections. Empty tables fall back to the built-in ones.
func FromConfig(cfg *config.Config) (*Catalog, error) {
	indicators := DefaultIndicators()
	if len(cfg.Indicators) > 0 {
		indicators = make([]Indicator, len(cfg.Indicators))
		for i, ic := range cfg.Indicators {
			indicators[i] = Indicator{
				Name:        ic.Name,
				ID:          ic.ID,
				Title:       ic.Title,
				Description: ic.Description,
				Frequency:   strings.ToLower(ic.Frequency),
			}
		}
	}

	intervals := DefaultPeriods()
	if len(cfg.Periods) > 0 {
		var err error
		if intervals, err = parsePeriods(cfg.Periods); err != nil {
			return nil, err
		}
	}
	classifier, err := period.NewClassifier(intervals, cfg.Pipeline.DefaultPeriod)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	return New(indicators, classifier, cfg.Pipeline.DefaultColor)
}

func parsePeriods(pcs []config.PeriodConfig) ([]period.Interval, error) {
	out := make([]period.Interval, len(pcs))
	for i, pc := range pcs {
		start, err := series.ParseDate(pc.Start)
		if err != nil {
			return nil, fmt.Errorf("catalog: period %q start: %w", pc.Label, err)
		}
		iv := period.Interval{Label: pc.Label, Start: start, Color: pc.Color}
		if pc.End != "" {
			end, err := series.ParseDate(pc.End)
			if err != nil {
				return nil, fmt.Errorf("catalog: period %q end: %w", pc.Label, err)
			}
			iv.End = &end
		}
		out[i] = iv
	}
	return out, nil
}

// Indicators returns the indicator table in configured order.
func (c *Catalog) Indicators() []Indicator {
	return append([]Indicator(nil), c.indicators...)
}

// Names returns the indicator names in configured order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.indicators))
	for i, ind := range c.indicators {
		names[i] = ind.Name
	}
	return names
}

// Lookup finds an indicator by column name.
func (c *Catalog) Lookup(name string) (Indicator, bool) {
	i, ok := c.byName[name]
	if !ok {
		return Indicator{}, false
	}
	return c.indicators[i], true
}

// Periods returns the period classifier.
func (c *Catalog) Periods() *period.Classifier { return c.periods }

// Color returns the chart color for a period label. Labels without a
// configured color, including the default label, get the default color.
func (c *Catalog) Color(label string) string {
	if col, err := c.periods.Color(label); err == nil && col != "" {
		return col
	}
	return c.defaultColor
}

// Colors maps every period label to its chart color.
func (c *Catalog) Colors() map[string]string {
	labels := c.periods.Labels()
	out := make(map[string]string, len(labels))
	for _, l := range labels {
		out[l] = c.Color(l)
	}
	return out
}

// PipelineConfig translates the pipeline section into a pipeline.Config
// bound to this catalog's periods. Every raw column the pipeline reads must
// be a catalog indicator.
func (c *Catalog) PipelineConfig(pc config.PipelineConfig) (pipeline.Config, error) {
	def := pipeline.DefaultConfig()
	cfg := pipeline.Config{
		Growth: pipeline.GrowthSpec{
			Source:      orDefault(pc.GrowthSource, def.Growth.Source),
			Target:      orDefault(pc.GrowthColumn, def.Growth.Target),
			LagQuarters: pc.GrowthLagQuarters,
		},
		Spread: pipeline.AggregateSpec{
			Source: orDefault(pc.SpreadSource, def.Spread.Source),
			Target: orDefault(pc.SpreadColumn, def.Spread.Target),
			Op:     def.Spread.Op,
		},
		Forward: pipeline.ForwardSpec{
			Base:     orDefault(pc.ForwardBase, def.Forward.Base),
			Horizons: pc.Horizons,
		},
		FillColumns:   pc.FillColumns,
		PeriodColumn:  def.PeriodColumn,
		QuarterColumn: def.QuarterColumn,
		Periods:       c.periods,
	}
	if cfg.Growth.LagQuarters == 0 {
		cfg.Growth.LagQuarters = def.Growth.LagQuarters
	}
	if pc.FillColumns == nil {
		cfg.FillColumns = def.FillColumns
	}
	if pc.SpreadOp != "" {
		op, err := stats.ParseOp(pc.SpreadOp)
		if err != nil {
			return pipeline.Config{}, fmt.Errorf("pipeline.spread_op: %w", err)
		}
		cfg.Spread.Op = op
	}
	if pc.StartDate != "" {
		start, err := series.ParseDate(pc.StartDate)
		if err != nil {
			return pipeline.Config{}, fmt.Errorf("pipeline.start_date: %w", err)
		}
		cfg.Start = &start
	}
	for _, name := range []string{cfg.Growth.Source, cfg.Spread.Source, cfg.Forward.Base} {
		if _, ok := c.byName[name]; !ok {
			return pipeline.Config{}, fmt.Errorf("pipeline reads %q, which is not a catalog indicator", name)
		}
	}
	return cfg, nil
}

// Pipeline builds a validated pipeline from the pipeline section.
func (c *Catalog) Pipeline(pc config.PipelineConfig) (*pipeline.Pipeline, error) {
	cfg, err := c.PipelineConfig(pc)
	if err != nil {
		return nil, err
	}
	p, err := pipeline.New(cfg)
	if err != nil {
		return nil, err
	}
	if err := p.CheckInputs(c.Names()); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	return p, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
