// Package pipeline turns independently sampled indicator series into one
// aligned analysis table with growth, quarterly aggregate, forward-looking
// and period columns.
//
// Run order matters: derived columns are computed over the full history,
// sparse columns are forward-filled afterwards, and rows before the
// requested start date are dropped last so that look-back and look-ahead
// windows can see data outside the reported range.
package pipeline

import (
	"fmt"
	"sort"

	"github.com/seenimoa/fredcycle/internal/period"
	"github.com/seenimoa/fredcycle/internal/series"
	"github.com/seenimoa/fredcycle/internal/stats"
)

// DefaultHorizons are the forward horizons in months.
var DefaultHorizons = []int{3, 6, 9, 12, 18, 24}

// GrowthSpec configures the growth-rate column.
type GrowthSpec struct {
	Source      string
	Target      string
	LagQuarters int
}

// AggregateSpec configures the quarterly aggregate column.
type AggregateSpec struct {
	Source string
	Target string
	Op     stats.Op
}

// ForwardSpec configures the forward metric columns.
type ForwardSpec struct {
	Base     string
	Horizons []int
}

// Config describes one pipeline. Build it explicitly; nothing is read from
// package state.
type Config struct {
	// Start drops earlier rows after all features are computed. Nil keeps every row.
	Start *series.Date

	Growth  GrowthSpec
	Spread  AggregateSpec
	Forward ForwardSpec

	// FillColumns are sparse raw columns to forward-fill. The spread target
	// and every forward column are always filled as well.
	FillColumns []string

	PeriodColumn  string
	QuarterColumn string

	// Periods labels rows. Nil labels every row with period.DefaultLabel.
	Periods *period.Classifier
}

// DefaultConfig mirrors the credit-cycle analysis: GDP growth, the
// high-yield spread averaged per quarter and forward business-loan
// delinquency.
func DefaultConfig() Config {
	return Config{
		Growth: GrowthSpec{Source: "gdp", Target: "gdp_growth", LagQuarters: 4},
		Spread: AggregateSpec{Source: "option_adjusted_spread", Target: "quarterly_spread", Op: stats.OpMean},
		Forward: ForwardSpec{
			Base:     "delinquency_rate_loans",
			Horizons: append([]int(nil), DefaultHorizons...),
		},
		FillColumns:   []string{"delinquency_rate_credit_cards", "delinquency_rate_loans"},
		PeriodColumn:  "period",
		QuarterColumn: "quarter",
	}
}

// Pipeline is a validated Config. It holds no per-run state and may be reused.
type Pipeline struct {
	cfg Config
}

// New validates cfg.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Growth.Source == "" || cfg.Growth.Target == "" {
		return nil, fmt.Errorf("pipeline: growth source and target are required")
	}
	if cfg.Growth.LagQuarters <= 0 {
		return nil, fmt.Errorf("pipeline: growth lag must be positive, got %d", cfg.Growth.LagQuarters)
	}
	if cfg.Spread.Source == "" || cfg.Spread.Target == "" {
		return nil, fmt.Errorf("pipeline: spread source and target are required")
	}
	if cfg.Spread.Op == 0 {
		cfg.Spread.Op = stats.OpMean
	}
	if cfg.Spread.Op.Paired() {
		return nil, fmt.Errorf("pipeline: spread aggregate %s needs two columns", cfg.Spread.Op)
	}
	if cfg.Forward.Base == "" {
		return nil, fmt.Errorf("pipeline: forward base column is required")
	}
	if cfg.Forward.Horizons == nil {
		cfg.Forward.Horizons = append([]int(nil), DefaultHorizons...)
	}
	if err := validateHorizons(cfg.Forward.Horizons); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	if cfg.PeriodColumn == "" {
		cfg.PeriodColumn = "period"
	}
	if cfg.QuarterColumn == "" {
		cfg.QuarterColumn = "quarter"
	}
	if cfg.PeriodColumn == cfg.QuarterColumn {
		return nil, fmt.Errorf("pipeline: period and quarter columns share the name %q", cfg.PeriodColumn)
	}
	p := &Pipeline{cfg: cfg}
	if err := p.checkNames(); err != nil {
		return nil, err
	}
	if cfg.Periods == nil {
		c, err := period.NewClassifier(nil, "")
		if err != nil {
			return nil, err
		}
		p.cfg.Periods = c
	}
	return p, nil
}

// checkNames rejects derived columns that would collide with each other or
// with a column the pipeline reads.
func (p *Pipeline) checkNames() error {
	seen := make(map[string]string)
	for _, name := range p.Required() {
		seen[name] = "input"
	}
	for _, name := range append(p.Derived(), p.cfg.PeriodColumn, p.cfg.QuarterColumn) {
		if what, ok := seen[name]; ok {
			return fmt.Errorf("pipeline: %w: %q is both a derived column and an %s", ErrColumnCollision, name, what)
		}
		seen[name] = "earlier derived column"
	}
	return nil
}

// CheckInputs reports an input name that a derived column would overwrite.
func (p *Pipeline) CheckInputs(names []string) error {
	derived := make(map[string]bool)
	for _, name := range append(p.Derived(), p.cfg.PeriodColumn, p.cfg.QuarterColumn) {
		derived[name] = true
	}
	for _, name := range names {
		if derived[name] {
			return fmt.Errorf("pipeline: %w: input %q has the name of a derived column; rename the input or the target", ErrColumnCollision, name)
		}
	}
	return nil
}

// Config returns the validated configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// ForwardColumns lists the forward column names in horizon order.
func (p *Pipeline) ForwardColumns() []string {
	cols := make([]string, len(p.cfg.Forward.Horizons))
	for i, h := range p.cfg.Forward.Horizons {
		cols[i] = ForwardColumn(p.cfg.Forward.Base, h)
	}
	return cols
}

// FillSet is the full list of forward-filled columns. Forward columns are
// filled only for quarters whose horizon lies inside the table.
func (p *Pipeline) FillSet() []string {
	cols := append([]string(nil), p.cfg.FillColumns...)
	cols = append(cols, p.cfg.Spread.Target)
	return append(cols, p.ForwardColumns()...)
}

// Derived lists the numeric columns the pipeline adds.
func (p *Pipeline) Derived() []string {
	return append([]string{p.cfg.Growth.Target, p.cfg.Spread.Target}, p.ForwardColumns()...)
}

// Required lists the raw columns the pipeline reads.
func (p *Pipeline) Required() []string {
	return []string{p.cfg.Growth.Source, p.cfg.Spread.Source, p.cfg.Forward.Base}
}

// Run assembles the table. A required raw column missing from raw fails
// the run before anything is computed.
func (p *Pipeline) Run(raw map[string]series.Series) (*Table, error) {
	for _, name := range p.Required() {
		if _, ok := raw[name]; !ok {
			return nil, &MissingColumnError{Column: name, Operation: "pipeline"}
		}
	}
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)
	if err := p.CheckInputs(names); err != nil {
		return nil, err
	}

	t := Join(raw)
	if err := t.AddGrowth(p.cfg.Growth.Source, p.cfg.Growth.Target, p.cfg.Growth.LagQuarters); err != nil {
		return nil, err
	}
	if err := t.AddQuarterlyAggregate(p.cfg.Spread.Source, p.cfg.Spread.Target, p.cfg.Spread.Op); err != nil {
		return nil, err
	}
	if err := t.AddForward(p.cfg.Forward.Base, p.cfg.Forward.Horizons); err != nil {
		return nil, err
	}
	t.FillForward(append(append([]string(nil), p.cfg.FillColumns...), p.cfg.Spread.Target)...)
	t.FillForwardHorizons(p.cfg.Forward.Base, p.cfg.Forward.Horizons)
	if err := t.AddQuarterLabels(p.cfg.QuarterColumn); err != nil {
		return nil, err
	}
	if err := t.AddPeriods(p.cfg.PeriodColumn, p.cfg.Periods); err != nil {
		return nil, err
	}
	if p.cfg.Start != nil {
		t.Truncate(*p.cfg.Start)
	}
	return t, nil
}
