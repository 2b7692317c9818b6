package analysis

import (
	"fmt"
	"strings"

	"github.com/seenimoa/fredcycle/internal/pipeline"
	"github.com/seenimoa/fredcycle/internal/series"
	"github.com/seenimoa/fredcycle/internal/stats"
)

// QuarterPoint is one row of the quarterly view of the table: the quarter's
// spread against current and forward delinquency.
type QuarterPoint struct {
	Date    series.Date    `json:"date"` // first table date of the quarter
	Quarter string         `json:"quarter"`
	Period  string         `json:"period"`
	Spread  series.Value   `json:"spread"`
	Current series.Value   `json:"current"`
	Forward []series.Value `json:"forward"` // aligned with Columns.Forward
}

// Columns names the table columns the quarterly view reads.
type Columns struct {
	Quarter  string
	Period   string
	Spread   string
	Current  string
	Forward  []string
	Horizons []int
}

// ColumnsFor derives the view columns from a pipeline configuration.
func ColumnsFor(p *pipeline.Pipeline) Columns {
	cfg := p.Config()
	return Columns{
		Quarter:  cfg.QuarterColumn,
		Period:   cfg.PeriodColumn,
		Spread:   cfg.Spread.Target,
		Current:  cfg.Forward.Base,
		Forward:  p.ForwardColumns(),
		Horizons: append([]int(nil), cfg.Forward.Horizons...),
	}
}

// QuarterlyPoints selects the view columns and drops duplicate rows, keeping
// the first occurrence. Because every view column is constant within a
// quarter after filling, this leaves about one point per quarter.
func QuarterlyPoints(t *pipeline.Table, cols Columns) ([]QuarterPoint, error) {
	quarters, ok := t.Labels(cols.Quarter)
	if !ok {
		return nil, &pipeline.MissingColumnError{Column: cols.Quarter, Operation: "quarterly view"}
	}
	periods, ok := t.Labels(cols.Period)
	if !ok {
		return nil, &pipeline.MissingColumnError{Column: cols.Period, Operation: "quarterly view"}
	}
	spread, err := column(t, cols.Spread)
	if err != nil {
		return nil, err
	}
	current, err := column(t, cols.Current)
	if err != nil {
		return nil, err
	}
	forward := make([][]series.Value, len(cols.Forward))
	for i, name := range cols.Forward {
		if forward[i], err = column(t, name); err != nil {
			return nil, err
		}
	}

	dates := t.Dates()
	seen := make(map[string]struct{})
	var points []QuarterPoint
	for i := range dates {
		p := QuarterPoint{
			Date:    dates[i],
			Quarter: quarters[i],
			Period:  periods[i],
			Spread:  spread[i],
			Current: current[i],
			Forward: make([]series.Value, len(forward)),
		}
		for j := range forward {
			p.Forward[j] = forward[j][i]
		}
		key := p.key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		points = append(points, p)
	}
	return points, nil
}

func (p QuarterPoint) key() string {
	var sb strings.Builder
	sb.WriteString(p.Quarter + "|" + p.Period + "|" + p.Spread.String() + "|" + p.Current.String())
	for _, v := range p.Forward {
		sb.WriteString("|" + v.String())
	}
	return sb.String()
}

func column(t *pipeline.Table, name string) ([]series.Value, error) {
	col, ok := t.Column(name)
	if !ok {
		return nil, &pipeline.MissingColumnError{Column: name, Operation: "quarterly view"}
	}
	return col, nil
}

// HorizonStats relates the spread to delinquency h months ahead.
type HorizonStats struct {
	Months      int          `json:"months"`
	Correlation series.Value `json:"correlation"`
	RSquared    series.Value `json:"r_squared"`
}

// RegimeStats summarizes the quarterly points of one period.
type RegimeStats struct {
	Period          string         `json:"period"`
	Color           string         `json:"color,omitempty"`
	Quarters        int            `json:"quarters"`
	MeanSpread      series.Value   `json:"mean_spread"`
	MeanDelinquency series.Value   `json:"mean_delinquency"`
	StdDelinquency  series.Value   `json:"std_delinquency"`
	Current         HorizonStats   `json:"current"` // Months is 0
	Horizons        []HorizonStats `json:"horizons"`
}

// AllPeriods labels the summary row over every quarter.
const AllPeriods = "All periods"

// Regimes computes statistics per period label, in the given label order,
// followed by a row over all points. Labels with no points are skipped.
func Regimes(points []QuarterPoint, labels []string, horizons []int, color func(string) string) []RegimeStats {
	byPeriod := make(map[string][]QuarterPoint)
	for _, p := range points {
		byPeriod[p.Period] = append(byPeriod[p.Period], p)
	}

	var out []RegimeStats
	for _, label := range labels {
		ps := byPeriod[label]
		if len(ps) == 0 {
			continue
		}
		rs := regime(label, ps, horizons)
		if color != nil {
			rs.Color = color(label)
		}
		out = append(out, rs)
	}
	if len(points) > 0 {
		out = append(out, regime(AllPeriods, points, horizons))
	}
	return out
}

func regime(label string, ps []QuarterPoint, horizons []int) RegimeStats {
	spread := make([]series.Value, len(ps))
	current := make([]series.Value, len(ps))
	for i, p := range ps {
		spread[i] = p.Spread
		current[i] = p.Current
	}

	rs := RegimeStats{
		Period:          label,
		Quarters:        len(ps),
		MeanSpread:      stats.Reduce(stats.OpMean, spread, nil),
		MeanDelinquency: stats.Reduce(stats.OpMean, current, nil),
		StdDelinquency:  stats.Reduce(stats.OpStd, current, nil),
		Current: HorizonStats{
			Correlation: stats.Reduce(stats.OpCorrelation, spread, current),
			RSquared:    stats.Reduce(stats.OpCorrelationSquared, spread, current),
		},
	}
	for j, h := range horizons {
		fwd := make([]series.Value, len(ps))
		for i, p := range ps {
			if j < len(p.Forward) {
				fwd[i] = p.Forward[j]
			}
		}
		rs.Horizons = append(rs.Horizons, HorizonStats{
			Months:      h,
			Correlation: stats.Reduce(stats.OpCorrelation, spread, fwd),
			RSquared:    stats.Reduce(stats.OpCorrelationSquared, spread, fwd),
		})
	}
	return rs
}

// Regimes computes the regime table for the snapshot.
func (s *Snapshot) Regimes() ([]RegimeStats, []QuarterPoint, error) {
	cols := ColumnsFor(s.Pipeline)
	points, err := QuarterlyPoints(s.Table, cols)
	if err != nil {
		return nil, nil, fmt.Errorf("regime statistics: %w", err)
	}
	return Regimes(points, s.Catalog.Periods().Labels(), cols.Horizons, s.Catalog.Color), points, nil
}
