package pipeline

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/fredcycle/internal/period"
	"github.com/seenimoa/fredcycle/internal/series"
	"github.com/seenimoa/fredcycle/internal/stats"
)

func d(s string) series.Date { return series.MustParseDate(s) }

func some(f float64) series.Value { return series.Some(f) }

var null = series.Null()

func build(name string, pairs ...any) series.Series {
	var points []series.Point
	for i := 0; i+1 < len(pairs); i += 2 {
		v := null
		if f, ok := pairs[i+1].(float64); ok {
			v = some(f)
		}
		points = append(points, series.Point{Date: d(pairs[i].(string)), Value: v})
	}
	return series.New(name, points...)
}

func column(t *testing.T, tbl *Table, name string) []series.Value {
	t.Helper()
	col, ok := tbl.Column(name)
	require.True(t, ok, "column %s", name)
	return col
}

func TestJoinIsOuterAndSorted(t *testing.T) {
	tbl := Join(map[string]series.Series{
		"gdp":       build("gdp", "2020-04-01", 2.0, "2020-01-01", 1.0),
		"fed_funds": build("fed_funds", "2020-01-01", 1.5, "2020-01-02", 1.55, "2020-04-02", 0.05),
	})

	dates := tbl.Dates()
	require.Len(t, dates, 4)
	for i := 1; i < len(dates); i++ {
		assert.True(t, dates[i-1].Before(dates[i]), "index must be strictly increasing")
	}
	assert.Equal(t, []string{"fed_funds", "gdp"}, tbl.Columns())
	assert.Equal(t, []series.Value{some(1), null, some(2), null}, column(t, tbl, "gdp"))
	assert.Equal(t, []series.Value{some(1.5), some(1.55), null, some(0.05)}, column(t, tbl, "fed_funds"))
}

func TestGrowthQuarterlyLookback(t *testing.T) {
	tbl := Join(map[string]series.Series{
		"gdp": build("gdp",
			"2019-01-01", 100.0, "2019-04-01", 102.0, "2019-07-01", 104.0,
			"2019-10-01", 106.0, "2020-01-01", 110.0, "2020-04-01", 91.8),
	})
	require.NoError(t, tbl.AddGrowth("gdp", "gdp_growth", 4))

	g := column(t, tbl, "gdp_growth")
	for i := 0; i < 4; i++ {
		assert.True(t, g[i].IsNull(), "row %d has no history", i)
	}
	require.True(t, g[4].Valid)
	assert.InDelta(t, 10.0, g[4].Float, 1e-12)
	require.True(t, g[5].Valid)
	assert.InDelta(t, -10.0, g[5].Float, 1e-12)
}

func TestGrowthIgnoresDailyRowsAndNulls(t *testing.T) {
	tbl := Join(map[string]series.Series{
		"gdp": build("gdp", "2019-01-01", nil, "2020-01-01", 110.0, "2020-04-01", 120.0, "2019-04-01", 0.0),
		"dff": build("dff", "2019-01-02", 2.4, "2020-01-02", 1.5),
	})
	require.NoError(t, tbl.AddGrowth("gdp", "gdp_growth", 4))

	g := column(t, tbl, "gdp_growth")
	for i, v := range g {
		assert.True(t, v.IsNull(), "row %s", tbl.Dates()[i])
	}
}

func TestGrowthDoesNotReadFuture(t *testing.T) {
	tbl := Join(map[string]series.Series{
		"gdp": build("gdp", "2020-01-01", 100.0, "2021-01-01", 200.0),
	})
	require.NoError(t, tbl.AddGrowth("gdp", "g", 4))
	g := column(t, tbl, "g")
	assert.True(t, g[0].IsNull())
	assert.InDelta(t, 100.0, g[1].Float, 1e-12)
}

func TestQuarterlyAggregateBroadcast(t *testing.T) {
	tbl := Join(map[string]series.Series{
		"oas": build("oas",
			"2020-01-02", 3.0, "2020-02-03", 5.0, "2020-03-31", nil,
			"2020-04-01", nil, "2020-05-01", nil,
			"2020-07-01", 6.0),
	})
	require.NoError(t, tbl.AddQuarterlyAggregate("oas", "quarterly_spread", stats.OpMean))

	q := column(t, tbl, "quarterly_spread")
	assert.Equal(t, []series.Value{some(4), some(4), some(4), null, null, some(6)}, q)
}

func TestQuarterlyAggregateRejectsPairedOp(t *testing.T) {
	tbl := Join(map[string]series.Series{"oas": build("oas", "2020-01-02", 3.0)})
	assert.Error(t, tbl.AddQuarterlyAggregate("oas", "x", stats.OpCorrelation))
}

func TestForwardMetric(t *testing.T) {
	tbl := Join(map[string]series.Series{
		"dq": build("dq",
			"2020-01-01", 1.0,
			"2020-04-01", 2.0,
			"2020-07-01", nil,
			"2020-10-01", 4.0,
			"2021-01-01", 5.0),
		"daily": build("daily",
			"2020-02-15", 0.0, "2020-05-15", 0.0, "2020-08-15", 0.0,
			"2020-11-15", 0.0, "2021-02-15", 0.0, "2021-03-31", 0.0),
	})
	require.NoError(t, tbl.AddForward("dq", []int{3, 6, 12}))

	f3 := column(t, tbl, ForwardColumn("dq", 3))
	f6 := column(t, tbl, ForwardColumn("dq", 6))
	f12 := column(t, tbl, ForwardColumn("dq", 12))

	// rows: 01-01 02-15 | 04-01 05-15 | 07-01 08-15 | 10-01 11-15 | 21-01-01 21-02-15 21-03-31
	assert.Equal(t, []series.Value{some(2), some(2), null, null, some(4), some(4), some(5), some(5), null, null, null}, f3)
	assert.Equal(t, []series.Value{null, null, some(4), some(4), some(5), some(5), null, null, null, null, null}, f6)
	assert.Equal(t, []series.Value{some(5), some(5), null, null, null, null, null, null, null, null, null}, f12)
}

func TestForwardMatchesHandComputation(t *testing.T) {
	raw := syntheticInputs()
	tbl := Join(raw)
	require.NoError(t, tbl.AddForward("delinquency_rate_loans", DefaultHorizons))

	src := raw["delinquency_rate_loans"]
	lastIn := func(q int) series.Value {
		v := null
		for _, p := range src.Points {
			if p.Date.QuarterIndex() == q && p.Value.Valid {
				v = p.Value
			}
		}
		return v
	}
	dates := tbl.Dates()
	for _, h := range DefaultHorizons {
		col := column(t, tbl, ForwardColumn("delinquency_rate_loans", h))
		for i, dt := range dates {
			assert.Equal(t, lastIn(dt.QuarterIndex()+h/3), col[i], "h=%d date=%s", h, dt)
		}
	}
}

func TestForwardRejectsBadHorizon(t *testing.T) {
	tbl := Join(map[string]series.Series{"dq": build("dq", "2020-01-01", 1.0)})
	err := tbl.AddForward("dq", []int{3, 4})
	assert.ErrorIs(t, err, ErrInvalidHorizon)
	assert.ErrorIs(t, tbl.AddForward("dq", []int{0}), ErrInvalidHorizon)
	assert.ErrorIs(t, tbl.AddForward("dq", []int{6, 6}), ErrInvalidHorizon)
}

func TestFillForward(t *testing.T) {
	tbl := Join(map[string]series.Series{
		"quarterly_spread": build("quarterly_spread", "2020-01-01", 4.0, "2020-04-01", nil, "2020-07-01", 6.0),
		"daily":            build("daily", "2019-12-31", nil, "2020-04-01", nil, "2020-07-02", nil),
	})

	tbl.FillForward("quarterly_spread", "not_a_column")

	assert.Equal(t,
		[]series.Value{null, some(4), some(4), some(6), some(6)},
		column(t, tbl, "quarterly_spread"))
	assert.Equal(t,
		[]series.Value{null, null, null, null, null},
		column(t, tbl, "daily"), "columns outside the fill set are untouched")

	once := tbl.Clone()
	tbl.FillForward("quarterly_spread")
	assert.Equal(t, column(t, once, "quarterly_spread"), column(t, tbl, "quarterly_spread"), "fill is idempotent")
}

func TestFillForwardHorizonsLeavesTailNull(t *testing.T) {
	tbl := Join(map[string]series.Series{
		"dq": build("dq",
			"2020-01-01", 1.0,
			"2020-04-01", nil,
			"2020-07-01", 3.0,
			"2020-10-01", 4.0),
	})
	require.NoError(t, tbl.AddForward("dq", []int{3, 6}))
	tbl.FillForwardHorizons("dq", []int{3, 6})

	// 1Q20 -> 2Q20 has no value and is filled from nothing; 2Q20 -> 3Q20 = 3;
	// 4Q20 has no next quarter and stays null.
	assert.Equal(t, []series.Value{null, some(3), some(4), null}, column(t, tbl, ForwardColumn("dq", 3)))
	// 1Q20 -> 3Q20 = 3, 2Q20 -> 4Q20 = 4; 3Q20 and 4Q20 run past the table.
	assert.Equal(t, []series.Value{some(3), some(4), null, null}, column(t, tbl, ForwardColumn("dq", 6)))
}

func TestFillForwardHorizonsFillsInsideRange(t *testing.T) {
	tbl := Join(map[string]series.Series{
		"dq": build("dq",
			"2020-01-01", 1.0,
			"2020-04-01", 2.0,
			"2020-07-01", nil,
			"2020-10-01", 4.0),
	})
	require.NoError(t, tbl.AddForward("dq", []int{3}))
	tbl.FillForwardHorizons("dq", []int{3, 9})

	// 2Q20 -> 3Q20 has no observation and takes 1Q20's forward value.
	assert.Equal(t, []series.Value{some(2), some(2), some(4), null}, column(t, tbl, ForwardColumn("dq", 3)))
}

func TestRunForwardTailIsNull(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Forward.Horizons = []int{3, 24}
	p, err := New(cfg)
	require.NoError(t, err)

	tbl, err := p.Run(map[string]series.Series{
		"gdp":                    build("gdp", "2020-01-01", 100.0, "2020-04-01", 101.0, "2020-07-01", 102.0),
		"option_adjusted_spread": build("option_adjusted_spread", "2020-01-02", 4.0, "2020-04-02", 5.0, "2020-07-02", 6.0),
		"delinquency_rate_loans": build("delinquency_rate_loans", "2020-01-01", 1.0, "2020-04-01", 2.0, "2020-07-01", 3.0),
	})
	require.NoError(t, err)

	// rows: 01-01 01-02 | 04-01 04-02 | 07-01 07-02
	assert.Equal(t,
		[]series.Value{some(2), some(2), some(3), some(3), null, null},
		column(t, tbl, "delinquency_rate_loans_fwd_3m"))
	assert.Equal(t,
		[]series.Value{null, null, null, null, null, null},
		column(t, tbl, "delinquency_rate_loans_fwd_24m"))
}

func TestTruncateKeepsDerivedValues(t *testing.T) {
	tbl := Join(map[string]series.Series{
		"gdp": build("gdp", "2019-01-01", 100.0, "2019-04-01", 101.0, "2020-01-01", 105.0, "2020-04-01", 106.0),
	})
	require.NoError(t, tbl.AddGrowth("gdp", "g", 4))
	require.NoError(t, tbl.AddQuarterLabels("quarter"))
	tbl.Truncate(d("2020-01-01"))

	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, d("2020-01-01"), tbl.Dates()[0])
	g := column(t, tbl, "g")
	assert.InDelta(t, 5.0, g[0].Float, 1e-12)
	labels, ok := tbl.Labels("quarter")
	require.True(t, ok)
	assert.Equal(t, []string{"1Q20", "2Q20"}, labels)
}

func TestSetColumnRejectsDuplicates(t *testing.T) {
	tbl := Join(map[string]series.Series{"gdp": build("gdp", "2020-01-01", 1.0)})
	err := tbl.SetColumn("gdp", []series.Value{null})
	assert.ErrorIs(t, err, ErrColumnExists)
	assert.Error(t, tbl.SetColumn("x", nil))
}

func syntheticInputs() map[string]series.Series {
	var gdp, oas, dq, cc, dff []series.Point
	start := d("2005-01-01")
	for q := 0; q < 24; q++ {
		qd := start.AddQuarters(q)
		gdp = append(gdp, series.Point{Date: qd, Value: some(100 + float64(q))})
		v := some(2 + float64(q%5)/2)
		if q%7 == 3 {
			v = null
		}
		dq = append(dq, series.Point{Date: qd, Value: v})
		cc = append(cc, series.Point{Date: qd, Value: some(4 + float64(q%3))})
		for m := 0; m < 3; m++ {
			day := series.NewDate(qd.Year, qd.Month+time.Month(m), 15)
			oas = append(oas, series.Point{Date: day, Value: some(3 + float64((q+m)%4))})
			dff = append(dff, series.Point{Date: day, Value: some(1 + float64(m))})
		}
	}
	return map[string]series.Series{
		"gdp":                           series.New("gdp", gdp...),
		"option_adjusted_spread":        series.New("option_adjusted_spread", oas...),
		"delinquency_rate_loans":        series.New("delinquency_rate_loans", dq...),
		"delinquency_rate_credit_cards": series.New("delinquency_rate_credit_cards", cc...),
		"fed_funds":                     series.New("fed_funds", dff...),
	}
}

func TestRunEndToEnd(t *testing.T) {
	classifier, err := period.NewClassifier([]period.Interval{
		{Label: "Great Recession", Start: d("2007-10-01"), End: ptr(d("2009-06-30"))},
		{Label: "Post-Crisis", Start: d("2009-06-30")},
	}, "")
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Periods = classifier
	start := d("2007-01-01")
	cfg.Start = &start

	p, err := New(cfg)
	require.NoError(t, err)

	full := cfg
	full.Start = nil
	pFull, err := New(full)
	require.NoError(t, err)

	raw := syntheticInputs()
	tbl, err := p.Run(raw)
	require.NoError(t, err)
	all, err := pFull.Run(raw)
	require.NoError(t, err)

	dates := tbl.Dates()
	require.NotEmpty(t, dates)
	assert.False(t, dates[0].Before(start))
	for i := 1; i < len(dates); i++ {
		require.True(t, dates[i-1].Before(dates[i]))
	}

	for _, name := range append([]string{"gdp_growth", "quarterly_spread"}, p.ForwardColumns()...) {
		assert.True(t, tbl.HasColumn(name), name)
	}
	assert.ElementsMatch(t, []string{"quarter", "period"}, tbl.LabelColumns())

	// Truncation does not change the values of the rows it keeps.
	offset := all.Len() - tbl.Len()
	for _, name := range tbl.Columns() {
		kept := column(t, tbl, name)
		whole := column(t, all, name)
		assert.Equal(t, whole[offset:], kept, name)
	}

	// The quarterly spread is constant within a quarter.
	spread := column(t, tbl, "quarterly_spread")
	byQuarter := make(map[int]series.Value)
	for i, dt := range dates {
		q := dt.QuarterIndex()
		if prev, ok := byQuarter[q]; ok {
			assert.Equal(t, prev, spread[i], dt.String())
		}
		byQuarter[q] = spread[i]
	}

	periods, _ := tbl.Labels("period")
	for i, dt := range dates {
		assert.Equal(t, classifier.Classify(dt), periods[i])
	}

	// Daily rate is never filled.
	dff := column(t, tbl, "fed_funds")
	nulls := 0
	for _, v := range dff {
		if v.IsNull() {
			nulls++
		}
	}
	assert.Positive(t, nulls)
}

func TestRunMissingColumn(t *testing.T) {
	p, err := New(DefaultConfig())
	require.NoError(t, err)

	raw := syntheticInputs()
	delete(raw, "option_adjusted_spread")

	tbl, err := p.Run(raw)
	assert.Nil(t, tbl)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingColumn))

	var mc *MissingColumnError
	require.True(t, errors.As(err, &mc))
	assert.Equal(t, "option_adjusted_spread", mc.Column)
}

func TestRunToleratesMissingFillColumns(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FillColumns = append(cfg.FillColumns, "not_fetched")
	p, err := New(cfg)
	require.NoError(t, err)

	raw := syntheticInputs()
	delete(raw, "delinquency_rate_credit_cards")
	_, err = p.Run(raw)
	assert.NoError(t, err)
}

func TestNewValidation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Forward.Horizons = []int{3, 5}
	_, err := New(cfg)
	assert.ErrorIs(t, err, ErrInvalidHorizon)

	cfg = DefaultConfig()
	cfg.Spread.Op = stats.OpCorrelationSquared
	_, err = New(cfg)
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.Growth.LagQuarters = 0
	_, err = New(cfg)
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.QuarterColumn = "period"
	_, err = New(cfg)
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.Forward.Horizons = nil
	p, err := New(cfg)
	require.NoError(t, err)
	assert.Len(t, p.ForwardColumns(), len(DefaultHorizons))
	assert.Contains(t, p.FillSet(), "quarterly_spread")
	assert.Contains(t, p.FillSet(), "delinquency_rate_loans_fwd_24m")
}

func TestNewRejectsNameCollisions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Spread.Target = "option_adjusted_spread"
	_, err := New(cfg)
	assert.ErrorIs(t, err, ErrColumnCollision)

	cfg = DefaultConfig()
	cfg.Growth.Target = "quarterly_spread"
	_, err = New(cfg)
	assert.ErrorIs(t, err, ErrColumnCollision)

	cfg = DefaultConfig()
	cfg.PeriodColumn = "gdp_growth"
	_, err = New(cfg)
	assert.ErrorIs(t, err, ErrColumnCollision)
}

func TestRunRejectsInputNamedLikeDerivedColumn(t *testing.T) {
	p, err := New(DefaultConfig())
	require.NoError(t, err)

	raw := syntheticInputs()
	raw["quarterly_spread"] = build("quarterly_spread", "2020-01-01", 1.0)

	tbl, err := p.Run(raw)
	assert.Nil(t, tbl)
	require.ErrorIs(t, err, ErrColumnCollision)
	assert.Contains(t, err.Error(), `input "quarterly_spread"`)

	assert.NoError(t, p.CheckInputs([]string{"gdp", "option_adjusted_spread"}))
	assert.ErrorIs(t, p.CheckInputs([]string{"period"}), ErrColumnCollision)
}

func ptr(v series.Date) *series.Date { return &v }
