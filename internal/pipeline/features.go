package pipeline

import (
	"fmt"

	"github.com/seenimoa/fredcycle/internal/period"
	"github.com/seenimoa/fredcycle/internal/series"
	"github.com/seenimoa/fredcycle/internal/stats"
)

// ForwardColumn names the forward metric column for base at a horizon in months.
func ForwardColumn(base string, months int) string {
	return fmt.Sprintf("%s_fwd_%dm", base, months)
}

// AddGrowth adds target = percent change of source versus the row dated
// exactly lagQuarters calendar quarters earlier. The result is null when the
// current value is null, when no row carries the lookback date, or when the
// lookback value is null or zero.
func (t *Table) AddGrowth(source, target string, lagQuarters int) error {
	const op = "growth"
	if lagQuarters <= 0 {
		return fmt.Errorf("%s: lag must be positive, got %d", op, lagQuarters)
	}
	vals, ok := t.numeric[source]
	if !ok {
		return &MissingColumnError{Column: source, Operation: op}
	}

	pos := make(map[series.Date]int, len(t.index))
	for i, d := range t.index {
		pos[d] = i
	}

	out := make([]series.Value, len(t.index))
	for i, d := range t.index {
		cur := vals[i]
		if !cur.Valid {
			continue
		}
		j, ok := pos[d.AddQuarters(-lagQuarters)]
		if !ok || j >= i {
			continue
		}
		prev := vals[j]
		if !prev.Valid || prev.Float == 0 {
			continue
		}
		out[i] = series.Some((cur.Float - prev.Float) / prev.Float * 100)
	}
	return t.SetColumn(target, out)
}

// AddQuarterlyAggregate partitions rows by calendar quarter, reduces source
// within each quarter with op and broadcasts the result to every row of the
// quarter, including rows where source is null. Quarters with no valid
// source value get null.
func (t *Table) AddQuarterlyAggregate(source, target string, op stats.Op) error {
	const name = "quarterly aggregate"
	if op.Paired() {
		return fmt.Errorf("%s: %s needs two columns", name, op)
	}
	vals, ok := t.numeric[source]
	if !ok {
		return &MissingColumnError{Column: source, Operation: name}
	}

	out := make([]series.Value, len(t.index))
	for _, run := range t.quarterRuns() {
		agg := stats.Reduce(op, vals[run.from:run.to], nil)
		for i := run.from; i < run.to; i++ {
			out[i] = agg
		}
	}
	return t.SetColumn(target, out)
}

// AddForward adds one column per horizon. For a row in quarter Q the value is
// the last valid base value dated inside quarter Q+h/3, the same for every
// row of Q. Quarters past the end of the table, or without a valid base
// value, yield null. Horizons must be positive multiples of 3 months.
func (t *Table) AddForward(base string, horizons []int) error {
	const op = "forward metric"
	if err := validateHorizons(horizons); err != nil {
		return err
	}
	vals, ok := t.numeric[base]
	if !ok {
		return &MissingColumnError{Column: base, Operation: op}
	}

	runs := t.quarterRuns()
	last := make(map[int]series.Value, len(runs))
	for _, run := range runs {
		last[run.quarter] = stats.Reduce(stats.OpLast, vals[run.from:run.to], nil)
	}

	for _, h := range horizons {
		steps := h / 3
		out := make([]series.Value, len(t.index))
		for _, run := range runs {
			v := last[run.quarter+steps]
			for i := run.from; i < run.to; i++ {
				out[i] = v
			}
		}
		if err := t.SetColumn(ForwardColumn(base, h), out); err != nil {
			return err
		}
	}
	return nil
}

func validateHorizons(horizons []int) error {
	seen := make(map[int]bool, len(horizons))
	for _, h := range horizons {
		if h <= 0 || h%3 != 0 {
			return fmt.Errorf("%w: %d months is not a positive multiple of 3", ErrInvalidHorizon, h)
		}
		if seen[h] {
			return fmt.Errorf("%w: %d months listed twice", ErrInvalidHorizon, h)
		}
		seen[h] = true
	}
	return nil
}

// FillForward replaces nulls in the named columns with the most recent valid
// value above them. Leading nulls stay null. Names that are not columns of
// the table are skipped; columns not named are never touched.
func (t *Table) FillForward(columns ...string) {
	for _, name := range columns {
		if col, ok := t.numeric[name]; ok {
			fillForward(col)
		}
	}
}

// FillForwardHorizons fills each forward column of base like FillForward,
// but only up to the last row whose quarter Q+h/3 is inside the table.
// Rows past that point keep their null so a tail quarter never borrows the
// forward value of an earlier quarter.
func (t *Table) FillForwardHorizons(base string, horizons []int) {
	runs := t.quarterRuns()
	if len(runs) == 0 {
		return
	}
	lastQuarter := runs[len(runs)-1].quarter
	for _, h := range horizons {
		col, ok := t.numeric[ForwardColumn(base, h)]
		if !ok {
			continue
		}
		end := 0
		for _, run := range runs {
			if run.quarter+h/3 > lastQuarter {
				break
			}
			end = run.to
		}
		fillForward(col[:end])
	}
}

func fillForward(col []series.Value) {
	carry := series.Null()
	for i, v := range col {
		if v.Valid {
			carry = v
			continue
		}
		col[i] = carry
	}
}

// AddPeriods labels every row with the classifier's period.
func (t *Table) AddPeriods(target string, c *period.Classifier) error {
	out := make([]string, len(t.index))
	for i, d := range t.index {
		out[i] = c.Classify(d)
	}
	return t.SetLabels(target, out)
}

// AddQuarterLabels labels every row with its "<q>Q<yy>" quarter.
func (t *Table) AddQuarterLabels(target string) error {
	out := make([]string, len(t.index))
	for i, d := range t.index {
		out[i] = d.QuarterLabel()
	}
	return t.SetLabels(target, out)
}
