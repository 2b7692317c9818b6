package pipeline

import (
	"fmt"
	"sort"

	"github.com/seenimoa/fredcycle/internal/series"
)

// Table is the assembled, date-indexed analysis table: one row per date,
// numeric columns of nullable values and categorical label columns.
// The index is strictly increasing. A Table is not safe for concurrent mutation.
type Table struct {
	index      []series.Date
	numeric    map[string][]series.Value
	numOrder   []string
	labels     map[string][]string
	labelOrder []string
}

// Row is a materialized table row.
type Row struct {
	Date   series.Date             `json:"date"`
	Values map[string]series.Value `json:"values"`
	Labels map[string]string       `json:"labels"`
}

// Join outer-joins the input series on date. The result has one row per date
// present in any input; a series with no observation on a date is null there.
// Columns are ordered by name.
func Join(raw map[string]series.Series) *Table {
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	seen := make(map[series.Date]struct{})
	for _, s := range raw {
		for _, p := range s.Points {
			seen[p.Date] = struct{}{}
		}
	}
	index := make([]series.Date, 0, len(seen))
	for d := range seen {
		index = append(index, d)
	}
	sort.Slice(index, func(i, j int) bool { return index[i].Before(index[j]) })

	pos := make(map[series.Date]int, len(index))
	for i, d := range index {
		pos[d] = i
	}

	t := newTable(index)
	for _, name := range names {
		col := make([]series.Value, len(index))
		for _, p := range raw[name].Points {
			col[pos[p.Date]] = p.Value
		}
		t.numeric[name] = col
		t.numOrder = append(t.numOrder, name)
	}
	return t
}

func newTable(index []series.Date) *Table {
	return &Table{
		index:   index,
		numeric: make(map[string][]series.Value),
		labels:  make(map[string][]string),
	}
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.index) }

// Dates returns a copy of the index.
func (t *Table) Dates() []series.Date {
	return append([]series.Date(nil), t.index...)
}

// Columns returns numeric column names in insertion order.
func (t *Table) Columns() []string {
	return append([]string(nil), t.numOrder...)
}

// LabelColumns returns label column names in insertion order.
func (t *Table) LabelColumns() []string {
	return append([]string(nil), t.labelOrder...)
}

// HasColumn reports whether a numeric column exists.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.numeric[name]
	return ok
}

// Column returns a copy of a numeric column.
func (t *Table) Column(name string) ([]series.Value, bool) {
	col, ok := t.numeric[name]
	if !ok {
		return nil, false
	}
	return append([]series.Value(nil), col...), true
}

// Labels returns a copy of a label column.
func (t *Table) Labels(name string) ([]string, bool) {
	col, ok := t.labels[name]
	if !ok {
		return nil, false
	}
	return append([]string(nil), col...), true
}

// SetColumn adds a numeric column. The column must not already exist and
// must have one value per row.
func (t *Table) SetColumn(name string, values []series.Value) error {
	if err := t.checkNew(name, len(values)); err != nil {
		return err
	}
	t.numeric[name] = values
	t.numOrder = append(t.numOrder, name)
	return nil
}

// SetLabels adds a label column under the same rules as SetColumn.
func (t *Table) SetLabels(name string, values []string) error {
	if err := t.checkNew(name, len(values)); err != nil {
		return err
	}
	t.labels[name] = values
	t.labelOrder = append(t.labelOrder, name)
	return nil
}

func (t *Table) checkNew(name string, n int) error {
	if name == "" {
		return fmt.Errorf("column name is required")
	}
	_, num := t.numeric[name]
	_, lab := t.labels[name]
	if num || lab {
		return fmt.Errorf("%w: %q", ErrColumnExists, name)
	}
	if n != len(t.index) {
		return fmt.Errorf("column %q has %d values, table has %d rows", name, n, len(t.index))
	}
	return nil
}

// Row materializes row i.
func (t *Table) Row(i int) Row {
	r := Row{
		Date:   t.index[i],
		Values: make(map[string]series.Value, len(t.numOrder)),
		Labels: make(map[string]string, len(t.labelOrder)),
	}
	for _, name := range t.numOrder {
		r.Values[name] = t.numeric[name][i]
	}
	for _, name := range t.labelOrder {
		r.Labels[name] = t.labels[name][i]
	}
	return r
}

// Rows materializes every row.
func (t *Table) Rows() []Row {
	rows := make([]Row, t.Len())
	for i := range rows {
		rows[i] = t.Row(i)
	}
	return rows
}

// Truncate drops rows dated before start, in place.
func (t *Table) Truncate(start series.Date) {
	cut := sort.Search(len(t.index), func(i int) bool { return !t.index[i].Before(start) })
	if cut == 0 {
		return
	}
	t.index = append([]series.Date(nil), t.index[cut:]...)
	for name, col := range t.numeric {
		t.numeric[name] = append([]series.Value(nil), col[cut:]...)
	}
	for name, col := range t.labels {
		t.labels[name] = append([]string(nil), col[cut:]...)
	}
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	c := newTable(t.Dates())
	c.numOrder = t.Columns()
	c.labelOrder = t.LabelColumns()
	for name, col := range t.numeric {
		c.numeric[name] = append([]series.Value(nil), col...)
	}
	for name, col := range t.labels {
		c.labels[name] = append([]string(nil), col...)
	}
	return c
}

// quarterRun is a maximal block of consecutive rows in one calendar quarter.
// Because the index is sorted, every quarter forms exactly one run.
type quarterRun struct {
	quarter  int
	from, to int
}

func (t *Table) quarterRuns() []quarterRun {
	var runs []quarterRun
	for i, d := range t.index {
		q := d.QuarterIndex()
		if n := len(runs); n > 0 && runs[n-1].quarter == q {
			runs[n-1].to = i + 1
			continue
		}
		runs = append(runs, quarterRun{quarter: q, from: i, to: i + 1})
	}
	return runs
}
