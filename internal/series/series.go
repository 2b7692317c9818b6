package series

import (
	"fmt"
	"sort"
)

// Point is one observation of an indicator.
type Point struct {
	Date  Date
	Value Value
}

// Series is a sparse, date-sorted indicator series. Dates are unique.
type Series struct {
	Name   string
	Points []Point
}

// New builds a series from unordered points. When a date repeats the last
// point given for it wins.
func New(name string, points ...Point) Series {
	byDate := make(map[Date]int, len(points))
	out := make([]Point, 0, len(points))
	for _, p := range points {
		if i, ok := byDate[p.Date]; ok {
			out[i] = p
			continue
		}
		byDate[p.Date] = len(out)
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return Series{Name: name, Points: out}
}

// Observation is an undecoded provider row.
type Observation struct {
	Date  string
	Value string
}

// Parse decodes raw provider rows. A malformed date fails the whole series;
// a malformed or missing value becomes null.
func Parse(name string, rows []Observation) (Series, error) {
	points := make([]Point, 0, len(rows))
	for _, row := range rows {
		d, err := ParseDate(row.Date)
		if err != nil {
			return Series{}, fmt.Errorf("series %s: %w", name, err)
		}
		points = append(points, Point{Date: d, Value: ParseValue(row.Value)})
	}
	return New(name, points...), nil
}

// Len returns the number of observations.
func (s Series) Len() int { return len(s.Points) }

// Valid returns the number of non-null observations.
func (s Series) Valid() int {
	n := 0
	for _, p := range s.Points {
		if p.Value.Valid {
			n++
		}
	}
	return n
}

// Span returns the first and last observation dates.
func (s Series) Span() (first, last Date, ok bool) {
	if len(s.Points) == 0 {
		return Date{}, Date{}, false
	}
	return s.Points[0].Date, s.Points[len(s.Points)-1].Date, true
}

// Since returns the observations dated on or after start.
func (s Series) Since(start Date) Series {
	i := sort.Search(len(s.Points), func(i int) bool { return !s.Points[i].Date.Before(start) })
	return Series{Name: s.Name, Points: append([]Point(nil), s.Points[i:]...)}
}

// Until returns the observations dated on or before end.
func (s Series) Until(end Date) Series {
	i := sort.Search(len(s.Points), func(i int) bool { return s.Points[i].Date.After(end) })
	return Series{Name: s.Name, Points: append([]Point(nil), s.Points[:i]...)}
}

// Rename returns s under a new name, sharing its points.
func (s Series) Rename(name string) Series {
	return Series{Name: name, Points: s.Points}
}
