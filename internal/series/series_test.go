package series

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2008-09-15")
	require.NoError(t, err)
	assert.Equal(t, Date{Year: 2008, Month: time.September, Day: 15}, d)
	assert.Equal(t, "2008-09-15", d.String())

	_, err = ParseDate("15/09/2008")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedDate))

	var mde *MalformedDateError
	require.True(t, errors.As(err, &mde))
	assert.Equal(t, "15/09/2008", mde.Input)
}

func TestDateQuarters(t *testing.T) {
	tests := []struct {
		in      string
		quarter int
		label   string
	}{
		{"2001-01-01", 1, "1Q01"},
		{"2001-03-31", 1, "1Q01"},
		{"2001-04-01", 2, "2Q01"},
		{"2009-09-30", 3, "3Q09"},
		{"2020-12-31", 4, "4Q20"},
		{"1999-11-02", 4, "4Q99"},
	}
	for _, tt := range tests {
		d := MustParseDate(tt.in)
		assert.Equal(t, tt.quarter, d.Quarter(), tt.in)
		assert.Equal(t, tt.label, d.QuarterLabel(), tt.in)
	}

	assert.Equal(t, 1, MustParseDate("2021-01-01").QuarterIndex()-MustParseDate("2020-12-31").QuarterIndex())
}

func TestAddQuarters(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"2020-01-01", -4, "2019-01-01"},
		{"2020-05-31", -1, "2020-02-29"},
		{"2019-05-31", -1, "2019-02-28"},
		{"2020-11-30", 1, "2021-02-28"},
		{"2020-07-01", 2, "2021-01-01"},
		{"0001-02-01", -1, "0000-11-01"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MustParseDate(tt.in).AddQuarters(tt.n).String(), "%s %+d", tt.in, tt.n)
	}
}

func TestCompare(t *testing.T) {
	a, b := MustParseDate("2020-01-31"), MustParseDate("2020-02-01")
	assert.True(t, a.Before(b))
	assert.True(t, b.After(a))
	assert.Equal(t, 0, a.Compare(a))
	assert.True(t, Date{}.Before(a))
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, Some(4.25), ParseValue("4.25"))
	assert.Equal(t, Some(-0.5), ParseValue(" -0.5 "))
	assert.True(t, ParseValue(".").IsNull())
	assert.True(t, ParseValue("").IsNull())
	assert.True(t, ParseValue("n/a").IsNull())
	assert.True(t, Some(math.NaN()).IsNull())
	assert.True(t, math.IsNaN(Null().OrNaN()))
}

func TestValueJSON(t *testing.T) {
	b, err := json.Marshal([]Value{Some(1.5), Null()})
	require.NoError(t, err)
	assert.JSONEq(t, `[1.5, null]`, string(b))

	var back []Value
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, []Value{Some(1.5), Null()}, back)
}

func TestNewSortsAndDeduplicates(t *testing.T) {
	s := New("gdp",
		Point{Date: MustParseDate("2020-04-01"), Value: Some(2)},
		Point{Date: MustParseDate("2020-01-01"), Value: Some(1)},
		Point{Date: MustParseDate("2020-04-01"), Value: Some(3)},
	)
	require.Equal(t, 2, s.Len())
	assert.Equal(t, "2020-01-01", s.Points[0].Date.String())
	assert.Equal(t, "2020-04-01", s.Points[1].Date.String())
	assert.Equal(t, Some(3), s.Points[1].Value, "the last duplicate wins")
}

func TestParse(t *testing.T) {
	s, err := Parse("unemployment", []Observation{
		{Date: "2020-01-01", Value: "3.5"},
		{Date: "2020-02-01", Value: "."},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 1, s.Valid())

	_, err = Parse("unemployment", []Observation{{Date: "2020-13-01", Value: "1"}})
	assert.ErrorIs(t, err, ErrMalformedDate)
}

func TestSince(t *testing.T) {
	s := threeDays()
	got := s.Since(MustParseDate("2020-01-01"))
	first, last, ok := got.Span()
	require.True(t, ok)
	assert.Equal(t, "2020-01-01", first.String())
	assert.Equal(t, "2020-01-02", last.String())
}

func TestUntilAndRename(t *testing.T) {
	s := threeDays()
	got := s.Until(MustParseDate("2020-01-01")).Rename("y")
	assert.Equal(t, "y", got.Name)
	require.Equal(t, 2, got.Len())
	assert.Equal(t, "2020-01-01", got.Points[1].Date.String())
	assert.Equal(t, "x", s.Name)
	assert.Equal(t, 3, s.Len())
}

func threeDays() Series {
	return New("x",
		Point{Date: MustParseDate("2019-12-31"), Value: Some(1)},
		Point{Date: MustParseDate("2020-01-01"), Value: Some(2)},
		Point{Date: MustParseDate("2020-01-02"), Value: Some(3)},
	)
}
