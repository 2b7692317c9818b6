// Package series holds the calendar and value primitives shared by the
// fetcher, the pipeline and the report: a day-granularity Date used as the
// join key, a nullable Value, and a sparse date-indexed Series.
package series

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the ISO calendar layout FRED uses for observation dates.
const DateLayout = "2006-01-02"

// ErrMalformedDate is matched by every MalformedDateError.
var ErrMalformedDate = errors.New("malformed date")

// MalformedDateError is returned when an input date cannot be parsed.
type MalformedDateError struct {
	Input string
	Err   error
}

func (e *MalformedDateError) Error() string {
	return fmt.Sprintf("malformed date %q: %v", e.Input, e.Err)
}

func (e *MalformedDateError) Unwrap() error { return e.Err }

func (e *MalformedDateError) Is(target error) bool { return target == ErrMalformedDate }

// Date is a calendar day with no time-of-day or location.
// The zero Date is not a valid calendar day and sorts before every real date.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate returns the normalized date for y-m-d, so NewDate(2020, 2, 30) is 2020-03-01.
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateOf truncates t to its calendar day in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, &MalformedDateError{Input: s, Err: err}
	}
	return DateOf(t), nil
}

// MustParseDate is ParseDate for literals; it panics on bad input.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Time returns midnight UTC of the date.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d == Date{}
}

// Compare returns -1, 0 or +1 depending on whether d is before, equal to or after o.
func (d Date) Compare(o Date) int {
	switch {
	case d.Year != o.Year:
		return cmpInt(d.Year, o.Year)
	case d.Month != o.Month:
		return cmpInt(int(d.Month), int(o.Month))
	default:
		return cmpInt(d.Day, o.Day)
	}
}

func (d Date) Before(o Date) bool { return d.Compare(o) < 0 }
func (d Date) After(o Date) bool  { return d.Compare(o) > 0 }

// Quarter returns the calendar quarter, 1..4.
func (d Date) Quarter() int {
	return (int(d.Month)-1)/3 + 1
}

// QuarterIndex numbers quarters consecutively so that adjacent quarters
// differ by one across year boundaries.
func (d Date) QuarterIndex() int {
	return d.Year*4 + d.Quarter() - 1
}

// QuarterLabel formats the quarter as "<q>Q<yy>", e.g. "3Q08".
func (d Date) QuarterLabel() string {
	yy := d.Year % 100
	if yy < 0 {
		yy = -yy
	}
	return fmt.Sprintf("%dQ%02d", d.Quarter(), yy)
}

// AddQuarters moves the date by n calendar quarters keeping the day of month,
// clamped to the last day of the target month (2020-05-31 - 1Q = 2020-02-29).
func (d Date) AddQuarters(n int) Date {
	months := d.Year*12 + int(d.Month) - 1 + 3*n
	year, month := floorDiv(months, 12), time.Month(floorMod(months, 12)+1)
	day := d.Day
	if last := daysIn(year, month); day > last {
		day = last
	}
	return Date{Year: year, Month: month, Day: day}
}

// MarshalText implements encoding.TextMarshaler.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int) int {
	return a - floorDiv(a, b)*b
}
