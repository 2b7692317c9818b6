package series

import (
	"math"
	"strconv"
	"strings"
)

// Value is a float64 that may be null. NaN is never stored as a valid value.
type Value struct {
	Float float64
	Valid bool
}

// Some returns a valid value, or null when f is NaN or infinite.
func Some(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}
	}
	return Value{Float: f, Valid: true}
}

// Null returns the null value.
func Null() Value { return Value{} }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return !v.Valid }

// OrNaN returns the float or NaN for null, the representation the chart code uses.
func (v Value) OrNaN() float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float
}

// ParseValue converts a FRED observation value. FRED marks missing
// observations with "."; anything that does not parse as a number is null too.
func ParseValue(s string) Value {
	s = strings.TrimSpace(s)
	if s == "" || s == "." {
		return Null()
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Null()
	}
	return Some(f)
}

func (v Value) String() string {
	if !v.Valid {
		return "null"
	}
	return strconv.FormatFloat(v.Float, 'f', -1, 64)
}

// MarshalJSON writes null or a bare number.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Valid {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, v.Float, 'g', -1, 64), nil
}

// UnmarshalJSON accepts null or a number.
func (v *Value) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" {
		*v = Null()
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*v = Some(f)
	return nil
}
