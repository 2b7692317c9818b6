// Package stats implements the aggregate operations used by the pipeline and
// the report as a closed set of typed operations.
package stats

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/seenimoa/fredcycle/internal/series"
)

// Op is an aggregate operation over one column, or a pair of columns for the
// correlation variants.
type Op int

const (
	OpMean Op = iota + 1
	OpStd
	OpLast
	OpCorrelation
	OpCorrelationSquared
)

var opNames = map[Op]string{
	OpMean:               "mean",
	OpStd:                "std",
	OpLast:               "last",
	OpCorrelation:        "corr",
	OpCorrelationSquared: "r2",
}

func (o Op) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// Paired reports whether the operation needs a second column.
func (o Op) Paired() bool {
	return o == OpCorrelation || o == OpCorrelationSquared
}

// ParseOp accepts the String form plus a few long aliases.
func ParseOp(s string) (Op, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mean", "avg", "average":
		return OpMean, nil
	case "std", "stddev":
		return OpStd, nil
	case "last":
		return OpLast, nil
	case "corr", "correlation":
		return OpCorrelation, nil
	case "r2", "rsquared", "correlation_squared":
		return OpCorrelationSquared, nil
	}
	return 0, fmt.Errorf("unknown aggregate op %q", s)
}

// Reduce applies op to xs (and ys for paired ops). Nulls are skipped; paired
// ops use only positions where both sides are valid. Results that are
// undefined (no data, one sample for std, zero variance) are null.
func Reduce(op Op, xs, ys []series.Value) series.Value {
	switch op {
	case OpMean:
		v := valid(xs)
		if len(v) == 0 {
			return series.Null()
		}
		return series.Some(stat.Mean(v, nil))
	case OpStd:
		v := valid(xs)
		if len(v) < 2 {
			return series.Null()
		}
		return series.Some(stat.StdDev(v, nil))
	case OpLast:
		for i := len(xs) - 1; i >= 0; i-- {
			if xs[i].Valid {
				return xs[i]
			}
		}
		return series.Null()
	case OpCorrelation, OpCorrelationSquared:
		x, y := Pairs(xs, ys)
		r := correlation(x, y)
		if math.IsNaN(r) {
			return series.Null()
		}
		if op == OpCorrelationSquared {
			r *= r
		}
		return series.Some(r)
	}
	return series.Null()
}

// Pairs returns the positions where both xs[i] and ys[i] are valid.
func Pairs(xs, ys []series.Value) ([]float64, []float64) {
	n := len(xs)
	if len(ys) < n {
		n = len(ys)
	}
	x := make([]float64, 0, n)
	y := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if xs[i].Valid && ys[i].Valid {
			x = append(x, xs[i].Float)
			y = append(y, ys[i].Float)
		}
	}
	return x, y
}

// Trend is an ordinary least squares fit y = Intercept + Slope*x.
type Trend struct {
	Intercept float64
	Slope     float64
	RSquared  float64
	N         int
}

// At evaluates the fitted line.
func (t Trend) At(x float64) float64 { return t.Intercept + t.Slope*x }

// Fit computes the OLS trend over paired valid values. It needs two samples
// and non-constant x.
func Fit(xs, ys []series.Value) (Trend, bool) {
	x, y := Pairs(xs, ys)
	if len(x) < 2 || stat.Variance(x, nil) == 0 {
		return Trend{}, false
	}
	alpha, beta := stat.LinearRegression(x, y, nil, false)
	r2 := stat.RSquared(x, y, nil, alpha, beta)
	return Trend{Intercept: alpha, Slope: beta, RSquared: r2, N: len(x)}, true
}

func correlation(x, y []float64) float64 {
	if len(x) < 2 {
		return math.NaN()
	}
	if stat.Variance(x, nil) == 0 || stat.Variance(y, nil) == 0 {
		return math.NaN()
	}
	return stat.Correlation(x, y, nil)
}

func valid(xs []series.Value) []float64 {
	out := make([]float64, 0, len(xs))
	for _, v := range xs {
		if v.Valid {
			out = append(out, v.Float)
		}
	}
	return out
}
