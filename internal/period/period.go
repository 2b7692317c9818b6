// Package period labels dates with named economic regimes.
//
// Intervals are tested in their declared order and the first match wins.
// Start dates are inclusive and end dates exclusive, so back-to-back
// intervals that share a boundary date never overlap. An interval without
// an end date is open-ended. Dates matching no interval get the default label.
package period

import (
	"errors"
	"fmt"
	"strings"

	"github.com/seenimoa/fredcycle/internal/series"
)

// DefaultLabel is used when no interval matches and no default is configured.
const DefaultLabel = "Expansion"

// Interval is a named [Start, End) date range. A nil End means open-ended.
type Interval struct {
	Label string
	Start series.Date
	End   *series.Date
	Color string
}

// Contains reports whether d falls inside the interval.
func (iv Interval) Contains(d series.Date) bool {
	if d.Before(iv.Start) {
		return false
	}
	return iv.End == nil || d.Before(*iv.End)
}

func (iv Interval) String() string {
	end := "open"
	if iv.End != nil {
		end = iv.End.String()
	}
	return fmt.Sprintf("%s [%s, %s)", iv.Label, iv.Start, end)
}

// Classifier maps dates to period labels. It is immutable after construction.
type Classifier struct {
	intervals    []Interval
	defaultLabel string
}

// NewClassifier validates the interval table. An empty defaultLabel falls back to DefaultLabel.
func NewClassifier(intervals []Interval, defaultLabel string) (*Classifier, error) {
	if strings.TrimSpace(defaultLabel) == "" {
		defaultLabel = DefaultLabel
	}
	seen := make(map[string]bool, len(intervals))
	for i, iv := range intervals {
		if strings.TrimSpace(iv.Label) == "" {
			return nil, fmt.Errorf("period %d: label is required", i)
		}
		if seen[iv.Label] {
			return nil, fmt.Errorf("period %q: duplicate label", iv.Label)
		}
		seen[iv.Label] = true
		if iv.Start.IsZero() {
			return nil, fmt.Errorf("period %q: start date is required", iv.Label)
		}
		if iv.End != nil && !iv.End.After(iv.Start) {
			return nil, fmt.Errorf("period %q: end %s is not after start %s", iv.Label, iv.End, iv.Start)
		}
	}
	return &Classifier{
		intervals:    append([]Interval(nil), intervals...),
		defaultLabel: defaultLabel,
	}, nil
}

// ErrUnknownLabel is returned by Color for labels the classifier never produces.
var ErrUnknownLabel = errors.New("unknown period label")

// Classify returns the label of the first interval containing d, or the default label.
func (c *Classifier) Classify(d series.Date) string {
	for _, iv := range c.intervals {
		if iv.Contains(d) {
			return iv.Label
		}
	}
	return c.defaultLabel
}

// Default returns the catch-all label.
func (c *Classifier) Default() string { return c.defaultLabel }

// Intervals returns a copy of the interval table in match order.
func (c *Classifier) Intervals() []Interval {
	return append([]Interval(nil), c.intervals...)
}

// Labels returns every label the classifier can produce: intervals in order, then the default.
func (c *Classifier) Labels() []string {
	labels := make([]string, 0, len(c.intervals)+1)
	hasDefault := false
	for _, iv := range c.intervals {
		labels = append(labels, iv.Label)
		if iv.Label == c.defaultLabel {
			hasDefault = true
		}
	}
	if !hasDefault {
		labels = append(labels, c.defaultLabel)
	}
	return labels
}

// Color returns the configured color for a label. The default label may have
// no interval and therefore no color; it returns "" with a nil error.
func (c *Classifier) Color(label string) (string, error) {
	for _, iv := range c.intervals {
		if iv.Label == label {
			return iv.Color, nil
		}
	}
	if label == c.defaultLabel {
		return "", nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownLabel, label)
}
