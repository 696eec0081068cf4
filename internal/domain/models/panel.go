package models

import (
	"fmt"
	"sort"
	"time"
)

// Frequency is the sampling grid of a series.
type Frequency string

const (
	FreqDaily  Frequency = "daily"
	FreqWeekly Frequency = "weekly"
)

// Step returns the grid spacing for the frequency.
func (f Frequency) Step() time.Duration {
	switch f {
	case FreqWeekly:
		return 7 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// Valid reports whether the frequency is a known value.
func (f Frequency) Valid() bool {
	return f == FreqDaily || f == FreqWeekly
}

// ParseFrequency parses a frequency string.
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(s)
	if !f.Valid() {
		return "", fmt.Errorf("unknown frequency %q", s)
	}
	return f, nil
}

// Point is one observation on a series grid.
type Point struct {
	TS    time.Time `json:"ts"`
	Value float64   `json:"value"`
}

// Series is an ordered, gap-free sequence of observations for one series_id.
type Series struct {
	ID     string  `json:"series_id"`
	Points []Point `json:"points"`
}

// Len returns the number of observations.
func (s Series) Len() int { return len(s.Points) }

// Values returns the observation values in timestamp order.
func (s Series) Values() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Value
	}
	return out
}

// Validate checks the series invariants for the given frequency:
// timestamps strictly increasing with no duplicates, spaced exactly one
// grid step apart. Gap filling happens upstream, not here.
func (s Series) Validate(freq Frequency) error {
	if s.ID == "" {
		return fmt.Errorf("series id is empty")
	}
	if len(s.Points) == 0 {
		return fmt.Errorf("series %s has no points", s.ID)
	}
	step := freq.Step()
	for i := 1; i < len(s.Points); i++ {
		prev, cur := s.Points[i-1].TS, s.Points[i].TS
		if !cur.After(prev) {
			return fmt.Errorf("series %s: timestamps not strictly increasing at index %d", s.ID, i)
		}
		if cur.Sub(prev) != step {
			return fmt.Errorf("series %s: grid gap at index %d (%s -> %s)", s.ID, i,
				prev.Format(time.RFC3339), cur.Format(time.RFC3339))
		}
	}
	return nil
}

// Panel groups series sharing one target semantic and one frequency.
// It is immutable after construction; accessors return copies.
type Panel struct {
	target string
	freq   Frequency
	series map[string]Series
	ids    []string
}

// NewPanel validates and builds an immutable panel.
func NewPanel(target string, freq Frequency, series []Series) (*Panel, error) {
	if target == "" {
		return nil, fmt.Errorf("panel target is empty")
	}
	if !freq.Valid() {
		return nil, fmt.Errorf("panel %s: invalid frequency %q", target, freq)
	}
	m := make(map[string]Series, len(series))
	ids := make([]string, 0, len(series))
	for _, s := range series {
		if err := s.Validate(freq); err != nil {
			return nil, fmt.Errorf("panel %s: %w", target, err)
		}
		if _, dup := m[s.ID]; dup {
			return nil, fmt.Errorf("panel %s: duplicate series %s", target, s.ID)
		}
		cp := Series{ID: s.ID, Points: append([]Point(nil), s.Points...)}
		m[s.ID] = cp
		ids = append(ids, s.ID)
	}
	sort.Strings(ids)
	return &Panel{target: target, freq: freq, series: m, ids: ids}, nil
}

// Target returns the target semantic (e.g. "bookings").
func (p *Panel) Target() string { return p.target }

// Frequency returns the sampling grid.
func (p *Panel) Frequency() Frequency { return p.freq }

// SeriesIDs returns the series ids in sorted order.
func (p *Panel) SeriesIDs() []string {
	return append([]string(nil), p.ids...)
}

// Series returns a copy of the named series.
func (p *Panel) Series(id string) (Series, bool) {
	s, ok := p.series[id]
	if !ok {
		return Series{}, false
	}
	return Series{ID: s.ID, Points: append([]Point(nil), s.Points...)}, true
}

// Len returns the number of series in the panel.
func (p *Panel) Len() int { return len(p.series) }
