// Package series defines the uniform time-series data model shared by all
// pipeline stages: a fixed-frequency timestamp grid with explicitly
// optional sample values. Missingness is always represented by an invalid
// Sample, never by a zero value.
package series

import (
	"fmt"
	"time"

	"trafficsense/domain/core"
)

// Sample is one observation on the uniform grid. Valid distinguishes a
// true measured value (including zero) from a missing sample.
type Sample struct {
	Value float64
	Valid bool
}

// New returns a valid sample.
func New(v float64) Sample {
	return Sample{Value: v, Valid: true}
}

// Null returns a missing sample.
func Null() Sample {
	return Sample{}
}

// PeriodMeta carries the grid constants derived once per series from its
// step size.
type PeriodMeta struct {
	Step         time.Duration
	StepsPerHour int
	StepsPerDay  int
}

// NewPeriodMeta derives grid constants from a step size. The step must
// evenly divide one hour, which also makes StepsPerDay an integer multiple
// of StepsPerHour.
func NewPeriodMeta(step time.Duration) (PeriodMeta, error) {
	if step <= 0 || time.Hour%step != 0 {
		return PeriodMeta{}, fmt.Errorf("%w: got %s", core.ErrBadFrequency, step)
	}
	perHour := int(time.Hour / step)
	return PeriodMeta{
		Step:         step,
		StepsPerHour: perHour,
		StepsPerDay:  24 * perHour,
	}, nil
}

// Series is a uniform single-sensor time series with its enriched columns.
// Times are strictly increasing in the analysis zone with constant step,
// except across the two DST calendar boundaries. All column slices are
// either nil or exactly len(Times) long.
type Series struct {
	Times []time.Time
	Data  []Sample

	ImputedData    []Sample
	AnomalyScore   []Sample
	AnomalyLabel   []Sample
	SensorError    []int
	BigSensorError []int
}

// NewSeries builds a series over the given grid.
func NewSeries(times []time.Time, data []Sample) (*Series, error) {
	if len(times) != len(data) {
		return nil, fmt.Errorf("times and data length mismatch: %d vs %d", len(times), len(data))
	}
	return &Series{Times: times, Data: data}, nil
}

// Len returns the number of grid steps.
func (s *Series) Len() int {
	return len(s.Times)
}

// DayStart returns the midnight of the calendar day containing t, in t's zone.
func DayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// DayIndices groups the grid positions of s by calendar date, in
// chronological order. Samples of one calendar day are always contiguous
// on the grid.
func (s *Series) DayIndices() []DayGroup {
	var groups []DayGroup
	for i := 0; i < len(s.Times); {
		day := DayStart(s.Times[i])
		j := i
		for j < len(s.Times) && DayStart(s.Times[j]).Equal(day) {
			j++
		}
		groups = append(groups, DayGroup{Date: day, From: i, To: j})
		i = j
	}
	return groups
}

// DayGroup is one calendar day's contiguous index range [From, To) on the grid.
type DayGroup struct {
	Date time.Time
	From int
	To   int
}
