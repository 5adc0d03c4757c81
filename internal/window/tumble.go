// Package window reshapes a uniform series into fixed-length daily rows
// (the "tumbled" representation), separated into workday and weekend
// tables. The two DST-transition Sundays are resolved here, and only here:
// every downstream matrix operation can assume identical row lengths.
package window

import (
	"fmt"
	"time"

	"trafficsense/domain/calendar"
	"trafficsense/domain/core"
	"trafficsense/domain/series"
)

// Split holds the per-day-type outputs of one tumbling pass.
type Split struct {
	Workdays *series.TumbledMatrix
	Weekends *series.TumbledMatrix
}

// Merged returns all day rows of both tables sorted by date.
func (sp *Split) Merged() *series.TumbledMatrix {
	merged := &series.TumbledMatrix{}
	wi, we := 0, 0
	for wi < sp.Workdays.Len() || we < sp.Weekends.Len() {
		takeWork := we >= sp.Weekends.Len() ||
			(wi < sp.Workdays.Len() && sp.Workdays.Dates[wi].Before(sp.Weekends.Dates[we]))
		if takeWork {
			merged.Dates = append(merged.Dates, sp.Workdays.Dates[wi])
			merged.Rows = append(merged.Rows, sp.Workdays.Rows[wi])
			wi++
		} else {
			merged.Dates = append(merged.Dates, sp.Weekends.Dates[we])
			merged.Rows = append(merged.Rows, sp.Weekends.Rows[we])
			we++
		}
	}
	return merged
}

// Tumble splits one value column into workday and weekend daily rows of
// exactly StepsPerDay columns. On the fall-back Sunday the two repeated
// hours are folded into one by pairwise summation at the 04:00 boundary;
// on the spring-forward Sunday one hour of zero placeholders is inserted
// at the 02:00 boundary. DST transitions always fall on a Sunday, so only
// the weekend table needs the correction.
func Tumble(times []time.Time, values []series.Sample, meta series.PeriodMeta) (*Split, error) {
	if len(times) != len(values) {
		return nil, fmt.Errorf("%w: %d times vs %d values", core.ErrRowMismatch, len(times), len(values))
	}

	var workFlat, weekendFlat []series.Sample
	var workDates, weekendDates []time.Time

	for i, t := range times {
		if calendar.IsWorkday(t) {
			workFlat = append(workFlat, values[i])
			if isDayStartIndex(times, i) {
				workDates = append(workDates, series.DayStart(t))
			}
			continue
		}

		if calendar.IsLastSundayOfOctober(t) && calendar.IsFourAM(t) {
			weekendFlat = foldRepeatedHour(weekendFlat, meta.StepsPerHour)
		} else if calendar.IsLastSundayOfMarch(t) && calendar.IsTwoAM(t) {
			for k := 0; k < meta.StepsPerHour; k++ {
				weekendFlat = append(weekendFlat, series.New(0))
			}
		}
		weekendFlat = append(weekendFlat, values[i])
		if isDayStartIndex(times, i) {
			weekendDates = append(weekendDates, series.DayStart(t))
		}
	}

	work, err := reshape(series.Workdays, workFlat, workDates, meta)
	if err != nil {
		return nil, err
	}
	weekend, err := reshape(series.Weekends, weekendFlat, weekendDates, meta)
	if err != nil {
		return nil, err
	}
	return &Split{Workdays: work, Weekends: weekend}, nil
}

// isDayStartIndex reports whether position i opens a new calendar day.
func isDayStartIndex(times []time.Time, i int) bool {
	if i == 0 {
		return true
	}
	return !series.DayStart(times[i]).Equal(series.DayStart(times[i-1]))
}

// foldRepeatedHour sums the last two hours of flat pairwise, collapsing
// the repeated fall-back hour. A pair with any missing sample stays missing.
func foldRepeatedHour(flat []series.Sample, stepsPerHour int) []series.Sample {
	n := len(flat)
	first := flat[n-2*stepsPerHour : n-stepsPerHour]
	second := flat[n-stepsPerHour : n]

	folded := make([]series.Sample, stepsPerHour)
	for k := 0; k < stepsPerHour; k++ {
		if first[k].Valid && second[k].Valid {
			folded[k] = series.New(first[k].Value + second[k].Value)
		}
	}
	return append(flat[:n-2*stepsPerHour], folded...)
}

func reshape(dayType series.DayType, flat []series.Sample, dates []time.Time, meta series.PeriodMeta) (*series.TumbledMatrix, error) {
	if len(flat)%meta.StepsPerDay != 0 {
		return nil, fmt.Errorf("%w: %s flat length %d not divisible by %d",
			core.ErrRowMismatch, dayType, len(flat), meta.StepsPerDay)
	}
	numDays := len(flat) / meta.StepsPerDay
	if numDays != len(dates) {
		return nil, fmt.Errorf("%w: %s has %d rows for %d dates",
			core.ErrRowMismatch, dayType, numDays, len(dates))
	}

	m := &series.TumbledMatrix{Type: dayType, Dates: dates}
	for d := 0; d < numDays; d++ {
		m.Rows = append(m.Rows, flat[d*meta.StepsPerDay:(d+1)*meta.StepsPerDay])
	}
	return m, nil
}

// ExpandByDay broadcasts one value per calendar day back onto the
// full-resolution axis, sizing each day through the shared day-length
// resolver so DST days stay aligned.
func ExpandByDay[T any](dates []time.Time, perDay []T, meta series.PeriodMeta) []T {
	var out []T
	for i, date := range dates {
		steps := calendar.KindOf(date).Steps(meta.StepsPerDay, meta.StepsPerHour)
		for k := 0; k < steps; k++ {
			out = append(out, perDay[i])
		}
	}
	return out
}
