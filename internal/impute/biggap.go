package impute

import (
	"math"
	"time"

	"trafficsense/domain/calendar"
	"trafficsense/domain/core"
	"trafficsense/domain/series"
)

// Weight of the weekly same-time-same-weekday profile in the blend; the
// daily same-time-of-day profile carries the remainder.
const weeklyWeight = 0.6

// BigGaps fills the gaps that survived the small-gap pass, including
// anomalous and low-quality periods, and rewrites s.ImputedData. The
// imputation basis excludes samples flagged anomalous or still carrying a
// big sensor error, so population averages are never contaminated by bad
// days; those samples keep their previously imputed values on the way out.
func BigGaps(s *series.Series, meta series.PeriodMeta) error {
	n := s.Len()

	// Working copy with anomalous and big-error samples treated as unknown.
	basis := make([]series.Sample, n)
	for i := 0; i < n; i++ {
		basis[i] = s.ImputedData[i]
		anomalous := s.AnomalyLabel != nil && s.AnomalyLabel[i].Valid && s.AnomalyLabel[i].Value == 1
		bigError := s.BigSensorError != nil && s.BigSensorError[i] == 1
		if anomalous || bigError {
			basis[i] = series.Null()
		}
	}

	weekly, err := weeklyProfile(s, basis)
	if err != nil {
		return err
	}
	daily := dailyProfile(s, basis)

	blended := make([]series.Sample, n)
	for i := 0; i < n; i++ {
		if weekly[i].Valid && daily[i].Valid {
			blended[i] = series.New(weeklyWeight*weekly[i].Value + (1-weeklyWeight)*daily[i].Value)
		}
	}

	// Anomalous days stay as observed or previously imputed, never
	// overwritten by the population-average blend; likewise big-error
	// samples that already carry a small-gap value.
	for i := 0; i < n; i++ {
		anomalous := s.AnomalyLabel != nil && s.AnomalyLabel[i].Valid && s.AnomalyLabel[i].Value == 1
		bigError := s.BigSensorError != nil && s.BigSensorError[i] == 1
		if anomalous {
			blended[i] = s.ImputedData[i]
		} else if bigError && s.ImputedData[i].Valid {
			blended[i] = s.ImputedData[i]
		}
	}

	for i := 0; i < n; i++ {
		if blended[i].Valid {
			s.ImputedData[i] = series.New(math.Ceil(blended[i].Value))
		} else {
			s.ImputedData[i] = series.Null()
		}
	}
	return nil
}

// timeOfDayKey identifies a grid slot within a day by wall clock.
type timeOfDayKey struct {
	hour, minute int
}

// weeklyProfile interpolates within each (time-of-day, weekday) group in
// both directions. A group with zero known values anywhere in the dataset
// cannot be imputed at all and fails with an error naming the weekday.
func weeklyProfile(s *series.Series, basis []series.Sample) ([]series.Sample, error) {
	type weeklyKey struct {
		tod     timeOfDayKey
		weekday int
	}

	groups := make(map[weeklyKey][]int)
	var order []weeklyKey
	for i, t := range s.Times {
		key := weeklyKey{
			tod:     timeOfDayKey{hour: t.Hour(), minute: t.Minute()},
			weekday: int(t.Weekday()),
		}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}

	out := make([]series.Sample, s.Len())
	for _, key := range order {
		idx := groups[key]
		vals := make([]series.Sample, len(idx))
		known := 0
		for k, i := range idx {
			vals[k] = basis[i]
			if basis[i].Valid {
				known++
			}
		}
		if known == 0 {
			return nil, core.NewWeekdayHistoryError(time.Weekday(key.weekday).String())
		}
		filled := interpolate(vals, true)
		for k, i := range idx {
			out[i] = filled[k]
		}
	}
	return out, nil
}

// dailyProfile interpolates within each time-of-day group, separately per
// day-type. Groups without any known value are left unknown; the weekly
// profile check already guards total absence of history.
func dailyProfile(s *series.Series, basis []series.Sample) []series.Sample {
	type dailyKey struct {
		tod     timeOfDayKey
		workday bool
	}

	groups := make(map[dailyKey][]int)
	for i, t := range s.Times {
		key := dailyKey{
			tod:     timeOfDayKey{hour: t.Hour(), minute: t.Minute()},
			workday: calendar.IsWorkday(t),
		}
		groups[key] = append(groups[key], i)
	}

	out := make([]series.Sample, s.Len())
	for _, idx := range groups {
		vals := make([]series.Sample, len(idx))
		for k, i := range idx {
			vals[k] = basis[i]
		}
		filled := interpolate(vals, true)
		for k, i := range idx {
			out[i] = filled[k]
		}
	}
	return out
}
