package impute

import (
	"fmt"
	"math"

	"trafficsense/domain/calendar"
	"trafficsense/domain/core"
	"trafficsense/domain/series"
	"trafficsense/internal/logging"
	"trafficsense/internal/window"
)

// SmallGaps fills gaps of at most one hour using seasonal decomposition
// plus linear interpolation, and writes the result into s.ImputedData.
// Plain linear interpolation would be blind to the morning and afternoon
// rush hours and could itself manufacture outliers around gap edges, so
// the known daily seasonality is subtracted before interpolating and
// added back afterwards.
func SmallGaps(s *series.Series, meta series.PeriodMeta, split *window.Split, log *logging.Logger) error {
	if log == nil {
		log = logging.DefaultLogger
	}

	mask := smallGapMask(s.Data, meta.StepsPerHour)

	workProfile := dailySeasonality(split.Workdays, meta, log)
	weekendProfile := dailySeasonality(split.Weekends, meta, log)

	season, err := broadcastSeasonality(s, meta, workProfile, weekendProfile)
	if err != nil {
		return err
	}

	// Interpolate the deseasonalized series, then restore the seasonality.
	resid := make([]series.Sample, s.Len())
	for i, d := range s.Data {
		if d.Valid {
			resid[i] = series.New(d.Value - season[i])
		}
	}
	resid = interpolate(resid, false)

	s.ImputedData = make([]series.Sample, s.Len())
	for i := range resid {
		if !mask[i] || !resid[i].Valid {
			continue
		}
		v := resid[i].Value + season[i]
		if v < 0 {
			v = 0
		}
		s.ImputedData[i] = series.New(math.Round(v))
	}
	return nil
}

// dailySeasonality extracts one day's seasonal profile from the clean days
// of one day-type table. Fewer than two gapless days degrade to a zero
// profile, which reduces the small-gap fill to plain linear interpolation.
func dailySeasonality(m *series.TumbledMatrix, meta series.PeriodMeta, log *logging.Logger) []float64 {
	clean := m.CompleteRows()
	if len(clean) < 2 {
		log.Warn("not enough data for seasonal decomposition on %s: at least two gapless days are needed, using regular linear interpolation instead", m.Type)
		return make([]float64, meta.StepsPerDay)
	}

	flat := make([]float64, 0, len(clean)*meta.StepsPerDay)
	for _, i := range clean {
		flat = append(flat, m.Values(i)...)
	}
	return seasonalComponent(flat, meta.StepsPerDay)
}

// broadcastSeasonality lays the per-day-type profiles across the full
// grid, choosing the short, long or regular profile variant per calendar
// date so the profile stays column-aligned with its day.
func broadcastSeasonality(s *series.Series, meta series.PeriodMeta, workProfile, weekendProfile []float64) ([]float64, error) {
	season := make([]float64, s.Len())
	for _, g := range s.DayIndices() {
		base := workProfile
		if !calendar.IsWorkday(g.Date) {
			base = weekendProfile
		}
		profile := profileVariant(base, calendar.KindOf(g.Date), meta)
		if len(profile) != g.To-g.From {
			return nil, fmt.Errorf("%w: day %s has %d samples, profile has %d",
				core.ErrGridMismatch, g.Date.Format("2006-01-02"), g.To-g.From, len(profile))
		}
		copy(season[g.From:g.To], profile)
	}
	return season, nil
}

// profileVariant mirrors the windowing engine's DST handling: the short
// variant removes the transition hour's columns, the long variant inserts
// a zero-filled hour at the same offset.
func profileVariant(profile []float64, kind calendar.DayKind, meta series.PeriodMeta) []float64 {
	at := calendar.TransitionHourOffset * meta.StepsPerHour
	switch kind {
	case calendar.Short:
		out := make([]float64, 0, len(profile)-meta.StepsPerHour)
		out = append(out, profile[:at]...)
		out = append(out, profile[at+meta.StepsPerHour:]...)
		return out
	case calendar.Long:
		out := make([]float64, 0, len(profile)+meta.StepsPerHour)
		out = append(out, profile[:at]...)
		out = append(out, make([]float64, meta.StepsPerHour)...)
		out = append(out, profile[at:]...)
		return out
	default:
		return profile
	}
}
