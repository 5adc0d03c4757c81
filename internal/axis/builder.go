// Package axis converts raw sensor observations into the canonical uniform
// time series: deduplicated, converted to the analysis zone, resampled onto
// a fixed-frequency grid and clipped to the requested date range.
package axis

import (
	"time"

	"trafficsense/adapters/ingest"
	"trafficsense/domain/calendar"
	"trafficsense/domain/core"
	"trafficsense/domain/series"
	"trafficsense/internal/config"
)

// Build resamples records onto the uniform grid spanning exactly
// [StartDate, EndDate). Event records are counted per bucket, measurement
// records are summed. Zero-valued buckets become missing samples; the
// nighttime-zero rule later reconciles true night zeros.
func Build(records []ingest.Record, cfg config.DataConfig) (*series.Series, series.PeriodMeta, error) {
	if len(records) == 0 {
		return nil, series.PeriodMeta{}, core.ErrEmptyFiles
	}

	step := cfg.Step()
	meta, err := series.NewPeriodMeta(step)
	if err != nil {
		return nil, series.PeriodMeta{}, err
	}

	start := cfg.StartDate
	end := cfg.EndDate
	steps := int(end.Sub(start) / step)

	counts := make([]float64, steps)
	seen := make(map[int64]struct{}, len(records))

	for _, rec := range records {
		t := rec.Time.In(cfg.Zone)
		key := t.UnixNano()
		if _, dup := seen[key]; dup {
			// Distinct events at the same timestamp count once; for
			// measurements the first value per timestamp wins.
			continue
		}
		seen[key] = struct{}{}

		if t.Before(start) || !t.Before(end) {
			continue
		}
		bucket := int(t.Sub(start) / step)
		if cfg.Type == config.DataTypeMeasurement {
			counts[bucket] += rec.Value
		} else {
			counts[bucket]++
		}
	}

	times := make([]time.Time, steps)
	data := make([]series.Sample, steps)
	for i := 0; i < steps; i++ {
		times[i] = start.Add(time.Duration(i) * step).In(cfg.Zone)
		if counts[i] != 0 {
			data[i] = series.New(counts[i])
		}
		// A zero bucket means absence of observations, not a true zero.
	}

	s, err := series.NewSeries(times, data)
	if err != nil {
		return nil, series.PeriodMeta{}, err
	}
	return s, meta, nil
}

// DefineNights fills missing nighttime samples with true zeros: it is
// plausible that nightly periods see no vehicles at all, so an empty
// bucket before 06:00 or in the (23:00, 24:00) window is a real zero.
func DefineNights(s *series.Series) {
	for i, t := range s.Times {
		if !s.Data[i].Valid && calendar.IsNight(t) {
			s.Data[i] = series.New(0)
		}
	}
}
