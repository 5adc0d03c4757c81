package quality

import (
	"testing"
	"time"

	"trafficsense/domain/series"
	"trafficsense/internal/window"
)

func buildSeries(t *testing.T, days int, value func(day, hour int) series.Sample) (*series.Series, series.PeriodMeta, *window.Split) {
	t.Helper()
	zone, err := time.LoadLocation("Europe/Helsinki")
	if err != nil {
		t.Fatal(err)
	}
	meta, err := series.NewPeriodMeta(time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	monday := time.Date(2023, 6, 5, 0, 0, 0, 0, zone)
	var times []time.Time
	var data []series.Sample
	for d := 0; d < days; d++ {
		for h := 0; h < 24; h++ {
			times = append(times, monday.AddDate(0, 0, d).Add(time.Duration(h)*time.Hour))
			data = append(data, value(d, h))
		}
	}
	s, err := series.NewSeries(times, data)
	if err != nil {
		t.Fatal(err)
	}
	split, err := window.Tumble(times, data, meta)
	if err != nil {
		t.Fatal(err)
	}
	return s, meta, split
}

func TestMarkMissingData(t *testing.T) {
	// Day 1 has a short gap, day 2 a long one. The small-gap pass fills
	// only the short gap, so day 1 ends up with a small error flag and
	// day 2 with both.
	s, meta, preSplit := buildSeries(t, 7, func(d, h int) series.Sample {
		if d == 1 && h == 12 {
			return series.Null()
		}
		if d == 2 && h >= 10 && h < 14 {
			return series.Null()
		}
		return series.New(5)
	})

	// Post-imputation column: the one-hour gap is filled, the long gap
	// is not.
	imputed := make([]series.Sample, s.Len())
	copy(imputed, s.Data)
	imputed[1*24+12] = series.New(5)
	postSplit, err := window.Tumble(s.Times, imputed, meta)
	if err != nil {
		t.Fatal(err)
	}

	if err := MarkMissingData(s, meta, preSplit.Merged(), postSplit.Merged()); err != nil {
		t.Fatalf("MarkMissingData failed: %v", err)
	}

	if len(s.SensorError) != s.Len() || len(s.BigSensorError) != s.Len() {
		t.Fatal("flag columns not aligned with the grid")
	}

	wantSmall := map[int]int{0: 0, 1: 1, 2: 1, 3: 0}
	wantBig := map[int]int{0: 0, 1: 0, 2: 1, 3: 0}
	for day, want := range wantSmall {
		for h := 0; h < 24; h++ {
			if got := s.SensorError[day*24+h]; got != want {
				t.Errorf("day %d %02d:00 sensor error = %d, want %d", day, h, got, want)
			}
		}
	}
	for day, want := range wantBig {
		for h := 0; h < 24; h++ {
			if got := s.BigSensorError[day*24+h]; got != want {
				t.Errorf("day %d %02d:00 big sensor error = %d, want %d", day, h, got, want)
			}
		}
	}
}

func TestMarkMissingDataFlagsWholeDSTDays(t *testing.T) {
	// A week containing the 2023 fall-back Sunday: flag expansion must
	// put 25 flags on the long day to stay grid-aligned.
	zone, err := time.LoadLocation("Europe/Helsinki")
	if err != nil {
		t.Fatal(err)
	}
	meta, err := series.NewPeriodMeta(time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	start := time.Date(2023, 10, 23, 0, 0, 0, 0, zone)
	end := start.AddDate(0, 0, 7)
	var times []time.Time
	var data []series.Sample
	for ts := start; ts.Before(end); ts = ts.Add(time.Hour) {
		times = append(times, ts)
		data = append(data, series.New(5))
	}
	if len(times) != 7*24+1 {
		t.Fatalf("grid has %d hours, want 169", len(times))
	}

	s, err := series.NewSeries(times, data)
	if err != nil {
		t.Fatal(err)
	}
	split, err := window.Tumble(times, data, meta)
	if err != nil {
		t.Fatal(err)
	}

	if err := MarkMissingData(s, meta, split.Merged(), split.Merged()); err != nil {
		t.Fatalf("MarkMissingData failed: %v", err)
	}
	if len(s.SensorError) != s.Len() {
		t.Errorf("expanded %d flags for %d samples", len(s.SensorError), s.Len())
	}
	for i, f := range s.SensorError {
		if f != 0 {
			t.Errorf("clean sample %d flagged", i)
		}
	}
}

func TestMarkMissingDataRowCountMismatch(t *testing.T) {
	s, meta, split := buildSeries(t, 3, func(d, h int) series.Sample { return series.New(1) })

	pre := split.Merged()
	post := split.Merged()
	post.Dates = post.Dates[:2]
	post.Rows = post.Rows[:2]

	if err := MarkMissingData(s, meta, pre, post); err == nil {
		t.Fatal("expected a row count mismatch error")
	}
}
