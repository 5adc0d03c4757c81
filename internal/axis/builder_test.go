package axis

import (
	"errors"
	"testing"
	"time"

	"trafficsense/adapters/ingest"
	"trafficsense/domain/core"
	"trafficsense/internal/config"
)

func testDataConfig(t *testing.T, start, end time.Time) config.DataConfig {
	t.Helper()
	zone, err := time.LoadLocation("Europe/Helsinki")
	if err != nil {
		t.Fatal(err)
	}
	return config.DataConfig{
		StartDate: start.In(zone),
		EndDate:   end.In(zone),
		Type:      config.DataTypeEvent,
		Zone:      zone,
	}
}

func date(t *testing.T, y int, m time.Month, d int) time.Time {
	t.Helper()
	zone, err := time.LoadLocation("Europe/Helsinki")
	if err != nil {
		t.Fatal(err)
	}
	return time.Date(y, m, d, 0, 0, 0, 0, zone)
}

func TestBuildEventCounting(t *testing.T) {
	start := date(t, 2023, 6, 12)
	cfg := testDataConfig(t, start, start.AddDate(0, 0, 1))

	// Three events inside the 10:00 bucket, one in the 10:15 bucket.
	records := []ingest.Record{
		{Time: start.Add(10 * time.Hour)},
		{Time: start.Add(10*time.Hour + 5*time.Minute)},
		{Time: start.Add(10*time.Hour + 14*time.Minute)},
		{Time: start.Add(10*time.Hour + 20*time.Minute)},
	}

	s, meta, err := Build(records, cfg)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if meta.StepsPerDay != 96 {
		t.Fatalf("StepsPerDay = %d, want 96", meta.StepsPerDay)
	}
	if s.Len() != 96 {
		t.Fatalf("series length = %d, want 96", s.Len())
	}

	bucket10 := 10 * meta.StepsPerHour
	if !s.Data[bucket10].Valid || s.Data[bucket10].Value != 3 {
		t.Errorf("10:00 bucket = %+v, want 3 events", s.Data[bucket10])
	}
	if !s.Data[bucket10+1].Valid || s.Data[bucket10+1].Value != 1 {
		t.Errorf("10:15 bucket = %+v, want 1 event", s.Data[bucket10+1])
	}

	// A bucket without observations stays missing, not zero.
	if s.Data[bucket10+2].Valid {
		t.Errorf("10:30 bucket should be missing, got %+v", s.Data[bucket10+2])
	}
}

func TestBuildDeduplicatesTimestamps(t *testing.T) {
	start := date(t, 2023, 6, 12)
	cfg := testDataConfig(t, start, start.AddDate(0, 0, 1))

	at := start.Add(12 * time.Hour)
	records := []ingest.Record{
		{Time: at},
		{Time: at}, // exported twice, same observation
		{Time: at.Add(time.Minute)},
	}

	s, meta, err := Build(records, cfg)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	bucket := 12 * meta.StepsPerHour
	if s.Data[bucket].Value != 2 {
		t.Errorf("duplicate timestamp counted twice: got %v, want 2", s.Data[bucket].Value)
	}
}

func TestBuildMeasurementSums(t *testing.T) {
	start := date(t, 2023, 6, 12)
	cfg := testDataConfig(t, start, start.AddDate(0, 0, 1))
	cfg.Type = config.DataTypeMeasurement
	cfg.MeasurementStep = 30 * time.Minute

	records := []ingest.Record{
		{Time: start.Add(8 * time.Hour), Value: 12, HasValue: true},
		{Time: start.Add(8*time.Hour + 10*time.Minute), Value: 5, HasValue: true},
		{Time: start.Add(9 * time.Hour), Value: 7, HasValue: true},
	}

	s, meta, err := Build(records, cfg)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if meta.StepsPerHour != 2 {
		t.Fatalf("StepsPerHour = %d, want 2", meta.StepsPerHour)
	}
	if got := s.Data[16].Value; got != 17 {
		t.Errorf("08:00 bucket = %v, want 17", got)
	}
	if got := s.Data[18].Value; got != 7 {
		t.Errorf("09:00 bucket = %v, want 7", got)
	}
}

func TestBuildDropsRecordsOutsideRange(t *testing.T) {
	start := date(t, 2023, 6, 12)
	end := start.AddDate(0, 0, 1)
	cfg := testDataConfig(t, start, end)

	records := []ingest.Record{
		{Time: start.Add(-time.Minute)},
		{Time: end}, // end is exclusive
		{Time: start},
	}

	s, _, err := Build(records, cfg)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	total := 0.0
	for _, smp := range s.Data {
		if smp.Valid {
			total += smp.Value
		}
	}
	if total != 1 {
		t.Errorf("only the in-range record should count, got total %v", total)
	}
}

func TestBuildSpansDSTDays(t *testing.T) {
	// One week containing the 2023 spring-forward Sunday: the grid must
	// have one hour's worth of steps fewer than seven regular days.
	start := date(t, 2023, 3, 20)
	end := date(t, 2023, 3, 27)
	cfg := testDataConfig(t, start, end)

	records := []ingest.Record{{Time: start.Add(time.Hour)}}
	s, meta, err := Build(records, cfg)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	want := 7*meta.StepsPerDay - meta.StepsPerHour
	if s.Len() != want {
		t.Errorf("grid length = %d, want %d", s.Len(), want)
	}

	// Last grid timestamp is one step before the exclusive end.
	last := s.Times[s.Len()-1]
	if !last.Add(meta.Step).Equal(end) {
		t.Errorf("last timestamp %v does not close the range at %v", last, end)
	}
}

func TestBuildEmptyRecords(t *testing.T) {
	start := date(t, 2023, 6, 12)
	cfg := testDataConfig(t, start, start.AddDate(0, 0, 1))
	if _, _, err := Build(nil, cfg); !errors.Is(err, core.ErrEmptyFiles) {
		t.Errorf("got %v, want ErrEmptyFiles", err)
	}
}

func TestDefineNights(t *testing.T) {
	start := date(t, 2023, 6, 12)
	cfg := testDataConfig(t, start, start.AddDate(0, 0, 1))

	// One daytime event so the series is not empty.
	s, meta, err := Build([]ingest.Record{{Time: start.Add(12 * time.Hour)}}, cfg)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	DefineNights(s)

	// 03:00 is inside the night window and becomes a true zero.
	night := 3 * meta.StepsPerHour
	if !s.Data[night].Valid || s.Data[night].Value != 0 {
		t.Errorf("03:00 = %+v, want a true zero", s.Data[night])
	}
	// 23:15 is late night as well.
	late := 23*meta.StepsPerHour + 1
	if !s.Data[late].Valid || s.Data[late].Value != 0 {
		t.Errorf("23:15 = %+v, want a true zero", s.Data[late])
	}
	// 23:00 exactly and daytime hours stay missing.
	if s.Data[23*meta.StepsPerHour].Valid {
		t.Errorf("23:00 must stay missing")
	}
	if s.Data[10*meta.StepsPerHour].Valid {
		t.Errorf("daytime gap must stay missing")
	}
}
