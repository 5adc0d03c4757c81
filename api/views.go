package api

import (
	"database/sql"
	"time"

	"trafficsense/adapters/postgres"
	"trafficsense/domain/series"
)

type runView struct {
	ID         string    `json:"id"`
	SensorName string    `json:"sensor_name"`
	SourceID   string    `json:"source_id"`
	TargetID   string    `json:"target_id"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	CreatedAt  time.Time `json:"created_at"`
}

type sampleView struct {
	Time           time.Time `json:"time"`
	Data           *float64  `json:"data"`
	ImputedData    *float64  `json:"imputed_data"`
	AnomalyScore   *float64  `json:"anomaly_score"`
	AnomalyLabel   *float64  `json:"anomaly_label"`
	SensorError    int       `json:"sensor_error"`
	BigSensorError int       `json:"big_sensor_error"`
}

type runListResponse struct {
	Runs []runView `json:"runs"`
}

type seriesResponse struct {
	RunID   string       `json:"run_id"`
	Samples []sampleView `json:"samples"`
}

func toRunView(r postgres.RunRecord) runView {
	return runView{
		ID:         r.ID,
		SensorName: r.SensorName,
		SourceID:   r.SourceID,
		TargetID:   r.TargetID,
		StartTime:  r.StartTime,
		EndTime:    r.EndTime,
		CreatedAt:  r.CreatedAt,
	}
}

func toRunViews(records []postgres.RunRecord) []runView {
	views := make([]runView, len(records))
	for i, r := range records {
		views[i] = toRunView(r)
	}
	return views
}

func toSampleViews(records []postgres.SampleRecord) []sampleView {
	views := make([]sampleView, len(records))
	for i, r := range records {
		views[i] = sampleView{
			Time:           r.Time,
			Data:           floatPtr(r.Data.Float64, r.Data.Valid),
			ImputedData:    floatPtr(r.ImputedData.Float64, r.ImputedData.Valid),
			AnomalyScore:   floatPtr(r.AnomalyScore.Float64, r.AnomalyScore.Valid),
			AnomalyLabel:   floatPtr(r.AnomalyLabel.Float64, r.AnomalyLabel.Valid),
			SensorError:    r.SensorError,
			BigSensorError: r.BigSensorError,
		}
	}
	return views
}

func floatPtr(v float64, ok bool) *float64 {
	if !ok {
		return nil
	}
	return &v
}

// toSeries rebuilds an enriched series from its persisted samples so the
// plot renderer can serve stored runs.
func toSeries(records []postgres.SampleRecord) *series.Series {
	s := &series.Series{
		Times:        make([]time.Time, len(records)),
		Data:         make([]series.Sample, len(records)),
		ImputedData:  make([]series.Sample, len(records)),
		AnomalyScore: make([]series.Sample, len(records)),
		AnomalyLabel: make([]series.Sample, len(records)),
	}
	for i, r := range records {
		s.Times[i] = r.Time
		s.Data[i] = toSample(r.Data)
		s.ImputedData[i] = toSample(r.ImputedData)
		s.AnomalyScore[i] = toSample(r.AnomalyScore)
		s.AnomalyLabel[i] = toSample(r.AnomalyLabel)
	}
	return s
}

func toSample(v sql.NullFloat64) series.Sample {
	if !v.Valid {
		return series.Null()
	}
	return series.New(v.Float64)
}
