package upload

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trafficsense/domain/core"
	"trafficsense/domain/series"
	"trafficsense/internal/config"
	interrors "trafficsense/internal/errors"
)

type capturedBatch struct {
	mu      sync.Mutex
	batches []measurementBatch
}

func uploadServer(t *testing.T, captured *capturedBatch, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/measurement/measurements", r.URL.Path)
		require.Contains(t, r.Header.Get("Content-Type"), "measurementcollection")

		var batch measurementBatch
		require.NoError(t, json.NewDecoder(r.Body).Decode(&batch))
		captured.mu.Lock()
		captured.batches = append(captured.batches, batch)
		captured.mu.Unlock()
		w.WriteHeader(status)
	}))
}

func testSeries(t *testing.T, hours int) *series.Series {
	t.Helper()
	zone, err := time.LoadLocation("Europe/Helsinki")
	if err != nil {
		t.Fatal(err)
	}
	start := time.Date(2023, 6, 12, 0, 0, 0, 0, zone)

	var times []time.Time
	var data []series.Sample
	for i := 0; i < hours; i++ {
		times = append(times, start.Add(time.Duration(i)*time.Hour))
		data = append(data, series.New(float64(i)))
	}
	s, err := series.NewSeries(times, data)
	if err != nil {
		t.Fatal(err)
	}
	s.ImputedData = make([]series.Sample, hours)
	copy(s.ImputedData, s.Data)
	s.AnomalyScore = make([]series.Sample, hours)
	s.AnomalyLabel = make([]series.Sample, hours)
	s.SensorError = make([]int, hours)
	s.BigSensorError = make([]int, hours)
	return s
}

func testSensor() core.Sensor {
	return core.Sensor{Name: "crossing-1", SourceID: "100", TargetID: "200"}
}

func TestUploadAnomalyData(t *testing.T) {
	captured := &capturedBatch{}
	srv := uploadServer(t, captured, http.StatusCreated)
	defer srv.Close()

	s := testSeries(t, 3)
	s.AnomalyLabel[1] = series.New(1)
	s.AnomalyScore[1] = series.New(2.5)
	s.SensorError[2] = 1

	client := NewClient(
		config.AuthConfig{BaseURL: srv.URL, Username: "bob", Password: "pw", TenantID: "t1"},
		config.UploadConfig{AnomalyData: true, BatchSize: 100, MeasurementType: "c8y_VehiclesMeasurement"},
		nil)

	require.NoError(t, client.Upload(context.Background(), testSensor(), s))
	require.Len(t, captured.batches, 1)

	ms := captured.batches[0].Measurements
	require.Len(t, ms, 3)
	assert.Equal(t, "c8y_VehiclesMeasurement", ms[0].Type)
	assert.Equal(t, "200", ms[0].Source["id"])
	assert.Equal(t, 1.0, ms[1].Original["Anomaly Label"].Value)
	assert.Equal(t, 2.5, ms[1].Original["Anomaly Score"].Value)
	assert.Equal(t, 1.0, ms[2].Original["Sensor error or no observations"].Value)
	assert.Nil(t, ms[0].Imputed)

	// Times are uploaded in UTC.
	ts, err := time.Parse(time.RFC3339Nano, ms[0].Time)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, ts.Location())
}

func TestUploadImputationOnlyValidSamples(t *testing.T) {
	captured := &capturedBatch{}
	srv := uploadServer(t, captured, http.StatusCreated)
	defer srv.Close()

	s := testSeries(t, 4)
	s.ImputedData[2] = series.Null()

	client := NewClient(
		config.AuthConfig{BaseURL: srv.URL},
		config.UploadConfig{Imputation: true, BatchSize: 100, MeasurementType: "c8y_VehiclesMeasurement"},
		nil)

	require.NoError(t, client.Upload(context.Background(), testSensor(), s))
	require.Len(t, captured.batches, 1)

	ms := captured.batches[0].Measurements
	assert.Len(t, ms, 3)
	for _, m := range ms {
		assert.NotNil(t, m.Imputed)
		assert.Nil(t, m.Original)
	}
}

func TestUploadBatching(t *testing.T) {
	captured := &capturedBatch{}
	srv := uploadServer(t, captured, http.StatusCreated)
	defer srv.Close()

	client := NewClient(
		config.AuthConfig{BaseURL: srv.URL},
		config.UploadConfig{AnomalyData: true, BatchSize: 10, MeasurementType: "m"},
		nil)

	require.NoError(t, client.Upload(context.Background(), testSensor(), testSeries(t, 25)))
	require.Len(t, captured.batches, 3)
	assert.Len(t, captured.batches[0].Measurements, 10)
	assert.Len(t, captured.batches[1].Measurements, 10)
	assert.Len(t, captured.batches[2].Measurements, 5)
}

func TestUploadServerRejection(t *testing.T) {
	captured := &capturedBatch{}
	srv := uploadServer(t, captured, http.StatusForbidden)
	defer srv.Close()

	client := NewClient(
		config.AuthConfig{BaseURL: srv.URL},
		config.UploadConfig{AnomalyData: true, BatchSize: 10, MeasurementType: "m"},
		nil)

	err := client.Upload(context.Background(), testSensor(), testSeries(t, 2))
	require.Error(t, err)
	assert.Equal(t, interrors.CodeUploadError, interrors.GetCode(err))
}

func TestUploadNothingConfigured(t *testing.T) {
	// Neither output enabled: no measurements, no requests.
	client := NewClient(config.AuthConfig{BaseURL: "http://unreachable.invalid"},
		config.UploadConfig{BatchSize: 10}, nil)
	require.NoError(t, client.Upload(context.Background(), testSensor(), testSeries(t, 2)))
}

func TestUploadMissingRawSamplesAsZero(t *testing.T) {
	captured := &capturedBatch{}
	srv := uploadServer(t, captured, http.StatusCreated)
	defer srv.Close()

	s := testSeries(t, 2)
	s.Data[1] = series.Null()

	client := NewClient(
		config.AuthConfig{BaseURL: srv.URL},
		config.UploadConfig{AnomalyData: true, BatchSize: 10, MeasurementType: "m"},
		nil)

	require.NoError(t, client.Upload(context.Background(), testSensor(), s))
	ms := captured.batches[0].Measurements
	assert.Equal(t, 0.0, ms[1].Original["Amount"].Value)
}
