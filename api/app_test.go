package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trafficsense/adapters/postgres"
)

type fakeRunReader struct {
	runs    []postgres.RunRecord
	samples map[string][]postgres.SampleRecord
}

func (f *fakeRunReader) ListRuns(ctx context.Context) ([]postgres.RunRecord, error) {
	return f.runs, nil
}

func (f *fakeRunReader) GetRun(ctx context.Context, runID string) (*postgres.RunRecord, error) {
	for i := range f.runs {
		if f.runs[i].ID == runID {
			return &f.runs[i], nil
		}
	}
	return nil, fmt.Errorf("run %s not found", runID)
}

func (f *fakeRunReader) GetSeries(ctx context.Context, runID string) ([]postgres.SampleRecord, error) {
	return f.samples[runID], nil
}

func testApp() *App {
	now := time.Date(2023, 7, 1, 12, 0, 0, 0, time.UTC)
	reader := &fakeRunReader{
		runs: []postgres.RunRecord{{
			ID:         "run-1",
			SensorName: "crossing-1",
			SourceID:   "100",
			TargetID:   "200",
			StartTime:  now.AddDate(0, 0, -30),
			EndTime:    now,
			CreatedAt:  now,
		}},
		samples: map[string][]postgres.SampleRecord{
			"run-1": {
				{
					RunID:       "run-1",
					Time:        now,
					Data:        sql.NullFloat64{Float64: 5, Valid: true},
					ImputedData: sql.NullFloat64{Float64: 5, Valid: true},
				},
				{
					RunID:          "run-1",
					Time:           now.Add(time.Hour),
					ImputedData:    sql.NullFloat64{Float64: 6, Valid: true},
					SensorError:    1,
					BigSensorError: 1,
				},
			},
		},
	}
	return NewApp(Config{Port: "0"}, reader)
}

func get(t *testing.T, app *App, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	app.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	rec := get(t, testApp(), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestListRunsEndpoint(t *testing.T) {
	rec := get(t, testApp(), "/runs")
	require.Equal(t, http.StatusOK, rec.Code)

	var body runListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Runs, 1)
	assert.Equal(t, "run-1", body.Runs[0].ID)
	assert.Equal(t, "crossing-1", body.Runs[0].SensorName)
}

func TestGetRunEndpoint(t *testing.T) {
	rec := get(t, testApp(), "/runs/run-1")
	require.Equal(t, http.StatusOK, rec.Code)

	var body runView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "100", body.SourceID)

	rec = get(t, testApp(), "/runs/absent")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetSeriesEndpoint(t *testing.T) {
	rec := get(t, testApp(), "/runs/run-1/series")
	require.Equal(t, http.StatusOK, rec.Code)

	var body seriesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "run-1", body.RunID)
	require.Len(t, body.Samples, 2)

	// Nullable columns round-trip as JSON null, never as zero.
	require.NotNil(t, body.Samples[0].Data)
	assert.Equal(t, 5.0, *body.Samples[0].Data)
	assert.Nil(t, body.Samples[1].Data)
	assert.Equal(t, 1, body.Samples[1].SensorError)

	rec = get(t, testApp(), "/runs/absent/series")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetPlotEndpoint(t *testing.T) {
	rec := get(t, testApp(), "/runs/run-1/plot")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")

	page := rec.Body.String()
	assert.Contains(t, page, "crossing-1")
	assert.Contains(t, page, "plotly")
	assert.Contains(t, page, "Imputed values")
	// The second sample's raw value is missing and renders as null.
	assert.Contains(t, page, "null")

	rec = get(t, testApp(), "/runs/absent/plot")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
