// Package upload transmits enriched series to the target measurement
// store in fixed-size batches.
package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"trafficsense/domain/core"
	"trafficsense/domain/series"
	"trafficsense/internal/config"
	"trafficsense/internal/errors"
	"trafficsense/internal/logging"
)

// Client posts measurement batches to the target platform. Uploads are
// synchronous per sensor; retry policy, if any, belongs to the caller's
// operators, not here.
type Client struct {
	auth       config.AuthConfig
	cfg        config.UploadConfig
	httpClient *http.Client
	log        *logging.Logger
}

// NewClient builds an uploader for the target tenant.
func NewClient(auth config.AuthConfig, cfg config.UploadConfig, log *logging.Logger) *Client {
	if log == nil {
		log = logging.DefaultLogger
	}
	return &Client{
		auth: auth,
		cfg:  cfg,
		log:  log,
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}
}

// valueFragment is one named value in a measurement payload.
type valueFragment struct {
	Unit  string  `json:"unit"`
	Value float64 `json:"value"`
}

// measurement is one uploaded data point.
type measurement struct {
	Type     string                   `json:"type"`
	Source   map[string]string        `json:"source"`
	Time     string                   `json:"time"`
	Original map[string]valueFragment `json:"c8y_Original,omitempty"`
	Imputed  map[string]valueFragment `json:"c8y_Imputed,omitempty"`
}

type measurementBatch struct {
	Measurements []measurement `json:"measurements"`
}

// Upload converts the enriched series back to UTC (the store standardizes
// on UTC) and posts it in batches of the configured size.
func (c *Client) Upload(ctx context.Context, sensor core.Sensor, s *series.Series) error {
	batch := c.buildMeasurements(sensor, s)
	if len(batch) == 0 {
		return nil
	}

	size := c.cfg.BatchSize
	if size <= 0 {
		size = 10000
	}
	total := (len(batch) + size - 1) / size
	for i := 0; i < len(batch); i += size {
		end := i + size
		if end > len(batch) {
			end = len(batch)
		}
		c.log.Info("%s: starting export for batch %d/%d", sensor.Name, i/size+1, total)
		if err := c.postBatch(ctx, batch[i:end]); err != nil {
			return errors.UploadError(err)
		}
	}
	c.log.Info("%s: resources sent", sensor.Name)
	return nil
}

func (c *Client) buildMeasurements(sensor core.Sensor, s *series.Series) []measurement {
	var out []measurement
	for i, t := range s.Times {
		ts := t.UTC().Format(time.RFC3339Nano)
		source := map[string]string{"id": sensor.TargetID.String()}

		if c.cfg.AnomalyData {
			out = append(out, measurement{
				Type:   c.cfg.MeasurementType,
				Source: source,
				Time:   ts,
				Original: map[string]valueFragment{
					"Amount":        {Unit: "n", Value: roundedOrZero(s.Data[i])},
					"Anomaly Label": {Unit: "n", Value: valueOrZero(s.AnomalyLabel, i)},
					"Anomaly Score": {Unit: "n", Value: valueOrZero(s.AnomalyScore, i)},
					"Sensor error or no observations": {
						Unit: "n", Value: float64(flagAt(s.SensorError, i)),
					},
				},
			})
		}
		if c.cfg.Imputation && s.ImputedData != nil && s.ImputedData[i].Valid {
			out = append(out, measurement{
				Type:   c.cfg.MeasurementType,
				Source: source,
				Time:   ts,
				Imputed: map[string]valueFragment{
					"Amount": {Unit: "n", Value: math.Round(s.ImputedData[i].Value)},
				},
			})
		}
	}
	return out
}

func (c *Client) postBatch(ctx context.Context, batch []measurement) error {
	endpoint := strings.TrimRight(c.auth.BaseURL, "/") + "/measurement/measurements"

	body, err := json.Marshal(measurementBatch{Measurements: batch})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/vnd.com.nsn.cumulocity.measurementcollection+json")
	req.Header.Set("Accept", "application/json")
	user := c.auth.Username
	if c.auth.TenantID != "" {
		user = c.auth.TenantID + "/" + user
	}
	req.SetBasicAuth(user, c.auth.Password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("measurement upload returned %d: %s", resp.StatusCode, string(msg))
	}
	return nil
}

// roundedOrZero mirrors the original export behavior: missing raw samples
// upload as zero.
func roundedOrZero(s series.Sample) float64 {
	if !s.Valid {
		return 0
	}
	return math.Round(s.Value)
}

func valueOrZero(col []series.Sample, i int) float64 {
	if col == nil || !col[i].Valid {
		return 0
	}
	return col[i].Value
}

func flagAt(col []int, i int) int {
	if col == nil {
		return 0
	}
	return col[i]
}
