// Package pipeline sequences the per-sensor analysis stages and fans the
// sensor list out across bounded parallel workers.
package pipeline

import (
	"context"
	"time"

	"trafficsense/adapters/ingest"
	"trafficsense/domain/core"
	"trafficsense/domain/series"
	"trafficsense/internal/anomaly"
	"trafficsense/internal/axis"
	"trafficsense/internal/config"
	"trafficsense/internal/errors"
	"trafficsense/internal/impute"
	"trafficsense/internal/logging"
	"trafficsense/internal/quality"
	"trafficsense/internal/window"
)

// Result is one sensor's finished pipeline output.
type Result struct {
	RunID      core.RunID
	Sensor     core.Sensor
	Series     *series.Series
	Meta       series.PeriodMeta
	StartedAt  time.Time
	FinishedAt time.Time
}

// Runner executes the full analysis pipeline for one sensor. Execution
// within a sensor is strictly sequential: each stage's output is the next
// stage's input.
type Runner struct {
	cfg      *config.Config
	reader   *ingest.Reader
	detector *anomaly.Detector
	log      *logging.Logger
}

// NewRunner wires the per-sensor pipeline.
func NewRunner(cfg *config.Config, reader *ingest.Reader, detector *anomaly.Detector, log *logging.Logger) *Runner {
	if log == nil {
		log = logging.DefaultLogger
	}
	return &Runner{cfg: cfg, reader: reader, detector: detector, log: log}
}

// Process runs one sensor end to end: axis building, night definition,
// windowing, small-gap imputation, re-windowing on the imputed series,
// missing-data classification, anomaly detection and (optionally) big-gap
// imputation.
func (r *Runner) Process(ctx context.Context, sensor core.Sensor) (*Result, error) {
	started := time.Now()

	r.log.Info("%s: loading data", sensor.Name)
	records, err := r.reader.ReadSensor(sensor.SourceID)
	if err != nil {
		return nil, errors.DataError(err)
	}

	s, meta, err := axis.Build(records, r.cfg.Data)
	if err != nil {
		return nil, errors.DataError(err)
	}

	r.log.Info("%s: defining nights", sensor.Name)
	axis.DefineNights(s)

	r.log.Info("%s: separating data to workdays and weekends", sensor.Name)
	split, err := window.Tumble(s.Times, s.Data, meta)
	if err != nil {
		return nil, err
	}
	preImputation := split.Merged()

	r.log.Info("%s: starting to impute small gaps", sensor.Name)
	if err := impute.SmallGaps(s, meta, split, r.log); err != nil {
		return nil, err
	}

	// Re-window on the imputed column so the matrices reflect the fixed
	// small gaps.
	imputedSplit, err := window.Tumble(s.Times, s.ImputedData, meta)
	if err != nil {
		return nil, err
	}

	r.log.Info("%s: marking missing data", sensor.Name)
	if err := quality.MarkMissingData(s, meta, preImputation, imputedSplit.Merged()); err != nil {
		return nil, err
	}

	r.log.Info("%s: starting anomaly detection", sensor.Name)
	if err := r.detector.Detect(s, meta, imputedSplit, sensor); err != nil {
		return nil, err
	}

	if r.cfg.ImputeDataGaps {
		r.log.Info("%s: starting to impute big gaps", sensor.Name)
		if err := impute.BigGaps(s, meta); err != nil {
			return nil, errors.DataError(err)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	finished := time.Now()
	r.log.Info("%s: total runtime for sensor is %s", sensor.Name, finished.Sub(started))

	return &Result{
		RunID:      core.RunID(core.NewID()),
		Sensor:     sensor,
		Series:     s,
		Meta:       meta,
		StartedAt:  started,
		FinishedAt: finished,
	}, nil
}
