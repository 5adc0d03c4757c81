package anomaly

import (
	"math"
	"time"

	"github.com/montanaflynn/stats"

	"trafficsense/domain/core"
	"trafficsense/domain/series"
	"trafficsense/internal/config"
	"trafficsense/internal/errors"
	"trafficsense/internal/logging"
	"trafficsense/internal/window"
)

// neighborFraction scales the LOF neighbor count with the amount of
// usable history: k = ceil(0.3 * usable days).
const neighborFraction = 0.3

// Detector runs per-day-type outlier detection over tumbled matrices and
// attaches day-level scores and labels to the full-resolution series.
type Detector struct {
	store *ModelStore
	cfg   config.AnomalyConfig
	log   *logging.Logger
}

// NewDetector creates a detector over the given model store.
func NewDetector(store *ModelStore, cfg config.AnomalyConfig, log *logging.Logger) *Detector {
	if log == nil {
		log = logging.DefaultLogger
	}
	return &Detector{store: store, cfg: cfg, log: log}
}

// dayResult carries per-day scores/labels for one day-type, aligned with
// the matrix dates. Days whose row had a gap stay unknown.
type dayResult struct {
	dates  []time.Time
	scores []series.Sample
	labels []series.Sample
	scored bool
}

// Detect scores each day-type, merges the per-day results by date and
// expands them onto the full-resolution axis. Insufficient data is a soft
// condition: the series completes with explicit unknown score and label
// columns instead of failing.
func (d *Detector) Detect(s *series.Series, meta series.PeriodMeta, split *window.Split, sensor core.Sensor) error {
	work, err := d.detectDays(split.Workdays, sensor)
	if err != nil {
		return err
	}
	weekend, err := d.detectDays(split.Weekends, sensor)
	if err != nil {
		return err
	}

	if !work.scored && !weekend.scored {
		d.log.Warn("%s: none of the provided days had a sufficient data quality for anomaly detection", sensor.Name)
		s.AnomalyScore = make([]series.Sample, s.Len())
		s.AnomalyLabel = make([]series.Sample, s.Len())
		return nil
	}

	dates, scores, labels := mergeByDate(work, weekend)
	s.AnomalyScore = window.ExpandByDay(dates, scores, meta)
	s.AnomalyLabel = window.ExpandByDay(dates, labels, meta)
	return nil
}

// detectDays scores one day-type table. Rows with remaining gaps are
// dropped from fitting and scoring but keep their place in the output as
// unknown.
func (d *Detector) detectDays(m *series.TumbledMatrix, sensor core.Sensor) (dayResult, error) {
	res := dayResult{
		dates:  m.Dates,
		scores: make([]series.Sample, m.Len()),
		labels: make([]series.Sample, m.Len()),
	}

	complete := m.CompleteRows()
	usable := len(complete) > 1 || (d.cfg.UseExistingModel && len(complete) > 0)
	if !usable {
		d.log.Warn("%s: not enough gapless %s for anomaly detection", sensor.Name, m.Type)
		return res, nil
	}

	scaled := minMaxScale(m)
	rows := make([][]float64, len(complete))
	for i, r := range complete {
		rows[i] = scaled[r]
	}

	var scores []float64
	var bound float64
	if d.cfg.UseExistingModel {
		model, err := d.store.Load(sensor.SourceID, m.Type)
		if err != nil {
			return res, err
		}
		scores = model.Score(rows)
		bound, err = anomalyBound(model.TrainingScores)
		if err != nil {
			return res, err
		}
	} else {
		k := int(math.Ceil(neighborFraction * float64(len(rows))))
		d.log.Info("%s: detecting anomalies on %s with lof using %d neighbors", sensor.Name, m.Type, k)
		model, err := Fit(rows, k, d.cfg.Seed)
		if err != nil {
			return res, errors.Wrapf(err, "failed to fit %s model for %s", m.Type, sensor.Name)
		}
		if err := d.store.Save(sensor.SourceID, m.Type, model); err != nil {
			return res, err
		}
		scores = model.TrainingScores
		bound, err = anomalyBound(scores)
		if err != nil {
			return res, err
		}
	}

	for i, r := range complete {
		res.scores[r] = series.New(scores[i])
		label := 0.0
		if scores[i] > bound {
			label = 1
		}
		res.labels[r] = series.New(label)
	}
	res.scored = true
	return res, nil
}

// anomalyBound derives the outlier threshold from a score distribution:
// third quartile plus one interquartile range.
func anomalyBound(scores []float64) (float64, error) {
	q3, err := stats.Percentile(scores, 75)
	if err != nil {
		return 0, err
	}
	q1, err := stats.Percentile(scores, 25)
	if err != nil {
		return 0, err
	}
	return q3 + 1.0*(q3-q1), nil
}

// minMaxScale scales every row using per-column statistics fit on the
// full matrix, gaps included, so rows with gaps still broadcast onto a
// comparable range. Missing entries stay missing.
func minMaxScale(m *series.TumbledMatrix) [][]float64 {
	if m.Len() == 0 {
		return nil
	}
	cols := len(m.Rows[0])
	mins := make([]float64, cols)
	maxs := make([]float64, cols)
	for j := 0; j < cols; j++ {
		mins[j] = math.Inf(1)
		maxs[j] = math.Inf(-1)
	}
	for _, row := range m.Rows {
		for j, sm := range row {
			if !sm.Valid {
				continue
			}
			if sm.Value < mins[j] {
				mins[j] = sm.Value
			}
			if sm.Value > maxs[j] {
				maxs[j] = sm.Value
			}
		}
	}

	scaled := make([][]float64, m.Len())
	for i, row := range m.Rows {
		out := make([]float64, cols)
		for j, sm := range row {
			if !sm.Valid {
				out[j] = math.NaN()
				continue
			}
			span := maxs[j] - mins[j]
			if span == 0 || math.IsInf(mins[j], 1) {
				out[j] = 0
				continue
			}
			out[j] = (sm.Value - mins[j]) / span
		}
		scaled[i] = out
	}
	return scaled
}

// mergeByDate interleaves two day-type results into one date-sorted set.
func mergeByDate(a, b dayResult) ([]time.Time, []series.Sample, []series.Sample) {
	var dates []time.Time
	var scores, labels []series.Sample
	ai, bi := 0, 0
	for ai < len(a.dates) || bi < len(b.dates) {
		takeA := bi >= len(b.dates) || (ai < len(a.dates) && a.dates[ai].Before(b.dates[bi]))
		if takeA {
			dates = append(dates, a.dates[ai])
			scores = append(scores, a.scores[ai])
			labels = append(labels, a.labels[ai])
			ai++
		} else {
			dates = append(dates, b.dates[bi])
			scores = append(scores, b.scores[bi])
			labels = append(labels, b.labels[bi])
			bi++
		}
	}
	return dates, scores, labels
}
