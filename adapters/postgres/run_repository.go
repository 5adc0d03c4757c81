// Package postgres persists finished pipeline runs so they can be served
// later without re-running the analysis.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"trafficsense/domain/core"
	"trafficsense/domain/series"
)

// RunRecord is one persisted pipeline run.
type RunRecord struct {
	ID         string    `db:"id"`
	SensorName string    `db:"sensor_name"`
	SourceID   string    `db:"source_id"`
	TargetID   string    `db:"target_id"`
	StartTime  time.Time `db:"start_time"`
	EndTime    time.Time `db:"end_time"`
	CreatedAt  time.Time `db:"created_at"`
}

// SampleRecord is one persisted enriched sample.
type SampleRecord struct {
	RunID          string          `db:"run_id"`
	Time           time.Time       `db:"sample_time"`
	Data           sql.NullFloat64 `db:"data"`
	ImputedData    sql.NullFloat64 `db:"imputed_data"`
	AnomalyScore   sql.NullFloat64 `db:"anomaly_score"`
	AnomalyLabel   sql.NullFloat64 `db:"anomaly_label"`
	SensorError    int             `db:"sensor_error"`
	BigSensorError int             `db:"big_sensor_error"`
}

// runRepository implements ports.RunRepository over postgres.
type runRepository struct {
	db *sqlx.DB
}

// NewRunRepository creates a run repository.
func NewRunRepository(db *sqlx.DB) *runRepository {
	return &runRepository{db: db}
}

// Migrate creates the run tables if they do not exist.
func Migrate(db *sqlx.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		sensor_name TEXT NOT NULL,
		source_id TEXT NOT NULL,
		target_id TEXT NOT NULL,
		start_time TIMESTAMPTZ NOT NULL,
		end_time TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE TABLE IF NOT EXISTS run_samples (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		sample_time TIMESTAMPTZ NOT NULL,
		data DOUBLE PRECISION,
		imputed_data DOUBLE PRECISION,
		anomaly_score DOUBLE PRECISION,
		anomaly_label DOUBLE PRECISION,
		sensor_error SMALLINT NOT NULL DEFAULT 0,
		big_sensor_error SMALLINT NOT NULL DEFAULT 0,
		PRIMARY KEY (run_id, sample_time)
	);`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to migrate run tables: %w", err)
	}
	return nil
}

// SaveRun inserts the run row and its enriched samples in one transaction.
func (r *runRepository) SaveRun(ctx context.Context, runID core.RunID, sensor core.Sensor, s *series.Series) error {
	if len(s.Times) == 0 {
		return core.ErrNoData
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, sensor_name, source_id, target_id, start_time, end_time, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		runID.String(), sensor.Name, sensor.SourceID.String(), sensor.TargetID.String(),
		s.Times[0], s.Times[len(s.Times)-1], time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PreparexContext(ctx,
		`INSERT INTO run_samples (run_id, sample_time, data, imputed_data, anomaly_score, anomaly_label, sensor_error, big_sensor_error)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`)
	if err != nil {
		return fmt.Errorf("failed to prepare sample insert: %w", err)
	}
	defer stmt.Close()

	for i := range s.Times {
		_, err := stmt.ExecContext(ctx,
			runID.String(), s.Times[i].UTC(),
			nullable(s.Data, i), nullable(s.ImputedData, i),
			nullable(s.AnomalyScore, i), nullable(s.AnomalyLabel, i),
			flag(s.SensorError, i), flag(s.BigSensorError, i),
		)
		if err != nil {
			return fmt.Errorf("failed to insert sample: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// ListRuns returns all persisted runs, newest first.
func (r *runRepository) ListRuns(ctx context.Context) ([]RunRecord, error) {
	var runs []RunRecord
	err := r.db.SelectContext(ctx, &runs,
		`SELECT id, sensor_name, source_id, target_id, start_time, end_time, created_at
		 FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// GetRun returns one run row.
func (r *runRepository) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	var run RunRecord
	err := r.db.GetContext(ctx, &run,
		`SELECT id, sensor_name, source_id, target_id, start_time, end_time, created_at
		 FROM runs WHERE id = $1`, runID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	return &run, nil
}

// GetSeries loads the enriched samples of one run in time order.
func (r *runRepository) GetSeries(ctx context.Context, runID string) ([]SampleRecord, error) {
	var samples []SampleRecord
	err := r.db.SelectContext(ctx, &samples,
		`SELECT run_id, sample_time, data, imputed_data, anomaly_score, anomaly_label, sensor_error, big_sensor_error
		 FROM run_samples WHERE run_id = $1 ORDER BY sample_time`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load run samples: %w", err)
	}
	return samples, nil
}

func nullable(col []series.Sample, i int) sql.NullFloat64 {
	if col == nil || !col[i].Valid {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: col[i].Value, Valid: true}
}

func flag(col []int, i int) int {
	if col == nil {
		return 0
	}
	return col[i]
}
