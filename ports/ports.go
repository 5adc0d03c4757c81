// Package ports defines the boundaries between the analytical core and
// its external collaborators: sensor discovery, result upload, plotting
// and run persistence.
package ports

import (
	"context"

	"trafficsense/domain/core"
	"trafficsense/domain/series"
	"trafficsense/internal/config"
)

// InventoryPort resolves configured device pairs against the external
// inventory service.
type InventoryPort interface {
	Resolve(ctx context.Context, devices []config.DevicePair) ([]core.Sensor, error)
}

// UploadPort transmits an enriched series to the target measurement store.
type UploadPort interface {
	Upload(ctx context.Context, sensor core.Sensor, s *series.Series) error
}

// PlotPort renders an enriched series to a per-sensor HTML file.
type PlotPort interface {
	Render(sensor core.Sensor, s *series.Series) error
}

// RunRepository persists finished runs for later serving.
type RunRepository interface {
	SaveRun(ctx context.Context, runID core.RunID, sensor core.Sensor, s *series.Series) error
}
