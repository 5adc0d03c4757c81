package anomaly

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"trafficsense/domain/core"
	"trafficsense/domain/series"
	"trafficsense/internal/errors"
)

// ModelStore persists one model blob per (sensor, day-type) under a
// configured directory. The filename partitioning means concurrent
// sensors never contend on the same file; scheduling the same sensor
// twice concurrently is the caller's responsibility to prevent.
type ModelStore struct {
	dir string
}

// NewModelStore creates a store rooted at dir, creating it if needed.
func NewModelStore(dir string) (*ModelStore, error) {
	if dir == "" {
		dir = "models"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create model directory %s: %w", dir, err)
	}
	return &ModelStore{dir: dir}, nil
}

func (st *ModelStore) path(sensorID core.SensorID, dayType series.DayType) string {
	return filepath.Join(st.dir, fmt.Sprintf("%s.%s.json", sensorID, dayType))
}

// Save writes the model blob for one sensor and day-type.
func (st *ModelStore) Save(sensorID core.SensorID, dayType series.DayType, m *Model) error {
	blob, err := json.Marshal(m)
	if err != nil {
		return errors.ModelError("failed to serialize model", err)
	}
	if err := os.WriteFile(st.path(sensorID, dayType), blob, 0o644); err != nil {
		return errors.ModelError("failed to write model file", err)
	}
	return nil
}

// Load reads a previously persisted model.
func (st *ModelStore) Load(sensorID core.SensorID, dayType series.DayType) (*Model, error) {
	blob, err := os.ReadFile(st.path(sensorID, dayType))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", core.ErrModelNotFound, st.path(sensorID, dayType))
		}
		return nil, errors.ModelError("failed to read model file", err)
	}
	var m Model
	if err := json.Unmarshal(blob, &m); err != nil {
		return nil, errors.ModelError(fmt.Sprintf("failed to decode model file %s", st.path(sensorID, dayType)), err)
	}
	return &m, nil
}
