package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trafficsense/domain/core"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("START_DATE", "2023-06-01")
	t.Setenv("END_DATE", "2023-07-01")
	t.Setenv("DEVICES", "100:200")
	// Unset knobs an outer environment might carry.
	for _, key := range []string{
		"DATA_TYPE", "MEASUREMENT_FREQUENCY", "ANALYSIS_ZONE", "CREATE_PLOT",
		"UPLOAD_ANOMALY_DATA", "UPLOAD_IMPUTATION", "IMPUTE_DATA_GAPS",
		"DEVICES_IN_PARALLEL", "USE_EXISTING_MODEL", "DATABASE_URL", "ANOMALY_SEED",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DataTypeEvent, cfg.Data.Type)
	assert.Equal(t, EventStep, cfg.Data.Step())
	assert.Equal(t, "Europe/Helsinki", cfg.Data.Zone.String())
	assert.True(t, cfg.Plot.Enabled)
	assert.False(t, cfg.Upload.Enabled())
	assert.True(t, cfg.ImputeDataGaps)
	assert.Equal(t, 4, cfg.DevicesInParallel)
	assert.Equal(t, int64(123), cfg.Anomaly.Seed)
	assert.Equal(t, 10000, cfg.Upload.BatchSize)

	// Dates are midnight in the analysis zone.
	assert.Equal(t, 2023, cfg.Data.StartDate.Year())
	assert.Equal(t, 0, cfg.Data.StartDate.Hour())
	assert.Equal(t, "Europe/Helsinki", cfg.Data.StartDate.Location().String())
}

func TestLoadDevicePairs(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("DEVICES", "100:200, 101:201 ,102:202")

	cfg, err := Load()
	require.NoError(t, err)
	require.Len(t, cfg.Data.Devices, 3)
	assert.Equal(t, core.SensorID("101"), cfg.Data.Devices[1].Source)
	assert.Equal(t, core.SensorID("201"), cfg.Data.Devices[1].Target)
}

func TestLoadRejectsMalformedDevicePair(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("DEVICES", "100")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device pair")
}

func TestLoadRejectsInvertedDates(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("START_DATE", "2023-07-01")
	t.Setenv("END_DATE", "2023-06-01")

	_, err := Load()
	assert.True(t, errors.Is(err, core.ErrBadDateRange))
}

func TestLoadMeasurementFrequency(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("DATA_TYPE", "MEASUREMENT")
	t.Setenv("MEASUREMENT_FREQUENCY", "20m")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 20*time.Minute, cfg.Data.Step())
}

func TestLoadRejectsFrequencyNotDividingHour(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("DATA_TYPE", "MEASUREMENT")
	t.Setenv("MEASUREMENT_FREQUENCY", "25m")

	_, err := Load()
	assert.True(t, errors.Is(err, core.ErrBadFrequency))
}

func TestLoadRequiresSomePersistence(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("CREATE_PLOT", "false")

	_, err := Load()
	assert.True(t, errors.Is(err, core.ErrNoPersistence))

	// Any single output lifts the restriction.
	t.Setenv("UPLOAD_ANOMALY_DATA", "true")
	_, err = Load()
	assert.NoError(t, err)
}

func TestLoadRejectsImputationUploadWithoutImputation(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("IMPUTE_DATA_GAPS", "false")
	t.Setenv("UPLOAD_IMPUTATION", "true")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "IMPUTE_DATA_GAPS")
}

func TestLoadRejectsUnknownDataType(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("DATA_TYPE", "TELEPATHY")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATA_TYPE")
}
