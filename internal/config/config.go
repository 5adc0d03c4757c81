package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"trafficsense/domain/calendar"
	"trafficsense/domain/core"
	"trafficsense/internal/errors"
)

// DataType selects how raw records are discretized.
type DataType string

const (
	DataTypeEvent       DataType = "EVENT"
	DataTypeMeasurement DataType = "MEASUREMENT"
)

// EventStep is the fixed discretization grid for event data.
const EventStep = 15 * time.Minute

// Config represents the complete application configuration
type Config struct {
	SourceAuth AuthConfig
	TargetAuth AuthConfig
	Data       DataConfig
	Anomaly    AnomalyConfig
	Plot       PlotConfig
	Upload     UploadConfig
	Database   DatabaseConfig

	// ImputeDataGaps controls whether big-gap imputation runs at all.
	ImputeDataGaps bool
	// DevicesInParallel is the fixed batch size for sensor fan-out.
	DevicesInParallel int
}

// AuthConfig holds credentials for one external measurement platform tenant
type AuthConfig struct {
	Username string
	Password string
	TenantID string
	BaseURL  string
}

// DevicePair maps a source inventory device to its upload target device
type DevicePair struct {
	Source core.SensorID
	Target core.SensorID
}

// DataConfig holds data loading settings
type DataConfig struct {
	StartDate time.Time
	EndDate   time.Time
	Directory string
	Type      DataType
	// MeasurementStep is the grid step for MEASUREMENT data; it must
	// evenly divide one hour. Event data always uses EventStep.
	MeasurementStep time.Duration
	Devices         []DevicePair
	Zone            *time.Location
}

// Step returns the discretization step for the configured data type.
func (c DataConfig) Step() time.Duration {
	if c.Type == DataTypeMeasurement {
		return c.MeasurementStep
	}
	return EventStep
}

// AnomalyConfig holds outlier model settings
type AnomalyConfig struct {
	UseExistingModel bool
	ModelDir         string
	// Seed is threaded explicitly into every fit call so concurrent
	// sensor workers never share random state.
	Seed int64
}

// PlotConfig holds HTML plot output settings
type PlotConfig struct {
	Enabled   bool
	Directory string
}

// UploadConfig holds target-platform upload settings
type UploadConfig struct {
	AnomalyData     bool
	Imputation      bool
	BatchSize       int
	MeasurementType string
}

// Enabled reports whether any upload output was requested.
func (c UploadConfig) Enabled() bool {
	return c.AnomalyData || c.Imputation
}

// DatabaseConfig holds the optional postgres sink settings
type DatabaseConfig struct {
	URL string
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	cfg := &Config{
		SourceAuth:        loadAuth("SOURCE"),
		TargetAuth:        loadAuth("TARGET"),
		Anomaly:           loadAnomaly(),
		Plot:              loadPlot(),
		Upload:            loadUpload(),
		Database:          DatabaseConfig{URL: os.Getenv("DATABASE_URL")},
		ImputeDataGaps:    envBool("IMPUTE_DATA_GAPS", true),
		DevicesInParallel: envInt("DEVICES_IN_PARALLEL", 4),
	}

	data, err := loadData()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load data configuration")
	}
	cfg.Data = *data

	if err := validate(cfg); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return cfg, nil
}

func loadAuth(prefix string) AuthConfig {
	return AuthConfig{
		Username: os.Getenv(prefix + "_USERNAME"),
		Password: os.Getenv(prefix + "_PASSWORD"),
		TenantID: os.Getenv(prefix + "_TENANT_ID"),
		BaseURL:  os.Getenv(prefix + "_BASE_URL"),
	}
}

func loadData() (*DataConfig, error) {
	zoneName := os.Getenv("ANALYSIS_ZONE")
	if zoneName == "" {
		zoneName = calendar.DefaultZone
	}
	zone, err := time.LoadLocation(zoneName)
	if err != nil {
		return nil, errors.ConfigInvalid(fmt.Sprintf("unknown analysis zone %q", zoneName))
	}

	start, err := parseDate(os.Getenv("START_DATE"), zone)
	if err != nil {
		return nil, errors.ConfigInvalid(fmt.Sprintf("invalid START_DATE: %v", err))
	}
	end, err := parseDate(os.Getenv("END_DATE"), zone)
	if err != nil {
		return nil, errors.ConfigInvalid(fmt.Sprintf("invalid END_DATE: %v", err))
	}

	dataType := DataType(strings.ToUpper(envString("DATA_TYPE", string(DataTypeEvent))))
	if dataType != DataTypeEvent && dataType != DataTypeMeasurement {
		return nil, errors.ConfigInvalid(fmt.Sprintf("unknown DATA_TYPE %q", dataType))
	}

	step := EventStep
	if dataType == DataTypeMeasurement {
		raw := envString("MEASUREMENT_FREQUENCY", "1h")
		step, err = time.ParseDuration(raw)
		if err != nil {
			return nil, errors.ConfigInvalid(fmt.Sprintf("invalid MEASUREMENT_FREQUENCY %q", raw))
		}
	}

	devices, err := parseDevices(os.Getenv("DEVICES"))
	if err != nil {
		return nil, err
	}

	return &DataConfig{
		StartDate:       start,
		EndDate:         end,
		Directory:       envString("DATA_DIRECTORY", "data/files"),
		Type:            dataType,
		MeasurementStep: step,
		Devices:         devices,
		Zone:            zone,
	}, nil
}

func loadAnomaly() AnomalyConfig {
	return AnomalyConfig{
		UseExistingModel: envBool("USE_EXISTING_MODEL", false),
		ModelDir:         envString("MODEL_DIRECTORY", "models"),
		Seed:             int64(envInt("ANOMALY_SEED", 123)),
	}
}

func loadPlot() PlotConfig {
	return PlotConfig{
		Enabled:   envBool("CREATE_PLOT", true),
		Directory: envString("PLOT_DIRECTORY", "plots"),
	}
}

func loadUpload() UploadConfig {
	return UploadConfig{
		AnomalyData:     envBool("UPLOAD_ANOMALY_DATA", false),
		Imputation:      envBool("UPLOAD_IMPUTATION", false),
		BatchSize:       envInt("BATCH_UPLOAD_SIZE", 10000),
		MeasurementType: envString("MEASUREMENT_TYPE", "c8y_VehiclesMeasurement"),
	}
}

func validate(cfg *Config) error {
	if !cfg.Data.EndDate.After(cfg.Data.StartDate) {
		return errors.WithCode(errors.CodeConfigInvalid, core.ErrBadDateRange)
	}
	if time.Hour%cfg.Data.Step() != 0 {
		return errors.WithCode(errors.CodeConfigInvalid, core.ErrBadFrequency)
	}
	if !cfg.Plot.Enabled && !cfg.Upload.Enabled() && cfg.Database.URL == "" {
		return errors.WithCode(errors.CodeConfigInvalid, core.ErrNoPersistence)
	}
	if cfg.Upload.Imputation && !cfg.ImputeDataGaps {
		return errors.ConfigInvalid("imputed data cannot be uploaded when IMPUTE_DATA_GAPS is false")
	}
	if len(cfg.Data.Devices) == 0 {
		return errors.ConfigInvalid("no DEVICES configured")
	}
	if cfg.DevicesInParallel < 1 {
		return errors.ConfigInvalid("DEVICES_IN_PARALLEL must be at least 1")
	}
	return nil
}

// parseDevices reads "source:target" pairs separated by commas.
func parseDevices(raw string) ([]DevicePair, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var pairs []DevicePair
	for _, item := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(item), ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, errors.ConfigInvalid(fmt.Sprintf("invalid device pair %q, want source:target", item))
		}
		pairs = append(pairs, DevicePair{
			Source: core.SensorID(parts[0]),
			Target: core.SensorID(parts[1]),
		})
	}
	return pairs, nil
}

func parseDate(raw string, zone *time.Location) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("value is required")
	}
	return time.ParseInLocation("2006-01-02", raw, zone)
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
