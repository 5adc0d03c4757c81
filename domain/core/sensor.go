package core

// Sensor describes one traffic sensor as resolved from the external
// inventory. SourceID keys local input files and persisted models;
// TargetID is only consumed by the upload collaborator.
type Sensor struct {
	Name     string   `json:"name"`
	SourceID SensorID `json:"source_id"`
	TargetID SensorID `json:"target_id"`
}
