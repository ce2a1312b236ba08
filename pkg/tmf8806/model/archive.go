package model

import "time"

// SessionArchive is the archival record of a measurement session. It is
// serialized as JSON to disk and its BigQuery schema is produced by
// cmd/generate-schema.
type SessionArchive struct {
	// Version is the symbolic version of the tool that ran the session.
	Version string
	// ID is the unique identifier of this session.
	ID string
	// Kind is the kind of session (active, passive, calibration).
	Kind string

	CommandAddr string
	ResultAddr  string

	// StartTime is the time the session connected to the service.
	StartTime time.Time
	// EndTime is the time the session was torn down.
	EndTime time.Time

	// Variants holds one entry per swept configuration, in sweep order.
	Variants []VariantArchive
}

// VariantArchive records the outcome of one sweep variant.
type VariantArchive struct {
	Label        string
	SpadSelect   uint8
	DistanceMode uint8
	VcselClkDiv2 bool

	// Calibration is the factory calibration blob, when it was captured.
	Calibration []byte
	// Calibrated is the flag reported when the measurement was started.
	Calibrated bool
	// Captured is false when no result arrived in time.
	Captured bool
	Record   ResultRecord
}
