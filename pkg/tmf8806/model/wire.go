package model

import "encoding/json"

// Request is the envelope sent on the command channel.
type Request struct {
	// Command is one of the spec.Cmd* names.
	Command string `json:"cmd"`
	// Payload is the command argument, if any.
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Reply is the envelope returned on the command channel. Every Request gets
// exactly one Reply.
type Reply struct {
	OK bool `json:"ok"`
	// Error is the reason the service rejected the command.
	Error   string          `json:"error,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// StartReply is the payload of a successful start_measurement reply.
type StartReply struct {
	// Calibrated reports whether the service applied factory calibration
	// data (true) or fell back to uncalibrated parameters (false).
	Calibrated bool `json:"calibrated"`
}

// CalibrationReply is the payload of a get_calibration reply.
type CalibrationReply struct {
	Data CalibrationBlob `json:"data"`
}
