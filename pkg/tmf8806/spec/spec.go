// Package spec contains constants for the TMF8806 ZeroMQ measurement service.
package spec

import "time"

const (
	// DefaultCommandAddr is the command (REQ/REP) endpoint of the evaluation
	// board when it is connected over USB networking.
	DefaultCommandAddr = "tcp://169.254.0.2:5555"

	// DefaultResultAddr is the result (PUB/SUB) endpoint of the evaluation
	// board.
	DefaultResultAddr = "tcp://169.254.0.2:5556"

	// DrainTimeout is how long to wait for a stale result before a one-shot
	// capture. It only bounds the drain, never a command.
	DrainTimeout = 100 * time.Millisecond

	// DefaultResultTimeout bounds the wait for a single one-shot result.
	DefaultResultTimeout = 10 * time.Second

	// DefaultLoggingDuration is how long the example scripts log for.
	DefaultLoggingDuration = 5 * time.Second

	// DefaultDialTimeout is the TCP dial timeout for both channels.
	DefaultDialTimeout = 2 * time.Second

	// DefaultDialRetry is the interval between dial attempts.
	DefaultDialRetry = 250 * time.Millisecond

	// DefaultDialMaxRetries is the number of dial retries before a
	// connection is considered unreachable.
	DefaultDialMaxRetries = 3

	// DefaultResultQueueSize is the number of results buffered between the
	// result socket and its consumer when conflation is disabled.
	DefaultResultQueueSize = 256

	// FactoryCalibKIters is the iteration count (in thousands) used for
	// factory calibration runs.
	FactoryCalibKIters = 4000

	// HistogramChannels is the number of TDCs reporting histograms.
	HistogramChannels = 5

	// HistogramBins is the number of bins of a short range histogram.
	HistogramBins = 128

	// CalibrationSize is the size of the factory calibration blob.
	CalibrationSize = 14
)

// Command names carried in a Request envelope.
const (
	CmdGetConfiguration   = "get_configuration"
	CmdSetConfiguration   = "set_configuration"
	CmdGetHistogramConfig = "get_histogram_config"
	CmdSetHistogramConfig = "set_histogram_config"
	CmdStartMeasurement   = "start_measurement"
	CmdStopMeasurement    = "stop_measurement"
	CmdGetCalibration     = "get_calibration"
)
