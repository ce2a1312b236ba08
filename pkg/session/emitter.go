package session

import (
	"fmt"

	"github.com/ams-OSRAM/tmf8806-zmq-data-logger/pkg/tmf8806/model"
)

// Emitter is an interface for reporting session progress to a human.
type Emitter interface {
	// OnConnect is called when both channels are connected.
	OnConnect(cmdAddr, resultAddr string)
	// OnProgress is called on session milestones.
	OnProgress(msg string)
	// OnStart is called when a measurement starts.
	OnStart(calibrated bool)
	// OnLogging is called when continuous logging starts.
	OnLogging(path string)
	// OnVariant is called when a sweep variant starts.
	OnVariant(v Variant)
	// OnResult is called with the result captured for a sweep variant.
	OnResult(v Variant, rec *model.ResultRecord)
	// OnMissingResult is called when no result arrived for a sweep variant.
	OnMissingResult(v Variant)
	// OnError is called on errors.
	OnError(err error)
	// OnDisconnect is called when the session has been torn down.
	OnDisconnect()
	// OnDebug is called to print debug information.
	OnDebug(msg string)
}

// HumanReadable prints human-readable output to stdout.
// It can be configured to include debug output, too.
type HumanReadable struct {
	Debug bool
}

// OnConnect prints the connected endpoints.
func (HumanReadable) OnConnect(cmdAddr, resultAddr string) {
	fmt.Printf("Connected to server (cmd: %s, result: %s)\n", cmdAddr, resultAddr)
}

// OnProgress prints msg.
func (HumanReadable) OnProgress(msg string) {
	fmt.Println(msg)
}

// OnStart reports whether the measurement uses calibration data.
func (HumanReadable) OnStart(calibrated bool) {
	if calibrated {
		fmt.Println("Started calibrated measurement")
	} else {
		fmt.Println("Started uncalibrated measurement")
	}
}

// OnLogging prints the log file path.
func (HumanReadable) OnLogging(path string) {
	fmt.Printf("Start data logging -> %s\n", path)
}

// OnVariant prints the variant label.
func (HumanReadable) OnVariant(v Variant) {
	fmt.Printf("Configuration: %s\n", v.Label())
}

// OnResult prints the cross-talk and distance of rec.
func (HumanReadable) OnResult(v Variant, rec *model.ResultRecord) {
	fmt.Printf("  cross-talk: %d, distance: %d mm\n", rec.Result.Xtalk, rec.Result.DistanceMm)
}

// OnMissingResult reports a variant without result.
func (HumanReadable) OnMissingResult(v Variant) {
	fmt.Printf("  no result received for %s\n", v.Label())
}

// OnError prints err.
func (HumanReadable) OnError(err error) {
	fmt.Printf("Error: %v\n", err)
}

// OnDisconnect is called when the session has been torn down.
func (HumanReadable) OnDisconnect() {
	fmt.Println("Disconnect from server.")
}

// OnDebug is called to print debug information.
func (e HumanReadable) OnDebug(msg string) {
	if e.Debug {
		fmt.Printf("DEBUG: %s\n", msg)
	}
}

// Checks that HumanReadable implements Emitter.
var _ Emitter = &HumanReadable{}
