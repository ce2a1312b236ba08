// Package version holds the symbolic version of the tools.
package version

// Version is set at build time with
// -ldflags "-X github.com/ams-OSRAM/tmf8806-zmq-data-logger/pkg/version.Version=..."
var Version = "devel"
