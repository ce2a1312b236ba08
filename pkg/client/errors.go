package client

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned by operations that need a connection when
	// the client is disconnected.
	ErrNotConnected = errors.New("not connected")

	// ErrAlreadyConnected is returned by Connect on a connected client.
	ErrAlreadyConnected = errors.New("already connected")

	// ErrResultChannelBusy is returned when the result channel already has a
	// consumer: one-shot capture and continuous logging are mutually
	// exclusive.
	ErrResultChannelBusy = errors.New("result channel in use")
)

// ConnectionError is returned when an endpoint cannot be reached.
type ConnectionError struct {
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("cannot connect to %s: %v", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// CommandError is returned when the service rejects a command.
type CommandError struct {
	Command string
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s rejected: %s", e.Command, e.Message)
}
