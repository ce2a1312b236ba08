package client

import (
	"time"

	"github.com/ams-OSRAM/tmf8806-zmq-data-logger/pkg/tmf8806/spec"
)

// Config is the configuration for a Client.
type Config struct {
	// CommandAddr is the ZeroMQ endpoint of the command (REQ/REP) channel.
	CommandAddr string

	// ResultAddr is the ZeroMQ endpoint of the result (PUB/SUB) channel.
	ResultAddr string

	// Conflate keeps only the most recent result on the result channel.
	// Older results are discarded as soon as a newer one arrives.
	Conflate bool

	// Topic is the subscription prefix of the result channel. The empty
	// string subscribes to all messages.
	Topic string

	// DialTimeout is the maximum time a single dial attempt may take.
	DialTimeout time.Duration

	// DialRetry is the time to wait between two failed dial attempts.
	DialRetry time.Duration

	// DialMaxRetries is the number of failed dial attempts after which the
	// service is considered unreachable.
	DialMaxRetries int

	// ResultQueueSize is the number of results buffered between the result
	// socket and its consumer. It is ignored when Conflate is set.
	ResultQueueSize int
}

// DefaultConfig returns a Config targeting the evaluation board at its
// default address.
func DefaultConfig() Config {
	return Config{
		CommandAddr:     spec.DefaultCommandAddr,
		ResultAddr:      spec.DefaultResultAddr,
		DialTimeout:     spec.DefaultDialTimeout,
		DialRetry:       spec.DefaultDialRetry,
		DialMaxRetries:  spec.DefaultDialMaxRetries,
		ResultQueueSize: spec.DefaultResultQueueSize,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.CommandAddr == "" {
		c.CommandAddr = d.CommandAddr
	}
	if c.ResultAddr == "" {
		c.ResultAddr = d.ResultAddr
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = d.DialTimeout
	}
	if c.DialRetry == 0 {
		c.DialRetry = d.DialRetry
	}
	if c.DialMaxRetries == 0 {
		c.DialMaxRetries = d.DialMaxRetries
	}
	if c.ResultQueueSize <= 0 {
		c.ResultQueueSize = d.ResultQueueSize
	}
}

func (c *Config) queueSize() int {
	if c.Conflate {
		return 1
	}
	return c.ResultQueueSize
}
