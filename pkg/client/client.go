// Package client implements a client for the TMF8806 ZeroMQ measurement
// service.
//
// The service exposes two endpoints: a command channel (REQ/REP) carrying
// JSON request/reply envelopes and a result channel (PUB/SUB) publishing one
// JSON ResultRecord per measurement.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/go-zeromq/zmq4"

	"github.com/ams-OSRAM/tmf8806-zmq-data-logger/internal/metrics"
	"github.com/ams-OSRAM/tmf8806-zmq-data-logger/pkg/tmf8806/model"
	"github.com/ams-OSRAM/tmf8806-zmq-data-logger/pkg/tmf8806/spec"
)

// consumer identifies who is reading from the result queue.
type consumer int

const (
	consumerNone consumer = iota
	consumerOneShot
	consumerLogging
)

// Client is a client for the measurement service. Commands are serialized;
// the result channel has at most one consumer at a time.
type Client struct {
	config Config

	// cmdMu serializes command round trips: a REQ socket must alternate
	// strictly between send and receive.
	cmdMu sync.Mutex

	// stateMu protects every field below.
	stateMu    sync.Mutex
	connected  bool
	cmd        zmq4.Socket
	res        zmq4.Socket
	sckCtx     context.Context
	cancel     context.CancelFunc
	results    chan model.ResultRecord
	readerDone chan struct{}
	consumer   consumer
	logger     *resultLogger
}

// New returns a new disconnected Client. Zero fields of config are set to
// their defaults.
func New(config Config) *Client {
	config.applyDefaults()
	return &Client{config: config}
}

// Config returns the client's configuration.
func (c *Client) Config() Config {
	return c.config
}

// Connected reports whether both channels are connected.
func (c *Client) Connected() bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.connected
}

// Connect dials the command and result endpoints. It returns a
// *ConnectionError if either endpoint cannot be reached, in which case no
// socket is left open.
func (c *Client) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.connected {
		return ErrAlreadyConnected
	}

	sckCtx, cancel := context.WithCancel(context.Background())
	opts := c.dialOptions()

	cmd := zmq4.NewReq(sckCtx, opts...)
	if err := cmd.Dial(c.config.CommandAddr); err != nil {
		cmd.Close()
		cancel()
		return &ConnectionError{Addr: c.config.CommandAddr, Err: err}
	}
	log.Debug("command channel connected", "addr", c.config.CommandAddr)

	res := zmq4.NewSub(sckCtx, opts...)
	if err := res.Dial(c.config.ResultAddr); err != nil {
		res.Close()
		cmd.Close()
		cancel()
		return &ConnectionError{Addr: c.config.ResultAddr, Err: err}
	}
	if err := res.SetOption(zmq4.OptionSubscribe, c.config.Topic); err != nil {
		res.Close()
		cmd.Close()
		cancel()
		return &ConnectionError{Addr: c.config.ResultAddr, Err: err}
	}
	log.Debug("result channel connected", "addr", c.config.ResultAddr,
		"conflate", c.config.Conflate, "topic", c.config.Topic)

	c.cmd = cmd
	c.res = res
	c.sckCtx = sckCtx
	c.cancel = cancel
	c.results = make(chan model.ResultRecord, c.config.queueSize())
	c.readerDone = make(chan struct{})
	c.consumer = consumerNone
	c.connected = true

	go c.readLoop(res, c.results, c.readerDone)
	return nil
}

func (c *Client) dialOptions() []zmq4.Option {
	return []zmq4.Option{
		zmq4.WithDialerTimeout(c.config.DialTimeout),
		zmq4.WithDialerRetry(c.config.DialRetry),
		zmq4.WithDialerMaxRetries(c.config.DialMaxRetries),
	}
}

// Disconnect stops continuous logging if active and closes both channels.
// It is a no-op on a disconnected client.
func (c *Client) Disconnect() error {
	logErr := c.StopLogging()

	c.stateMu.Lock()
	if !c.connected {
		c.stateMu.Unlock()
		return logErr
	}
	c.connected = false
	errs := []error{logErr}
	if c.cmd != nil {
		errs = append(errs, c.cmd.Close())
		c.cmd = nil
	}
	errs = append(errs, c.res.Close())
	c.res = nil
	c.cancel()
	done := c.readerDone
	c.stateMu.Unlock()

	<-done
	log.Debug("disconnected", "cmd", c.config.CommandAddr, "result", c.config.ResultAddr)
	return errors.Join(errs...)
}

// commandSocket returns the command socket or ErrNotConnected.
func (c *Client) commandSocket() (zmq4.Socket, error) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if !c.connected || c.cmd == nil {
		return nil, ErrNotConnected
	}
	return c.cmd, nil
}

// resetCommandSocket replaces the command socket after an abandoned
// request: a REQ socket cannot send again before the reply arrives, so a
// fresh socket is dialed. If the redial fails the command channel stays
// closed and commands return ErrNotConnected.
func (c *Client) resetCommandSocket(sck zmq4.Socket) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if !c.connected || c.cmd != sck {
		return
	}
	c.cmd.Close()
	c.cmd = nil

	fresh := zmq4.NewReq(c.sckCtx, c.dialOptions()...)
	if err := fresh.Dial(c.config.CommandAddr); err != nil {
		fresh.Close()
		log.Warn("cannot redial command channel", "addr", c.config.CommandAddr, "error", err)
		return
	}
	c.cmd = fresh
	log.Debug("command channel redialed", "addr", c.config.CommandAddr)
}

// roundTrip sends one command and decodes the reply payload into out, if
// out is not nil. Cancelling ctx abandons the request; since a REQ socket
// cannot skip a reply, the command socket is replaced in that case.
func (c *Client) roundTrip(ctx context.Context, command string, in, out interface{}) error {
	req := model.Request{Command: command}
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return err
		}
		req.Payload = payload
	}
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}

	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	sck, err := c.commandSocket()
	if err != nil {
		return err
	}

	type response struct {
		msg zmq4.Msg
		err error
	}
	respCh := make(chan response, 1)
	go func() {
		if err := sck.Send(zmq4.NewMsg(data)); err != nil {
			respCh <- response{err: err}
			return
		}
		msg, err := sck.Recv()
		respCh <- response{msg: msg, err: err}
	}()

	var resp response
	select {
	case <-ctx.Done():
		c.resetCommandSocket(sck)
		metrics.Commands.WithLabelValues(command, "error").Inc()
		return ctx.Err()
	case resp = <-respCh:
	}
	if resp.err != nil {
		metrics.Commands.WithLabelValues(command, "error").Inc()
		return fmt.Errorf("%s: %w", command, resp.err)
	}

	var reply model.Reply
	if err := json.Unmarshal(resp.msg.Bytes(), &reply); err != nil {
		metrics.Commands.WithLabelValues(command, "error").Inc()
		return fmt.Errorf("%s: invalid reply: %w", command, err)
	}
	if !reply.OK {
		metrics.Commands.WithLabelValues(command, "rejected").Inc()
		return &CommandError{Command: command, Message: reply.Error}
	}
	metrics.Commands.WithLabelValues(command, "ok").Inc()
	log.Debug("command completed", "cmd", command)

	if out != nil && len(reply.Payload) > 0 {
		if err := json.Unmarshal(reply.Payload, out); err != nil {
			return fmt.Errorf("%s: invalid payload: %w", command, err)
		}
	}
	return nil
}

// GetConfiguration returns the current measurement configuration.
func (c *Client) GetConfiguration(ctx context.Context) (model.MeasureConfig, error) {
	var cfg model.MeasureConfig
	err := c.roundTrip(ctx, spec.CmdGetConfiguration, nil, &cfg)
	return cfg, err
}

// SetConfiguration replaces the measurement configuration without starting
// a measurement.
func (c *Client) SetConfiguration(ctx context.Context, cfg model.MeasureConfig) error {
	return c.roundTrip(ctx, spec.CmdSetConfiguration, cfg, nil)
}

// GetHistogramConfig returns which histogram classes are published.
func (c *Client) GetHistogramConfig(ctx context.Context) (model.HistogramConfig, error) {
	var cfg model.HistogramConfig
	err := c.roundTrip(ctx, spec.CmdGetHistogramConfig, nil, &cfg)
	return cfg, err
}

// SetHistogramConfig selects which histogram classes are published.
func (c *Client) SetHistogramConfig(ctx context.Context, cfg model.HistogramConfig) error {
	return c.roundTrip(ctx, spec.CmdSetHistogramConfig, cfg, nil)
}

// StartMeasurement starts the command selected by cfg.Data.Command. A
// factory calibration returns once the calibration has completed. The
// returned flag is the service's report of whether calibration data was
// applied.
func (c *Client) StartMeasurement(ctx context.Context, cfg model.MeasureConfig) (bool, error) {
	var reply model.StartReply
	err := c.roundTrip(ctx, spec.CmdStartMeasurement, cfg, &reply)
	return reply.Calibrated, err
}

// StopMeasurement stops the running measurement. Stopping when nothing runs
// is not an error.
func (c *Client) StopMeasurement(ctx context.Context) error {
	return c.roundTrip(ctx, spec.CmdStopMeasurement, nil, nil)
}

// GetCalibration returns the blob produced by the last factory calibration.
func (c *Client) GetCalibration(ctx context.Context) (model.CalibrationBlob, error) {
	var reply model.CalibrationReply
	err := c.roundTrip(ctx, spec.CmdGetCalibration, nil, &reply)
	return reply.Data, err
}
