package client

import (
	"context"
	"encoding/json"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-zeromq/zmq4"

	"github.com/ams-OSRAM/tmf8806-zmq-data-logger/internal/metrics"
	"github.com/ams-OSRAM/tmf8806-zmq-data-logger/pkg/tmf8806/model"
)

// pollInterval is how often Poll checks the result queue.
const pollInterval = 5 * time.Millisecond

// readLoop reads from the result socket until Recv fails, which happens when
// the socket is closed. Decoded records are queued on out.
func (c *Client) readLoop(sck zmq4.Socket, out chan model.ResultRecord, done chan<- struct{}) {
	defer close(done)
	for {
		msg, err := sck.Recv()
		if err != nil {
			log.Debug("result reader stopped", "addr", c.config.ResultAddr, "error", err)
			return
		}
		if len(msg.Frames) == 0 {
			continue
		}
		// With a topic, the payload is the last frame of a multipart message.
		var rec model.ResultRecord
		if err := json.Unmarshal(msg.Frames[len(msg.Frames)-1], &rec); err != nil {
			log.Warn("cannot decode result record", "error", err)
			metrics.ResultsDropped.WithLabelValues("decode").Inc()
			continue
		}
		metrics.ResultsReceived.Inc()
		c.enqueue(out, rec)
	}
}

// enqueue queues rec, discarding the oldest queued record when the queue is
// full. With conflation the queue holds a single record, so every new record
// replaces the previous one.
func (c *Client) enqueue(out chan model.ResultRecord, rec model.ResultRecord) {
	reason := "queue_full"
	if c.config.Conflate {
		reason = "conflated"
	}
	for {
		select {
		case out <- rec:
			return
		default:
		}
		select {
		case <-out:
			metrics.ResultsDropped.WithLabelValues(reason).Inc()
		default:
		}
	}
}

// acquire makes kind the consumer of the result queue.
func (c *Client) acquire(kind consumer) (chan model.ResultRecord, <-chan struct{}, error) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if !c.connected {
		return nil, nil, ErrNotConnected
	}
	if c.consumer != consumerNone {
		return nil, nil, ErrResultChannelBusy
	}
	c.consumer = kind
	return c.results, c.readerDone, nil
}

func (c *Client) release(kind consumer) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.consumer == kind {
		c.consumer = consumerNone
	}
}

// GetResult blocks until one result record is available and returns it. It
// returns ctx.Err() when ctx expires first, ErrNotConnected when the client
// disconnects while waiting and ErrResultChannelBusy while continuous logging
// is active.
func (c *Client) GetResult(ctx context.Context) (*model.ResultRecord, error) {
	results, readerDone, err := c.acquire(consumerOneShot)
	if err != nil {
		return nil, err
	}
	defer c.release(consumerOneShot)

	select {
	case rec := <-results:
		return &rec, nil
	case <-readerDone:
		return nil, ErrNotConnected
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Poll reports whether a result is available within timeout. It does not
// consume the result.
func (c *Client) Poll(timeout time.Duration) (bool, error) {
	results, readerDone, err := c.acquire(consumerOneShot)
	if err != nil {
		return false, err
	}
	defer c.release(consumerOneShot)

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		if len(results) > 0 {
			return true, nil
		}
		select {
		case <-readerDone:
			return false, ErrNotConnected
		case <-deadline.C:
			return false, nil
		case <-ticker.C:
		}
	}
}

// DrainResults discards stale results. It waits up to timeout for a first
// result, then discards whatever else is queued without waiting. It returns
// the number of discarded results; draining an empty queue is a no-op.
func (c *Client) DrainResults(timeout time.Duration) (int, error) {
	results, readerDone, err := c.acquire(consumerOneShot)
	if err != nil {
		return 0, err
	}
	defer c.release(consumerOneShot)

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	n := 0
	select {
	case <-results:
		n++
	case <-readerDone:
		return 0, ErrNotConnected
	case <-deadline.C:
		return 0, nil
	}
	n += drainQueued(results)
	metrics.ResultsDropped.WithLabelValues("stale").Add(float64(n))
	log.Debug("drained stale results", "count", n)
	return n, nil
}

// drainQueued discards every queued record without waiting and returns how
// many were discarded.
func drainQueued(results chan model.ResultRecord) int {
	n := 0
	for {
		select {
		case <-results:
			n++
		default:
			return n
		}
	}
}
