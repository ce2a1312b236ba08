package client

import (
	"errors"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ams-OSRAM/tmf8806-zmq-data-logger/internal/csvlog"
	"github.com/ams-OSRAM/tmf8806-zmq-data-logger/internal/metrics"
	"github.com/ams-OSRAM/tmf8806-zmq-data-logger/pkg/tmf8806/model"
)

// resultLogger writes every record read from the result queue to a CSV
// file until stopped.
type resultLogger struct {
	path string
	file *csvlog.File
	stop chan struct{}
	done chan struct{}
	// err is the write error that ended the loop, if any. It is only read
	// after done is closed.
	err error
}

func (l *resultLogger) run(results <-chan model.ResultRecord, readerDone <-chan struct{}) {
	defer close(l.done)
	for {
		select {
		case <-l.stop:
			return
		case <-readerDone:
			return
		case rec := <-results:
			if err := l.file.Record(&rec); err != nil {
				log.Error("cannot write result record", "path", l.path, "error", err)
				l.err = err
				return
			}
			metrics.ResultsLogged.Inc()
		}
	}
}

// StartLogging starts writing every result published from now on to a CSV
// log at path. Results queued before the call are discarded. While logging
// is active the result channel belongs to the logger: GetResult, Poll and
// DrainResults return ErrResultChannelBusy.
func (c *Client) StartLogging(path string) error {
	results, readerDone, err := c.acquire(consumerLogging)
	if err != nil {
		return err
	}

	file, err := csvlog.Create(path)
	if err != nil {
		c.release(consumerLogging)
		return err
	}
	err = file.ResultHeader()
	if err == nil {
		err = file.Comment("result log started " + time.Now().Format(time.RFC3339))
	}
	if err != nil {
		file.Close()
		c.release(consumerLogging)
		return err
	}

	if n := drainQueued(results); n > 0 {
		metrics.ResultsDropped.WithLabelValues("stale").Add(float64(n))
	}

	l := &resultLogger{
		path: path,
		file: file,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	c.stateMu.Lock()
	c.logger = l
	c.stateMu.Unlock()

	go l.run(results, readerDone)
	log.Info("result logging started", "path", path)
	return nil
}

// Logging reports whether continuous logging is active.
func (c *Client) Logging() bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.logger != nil
}

// StopLogging stops continuous logging and closes the log file. It returns
// the first write error encountered while logging, if any. It is a no-op
// when logging is not active.
func (c *Client) StopLogging() error {
	c.stateMu.Lock()
	l := c.logger
	c.logger = nil
	c.stateMu.Unlock()
	if l == nil {
		return nil
	}

	close(l.stop)
	<-l.done
	err := errors.Join(l.err, l.file.Close())
	c.release(consumerLogging)
	log.Info("result logging stopped", "path", l.path)
	return err
}
