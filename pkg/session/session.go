// Package session drives measurement sessions against a TMF8806 measurement
// service: configuration, factory calibration, measurement, result capture
// and guaranteed teardown.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/ams-OSRAM/tmf8806-zmq-data-logger/internal/csvlog"
	"github.com/ams-OSRAM/tmf8806-zmq-data-logger/internal/persistence"
	"github.com/ams-OSRAM/tmf8806-zmq-data-logger/pkg/tmf8806/model"
	"github.com/ams-OSRAM/tmf8806-zmq-data-logger/pkg/tmf8806/spec"
	"github.com/ams-OSRAM/tmf8806-zmq-data-logger/pkg/version"
)

// archiveDatatype is the datatype directory and file prefix of archives.
const archiveDatatype = "tmf8806"

// closeTimeout bounds the stop command issued during teardown.
const closeTimeout = 5 * time.Second

// ErrNoLog is returned by operations that write to the session log before
// OpenLog was called.
var ErrNoLog = errors.New("session log not open")

// ErrAlreadySwept is returned by Sweep when the session already ran a sweep.
// A session log holds exactly one sweep.
var ErrAlreadySwept = errors.New("session already swept")

// Service is the measurement service a Session drives. *client.Client
// implements it.
type Service interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Connected() bool

	GetConfiguration(ctx context.Context) (model.MeasureConfig, error)
	GetHistogramConfig(ctx context.Context) (model.HistogramConfig, error)
	SetHistogramConfig(ctx context.Context, cfg model.HistogramConfig) error
	StartMeasurement(ctx context.Context, cfg model.MeasureConfig) (bool, error)
	StopMeasurement(ctx context.Context) error
	GetCalibration(ctx context.Context) (model.CalibrationBlob, error)

	GetResult(ctx context.Context) (*model.ResultRecord, error)
	DrainResults(timeout time.Duration) (int, error)

	StartLogging(path string) error
	StopLogging() error
}

// Config is the configuration of a Session.
type Config struct {
	// Kind names the session in archives, e.g. "calibration".
	Kind string

	// CommandAddr and ResultAddr are recorded in the archive.
	CommandAddr string
	ResultAddr  string

	// ResultTimeout bounds the wait for a one-shot result.
	ResultTimeout time.Duration

	// DrainTimeout bounds the wait for a stale result before a one-shot
	// capture.
	DrainTimeout time.Duration

	// CaptureCalibration logs the calibration blob of every sweep variant.
	CaptureCalibration bool

	// ArchiveDir is where the session archive is written on Close. Empty
	// disables archiving.
	ArchiveDir string
}

// Session drives one measurement session. Its methods are not safe for
// concurrent use; Close may be called any number of times.
type Session struct {
	config  Config
	service Service
	emitter Emitter

	file      *csvlog.File
	measuring bool
	swept     bool
	archive   model.SessionArchive

	closeOnce sync.Once
	closeErr  error
}

// New returns a Session driving service. Zero timeouts are set to their
// defaults.
func New(service Service, emitter Emitter, config Config) *Session {
	if config.ResultTimeout == 0 {
		config.ResultTimeout = spec.DefaultResultTimeout
	}
	if config.DrainTimeout == 0 {
		config.DrainTimeout = spec.DrainTimeout
	}
	return &Session{
		config:  config,
		service: service,
		emitter: emitter,
		archive: model.SessionArchive{
			Version:     version.Version,
			ID:          uuid.NewString(),
			Kind:        config.Kind,
			CommandAddr: config.CommandAddr,
			ResultAddr:  config.ResultAddr,
		},
	}
}

// ID returns the unique identifier of the session.
func (s *Session) ID() string {
	return s.archive.ID
}

// OpenLog creates the session log at path. The log is closed by Close.
func (s *Session) OpenLog(path string) error {
	if s.file != nil {
		return fmt.Errorf("session log already open")
	}
	f, err := csvlog.Create(path)
	if err != nil {
		return err
	}
	s.file = f
	log.Debug("session log opened", "path", path, "session", s.archive.ID)
	return nil
}

// Log returns the session log, or nil if none is open.
func (s *Session) Log() *csvlog.File {
	return s.file
}

// comment writes a #COM line when a session log is open.
func (s *Session) comment(text string) error {
	if s.file == nil {
		return nil
	}
	return s.file.Comment(text)
}

// Connect connects to the service. A connection failure is returned as is
// (a *client.ConnectionError for the ZeroMQ client); the session must not
// be used further except for Close.
func (s *Session) Connect(ctx context.Context) error {
	if err := s.service.Connect(ctx); err != nil {
		s.emitter.OnError(err)
		return err
	}
	s.archive.StartTime = time.Now()
	s.emitter.OnConnect(s.config.CommandAddr, s.config.ResultAddr)
	return s.comment("connected to server")
}

// StopMeasurement stops the running measurement. It is a no-op when none
// is running.
func (s *Session) StopMeasurement(ctx context.Context) error {
	if err := s.service.StopMeasurement(ctx); err != nil {
		return err
	}
	s.measuring = false
	return nil
}

// Configuration returns the current measurement configuration.
func (s *Session) Configuration(ctx context.Context) (model.MeasureConfig, error) {
	return s.service.GetConfiguration(ctx)
}

// HistogramConfig returns the histogram classes the service publishes.
func (s *Session) HistogramConfig(ctx context.Context) (model.HistogramConfig, error) {
	return s.service.GetHistogramConfig(ctx)
}

// SetHistogramConfig selects the histogram classes the service publishes.
func (s *Session) SetHistogramConfig(ctx context.Context, cfg model.HistogramConfig) error {
	return s.service.SetHistogramConfig(ctx, cfg)
}

// RunFactoryCalibration switches cfg to factory calibration, runs it to
// completion and stops the measurement.
func (s *Session) RunFactoryCalibration(ctx context.Context, cfg *model.MeasureConfig) error {
	cfg.Data.Command = model.CommandFactoryCalib
	s.measuring = true
	if _, err := s.service.StartMeasurement(ctx, *cfg); err != nil {
		return err
	}
	return s.StopMeasurement(ctx)
}

// RunMeasurement switches cfg to measurement and starts it. It returns
// whether the service applied factory calibration data.
func (s *Session) RunMeasurement(ctx context.Context, cfg *model.MeasureConfig) (bool, error) {
	cfg.Data.Command = model.CommandMeasure
	s.measuring = true
	return s.service.StartMeasurement(ctx, *cfg)
}

// Calibration returns the blob of the last factory calibration.
func (s *Session) Calibration(ctx context.Context) (model.CalibrationBlob, error) {
	return s.service.GetCalibration(ctx)
}

// DrainResults discards stale results. Draining an empty queue is a no-op.
func (s *Session) DrainResults() (int, error) {
	n, err := s.service.DrainResults(s.config.DrainTimeout)
	if n > 0 {
		s.emitter.OnDebug(fmt.Sprintf("discarded %d stale results", n))
	}
	return n, err
}

// WaitResult waits for one result. When none arrives within the result
// timeout it returns (nil, nil) and the caller skips the result.
func (s *Session) WaitResult(ctx context.Context) (*model.ResultRecord, error) {
	timeout, cancel := context.WithTimeout(ctx, s.config.ResultTimeout)
	defer cancel()
	rec, err := s.service.GetResult(timeout)
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		log.Warn("no result received", "timeout", s.config.ResultTimeout)
		return nil, nil
	}
	return rec, err
}

// CaptureOneResult discards stale results, then waits for one result as
// WaitResult does. Callers that trigger the result themselves should drain
// before triggering and call WaitResult afterwards.
func (s *Session) CaptureOneResult(ctx context.Context) (*model.ResultRecord, error) {
	if _, err := s.DrainResults(); err != nil {
		return nil, err
	}
	return s.WaitResult(ctx)
}

// StartLogging starts continuous logging of every result to path. One-shot
// capture is refused until StopLogging.
func (s *Session) StartLogging(path string) error {
	if err := s.service.StartLogging(path); err != nil {
		return err
	}
	s.emitter.OnLogging(path)
	return nil
}

// StopLogging stops continuous logging. It is a no-op when not logging.
func (s *Session) StopLogging() error {
	return s.service.StopLogging()
}

// Close tears the session down: it stops a measurement started by the
// session, stops logging, disconnects, closes the session log and writes
// the archive. Every step runs even if an earlier one fails; their errors
// are joined. Only the first call does anything; later calls return the
// same error.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		if s.measuring && s.service.Connected() {
			ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
			if err := s.StopMeasurement(ctx); err != nil {
				errs = append(errs, fmt.Errorf("stop measurement: %w", err))
			}
			cancel()
		}
		if err := s.service.StopLogging(); err != nil {
			errs = append(errs, fmt.Errorf("stop logging: %w", err))
		}
		if err := s.service.Disconnect(); err != nil {
			errs = append(errs, fmt.Errorf("disconnect: %w", err))
		}
		s.archive.EndTime = time.Now()
		if s.file != nil {
			errs = append(errs, s.file.Comment("disconnect from server"), s.file.Close())
		}
		if s.config.ArchiveDir != "" {
			path, err := persistence.WriteDataFile(s.config.ArchiveDir, archiveDatatype,
				s.config.Kind, s.archive.ID, s.archive)
			if err != nil {
				errs = append(errs, fmt.Errorf("write archive: %w", err))
			} else {
				log.Info("session archived", "path", path)
			}
		}
		s.emitter.OnDisconnect()
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}

// Archive returns the archival record collected so far.
func (s *Session) Archive() model.SessionArchive {
	return s.archive
}
