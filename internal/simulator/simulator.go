// Package simulator implements a stand-in for the TMF8806 measurement
// service. It speaks the same command/result protocol as the evaluation
// board and produces synthetic results, so that the tools can be exercised
// without hardware.
package simulator

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-zeromq/zmq4"
	"github.com/jellydator/ttlcache/v3"

	"github.com/ams-OSRAM/tmf8806-zmq-data-logger/internal/metrics"
	"github.com/ams-OSRAM/tmf8806-zmq-data-logger/pkg/tmf8806/model"
)

// Config configures the simulated device.
type Config struct {
	// CalibrationTTL is how long a factory calibration stays valid. A
	// measurement started after it expired reports uncalibrated.
	CalibrationTTL time.Duration

	// CalibrationTime is how long a factory calibration takes.
	CalibrationTime time.Duration

	// IntegrationTime is the delay between starting a one-shot measurement
	// and publishing its result.
	IntegrationTime time.Duration

	// TargetDistanceMm is the distance of the simulated object.
	TargetDistanceMm uint16

	// Seed seeds the noise source. Zero uses the current time.
	Seed int64
}

// DefaultConfig returns the default simulator configuration.
func DefaultConfig() Config {
	return Config{
		CalibrationTTL:   10 * time.Minute,
		CalibrationTime:  50 * time.Millisecond,
		IntegrationTime:  20 * time.Millisecond,
		TargetDistanceMm: 600,
	}
}

// Server is a simulated measurement service.
type Server struct {
	config Config

	ctx    context.Context
	cancel context.CancelFunc
	rep    zmq4.Socket
	pub    zmq4.Socket
	pubMu  sync.Mutex
	once   sync.Once

	calibrations *ttlcache.Cache[string, model.CalibrationBlob]

	// resultNumber is shared by successive measurements.
	resultNumber atomic.Uint32
	startTime    time.Time

	// mu protects the device state below.
	mu        sync.Mutex
	measure   model.MeasureConfig
	histogram model.HistogramConfig
	lastCal   model.CalibrationBlob
	run       *measurement
	rnd       *rand.Rand
}

// New returns a Server with device state at its power-up defaults.
func New(config Config) *Server {
	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	ctx, cancel := context.WithCancel(context.Background())

	cache := ttlcache.New(
		ttlcache.WithTTL[string, model.CalibrationBlob](config.CalibrationTTL),
		ttlcache.WithDisableTouchOnHit[string, model.CalibrationBlob](),
	)
	cache.OnEviction(func(ctx context.Context,
		er ttlcache.EvictionReason,
		i *ttlcache.Item[string, model.CalibrationBlob]) {
		log.Debug("calibration evicted", "variant", i.Key(), "reason", er)
	})
	go cache.Start()

	return &Server{
		config:       config,
		ctx:          ctx,
		cancel:       cancel,
		calibrations: cache,
		measure:      model.DefaultMeasureConfig(),
		rnd:          rand.New(rand.NewSource(seed)),
		startTime:    time.Now(),
	}
}

// Listen binds the command and result endpoints, e.g. "tcp://*:5555".
func (s *Server) Listen(commandAddr, resultAddr string) error {
	rep := zmq4.NewRep(s.ctx)
	if err := rep.Listen(commandAddr); err != nil {
		rep.Close()
		return err
	}
	pub := zmq4.NewPub(s.ctx)
	if err := pub.Listen(resultAddr); err != nil {
		pub.Close()
		rep.Close()
		return err
	}
	s.rep = rep
	s.pub = pub
	log.Info("simulator listening", "cmd", s.CommandAddr(), "result", s.ResultAddr())
	return nil
}

// CommandAddr returns the bound command endpoint.
func (s *Server) CommandAddr() string {
	return "tcp://" + s.rep.Addr().String()
}

// ResultAddr returns the bound result endpoint.
func (s *Server) ResultAddr() string {
	return "tcp://" + s.pub.Addr().String()
}

// Serve handles commands until ctx is done or the server is closed. It
// returns nil in both cases.
func (s *Server) Serve(ctx context.Context) error {
	if s.rep == nil {
		return errors.New("simulator: Listen must be called before Serve")
	}
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.ctx.Done():
		}
	}()

	for {
		msg, err := s.rep.Recv()
		if err != nil {
			if s.ctx.Err() != nil {
				return nil
			}
			return err
		}
		reply := s.handle(msg.Bytes())
		b, err := json.Marshal(reply)
		if err != nil {
			// Reply only contains marshallable fields.
			return err
		}
		if err := s.rep.Send(zmq4.NewMsg(b)); err != nil {
			if s.ctx.Err() != nil {
				return nil
			}
			// The requester may have given up and closed its socket.
			log.Warn("cannot send reply", "error", err)
		}
	}
}

// Close stops any running measurement and closes both endpoints.
func (s *Server) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.stopLocked()
		s.mu.Unlock()

		s.cancel()
		s.calibrations.Stop()
		if s.rep != nil {
			err = errors.Join(s.rep.Close(), s.pub.Close())
		}
		log.Info("simulator closed")
	})
	return err
}

// publish sends rec on the result channel.
func (s *Server) publish(rec model.ResultRecord) {
	b, err := json.Marshal(rec)
	if err != nil {
		log.Error("cannot encode result", "error", err)
		return
	}
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	if err := s.pub.Send(zmq4.NewMsg(b)); err != nil {
		log.Debug("cannot publish result", "error", err)
		return
	}
	metrics.SimulatorResults.Inc()
}
