package simulator

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jellydator/ttlcache/v3"

	"github.com/ams-OSRAM/tmf8806-zmq-data-logger/internal/metrics"
	"github.com/ams-OSRAM/tmf8806-zmq-data-logger/pkg/tmf8806/model"
	"github.com/ams-OSRAM/tmf8806-zmq-data-logger/pkg/tmf8806/spec"
)

var (
	errNoCalibration  = errors.New("no factory calibration available")
	errUnknownCommand = errors.New("unknown command")
	errMissingPayload = errors.New("missing payload")
)

// handle decodes one request and returns the reply to send. Every request
// gets exactly one reply; failures are reported in the reply, never by
// dropping it.
func (s *Server) handle(data []byte) model.Reply {
	var req model.Request
	if err := json.Unmarshal(data, &req); err != nil {
		log.Warn("invalid request", "error", err)
		metrics.SimulatorCommands.WithLabelValues("invalid").Inc()
		return errorReply(err)
	}
	metrics.SimulatorCommands.WithLabelValues(req.Command).Inc()
	log.Debug("command received", "cmd", req.Command)

	payload, err := s.dispatch(req)
	if err != nil {
		log.Info("command rejected", "cmd", req.Command, "error", err)
		return errorReply(err)
	}
	reply := model.Reply{OK: true}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return errorReply(err)
		}
		reply.Payload = b
	}
	return reply
}

func errorReply(err error) model.Reply {
	return model.Reply{Error: err.Error()}
}

func (s *Server) dispatch(req model.Request) (interface{}, error) {
	switch req.Command {
	case spec.CmdGetConfiguration:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.measure, nil

	case spec.CmdSetConfiguration:
		var cfg model.MeasureConfig
		if err := decodePayload(req.Payload, &cfg); err != nil {
			return nil, err
		}
		if err := validate(cfg); err != nil {
			return nil, err
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		s.measure = cfg
		return nil, nil

	case spec.CmdGetHistogramConfig:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.histogram, nil

	case spec.CmdSetHistogramConfig:
		var cfg model.HistogramConfig
		if err := decodePayload(req.Payload, &cfg); err != nil {
			return nil, err
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		s.histogram = cfg
		return nil, nil

	case spec.CmdStartMeasurement:
		var cfg model.MeasureConfig
		if err := decodePayload(req.Payload, &cfg); err != nil {
			return nil, err
		}
		if err := validate(cfg); err != nil {
			return nil, err
		}
		calibrated, err := s.start(cfg)
		if err != nil {
			return nil, err
		}
		return model.StartReply{Calibrated: calibrated}, nil

	case spec.CmdStopMeasurement:
		s.mu.Lock()
		defer s.mu.Unlock()
		s.stopLocked()
		return nil, nil

	case spec.CmdGetCalibration:
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.lastCal == nil {
			return nil, errNoCalibration
		}
		return model.CalibrationReply{Data: s.lastCal}, nil

	default:
		return nil, fmt.Errorf("%w: %q", errUnknownCommand, req.Command)
	}
}

func decodePayload(payload json.RawMessage, v interface{}) error {
	if len(payload) == 0 {
		return errMissingPayload
	}
	return json.Unmarshal(payload, v)
}

// validate rejects configurations the device would refuse.
func validate(cfg model.MeasureConfig) error {
	d := cfg.Data
	switch d.Command {
	case model.CommandMeasure, model.CommandFactoryCalib:
	default:
		return fmt.Errorf("invalid command %s", d.Command)
	}
	if d.KIters == 0 {
		return errors.New("kIters must be greater than zero")
	}
	if d.Data.SpadSelect > model.SpadAttenuated {
		return fmt.Errorf("invalid SPAD selection %d", d.Data.SpadSelect)
	}
	if d.Algo.DistanceMode > model.Distance4000mm {
		return fmt.Errorf("invalid distance mode %d", d.Algo.DistanceMode)
	}
	if d.Data.SpadDeadTime > 7 {
		return fmt.Errorf("invalid SPAD dead time %d", d.Data.SpadDeadTime)
	}
	return nil
}

// variantKey identifies the calibration slot of a configuration.
func variantKey(cfg model.MeasureConfig) string {
	return fmt.Sprintf("%d/%d/%t", cfg.Data.Data.SpadSelect,
		cfg.Data.Algo.DistanceMode, cfg.Data.Algo.VcselClkDiv2)
}

// start runs a factory calibration or starts a measurement. A running
// measurement is stopped first.
func (s *Server) start(cfg model.MeasureConfig) (bool, error) {
	s.mu.Lock()
	s.stopLocked()
	s.measure = cfg
	s.mu.Unlock()

	key := variantKey(cfg)
	if cfg.Data.Command == model.CommandFactoryCalib {
		select {
		case <-time.After(s.config.CalibrationTime):
		case <-s.ctx.Done():
			return false, s.ctx.Err()
		}
		blob := s.calibrationFor(cfg)
		s.calibrations.Set(key, blob, ttlcache.DefaultTTL)
		s.mu.Lock()
		s.lastCal = blob
		s.mu.Unlock()
		log.Info("factory calibration completed", "variant", key)
		return true, nil
	}

	calibrated := s.calibrations.Get(key) != nil
	s.mu.Lock()
	defer s.mu.Unlock()
	s.run = s.startMeasurement(cfg, s.histogram, calibrated, s.rnd.Int63())
	log.Info("measurement started", "variant", key, "calibrated", calibrated,
		"period_ms", cfg.Data.RepetitionPeriodMs)
	return calibrated, nil
}

// stopLocked stops the running measurement, if any, and waits for its
// goroutine to exit. s.mu must be held.
func (s *Server) stopLocked() {
	if s.run == nil {
		return
	}
	s.run.stop()
	s.run = nil
	log.Info("measurement stopped")
}

// calibrationFor derives a calibration blob for cfg. The first bytes encode
// the variant so that blobs of different variants always differ.
func (s *Server) calibrationFor(cfg model.MeasureConfig) model.CalibrationBlob {
	blob := make(model.CalibrationBlob, spec.CalibrationSize)
	blob[0] = 0x01
	blob[1] = uint8(cfg.Data.Data.SpadSelect)
	blob[2] = uint8(cfg.Data.Algo.DistanceMode)
	if cfg.Data.Algo.VcselClkDiv2 {
		blob[3] = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 4; i < len(blob); i++ {
		blob[i] = uint8(s.rnd.Intn(256))
	}
	return blob
}
