package session

import (
	"context"
	"errors"
	"time"

	"github.com/ams-OSRAM/tmf8806-zmq-data-logger/pkg/tmf8806/model"
	"github.com/ams-OSRAM/tmf8806-zmq-data-logger/pkg/tmf8806/spec"
)

// wait blocks for d or until ctx is done.
func wait(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// RunActive calibrates the sensor with the 40best SPADs and summed
// histograms, then logs a periodic measurement to logPath for duration.
// The session is closed before returning.
func RunActive(ctx context.Context, s *Session, logPath string, duration time.Duration) (err error) {
	defer func() {
		err = errors.Join(err, s.Close())
	}()

	if err := s.Connect(ctx); err != nil {
		return err
	}
	// A measurement may still be running from an earlier session.
	if err := s.StopMeasurement(ctx); err != nil {
		return err
	}

	cfg, err := s.Configuration(ctx)
	if err != nil {
		return err
	}
	cfg.Data.KIters = spec.FactoryCalibKIters
	cfg.Data.Data.SpadSelect = model.Spad40Best

	hist, err := s.HistogramConfig(ctx)
	if err != nil {
		return err
	}
	hist.Summed = true
	if err := s.SetHistogramConfig(ctx, hist); err != nil {
		return err
	}
	s.emitter.OnProgress("Configured histogram dumping")

	s.emitter.OnProgress("Start factory calibration")
	if err := s.RunFactoryCalibration(ctx, &cfg); err != nil {
		return err
	}
	s.emitter.OnProgress("Finished factory calibration")

	if err := s.StartLogging(logPath); err != nil {
		return err
	}
	calibrated, err := s.RunMeasurement(ctx, &cfg)
	if err != nil {
		return err
	}
	s.emitter.OnStart(calibrated)

	if err := wait(ctx, duration); err != nil {
		return err
	}
	if err := s.StopMeasurement(ctx); err != nil {
		return err
	}
	if err := s.StopLogging(); err != nil {
		return err
	}
	s.emitter.OnProgress("Stopped measurement")
	return nil
}

// RunPassive logs whatever the service publishes to logPath for duration,
// without sending any configuration or measurement command. The session is
// closed before returning.
func RunPassive(ctx context.Context, s *Session, logPath string, duration time.Duration) (err error) {
	defer func() {
		err = errors.Join(err, s.Close())
	}()

	if err := s.Connect(ctx); err != nil {
		return err
	}
	if err := s.StartLogging(logPath); err != nil {
		return err
	}
	if err := wait(ctx, duration); err != nil {
		return err
	}
	return s.StopLogging()
}

// RunCalibrationSweep runs a factory calibration and a one-shot cross-talk
// measurement for every variant of plan and writes them to a sweep log at
// logPath. The session is closed before returning.
func RunCalibrationSweep(ctx context.Context, s *Session, logPath string, plan Plan) (err error) {
	defer func() {
		err = errors.Join(err, s.Close())
	}()

	if err := s.OpenLog(logPath); err != nil {
		return err
	}
	if err := s.Connect(ctx); err != nil {
		return err
	}
	if err := s.StopMeasurement(ctx); err != nil {
		return err
	}
	if err := s.Log().SweepHeader(s.config.CaptureCalibration); err != nil {
		return err
	}
	if _, err := s.DrainResults(); err != nil {
		return err
	}

	hist, err := s.HistogramConfig(ctx)
	if err != nil {
		return err
	}
	hist.Prox = true
	if err := s.SetHistogramConfig(ctx, hist); err != nil {
		return err
	}
	if err := s.comment("configured histogram dumping"); err != nil {
		return err
	}

	cfg, err := s.Configuration(ctx)
	if err != nil {
		return err
	}
	cfg.Data.KIters = plan.KIters
	cfg.Data.RepetitionPeriodMs = plan.RepetitionPeriodMs
	return s.Sweep(ctx, &cfg, plan.Variants)
}
