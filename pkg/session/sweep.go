package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/ams-OSRAM/tmf8806-zmq-data-logger/internal/metrics"
	"github.com/ams-OSRAM/tmf8806-zmq-data-logger/pkg/tmf8806/model"
	"github.com/ams-OSRAM/tmf8806-zmq-data-logger/pkg/tmf8806/spec"
)

// Variant is one configuration of a calibration sweep.
type Variant struct {
	SpadSelect   model.SpadSelect
	DistanceMode model.DistanceMode
	VcselClkDiv2 bool

	// Name replaces the label derived from the values when set. It is
	// written as one #CONF field per ";"-separated part.
	Name string
}

// Fields returns the #CONF fields of v: range mode and SPAD selection.
func (v Variant) Fields() []string {
	if v.Name != "" {
		return strings.Split(v.Name, ";")
	}
	return []string{v.DistanceMode.String(), v.SpadSelect.String()}
}

// Label returns the human-readable label of v.
func (v Variant) Label() string {
	return strings.Join(v.Fields(), ";")
}

// Apply writes v into cfg.
func (v Variant) Apply(cfg *model.MeasureConfig) {
	cfg.Data.Data.SpadSelect = v.SpadSelect
	cfg.Data.Algo.DistanceMode = v.DistanceMode
	cfg.Data.Algo.VcselClkDiv2 = v.VcselClkDiv2
}

// DefaultVariants returns the standard sweep: all, 40best and 20best SPADs
// in 2.5m mode, then the same three in 4m mode with the VCSEL clock divided
// by two.
func DefaultVariants() []Variant {
	var out []Variant
	for _, mode := range []struct {
		distance model.DistanceMode
		clkDiv2  bool
	}{
		{model.Distance2500mm, false},
		{model.Distance4000mm, true},
	} {
		for _, spad := range []model.SpadSelect{model.SpadAll, model.Spad40Best, model.Spad20Best} {
			out = append(out, Variant{
				SpadSelect:   spad,
				DistanceMode: mode.distance,
				VcselClkDiv2: mode.clkDiv2,
			})
		}
	}
	return out
}

// Plan is the shared configuration of a calibration sweep.
type Plan struct {
	// KIters is the iteration count of calibration and measurement.
	KIters uint16
	// RepetitionPeriodMs is the measurement period; zero is one-shot.
	RepetitionPeriodMs uint8
	Variants           []Variant
}

// DefaultPlan returns the default one-shot sweep over DefaultVariants.
func DefaultPlan() Plan {
	return Plan{
		KIters:   spec.FactoryCalibKIters,
		Variants: DefaultVariants(),
	}
}

// Sweep runs every variant in order on the shared configuration cfg, which
// is modified in place. Per variant it logs a #CONF line, runs the factory
// calibration, logs the calibration blob if requested, starts a measurement,
// logs the cross-talk and proximity histograms of one result and stops the
// measurement. The first error aborts the sweep. A session runs at most one
// sweep, even an aborted one; later calls return ErrAlreadySwept.
func (s *Session) Sweep(ctx context.Context, cfg *model.MeasureConfig, variants []Variant) error {
	if s.file == nil {
		return ErrNoLog
	}
	if s.swept {
		return ErrAlreadySwept
	}
	s.swept = true
	for i, v := range variants {
		if err := s.runVariant(ctx, cfg, v); err != nil {
			return fmt.Errorf("variant %d (%s): %w", i, v.Label(), err)
		}
		metrics.SweepVariants.Inc()
	}
	return nil
}

func (s *Session) runVariant(ctx context.Context, cfg *model.MeasureConfig, v Variant) error {
	f := s.file
	s.emitter.OnVariant(v)
	if err := f.Config(v.Fields()...); err != nil {
		return err
	}
	v.Apply(cfg)
	entry := model.VariantArchive{
		Label:        v.Label(),
		SpadSelect:   uint8(v.SpadSelect),
		DistanceMode: uint8(v.DistanceMode),
		VcselClkDiv2: v.VcselClkDiv2,
	}

	if err := f.Comment("run factory calibration"); err != nil {
		return err
	}
	if err := s.RunFactoryCalibration(ctx, cfg); err != nil {
		return err
	}
	if s.config.CaptureCalibration {
		blob, err := s.Calibration(ctx)
		if err != nil {
			return err
		}
		if err := f.Calibration(blob); err != nil {
			return err
		}
		entry.Calibration = blob
	}

	if err := f.Comment("start measurements"); err != nil {
		return err
	}
	// Results queued by a previous variant must not be taken for this one.
	if _, err := s.DrainResults(); err != nil {
		return err
	}
	calibrated, err := s.RunMeasurement(ctx, cfg)
	if err != nil {
		return err
	}
	entry.Calibrated = calibrated
	log.Debug("measurement started", "variant", v.Label(), "calibrated", calibrated)

	rec, err := s.WaitResult(ctx)
	if err != nil {
		return err
	}
	if rec != nil {
		s.emitter.OnResult(v, rec)
		if err := f.Xtalk(rec.Result.Xtalk); err != nil {
			return err
		}
		for _, h := range rec.HistogramsOf(model.HistogramProx) {
			if err := f.Histogram(h); err != nil {
				return err
			}
		}
		entry.Captured = true
		entry.Record = *rec
	} else {
		s.emitter.OnMissingResult(v)
	}

	if err := f.Comment("stop measurements"); err != nil {
		return err
	}
	s.archive.Variants = append(s.archive.Variants, entry)
	return s.StopMeasurement(ctx)
}
