// Package config loads calibration sweep definitions from YAML.
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ams-OSRAM/tmf8806-zmq-data-logger/pkg/session"
	"github.com/ams-OSRAM/tmf8806-zmq-data-logger/pkg/tmf8806/model"
	"github.com/ams-OSRAM/tmf8806-zmq-data-logger/pkg/tmf8806/spec"
)

// Sweep is a calibration sweep definition:
//
//	k_iters: 4000
//	repetition_period_ms: 0
//	capture_calibration: true
//	variants:
//	  - distance_mode: 2.5m
//	    spad_select: all
//	  - distance_mode: 4m
//	    spad_select: 40best
//	    vcsel_clk_div2: true
type Sweep struct {
	KIters             uint16          `yaml:"k_iters"`
	RepetitionPeriodMs uint8           `yaml:"repetition_period_ms"`
	CaptureCalibration bool            `yaml:"capture_calibration"`
	Variants           []VariantConfig `yaml:"variants"`
}

// VariantConfig is one sweep variant.
type VariantConfig struct {
	// Label replaces the label derived from the values.
	Label string `yaml:"label"`
	// SpadSelect is one of all, 40best, 20best, attenuated.
	SpadSelect string `yaml:"spad_select"`
	// DistanceMode is 2.5m or 4m.
	DistanceMode string `yaml:"distance_mode"`
	VcselClkDiv2 bool   `yaml:"vcsel_clk_div2"`
}

var spadSelects = map[string]model.SpadSelect{
	"all":        model.SpadAll,
	"40best":     model.Spad40Best,
	"20best":     model.Spad20Best,
	"attenuated": model.SpadAttenuated,
}

var distanceModes = map[string]model.DistanceMode{
	"2.5m": model.Distance2500mm,
	"4m":   model.Distance4000mm,
}

// Default returns the built-in sweep: one-shot, 4000 kIters, the six
// standard variants.
func Default() *Sweep {
	s := &Sweep{}
	s.applyDefaults()
	return s
}

// Load reads, completes and validates the sweep definition at path.
func Load(path string) (*Sweep, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

// Parse decodes, completes and validates a sweep definition.
func Parse(raw []byte) (*Sweep, error) {
	var s Sweep
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	s.applyDefaults()
	if err := Validate(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Sweep) applyDefaults() {
	if s.KIters == 0 {
		s.KIters = spec.FactoryCalibKIters
	}
	if len(s.Variants) == 0 {
		for _, v := range session.DefaultVariants() {
			s.Variants = append(s.Variants, VariantConfig{
				SpadSelect:   spadName(v.SpadSelect),
				DistanceMode: distanceName(v.DistanceMode),
				VcselClkDiv2: v.VcselClkDiv2,
			})
		}
	}
}

func spadName(s model.SpadSelect) string {
	for name, v := range spadSelects {
		if v == s {
			return name
		}
	}
	return ""
}

func distanceName(d model.DistanceMode) string {
	for name, v := range distanceModes {
		if v == d {
			return name
		}
	}
	return ""
}

// Plan returns the session plan of a validated sweep.
func (s *Sweep) Plan() session.Plan {
	plan := session.Plan{
		KIters:             s.KIters,
		RepetitionPeriodMs: s.RepetitionPeriodMs,
	}
	for _, v := range s.Variants {
		plan.Variants = append(plan.Variants, session.Variant{
			SpadSelect:   spadSelects[v.SpadSelect],
			DistanceMode: distanceModes[v.DistanceMode],
			VcselClkDiv2: v.VcselClkDiv2,
			Name:         v.Label,
		})
	}
	return plan
}
