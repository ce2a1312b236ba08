package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/ams-OSRAM/tmf8806-zmq-data-logger/pkg/session"
	"github.com/ams-OSRAM/tmf8806-zmq-data-logger/pkg/tmf8806/model"
	"github.com/ams-OSRAM/tmf8806-zmq-data-logger/pkg/tmf8806/spec"
)

func TestDefault(t *testing.T) {
	s := Default()
	if err := Validate(s); err != nil {
		t.Fatalf("default sweep is invalid: %v", err)
	}
	plan := s.Plan()
	if !reflect.DeepEqual(plan, session.DefaultPlan()) {
		t.Errorf("Default().Plan() = %+v, want %+v", plan, session.DefaultPlan())
	}
}

func TestParse(t *testing.T) {
	raw := []byte(`
k_iters: 1000
capture_calibration: true
variants:
  - distance_mode: 2.5m
    spad_select: attenuated
  - distance_mode: 4m
    spad_select: 20best
    vcsel_clk_div2: true
    label: "long range;20 best"
`)
	s, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !s.CaptureCalibration {
		t.Errorf("capture_calibration not read")
	}
	want := session.Plan{
		KIters: 1000,
		Variants: []session.Variant{
			{SpadSelect: model.SpadAttenuated, DistanceMode: model.Distance2500mm},
			{SpadSelect: model.Spad20Best, DistanceMode: model.Distance4000mm,
				VcselClkDiv2: true, Name: "long range;20 best"},
		},
	}
	if got := s.Plan(); !reflect.DeepEqual(got, want) {
		t.Errorf("Plan() = %+v, want %+v", got, want)
	}
}

func TestParse_defaults(t *testing.T) {
	s, err := Parse([]byte("repetition_period_ms: 0\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.KIters != spec.FactoryCalibKIters {
		t.Errorf("KIters = %d, want %d", s.KIters, spec.FactoryCalibKIters)
	}
	if len(s.Variants) != len(session.DefaultVariants()) {
		t.Errorf("got %d variants, want the default ones", len(s.Variants))
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		sweep   Sweep
		wantErr string
	}{
		{
			name:    "no k_iters",
			sweep:   Sweep{Variants: []VariantConfig{{SpadSelect: "all", DistanceMode: "4m"}}},
			wantErr: "k_iters",
		},
		{
			name:    "no variants",
			sweep:   Sweep{KIters: 4000},
			wantErr: "at least one variant",
		},
		{
			name:    "invalid spad_select",
			sweep:   Sweep{KIters: 4000, Variants: []VariantConfig{{SpadSelect: "10best", DistanceMode: "4m"}}},
			wantErr: "spad_select",
		},
		{
			name:    "invalid distance_mode",
			sweep:   Sweep{KIters: 4000, Variants: []VariantConfig{{SpadSelect: "all", DistanceMode: "5m"}}},
			wantErr: "distance_mode",
		},
		{
			name: "duplicate variant",
			sweep: Sweep{KIters: 4000, Variants: []VariantConfig{
				{SpadSelect: "all", DistanceMode: "4m"},
				{SpadSelect: "all", DistanceMode: "4m", Label: "again"},
			}},
			wantErr: "same configuration",
		},
		{
			name:    "multi-line label",
			sweep:   Sweep{KIters: 4000, Variants: []VariantConfig{{SpadSelect: "all", DistanceMode: "4m", Label: "a\nb"}}},
			wantErr: "single line",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(&tt.sweep)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sweep.yaml")
	if err := os.WriteFile(path, []byte("variants:\n  - {distance_mode: 4m, spad_select: all}\n"), 0644); err != nil {
		t.Fatalf("cannot write config: %v", err)
	}
	s, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.Variants) != 1 {
		t.Errorf("got %d variants, want 1", len(s.Variants))
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("Load() of a missing file did not fail")
	}
	if _, err := Parse([]byte("variants: [")); err == nil {
		t.Errorf("Parse() of invalid YAML did not fail")
	}
}
