package model

import "fmt"

// MeasureCommand selects what a start_measurement command does.
type MeasureCommand uint8

const (
	// CommandMeasure starts a (possibly periodic) distance measurement.
	CommandMeasure = MeasureCommand(0x10)
	// CommandFactoryCalib runs a factory calibration and returns when it has
	// completed.
	CommandFactoryCalib = MeasureCommand(0x20)
)

func (c MeasureCommand) String() string {
	switch c {
	case CommandMeasure:
		return "measure"
	case CommandFactoryCalib:
		return "factory calibration"
	default:
		return fmt.Sprintf("command(0x%02x)", uint8(c))
	}
}

// SpadSelect selects which SPADs take part in a measurement. Fewer SPADs
// cope better with a high cross-talk peak but have a worse SNR.
type SpadSelect uint8

const (
	SpadAll        = SpadSelect(0)
	Spad40Best     = SpadSelect(1)
	Spad20Best     = SpadSelect(2)
	SpadAttenuated = SpadSelect(3)
)

func (s SpadSelect) String() string {
	switch s {
	case SpadAll:
		return "all SPADs"
	case Spad40Best:
		return "40best SPADs"
	case Spad20Best:
		return "20best SPADs"
	case SpadAttenuated:
		return "attenuated SPADs"
	default:
		return fmt.Sprintf("spad select %d", uint8(s))
	}
}

// DistanceMode selects the maximum range. The 4m mode is only active when the
// VCSEL clock runs at 20MHz (VcselClkDiv2 set); the device falls back to
// 2.5m otherwise.
type DistanceMode uint8

const (
	Distance2500mm = DistanceMode(0)
	Distance4000mm = DistanceMode(1)
)

func (d DistanceMode) String() string {
	switch d {
	case Distance2500mm:
		return "2.5m mode"
	case Distance4000mm:
		return "4m mode"
	default:
		return fmt.Sprintf("distance mode %d", uint8(d))
	}
}

// MeasureConfig is the measurement configuration exchanged with the service.
// Field paths mirror the device command layout.
type MeasureConfig struct {
	Data MeasureData `json:"data"`
}

// MeasureData holds the measurement command parameters.
type MeasureData struct {
	Command MeasureCommand `json:"command"`
	// KIters is the number of iterations in thousands.
	KIters uint16 `json:"kIters"`
	// RepetitionPeriodMs is the measurement period. Zero means one-shot.
	RepetitionPeriodMs uint8 `json:"repetitionPeriodMs"`

	SNR            SNRSettings    `json:"snr"`
	Data           DataSettings   `json:"data"`
	Algo           AlgoSettings   `json:"algo"`
	Gpio           GpioSettings   `json:"gpio"`
	SpreadSpectrum SpreadSpectrum `json:"spreadSpectrum"`
}

// SNRSettings configures the detection threshold.
type SNRSettings struct {
	Threshold                   uint8 `json:"threshold"`
	VcselClkSpreadSpecAmplitude uint8 `json:"vcselClkSpreadSpecAmplitude"`
}

// DataSettings selects which calibration and state data accompany the command.
type DataSettings struct {
	SpadSelect SpadSelect `json:"spadSelect"`
	FactoryCal bool       `json:"factoryCal"`
	AlgState   bool       `json:"algState"`
	// SpadDeadTime is encoded as in the device register (0..7).
	SpadDeadTime uint8 `json:"spadDeadTime"`
}

// AlgoSettings configures the on-chip distance algorithm.
type AlgoSettings struct {
	DistanceEnabled    bool         `json:"distanceEnabled"`
	VcselClkDiv2       bool         `json:"vcselClkDiv2"`
	DistanceMode       DistanceMode `json:"distanceMode"`
	ImmediateInterrupt bool         `json:"immediateInterrupt"`
	AlgKeepReady       bool         `json:"algKeepReady"`
}

// GpioSettings configures the two GPIO pins.
type GpioSettings struct {
	Gpio0 uint8 `json:"gpio0"`
	Gpio1 uint8 `json:"gpio1"`
}

// SpreadSpectrum configures the VCSEL and TDC clock spreading.
type SpreadSpectrum struct {
	VcselAmplitude uint8 `json:"vcselAmplitude"`
	VcselConfig    uint8 `json:"vcselConfig"`
	TdcAmplitude   uint8 `json:"tdcAmplitude"`
	TdcConfig      uint8 `json:"tdcConfig"`
}

// DefaultMeasureConfig returns the configuration the service reports after
// power-up.
func DefaultMeasureConfig() MeasureConfig {
	return MeasureConfig{
		Data: MeasureData{
			Command:            CommandMeasure,
			KIters:             400,
			RepetitionPeriodMs: 33,
			SNR:                SNRSettings{Threshold: 6},
			Data:               DataSettings{SpadSelect: SpadAll, SpadDeadTime: 4},
			Algo: AlgoSettings{
				DistanceEnabled: true,
				DistanceMode:    Distance2500mm,
			},
		},
	}
}

// HistogramConfig selects which histogram classes the service publishes
// alongside each result.
type HistogramConfig struct {
	EC       bool `json:"ec"`
	Prox     bool `json:"prox"`
	Distance bool `json:"distance"`
	Pileup   bool `json:"pileup"`
	Summed   bool `json:"summed"`
}
