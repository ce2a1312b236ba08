package model

import "time"

// HistogramKind identifies a histogram class.
type HistogramKind string

const (
	HistogramEC       = HistogramKind("ec")
	HistogramProx     = HistogramKind("prox")
	HistogramDistance = HistogramKind("distance")
	HistogramPileup   = HistogramKind("pileup")
	HistogramSummed   = HistogramKind("summed")
)

// Result is a single distance measurement result as reported by the device.
type Result struct {
	// ResultNumber increments with every result. It wraps at 255.
	ResultNumber uint8
	// Reliability is the confidence of the detected object (0..63).
	Reliability uint8
	// Status is the measurement status reported in the result info byte.
	Status uint8
	// DistanceMm is the distance of the detected object in millimetres.
	DistanceMm uint16
	// SysClock is the device system tick at the time of the measurement.
	SysClock uint32
	// Temperature is the die temperature in degrees Celsius.
	Temperature int8
	// ReferenceHits is the number of photons counted by the reference SPADs.
	ReferenceHits uint32
	// ObjectHits is the number of photons counted by the object SPADs.
	ObjectHits uint32
	// Xtalk is the cross-talk peak measured for this result.
	Xtalk uint16
}

// Histogram holds the bin counts of one TDC channel.
type Histogram struct {
	Kind    HistogramKind
	Channel int
	Bins    []uint32
}

// ResultRecord is the message published on the result channel: one result
// and the histograms enabled by the current HistogramConfig.
type ResultRecord struct {
	// Time is when the service published the record.
	Time       time.Time
	Result     Result
	Histograms []Histogram `json:",omitempty"`
}

// HistogramsOf returns the histograms of the given kind ordered by channel
// as they were received.
func (r *ResultRecord) HistogramsOf(kind HistogramKind) []Histogram {
	var out []Histogram
	for _, h := range r.Histograms {
		if h.Kind == kind {
			out = append(out, h)
		}
	}
	return out
}

// CalibrationBlob is the opaque factory calibration data produced by a
// calibration run.
type CalibrationBlob []byte
