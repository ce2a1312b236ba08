// Package csvlog writes the tagged, semicolon-delimited log files produced by
// measurement sessions.
//
// The first line of every file is "sep=;" so spreadsheet applications pick up
// the delimiter. Every other line starts with a tag such as #COM or #XTALK
// followed by its fields.
package csvlog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/ams-OSRAM/tmf8806-zmq-data-logger/pkg/tmf8806/model"
	"github.com/ams-OSRAM/tmf8806-zmq-data-logger/pkg/tmf8806/spec"
)

// Line tags.
const (
	TagComment     = "#COM"
	TagConfig      = "#CONF"
	TagCalibration = "#CAL"
	TagXtalk       = "#XTALK"
	TagResult      = "#RES"
	// TagShortHistogram and TagSummedHistogram are suffixed by the TDC index.
	TagShortHistogram  = "#HSHORT"
	TagSummedHistogram = "#HSUM"
)

// Delimiter is the field delimiter of every log file.
const Delimiter = ';'

// ErrClosed is returned by writes to a closed File.
var ErrClosed = errors.New("log file closed")

// File is an append-only tagged log. It is safe for concurrent use.
type File struct {
	mu     sync.Mutex
	w      *csv.Writer
	closer io.Closer
	closed bool
	once   sync.Once
	err    error
}

// New returns a File writing to wc and writes the delimiter declaration.
// Closing the File closes wc.
func New(wc io.WriteCloser) (*File, error) {
	// The declaration itself contains the delimiter, so it bypasses the csv
	// writer, which would quote it.
	if _, err := io.WriteString(wc, "sep="+string(Delimiter)+"\n"); err != nil {
		wc.Close()
		return nil, err
	}
	w := csv.NewWriter(wc)
	w.Comma = Delimiter
	return &File{w: w, closer: wc}, nil
}

// Create creates (or truncates) the file at path and returns a File writing
// to it.
func Create(path string) (*File, error) {
	fp, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return New(fp)
}

func (f *File) write(record []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	if err := f.w.Write(record); err != nil {
		return err
	}
	// Lines are flushed as they are written so that an aborted session still
	// leaves every completed line on disk.
	f.w.Flush()
	return f.w.Error()
}

// Line writes a line with the given tag and fields.
func (f *File) Line(tag string, fields ...string) error {
	return f.write(append([]string{tag}, fields...))
}

// Comment writes a #COM line.
func (f *File) Comment(text string) error {
	return f.Line(TagComment, text)
}

// Config writes a #CONF line marking the start of a configuration variant.
// label fields are written as separate fields.
func (f *File) Config(label ...string) error {
	return f.Line(TagConfig, label...)
}

// Calibration writes a #CAL line with one two-digit uppercase hex field per
// byte.
func (f *File) Calibration(blob []byte) error {
	return f.Line(TagCalibration, HexFields(blob)...)
}

// Xtalk writes a #XTALK line.
func (f *File) Xtalk(xtalk uint16) error {
	return f.Line(TagXtalk, strconv.FormatUint(uint64(xtalk), 10))
}

// Histogram writes one histogram line. Proximity histograms use the
// #HSHORTn tag, summed histograms #HSUMn. Other kinds are tagged with their
// upper-case kind name.
func (f *File) Histogram(h model.Histogram) error {
	return f.Line(HistogramTag(h), BinFields(h.Bins)...)
}

// Result writes a #RES line with the scalar fields of r.
func (f *File) Result(r model.Result) error {
	return f.Line(TagResult,
		strconv.Itoa(int(r.ResultNumber)),
		strconv.Itoa(int(r.Reliability)),
		strconv.Itoa(int(r.Status)),
		strconv.Itoa(int(r.DistanceMm)),
		strconv.FormatUint(uint64(r.SysClock), 10),
		strconv.Itoa(int(r.Temperature)),
		strconv.FormatUint(uint64(r.ReferenceHits), 10),
		strconv.FormatUint(uint64(r.ObjectHits), 10),
		strconv.Itoa(int(r.Xtalk)),
	)
}

// Record writes the #RES line of rec followed by one line per histogram.
func (f *File) Record(rec *model.ResultRecord) error {
	if err := f.Result(rec.Result); err != nil {
		return err
	}
	for _, h := range rec.Histograms {
		if err := f.Histogram(h); err != nil {
			return err
		}
	}
	return nil
}

func (f *File) histogramHeader(kind model.HistogramKind, description string) error {
	for i := 0; i < spec.HistogramChannels; i++ {
		err := f.Line(HistogramTag(model.Histogram{Kind: kind, Channel: i}),
			fmt.Sprintf("%s histogram bin values (TDC%d)", description, i))
		if err != nil {
			return err
		}
	}
	return nil
}

// resultHistograms lists every histogram kind a result may carry, in header
// order.
var resultHistograms = []struct {
	kind        model.HistogramKind
	description string
}{
	{model.HistogramProx, "short range"},
	{model.HistogramSummed, "summed"},
	{model.HistogramEC, "electrical calibration"},
	{model.HistogramDistance, "distance"},
	{model.HistogramPileup, "pile-up"},
}

// SweepHeader writes the schema comment of a calibration sweep log. The
// #CAL line is only described when calibration blobs are logged.
func (f *File) SweepHeader(calibration bool) error {
	lines := [][]string{{TagComment, "comment string"}}
	if calibration {
		lines = append(lines, []string{TagCalibration, "factory calibration bytes (hex)"})
	}
	lines = append(lines, []string{TagXtalk, "cross-talk value"})
	for _, l := range lines {
		if err := f.Line(l[0], l[1:]...); err != nil {
			return err
		}
	}
	return f.histogramHeader(model.HistogramProx, "short range")
}

// ResultHeader writes the schema comment of a continuous result log. It
// describes every tag Record may write.
func (f *File) ResultHeader() error {
	lines := [][]string{
		{TagComment, "comment string"},
		{TagResult, "result number", "reliability", "status", "distance (mm)",
			"system clock", "temperature (C)", "reference hits", "object hits",
			"cross-talk"},
	}
	for _, l := range lines {
		if err := f.Line(l[0], l[1:]...); err != nil {
			return err
		}
	}
	for _, h := range resultHistograms {
		if err := f.histogramHeader(h.kind, h.description); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes and closes the underlying writer. Only the first call closes
// it; later calls return the same error.
func (f *File) Close() error {
	f.once.Do(func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.closed = true
		f.w.Flush()
		f.err = errors.Join(f.w.Error(), f.closer.Close())
	})
	return f.err
}

// HistogramTag returns the line tag of h.
func HistogramTag(h model.Histogram) string {
	switch h.Kind {
	case model.HistogramProx:
		return TagShortHistogram + strconv.Itoa(h.Channel)
	case model.HistogramSummed:
		return TagSummedHistogram + strconv.Itoa(h.Channel)
	default:
		return "#H" + strings.ToUpper(string(h.Kind)) + strconv.Itoa(h.Channel)
	}
}

// HexFields renders each byte as a two-digit uppercase hex field.
func HexFields(blob []byte) []string {
	out := make([]string, len(blob))
	for i, b := range blob {
		out[i] = fmt.Sprintf("%02X", b)
	}
	return out
}

// BinFields renders histogram bins as decimal fields.
func BinFields(bins []uint32) []string {
	out := make([]string, len(bins))
	for i, b := range bins {
		out[i] = strconv.FormatUint(uint64(b), 10)
	}
	return out
}
