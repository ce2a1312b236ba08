package csvlog_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ams-OSRAM/tmf8806-zmq-data-logger/internal/csvlog"
	"github.com/ams-OSRAM/tmf8806-zmq-data-logger/pkg/tmf8806/model"
	"github.com/m-lab/go/testingx"
)

// countingWriter counts how many times Close is called.
type countingWriter struct {
	bytes.Buffer
	closes int
}

func (w *countingWriter) Close() error {
	w.closes++
	return nil
}

func TestNew(t *testing.T) {
	w := &countingWriter{}
	f, err := csvlog.New(w)
	testingx.Must(t, err, "cannot create log")

	testingx.Must(t, f.Comment("connected to server"), "cannot write comment")
	testingx.Must(t, f.Config("2.5m mode", "all SPADs"), "cannot write config")
	testingx.Must(t, f.Calibration([]byte{0x00, 0x0a, 0xff}), "cannot write calibration")
	testingx.Must(t, f.Xtalk(1234), "cannot write xtalk")
	testingx.Must(t, f.Histogram(model.Histogram{
		Kind: model.HistogramProx, Channel: 3, Bins: []uint32{1, 20, 300},
	}), "cannot write histogram")
	testingx.Must(t, f.Close(), "cannot close log")

	expected := "sep=;\n" +
		"#COM;connected to server\n" +
		"#CONF;2.5m mode;all SPADs\n" +
		"#CAL;00;0A;FF\n" +
		"#XTALK;1234\n" +
		"#HSHORT3;1;20;300\n"
	if got := w.String(); got != expected {
		t.Errorf("unexpected log content:\n%s\nwant:\n%s", got, expected)
	}
}

func TestFile_Close(t *testing.T) {
	t.Run("close is performed exactly once", func(t *testing.T) {
		w := &countingWriter{}
		f, err := csvlog.New(w)
		testingx.Must(t, err, "cannot create log")
		f.Close()
		f.Close()
		if w.closes != 1 {
			t.Errorf("underlying writer closed %d times, want 1", w.closes)
		}
	})
	t.Run("writes after close fail", func(t *testing.T) {
		f, err := csvlog.New(&countingWriter{})
		testingx.Must(t, err, "cannot create log")
		f.Close()
		if err := f.Comment("late"); !errors.Is(err, csvlog.ErrClosed) {
			t.Errorf("Comment() after Close() = %v, want ErrClosed", err)
		}
	})
}

func TestFile_Record(t *testing.T) {
	w := &countingWriter{}
	f, err := csvlog.New(w)
	testingx.Must(t, err, "cannot create log")
	rec := &model.ResultRecord{
		Result: model.Result{
			ResultNumber:  7,
			Reliability:   63,
			DistanceMm:    512,
			SysClock:      1000,
			Temperature:   -3,
			ReferenceHits: 10,
			ObjectHits:    20,
			Xtalk:         99,
		},
		Histograms: []model.Histogram{
			{Kind: model.HistogramSummed, Channel: 0, Bins: []uint32{5}},
			{Kind: model.HistogramEC, Channel: 1, Bins: []uint32{6}},
		},
	}
	testingx.Must(t, f.Record(rec), "cannot write record")
	f.Close()

	lines := strings.Split(strings.TrimSuffix(w.String(), "\n"), "\n")
	expected := []string{
		"sep=;",
		"#RES;7;63;0;512;1000;-3;10;20;99",
		"#HSUM0;5",
		"#HEC1;6",
	}
	if len(lines) != len(expected) {
		t.Fatalf("got %d lines, want %d: %q", len(lines), len(expected), lines)
	}
	for i := range expected {
		if lines[i] != expected[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], expected[i])
		}
	}
}

func TestCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.csv")
	f, err := csvlog.Create(path)
	testingx.Must(t, err, "cannot create log file")
	testingx.Must(t, f.Comment("hello"), "cannot write comment")

	// Lines are on disk before the file is closed.
	content, err := os.ReadFile(path)
	testingx.Must(t, err, "cannot read log file")
	if string(content) != "sep=;\n#COM;hello\n" {
		t.Errorf("unexpected content %q", content)
	}
	testingx.Must(t, f.Close(), "cannot close log file")

	if _, err := csvlog.Create(filepath.Join(t.TempDir(), "missing", "log.csv")); err == nil {
		t.Errorf("Create() in a missing directory did not fail")
	}
}

func TestHexFields(t *testing.T) {
	got := csvlog.HexFields([]byte{0x1, 0xab})
	if len(got) != 2 || got[0] != "01" || got[1] != "AB" {
		t.Errorf("HexFields() = %v", got)
	}
	if len(csvlog.HexFields(nil)) != 0 {
		t.Errorf("HexFields(nil) is not empty")
	}
}

func TestFile_SweepHeader(t *testing.T) {
	tests := []struct {
		name        string
		calibration bool
		want        []string
	}{
		{
			name: "without-calibration",
			want: []string{
				"sep=;",
				"#COM;comment string",
				"#XTALK;cross-talk value",
				"#HSHORT0;short range histogram bin values (TDC0)",
				"#HSHORT1;short range histogram bin values (TDC1)",
				"#HSHORT2;short range histogram bin values (TDC2)",
				"#HSHORT3;short range histogram bin values (TDC3)",
				"#HSHORT4;short range histogram bin values (TDC4)",
			},
		},
		{
			name:        "with-calibration",
			calibration: true,
			want: []string{
				"sep=;",
				"#COM;comment string",
				"#CAL;factory calibration bytes (hex)",
				"#XTALK;cross-talk value",
				"#HSHORT0;short range histogram bin values (TDC0)",
				"#HSHORT1;short range histogram bin values (TDC1)",
				"#HSHORT2;short range histogram bin values (TDC2)",
				"#HSHORT3;short range histogram bin values (TDC3)",
				"#HSHORT4;short range histogram bin values (TDC4)",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &countingWriter{}
			f, err := csvlog.New(w)
			testingx.Must(t, err, "cannot create log")
			testingx.Must(t, f.SweepHeader(tt.calibration), "cannot write header")
			f.Close()
			lines := strings.Split(strings.TrimSuffix(w.String(), "\n"), "\n")
			if strings.Join(lines, "\n") != strings.Join(tt.want, "\n") {
				t.Errorf("SweepHeader() wrote:\n%s\nwant:\n%s",
					strings.Join(lines, "\n"), strings.Join(tt.want, "\n"))
			}
		})
	}
}

func TestFile_ResultHeader(t *testing.T) {
	w := &countingWriter{}
	f, err := csvlog.New(w)
	testingx.Must(t, err, "cannot create log")
	testingx.Must(t, f.ResultHeader(), "cannot write header")
	f.Close()

	content := w.String()
	for _, tag := range []string{"#CONF", "#CAL", "#XTALK"} {
		if strings.Contains(content, tag) {
			t.Errorf("result header contains %s", tag)
		}
	}
	if !strings.HasPrefix(content, "sep=;\n#COM;comment string\n#RES;") {
		t.Errorf("result header does not follow the delimiter line:\n%s", content)
	}
	// Every tag Record can write is described.
	for _, want := range []string{"\n#RES;result number;", "\n#HSHORT4;", "\n#HSUM4;",
		"\n#HEC4;", "\n#HDISTANCE4;", "\n#HPILEUP4;"} {
		if !strings.Contains(content, want) {
			t.Errorf("result header does not contain %q", want)
		}
	}
}
