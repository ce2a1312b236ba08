package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ams-OSRAM/tmf8806-zmq-data-logger/internal/csvlog"
	"github.com/ams-OSRAM/tmf8806-zmq-data-logger/pkg/tmf8806/model"
	"github.com/ams-OSRAM/tmf8806-zmq-data-logger/pkg/tmf8806/spec"
)

var errInduced = errors.New("induced failure")

// fakeService is an in-memory Service. A one-shot measurement queues one
// result immediately.
type fakeService struct {
	mu sync.Mutex

	// calls records every operation in order.
	calls []string

	connectErr error
	// failStart makes the n-th start_measurement (1-based) fail.
	failStart int
	// noResults suppresses results.
	noResults bool

	connected   bool
	disconnects int
	measuring   bool
	starts      int
	cfg         model.MeasureConfig
	hist        model.HistogramConfig
	calibrated  map[Variant]bool
	lastCal     model.CalibrationBlob
	queue       []*model.ResultRecord
	logFile     *csvlog.File
}

func newFakeService() *fakeService {
	return &fakeService{
		cfg:        model.DefaultMeasureConfig(),
		calibrated: make(map[Variant]bool),
	}
}

func (f *fakeService) record(call string) {
	f.calls = append(f.calls, call)
}

// commands returns the calls that send a command to the service.
func (f *fakeService) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		switch c {
		case spec.CmdGetConfiguration, spec.CmdGetHistogramConfig, spec.CmdSetHistogramConfig,
			spec.CmdStartMeasurement, spec.CmdStopMeasurement, spec.CmdGetCalibration:
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeService) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("connect")
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeService) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("disconnect")
	f.disconnects++
	f.connected = false
	return nil
}

func (f *fakeService) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeService) GetConfiguration(ctx context.Context) (model.MeasureConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(spec.CmdGetConfiguration)
	return f.cfg, nil
}

func (f *fakeService) GetHistogramConfig(ctx context.Context) (model.HistogramConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(spec.CmdGetHistogramConfig)
	return f.hist, nil
}

func (f *fakeService) SetHistogramConfig(ctx context.Context, cfg model.HistogramConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(spec.CmdSetHistogramConfig)
	f.hist = cfg
	return nil
}

func variantOf(cfg model.MeasureConfig) Variant {
	return Variant{
		SpadSelect:   cfg.Data.Data.SpadSelect,
		DistanceMode: cfg.Data.Algo.DistanceMode,
		VcselClkDiv2: cfg.Data.Algo.VcselClkDiv2,
	}
}

func (f *fakeService) StartMeasurement(ctx context.Context, cfg model.MeasureConfig) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(spec.CmdStartMeasurement)
	f.starts++
	if f.starts == f.failStart {
		return false, errInduced
	}
	f.cfg = cfg
	v := variantOf(cfg)
	if cfg.Data.Command == model.CommandFactoryCalib {
		f.calibrated[v] = true
		f.lastCal = model.CalibrationBlob{0x01, uint8(v.SpadSelect), uint8(v.DistanceMode)}
		return true, nil
	}
	f.measuring = true
	if cfg.Data.RepetitionPeriodMs == 0 && !f.noResults {
		f.queue = append(f.queue, f.result(cfg))
	}
	return f.calibrated[v], nil
}

func (f *fakeService) result(cfg model.MeasureConfig) *model.ResultRecord {
	rec := &model.ResultRecord{
		Time: time.Now(),
		Result: model.Result{
			ResultNumber: uint8(f.starts),
			Xtalk:        uint16(1000 + 100*int(cfg.Data.Data.SpadSelect)),
			DistanceMm:   500,
		},
	}
	if f.hist.Prox {
		for ch := 0; ch < spec.HistogramChannels; ch++ {
			rec.Histograms = append(rec.Histograms, model.Histogram{
				Kind:    model.HistogramProx,
				Channel: ch,
				Bins:    []uint32{uint32(ch), 1, 2},
			})
		}
	}
	return rec
}

func (f *fakeService) StopMeasurement(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(spec.CmdStopMeasurement)
	f.measuring = false
	return nil
}

func (f *fakeService) GetCalibration(ctx context.Context) (model.CalibrationBlob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(spec.CmdGetCalibration)
	if f.lastCal == nil {
		return nil, errors.New("no calibration")
	}
	return f.lastCal, nil
}

func (f *fakeService) GetResult(ctx context.Context) (*model.ResultRecord, error) {
	f.mu.Lock()
	f.record("get_result")
	if f.logFile != nil {
		f.mu.Unlock()
		return nil, errors.New("result channel in use")
	}
	if len(f.queue) > 0 {
		rec := f.queue[0]
		f.queue = f.queue[1:]
		f.mu.Unlock()
		return rec, nil
	}
	f.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

func (f *fakeService) DrainResults(timeout time.Duration) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("drain")
	n := len(f.queue)
	f.queue = nil
	return n, nil
}

func (f *fakeService) StartLogging(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("start_logging")
	if f.logFile != nil {
		return errors.New("result channel in use")
	}
	file, err := csvlog.Create(path)
	if err != nil {
		return err
	}
	if err := file.ResultHeader(); err != nil {
		file.Close()
		return err
	}
	f.logFile = file
	return nil
}

// publish writes a periodic result to the log when logging is active.
func (f *fakeService) publish() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.logFile == nil {
		return nil
	}
	rec := f.result(f.cfg)
	return f.logFile.Record(rec)
}

func (f *fakeService) StopLogging() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("stop_logging")
	if f.logFile == nil {
		return nil
	}
	err := f.logFile.Close()
	f.logFile = nil
	return err
}

// quietEmitter records variants, starts, missing results and errors and
// prints nothing.
type quietEmitter struct {
	variants []string
	starts   []bool
	missing  []string
	errs     []error
}

func (*quietEmitter) OnConnect(cmdAddr, resultAddr string) {}

func (*quietEmitter) OnProgress(msg string) {}

func (e *quietEmitter) OnStart(calibrated bool) {
	e.starts = append(e.starts, calibrated)
}

func (*quietEmitter) OnLogging(path string) {}

func (e *quietEmitter) OnVariant(v Variant) {
	e.variants = append(e.variants, v.Label())
}

func (*quietEmitter) OnResult(v Variant, rec *model.ResultRecord) {}

func (e *quietEmitter) OnMissingResult(v Variant) {
	e.missing = append(e.missing, v.Label())
}

func (e *quietEmitter) OnError(err error) {
	e.errs = append(e.errs, err)
}

func (*quietEmitter) OnDisconnect() {}

func (*quietEmitter) OnDebug(msg string) {}

var (
	_ Service = &fakeService{}
	_ Emitter = &quietEmitter{}
)
