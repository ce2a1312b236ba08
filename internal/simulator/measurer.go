package simulator

import (
	"context"
	"math/rand"
	"time"

	"github.com/charmbracelet/log"
	"github.com/m-lab/go/memoryless"
	"github.com/m-lab/go/rtx"

	"github.com/ams-OSRAM/tmf8806-zmq-data-logger/pkg/tmf8806/model"
	"github.com/ams-OSRAM/tmf8806-zmq-data-logger/pkg/tmf8806/spec"
)

// Maximum range of each distance mode, in millimetres.
const (
	maxRange2500 = 2500
	maxRange4000 = 4000
)

// binWidthMm is the distance covered by one short range histogram bin.
const binWidthMm = 20

// measurement is a running measurement. Its goroutine publishes results
// until stopped.
type measurement struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (m *measurement) stop() {
	m.cancel()
	<-m.done
}

// startMeasurement starts publishing results for cfg. A zero repetition
// period publishes a single result after the integration time; otherwise
// results are published at jittered intervals around the period.
func (s *Server) startMeasurement(cfg model.MeasureConfig, hist model.HistogramConfig,
	calibrated bool, seed int64) *measurement {
	ctx, cancel := context.WithCancel(s.ctx)
	m := &measurement{
		cancel: cancel,
		done:   make(chan struct{}),
	}
	gen := &generator{
		cfg:        cfg,
		hist:       hist,
		calibrated: calibrated,
		target:     s.config.TargetDistanceMm,
		rnd:        rand.New(rand.NewSource(seed)),
	}

	period := time.Duration(cfg.Data.RepetitionPeriodMs) * time.Millisecond
	if period == 0 {
		go func() {
			defer close(m.done)
			select {
			case <-ctx.Done():
			case <-time.After(s.config.IntegrationTime):
				s.publish(s.next(gen))
			}
		}()
		return m
	}

	t, err := memoryless.NewTicker(ctx, memoryless.Config{
		Min:      period / 2,
		Expected: period,
		Max:      2 * period,
	})
	// Min, Expected and Max are derived from a positive period, so this
	// cannot fail.
	rtx.PanicOnError(err, "ticker creation failed (this should never happen)")
	go func() {
		defer close(m.done)
		defer t.Stop()
		log.Debug("measurer: start", "period", period)
		defer log.Debug("measurer: stop")
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.publish(s.next(gen))
			}
		}
	}()
	return m
}

// next returns the next record of gen, numbered and timestamped by s.
func (s *Server) next(gen *generator) model.ResultRecord {
	n := uint8(s.resultNumber.Add(1))
	clock := uint32(time.Since(s.startTime).Microseconds() / 200)
	return gen.record(n, clock)
}

// generator synthesizes results for one measurement configuration.
type generator struct {
	cfg        model.MeasureConfig
	hist       model.HistogramConfig
	calibrated bool
	target     uint16
	rnd        *rand.Rand
}

// xtalk returns the cross-talk peak for the configured SPAD selection.
// Fewer SPADs see less cross-talk.
func (g *generator) xtalk() uint16 {
	base := map[model.SpadSelect]int{
		model.SpadAll:        1200,
		model.Spad40Best:     600,
		model.Spad20Best:     300,
		model.SpadAttenuated: 150,
	}[g.cfg.Data.Data.SpadSelect]
	if !g.calibrated {
		base += base / 4
	}
	return uint16(base + g.rnd.Intn(base/10+1))
}

// maxRange returns the effective range. The 4m mode only applies with the
// VCSEL clock divided by two.
func (g *generator) maxRange() uint16 {
	if g.cfg.Data.Algo.DistanceMode == model.Distance4000mm && g.cfg.Data.Algo.VcselClkDiv2 {
		return maxRange4000
	}
	return maxRange2500
}

func (g *generator) record(number uint8, clock uint32) model.ResultRecord {
	xtalk := g.xtalk()
	var distance uint16
	var reliability uint8
	if g.cfg.Data.Algo.DistanceEnabled && g.target > 0 && g.target <= g.maxRange() {
		noise := g.rnd.Intn(11) - 5
		if !g.calibrated {
			noise += 15
		}
		distance = uint16(int(g.target) + noise)
		reliability = uint8(40 + g.rnd.Intn(24))
	}

	rec := model.ResultRecord{
		Time: time.Now(),
		Result: model.Result{
			ResultNumber:  number,
			Reliability:   reliability,
			DistanceMm:    distance,
			SysClock:      clock,
			Temperature:   int8(24 + g.rnd.Intn(3)),
			ReferenceHits: uint32(g.cfg.Data.KIters)*100 + uint32(g.rnd.Intn(1000)),
			ObjectHits:    uint32(g.cfg.Data.KIters)*20 + uint32(g.rnd.Intn(500)),
			Xtalk:         xtalk,
		},
	}

	kinds := []struct {
		enabled bool
		kind    model.HistogramKind
	}{
		{g.hist.EC, model.HistogramEC},
		{g.hist.Prox, model.HistogramProx},
		{g.hist.Distance, model.HistogramDistance},
		{g.hist.Pileup, model.HistogramPileup},
		{g.hist.Summed, model.HistogramSummed},
	}
	for _, k := range kinds {
		if !k.enabled {
			continue
		}
		for ch := 0; ch < spec.HistogramChannels; ch++ {
			rec.Histograms = append(rec.Histograms, model.Histogram{
				Kind:    k.kind,
				Channel: ch,
				Bins:    g.bins(distance, xtalk),
			})
		}
	}
	return rec
}

// bins returns a histogram with an ambient floor, a cross-talk peak near
// the first bins and an object peak at the bin matching distance.
func (g *generator) bins(distance, xtalk uint16) []uint32 {
	out := make([]uint32, spec.HistogramBins)
	for i := range out {
		out[i] = uint32(10 + g.rnd.Intn(10))
	}
	out[2] += uint32(xtalk)
	out[3] += uint32(xtalk / 2)
	if distance > 0 {
		peak := int(distance) / binWidthMm
		for d := -2; d <= 2; d++ {
			i := peak + d
			if i < 0 || i >= len(out) {
				continue
			}
			out[i] += uint32(800 >> (2 * abs(d)))
		}
	}
	return out
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
