// tof-simulator serves the TMF8806 measurement protocol with synthetic
// results, for running the tools without an evaluation board.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/charmbracelet/log"
	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/prometheusx"
	"github.com/m-lab/go/rtx"

	"github.com/ams-OSRAM/tmf8806-zmq-data-logger/internal/simulator"
	"github.com/ams-OSRAM/tmf8806-zmq-data-logger/pkg/version"
)

var (
	flagCmdAddr     = flag.String("cmd-addr", "tcp://0.0.0.0:5555", "Listen endpoint for commands")
	flagResultAddr  = flag.String("result-addr", "tcp://0.0.0.0:5556", "Listen endpoint for results")
	flagDistance    = flag.Uint("distance", 600, "Distance of the simulated object in mm")
	flagCalTTL      = flag.Duration("calibration-ttl", simulator.DefaultConfig().CalibrationTTL, "How long a factory calibration stays valid")
	flagIntegration = flag.Duration("integration-time", simulator.DefaultConfig().IntegrationTime, "Delay before a one-shot result is published")
	flagSeed        = flag.Int64("seed", 0, "Noise seed (0 uses the current time)")
)

func main() {
	flag.Parse()
	rtx.Must(flagx.ArgsFromEnv(flag.CommandLine), "Could not read args from environment")

	// Initialize logging and metrics.
	log.SetReportTimestamp(true)
	log.SetLevel(log.DebugLevel)

	promSrv := prometheusx.MustServeMetrics()
	defer promSrv.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	config := simulator.DefaultConfig()
	config.TargetDistanceMm = uint16(*flagDistance)
	config.CalibrationTTL = *flagCalTTL
	config.IntegrationTime = *flagIntegration
	config.Seed = *flagSeed

	srv := simulator.New(config)
	rtx.Must(srv.Listen(*flagCmdAddr, *flagResultAddr), "Could not listen")
	defer srv.Close()

	log.Info("Simulator ready", "version", version.Version, "cmd", srv.CommandAddr(), "result", srv.ResultAddr())
	rtx.Must(srv.Serve(ctx), "Simulator failed")
}
