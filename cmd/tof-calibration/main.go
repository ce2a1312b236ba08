// tof-calibration runs a factory calibration and a one-shot cross-talk
// measurement for every configuration of a sweep and writes them to a CSV
// file.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/charmbracelet/log"
	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/rtx"

	"github.com/ams-OSRAM/tmf8806-zmq-data-logger/internal/config"
	"github.com/ams-OSRAM/tmf8806-zmq-data-logger/pkg/client"
	"github.com/ams-OSRAM/tmf8806-zmq-data-logger/pkg/session"
	"github.com/ams-OSRAM/tmf8806-zmq-data-logger/pkg/tmf8806/spec"
)

var (
	flagCmdAddr       = flag.String("cmd-addr", spec.DefaultCommandAddr, "Command endpoint of the measurement service")
	flagResultAddr    = flag.String("result-addr", spec.DefaultResultAddr, "Result endpoint of the measurement service")
	flagOutput        = flag.String("output", "example_log_calibration.csv", "Path of the CSV log")
	flagSweep         = flag.String("sweep", "", "YAML sweep definition (default: the six standard configurations)")
	flagResultTimeout = flag.Duration("result-timeout", spec.DefaultResultTimeout, "How long to wait for each one-shot result")
	flagDataDir       = flag.String("datadir", "", "Directory to archive the session in (disabled if empty)")
	flagDebug         = flag.Bool("debug", false, "Print debug output")
)

func main() {
	flag.Parse()
	rtx.Must(flagx.ArgsFromEnv(flag.CommandLine), "Could not read args from environment")
	if *flagDebug {
		log.SetLevel(log.DebugLevel)
	}

	sweep := config.Default()
	if *flagSweep != "" {
		var err error
		sweep, err = config.Load(*flagSweep)
		rtx.Must(err, "Could not load sweep definition %s", *flagSweep)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// Only the latest result matters for a one-shot capture.
	c := client.New(client.Config{
		CommandAddr: *flagCmdAddr,
		ResultAddr:  *flagResultAddr,
		Conflate:    true,
	})
	s := session.New(c, session.HumanReadable{Debug: *flagDebug}, session.Config{
		Kind:               "calibration",
		CommandAddr:        *flagCmdAddr,
		ResultAddr:         *flagResultAddr,
		ResultTimeout:      *flagResultTimeout,
		CaptureCalibration: sweep.CaptureCalibration,
		ArchiveDir:         *flagDataDir,
	})
	if err := session.RunCalibrationSweep(ctx, s, *flagOutput, sweep.Plan()); err != nil {
		log.Error("calibration sweep failed", "error", err)
		os.Exit(1)
	}
}
