// tof-active calibrates the sensor, runs a periodic measurement and logs
// every result with its summed histograms to a CSV file.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/charmbracelet/log"
	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/rtx"

	"github.com/ams-OSRAM/tmf8806-zmq-data-logger/pkg/client"
	"github.com/ams-OSRAM/tmf8806-zmq-data-logger/pkg/session"
	"github.com/ams-OSRAM/tmf8806-zmq-data-logger/pkg/tmf8806/spec"
)

var (
	flagCmdAddr    = flag.String("cmd-addr", spec.DefaultCommandAddr, "Command endpoint of the measurement service")
	flagResultAddr = flag.String("result-addr", spec.DefaultResultAddr, "Result endpoint of the measurement service")
	flagOutput     = flag.String("output", "example_log_active.csv", "Path of the CSV log")
	flagDuration   = flag.Duration("duration", spec.DefaultLoggingDuration, "How long to log results")
	flagDataDir    = flag.String("datadir", "", "Directory to archive the session in (disabled if empty)")
	flagDebug      = flag.Bool("debug", false, "Print debug output")
)

func main() {
	flag.Parse()
	rtx.Must(flagx.ArgsFromEnv(flag.CommandLine), "Could not read args from environment")
	if *flagDebug {
		log.SetLevel(log.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	c := client.New(client.Config{
		CommandAddr: *flagCmdAddr,
		ResultAddr:  *flagResultAddr,
	})
	s := session.New(c, session.HumanReadable{Debug: *flagDebug}, session.Config{
		Kind:        "active",
		CommandAddr: *flagCmdAddr,
		ResultAddr:  *flagResultAddr,
		ArchiveDir:  *flagDataDir,
	})
	if err := session.RunActive(ctx, s, *flagOutput, *flagDuration); err != nil {
		log.Error("active session failed", "error", err)
		os.Exit(1)
	}
}
