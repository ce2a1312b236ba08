// Package metrics defines the Prometheus metrics of the client and the
// simulator.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Commands counts command round trips by command name and outcome
	// ("ok", "rejected", "error").
	Commands = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tmf8806_client_commands_total",
			Help: "Number of commands sent to the measurement service.",
		},
		[]string{"command", "result"},
	)

	// ResultsReceived counts result records read from the result channel.
	ResultsReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tmf8806_client_results_received_total",
			Help: "Number of result records received on the result channel.",
		},
	)

	// ResultsDropped counts result records discarded because of conflation,
	// a full queue, a stale-result drain or a decoding error.
	ResultsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tmf8806_client_results_dropped_total",
			Help: "Number of result records discarded by the client.",
		},
		[]string{"reason"},
	)

	// ResultsLogged counts result records written by the continuous logger.
	ResultsLogged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tmf8806_client_results_logged_total",
			Help: "Number of result records written to CSV logs.",
		},
	)

	// SweepVariants counts completed sweep variants.
	SweepVariants = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tmf8806_session_sweep_variants_total",
			Help: "Number of configuration variants completed by sweeps.",
		},
	)

	// SimulatorCommands counts commands handled by the simulator.
	SimulatorCommands = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tmf8806_simulator_commands_total",
			Help: "Number of commands handled by the simulator.",
		},
		[]string{"command"},
	)

	// SimulatorResults counts result records published by the simulator.
	SimulatorResults = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tmf8806_simulator_results_published_total",
			Help: "Number of result records published by the simulator.",
		},
	)
)
