// Command netlab-sim is the CLI entry point: load a scenario file and
// either serve the HTTP API, run a headless batch of ticks, or drive
// the live terminal dashboard. Grounded on the teacher's
// cmd/flywall-sim/main.go flag-parsed subcommand dispatch
// ("replay"/"server" args, a shared runServer helper), adapted from a
// PCAP replay tool to a scenario-driven simulator.
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kestrelnet/netlab/internal/api"
	"github.com/kestrelnet/netlab/internal/engine"
	"github.com/kestrelnet/netlab/internal/events"
	"github.com/kestrelnet/netlab/internal/history"
	"github.com/kestrelnet/netlab/internal/logging"
	"github.com/kestrelnet/netlab/internal/metrics"
	"github.com/kestrelnet/netlab/internal/scenario"
	"github.com/kestrelnet/netlab/internal/simclock"
	"github.com/kestrelnet/netlab/internal/tui"
	"github.com/kestrelnet/netlab/internal/topo"
)

func main() {
	args := os.Args[1:]
	subcmd := ""
	if len(args) > 0 {
		subcmd = args[0]
		args = args[1:]
	}

	switch subcmd {
	case "server":
		runServer(args)
	case "run":
		runHeadless(args)
	case "tui":
		runTUI(args)
	case "":
		runServer(args)
	default:
		log.Fatalf("unknown command %q (want server, run, or tui)", subcmd)
	}
}

func buildEngine(scenarioPath string, deterministic bool) (*engine.Engine, error) {
	world := topo.New()

	if scenarioPath != "" {
		data, err := os.ReadFile(scenarioPath)
		if err != nil {
			return nil, fmt.Errorf("read scenario: %w", err)
		}
		file, err := scenario.LoadFile(scenarioPath, data)
		if err != nil {
			return nil, fmt.Errorf("load scenario: %w", err)
		}
		if err := scenario.Apply(world, file); err != nil {
			return nil, fmt.Errorf("apply scenario: %w", err)
		}
	}

	var clock *simclock.Clock
	if deterministic {
		clock = simclock.NewDeterministic(time.Unix(0, 0), 1)
	} else {
		clock = simclock.New()
	}

	eng := engine.New(world, clock)
	eng.Events = events.NewHub()
	eng.Metrics = metrics.NewCollector(prometheus.NewRegistry())
	eng.RunSTPConvergence()
	return eng, nil
}

// runServer starts the HTTP API (devices/connections CRUD, tick
// stepping, ping/DHCP/DNS/TCP/STP operations, project import/export,
// and a websocket event stream) with a plain http.ListenAndServe; it
// installs no signal handler and has no graceful shutdown.
func runServer(args []string) {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	scenarioPath := fs.String("scenario", "", "path to a scenario file to bootstrap (HCL or YAML)")
	listen := fs.String("listen", ":8080", "HTTP listen address")
	historyPath := fs.String("history", "", "optional sqlite path to log every engine event")
	deterministic := fs.Bool("deterministic", false, "disable randomness (link loss, TCP ISNs) for reproducible runs")
	fs.Parse(args)

	logger := logging.New(logging.Config{Output: os.Stdout})

	eng, err := buildEngine(*scenarioPath, *deterministic)
	if err != nil {
		log.Fatalf("netlab-sim: %v", err)
	}

	if *historyPath != "" {
		store, err := history.Open(*historyPath)
		if err != nil {
			log.Fatalf("netlab-sim: open history: %v", err)
		}
		defer store.Close()
		store.Follow(eng.Events, time.Now)
	}

	driver := engine.NewDriver(eng)
	stop := make(chan struct{})
	go driveRealtime(driver, stop)
	defer close(stop)

	server := api.NewServer(eng)
	logger.Info("netlab-sim: listening", "addr", *listen)
	if err := http.ListenAndServe(*listen, server); err != nil {
		log.Fatalf("netlab-sim: server failed: %v", err)
	}
}

// runHeadless loads a scenario and runs a fixed number of ticks without
// any UI, for batch/CI use (spec.md §4.8's tick operation, driven
// directly rather than through the real-time accumulator).
func runHeadless(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	scenarioPath := fs.String("scenario", "", "path to a scenario file to bootstrap (HCL or YAML)")
	ticks := fs.Int("ticks", 600, "number of scheduler ticks to run")
	deterministic := fs.Bool("deterministic", true, "disable randomness for reproducible output")
	fs.Parse(args)

	if *scenarioPath == "" {
		log.Fatal("netlab-sim run: -scenario is required")
	}

	eng, err := buildEngine(*scenarioPath, *deterministic)
	if err != nil {
		log.Fatalf("netlab-sim: %v", err)
	}

	eng.Run(*ticks)
	fmt.Printf("ran %d ticks: %d devices, %d packets in flight\n",
		*ticks, len(eng.World.Devices()), len(eng.World.Packets()))
}

// runTUI loads a scenario and drives the live terminal dashboard
// (internal/tui), the headless-with-a-face alternative to -server.
func runTUI(args []string) {
	fs := flag.NewFlagSet("tui", flag.ExitOnError)
	scenarioPath := fs.String("scenario", "", "path to a scenario file to bootstrap (HCL or YAML)")
	fs.Parse(args)

	eng, err := buildEngine(*scenarioPath, false)
	if err != nil {
		log.Fatalf("netlab-sim: %v", err)
	}
	if err := tui.Run(eng); err != nil {
		log.Fatalf("netlab-sim: tui: %v", err)
	}
}

// driveRealtime feeds the accumulator-based Driver off the wall clock
// (spec.md §4.8) until stop is closed, for the server subcommand where
// no TUI frame loop is already doing it.
func driveRealtime(driver *engine.Driver, stop <-chan struct{}) {
	ticker := time.NewTicker(16 * time.Millisecond)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			driver.Advance(now.Sub(last))
			last = now
		}
	}
}
