// Command floor runs the Floor Subsystem of §4.2: it replays a
// time-stamped scenario of calls and fault injections into the
// scheduler and tracks per-floor call lamps.
package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mkallander/elevatorsim/internal/config"
	"github.com/mkallander/elevatorsim/internal/floor"
	"github.com/mkallander/elevatorsim/internal/obslog"
	"github.com/mkallander/elevatorsim/internal/pqueue"
	"github.com/mkallander/elevatorsim/internal/simclock"
	"github.com/mkallander/elevatorsim/internal/transport"
)

// scenarioPath is fixed per §6: "The scenario file path is a constant;
// override mechanism is out of scope for the core."
const scenarioPath = "scenario.txt"

func runComponent(ctx context.Context, run func(context.Context, *sync.WaitGroup)) func() error {
	return func() error {
		var wg sync.WaitGroup
		run(ctx, &wg)
		wg.Wait()
		return nil
	}
}

func main() {
	args := config.ProcessCmdArgs("floor")
	building, err := config.Load(args.ConfigPath)
	if err != nil {
		obslog.Get().Fatal().Err(err).Msg("loading building config")
	}
	ports := config.DefaultPorts()

	log := *obslog.GetConfigured(zerolog.InfoLevel)
	floorLog := log.With().Str("component", "floor").Logger()

	// Malformed scenario lines are fatal at startup, before any socket is
	// bound (§7).
	sc, err := floor.LoadScenarioFile(scenarioPath)
	if err != nil {
		log.Fatal().Err(err).Msg("parsing scenario file")
	}

	sock, err := transport.NewSocket(ports.FloorSubsys)
	if err != nil {
		log.Fatal().Err(err).Msg("binding floor subsystem socket")
	}
	defer sock.Close()

	receiver := pqueue.NewReceiver(sock, building.QueueCap, floorLog)
	fl := floor.New(building, ports, sock, receiver.Queue, simclock.Real{}, floorLog, sc)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Int("port", ports.FloorSubsys).Int("calls", len(sc.Calls)).Int("faults", len(sc.Faults)).Msg("floor subsystem starting")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(runComponent(gctx, receiver.Run))
	g.Go(runComponent(gctx, fl.Run))

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("floor subsystem exited with error")
	}
}
