// Command scheduler runs the Scheduler of §4.4: the global dispatcher
// that tracks elevator mirrors, assigns calls, and watches for stuck
// cars.
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
	"github.com/mkallander/elevatorsim/internal/obslog"
	"github.com/mkallander/elevatorsim/internal/pqueue"
	"github.com/mkallander/elevatorsim/internal/scheduler"
	"github.com/mkallander/elevatorsim/internal/simclock"
	"github.com/mkallander/elevatorsim/internal/transport"
)

// runComponent wraps a Run(ctx, *sync.WaitGroup)-shaped component in a
// blocking call suitable for errgroup.Go: it waits out the component's
// own goroutine before returning, so the group's Wait doesn't return
// early just because Run itself returns as soon as the goroutine starts.
func runComponent(ctx context.Context, run func(context.Context, *sync.WaitGroup)) func() error {
	return func() error {
		var wg sync.WaitGroup
		run(ctx, &wg)
		wg.Wait()
		return nil
	}
}

func main() {
	args := config.ProcessCmdArgs("scheduler")
	building, err := config.Load(args.ConfigPath)
	if err != nil {
		obslog.Get().Fatal().Err(err).Msg("loading building config")
	}
	ports := config.DefaultPorts()

	log := *obslog.GetConfigured(zerolog.InfoLevel)
	schedLog := log.With().Str("component", "scheduler").Logger()

	sock, err := transport.NewSocket(ports.Scheduler)
	if err != nil {
		log.Fatal().Err(err).Msg("binding scheduler socket")
	}
	defer sock.Close()

	receiver := pqueue.NewReceiver(sock, building.QueueCap, schedLog)
	s := scheduler.New(building, ports, sock, receiver.Queue, simclock.Real{}, schedLog)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Int("port", ports.Scheduler).Int("floors", building.Floors).Int("elevators", building.Elevators).Msg("scheduler starting")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(runComponent(gctx, receiver.Run))
	g.Go(runComponent(gctx, s.Run))

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("scheduler exited with error")
	}
}
