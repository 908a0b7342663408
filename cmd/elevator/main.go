// Command elevator runs one Elevator Subsystem per car (§4.3). Per §9,
// "per-car subsystems are uniform": by default it starts one goroutine
// group per configured car in a single process, mirroring
// ElevatorSubsystem.java's main() spawning one thread per car; -car
// restricts a single process to one car for split deployment.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mkallander/elevatorsim/internal/config"
	"github.com/mkallander/elevatorsim/internal/elevator"
	"github.com/mkallander/elevatorsim/internal/obslog"
	"github.com/mkallander/elevatorsim/internal/pqueue"
	"github.com/mkallander/elevatorsim/internal/simclock"
	"github.com/mkallander/elevatorsim/internal/transport"
)

func runComponent(ctx context.Context, run func(context.Context, *sync.WaitGroup)) func() error {
	return func() error {
		var wg sync.WaitGroup
		run(ctx, &wg)
		wg.Wait()
		return nil
	}
}

func main() {
	args := config.ProcessCmdArgs("elevator")
	building, err := config.Load(args.ConfigPath)
	if err != nil {
		obslog.Get().Fatal().Err(err).Msg("loading building config")
	}
	ports := config.DefaultPorts()

	log := *obslog.GetConfigured(zerolog.InfoLevel)

	cars := make([]int, 0, building.Elevators)
	if args.Car >= 0 {
		if args.Car >= building.Elevators {
			log.Fatal().Int("car", args.Car).Int("elevators", building.Elevators).Msg("-car is out of range for this building")
		}
		cars = append(cars, args.Car)
	} else {
		for i := 0; i < building.Elevators; i++ {
			cars = append(cars, i)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	for _, car := range cars {
		car := car
		carLog := log.With().Str("component", fmt.Sprintf("elevator-%d", car)).Logger()

		sock, err := transport.NewSocket(ports.Elevator(car))
		if err != nil {
			log.Fatal().Err(err).Int("car", car).Msg("binding elevator subsystem socket")
		}
		defer sock.Close()

		receiver := pqueue.NewReceiver(sock, building.QueueCap, carLog)
		c := elevator.NewCar(car, building, ports, sock, receiver.Queue, simclock.Real{}, carLog)

		log.Info().Int("car", car).Int("port", ports.Elevator(car)).Msg("elevator subsystem starting")

		g.Go(runComponent(gctx, receiver.Run))
		g.Go(runComponent(gctx, c.Run))
	}

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("elevator subsystem exited with error")
	}
}
