// Package floor implements the Floor Subsystem of §4.2: it replays a
// time-stamped scenario of calls and fault injections into the
// scheduler, and tracks the per-floor call lamps that its own dispatch
// and arrival traffic toggles.
package floor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mkallander/elevatorsim/internal/config"
	"github.com/mkallander/elevatorsim/internal/pqueue"
	"github.com/mkallander/elevatorsim/internal/simclock"
	"github.com/mkallander/elevatorsim/internal/transport"
	"github.com/mkallander/elevatorsim/internal/wire"
)

// startupGrace mirrors FloorSubsystem.java's fixed wait for the Scheduler
// to bind its socket before scenario replay starts.
const startupGrace = 5 * time.Second

// idleBackoff bounds how often an empty tick re-checks the clock. It is a
// loop cadence, not a simulated event, so it always runs on real time
// even when the subsystem is driven by a Fake clock in tests.
const idleBackoff = 5 * time.Millisecond

// Floor is the Floor Subsystem: scenario replay driver and lamp
// bookkeeper.
type Floor struct {
	building config.Building
	ports    config.Ports
	tr       transport.Transport
	queue    *pqueue.Queue
	clock    simclock.Clock
	log      zerolog.Logger

	Lamps *Lamps

	calls     []scenarioCall
	faults    []scenarioFault
	startedAt time.Time
}

// New wires a Floor to a pre-parsed Scenario and its ingress queue. queue
// is normally fed by a pqueue.Receiver bound to ports.FloorSubsys.
func New(building config.Building, ports config.Ports, tr transport.Transport, queue *pqueue.Queue, clock simclock.Clock, log zerolog.Logger, sc Scenario) *Floor {
	return &Floor{
		building: building,
		ports:    ports,
		tr:       tr,
		queue:    queue,
		clock:    clock,
		log:      log,
		Lamps:    NewLamps(building.Floors, building.Elevators),
		calls:    sc.Calls,
		faults:   sc.Faults,
	}
}

// Run drives the tick loop of §4.2 until ctx is cancelled: after the
// startup grace period, consume one queued message per tick if any is
// waiting, otherwise emit the next pending call or fault whose time has
// arrived.
func (f *Floor) Run(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		f.clock.Sleep(startupGrace)
		f.startedAt = f.clock.Now()

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			if !f.queue.IsEmpty() {
				payload, ok := f.queue.Poll(ctx)
				if !ok {
					return
				}
				f.handleMessage(payload)
				continue
			}

			if f.emitPending() {
				continue
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(idleBackoff):
			}
		}
	}()
}

// handleMessage implements step 1 of §4.2.
func (f *Floor) handleMessage(payload []byte) {
	frame, err := wire.DecodeFrame(payload, f.building.Elevators)
	if err != nil {
		f.log.Debug().Err(err).Msg("dropping malformed message")
		return
	}

	switch frame.Tag {
	case wire.ElevatorArrival:
		f.Lamps.Set(frame.Floor, frame.Car, Off)
		f.forwardToVisualization(payload)
	case wire.RequestElevator:
		f.Lamps.Set(frame.Floor, frame.Car, On)
		f.forwardToVisualization(payload)
	default:
		f.log.Debug().Stringer("tag", frame.Tag).Msg("unexpected message at floor subsystem")
	}
}

// emitPending implements step 2 of §4.2: at most one record per tick,
// calls ahead of faults, matching FloorSubsystem.java's
// checkRequest()-then-checkIssues() ordering.
func (f *Floor) emitPending() bool {
	elapsed := f.clock.Now().Sub(f.startedAt)

	if len(f.calls) > 0 && f.calls[0].Offset <= elapsed {
		call := f.calls[0]
		f.calls = f.calls[1:]
		f.sendCall(call)
		return true
	}
	if len(f.faults) > 0 && f.faults[0].Offset <= elapsed {
		fault := f.faults[0]
		f.faults = f.faults[1:]
		f.sendFault(fault)
		return true
	}
	return false
}

func (f *Floor) sendCall(c scenarioCall) {
	req := wire.Request{
		Floor:          c.Floor,
		ElevatorNumber: c.Car,
		Direction:      c.Direction,
		RequestTime:    f.clock.Now(),
		Type:           c.Type,
	}
	encoded, err := wire.EncodeRequest(req)
	if err != nil {
		f.log.Error().Err(err).Msg("failed to encode scenario call")
		return
	}
	f.log.Info().Stringer("request", req).Msg("scenario call dispatched")
	if err := f.tr.SendTo(f.ports.Scheduler, encoded); err != nil {
		f.log.Error().Err(err).Msg("failed to send scenario call")
	}
}

func (f *Floor) sendFault(fault scenarioFault) {
	frame := wire.EncodeCarFrame(fault.Kind, fault.Car)
	f.log.Info().Stringer("tag", fault.Kind).Int("car", fault.Car).Msg("scenario fault injected")
	if err := f.tr.SendTo(f.ports.Scheduler, frame); err != nil {
		f.log.Error().Err(err).Msg("failed to send scenario fault")
	}
}

func (f *Floor) forwardToVisualization(payload []byte) {
	if err := f.tr.SendTo(f.ports.Visualization, payload); err != nil {
		f.log.Error().Err(err).Msg("failed to forward message to visualization")
	}
}
