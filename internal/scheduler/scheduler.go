// Package scheduler implements the Scheduler of §4.4: the global
// dispatcher that tracks elevator positions and health, assigns calls by
// nearest-car policy, estimates arrivals from the shared kinematic model,
// and declares cars stuck when an estimate is exceeded.
package scheduler

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mkallander/elevatorsim/internal/config"
	"github.com/mkallander/elevatorsim/internal/elevator"
	"github.com/mkallander/elevatorsim/internal/kinematics"
	"github.com/mkallander/elevatorsim/internal/pqueue"
	"github.com/mkallander/elevatorsim/internal/simclock"
	"github.com/mkallander/elevatorsim/internal/transport"
	"github.com/mkallander/elevatorsim/internal/wire"
)

type phase int

const (
	receivingMessage phase = iota
	scheduling
	checkElevatorStuck
	fixingElevatorError
)

// Scheduler is the single-threaded global dispatcher of §4.4.
type Scheduler struct {
	building config.Building
	ports    config.Ports
	tr       transport.Transport
	queue    *pqueue.Queue
	clock    simclock.Clock
	log      zerolog.Logger
	roll     func() float64 // uniform [0,1); overridable for tests

	phase     phase
	mirror    []carMirror
	pending   []wire.Request
	fixingCar int
	startedAt time.Time
}

// New wires a Scheduler. queue is normally fed by a pqueue.Receiver bound
// to ports.Scheduler.
func New(building config.Building, ports config.Ports, tr transport.Transport, queue *pqueue.Queue, clock simclock.Clock, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		building:  building,
		ports:     ports,
		tr:        tr,
		queue:     queue,
		clock:     clock,
		log:       log,
		roll:      rand.Float64,
		phase:     receivingMessage,
		mirror:    newMirror(building.Elevators),
		startedAt: clock.Now(),
	}
}

// Mirror returns a snapshot of the scheduler's car mirror, for tests and
// diagnostics.
func (s *Scheduler) Mirror() []carMirror {
	out := make([]carMirror, len(s.mirror))
	copy(out, s.mirror)
	return out
}

// Run drives the state machine until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			switch s.phase {
			case receivingMessage:
				if !s.receiveMessage(ctx) {
					return
				}
			case scheduling:
				s.schedulingTick()
			case checkElevatorStuck:
				s.checkStuck()
			case fixingElevatorError:
				s.fixElevatorError()
			}
		}
	}()
}

func (s *Scheduler) receiveMessage(ctx context.Context) bool {
	payload, ok := s.queue.Poll(ctx)
	if !ok {
		return false
	}

	msg, err := wire.Classify(payload, s.building.Elevators)
	if err != nil {
		s.log.Debug().Err(err).Msg("dropping malformed message")
		return true
	}

	if msg.IsRequest {
		s.pending = append(s.pending, msg.Request)
		s.phase = scheduling
		return true
	}

	switch msg.Frame.Tag {
	case wire.DoorIssue:
		s.mirror[msg.Frame.Car].Health = elevator.OutOfService
		s.forwardToElevator(msg.Frame.Car, payload)
	case wire.Stuck:
		s.mirror[msg.Frame.Car].Health = elevator.OutOfService
		s.forwardToElevator(msg.Frame.Car, payload)
		s.sendGetElevatorRequest(msg.Frame.Car)
	case wire.ElevatorArrival:
		s.mirror[msg.Frame.Car].CurrentFloor = msg.Frame.Floor
		s.mirror[msg.Frame.Car].EstimatedArrival = time.Time{} // reset on every arrival (§9 open question)
		s.forwardToFloorSubsystem(payload)
		s.maybeReportSimulationTime()
	case wire.FixElevatorError:
		s.fixingCar = msg.Frame.Car
		s.phase = fixingElevatorError
	default:
		s.log.Debug().Stringer("tag", msg.Frame.Tag).Msg("unexpected message at scheduler")
	}
	return true
}

// schedulingTick dispatches exactly one pending request per call; the
// phase stays scheduling until the list drains, so the main loop drives
// one dispatch per iteration — §9 note 3 permits draining more than one
// per tick as long as dispatch order is preserved, but this keeps the
// one-per-tick shape of the source.
func (s *Scheduler) schedulingTick() {
	if len(s.pending) == 0 {
		s.phase = checkElevatorStuck
		return
	}
	req := s.pending[0]
	s.pending = s.pending[1:]
	s.schedule(req)
}

// schedule implements the dispatch policy of §4.4.
func (s *Scheduler) schedule(req wire.Request) {
	if req.Type == wire.Internal {
		car := req.ElevatorNumber
		if car < 0 || car >= len(s.mirror) || s.mirror[car].Health == elevator.OutOfService {
			s.log.Warn().Int("car", car).Msg("policy error: cannot schedule internal request, car out of service")
			return
		}
		s.dispatch(car, req.Floor)
		return
	}

	car := -1
	minDistance := math.MaxInt
	for i, m := range s.mirror {
		if m.Health == elevator.OutOfService {
			continue
		}
		d := abs(m.NextFloor - req.Floor)
		if d < minDistance {
			minDistance = d
			car = i
		}
	}
	if car == -1 {
		s.log.Warn().Int("floor", req.Floor).Msg("policy error: no in-service car available")
		return
	}
	s.dispatch(car, req.Floor)
}

// dispatch sends REQUEST_ELEVATOR to both the car and the floor
// subsystem, then computes and stores the ETA (§4.4 steps 1-3).
func (s *Scheduler) dispatch(car, floor int) {
	frame := wire.EncodeCarFloorFrame(wire.RequestElevator, car, floor)
	s.forwardToElevator(car, frame)
	if err := s.tr.SendTo(s.ports.FloorSubsys, frame); err != nil {
		s.log.Error().Err(err).Msg("failed to notify floor subsystem of dispatch")
	}

	s.mirror[car].EstimatedArrival = s.computeETA(car, floor)
	s.mirror[car].NextFloor = floor
}

// computeETA applies the shared kinematic formula plus a fixed slack and,
// if the car is already in motion, the remaining time on its previous
// ETA — added once. The source (Scheduler.java#getElevatorArrivalTime)
// adds this remaining time twice; §9 specifies adding it once as an
// intentional correction.
func (s *Scheduler) computeETA(car, floor int) time.Time {
	now := s.clock.Now()
	distance := math.Abs(float64(floor - s.mirror[car].CurrentFloor))
	seconds := kinematics.MotionTime(distance, s.building.MaxSpeed, s.building.Accel) + kinematics.ETASlackSeconds
	eta := now.Add(time.Duration(seconds * float64(time.Second)))

	if !s.mirror[car].atRest() && !s.mirror[car].EstimatedArrival.IsZero() {
		remaining := s.mirror[car].EstimatedArrival.Sub(now)
		if remaining > 0 {
			eta = eta.Add(remaining)
		}
	}
	return eta
}

// checkStuck implements CHECK_ELEVATOR_STUCK: every in-service car whose
// ETA has passed without reporting arrival is declared STUCK.
func (s *Scheduler) checkStuck() {
	now := s.clock.Now()
	for i := range s.mirror {
		m := &s.mirror[i]
		if m.Health == elevator.OutOfService || m.atRest() {
			continue
		}
		if m.EstimatedArrival.IsZero() || now.Before(m.EstimatedArrival) {
			continue
		}
		m.Health = elevator.OutOfService
		frame := wire.EncodeCarFrame(wire.Stuck, i)
		s.forwardToElevator(i, frame)
		if err := s.tr.SendTo(s.ports.Visualization, frame); err != nil {
			s.log.Error().Err(err).Msg("failed to notify visualization of stuck car")
		}
	}
	s.phase = receivingMessage
}

// fixElevatorError implements FIXING_ELEVATOR_ERROR: roll the repair dice
// and either restore the car to service or ask it to re-surface its
// orphaned stops.
func (s *Scheduler) fixElevatorError() {
	car := s.fixingCar
	if s.roll() <= s.building.RepairP {
		s.mirror[car].Health = elevator.InService
		s.forwardToElevator(car, wire.EncodeCarFrame(wire.IssueFixed, car))
	} else {
		s.sendGetElevatorRequest(car)
	}
	s.phase = checkElevatorStuck
}

func (s *Scheduler) sendGetElevatorRequest(car int) {
	s.forwardToElevator(car, wire.EncodeTagOnly(wire.GetElevatorRequest))
}

func (s *Scheduler) forwardToElevator(car int, payload []byte) {
	if err := s.tr.SendTo(s.ports.Elevator(car), payload); err != nil {
		s.log.Error().Err(err).Int("car", car).Msg("failed to forward message to elevator subsystem")
	}
}

func (s *Scheduler) forwardToFloorSubsystem(payload []byte) {
	if err := s.tr.SendTo(s.ports.FloorSubsys, payload); err != nil {
		s.log.Error().Err(err).Msg("failed to forward message to floor subsystem")
	}
}

// maybeReportSimulationTime mirrors Scheduler.java#updateSimulationTime:
// whenever every in-service car is at rest, it reports the elapsed time
// since startup. It is not deduplicated — the source re-emits on every
// arrival that happens to find all cars at rest, and this keeps that
// shape rather than introducing a "reported once" behavior the source
// never had.
func (s *Scheduler) maybeReportSimulationTime() {
	for _, m := range s.mirror {
		if m.Health == elevator.OutOfService {
			continue
		}
		if !m.atRest() {
			return
		}
	}
	elapsed := int(s.clock.Now().Sub(s.startedAt).Seconds())
	frame := wire.EncodeSecondsFrame(wire.TotalSimulationTime, elapsed)
	if err := s.tr.SendTo(s.ports.Visualization, frame); err != nil {
		s.log.Error().Err(err).Msg("failed to report total simulation time")
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
