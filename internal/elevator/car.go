package elevator

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mkallander/elevatorsim/internal/config"
	"github.com/mkallander/elevatorsim/internal/kinematics"
	"github.com/mkallander/elevatorsim/internal/pqueue"
	"github.com/mkallander/elevatorsim/internal/simclock"
	"github.com/mkallander/elevatorsim/internal/transport"
	"github.com/mkallander/elevatorsim/internal/wire"
)

// phase is the subsystem-loop state of §4.3, distinct from the car's own
// domain State: RECEIVING_MESSAGE, MOVING_ELEVATOR, NEW_FLOOR.
type phase int

const (
	receivingMessage phase = iota
	movingElevator
	newFloorArrived
)

// Car is one per-car Elevator Subsystem instance.
type Car struct {
	id       int
	building config.Building
	ports    config.Ports
	tr       transport.Transport
	queue    *pqueue.Queue
	clock    simclock.Clock
	log      zerolog.Logger
	stats    *travelStats

	phase        phase
	state        State
	arrivedFloor int
}

// NewCar wires a Car to its transport and ingress queue. The queue is
// normally owned by a pqueue.Receiver bound to the car's fixed port
// (ports.Elevator(id)); tests may construct one directly.
func NewCar(id int, building config.Building, ports config.Ports, tr transport.Transport, queue *pqueue.Queue, clock simclock.Clock, log zerolog.Logger) *Car {
	return &Car{
		id:       id,
		building: building,
		ports:    ports,
		tr:       tr,
		queue:    queue,
		clock:    clock,
		log:      log,
		stats:    newTravelStats(),
		phase:    receivingMessage,
		state:    newState(id),
	}
}

// State returns a snapshot of the car's current domain state.
func (c *Car) State() State {
	return c.state
}

// Run drives the state machine until ctx is cancelled.
func (c *Car) Run(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			switch c.phase {
			case receivingMessage:
				if !c.receiveMessage(ctx) {
					return
				}
			case movingElevator:
				c.moveElevator()
			case newFloorArrived:
				c.checkNewFloor()
			}
		}
	}()
}

// receiveMessage implements RECEIVING_MESSAGE: drain one non-
// REQUEST_ELEVATOR ingress message, then absorb every queued
// REQUEST_ELEVATOR entry into pendingStops. Returns false if ctx was
// cancelled while waiting.
func (c *Car) receiveMessage(ctx context.Context) bool {
	if !c.queue.WaitNonEmpty(ctx) {
		return false
	}

	if payload, ok := c.queue.Peek(); ok && wire.Tag(payload[0]) != wire.RequestElevator {
		popped, _ := c.queue.Poll(ctx)
		c.handleControlMessage(popped)
	}

	c.absorbRequestElevator()

	if len(c.state.PendingStops) > 0 {
		c.phase = movingElevator
	}
	return true
}

func (c *Car) handleControlMessage(payload []byte) {
	if payload == nil {
		return
	}
	frame, err := wire.DecodeFrame(payload, 0)
	if err != nil {
		c.log.Debug().Err(err).Msg("dropping malformed message")
		return
	}

	switch frame.Tag {
	case wire.DoorIssue:
		c.state.Health = OutOfService
		c.forwardToVisualization(payload)
		c.sendFixRequest()
	case wire.Stuck:
		c.state.Health = OutOfService
		c.forwardToVisualization(payload)
	case wire.IssueFixed:
		c.state.Health = InService
		c.forwardToVisualization(payload)
	case wire.GetElevatorRequest:
		c.resurfaceOrphanedStops()
	default:
		c.log.Debug().Stringer("tag", frame.Tag).Msg("unexpected message in elevator subsystem")
	}
}

func (c *Car) absorbRequestElevator() {
	matched := c.queue.RemoveMatching(func(payload []byte) bool {
		return wire.Tag(payload[0]) == wire.RequestElevator
	})
	for _, payload := range matched {
		frame, err := wire.DecodeFrame(payload, 0)
		if err != nil {
			c.log.Debug().Err(err).Msg("dropping malformed REQUEST_ELEVATOR")
			continue
		}
		c.state.PendingStops = addStop(c.state.PendingStops, frame.Floor, c.state.CurrentFloor)
	}
}

// resurfaceOrphanedStops implements GET_ELEVATOR_REQUEST: every remaining
// stop is re-sent to the scheduler as a fresh external Request, and
// pendingStops is cleared.
func (c *Car) resurfaceOrphanedStops() {
	for _, stop := range c.state.PendingStops {
		req := wire.Request{
			Floor:          stop,
			ElevatorNumber: c.id,
			Direction:      wire.Up,
			RequestTime:    c.clock.Now(),
			Type:           wire.External,
		}
		encoded, err := wire.EncodeRequest(req)
		if err != nil {
			c.log.Error().Err(err).Msg("failed to encode orphaned-stop request")
			continue
		}
		if err := c.tr.SendTo(c.ports.Scheduler, encoded); err != nil {
			c.log.Error().Err(err).Msg("failed to send orphaned-stop request")
		}
	}
	c.state.PendingStops = nil
}

func (c *Car) sendFixRequest() {
	frame := wire.EncodeCarFrame(wire.FixElevatorError, c.id)
	if err := c.tr.SendTo(c.ports.Scheduler, frame); err != nil {
		c.log.Error().Err(err).Msg("failed to send fix-elevator request")
	}
}

func (c *Car) forwardToVisualization(payload []byte) {
	if err := c.tr.SendTo(c.ports.Visualization, payload); err != nil {
		c.log.Error().Err(err).Msg("failed to forward message to visualization")
	}
}

// moveElevator implements MOVING_ELEVATOR.
func (c *Car) moveElevator() {
	if len(c.state.PendingStops) == 0 || c.state.Health == OutOfService {
		c.phase = receivingMessage
		return
	}

	ordered := sortStops(c.state.PendingStops, c.state.CurrentFloor, c.state.Direction)
	dest := ordered[0]
	c.state.PendingStops = ordered[1:]
	c.state.Direction = nextDirection(dest, c.state.CurrentFloor)
	c.state.Motion = ServicingStop

	c.travel(dest)
	c.phase = newFloorArrived
}

func (c *Car) travel(dest int) {
	distance := math.Abs(float64(dest - c.state.CurrentFloor))
	seconds := kinematics.MotionTime(distance, c.building.MaxSpeed, c.building.Accel)
	c.clock.Sleep(time.Duration(seconds * float64(time.Second)))
	c.stats.record(int(distance), seconds)
	c.arrivedFloor = dest
}

// checkNewFloor implements NEW_FLOOR: mark arrival, cycle doors, report.
func (c *Car) checkNewFloor() {
	c.state.CurrentFloor = c.arrivedFloor
	c.state.Motion = Idle
	c.cycleDoor()
	c.sendArrival(c.arrivedFloor)
	c.sendTravelTelemetry()
	c.phase = movingElevator
}

func (c *Car) cycleDoor() {
	doorSeconds := time.Duration(c.building.DoorTime * float64(time.Second))
	c.state.Door = DoorOpen
	c.clock.Sleep(doorSeconds)
	c.state.Door = DoorClosed
	c.clock.Sleep(doorSeconds)
}

func (c *Car) sendArrival(floor int) {
	frame := wire.EncodeCarFloorFrame(wire.ElevatorArrival, c.id, floor)
	if err := c.tr.SendTo(c.ports.Scheduler, frame); err != nil {
		c.log.Error().Err(err).Msg("failed to send arrival notification")
	}
}

func (c *Car) sendTravelTelemetry() {
	frame := wire.EncodeCarFloorFrame(wire.AverageTravelTime, c.id, int(c.stats.mean()))
	if err := c.tr.SendTo(c.ports.Visualization, frame); err != nil {
		c.log.Error().Err(err).Msg("failed to send travel-time telemetry")
	}

	if lower, upper := c.stats.confidenceInterval95(); lower != 0 || upper != 0 {
		c.log.Debug().Float64("meanSeconds", c.stats.mean()).Float64("ci95Lower", lower).Float64("ci95Upper", upper).Msg("travel time sample")
	}
}
