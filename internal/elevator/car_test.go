package elevator

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"github.com/mkallander/elevatorsim/internal/config"
	"github.com/mkallander/elevatorsim/internal/obslog"
	"github.com/mkallander/elevatorsim/internal/pqueue"
	"github.com/mkallander/elevatorsim/internal/simclock"
	"github.com/mkallander/elevatorsim/internal/transport/transportmock"
	"github.com/mkallander/elevatorsim/internal/wire"
)

func waitForFloor(t *testing.T, c *Car, floor int, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if c.State().CurrentFloor == floor {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("car did not reach floor %d within %s (last floor: %d)", floor, timeout, c.State().CurrentFloor)
}

func TestCarServicesSingleExternalCall(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := transportmock.NewMockTransport(ctrl)
	tr.EXPECT().SendTo(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	building := config.Default()
	ports := config.DefaultPorts()
	queue := pqueue.New(building.QueueCap, nil)
	clock := simclock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	car := NewCar(0, building, ports, tr, queue, clock, obslog.For("test-car"))

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	car.Run(ctx, &wg)
	defer func() {
		cancel()
		wg.Wait()
	}()

	queue.Submit(wire.EncodeCarFloorFrame(wire.RequestElevator, 0, 3))

	waitForFloor(t, car, 3, 2*time.Second)

	if car.State().Door != DoorClosed {
		t.Fatalf("expected doors closed after the cycle, got %s", car.State().Door)
	}
	if len(car.State().PendingStops) != 0 {
		t.Fatalf("expected no remaining pending stops, got %v", car.State().PendingStops)
	}
}

func TestCarIgnoresMotionWhenOutOfService(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := transportmock.NewMockTransport(ctrl)
	tr.EXPECT().SendTo(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	building := config.Default()
	ports := config.DefaultPorts()
	queue := pqueue.New(building.QueueCap, nil)
	clock := simclock.NewFake(time.Now())

	car := NewCar(1, building, ports, tr, queue, clock, obslog.For("test-car"))

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	car.Run(ctx, &wg)
	defer func() {
		cancel()
		wg.Wait()
	}()

	queue.Submit(wire.EncodeCarFrame(wire.DoorIssue, 1))
	queue.Submit(wire.EncodeCarFloorFrame(wire.RequestElevator, 1, 5))

	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	if car.State().Health != OutOfService {
		t.Fatalf("expected car to be out of service, got %s", car.State().Health)
	}
	if car.State().CurrentFloor != 0 {
		t.Fatalf("expected car to stay at floor 0 while out of service, got %d", car.State().CurrentFloor)
	}
}
