package scheduler

import (
	"time"

	"github.com/mkallander/elevatorsim/internal/elevator"
)

// carMirror is one car's entry in the scheduler's mirror (§3): the
// scheduler's exclusively-owned view of a car's position and health,
// updated only by messages.
type carMirror struct {
	CurrentFloor     int
	NextFloor        int
	Health           elevator.Health
	EstimatedArrival time.Time // zero value means "no ETA outstanding"
}

func newMirror(numCars int) []carMirror {
	mirror := make([]carMirror, numCars)
	for i := range mirror {
		mirror[i] = carMirror{Health: elevator.InService}
	}
	return mirror
}

// atRest reports whether the scheduler believes car i has no outstanding
// dispatch (§3: "currentFloor == nextFloor ⇒ the car is at rest").
func (m carMirror) atRest() bool {
	return m.CurrentFloor == m.NextFloor
}
