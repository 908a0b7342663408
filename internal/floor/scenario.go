package floor

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mkallander/elevatorsim/internal/wire"
)

// scenarioCall is one parsed "call" line of §6's scenario grammar:
// `HH:MM:SS.mmm floor UP|DOWN elevatorNumber INTERNAL|EXTERNAL`.
type scenarioCall struct {
	Offset    time.Duration
	Floor     int
	Direction wire.Direction
	Car       int
	Type      wire.RequestType
}

// scenarioFault is one parsed "fault" line:
// `HH:MM:SS.mmm floor DOOR_ISSUE|ELEVATOR_STUCK`. The grammar calls the
// second token "floor", but FloorSubsystem.java's Issue carries it as the
// fault's target elevator number — its constructor is
// Issue(issue, elevatorNumber, requestTime) and the reader passes tmp[1]
// into that slot. This parses it the way the source actually behaves: as
// the car the fault targets, not a floor.
type scenarioFault struct {
	Offset time.Duration
	Car    int
	Kind   wire.Tag
}

// Scenario is the floor subsystem's two chronologically sorted sequences
// of §4.2: pending calls and pending faults.
type Scenario struct {
	Calls  []scenarioCall
	Faults []scenarioFault
}

// LoadScenarioFile reads and parses a scenario file. Per §7, a malformed
// line is fatal at startup; callers are expected to log.Fatal on a
// non-nil error before binding any socket.
func LoadScenarioFile(path string) (Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("floor: opening scenario file: %w", err)
	}
	defer f.Close()
	return ParseScenario(f)
}

const timeLayout = "15:04:05.000"

// ParseScenario parses the whitespace-separated scenario records of §6
// into two time-sorted sequences.
func ParseScenario(r io.Reader) (Scenario, error) {
	var sc Scenario
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			return Scenario{}, fmt.Errorf("floor: scenario line %d: expected at least 3 fields, got %d", lineNo, len(fields))
		}

		offset, err := parseOffset(fields[0])
		if err != nil {
			return Scenario{}, fmt.Errorf("floor: scenario line %d: %w", lineNo, err)
		}

		switch fields[2] {
		case "DOOR_ISSUE", "ELEVATOR_STUCK":
			car, err := strconv.Atoi(fields[1])
			if err != nil {
				return Scenario{}, fmt.Errorf("floor: scenario line %d: bad elevator number %q: %w", lineNo, fields[1], err)
			}
			kind := wire.DoorIssue
			if fields[2] == "ELEVATOR_STUCK" {
				kind = wire.Stuck
			}
			sc.Faults = append(sc.Faults, scenarioFault{Offset: offset, Car: car, Kind: kind})

		case "UP", "DOWN":
			if len(fields) != 5 {
				return Scenario{}, fmt.Errorf("floor: scenario line %d: expected 5 fields for a call, got %d", lineNo, len(fields))
			}
			floorNum, err := strconv.Atoi(fields[1])
			if err != nil {
				return Scenario{}, fmt.Errorf("floor: scenario line %d: bad floor %q: %w", lineNo, fields[1], err)
			}
			car, err := strconv.Atoi(fields[3])
			if err != nil {
				return Scenario{}, fmt.Errorf("floor: scenario line %d: bad elevator number %q: %w", lineNo, fields[3], err)
			}
			dir := wire.Up
			if fields[2] == "DOWN" {
				dir = wire.Down
			}
			var reqType wire.RequestType
			switch fields[4] {
			case "INTERNAL":
				reqType = wire.Internal
			case "EXTERNAL":
				reqType = wire.External
			default:
				return Scenario{}, fmt.Errorf("floor: scenario line %d: bad request type %q", lineNo, fields[4])
			}
			sc.Calls = append(sc.Calls, scenarioCall{Offset: offset, Floor: floorNum, Direction: dir, Car: car, Type: reqType})

		default:
			return Scenario{}, fmt.Errorf("floor: scenario line %d: unrecognized record kind %q", lineNo, fields[2])
		}
	}
	if err := scanner.Err(); err != nil {
		return Scenario{}, fmt.Errorf("floor: reading scenario file: %w", err)
	}

	sort.SliceStable(sc.Calls, func(i, j int) bool { return sc.Calls[i].Offset < sc.Calls[j].Offset })
	sort.SliceStable(sc.Faults, func(i, j int) bool { return sc.Faults[i].Offset < sc.Faults[j].Offset })
	return sc, nil
}

// parseOffset parses a scenario timestamp as a duration since midnight,
// i.e. the elapsed time into the simulation it is scheduled for.
func parseOffset(s string) (time.Duration, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return 0, fmt.Errorf("bad timestamp %q: %w", s, err)
	}
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return t.Sub(midnight), nil
}
