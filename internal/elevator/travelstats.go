package elevator

import "math"

// travelSample is one completed trip's distance (floors) and measured
// duration (seconds) — the in-memory analogue of Elevator.java's
// travelTimes list. Persistence of this data to a file is explicitly out
// of scope; only the in-memory mean feeds the AVERAGE_TRAVEL_TIME
// telemetry datagram.
type travelSample struct {
	distanceFloors int
	seconds        float64
}

// travelStats accumulates travelSamples and computes the running mean and
// a 95%-confidence interval the way the source's saveTime did, minus the
// file write.
type travelStats struct {
	samples []travelSample
	total   float64
}

func newTravelStats() *travelStats {
	return &travelStats{}
}

func (s *travelStats) record(distanceFloors int, seconds float64) {
	s.samples = append(s.samples, travelSample{distanceFloors, seconds})
	s.total += seconds
}

// mean returns the average trip duration in seconds, 0 if no trips yet.
func (s *travelStats) mean() float64 {
	if len(s.samples) == 0 {
		return 0
	}
	return s.total / float64(len(s.samples))
}

// confidenceInterval95 returns the [lower, upper] 95% confidence bound
// around the mean, using the source's z=1.96 approximation. Both bounds
// are 0 with fewer than two samples (sample variance is undefined).
func (s *travelStats) confidenceInterval95() (lower, upper float64) {
	n := len(s.samples)
	if n < 2 {
		return 0, 0
	}
	mean := s.mean()
	var sumSq float64
	for _, sample := range s.samples {
		d := sample.seconds - mean
		sumSq += d * d
	}
	variance := sumSq / float64(n-1)
	stdDev := math.Sqrt(variance)
	return mean - 1.96*stdDev, mean + 1.96*stdDev
}
