package elevator

import "testing"

func TestTravelStatsConfidenceIntervalNeedsTwoSamples(t *testing.T) {
	s := newTravelStats()
	s.record(3, 10)

	lower, upper := s.confidenceInterval95()
	if lower != 0 || upper != 0 {
		t.Fatalf("expected a zero interval with a single sample, got [%v, %v]", lower, upper)
	}
}

func TestTravelStatsConfidenceIntervalBracketsTheMean(t *testing.T) {
	s := newTravelStats()
	s.record(3, 9)
	s.record(3, 10)
	s.record(3, 11)

	mean := s.mean()
	lower, upper := s.confidenceInterval95()

	if lower >= mean || upper <= mean {
		t.Fatalf("expected mean %v strictly inside [%v, %v]", mean, lower, upper)
	}
	if lower > upper {
		t.Fatalf("lower bound %v should not exceed upper bound %v", lower, upper)
	}
}
