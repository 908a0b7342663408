package elevator

import "sort"

// addStop inserts floor into pendingStops, preserving invariant 1 (no
// duplicates, no entry equal to currentFloor).
func addStop(pendingStops []int, floor, currentFloor int) []int {
	if floor == currentFloor {
		return pendingStops
	}
	for _, s := range pendingStops {
		if s == floor {
			return pendingStops
		}
	}
	return append(pendingStops, floor)
}

// sortStops implements §4.3's stop-ordering policy: given current floor c,
// direction d and stop set S,
//
//	d = UP:   {s ∈ S : s ≥ c} ascending, then {s ∈ S : s < c} descending
//	d = DOWN: {s ∈ S : s ≤ c} descending, then {s > c} ascending
func sortStops(stops []int, current int, dir Direction) []int {
	var ahead, behind []int
	for _, s := range stops {
		if dir == Up {
			if s >= current {
				ahead = append(ahead, s)
			} else {
				behind = append(behind, s)
			}
		} else {
			if s <= current {
				ahead = append(ahead, s)
			} else {
				behind = append(behind, s)
			}
		}
	}

	if dir == Up {
		sort.Ints(ahead)
		sort.Sort(sort.Reverse(sort.IntSlice(behind)))
	} else {
		sort.Sort(sort.Reverse(sort.IntSlice(ahead)))
		sort.Ints(behind)
	}

	ordered := make([]int, 0, len(stops))
	ordered = append(ordered, ahead...)
	ordered = append(ordered, behind...)
	return ordered
}

// nextDirection updates direction by comparing the chosen stop to the
// current floor: UP if strictly greater, else DOWN.
func nextDirection(chosen, current int) Direction {
	if chosen > current {
		return Up
	}
	return Down
}
