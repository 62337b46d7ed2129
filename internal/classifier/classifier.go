// Package classifier ranks a car count against the history of its camera
// and turns the percentile into a TrafficLevel.
package classifier

import (
	"sort"

	"github.com/chrisdamba/trafikcam/internal/models"
)

const (
	criticalAbove = 0.9
	highAbove     = 0.7
	mediumAbove   = 0.5
)

// Classify returns the traffic level of newCount relative to history.
//
// history is expected to already contain newCount (the coordinator appends
// the observation before classifying). A count missing from history but
// inside its observed range is inserted into a copy of the distribution
// before ranking. Empty history, or a count outside the observed range,
// yields TrafficUnknown.
func Classify(newCount int, history []int) models.TrafficLevel {
	percentile, ok := Percentile(newCount, history)
	if !ok {
		return models.TrafficUnknown
	}
	return LevelFor(percentile)
}

// LevelFor maps a percentile to a level. Thresholds are exclusive.
func LevelFor(percentile float64) models.TrafficLevel {
	switch {
	case percentile > criticalAbove:
		return models.TrafficCritical
	case percentile > highAbove:
		return models.TrafficHigh
	case percentile > mediumAbove:
		return models.TrafficMedium
	default:
		return models.TrafficLow
	}
}

// Percentile computes the run-midpoint percentile rank of newCount within
// history. The second return value is false when the count cannot be ranked.
func Percentile(newCount int, history []int) (float64, bool) {
	if len(history) == 0 {
		return 0, false
	}

	sorted := make([]int, len(history), len(history)+1)
	copy(sorted, history)
	sort.Ints(sorted)

	first := sort.SearchInts(sorted, newCount)
	if first == len(sorted) || sorted[first] != newCount {
		// not recorded yet: only counts that fall between observed values
		// have a position in the distribution
		if newCount < sorted[0] || newCount > sorted[len(sorted)-1] {
			return 0, false
		}
		sorted = append(sorted, 0)
		copy(sorted[first+1:], sorted[first:])
		sorted[first] = newCount
	}

	occurrences := 0
	for i := first; i < len(sorted) && sorted[i] == newCount; i++ {
		occurrences++
	}

	// a count that recurs takes the middle of its own run, not its edge
	rank := float64(first) + float64(occurrences)/2
	return rank / float64(len(sorted)), true
}
