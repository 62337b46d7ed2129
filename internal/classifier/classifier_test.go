package classifier

import (
	"math"
	"testing"

	"github.com/chrisdamba/trafikcam/internal/models"
)

func TestClassify(t *testing.T) {
	skewed := []int{1, 1, 2, 2, 2, 2, 5, 5, 6}

	testCases := []struct {
		name     string
		count    int
		history  []int
		expected models.TrafficLevel
	}{
		{name: "empty history", count: 3, history: nil, expected: models.TrafficUnknown},
		{name: "single element", count: 5, history: []int{5}, expected: models.TrafficLow},
		{name: "lowest repeated value", count: 1, history: []int{1, 1, 3, 3}, expected: models.TrafficLow},
		{name: "inserted between runs", count: 2, history: []int{1, 1, 3, 3}, expected: models.TrafficLow},
		{name: "maximum", count: 6, history: skewed, expected: models.TrafficCritical},
		{name: "second highest run", count: 5, history: skewed, expected: models.TrafficHigh},
		{name: "inserted above midpoint", count: 4, history: skewed, expected: models.TrafficMedium},
		{name: "dominant low run", count: 2, history: skewed, expected: models.TrafficLow},
		{name: "below observed range", count: -1, history: []int{1, 2, 2, 3, 3, 3, 4, 4, 5, 6, 10, 10}, expected: models.TrafficUnknown},
		{name: "above observed range", count: 11, history: []int{1, 2, 2, 3, 3, 3, 4, 4, 5, 6, 10, 10}, expected: models.TrafficUnknown},
		{name: "unsorted input", count: 9, history: []int{9, 0, 3, 1, 2, 4, 5, 6, 7, 8}, expected: models.TrafficCritical},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.count, tc.history); got != tc.expected {
				t.Errorf("Classify(%d, %v) = %s, expected %s", tc.count, tc.history, got, tc.expected)
			}
		})
	}
}

func TestClassifyDoesNotMutateHistory(t *testing.T) {
	history := []int{5, 3, 1}
	Classify(2, history)
	if history[0] != 5 || history[1] != 3 || history[2] != 1 {
		t.Errorf("history was modified: %v", history)
	}
}

func TestClassifyNeverUnknownForMembers(t *testing.T) {
	history := []int{0, 0, 0, 1, 4, 4, 7, 12, 12, 12, 12, 30}
	for _, v := range history {
		if got := Classify(v, history); got == models.TrafficUnknown {
			t.Errorf("Classify(%d) returned Unknown for a member of history", v)
		}
	}
}

func TestPercentile(t *testing.T) {
	testCases := []struct {
		count   int
		history []int
		want    float64
	}{
		{count: 5, history: []int{5}, want: 0.5},
		{count: 1, history: []int{1, 1, 3, 3}, want: 0.25},
		{count: 2, history: []int{1, 1, 3, 3}, want: 0.5},
		{count: 5, history: []int{1, 1, 2, 2, 2, 2, 5, 5, 6}, want: 7.0 / 9.0},
		{count: 4, history: []int{1, 1, 2, 2, 2, 2, 5, 5, 6}, want: 0.65},
	}
	for _, tc := range testCases {
		got, ok := Percentile(tc.count, tc.history)
		if !ok {
			t.Fatalf("Percentile(%d, %v) could not rank", tc.count, tc.history)
		}
		if math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("Percentile(%d, %v) = %f, want %f", tc.count, tc.history, got, tc.want)
		}
	}
}

func TestLevelForBoundaries(t *testing.T) {
	testCases := []struct {
		percentile float64
		expected   models.TrafficLevel
	}{
		{0, models.TrafficLow},
		{0.5, models.TrafficLow},
		{0.51, models.TrafficMedium},
		{0.7, models.TrafficMedium},
		{0.71, models.TrafficHigh},
		{0.9, models.TrafficHigh},
		{0.91, models.TrafficCritical},
		{1, models.TrafficCritical},
	}
	for _, tc := range testCases {
		if got := LevelFor(tc.percentile); got != tc.expected {
			t.Errorf("LevelFor(%v) = %s, expected %s", tc.percentile, got, tc.expected)
		}
	}
}
