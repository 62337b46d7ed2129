package models

import (
	"fmt"
	"time"
)

// TimeLayout is the persisted text form of an observation time. It is fixed
// width and always UTC, so lexical order matches chronological order.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

// UnknownPhotoTime is recorded when the camera metadata carries no photo time.
var UnknownPhotoTime = time.Time{}

// Observation is one recorded car count for a camera location.
type Observation struct {
	Location string    `json:"location"`
	Time     time.Time `json:"time"`
	CarCount int       `json:"nr_cars"`
}

// StatPoint is a (time, car count) pair as returned by history queries.
type StatPoint struct {
	Time     string `json:"time"`
	CarCount int    `json:"nr_cars"`
}

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime is the inverse of FormatTime. RFC3339 input is accepted as well.
func ParseTime(s string) (time.Time, error) {
	if t, err := time.Parse(TimeLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: %w", s, err)
	}
	return t.UTC(), nil
}

// Counts extracts the car counts of a series, preserving order.
func Counts(points []StatPoint) []int {
	counts := make([]int, len(points))
	for i, p := range points {
		counts[i] = p.CarCount
	}
	return counts
}

// ParseRange parses optional inclusive range bounds. A missing from starts
// at the beginning of the history and a missing to ends at now.
func ParseRange(from, to string, now time.Time) (time.Time, time.Time, error) {
	start := UnknownPhotoTime
	end := now.UTC()
	var err error
	if from != "" {
		if start, err = ParseTime(from); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid from: %w", err)
		}
	}
	if to != "" {
		if end, err = ParseTime(to); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid to: %w", err)
		}
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("range end %s is before start %s", FormatTime(end), FormatTime(start))
	}
	return start, end, nil
}
