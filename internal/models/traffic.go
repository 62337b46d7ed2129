package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// TrafficLevel is a coarse classification of the current congestion at a
// camera relative to its own history. Levels are ordered by severity.
type TrafficLevel int

const (
	TrafficUnknown TrafficLevel = iota
	TrafficLow
	TrafficMedium
	TrafficHigh
	TrafficCritical
)

var trafficLevelNames = [...]string{"Unknown", "Low", "Medium", "High", "Critical"}

func (l TrafficLevel) String() string {
	if l < TrafficUnknown || l > TrafficCritical {
		return fmt.Sprintf("TrafficLevel(%d)", int(l))
	}
	return trafficLevelNames[l]
}

func (l TrafficLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

func (l *TrafficLevel) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseTrafficLevel(name)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseTrafficLevel accepts the level name in any case.
func ParseTrafficLevel(name string) (TrafficLevel, error) {
	for i, n := range trafficLevelNames {
		if strings.EqualFold(n, name) {
			return TrafficLevel(i), nil
		}
	}
	return TrafficUnknown, fmt.Errorf("unknown traffic level %q", name)
}
