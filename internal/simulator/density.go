package simulator

import (
	"time"

	"github.com/jaswdr/faker"
)

func isRushHour(hour int) bool {
	return (hour >= 7 && hour <= 9) || (hour >= 16 && hour <= 18)
}

func isNight(hour int) bool {
	return hour >= 22 || hour <= 5
}

func isWeekend(t time.Time) bool {
	day := t.Weekday()
	return day == time.Saturday || day == time.Sunday
}

// trafficDensity returns the share of road capacity in use at t, in [0, 1].
func trafficDensity(fake faker.Faker, t time.Time) float64 {
	hour := t.Hour()
	var density float64
	switch {
	case isRushHour(hour) && !isWeekend(t):
		density = fake.Float64(2, 70, 100) / 100
	case isNight(hour):
		density = fake.Float64(2, 0, 30) / 100
	default:
		density = fake.Float64(2, 30, 70) / 100
	}

	// weekend daytime traffic is spread out and lighter
	if isWeekend(t) && hour >= 10 && hour <= 20 {
		density *= 0.85
	}
	return density
}
