package metrics

import (
	"time"

	"github.com/chrisdamba/trafikcam/internal/models"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess   = "success"
	OutcomeNoImage   = "no_image"
	OutcomeTransient = "transient_error"
	OutcomeFatal     = "fatal_error"
)

// Collector holds the refresh-cycle metrics of every camera location.
type Collector struct {
	cycles       *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	cars         *prometheus.GaugeVec
	trafficLevel *prometheus.GaugeVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trafikcam",
			Name:      "cycles_total",
			Help:      "Refresh cycles by location and outcome.",
		}, []string{"location", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "trafikcam",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of refresh cycles.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"location"}),
		cars: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "trafikcam",
			Name:      "cars_detected",
			Help:      "Cars detected in the latest image.",
		}, []string{"location"}),
		trafficLevel: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "trafikcam",
			Name:      "traffic_level",
			Help:      "Latest traffic level (0 unknown .. 4 critical).",
		}, []string{"location"}),
	}
	if reg != nil {
		reg.MustRegister(c.cycles, c.duration, c.cars, c.trafficLevel)
	}
	return c
}

func (c *Collector) ObserveCycle(location, outcome string, took time.Duration) {
	if c == nil {
		return
	}
	c.cycles.WithLabelValues(location, outcome).Inc()
	c.duration.WithLabelValues(location).Observe(took.Seconds())
}

func (c *Collector) SetResult(location string, cars int, level models.TrafficLevel) {
	if c == nil {
		return
	}
	c.cars.WithLabelValues(location).Set(float64(cars))
	c.trafficLevel.WithLabelValues(location).Set(float64(level))
}

// Forget drops the series of a location that is no longer monitored.
func (c *Collector) Forget(location string) {
	if c == nil {
		return
	}
	for _, outcome := range []string{OutcomeSuccess, OutcomeNoImage, OutcomeTransient, OutcomeFatal} {
		c.cycles.DeleteLabelValues(location, outcome)
	}
	c.duration.DeleteLabelValues(location)
	c.cars.DeleteLabelValues(location)
	c.trafficLevel.DeleteLabelValues(location)
}
