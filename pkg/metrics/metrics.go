package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// LatencyBuckets are in milliseconds. Gateway calls dominate request time, so
// the range runs well past the gateway timeout.
var LatencyBuckets = []float64{
	25, 50, 100, 200, 300, 500,
	750, 1000, 1500, 2000,
	3000, 5000, 7500, 10000, 15000,
	20000, 30000, 45000, 60000, 90000, 120000,
}

type Kind string

const (
	KindCounterVec   Kind = "counter_vec"
	KindHistogramVec Kind = "histogram_vec"
	KindSummaryVec   Kind = "summary_vec"
)

// Metric describes one labelled collector.
type Metric struct {
	Name   string
	Help   string
	Kind   Kind
	Labels []string
}

func (m *Metric) collector(subsystem string) prometheus.Collector {
	switch m.Kind {
	case KindCounterVec:
		return prometheus.NewCounterVec(prometheus.CounterOpts{Subsystem: subsystem, Name: m.Name, Help: m.Help}, m.Labels)
	case KindHistogramVec:
		return prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Subsystem: subsystem, Name: m.Name, Help: m.Help, Buckets: LatencyBuckets,
		}, m.Labels)
	case KindSummaryVec:
		return prometheus.NewSummaryVec(prometheus.SummaryOpts{Subsystem: subsystem, Name: m.Name, Help: m.Help}, m.Labels)
	}
	return nil
}

// register adds m to reg, reusing a collector that is already registered
// under the same name. Building the fx graph twice in one process (tests,
// cashierctl) must not fail on the default registry.
func register(reg prometheus.Registerer, m *Metric, subsystem string) (prometheus.Collector, error) {
	c := m.collector(subsystem)
	if c == nil {
		return nil, errors.New("metrics: unknown kind " + string(m.Kind) + " for " + m.Name)
	}
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector, nil
		}
		return nil, err
	}
	return c, nil
}
