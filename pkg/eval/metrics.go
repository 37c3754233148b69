package eval

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeOK    = "ok"
	outcomeError = "error"
)

// Metrics counts evaluations and function calls. A nil *Metrics records nothing.
type Metrics struct {
	evaluations *prometheus.CounterVec
	calls       *prometheus.CounterVec
}

// NewMetrics creates the counters and registers them with reg, if it is not nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "udfhost",
			Name:      "evaluations_total",
			Help:      "Expressions evaluated, by outcome.",
		}, []string{"outcome"}),
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "udfhost",
			Name:      "function_calls_total",
			Help:      "User-defined function calls, by qualified function name and outcome.",
		}, []string{"function", "outcome"}),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{m.evaluations, m.calls} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// Evaluations returns the evaluation counter, labeled by outcome.
func (m *Metrics) Evaluations() *prometheus.CounterVec { return m.evaluations }

// Calls returns the function call counter, labeled by function and outcome.
func (m *Metrics) Calls() *prometheus.CounterVec { return m.calls }

func (m *Metrics) evaluated(err error) {
	if m == nil {
		return
	}
	m.evaluations.WithLabelValues(outcome(err)).Inc()
}

func (m *Metrics) called(function string, err error) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(function, outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return outcomeError
	}
	return outcomeOK
}
