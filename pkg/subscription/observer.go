package subscription

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Observer receives batch telemetry.
type Observer interface {
	ScheduledChange(kind ChangeKind, outcome Outcome)
}

type noopObserver struct{}

func (noopObserver) ScheduledChange(ChangeKind, Outcome) {}

// PrometheusObserver counts scheduled change outcomes.
type PrometheusObserver struct {
	changes *prometheus.CounterVec
}

// NewPrometheusObserver registers scheduled_changes_total{kind,outcome} on reg.
func NewPrometheusObserver(namespace string, reg prometheus.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = "tenantplans"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	changes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scheduled_changes_total",
		Help:      "Scheduled downgrades and cancellations processed, by outcome.",
	}, []string{"kind", "outcome"})

	if err := reg.Register(changes); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, fmt.Errorf("register subscription metric: %w", err)
		}
		changes = are.ExistingCollector.(*prometheus.CounterVec)
	}
	return &PrometheusObserver{changes: changes}, nil
}

func (o *PrometheusObserver) ScheduledChange(kind ChangeKind, outcome Outcome) {
	if o == nil {
		return
	}
	o.changes.WithLabelValues(string(kind), string(outcome)).Inc()
}
