package guard

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmitrymomot/tenantplans/pkg/restriction"
)

// Observer receives one call per decision.
type Observer interface {
	Decision(scope restriction.Scope, outcome Outcome)
}

type noopObserver struct{}

func (noopObserver) Decision(restriction.Scope, Outcome) {}

// PrometheusObserver counts decisions by scope and outcome.
type PrometheusObserver struct {
	decisions *prometheus.CounterVec
}

// NewPrometheusObserver registers guard_decisions_total{scope,outcome} on reg.
func NewPrometheusObserver(namespace string, reg prometheus.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = "tenantplans"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "guard_decisions_total",
		Help:      "Access guard decisions, by route scope and outcome.",
	}, []string{"scope", "outcome"})

	if err := reg.Register(decisions); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, fmt.Errorf("register guard metric: %w", err)
		}
		decisions = are.ExistingCollector.(*prometheus.CounterVec)
	}
	return &PrometheusObserver{decisions: decisions}, nil
}

func (o *PrometheusObserver) Decision(scope restriction.Scope, outcome Outcome) {
	if o == nil {
		return
	}
	o.decisions.WithLabelValues(string(scope), string(outcome)).Inc()
}
