package audit

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Observer receives audit delivery telemetry.
type Observer interface {
	AuditWriteFailed(action string)
}

type noopObserver struct{}

func (noopObserver) AuditWriteFailed(string) {}

// PrometheusObserver counts failed audit writes.
type PrometheusObserver struct {
	failures *prometheus.CounterVec
}

// NewPrometheusObserver registers the failure counter on reg (default registerer when nil).
func NewPrometheusObserver(namespace string, reg prometheus.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = "tenantplans"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_write_failures_total",
		Help:      "Audit records that could not be written to the sink.",
	}, []string{"action"})

	if err := reg.Register(failures); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, fmt.Errorf("register audit metric: %w", err)
		}
		failures = are.ExistingCollector.(*prometheus.CounterVec)
	}
	return &PrometheusObserver{failures: failures}, nil
}

func (o *PrometheusObserver) AuditWriteFailed(action string) {
	if o == nil {
		return
	}
	o.failures.WithLabelValues(action).Inc()
}
