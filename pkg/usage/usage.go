package usage

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Metric names a metered dimension.
type Metric string

const (
	MetricOrdersMonth   Metric = "orders_month"
	MetricAPICallsMonth Metric = "api_calls_month"
	MetricStorageGB     Metric = "storage_gb"
	MetricPlugins       Metric = "plugins"
	MetricBranches      Metric = "branches"
	MetricAdminUsers    Metric = "admin_users"
)

// Metrics lists every metered dimension in a stable order.
var Metrics = []Metric{
	MetricOrdersMonth,
	MetricAPICallsMonth,
	MetricStorageGB,
	MetricPlugins,
	MetricBranches,
	MetricAdminUsers,
}

// Snapshot is the usage of one tenant in one period.
type Snapshot struct {
	TenantID    uuid.UUID `json:"tenant_id"`
	PeriodKey   string    `json:"period_key"`
	OrdersMonth int64     `json:"orders_month"`
	APICalls    int64     `json:"api_calls_month"`
	StorageGB   float64   `json:"storage_gb"`
	Plugins     int64     `json:"plugins"`
	Branches    int64     `json:"branches"`
	AdminUsers  int64     `json:"admin_users"`
}

// Used returns the value recorded for m. Unknown metrics report zero.
func (s Snapshot) Used(m Metric) float64 {
	switch m {
	case MetricOrdersMonth:
		return float64(s.OrdersMonth)
	case MetricAPICallsMonth:
		return float64(s.APICalls)
	case MetricStorageGB:
		return s.StorageGB
	case MetricPlugins:
		return float64(s.Plugins)
	case MetricBranches:
		return float64(s.Branches)
	case MetricAdminUsers:
		return float64(s.AdminUsers)
	}
	return 0
}

// Provider returns usage snapshots.
type Provider interface {
	Snapshot(ctx context.Context, tenantID uuid.UUID, at time.Time) (Snapshot, error)
}

// PeriodKey returns the calendar period ("YYYY-MM") containing at, as seen
// from loc. A nil loc means UTC.
func PeriodKey(at time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return at.In(loc).Format("2006-01")
}
