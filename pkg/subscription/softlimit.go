package subscription

import (
	"time"

	"github.com/dmitrymomot/tenantplans/pkg/usage"
)

const (
	// SoftLimitReasonDowngradeQuota marks a downgrade applied while usage exceeds the new caps.
	SoftLimitReasonDowngradeQuota = "DOWNGRADE_QUOTA_EXCEEDED_SOFT_LIMIT"
	// SoftLimitPolicy is recorded in every snapshot: data is kept, capability is reduced.
	SoftLimitPolicy = "soft_limit_no_data_deletion"
)

// ExceededMetric is one metric over its cap.
type ExceededMetric struct {
	Metric usage.Metric `json:"metric"`
	Used   float64      `json:"used"`
	Limit  int64        `json:"limit"`
}

// SoftLimitSnapshot documents which caps were exceeded when a downgrade applied.
type SoftLimitSnapshot struct {
	Policy     string           `json:"policy"`
	TargetTier Tier             `json:"targetTier"`
	Exceeded   []ExceededMetric `json:"exceeded"`
	CheckedAt  time.Time        `json:"checkedAt"`
}

// SoftLimitVerdict is the outcome of EvaluateSoftLimits.
type SoftLimitVerdict struct {
	SoftLimited bool
	Reason      string
	Snapshot    *SoftLimitSnapshot
}

// EvaluateSoftLimits compares usage against the caps of target.
// It never rejects; it only reports which caps are exceeded.
func EvaluateSoftLimits(target PlanEntitlement, snap usage.Snapshot, now time.Time) SoftLimitVerdict {
	var exceeded []ExceededMetric
	for _, m := range usage.Metrics {
		limit := target.Limit(m)
		if limit == Unlimited {
			continue
		}
		if used := snap.Used(m); used > float64(limit) {
			exceeded = append(exceeded, ExceededMetric{Metric: m, Used: used, Limit: limit})
		}
	}

	if len(exceeded) == 0 {
		return SoftLimitVerdict{}
	}

	return SoftLimitVerdict{
		SoftLimited: true,
		Reason:      SoftLimitReasonDowngradeQuota,
		Snapshot: &SoftLimitSnapshot{
			Policy:     SoftLimitPolicy,
			TargetTier: target.Tier,
			Exceeded:   exceeded,
			CheckedAt:  now.UTC(),
		},
	}
}
