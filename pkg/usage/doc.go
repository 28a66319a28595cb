// Package usage exposes pre-aggregated per-tenant usage counters.
//
// Counters are produced by an external metering process and stored one row
// per tenant per calendar period (see PeriodKey). This package only reads
// them: Provider.Snapshot returns the counts for the period containing a
// given instant, or an all-zero snapshot when nothing was metered yet.
package usage
