// Package subscription implements the per-tenant subscription lifecycle:
// tier catalog, prorated upgrades, scheduled downgrades and cancellations,
// provider status signals and the batch that applies due changes.
//
// Each tenant owns exactly one Subscription. Upgrades take effect immediately
// and produce a ProrationInvoice in the same transaction. Downgrades and
// cancellations are scheduled for the end of the current period and applied
// by Engine.ApplyDueScheduledChanges, which is safe to run concurrently: every
// row is committed with a conditional update, and a row that another run
// already handled is skipped.
//
// Downgrades never delete data. When usage exceeds the caps of the new tier
// the subscription is marked soft-limited and the access guard reduces
// capability instead.
//
// Basic wiring:
//
//	engine := subscription.NewEngine(store, catalog, usageProvider,
//		subscription.WithAudit(recorder),
//		subscription.WithLocation(loc),
//		subscription.WithLogger(log),
//	)
//
//	est, err := engine.Estimate(ctx, tenantID, subscription.TierC2)
//	res, err := engine.Upgrade(ctx, tenantID, subscription.TierC2, "admin@acme", false)
//
//	// from a scheduler
//	batch, err := engine.ApplyDueScheduledChanges(ctx, time.Now(), "scheduler")
package subscription
