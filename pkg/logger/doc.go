// Package logger builds slog loggers with environment presets and
// context-aware attribute injection.
//
//	log := logger.New(
//		logger.WithEnvironment(cfg.Env, "billingd"),
//		logger.WithContextExtractors(tenant.LoggerExtractor()),
//	)
//	logger.SetAsDefault(log)
//
// Attribute helpers (Error, TenantID, Actor, Tier, Scope and friends) keep
// key names consistent across packages.
package logger
