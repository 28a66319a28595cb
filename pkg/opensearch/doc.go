// Package opensearch connects to an OpenSearch cluster for the audit sink.
//
// New validates the configuration, builds the client and runs Healthcheck
// once, so a misconfigured cluster fails the service at startup instead of on
// the first blocked request:
//
//	client, err := opensearch.New(ctx, cfg.OpenSearch)
//	if err != nil {
//		return err
//	}
//	sink := audit.NewOpenSearchSink(client, cfg.OpenSearch.AuditIndex)
package opensearch
