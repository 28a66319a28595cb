// Package audit records append-only access and lifecycle events.
//
// A Sink persists records. Postgres, OpenSearch and in-memory sinks are
// provided, and AsyncSink batches writes for any BatchSink in the background.
//
// Callers on request paths use a Recorder. Recorder.Log never returns an
// error: sink failures are logged and counted through an Observer so that
// audit loss stays visible without breaking the caller.
//
//	sink := audit.NewPostgresSink(db)
//	async, closeFn := audit.NewAsyncSink(sink, audit.AsyncOptions{})
//	defer closeFn(context.Background())
//
//	rec := audit.NewRecorder(async, audit.WithLogger(log))
//	rec.Log(ctx, audit.New("subscription.cancel_scheduled", tenantID,
//		audit.WithActor(actor),
//		audit.WithMetadata("effectiveAt", end),
//	))
package audit
