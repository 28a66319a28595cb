package audit

import (
	"context"
	"errors"
)

// TeeSink writes every batch to each sink in order. A failing sink does not
// stop the others; their errors are joined.
type TeeSink []BatchSink

func (t TeeSink) Append(ctx context.Context, rec Record) error {
	return t.AppendBatch(ctx, []Record{rec})
}

func (t TeeSink) AppendBatch(ctx context.Context, recs []Record) error {
	var errs []error
	for _, s := range t {
		if err := s.AppendBatch(ctx, recs); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
