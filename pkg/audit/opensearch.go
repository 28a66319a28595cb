package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
)

// OpenSearchSink indexes records into an OpenSearch index.
type OpenSearchSink struct {
	client *opensearch.Client
	index  string
}

// NewOpenSearchSink creates a sink writing into index.
func NewOpenSearchSink(client *opensearch.Client, index string) *OpenSearchSink {
	if client == nil {
		panic("audit: opensearch client is required")
	}
	if index == "" {
		index = "access-audit"
	}
	return &OpenSearchSink{client: client, index: index}
}

func (s *OpenSearchSink) Append(ctx context.Context, rec Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	body, err := json.Marshal(rec)
	if err != nil {
		return errors.Join(ErrWriteFailed, err)
	}

	req := opensearchapi.IndexRequest{
		Index:      s.index,
		DocumentID: rec.ID.String(),
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return errors.Join(ErrWriteFailed, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return responseError(res)
	}
	return nil
}

// AppendBatch uses the bulk API. Any failed item fails the batch.
func (s *OpenSearchSink) AppendBatch(ctx context.Context, recs []Record) error {
	if len(recs) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, r := range recs {
		if err := r.Validate(); err != nil {
			return err
		}
		meta := map[string]any{"index": map[string]any{"_index": s.index, "_id": r.ID.String()}}
		if err := enc.Encode(meta); err != nil {
			return errors.Join(ErrWriteFailed, err)
		}
		if err := enc.Encode(r); err != nil {
			return errors.Join(ErrWriteFailed, err)
		}
	}

	req := opensearchapi.BulkRequest{Index: s.index, Body: &buf}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return errors.Join(ErrWriteFailed, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return responseError(res)
	}

	var out struct {
		Errors bool `json:"errors"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return errors.Join(ErrWriteFailed, err)
	}
	if out.Errors {
		return fmt.Errorf("%w: bulk request reported item errors", ErrWriteFailed)
	}
	return nil
}

func responseError(res *opensearchapi.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
	return fmt.Errorf("%w: opensearch status %d: %s", ErrWriteFailed, res.StatusCode, bytes.TrimSpace(msg))
}
