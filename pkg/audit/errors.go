package audit

import "errors"

var (
	// ErrInvalidRecord indicates the record is missing required fields.
	ErrInvalidRecord = errors.New("invalid audit record")

	// ErrBufferFull indicates the async buffer is full and the record was dropped.
	ErrBufferFull = errors.New("audit buffer is full")

	// ErrSinkClosed indicates the sink no longer accepts records.
	ErrSinkClosed = errors.New("audit sink is closed")

	// ErrWriteFailed wraps storage backend failures.
	ErrWriteFailed = errors.New("audit write failed")
)
