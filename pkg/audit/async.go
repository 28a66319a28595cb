package audit

import (
	"context"
	"sync"
	"time"
)

// AsyncOptions controls batching of an AsyncSink.
type AsyncOptions struct {
	BufferSize     int           // records queued before Append starts dropping
	BatchSize      int           // records per backend write
	BatchTimeout   time.Duration // max wait for a partial batch
	StorageTimeout time.Duration // per-batch backend timeout

	// OnError is called with the failed batch size. Optional.
	OnError func(err error, dropped int)
}

// AsyncSink queues records and writes them to a BatchSink in the background.
// Append never waits for storage.
type AsyncSink struct {
	backend BatchSink
	queue   chan Record
	done    chan struct{}
	wg      sync.WaitGroup
	opts    AsyncOptions

	mu     sync.RWMutex
	closed bool
}

// NewAsyncSink starts the background writer. The returned function flushes
// pending records and stops the writer.
func NewAsyncSink(backend BatchSink, opts AsyncOptions) (*AsyncSink, func(context.Context) error) {
	if backend == nil {
		panic("audit: batch sink cannot be nil")
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = 1000
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.BatchTimeout <= 0 {
		opts.BatchTimeout = 100 * time.Millisecond
	}
	if opts.StorageTimeout <= 0 {
		opts.StorageTimeout = 5 * time.Second
	}

	s := &AsyncSink{
		backend: backend,
		queue:   make(chan Record, opts.BufferSize),
		done:    make(chan struct{}),
		opts:    opts,
	}

	s.wg.Add(1)
	go s.worker()

	return s, s.Close
}

// Append enqueues rec. Returns ErrBufferFull when the queue is saturated.
func (s *AsyncSink) Append(_ context.Context, rec Record) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSinkClosed
	}

	select {
	case s.queue <- rec:
		return nil
	default:
		return ErrBufferFull
	}
}

func (s *AsyncSink) worker() {
	defer s.wg.Done()

	batch := make([]Record, 0, s.opts.BatchSize)
	ticker := time.NewTicker(s.opts.BatchTimeout)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		// request contexts are long gone by now
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.StorageTimeout)
		defer cancel()

		if err := s.backend.AppendBatch(ctx, batch); err != nil && s.opts.OnError != nil {
			s.opts.OnError(err, len(batch))
		}
		clear(batch)
		batch = batch[:0]
	}

	for {
		select {
		case rec := <-s.queue:
			batch = append(batch, rec)
			if len(batch) >= s.opts.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-s.done:
			for {
				select {
				case rec := <-s.queue:
					batch = append(batch, rec)
					if len(batch) >= s.opts.BatchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}

// Close stops accepting records and flushes what is queued.
// Safe to call more than once.
func (s *AsyncSink) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	s.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
