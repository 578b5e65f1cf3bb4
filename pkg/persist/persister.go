package persist

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/offlinefirst/behavioral-capture/pkg/logging"
)

// DefaultThreshold is the batch size that triggers an automatic flush.
const DefaultThreshold = 100

const tracerName = "github.com/offlinefirst/behavioral-capture/pkg/persist"

// Options configure a Persister.
type Options struct {
	Threshold int
	Logger    *slog.Logger
}

// Stats reports persister counters.
type Stats struct {
	Written       int
	Flushes       int
	FailedFlushes int
	Dropped       int
	Pending       int
}

// Persister accumulates rows and writes them to its sink in batches. The
// pending batch never holds threshold rows between calls.
type Persister struct {
	sink      Sink
	threshold int
	logger    *slog.Logger
	tracer    trace.Tracer

	mu     sync.Mutex
	batch  [][]string
	closed bool
	stats  Stats
}

// New wraps an already opened sink.
func New(sink Sink, opts Options) *Persister {
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Persister{
		sink:      sink,
		threshold: threshold,
		logger:    logger,
		tracer:    otel.Tracer(tracerName),
		batch:     make([][]string, 0, threshold),
	}
}

// Write appends row to the batch and flushes synchronously once the batch
// reaches the threshold.
func (p *Persister) Write(row []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	p.batch = append(p.batch, row)
	if len(p.batch) < p.threshold {
		return nil
	}
	return p.flushLocked()
}

// Flush writes any pending rows. It is a no-op when the batch is empty.
func (p *Persister) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	return p.flushLocked()
}

// Close flushes pending rows and releases the sink. Later calls return nil.
func (p *Persister) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	flushErr := p.flushLocked()
	closeErr := p.sink.Close()
	return errors.Join(flushErr, closeErr)
}

// Stats returns a copy of the counters.
func (p *Persister) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	stats := p.stats
	stats.Pending = len(p.batch)
	return stats
}

// flushLocked writes the batch. A failed write drops the batch; nothing is retried.
func (p *Persister) flushLocked() error {
	if len(p.batch) == 0 {
		return nil
	}
	rows := len(p.batch)
	_, span := p.tracer.Start(context.Background(), "persist.flush",
		trace.WithAttributes(attribute.Int("persist.rows", rows)))
	defer span.End()

	err := p.sink.WriteRows(p.batch)
	clear(p.batch)
	p.batch = p.batch[:0]
	if err != nil {
		p.stats.FailedFlushes++
		p.stats.Dropped += rows
		span.RecordError(err)
		span.SetStatus(codes.Error, "write rows")
		p.logger.Error("persist flush failed", "rows", rows, "error", err)
		return err
	}
	p.stats.Flushes++
	p.stats.Written += rows
	return nil
}
