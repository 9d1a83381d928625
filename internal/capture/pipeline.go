// Package capture implements the producer-facing side of the capture
// database: turning a (name, start_ns, end_ns) observation into a
// durable row, either on the caller's goroutine or via a bounded queue
// drained by a single background consumer.
package capture

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/JakeRoggenbuck/kronicler/internal/column"
	"github.com/JakeRoggenbuck/kronicler/internal/obs"
)

// DefaultQueueCapacity is the async queue's default bound.
const DefaultQueueCapacity = 65536

// Event is one capture observation queued for the background consumer.
type Event struct {
	Name    string
	StartNs int64
	DeltaNs int64
}

// queueItem is either a capture event or a flush barrier. Barriers
// travel through the same channel as events so Flush observes every
// event enqueued before it, never one enqueued after.
type queueItem struct {
	event Event
	done  chan struct{}
}

// Pipeline accepts capture events and commits them to a column.Store,
// either synchronously on the caller's goroutine or asynchronously via
// a bounded MPSC channel drained by one background consumer. Producers
// must never block on I/O in async mode — on a full queue the event is
// dropped and Overflow is incremented, never surfaced to the caller.
type Pipeline struct {
	store *column.Store
	log   zerolog.Logger

	sync bool
	q    chan queueItem

	overflow  atomic.Uint64
	lastErr   atomic.Value // error
	errCount  atomic.Uint64

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// Config controls Pipeline construction.
type Config struct {
	// SyncConsume, if true, makes Capture append on the caller's
	// goroutine, blocking until the write returns. If false (the
	// default for the process-wide singleton), Capture enqueues onto
	// a bounded channel drained by a background consumer goroutine.
	SyncConsume bool
	// QueueCapacity bounds the async queue. Defaults to
	// DefaultQueueCapacity when zero.
	QueueCapacity int
	Logger        zerolog.Logger
}

// New starts a Pipeline over store. In async mode it also starts the
// background consumer goroutine; callers must call Shutdown to drain
// and join it.
func New(store *column.Store, cfg Config) *Pipeline {
	cap := cfg.QueueCapacity
	if cap <= 0 {
		cap = DefaultQueueCapacity
	}

	p := &Pipeline{
		store: store,
		log:   cfg.Logger,
		sync:  cfg.SyncConsume,
	}

	if !p.sync {
		p.q = make(chan queueItem, cap)
		ctx, cancel := context.WithCancel(context.Background())
		p.cancel = cancel
		p.wg.Add(1)
		go p.consume(ctx)
	}

	return p
}

// Capture computes delta_ns and either appends synchronously or
// enqueues for the background consumer, per Config.SyncConsume.
func (p *Pipeline) Capture(name string, startNs, endNs int64) error {
	deltaNs := endNs - startNs

	if p.sync {
		obs.CapturesTotal.WithLabelValues("sync").Inc()
		t := obs.NewTimer()
		_, err := p.store.Append(name, startNs, deltaNs)
		t.ObserveDuration(obs.AppendDuration)
		if err != nil {
			p.noteError(err)
			return err
		}
		obs.RowsTotal.Set(float64(p.store.RowCount()))
		return nil
	}

	obs.CapturesTotal.WithLabelValues("async").Inc()
	select {
	case p.q <- queueItem{event: Event{Name: name, StartNs: startNs, DeltaNs: deltaNs}}:
	default:
		p.overflow.Add(1)
		obs.OverflowTotal.Inc()
		p.log.Warn().Str("name", name).Msg("capture queue full, dropping newest event")
	}
	return nil
}

// consume is the single background consumer goroutine in async mode.
// It drains the queue to empty on shutdown before returning, so a
// clean Shutdown never loses a queued event.
func (p *Pipeline) consume(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case item := <-p.q:
			p.handle(item)
		case <-ctx.Done():
			p.drain()
			return
		}
	}
}

func (p *Pipeline) drain() {
	for {
		select {
		case item := <-p.q:
			p.handle(item)
		default:
			return
		}
	}
}

func (p *Pipeline) handle(item queueItem) {
	if item.done != nil {
		close(item.done)
		return
	}
	p.appendFromConsumer(item.event)
}

func (p *Pipeline) appendFromConsumer(ev Event) {
	t := obs.NewTimer()
	_, err := p.store.Append(ev.Name, ev.StartNs, ev.DeltaNs)
	t.ObserveDuration(obs.AppendDuration)
	if err != nil {
		p.noteError(err)
		p.log.Error().Err(err).Str("name", ev.Name).Msg("consumer append failed, row dropped")
		return
	}
	obs.RowsTotal.Set(float64(p.store.RowCount()))
}

func (p *Pipeline) noteError(err error) {
	p.errCount.Add(1)
	obs.AppendErrorsTotal.Inc()
	p.lastErr.Store(err)
}

// Overflow returns the number of events dropped because the async
// queue was full.
func (p *Pipeline) Overflow() uint64 {
	return p.overflow.Load()
}

// ErrorCount returns the number of append failures observed (sync or
// async). A persistently failing consumer will keep incrementing this
// without ever surfacing to producers directly; callers that care
// should poll ErrorCount/LastError rather than assume Capture erroring
// is the only failure signal in async mode.
func (p *Pipeline) ErrorCount() uint64 {
	return p.errCount.Load()
}

// LastError returns the most recent append error, or nil if none has
// occurred.
func (p *Pipeline) LastError() error {
	v := p.lastErr.Load()
	if v == nil {
		return nil
	}
	return v.(error)
}

// Flush blocks until every event enqueued before this call has been
// appended (or failed and been counted) by the consumer. It is a
// helper for tests and CLIs that need a deterministic view after a
// burst of async captures; it says nothing about events enqueued
// concurrently with or after the call.
func (p *Pipeline) Flush() {
	if p.sync {
		return
	}
	done := make(chan struct{})
	p.q <- queueItem{done: done}
	<-done
}

// Shutdown signals the consumer to drain the queue and exit, then
// blocks until it has. A Shutdown that the caller does not wait for
// before process exit may lose queued events that never reach the
// consumer at all.
func (p *Pipeline) Shutdown() error {
	if p.sync {
		return nil
	}
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	return nil
}

// IsSync reports whether this pipeline commits synchronously.
func (p *Pipeline) IsSync() bool { return p.sync }
