package audit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	// ErrBufferFull is returned by AsyncWriter.Write when the entry was dropped.
	ErrBufferFull = errors.New("audit buffer full")
	// ErrWriterClosed is returned by AsyncWriter.Write after Close.
	ErrWriterClosed = errors.New("audit writer closed")
)

// Writer accepts audit entries.
type Writer interface {
	Write(ctx context.Context, e *Entry) error
}

// NopWriter discards entries.
type NopWriter struct{}

func (NopWriter) Write(context.Context, *Entry) error { return nil }

// batchStore is the subset of Store the async writer flushes into.
type batchStore interface {
	WriteBatch(ctx context.Context, entries []*Entry) error
}

// WriterConfig configures AsyncWriter.
type WriterConfig struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
}

// AsyncWriter buffers entries on a channel and flushes them in batches from
// a background worker. Write never blocks.
type AsyncWriter struct {
	ch     chan *Entry
	store  batchStore
	cfg    WriterConfig
	wg     sync.WaitGroup
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
}

// NewAsyncWriter starts the background worker.
func NewAsyncWriter(store batchStore, cfg WriterConfig) *AsyncWriter {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1024
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 500 * time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &AsyncWriter{
		ch:     make(chan *Entry, cfg.BufferSize),
		store:  store,
		cfg:    cfg,
		cancel: cancel,
	}
	w.wg.Add(1)
	go w.worker(ctx)
	return w
}

// Write enqueues e, or drops it and returns ErrBufferFull. After Close it
// returns ErrWriterClosed.
func (w *AsyncWriter) Write(_ context.Context, e *Entry) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		log.Warn().Str("tool_name", e.EntityID).Msg("audit_write_after_close")
		return ErrWriterClosed
	}
	select {
	case w.ch <- e:
		return nil
	default:
		log.Warn().Str("tool_name", e.EntityID).Msg("audit_buffer_full")
		return ErrBufferFull
	}
}

// Close flushes buffered entries and stops the worker. Later calls are no-ops.
func (w *AsyncWriter) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	w.cancel()
	w.wg.Wait()
	w.flush(w.drainAll())
	return nil
}

func (w *AsyncWriter) worker(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	var batch []*Entry
	for {
		select {
		case <-ctx.Done():
			w.flush(append(batch, w.drainAll()...))
			return
		case e := <-w.ch:
			batch = append(batch, e)
			if len(batch) >= w.cfg.BatchSize {
				w.flush(batch)
				batch = nil
			}
		case <-ticker.C:
			if len(batch) > 0 {
				w.flush(batch)
				batch = nil
			}
		}
	}
}

func (w *AsyncWriter) flush(entries []*Entry) {
	if len(entries) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := w.store.WriteBatch(ctx, entries); err != nil {
		log.Error().Err(err).Int("count", len(entries)).Msg("audit_flush_failed")
	}
}

func (w *AsyncWriter) drainAll() []*Entry {
	var entries []*Entry
	for {
		select {
		case e := <-w.ch:
			entries = append(entries, e)
		default:
			return entries
		}
	}
}
