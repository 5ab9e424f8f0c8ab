package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingStore struct {
	mu      sync.Mutex
	entries []*Entry
	batches int
}

func (r *recordingStore) WriteBatch(_ context.Context, entries []*Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entries...)
	r.batches++
	return nil
}

func (r *recordingStore) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func TestAsyncWriter_FlushesOnInterval(t *testing.T) {
	rec := &recordingStore{}
	w := NewAsyncWriter(rec, WriterConfig{BufferSize: 10, BatchSize: 10, FlushInterval: 20 * time.Millisecond})
	defer w.Close()

	require.NoError(t, w.Write(context.Background(), testEntry("list_jobs", "u1", true)))
	assert.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 10*time.Millisecond)
}

func TestAsyncWriter_FlushesOnBatchSize(t *testing.T) {
	rec := &recordingStore{}
	w := NewAsyncWriter(rec, WriterConfig{BufferSize: 10, BatchSize: 2, FlushInterval: time.Hour})
	defer w.Close()

	for i := 0; i < 2; i++ {
		require.NoError(t, w.Write(context.Background(), testEntry("list_jobs", "u1", true)))
	}
	assert.Eventually(t, func() bool { return rec.count() == 2 }, time.Second, 10*time.Millisecond)
}

func TestAsyncWriter_CloseDrains(t *testing.T) {
	rec := &recordingStore{}
	w := NewAsyncWriter(rec, WriterConfig{BufferSize: 100, BatchSize: 100, FlushInterval: time.Hour})

	for i := 0; i < 5; i++ {
		require.NoError(t, w.Write(context.Background(), testEntry("list_jobs", "u1", true)))
	}
	require.NoError(t, w.Close())
	assert.Equal(t, 5, rec.count())
}

func TestAsyncWriter_WriteAfterClose(t *testing.T) {
	rec := &recordingStore{}
	w := NewAsyncWriter(rec, WriterConfig{BufferSize: 10, BatchSize: 10, FlushInterval: time.Hour})
	require.NoError(t, w.Write(context.Background(), testEntry("list_jobs", "u1", true)))
	require.NoError(t, w.Close())

	err := w.Write(context.Background(), testEntry("list_jobs", "u1", true))
	assert.ErrorIs(t, err, ErrWriterClosed)
	assert.NoError(t, w.Close(), "second close is a no-op")
	assert.Equal(t, 1, rec.count())
}

func TestAsyncWriter_DropsWhenFull(t *testing.T) {
	blocked := make(chan struct{})
	store := blockingStore{release: blocked}
	w := NewAsyncWriter(store, WriterConfig{BufferSize: 1, BatchSize: 1, FlushInterval: time.Hour})

	var dropped bool
	for i := 0; i < 10; i++ {
		if err := w.Write(context.Background(), testEntry("list_jobs", "u1", true)); err != nil {
			assert.ErrorIs(t, err, ErrBufferFull)
			dropped = true
		}
	}
	close(blocked)
	require.NoError(t, w.Close())
	assert.True(t, dropped)
}

type blockingStore struct {
	release chan struct{}
}

func (b blockingStore) WriteBatch(context.Context, []*Entry) error {
	<-b.release
	return nil
}

func TestAsyncWriter_IntoSQLite(t *testing.T) {
	store := newTestStore(t)
	w := NewAsyncWriter(store, WriterConfig{FlushInterval: 10 * time.Millisecond})

	e := testEntry("get_job_details", "u1", true)
	require.NoError(t, w.Write(context.Background(), e))
	require.NoError(t, w.Close())

	entries, err := store.List(context.Background(), ListFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	ok, err := store.Verify(context.Background(), entries[0].ID)
	require.NoError(t, err)
	assert.True(t, ok)
}
