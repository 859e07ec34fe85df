package snapshot

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defiwatchbot/defiwatch/internal/domain"
)

type memoryWriter struct {
	objects map[string][]byte
}

func newMemoryWriter() *memoryWriter {
	return &memoryWriter{objects: make(map[string][]byte)}
}

func (m *memoryWriter) Put(ctx context.Context, path string, data io.Reader, contentType string) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	m.objects[path] = b
	return nil
}

type countingSink struct {
	count int
}

func (c *countingSink) Publish(ctx context.Context, ev domain.RiskEvent) { c.count++ }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func event(sweepID, address string) domain.RiskEvent {
	return domain.RiskEvent{
		SweepID:   sweepID,
		ChatID:    7,
		Address:   address,
		Protocol:  domain.ProtocolKamino,
		Timestamp: time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC),
	}
}

func TestArchiverFlushesOnSweepBoundary(t *testing.T) {
	w := newMemoryWriter()
	a := New(w, nil, testLogger())

	a.Publish(context.Background(), event("sweep-1", "w1"))
	a.Publish(context.Background(), event("sweep-1", "w2"))
	assert.Empty(t, w.objects)

	a.Publish(context.Background(), event("sweep-2", "w1"))
	require.Len(t, w.objects, 1)

	data, ok := w.objects["sweeps/2026/08/29/sweep-1.json"]
	require.True(t, ok)

	var doc sweepDocument
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "sweep-1", doc.SweepID)
	require.Len(t, doc.Events, 2)
	assert.Equal(t, "w1", doc.Events[0].Address)
}

func TestArchiverFlushUploadsPendingSweep(t *testing.T) {
	w := newMemoryWriter()
	a := New(w, nil, testLogger())

	a.Publish(context.Background(), event("sweep-1", "w1"))
	a.Flush(context.Background())
	require.Len(t, w.objects, 1)

	// A second flush with nothing buffered uploads nothing new.
	a.Flush(context.Background())
	assert.Len(t, w.objects, 1)
}

func TestArchiverForwardsToNextSink(t *testing.T) {
	sink := &countingSink{}
	a := New(newMemoryWriter(), sink, testLogger())

	a.Publish(context.Background(), event("sweep-1", "w1"))
	a.Publish(context.Background(), event("sweep-1", "w2"))
	assert.Equal(t, 2, sink.count)
}
