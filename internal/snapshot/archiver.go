// Package snapshot archives sweep results to blob storage, one JSON document
// per sweep, for offline inspection of how wallets drifted over time.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/defiwatchbot/defiwatch/internal/domain"
)

// sweepDocument is the archived payload for one sweep.
type sweepDocument struct {
	SweepID    string             `json:"sweep_id"`
	Events     []domain.RiskEvent `json:"events"`
	ArchivedAt time.Time          `json:"archived_at"`
}

// Archiver buffers risk events per sweep and uploads the completed sweep
// when the next one begins. Sweeps run strictly one at a time, so a new
// sweep ID marks the previous sweep as finished.
type Archiver struct {
	writer domain.BlobWriter
	next   domain.EventSink
	logger *slog.Logger

	mu      sync.Mutex
	sweepID string
	events  []domain.RiskEvent
}

// New creates an Archiver. next, when non-nil, receives every event after it
// is buffered, so the archiver can sit in front of the dashboard hub.
func New(writer domain.BlobWriter, next domain.EventSink, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer: writer,
		next:   next,
		logger: logger.With(slog.String("component", "snapshot")),
	}
}

var _ domain.EventSink = (*Archiver)(nil)

// Publish implements domain.EventSink.
func (a *Archiver) Publish(ctx context.Context, ev domain.RiskEvent) {
	a.mu.Lock()
	if ev.SweepID != a.sweepID {
		a.flushLocked(ctx)
		a.sweepID = ev.SweepID
	}
	a.events = append(a.events, ev)
	a.mu.Unlock()

	if a.next != nil {
		a.next.Publish(ctx, ev)
	}
}

// Flush uploads whatever is buffered. Called on shutdown so the final sweep
// is not lost.
func (a *Archiver) Flush(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.flushLocked(ctx)
}

// flushLocked uploads and clears the current buffer. Upload failures are
// logged and the buffer dropped; archival must never stall a sweep.
func (a *Archiver) flushLocked(ctx context.Context) {
	if len(a.events) == 0 {
		return
	}

	doc := sweepDocument{
		SweepID:    a.sweepID,
		Events:     a.events,
		ArchivedAt: time.Now().UTC(),
	}
	a.events = nil

	data, err := json.Marshal(doc)
	if err != nil {
		a.logger.Error("marshal sweep snapshot failed",
			slog.String("sweep_id", doc.SweepID),
			slog.String("error", err.Error()),
		)
		return
	}

	path := objectPath(doc)
	if err := a.writer.Put(ctx, path, bytes.NewReader(data), "application/json"); err != nil {
		a.logger.Error("upload sweep snapshot failed",
			slog.String("sweep_id", doc.SweepID),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return
	}

	a.logger.Debug("sweep snapshot archived",
		slog.String("sweep_id", doc.SweepID),
		slog.Int("events", len(doc.Events)),
		slog.String("path", path),
	)
}

// objectPath keys snapshots by date so bucket listings stay navigable.
func objectPath(doc sweepDocument) string {
	ts := doc.ArchivedAt
	if len(doc.Events) > 0 {
		ts = doc.Events[0].Timestamp
	}
	return fmt.Sprintf("sweeps/%s/%s.json", ts.UTC().Format("2006/01/02"), doc.SweepID)
}
