// Package audit keeps the append-only, capped decision log for every
// mutation attempt and state change.
//
// Entries are immutable once recorded. Each entity holds at most the
// configured cap, with the oldest entries evicted first; clearing is an
// explicit operator action, never automatic.
package audit

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/entity"
	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/policy"
	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/violation"
)

// DefaultCap bounds the per-entity entry count when no cap is configured.
const DefaultCap = 200

// Kind labels what an entry records.
type Kind string

const (
	// KindVerdict records a preflight validation verdict.
	KindVerdict Kind = "verdict"
	// KindApply records an applied mutation.
	KindApply Kind = "apply"
	// KindCascade records a cascaded removal applied after a relock.
	KindCascade Kind = "cascade"
	// KindMode records an operating mode change.
	KindMode Kind = "mode"
	// KindClear records an operator clearing the trail.
	KindClear Kind = "clear"
)

// Entry is one immutable audit record.
type Entry struct {
	ID       string                `json:"id"`
	Time     time.Time             `json:"time"`
	EntityID string                `json:"entity_id"`
	Kind     Kind                  `json:"kind"`
	Summary  string                `json:"summary"`
	Outcome  policy.Outcome        `json:"outcome,omitempty"`
	Severity violation.Severity    `json:"severity"`
	Mode     entity.Mode           `json:"mode"`
	// Violations preserves the full violation list at decision time so
	// override-mode acceptances stay inspectable later.
	Violations []violation.Violation `json:"violations,omitempty"`
}

// Filter narrows a trail query.
type Filter struct {
	Kind  Kind
	Since time.Time
	Until time.Time
	Limit int
}

// Sink receives recorded entries for durable persistence. Persistence is
// best-effort: a sink failure is logged but never fails the mutation that
// produced the entry.
type Sink interface {
	AppendAudit(ctx context.Context, entry Entry) error
}

// Trail is the in-memory capped audit log, optionally mirrored to a sink.
type Trail struct {
	mu      sync.Mutex
	cap     int
	entries map[string][]Entry
	sink    Sink
	now     func() time.Time
}

// TrailOption configures a Trail.
type TrailOption func(*Trail)

// WithCap overrides the per-entity entry cap.
func WithCap(cap int) TrailOption {
	return func(t *Trail) {
		if cap > 0 {
			t.cap = cap
		}
	}
}

// WithSink mirrors recorded entries to a durable sink.
func WithSink(sink Sink) TrailOption {
	return func(t *Trail) { t.sink = sink }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) TrailOption {
	return func(t *Trail) {
		if now != nil {
			t.now = now
		}
	}
}

// NewTrail returns an empty trail.
func NewTrail(opts ...TrailOption) *Trail {
	t := &Trail{
		cap:     DefaultCap,
		entries: map[string][]Entry{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Record appends an entry, stamping id and time when absent, and evicts the
// oldest entry past the cap.
func (t *Trail) Record(ctx context.Context, entry Entry) Entry {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Time.IsZero() {
		entry.Time = t.now().UTC()
	}

	t.mu.Lock()
	list := append(t.entries[entry.EntityID], entry)
	if len(list) > t.cap {
		list = list[len(list)-t.cap:]
	}
	t.entries[entry.EntityID] = list
	sink := t.sink
	t.mu.Unlock()

	if sink != nil {
		if err := sink.AppendAudit(ctx, entry); err != nil {
			log.Printf("audit sink append failed entity_id=%s entry_id=%s: %v", entry.EntityID, entry.ID, err)
		}
	}
	return entry
}

// Query returns entries for the entity matching the filter, oldest first.
func (t *Trail) Query(entityID string, filter Filter) []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	var matched []Entry
	for _, entry := range t.entries[entityID] {
		if filter.Kind != "" && entry.Kind != filter.Kind {
			continue
		}
		if !filter.Since.IsZero() && entry.Time.Before(filter.Since) {
			continue
		}
		if !filter.Until.IsZero() && entry.Time.After(filter.Until) {
			continue
		}
		matched = append(matched, entry)
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[len(matched)-filter.Limit:]
	}
	return matched
}

// Len returns the number of retained entries for an entity.
func (t *Trail) Len(entityID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries[entityID])
}

// Clear drops every retained entry for the entity. Operator action only.
func (t *Trail) Clear(entityID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, entityID)
}

// Restore seeds the trail from persisted entries, enforcing the cap. Used on
// startup when a durable sink has history.
func (t *Trail) Restore(entityID string, entries []Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(entries) > t.cap {
		entries = entries[len(entries)-t.cap:]
	}
	t.entries[entityID] = append([]Entry(nil), entries...)
}
