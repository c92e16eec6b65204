// Package boundary monitors the entity write path for writes that bypassed
// the mutation authority.
//
// A policy kernel is only as strong as its narrowest enforced boundary: the
// defense wraps the entity store and flags any write whose call did not carry
// the authority's authorization stamp, with enough context to locate the
// bypass. Detection reports the defect; it never silently repairs it.
package boundary

import (
	"context"
	"fmt"
	"log"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/entity"
	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/storage"
)

// Enforcement selects how detected bypasses are handled.
type Enforcement string

const (
	// EnforcementReport logs and counts the bypass but lets the write through.
	EnforcementReport Enforcement = "report"
	// EnforcementBlock refuses the unauthorized write.
	EnforcementBlock Enforcement = "block"
)

// ParseEnforcement normalizes an enforcement label.
func ParseEnforcement(value string) (Enforcement, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "report", "":
		return EnforcementReport, true
	case "block":
		return EnforcementBlock, true
	default:
		return "", false
	}
}

// ErrUnauthorizedWrite is returned for blocked bypass writes.
var ErrUnauthorizedWrite = fmt.Errorf("entity write bypassed mutation authority")

type ctxKey struct{}

// WithAuthorization stamps a context as originating inside the mutation
// authority. Only the authority's apply path should call this.
func WithAuthorization(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, true)
}

// Authorized reports whether the context carries the authority stamp.
func Authorized(ctx context.Context) bool {
	ok, _ := ctx.Value(ctxKey{}).(bool)
	return ok
}

// Report describes one detected bypass write.
type Report struct {
	Time     time.Time `json:"time"`
	EntityID string    `json:"entity_id"`
	// Origin is the file:line of the caller that issued the write.
	Origin string `json:"origin"`
}

// Defense wraps an entity store and monitors its write path.
type Defense struct {
	inner       storage.EntityStore
	enforcement Enforcement

	mu      sync.Mutex
	reports []Report
	now     func() time.Time
}

// NewDefense wraps the store with the given enforcement level.
func NewDefense(inner storage.EntityStore, enforcement Enforcement) *Defense {
	if enforcement == "" {
		enforcement = EnforcementReport
	}
	return &Defense{inner: inner, enforcement: enforcement, now: time.Now}
}

// GetEntity delegates reads unchanged.
func (d *Defense) GetEntity(ctx context.Context, id string) (*entity.Entity, error) {
	return d.inner.GetEntity(ctx, id)
}

// ListEntityIDs delegates reads unchanged.
func (d *Defense) ListEntityIDs(ctx context.Context) ([]string, error) {
	return d.inner.ListEntityIDs(ctx)
}

// PutEntity checks the authorization stamp before delegating the write.
//
// Unauthorized writes are recorded with their call origin. Under report
// enforcement the write still goes through: the defense exists to surface
// defects in other code paths, not to roll them back.
func (d *Defense) PutEntity(ctx context.Context, e *entity.Entity) error {
	if !Authorized(ctx) {
		report := Report{Time: d.now().UTC(), Origin: callOrigin()}
		if e != nil {
			report.EntityID = e.ID
		}
		d.mu.Lock()
		d.reports = append(d.reports, report)
		enforcement := d.enforcement
		d.mu.Unlock()

		log.Printf("boundary violation entity_id=%s origin=%s enforcement=%s",
			report.EntityID, report.Origin, enforcement)
		if enforcement == EnforcementBlock {
			return fmt.Errorf("%w: origin %s", ErrUnauthorizedWrite, report.Origin)
		}
	}
	return d.inner.PutEntity(ctx, e)
}

// Reports returns a copy of the recorded bypass reports.
func (d *Defense) Reports() []Report {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Report(nil), d.reports...)
}

// callOrigin walks past the defense frames to the caller that issued the
// write.
func callOrigin() string {
	for skip := 2; skip < 8; skip++ {
		pc, file, line, ok := runtime.Caller(skip)
		if !ok {
			break
		}
		fn := runtime.FuncForPC(pc)
		if fn != nil && strings.Contains(fn.Name(), "/internal/engine/boundary.") {
			continue
		}
		return fmt.Sprintf("%s:%d", file, line)
	}
	return "unknown"
}

var _ storage.EntityStore = (*Defense)(nil)
