// Package guard enforces the per-run budgets: operation count, text
// size, table size, wall-clock deadline, and cooperative cancellation.
// Every host-mutating call counts an operation before its side effect,
// so a breached budget aborts with nothing extra applied.
package guard

import (
	"sync/atomic"
	"time"

	"docforge/internal/audit"
	"docforge/internal/faults"
)

// Limits is the budget for one execution attempt.
type Limits struct {
	MaxOps        int `yaml:"max_ops" json:"max_ops"`
	MaxTextLen    int `yaml:"max_text_len" json:"max_text_len"`
	MaxTableCells int `yaml:"max_table_cells" json:"max_table_cells"`
	DeadlineMs    int `yaml:"deadline_ms" json:"deadline_ms"`
}

// DefaultLimits returns budgets sized for interactive document edits.
func DefaultLimits() Limits {
	return Limits{
		MaxOps:        500,
		MaxTextLen:    100_000,
		MaxTableCells: 2_500,
		DeadlineMs:    30_000,
	}
}

// Deadline returns the wall-clock budget as a duration.
func (l Limits) Deadline() time.Duration {
	return time.Duration(l.DeadlineMs) * time.Millisecond
}

// Flag is a process-wide cooperative cancellation flag, polled by the
// guard on every counted operation. Nothing is interrupted mid-flight.
type Flag struct {
	v atomic.Bool
}

func (f *Flag) Cancel()         { f.v.Store(true) }
func (f *Flag) Reset()          { f.v.Store(false) }
func (f *Flag) Cancelled() bool { return f.v.Load() }

// Guard holds one run's budget counters. Lifetime is a single execution
// attempt; a new run gets a new Guard, never shared state.
type Guard struct {
	limits    Limits
	cancel    *Flag
	rec       *audit.Recorder
	opsUsed   int
	startedAt time.Time
	now       func() time.Time
}

// New builds a guard for one run. cancel and rec may be nil.
func New(limits Limits, cancel *Flag, rec *audit.Recorder) *Guard {
	return &Guard{
		limits:    limits,
		cancel:    cancel,
		rec:       rec,
		startedAt: time.Now(),
		now:       time.Now,
	}
}

// OpsUsed reports how many operations the run has counted.
func (g *Guard) OpsUsed() int { return g.opsUsed }

// Count registers a guarded operation. It polls cancellation and the
// deadline, then charges the op budget. It must be called before the
// operation's side effect so a breach leaves the document untouched.
func (g *Guard) Count(op string) error {
	if g.cancel != nil && g.cancel.Cancelled() {
		return faults.GuardExceeded(faults.VariantCancelled, "run cancelled before %s", op)
	}
	if g.limits.DeadlineMs > 0 && g.now().Sub(g.startedAt) > g.limits.Deadline() {
		return faults.GuardExceeded(faults.VariantDeadline,
			"deadline %dms exceeded before %s", g.limits.DeadlineMs, op)
	}
	if g.limits.MaxOps > 0 && g.opsUsed >= g.limits.MaxOps {
		return faults.GuardExceeded(faults.VariantOps,
			"operation budget %d exhausted at %s", g.limits.MaxOps, op)
	}
	g.opsUsed++
	if g.rec != nil {
		g.rec.Op(op)
	}
	return nil
}

// CheckText enforces the text size budget for one write.
func (g *Guard) CheckText(text string) error {
	if g.limits.MaxTextLen > 0 && len(text) > g.limits.MaxTextLen {
		return faults.GuardExceeded(faults.VariantTextLen,
			"text of %d bytes exceeds limit %d", len(text), g.limits.MaxTextLen)
	}
	return nil
}

// CheckTableCells enforces the table size budget.
func (g *Guard) CheckTableCells(cells int) error {
	if g.limits.MaxTableCells > 0 && cells > g.limits.MaxTableCells {
		return faults.GuardExceeded(faults.VariantTableCells,
			"table of %d cells exceeds limit %d", cells, g.limits.MaxTableCells)
	}
	return nil
}
