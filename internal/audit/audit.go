// Package audit records what an execution attempt did: a bounded ordered
// log of guarded operations, a ring buffer of swallowed internal
// exceptions, and one structured event per attempt. The output feeds the
// external repair loop, which is out of scope here.
package audit

import (
	"time"

	"go.uber.org/zap"

	"docforge/internal/faults"
)

const (
	// DefaultOpCap bounds the per-run operation log.
	DefaultOpCap = 256
	// DefaultRingCap bounds the non-fatal exception ring buffer.
	DefaultRingCap = 32
	// maxExceptionMsg truncates recorded exception messages.
	maxExceptionMsg = 200
)

// Exception is one swallowed internal failure.
type Exception struct {
	Tag     string    `json:"tag"`
	Message string    `json:"msg"`
	At      time.Time `json:"at"`
}

// Event is the per-attempt audit record sent to the external collector.
type Event struct {
	Ops          []string `json:"ops"`
	BlockID      string   `json:"blockId,omitempty"`
	Success      bool     `json:"success"`
	ErrorType    string   `json:"errorType,omitempty"`
	ErrorMessage string   `json:"errorMessage,omitempty"`
}

// Recorder is scoped to one execution attempt. It is not safe for
// concurrent use; the engine is single-threaded by design.
type Recorder struct {
	logger  *zap.Logger
	opCap   int
	ops     []string
	opsSeen map[string]bool
	dropped int

	ring     []Exception
	ringNext int
	ringFull bool
}

// NewRecorder builds a recorder. A nil logger disables log output but
// keeps recording.
func NewRecorder(logger *zap.Logger, opCap, ringCap int) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opCap <= 0 {
		opCap = DefaultOpCap
	}
	if ringCap <= 0 {
		ringCap = DefaultRingCap
	}
	return &Recorder{
		logger:  logger,
		opCap:   opCap,
		opsSeen: make(map[string]bool),
		ring:    make([]Exception, ringCap),
	}
}

// Op appends an operation name to the bounded log. Repeats are recorded
// once; the event carries the set of operations performed, in first-seen
// order.
func (r *Recorder) Op(name string) {
	if r.opsSeen[name] {
		return
	}
	if len(r.ops) >= r.opCap {
		r.dropped++
		return
	}
	r.opsSeen[name] = true
	r.ops = append(r.ops, name)
}

// Ops returns the recorded operation names in order.
func (r *Recorder) Ops() []string {
	out := make([]string, len(r.ops))
	copy(out, r.ops)
	return out
}

// Exception records a swallowed internal failure with a tag and a
// truncated message. Oldest entries are overwritten once the ring fills.
func (r *Recorder) Exception(tag string, err error) {
	if err == nil {
		return
	}
	msg := err.Error()
	if len(msg) > maxExceptionMsg {
		msg = msg[:maxExceptionMsg]
	}
	r.ring[r.ringNext] = Exception{Tag: tag, Message: msg, At: time.Now()}
	r.ringNext = (r.ringNext + 1) % len(r.ring)
	if r.ringNext == 0 {
		r.ringFull = true
	}
	r.logger.Debug("swallowed host exception", zap.String("tag", tag), zap.String("error", msg))
}

// Exceptions returns the ring contents oldest-first.
func (r *Recorder) Exceptions() []Exception {
	var out []Exception
	if r.ringFull {
		out = append(out, r.ring[r.ringNext:]...)
	}
	out = append(out, r.ring[:r.ringNext]...)
	// Drop zero entries from a ring that never filled.
	kept := out[:0]
	for _, e := range out {
		if e.Tag != "" || e.Message != "" {
			kept = append(kept, e)
		}
	}
	return kept
}

// Event assembles the per-attempt audit event and logs it.
func (r *Recorder) Event(blockID string, err error) Event {
	ev := Event{
		Ops:     r.Ops(),
		BlockID: blockID,
		Success: err == nil,
	}
	if err != nil {
		ev.ErrorType = faults.Classify(err)
		ev.ErrorMessage = err.Error()
	}
	r.logger.Info("execution attempt",
		zap.Bool("success", ev.Success),
		zap.String("block_id", blockID),
		zap.Strings("ops", ev.Ops),
		zap.String("error_type", ev.ErrorType),
		zap.Int("swallowed", len(r.Exceptions())),
	)
	return ev
}
