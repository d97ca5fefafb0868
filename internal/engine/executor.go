// Package engine assembles and runs one execution attempt: payload
// gating, normalization, wrapping, script evaluation against the host
// document, and audit emission. Everything is synchronous — the host's
// selection state is unsafe to hold across a suspension point, so the
// engine spawns no parallel work.
package engine

import (
	"context"

	"github.com/robertkrimen/otto"
	"go.uber.org/zap"

	"docforge/internal/audit"
	"docforge/internal/blocks"
	"docforge/internal/faults"
	"docforge/internal/gate"
	"docforge/internal/guard"
	"docforge/internal/host"
	"docforge/internal/normalize"
	"docforge/internal/wrap"
)

// Request is one execution attempt of candidate script text.
type Request struct {
	Source string
	// Attempt and PriorError are carried for the external repair loop's
	// bookkeeping; the engine itself never retries.
	Attempt    int
	PriorError string
}

// Result is the structured outcome of Execute. Grounded on the shape the
// repair loop consumes: a human-readable message plus a diagnostic
// payload with the classified error.
type Result struct {
	Success bool
	// Value is the script's completion value, stringified, when any.
	Value   string
	Message string

	// ErrorKind is the engine taxonomy (SyntaxDefect, GuardExceeded, ...);
	// ErrorType the repair-loop class (syntax, reference, type, ...).
	ErrorKind string
	ErrorType string

	Changed bool
	Notes   []string
	Wrapped bool
	BlockID string
	OpsUsed int

	Event      audit.Event
	Exceptions []audit.Exception
}

// Settings is the per-executor policy: guard limits plus the block
// option defaults a run starts from before directives and script
// options override them.
type Settings struct {
	Limits       guard.Limits
	ChangeLog    bool
	ForceMarkers bool
	AnchorEnd    bool
}

// Executor runs scripts against host documents. Safe to reuse across
// runs; every call builds a fresh runtime, guard, and recorder.
type Executor struct {
	logger   *zap.Logger
	settings Settings
	cancel   *guard.Flag
}

// New builds an executor. cancel may be nil when cancellation is not
// wired; logger may be nil.
func New(logger *zap.Logger, settings Settings, cancel *guard.Flag) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{logger: logger, settings: settings, cancel: cancel}
}

// baseOptions is the starting point for every upsert in the run.
func (e *Executor) baseOptions() blocks.Options {
	opts := blocks.Options{
		ChangeLog:    e.settings.ChangeLog,
		ForceMarkers: e.settings.ForceMarkers,
	}
	if e.settings.AnchorEnd {
		opts.Anchor = blocks.PlaceEnd
	}
	return opts
}

// Execute runs one attempt against doc. backups may be nil (no rollback
// support). The context is only consulted on entry: once underway the
// run is synchronous and cancellation goes through the cooperative flag.
func (e *Executor) Execute(ctx context.Context, doc host.Document, backups *blocks.BackupStore, req Request) Result {
	rec := audit.NewRecorder(e.logger, audit.DefaultOpCap, audit.DefaultRingCap)

	if err := ctx.Err(); err != nil {
		return e.fail(rec, nil, "", nil, faults.GuardExceeded(faults.VariantCancelled, "context done before start: %v", err))
	}
	if doc == nil {
		return e.fail(rec, nil, "", nil, faults.Environmentf("no active document"))
	}

	g := guard.New(e.settings.Limits, e.cancel, rec)
	caps := host.Probe(doc)
	mgr := blocks.NewManager(doc, caps, g, backups, rec, e.logger)

	// Structured-plan payloads short-circuit to the plan executor; bare
	// JSON that is not a plan is a modality mismatch, not broken code.
	plan, perr := gate.DetectPayload(req.Source)
	if perr != nil {
		return e.fail(rec, g, "", nil, perr)
	}
	if plan != nil {
		blockID, runErr := e.runPlan(plan, doc, mgr, g, rec)
		if runErr != nil {
			return e.fail(rec, g, blockID, nil, runErr)
		}
		return e.succeed(rec, g, blockID, nil, Result{Message: "plan applied"})
	}

	norm := normalize.Source(req.Source)
	if err := gate.Capabilities(norm.Code); err != nil {
		return e.fail(rec, g, "", &norm, err)
	}
	if err := gate.ResidualSyntax(norm.Code); err != nil {
		return e.fail(rec, g, "", &norm, err)
	}

	dir := wrap.ParseDirectives(norm.Code)
	unit := wrap.Assemble(norm.Code, dir)
	// Concatenation can reintroduce unsafe characters; sweep once more
	// and keep any repairs visible to the repair loop.
	final := normalize.Finalize(unit.Code)
	norm.MergeNotes(final)

	value, runErr := e.runScript(final.Code, doc, mgr, g, rec)
	if runErr != nil {
		return e.fail(rec, g, unit.BlockID, &norm, runErr)
	}

	res := Result{
		Value:   value,
		Message: "executed",
		Wrapped: unit.Wrapped,
	}
	return e.succeed(rec, g, unit.BlockID, &norm, res)
}

// runScript evaluates the assembled unit in a fresh ES5 runtime with the
// document facade and the block-manager facade bound in.
func (e *Executor) runScript(code string, doc host.Document, mgr *blocks.Manager, g *guard.Guard, rec *audit.Recorder) (string, error) {
	vm := otto.New()
	b := &bindings{vm: vm, doc: doc, mgr: mgr, guard: g, rec: rec, baseOpts: e.baseOptions()}
	if err := b.install(); err != nil {
		return "", faults.Environmentf("host shim unavailable: %v", err)
	}

	value, err := vm.Run(code)
	if err != nil {
		if b.fault != nil {
			return "", b.fault
		}
		return "", err
	}
	// A script-level catch can absorb a thrown host fault, but budget
	// breaches, cancellation, and empty-producer postcondition failures
	// still abort the run.
	if b.fault != nil &&
		(faults.IsKind(b.fault, faults.KindGuard) || faults.IsKind(b.fault, faults.KindContent)) {
		return "", b.fault
	}
	if value.IsDefined() {
		return value.String(), nil
	}
	return "", nil
}

func (e *Executor) fail(rec *audit.Recorder, g *guard.Guard, blockID string, norm *normalize.Result, err error) Result {
	res := Result{
		Success:    false,
		Message:    err.Error(),
		ErrorType:  faults.Classify(err),
		BlockID:    blockID,
		Event:      rec.Event(blockID, err),
		Exceptions: rec.Exceptions(),
	}
	if g != nil {
		res.OpsUsed = g.OpsUsed()
	}
	if kind, ok := faults.KindOf(err); ok {
		res.ErrorKind = kind.String()
	}
	if norm != nil {
		res.Changed = norm.Changed
		res.Notes = norm.Notes
	}
	return res
}

func (e *Executor) succeed(rec *audit.Recorder, g *guard.Guard, blockID string, norm *normalize.Result, res Result) Result {
	res.Success = true
	res.BlockID = blockID
	res.Event = rec.Event(blockID, nil)
	res.Exceptions = rec.Exceptions()
	if g != nil {
		res.OpsUsed = g.OpsUsed()
	}
	if norm != nil {
		res.Changed = norm.Changed
		res.Notes = norm.Notes
	}
	return res
}
