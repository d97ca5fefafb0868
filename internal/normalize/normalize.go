// Package normalize repairs common generation defects in incoming script
// text through an ordered sequence of independent, idempotent rewrite
// passes. Each pass is region-aware via the lexical scanner and reports
// what it did so the repair loop can see which defects were present.
package normalize

// Result is the outcome of one pass or of the whole pipeline.
type Result struct {
	Code    string
	Changed bool
	// Notes names the repairs applied, deduplicated, in first-seen order.
	Notes []string
}

// MergeNotes folds a later result's outcome flags into r, keeping
// first-seen note order and dropping duplicates. The later result's code
// is not taken; callers track the current text themselves.
func (r *Result) MergeNotes(later Result) {
	r.Changed = r.Changed || later.Changed
	for _, n := range later.Notes {
		dup := false
		for _, have := range r.Notes {
			if have == n {
				dup = true
				break
			}
		}
		if !dup {
			r.Notes = append(r.Notes, n)
		}
	}
}

// Pass is a single named rewrite.
type Pass struct {
	Name  string
	Apply func(code string) Result
}

// Pipeline returns the full ordered pass list. The order is hand-tuned
// and deliberate: fence stripping runs before anything region-aware (a
// leading fence backtick would classify the whole body as a template),
// comment stripping must run before keyword rewrites, and template
// desugaring must precede the residual-syntax gate.
func Pipeline() []Pass {
	return []Pass{
		{Name: "fences", Apply: stripFences},
		{Name: "control", Apply: normalizeControl},
		{Name: "punctuation", Apply: normalizePunctuation},
		{Name: "comments", Apply: stripComments},
		{Name: "declarations", Apply: downgradeDeclarations},
		{Name: "templates", Apply: desugarTemplates},
		{Name: "escapes", Apply: repairStrayEscapes},
		{Name: "hostcalls", Apply: rewriteHostCalls},
		{Name: "typestrip", Apply: stripTypeSurface},
	}
}

// Source runs the full pipeline over code.
func Source(code string) Result {
	return Run(code, Pipeline())
}

// Finalize re-applies the unicode passes to an assembled execution unit.
// Concatenating the shim preamble and envelope around the body can
// reintroduce unsafe characters, so the unit gets one more sweep.
func Finalize(unit string) Result {
	return Run(unit, []Pass{
		{Name: "control", Apply: normalizeControl},
		{Name: "punctuation", Apply: normalizePunctuation},
	})
}

// Run threads code through passes left to right, merging notes with
// order-preserving deduplication.
func Run(code string, passes []Pass) Result {
	out := Result{Code: code}
	seen := make(map[string]bool)
	for _, p := range passes {
		r := p.Apply(out.Code)
		out.Code = r.Code
		out.Changed = out.Changed || r.Changed
		for _, n := range r.Notes {
			if !seen[n] {
				seen[n] = true
				out.Notes = append(out.Notes, n)
			}
		}
	}
	return out
}
