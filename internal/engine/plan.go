package engine

import (
	"docforge/internal/audit"
	"docforge/internal/blocks"
	"docforge/internal/faults"
	"docforge/internal/gate"
	"docforge/internal/guard"
	"docforge/internal/host"
)

// runPlan applies a structured plan directly, without a runtime. Returns
// the last block id an action touched for the result payload.
func (e *Executor) runPlan(plan *gate.Plan, doc host.Document, mgr *blocks.Manager, g *guard.Guard, rec *audit.Recorder) (string, error) {
	lastBlock := ""
	for i, action := range plan.Actions {
		switch action.Op {
		case "insert_text":
			if err := e.planInsert(doc, g, action.Text); err != nil {
				return lastBlock, err
			}
		case "upsert_block":
			if action.BlockID == "" {
				return lastBlock, faults.Syntaxf("plan action %d: upsert_block without blockId", i)
			}
			opts := e.baseOptions()
			if action.Anchor == "end" {
				opts.Anchor = blocks.PlaceEnd
			}
			text := action.Text
			err := mgr.Upsert(action.BlockID, func(w *blocks.SpanWriter) (string, error) {
				return text, nil
			}, opts)
			if err != nil {
				return lastBlock, err
			}
			lastBlock = blocks.SanitizeID(action.BlockID)
		default:
			return lastBlock, faults.Syntaxf("plan action %d: unknown op %q", i, action.Op)
		}
	}
	return lastBlock, nil
}

func (e *Executor) planInsert(doc host.Document, g *guard.Guard, text string) error {
	if err := g.Count("plan_insert_text"); err != nil {
		return err
	}
	if err := g.CheckText(text); err != nil {
		return err
	}
	pos := doc.Length()
	if sel, err := doc.Selection(); err == nil {
		pos = sel.End
	}
	sp, err := doc.Insert(pos, text)
	if err != nil {
		return faults.HostAPI("document.insert", err)
	}
	if serr := doc.SetSelection(host.Span{Start: sp.End, End: sp.End}); serr != nil {
		return nil
	}
	return nil
}
