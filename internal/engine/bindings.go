package engine

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/robertkrimen/otto"

	"docforge/internal/audit"
	"docforge/internal/blocks"
	"docforge/internal/faults"
	"docforge/internal/guard"
	"docforge/internal/host"
)

// bindings wires the document facade and the upsert facade into one
// runtime. Typed Go faults cross into the script as thrown HostError
// values; the first fault is kept so the executor reports the original
// instead of the runtime's stringified rethrow.
type bindings struct {
	vm       *otto.Otto
	doc      host.Document
	mgr      *blocks.Manager
	guard    *guard.Guard
	rec      *audit.Recorder
	baseOpts blocks.Options

	fault error
}

func (b *bindings) install() error {
	if err := b.vm.Set("upsertBlock", b.upsertBlock); err != nil {
		return err
	}
	doc, err := b.documentFacade()
	if err != nil {
		return err
	}
	return b.vm.Set("document", doc)
}

// throw records err as the run's fault and aborts the script. otto
// unwinds a panicked Value as a JS throw, so uncaught faults fail the
// vm.Run and caught ones at least stay recorded.
func (b *bindings) throw(err error) otto.Value {
	if b.fault == nil {
		b.fault = err
	}
	panic(b.vm.MakeCustomError("HostError", err.Error()))
}

func (b *bindings) upsertBlock(call otto.FunctionCall) otto.Value {
	id := call.Argument(0).String()
	fn := call.Argument(1)
	if !fn.IsFunction() {
		return b.throw(faults.Syntaxf("upsertBlock %q: producer is not a function", id))
	}
	opts := b.parseOptions(call.Argument(2))

	produce := func(w *blocks.SpanWriter) (string, error) {
		blockObj, err := b.writerFacade(w)
		if err != nil {
			return "", faults.Environmentf("block facade: %v", err)
		}
		ret, err := fn.Call(otto.UndefinedValue(), blockObj.Value())
		if err != nil {
			if b.fault != nil {
				return "", b.fault
			}
			return "", err
		}
		if ret.IsString() {
			return ret.String(), nil
		}
		return "", nil
	}

	if err := b.mgr.Upsert(id, produce, opts); err != nil {
		return b.throw(err)
	}
	return otto.TrueValue()
}

func (b *bindings) parseOptions(v otto.Value) blocks.Options {
	opts := b.baseOpts
	exp, err := v.Export()
	if err != nil {
		return opts
	}
	m, ok := exp.(map[string]interface{})
	if !ok {
		return opts
	}
	if a, ok := m["anchor"].(string); ok {
		switch a {
		case "end":
			opts.Anchor = blocks.PlaceEnd
		case "cursor":
			opts.Anchor = blocks.PlaceCursor
		}
	}
	if bk, ok := m["backup"].(bool); ok && !bk {
		opts.DisableBackup = true
	}
	if mk, ok := m["markers"].(bool); ok && mk {
		opts.ForceMarkers = true
	}
	if opts.DisableBackup {
		opts.ChangeLog = false
	}
	return opts
}

// writerFacade exposes one SpanWriter to the producer function. Both the
// insert* and write* spellings are bound; generated code uses either.
func (b *bindings) writerFacade(w *blocks.SpanWriter) (*otto.Object, error) {
	obj, err := b.vm.Object(`({})`)
	if err != nil {
		return nil, err
	}
	text := func(call otto.FunctionCall) otto.Value {
		if err := w.WriteText(call.Argument(0).String()); err != nil {
			return b.throw(err)
		}
		return otto.TrueValue()
	}
	para := func(call otto.FunctionCall) otto.Value {
		if err := w.WriteParagraph(call.Argument(0).String()); err != nil {
			return b.throw(err)
		}
		return otto.TrueValue()
	}
	table := func(call otto.FunctionCall) otto.Value {
		cells, cerr := toCells(call.Argument(0))
		if cerr != nil {
			return b.throw(cerr)
		}
		if err := w.WriteTable(cells); err != nil {
			return b.throw(err)
		}
		return otto.TrueValue()
	}
	for name, fn := range map[string]func(otto.FunctionCall) otto.Value{
		"insertText":      text,
		"writeText":       text,
		"insertParagraph": para,
		"writeParagraph":  para,
		"insertTable":     table,
		"writeTable":      table,
	} {
		if err := obj.Set(name, fn); err != nil {
			return nil, err
		}
	}
	return obj, nil
}

// documentFacade exposes raw document access for scripts that bypass the
// upsert envelope. Inserts land at the selection end and advance it.
func (b *bindings) documentFacade() (*otto.Object, error) {
	obj, err := b.vm.Object(`({})`)
	if err != nil {
		return nil, err
	}
	methods := map[string]func(otto.FunctionCall) otto.Value{
		"insertText": func(call otto.FunctionCall) otto.Value {
			return b.docInsert("document_insert_text", call.Argument(0).String())
		},
		"insertParagraph": func(call otto.FunctionCall) otto.Value {
			return b.docInsert("document_insert_paragraph", call.Argument(0).String()+"\n")
		},
		"insertTable": func(call otto.FunctionCall) otto.Value {
			return b.docInsertTable(call.Argument(0))
		},
		"getText": func(call otto.FunctionCall) otto.Value {
			if err := b.guard.Count("document_get_text"); err != nil {
				return b.throw(err)
			}
			text, err := b.doc.Text(host.Span{Start: 0, End: b.doc.Length()})
			if err != nil {
				return b.throw(faults.HostAPI("document.text", err))
			}
			v, _ := b.vm.ToValue(text)
			return v
		},
		"getLength": func(call otto.FunctionCall) otto.Value {
			v, _ := b.vm.ToValue(b.doc.Length())
			return v
		},
	}
	for name, fn := range methods {
		if err := obj.Set(name, fn); err != nil {
			return nil, err
		}
	}
	return obj, nil
}

func (b *bindings) docInsert(op, text string) otto.Value {
	if err := b.guard.Count(op); err != nil {
		return b.throw(err)
	}
	if err := b.guard.CheckText(text); err != nil {
		return b.throw(err)
	}
	pos := b.doc.Length()
	if sel, err := b.doc.Selection(); err == nil {
		pos = sel.End
	}
	sp, err := b.doc.Insert(pos, text)
	if err != nil {
		return b.throw(faults.HostAPI("document.insert", err))
	}
	if serr := b.doc.SetSelection(host.Span{Start: sp.End, End: sp.End}); serr != nil {
		b.rec.Exception("document.set_selection", serr)
	}
	return otto.TrueValue()
}

func (b *bindings) docInsertTable(arg otto.Value) otto.Value {
	cells, cerr := toCells(arg)
	if cerr != nil {
		return b.throw(cerr)
	}
	if err := b.guard.Count("document_insert_table"); err != nil {
		return b.throw(err)
	}
	n := 0
	for _, row := range cells {
		n += len(row)
	}
	if err := b.guard.CheckTableCells(n); err != nil {
		return b.throw(err)
	}
	pos := b.doc.Length()
	if sel, err := b.doc.Selection(); err == nil {
		pos = sel.End
	}
	_, ok := host.Try(b.rec, "document.insert_table", func() (host.Span, error) {
		return b.doc.InsertTable(pos, cells)
	})
	if !ok {
		var sb strings.Builder
		for _, row := range cells {
			sb.WriteString(strings.Join(row, "\t"))
			sb.WriteByte('\n')
		}
		if _, err := b.doc.Insert(pos, sb.String()); err != nil {
			return b.throw(faults.HostAPI("document.insert", err))
		}
	}
	return otto.TrueValue()
}

// toCells converts a JS array-of-arrays into table cells, stringifying
// scalar values.
func toCells(v otto.Value) ([][]string, error) {
	exp, err := v.Export()
	if err != nil {
		return nil, faults.Syntaxf("insertTable: %v", err)
	}
	// Export returns a typed slice for homogeneous arrays ([][]string,
	// []string rows) and []interface{} for mixed ones; reflect over the
	// value so both shapes land.
	outer := reflect.ValueOf(exp)
	if outer.Kind() != reflect.Slice {
		return nil, faults.Syntaxf("insertTable: expected an array of rows, got %T", exp)
	}
	cells := make([][]string, 0, outer.Len())
	for i := 0; i < outer.Len(); i++ {
		r := outer.Index(i).Interface()
		inner := reflect.ValueOf(r)
		if inner.Kind() != reflect.Slice {
			return nil, faults.Syntaxf("insertTable: row is %T, expected an array", r)
		}
		row := make([]string, 0, inner.Len())
		for j := 0; j < inner.Len(); j++ {
			row = append(row, fmt.Sprint(inner.Index(j).Interface()))
		}
		cells = append(cells, row)
	}
	return cells, nil
}
