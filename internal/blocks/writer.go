package blocks

import (
	"strings"

	"docforge/internal/faults"
	"docforge/internal/host"
)

// SpanWriter is the producer's handle into the block's content span.
// Writes land at an internal cursor that advances with each insert; they
// never touch the external selection, which the manager has frozen.
type SpanWriter struct {
	m       *Manager
	cur     int
	written int
}

// WriteText inserts text at the writer's cursor.
func (w *SpanWriter) WriteText(text string) error {
	if err := w.m.guard.Count("write_text"); err != nil {
		return err
	}
	if err := w.m.guard.CheckText(text); err != nil {
		return err
	}
	sp, err := w.m.doc.Insert(w.cur, text)
	if err != nil {
		return faults.HostAPI("document.insert", err)
	}
	w.cur = sp.End
	w.written += sp.Len()
	return nil
}

// WriteParagraph inserts text followed by a paragraph break.
func (w *SpanWriter) WriteParagraph(text string) error {
	if err := w.m.guard.Count("write_paragraph"); err != nil {
		return err
	}
	if err := w.m.guard.CheckText(text); err != nil {
		return err
	}
	sp, err := w.m.doc.Insert(w.cur, text+"\n")
	if err != nil {
		return faults.HostAPI("document.insert", err)
	}
	w.cur = sp.End
	w.written += sp.Len()
	return nil
}

// WriteTable inserts a table. Hosts without a table model get the cells
// rendered as tab-separated text, the documented fallback.
func (w *SpanWriter) WriteTable(cells [][]string) error {
	if err := w.m.guard.Count("write_table"); err != nil {
		return err
	}
	n := 0
	for _, row := range cells {
		n += len(row)
	}
	if err := w.m.guard.CheckTableCells(n); err != nil {
		return err
	}
	sp, ok := host.Try(w.m.rec, "document.insert_table", func() (host.Span, error) {
		return w.m.doc.InsertTable(w.cur, cells)
	})
	if !ok {
		var b strings.Builder
		for _, row := range cells {
			b.WriteString(strings.Join(row, "\t"))
			b.WriteByte('\n')
		}
		ins, err := w.m.doc.Insert(w.cur, b.String())
		if err != nil {
			return faults.HostAPI("document.insert", err)
		}
		sp = ins
	}
	w.cur = sp.End
	w.written += sp.Len()
	return nil
}

// Written reports how many runes the producer has inserted.
func (w *SpanWriter) Written() int { return w.written }
