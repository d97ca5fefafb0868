package host

import (
	"fmt"
	"sort"
	"strings"
)

// MemDoc is an in-memory document implementing the full host surface for
// one flavor. It stands in for the real editing applications in tests and
// in the CLI, with per-flavor capability gaps matching the real hosts:
// only the document flavor has bookmarks, and the presentation flavor has
// no table model.
type MemDoc struct {
	id        string
	flavor    Flavor
	text      []rune
	bookmarks map[string]Span
	hidden    []Span
	selection Span
	tables    int
}

// NewMemDoc creates a document of the given flavor with initial content.
func NewMemDoc(flavor Flavor, id, initial string) *MemDoc {
	return &MemDoc{
		id:        id,
		flavor:    flavor,
		text:      []rune(initial),
		bookmarks: make(map[string]Span),
	}
}

func (d *MemDoc) Identity() string { return d.id }
func (d *MemDoc) Flavor() Flavor   { return d.flavor }
func (d *MemDoc) Length() int      { return len(d.text) }

// String returns the full document text.
func (d *MemDoc) String() string { return string(d.text) }

func (d *MemDoc) Text(sp Span) (string, error) {
	if !sp.Valid() || sp.End > len(d.text) {
		return "", fmt.Errorf("host: span %v out of range (len %d)", sp, len(d.text))
	}
	return string(d.text[sp.Start:sp.End]), nil
}

func (d *MemDoc) Insert(pos int, text string) (Span, error) {
	if pos < 0 || pos > len(d.text) {
		return Span{}, fmt.Errorf("host: insert position %d out of range (len %d)", pos, len(d.text))
	}
	ins := []rune(text)
	d.text = append(d.text[:pos], append(ins, d.text[pos:]...)...)
	n := len(ins)

	for name, b := range d.bookmarks {
		d.bookmarks[name] = shiftForInsert(b, pos, n)
	}
	for i, h := range d.hidden {
		d.hidden[i] = shiftForInsert(h, pos, n)
	}
	d.selection = shiftForInsert(d.selection, pos, n)
	return Span{Start: pos, End: pos + n}, nil
}

func (d *MemDoc) Delete(sp Span) error {
	if !sp.Valid() || sp.End > len(d.text) {
		return fmt.Errorf("host: delete span %v out of range (len %d)", sp, len(d.text))
	}
	if sp.Empty() {
		return nil
	}
	d.text = append(d.text[:sp.Start], d.text[sp.End:]...)

	for name, b := range d.bookmarks {
		d.bookmarks[name] = shiftForDelete(b, sp)
	}
	kept := d.hidden[:0]
	for _, h := range d.hidden {
		h = shiftForDelete(h, sp)
		if !h.Empty() {
			kept = append(kept, h)
		}
	}
	d.hidden = kept
	d.selection = shiftForDelete(d.selection, sp)
	return nil
}

func (d *MemDoc) AddBookmark(name string, sp Span) error {
	if d.flavor != FlavorDocument {
		return ErrUnsupported
	}
	if !sp.Valid() || sp.End > len(d.text) {
		return fmt.Errorf("host: bookmark span %v out of range", sp)
	}
	d.bookmarks[name] = sp
	return nil
}

func (d *MemDoc) Bookmark(name string) (Span, error) {
	if d.flavor != FlavorDocument {
		return Span{}, ErrUnsupported
	}
	sp, ok := d.bookmarks[name]
	if !ok {
		return Span{}, ErrNoBookmark
	}
	return sp, nil
}

func (d *MemDoc) RemoveBookmark(name string) error {
	if d.flavor != FlavorDocument {
		return ErrUnsupported
	}
	delete(d.bookmarks, name)
	return nil
}

func (d *MemDoc) Bookmarks() ([]string, error) {
	if d.flavor != FlavorDocument {
		return nil, ErrUnsupported
	}
	names := make([]string, 0, len(d.bookmarks))
	for name := range d.bookmarks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (d *MemDoc) HideSpan(sp Span) error {
	if !sp.Valid() || sp.End > len(d.text) {
		return fmt.Errorf("host: hide span %v out of range", sp)
	}
	if !sp.Empty() {
		d.hidden = append(d.hidden, sp)
	}
	return nil
}

// Hidden reports whether offset p is inside a hidden range.
func (d *MemDoc) Hidden(p int) bool {
	for _, h := range d.hidden {
		if h.Contains(p) {
			return true
		}
	}
	return false
}

func (d *MemDoc) InsertTable(pos int, cells [][]string) (Span, error) {
	if d.flavor == FlavorPresentation {
		return Span{}, ErrUnsupported
	}
	var b strings.Builder
	for _, row := range cells {
		b.WriteString(strings.Join(row, "\t"))
		b.WriteByte('\n')
	}
	sp, err := d.Insert(pos, b.String())
	if err != nil {
		return Span{}, err
	}
	d.tables++
	return sp, nil
}

func (d *MemDoc) TableCount() (int, error) {
	if d.flavor == FlavorPresentation {
		return 0, ErrUnsupported
	}
	return d.tables, nil
}

func (d *MemDoc) Selection() (Span, error) { return d.selection, nil }

func (d *MemDoc) SetSelection(sp Span) error {
	if !sp.Valid() || sp.End > len(d.text) {
		return fmt.Errorf("host: selection %v out of range", sp)
	}
	d.selection = sp
	return nil
}

// shiftForInsert grows or moves a span for n runes inserted at pos.
// Insertion at a span's start or end lands inside it, so a cleared block
// span swallows the content written back into it.
func shiftForInsert(sp Span, pos, n int) Span {
	switch {
	case pos < sp.Start:
		return Span{Start: sp.Start + n, End: sp.End + n}
	case pos <= sp.End:
		return Span{Start: sp.Start, End: sp.End + n}
	default:
		return sp
	}
}

// shiftForDelete contracts a span for the removal of del.
func shiftForDelete(sp Span, del Span) Span {
	n := del.Len()
	adjust := func(p int) int {
		switch {
		case p <= del.Start:
			return p
		case p >= del.End:
			return p - n
		default:
			return del.Start
		}
	}
	return Span{Start: adjust(sp.Start), End: adjust(sp.End)}
}
