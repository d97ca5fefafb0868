// Package host models the document-editing application's object graph.
// Method availability varies across three host flavors and many host
// versions, so the surface is expressed as interfaces plus a one-shot
// capability probe, and every call site goes through a best-effort
// combinator instead of assuming presence.
package host

import "errors"

// ErrUnsupported is the sentinel a host returns for a member its flavor
// or version does not expose. Callers fall back instead of failing.
var ErrUnsupported = errors.New("host: unsupported operation")

// Flavor identifies the editing application variant.
type Flavor int

const (
	FlavorDocument Flavor = iota
	FlavorSpreadsheet
	FlavorPresentation
)

func (f Flavor) String() string {
	switch f {
	case FlavorDocument:
		return "document"
	case FlavorSpreadsheet:
		return "spreadsheet"
	case FlavorPresentation:
		return "presentation"
	default:
		return "unknown"
	}
}

// Span is a half-open offset range [Start, End) in document runes.
type Span struct {
	Start int
	End   int
}

func (s Span) Len() int       { return s.End - s.Start }
func (s Span) Empty() bool    { return s.End <= s.Start }
func (s Span) Valid() bool    { return s.Start >= 0 && s.End >= s.Start }
func (s Span) Contains(p int) bool { return p >= s.Start && p < s.End }

// Document is the per-application accessor surface the engine needs.
// Implementations return ErrUnsupported for members their flavor lacks.
type Document interface {
	// Identity is a stable key for the per-document backup store.
	Identity() string
	Flavor() Flavor

	Length() int
	Text(sp Span) (string, error)
	// Insert places text at pos and returns the span it now occupies.
	Insert(pos int, text string) (Span, error)
	Delete(sp Span) error

	// Named invisible ranges. Only some flavors/versions have them.
	AddBookmark(name string, sp Span) (err error)
	Bookmark(name string) (Span, error)
	RemoveBookmark(name string) error
	Bookmarks() ([]string, error)

	// HideSpan styles a range hidden/zero-width, used for text markers.
	HideSpan(sp Span) error

	// InsertTable inserts a rows x cols table rendered at pos and
	// returns its span. TableCount reports how many tables exist, so
	// the upsert postcondition can tell structured content was added.
	InsertTable(pos int, cells [][]string) (Span, error)
	TableCount() (int, error)

	Selection() (Span, error)
	SetSelection(sp Span) error
}

// ErrNoBookmark is returned by Bookmark when the name is absent on a
// host that does support bookmarks.
var ErrNoBookmark = errors.New("host: bookmark not found")
