package host

import "errors"

// Capabilities is the one-shot-per-session probe result: a set of boolean
// facts about what this document's host version actually exposes. The
// engine consults them instead of a class hierarchy.
type Capabilities struct {
	Bookmarks  bool
	HiddenText bool
	Tables     bool
	Selection  bool
}

// Probe exercises each optional member once. A member that answers
// ErrUnsupported (or panics) is marked absent; any other answer,
// including a domain error, proves the member exists. Probing is
// expected to hit missing members, so nothing is recorded as a failure.
func Probe(doc Document) Capabilities {
	return Capabilities{
		Bookmarks: supported(func() error {
			_, err := doc.Bookmarks()
			return err
		}),
		HiddenText: supported(func() error {
			return doc.HideSpan(Span{})
		}),
		Tables: supported(func() error {
			_, err := doc.TableCount()
			return err
		}),
		Selection: supported(func() error {
			_, err := doc.Selection()
			return err
		}),
	}
}

func supported(fn func() error) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return !errors.Is(fn(), ErrUnsupported)
}
