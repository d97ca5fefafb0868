package blocks

import (
	"regexp"
	"strings"

	"docforge/internal/host"
)

// AnchorKind distinguishes how a block is durably anchored.
type AnchorKind int

const (
	// AnchorBookmark is an invisible named range, preferred when the
	// host supports it.
	AnchorBookmark AnchorKind = iota
	// AnchorMarkerPair is a pair of hidden text markers embedding the
	// block id, the fallback for hosts without bookmarks.
	AnchorMarkerPair
)

func (k AnchorKind) String() string {
	if k == AnchorBookmark {
		return "bookmark"
	}
	return "markerPair"
}

const (
	bookmarkPrefix  = "dfblk_"
	markerOpenLeft  = "[[df:"
	markerOpenRight = "]]"
	markerCloseLeft = "[[/df:"
)

var idSafe = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// SanitizeID reduces a caller-supplied block id to an anchor-safe token.
func SanitizeID(raw string) string {
	id := idSafe.ReplaceAllString(strings.TrimSpace(raw), "_")
	if len(id) > 64 {
		id = id[:64]
	}
	if id == "" {
		id = "blk"
	}
	return id
}

func bookmarkName(id string) string { return bookmarkPrefix + id }
func startMarker(id string) string  { return markerOpenLeft + id + markerOpenRight }
func endMarker(id string) string    { return markerCloseLeft + id + markerOpenRight }

// markerPattern extracts block ids from marker-pair anchors in text.
var markerPattern = regexp.MustCompile(`\[\[df:([A-Za-z0-9_-]+)\]\]`)

// anchor is a located block anchor with its current content span.
type anchor struct {
	kind    AnchorKind
	id      string
	content host.Span
}

// findAnchor locates an existing anchor for id, bookmark first.
func (m *Manager) findAnchor(id string) (anchor, bool) {
	if m.caps.Bookmarks {
		if sp, ok := host.Try(m.rec, "bookmark.lookup", func() (host.Span, error) {
			return m.doc.Bookmark(bookmarkName(id))
		}); ok {
			return anchor{kind: AnchorBookmark, id: id, content: sp}, true
		}
	}
	text, ok := host.Try(m.rec, "document.text", func() (string, error) {
		return m.doc.Text(host.Span{Start: 0, End: m.doc.Length()})
	})
	if !ok {
		return anchor{}, false
	}
	runes := []rune(text)
	start := indexRunes(runes, startMarker(id), 0)
	if start < 0 {
		return anchor{}, false
	}
	contentStart := start + len(startMarker(id))
	end := indexRunes(runes, endMarker(id), contentStart)
	if end < 0 {
		return anchor{}, false
	}
	return anchor{
		kind:    AnchorMarkerPair,
		id:      id,
		content: host.Span{Start: contentStart, End: end},
	}, true
}

// createAnchor inserts a fresh anchor at pos with isolating paragraph
// breaks and returns it with an empty content span.
func (m *Manager) createAnchor(id string, pos int, forceMarkers bool) (anchor, error) {
	useBookmark := m.caps.Bookmarks && !forceMarkers

	if useBookmark {
		if _, err := m.doc.Insert(pos, "\n\n"); err != nil {
			return anchor{}, err
		}
		content := host.Span{Start: pos + 1, End: pos + 1}
		if ok := host.Try0(m.rec, "bookmark.add", func() error {
			return m.doc.AddBookmark(bookmarkName(id), content)
		}); ok {
			return anchor{kind: AnchorBookmark, id: id, content: content}, nil
		}
		// Bookmark add failed despite the probe; fall through to markers.
	}

	open, closing := startMarker(id), endMarker(id)
	sp, err := m.doc.Insert(pos, "\n"+open+closing+"\n")
	if err != nil {
		return anchor{}, err
	}
	openSpan := host.Span{Start: sp.Start + 1, End: sp.Start + 1 + len(open)}
	closeSpan := host.Span{Start: openSpan.End, End: openSpan.End + len(closing)}
	m.hideMarkers(openSpan, closeSpan)
	return anchor{
		kind:    AnchorMarkerPair,
		id:      id,
		content: host.Span{Start: openSpan.End, End: openSpan.End},
	}, nil
}

// reattach re-binds the anchor to the block's new content span: re-add
// the bookmark, or re-stamp hidden styling on the marker pair.
func (m *Manager) reattach(a anchor, content host.Span) {
	switch a.kind {
	case AnchorBookmark:
		host.Try0(m.rec, "bookmark.remove", func() error {
			return m.doc.RemoveBookmark(bookmarkName(a.id))
		})
		host.Try0(m.rec, "bookmark.add", func() error {
			return m.doc.AddBookmark(bookmarkName(a.id), content)
		})
	case AnchorMarkerPair:
		open := startMarker(a.id)
		openSpan := host.Span{Start: content.Start - len(open), End: content.Start}
		closeSpan := host.Span{Start: content.End, End: content.End + len(endMarker(a.id))}
		m.hideMarkers(openSpan, closeSpan)
	}
}

func (m *Manager) hideMarkers(spans ...host.Span) {
	if !m.caps.HiddenText {
		return
	}
	for _, sp := range spans {
		span := sp
		host.Try0(m.rec, "marker.hide", func() error {
			return m.doc.HideSpan(span)
		})
	}
}

// indexRunes finds the rune offset of an ASCII needle in hay, at or
// after from. Host offsets are rune-based, so byte indexes won't do.
func indexRunes(hay []rune, needle string, from int) int {
	n := len(needle)
	if n == 0 {
		return from
	}
	for i := from; i+n <= len(hay); i++ {
		match := true
		for j := 0; j < n; j++ {
			if hay[i+j] != rune(needle[j]) {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
