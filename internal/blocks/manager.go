// Package blocks is the idempotent content-upsert engine: it anchors,
// replaces, and rolls back a named region of document content across
// independent executions. Calling Upsert twice with the same id and a
// deterministic producer leaves exactly one anchor and the same content a
// single fresh run would produce.
package blocks

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"docforge/internal/audit"
	"docforge/internal/faults"
	"docforge/internal/guard"
	"docforge/internal/host"
)

// changeLogBlockID anchors the optional change-log block.
const changeLogBlockID = "changelog"

// Placement says where a fresh anchor goes when none exists.
type Placement int

const (
	// PlaceCursor anchors at the current selection start.
	PlaceCursor Placement = iota
	// PlaceEnd anchors at the end of the document.
	PlaceEnd
)

// Options tunes one upsert.
type Options struct {
	Anchor        Placement
	ForceMarkers  bool
	DisableBackup bool
	ChangeLog     bool
}

// Producer populates the block's span. If it returns text and the span
// is still empty afterward, the manager materializes the text itself.
type Producer func(w *SpanWriter) (string, error)

// BlockInfo describes one anchored block.
type BlockInfo struct {
	ID      string
	Kind    AnchorKind
	Content host.Span
}

// Manager runs upserts against one document within one execution
// attempt. It is single-threaded by design: the host exposes one shared
// selection, so there is exactly one logical actor.
type Manager struct {
	doc     host.Document
	caps    host.Capabilities
	guard   *guard.Guard
	backups *BackupStore
	rec     *audit.Recorder
	logger  *zap.Logger

	open      string
	lastWrite map[string]time.Time
}

// NewManager wires a manager for one run. backups may be nil, which
// disables backup capture and rollback.
func NewManager(doc host.Document, caps host.Capabilities, g *guard.Guard, backups *BackupStore, rec *audit.Recorder, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		doc:       doc,
		caps:      caps,
		guard:     g,
		backups:   backups,
		rec:       rec,
		logger:    logger,
		lastWrite: make(map[string]time.Time),
	}
}

// Upsert locates or creates the anchor for id, clears stale content,
// runs the producer inside the span, verifies the result, and re-anchors.
func (m *Manager) Upsert(rawID string, produce Producer, opts Options) (err error) {
	id := SanitizeID(rawID)
	if m.open != "" {
		return faults.Environmentf("upsert for block %q still open; one block at a time", m.open)
	}
	m.open = id
	defer func() { m.open = "" }()

	if cerr := m.guard.Count("block_upsert"); cerr != nil {
		return cerr
	}

	// Freeze the external selection for the whole operation so the
	// producer's cursor movement never leaks to the caller.
	extSel, haveSel := host.Try(m.rec, "selection.get", m.doc.Selection)
	if haveSel {
		defer host.Try0(m.rec, "selection.restore", func() error {
			return m.doc.SetSelection(extSel)
		})
	}

	a, found := m.findAnchor(id)
	var prev string
	if found {
		prev, _ = host.Try(m.rec, "block.read", func() (string, error) {
			return m.doc.Text(a.content)
		})
		if cerr := m.guard.Count("block_clear"); cerr != nil {
			return cerr
		}
		if derr := m.doc.Delete(a.content); derr != nil {
			return faults.HostAPI("document.delete", derr)
		}
		a.content = host.Span{Start: a.content.Start, End: a.content.Start}
		host.Try0(m.rec, "selection.set", func() error {
			return m.doc.SetSelection(host.Span{Start: a.content.Start, End: a.content.Start})
		})
	} else {
		pos := m.doc.Length()
		if opts.Anchor == PlaceCursor && haveSel {
			pos = extSel.Start
		}
		if cerr := m.guard.Count("block_create"); cerr != nil {
			return cerr
		}
		created, cerr := m.createAnchor(id, pos, opts.ForceMarkers)
		if cerr != nil {
			return faults.HostAPI("anchor.create", cerr)
		}
		a = created
	}

	tablesBefore, _ := host.Try(m.rec, "tables.count", m.doc.TableCount)

	w := &SpanWriter{m: m, cur: a.content.Start}
	returned, perr := produce(w)
	if perr != nil {
		m.reattach(a, host.Span{Start: a.content.Start, End: a.content.Start + w.written})
		return perr
	}
	if returned != "" && w.written == 0 {
		// Producer reported text but wrote nothing; materialize it.
		if werr := w.WriteText(returned); werr != nil {
			return werr
		}
	}

	newSpan := host.Span{Start: a.content.Start, End: a.content.Start + w.written}
	m.reattach(a, newSpan)

	content, _ := host.Try(m.rec, "block.read", func() (string, error) {
		return m.doc.Text(newSpan)
	})
	tablesAfter, _ := host.Try(m.rec, "tables.count", m.doc.TableCount)
	if strings.TrimSpace(content) == "" && tablesAfter == tablesBefore {
		return faults.ContentNotProduced(id)
	}

	m.lastWrite[id] = time.Now()

	if found && !opts.DisableBackup && m.backups != nil {
		if berr := m.backups.Put(m.doc.Identity(), id, prev, content); berr != nil {
			m.rec.Exception("backup.put", berr)
		}
		if opts.ChangeLog && content != prev {
			m.appendChangeLog(id, len(content)-len(prev))
		}
	}

	m.logger.Debug("block upserted",
		zap.String("block_id", id),
		zap.String("anchor", a.kind.String()),
		zap.Bool("existing", found),
		zap.Int("length", newSpan.Len()),
	)
	return nil
}

// Rollback restores the most recent backup payload for id.
func (m *Manager) Rollback(rawID string) error {
	id := SanitizeID(rawID)
	if m.backups == nil {
		return ErrNoBackup
	}
	a, found := m.findAnchor(id)
	if !found {
		return faults.Environmentf("no anchor for block %q; nothing to roll back into", id)
	}
	current, _ := host.Try(m.rec, "block.read", func() (string, error) {
		return m.doc.Text(a.content)
	})
	prev, err := m.backups.Restore(m.doc.Identity(), id, current)
	if err != nil {
		return err
	}

	extSel, haveSel := host.Try(m.rec, "selection.get", m.doc.Selection)
	if haveSel {
		defer host.Try0(m.rec, "selection.restore", func() error {
			return m.doc.SetSelection(extSel)
		})
	}

	if cerr := m.guard.Count("block_rollback"); cerr != nil {
		return cerr
	}
	if derr := m.doc.Delete(a.content); derr != nil {
		return faults.HostAPI("document.delete", derr)
	}
	sp, ierr := m.doc.Insert(a.content.Start, prev)
	if ierr != nil {
		return faults.HostAPI("document.insert", ierr)
	}
	m.reattach(a, sp)
	return nil
}

// Read returns the current content of block id.
func (m *Manager) Read(rawID string) (string, error) {
	id := SanitizeID(rawID)
	a, found := m.findAnchor(id)
	if !found {
		return "", fmt.Errorf("blocks: no anchor for %q", id)
	}
	return m.doc.Text(a.content)
}

// List enumerates anchored blocks, bookmarks first, then marker pairs.
func (m *Manager) List() []BlockInfo {
	var out []BlockInfo
	seen := map[string]bool{}

	if m.caps.Bookmarks {
		if names, ok := host.Try(m.rec, "bookmark.list", m.doc.Bookmarks); ok {
			for _, name := range names {
				id, isBlock := strings.CutPrefix(name, bookmarkPrefix)
				if !isBlock {
					continue
				}
				if sp, err := m.doc.Bookmark(name); err == nil {
					out = append(out, BlockInfo{ID: id, Kind: AnchorBookmark, Content: sp})
					seen[id] = true
				}
			}
		}
	}
	if text, ok := host.Try(m.rec, "document.text", func() (string, error) {
		return m.doc.Text(host.Span{Start: 0, End: m.doc.Length()})
	}); ok {
		for _, match := range markerPattern.FindAllStringSubmatch(text, -1) {
			id := match[1]
			if seen[id] {
				continue
			}
			seen[id] = true
			if a, found := m.findAnchor(id); found {
				out = append(out, BlockInfo{ID: id, Kind: a.kind, Content: a.content})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// appendChangeLog appends one entry to the separately anchored log
// block. Log writes are best-effort and never fail the upsert.
func (m *Manager) appendChangeLog(id string, delta int) {
	entry := fmt.Sprintf("%s %s %+d\n", time.Now().Format(time.RFC3339), id, delta)

	a, found := m.findAnchor(changeLogBlockID)
	if !found {
		created, err := m.createAnchor(changeLogBlockID, m.doc.Length(), false)
		if err != nil {
			m.rec.Exception("changelog.create", err)
			return
		}
		a = created
	}
	if cerr := m.guard.Count("changelog_append"); cerr != nil {
		return
	}
	sp, err := m.doc.Insert(a.content.End, entry)
	if err != nil {
		m.rec.Exception("changelog.append", err)
		return
	}
	m.reattach(a, host.Span{Start: a.content.Start, End: sp.End})
}
