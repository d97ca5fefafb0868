package blocks

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"
	_ "modernc.org/sqlite"
)

// ErrNoBackup is returned by Rollback when no backup payload exists for
// the block.
var ErrNoBackup = errors.New("blocks: no backup recorded")

// Payloads above this size are stored as positional patch records
// instead of full text.
const fullTextCutoff = 4096

const backupSchema = `
CREATE TABLE IF NOT EXISTS block_backups (
	doc_id     TEXT NOT NULL,
	block_id   TEXT NOT NULL,
	kind       TEXT NOT NULL,
	payload    TEXT NOT NULL,
	written_at INTEGER NOT NULL,
	PRIMARY KEY (doc_id, block_id)
);`

// BackupStore persists the most recent pre-upsert content of each block,
// keyed by (document identity, block id).
type BackupStore struct {
	db  *sql.DB
	dmp *diffmatchpatch.DiffMatchPatch
}

// OpenBackupStore opens (creating if needed) the backup database at
// path. Use ":memory:" for an ephemeral store.
func OpenBackupStore(path string) (*BackupStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open backup store: %w", err)
	}
	if _, err := db.Exec(backupSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init backup store: %w", err)
	}
	return &BackupStore{db: db, dmp: diffmatchpatch.New()}, nil
}

func (s *BackupStore) Close() error { return s.db.Close() }

// Put records prev as the backup for (docID, blockID). Small payloads
// are stored verbatim; larger ones as a patch list that transforms the
// new content back into prev.
func (s *BackupStore) Put(docID, blockID, prev, next string) error {
	kind, payload := "full", prev
	if len(prev) > fullTextCutoff {
		patches := s.dmp.PatchMake(next, prev)
		kind, payload = "patch", s.dmp.PatchToText(patches)
	}
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO block_backups (doc_id, block_id, kind, payload, written_at)
		 VALUES (?, ?, ?, ?, ?)`,
		docID, blockID, kind, payload, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("store backup for %s/%s: %w", docID, blockID, err)
	}
	return nil
}

// Restore returns the backed-up content for (docID, blockID), applying
// patch payloads to current when necessary.
func (s *BackupStore) Restore(docID, blockID, current string) (string, error) {
	var kind, payload string
	err := s.db.QueryRow(
		`SELECT kind, payload FROM block_backups WHERE doc_id = ? AND block_id = ?`,
		docID, blockID).Scan(&kind, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoBackup
	}
	if err != nil {
		return "", fmt.Errorf("load backup for %s/%s: %w", docID, blockID, err)
	}
	if kind == "full" {
		return payload, nil
	}
	patches, err := s.dmp.PatchFromText(payload)
	if err != nil {
		return "", fmt.Errorf("decode backup patches for %s/%s: %w", docID, blockID, err)
	}
	restored, applied := s.dmp.PatchApply(patches, current)
	for _, ok := range applied {
		if !ok {
			return "", fmt.Errorf("backup patch did not apply cleanly for %s/%s", docID, blockID)
		}
	}
	return restored, nil
}
