package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// --- Check-in drafts ---

const draftSlot = "daily"

// GetDraft returns the single in-progress draft, or ErrNotFound.
func (s *Store) GetDraft() (Draft, error) {
	return scanDraft(s.db.QueryRow(`
		SELECT id, entry_json, steps_json, created_at, updated_at, expires_at
		FROM drafts WHERE slot = ?`, draftSlot))
}

// SaveDraft inserts or replaces the in-progress draft.
func (s *Store) SaveDraft(d Draft) error {
	return saveDraft(s.db, d)
}

// UpdateDraft runs fn against the current draft inside a transaction and
// persists what it returns. found reports whether a draft existed. fn must
// not call back into the Store: the only connection is held by the transaction.
func (s *Store) UpdateDraft(fn func(cur Draft, found bool) (Draft, error)) (Draft, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return Draft{}, fmt.Errorf("beginning draft transaction: %w", err)
	}
	defer tx.Rollback()

	cur, err := scanDraft(tx.QueryRow(`
		SELECT id, entry_json, steps_json, created_at, updated_at, expires_at
		FROM drafts WHERE slot = ?`, draftSlot))
	found := true
	if err == ErrNotFound {
		found = false
	} else if err != nil {
		return Draft{}, err
	}

	next, err := fn(cur, found)
	if err != nil {
		return Draft{}, err
	}
	if err := saveDraft(tx, next); err != nil {
		return Draft{}, err
	}
	if err := tx.Commit(); err != nil {
		return Draft{}, fmt.Errorf("committing draft: %w", err)
	}
	return next, nil
}

// DeleteDraft removes the in-progress draft if one exists.
func (s *Store) DeleteDraft() error {
	_, err := s.db.Exec("DELETE FROM drafts WHERE slot = ?", draftSlot)
	return err
}

// DeleteExpiredDrafts removes drafts whose expiry is at or before now.
func (s *Store) DeleteExpiredDrafts(now time.Time) (int64, error) {
	res, err := s.db.Exec("DELETE FROM drafts WHERE expires_at <= ?", formatTime(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CommitDraft atomically deletes the draft identified by draftID and appends
// rec to the history. It returns ErrNotFound when the draft is already gone,
// so a draft can be committed at most once.
func (s *Store) CommitDraft(draftID string, rec Record) (Record, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return Record{}, fmt.Errorf("beginning commit transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec("DELETE FROM drafts WHERE id = ?", draftID)
	if err != nil {
		return Record{}, fmt.Errorf("deleting draft: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Record{}, err
	}
	if n == 0 {
		return Record{}, ErrNotFound
	}

	seq, err := insertRecord(tx, rec)
	if err != nil {
		return Record{}, err
	}
	if err := tx.Commit(); err != nil {
		return Record{}, fmt.Errorf("committing record: %w", err)
	}
	rec.Seq = seq
	return rec, nil
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func saveDraft(db execer, d Draft) error {
	entry := d.EntryJSON
	if entry == "" {
		entry = "{}"
	}
	steps := d.StepsJSON
	if steps == "" {
		steps = "[]"
	}
	_, err := db.Exec(`
		INSERT INTO drafts (id, slot, entry_json, steps_json, created_at, updated_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET
			id = excluded.id,
			entry_json = excluded.entry_json,
			steps_json = excluded.steps_json,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			expires_at = excluded.expires_at`,
		d.ID, draftSlot, entry, steps,
		formatTime(d.CreatedAt), formatTime(d.UpdatedAt), formatTime(d.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("saving draft: %w", err)
	}
	return nil
}

func scanDraft(row *sql.Row) (Draft, error) {
	var d Draft
	var createdAt, updatedAt, expiresAt string
	err := row.Scan(&d.ID, &d.EntryJSON, &d.StepsJSON, &createdAt, &updatedAt, &expiresAt)
	if err == sql.ErrNoRows {
		return Draft{}, ErrNotFound
	}
	if err != nil {
		return Draft{}, err
	}
	if d.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return Draft{}, err
	}
	if d.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return Draft{}, err
	}
	if d.ExpiresAt, err = parseTime("expires_at", expiresAt); err != nil {
		return Draft{}, err
	}
	return d, nil
}
