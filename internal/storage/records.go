package storage

import (
	"database/sql"
	"fmt"
)

// --- Log records ---

// AppendRecord adds rec to the end of the history and returns it with Seq set.
func (s *Store) AppendRecord(rec Record) (Record, error) {
	seq, err := insertRecord(s.db, rec)
	if err != nil {
		return Record{}, err
	}
	rec.Seq = seq
	return rec, nil
}

// ListRecords returns the full history in append order (oldest first).
func (s *Store) ListRecords() ([]Record, error) {
	rows, err := s.db.Query(`
		SELECT seq, id, log_date, created_at, entry_json, photo_ref
		FROM log_records ORDER BY seq ASC`)
	if err != nil {
		return nil, err
	}
	return scanRecords(rows)
}

// RecentRecords returns up to limit of the newest records, still in append order.
func (s *Store) RecentRecords(limit int) ([]Record, error) {
	rows, err := s.db.Query(`
		SELECT seq, id, log_date, created_at, entry_json, photo_ref FROM (
			SELECT * FROM log_records ORDER BY seq DESC LIMIT ?
		) ORDER BY seq ASC`, limit)
	if err != nil {
		return nil, err
	}
	return scanRecords(rows)
}

func (s *Store) GetRecord(id string) (Record, error) {
	var r Record
	var createdAt string
	err := s.db.QueryRow(`
		SELECT seq, id, log_date, created_at, entry_json, photo_ref
		FROM log_records WHERE id = ?`, id,
	).Scan(&r.Seq, &r.ID, &r.Date, &createdAt, &r.EntryJSON, &r.PhotoRef)
	if err == sql.ErrNoRows {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	if r.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return Record{}, err
	}
	return r, nil
}

// DeleteRecord removes one record by ID.
func (s *Store) DeleteRecord(id string) error {
	res, err := s.db.Exec("DELETE FROM log_records WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func insertRecord(db execer, rec Record) (int64, error) {
	res, err := db.Exec(`
		INSERT INTO log_records (id, log_date, created_at, entry_json, photo_ref)
		VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.Date, formatTime(rec.CreatedAt), rec.EntryJSON, rec.PhotoRef,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting record: %w", err)
	}
	return res.LastInsertId()
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	defer rows.Close()

	var results []Record
	for rows.Next() {
		var r Record
		var createdAt string
		if err := rows.Scan(&r.Seq, &r.ID, &r.Date, &createdAt, &r.EntryJSON, &r.PhotoRef); err != nil {
			return nil, err
		}
		t, err := parseTime("created_at", createdAt)
		if err != nil {
			return nil, err
		}
		r.CreatedAt = t
		results = append(results, r)
	}
	return results, rows.Err()
}
