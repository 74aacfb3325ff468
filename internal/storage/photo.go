package storage

import (
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"strings"
	"time"
)

// --- Baseline photo ---

// SetBaselinePhoto validates and stores a data-URL encoded image, replacing
// any previous photo. It returns the stored photo's reference.
func (s *Store) SetBaselinePhoto(dataURL string) (Photo, error) {
	payload, err := decodeImageDataURL(dataURL)
	if err != nil {
		return Photo{}, err
	}
	sum := sha256.Sum256(payload)
	p := Photo{
		DataURL:   dataURL,
		Ref:       "photo:" + hex.EncodeToString(sum[:])[:12],
		UpdatedAt: time.Now().UTC().Truncate(time.Second),
	}
	_, err = s.db.Exec(`
		INSERT INTO baseline_photo (id, data_url, ref, updated_at) VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data_url = excluded.data_url, ref = excluded.ref, updated_at = excluded.updated_at`,
		p.DataURL, p.Ref, formatTime(p.UpdatedAt),
	)
	if err != nil {
		return Photo{}, err
	}
	return p, nil
}

// BaselinePhoto returns the stored photo or ErrNotFound.
func (s *Store) BaselinePhoto() (Photo, error) {
	var p Photo
	var updatedAt string
	err := s.db.QueryRow("SELECT data_url, ref, updated_at FROM baseline_photo WHERE id = 1").
		Scan(&p.DataURL, &p.Ref, &updatedAt)
	if err == sql.ErrNoRows {
		return Photo{}, ErrNotFound
	}
	if err != nil {
		return Photo{}, err
	}
	if p.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return Photo{}, err
	}
	return p, nil
}

// BaselinePhotoRef returns the reference of the stored photo, or "" when none.
func (s *Store) BaselinePhotoRef() (string, error) {
	p, err := s.BaselinePhoto()
	if err == ErrNotFound {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return p.Ref, nil
}

func (s *Store) ClearBaselinePhoto() error {
	_, err := s.db.Exec("DELETE FROM baseline_photo")
	return err
}

// decodeImageDataURL accepts "data:image/<subtype>;base64,<payload>".
func decodeImageDataURL(u string) ([]byte, error) {
	rest, ok := strings.CutPrefix(u, "data:")
	if !ok {
		return nil, ErrInvalidPhoto
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, ErrInvalidPhoto
	}
	mime, enc, ok := strings.Cut(meta, ";")
	if !ok || enc != "base64" || !strings.HasPrefix(mime, "image/") || len(mime) == len("image/") {
		return nil, ErrInvalidPhoto
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil || len(data) == 0 {
		return nil, ErrInvalidPhoto
	}
	return data, nil
}
