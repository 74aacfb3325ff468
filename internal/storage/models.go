package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidPhoto is returned when a baseline photo is not a base64 image data URL.
var ErrInvalidPhoto = errors.New("invalid photo: expected data:image/*;base64 URL")

// Draft is the persisted in-progress check-in. EntryJSON holds the merged
// step fields; StepsJSON is a JSON array of completed step names.
type Draft struct {
	ID        string
	EntryJSON string
	StepsJSON string
	CreatedAt time.Time
	UpdatedAt time.Time
	ExpiresAt time.Time
}

// Record is a finalized log entry. Seq preserves append order.
type Record struct {
	Seq       int64
	ID        string
	Date      string // "2006-01-02"
	CreatedAt time.Time
	EntryJSON string
	PhotoRef  string
}

// Photo is the stored baseline skin photo.
type Photo struct {
	DataURL   string
	Ref       string
	UpdatedAt time.Time
}
