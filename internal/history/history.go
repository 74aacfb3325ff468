// Package history serves the log history newest-first with filters and
// simple aggregates, and deletes records by their displayed position.
package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dermind/dermind/internal/logentry"
	"github.com/dermind/dermind/internal/storage"
)

var ErrIndexOutOfRange = errors.New("history index out of range")

// Window limits the history by date.
type Window string

const (
	WindowAll  Window = "all"
	Window7Day Window = "7d"
)

// ParseWindow accepts "", "all" and "7d".
func ParseWindow(s string) (Window, error) {
	switch Window(s) {
	case "", WindowAll:
		return WindowAll, nil
	case Window7Day:
		return Window7Day, nil
	default:
		return "", fmt.Errorf("unknown window %q (want all or 7d)", s)
	}
}

// Newest returns a reversed copy of records (oldest first in, newest first out).
func Newest(records []logentry.Record) []logentry.Record {
	out := make([]logentry.Record, len(records))
	for i, r := range records {
		out[len(records)-1-i] = r
	}
	return out
}

// FilterWindow keeps records dated within the last seven days of now's
// calendar day when w is Window7Day. Records with unparseable dates are
// dropped from that window.
func FilterWindow(records []logentry.Record, w Window, now time.Time) []logentry.Record {
	if w != Window7Day {
		return records
	}
	y, m, d := now.Date()
	cutoff := time.Date(y, m, d, 0, 0, 0, 0, now.Location()).AddDate(0, 0, -7)

	var out []logentry.Record
	for _, r := range records {
		day, err := time.ParseInLocation(logentry.DateLayout, r.Date, now.Location())
		if err != nil {
			slog.Warn("skipping record with bad date", "record_id", r.ID, "date", r.Date)
			continue
		}
		if !day.Before(cutoff) {
			out = append(out, r)
		}
	}
	return out
}

// FilterTrigger keeps records whose food triggers contain tag exactly.
// An empty tag keeps everything.
func FilterTrigger(records []logentry.Record, tag string) []logentry.Record {
	if tag == "" {
		return records
	}
	var out []logentry.Record
	for _, r := range records {
		if r.Entry.HasFoodTrigger(tag) {
			out = append(out, r)
		}
	}
	return out
}

// AverageItch is the mean itch level; 0 for no records. Records without an
// itch level count as 0.
func AverageItch(records []logentry.Record) float64 {
	if len(records) == 0 {
		return 0
	}
	sum := 0
	for _, r := range records {
		sum += r.Entry.Itch()
	}
	return float64(sum) / float64(len(records))
}

// MostFrequentTrigger returns the most common food trigger and its count.
// Ties go to the tag that was seen first. "None" is not a trigger.
func MostFrequentTrigger(records []logentry.Record) (string, int) {
	counts := map[string]int{}
	var order []string
	for _, r := range records {
		for _, t := range r.Entry.FoodTriggers {
			if t == "None" {
				continue
			}
			if _, ok := counts[t]; !ok {
				order = append(order, t)
			}
			counts[t]++
		}
	}

	best, bestCount := "", 0
	for _, t := range order {
		if counts[t] > bestCount {
			best, bestCount = t, counts[t]
		}
	}
	return best, bestCount
}

// OriginalIndex maps a newest-first display index back to the append-order
// position in a list of the given length.
func OriginalIndex(length, displayed int) (int, error) {
	if displayed < 0 || displayed >= length {
		return 0, fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, displayed, length)
	}
	return length - 1 - displayed, nil
}

// Store defines the storage operations the Service needs.
// Implemented by storage.Store.
type Store interface {
	ListRecords() ([]storage.Record, error)
	DeleteRecord(id string) error
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Query struct {
	Window  Window
	Trigger string
}

// Item is a displayed record. Index is its position in the unfiltered
// newest-first list, which is what DeleteDisplayed expects.
type Item struct {
	Index  int             `json:"index"`
	Record logentry.Record `json:"record"`
}

type Stats struct {
	Count           int     `json:"count"`
	AverageItch     float64 `json:"averageItch"`
	TopTrigger      string  `json:"topTrigger,omitempty"`
	TopTriggerCount int     `json:"topTriggerCount,omitempty"`
}

type View struct {
	Items []Item `json:"items"`
	Stats Stats  `json:"stats"`
	Total int    `json:"total"`
}

type Service struct {
	store Store
	clock Clock
}

func NewService(store Store) *Service {
	return &Service{store: store, clock: realClock{}}
}

// NewServiceWithClock creates a Service with a custom clock (for testing).
func NewServiceWithClock(store Store, clock Clock) *Service {
	return &Service{store: store, clock: clock}
}

// Records loads the full history in append order.
func (s *Service) Records(ctx context.Context) ([]logentry.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stored, err := s.store.ListRecords()
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	return logentry.FromStorageList(stored)
}

// View returns the history newest-first, filtered by q, with stats over the
// filtered records.
func (s *Service) View(ctx context.Context, q Query) (View, error) {
	records, err := s.Records(ctx)
	if err != nil {
		return View{}, err
	}
	newest := Newest(records)

	index := make(map[string]int, len(newest))
	for i, r := range newest {
		index[r.ID] = i
	}

	filtered := FilterTrigger(FilterWindow(newest, q.Window, s.clock.Now()), q.Trigger)

	items := make([]Item, 0, len(filtered))
	for _, r := range filtered {
		items = append(items, Item{Index: index[r.ID], Record: r})
	}
	top, topCount := MostFrequentTrigger(filtered)
	return View{
		Items: items,
		Stats: Stats{
			Count:           len(filtered),
			AverageItch:     AverageItch(filtered),
			TopTrigger:      top,
			TopTriggerCount: topCount,
		},
		Total: len(records),
	}, nil
}

// Latest returns the most recently appended record, or storage.ErrNotFound.
func (s *Service) Latest(ctx context.Context) (logentry.Record, []logentry.Record, error) {
	records, err := s.Records(ctx)
	if err != nil {
		return logentry.Record{}, nil, err
	}
	if len(records) == 0 {
		return logentry.Record{}, nil, storage.ErrNotFound
	}
	return records[len(records)-1], records, nil
}

// DeleteDisplayed deletes the record shown at position displayed of the
// unfiltered newest-first list and returns it.
func (s *Service) DeleteDisplayed(ctx context.Context, displayed int) (logentry.Record, error) {
	records, err := s.Records(ctx)
	if err != nil {
		return logentry.Record{}, err
	}
	orig, err := OriginalIndex(len(records), displayed)
	if err != nil {
		return logentry.Record{}, err
	}
	target := records[orig]
	if err := s.store.DeleteRecord(target.ID); err != nil {
		return logentry.Record{}, fmt.Errorf("deleting record %s: %w", target.ID, err)
	}
	slog.Info("deleted history record", "record_id", target.ID, "displayed_index", displayed)
	return target, nil
}
