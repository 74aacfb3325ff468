// Package checkin runs the five-step daily check-in: it keeps one draft
// entry, merges each step into it, and commits the finished entry to the
// history exactly once.
package checkin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/dermind/dermind/internal/form"
	"github.com/dermind/dermind/internal/insight"
	"github.com/dermind/dermind/internal/logentry"
	"github.com/dermind/dermind/internal/storage"
)

var (
	ErrNoDraft        = errors.New("no check-in in progress")
	ErrStepOutOfOrder = errors.New("previous check-in step not completed")
	ErrUnknownStep    = errors.New("unknown check-in step")
)

// Store defines the storage operations the Wizard needs.
// Implemented by storage.Store.
type Store interface {
	GetDraft() (storage.Draft, error)
	UpdateDraft(fn func(cur storage.Draft, found bool) (storage.Draft, error)) (storage.Draft, error)
	DeleteDraft() error
	CommitDraft(draftID string, rec storage.Record) (storage.Record, error)
	ListRecords() ([]storage.Record, error)
	BaselinePhotoRef() (string, error)
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Draft is the in-progress entry with the steps submitted so far.
type Draft struct {
	ID             string         `json:"id"`
	Entry          logentry.Entry `json:"entry"`
	CompletedSteps []Step         `json:"completedSteps"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
	ExpiresAt      time.Time      `json:"expiresAt"`
}

// NextStep is the first step in order that has not been completed.
func (d Draft) NextStep() Step {
	for _, s := range Order {
		if !slices.Contains(d.CompletedSteps, s) {
			return s
		}
	}
	return ""
}

// Result is what a submitted step produces. Record and Insight are set only
// when the submission finalized the check-in.
type Result struct {
	Draft   Draft            `json:"draft"`
	Next    Step             `json:"next,omitempty"`
	Record  *logentry.Record `json:"record,omitempty"`
	Insight *insight.Insight `json:"insight,omitempty"`
}

type Wizard struct {
	store Store
	clock Clock
	ttl   time.Duration
}

// NewWizard creates a Wizard whose drafts live for ttl after their last update.
func NewWizard(store Store, ttl time.Duration) *Wizard {
	return &Wizard{store: store, clock: realClock{}, ttl: ttl}
}

// NewWizardWithClock creates a Wizard with a custom clock (for testing).
func NewWizardWithClock(store Store, clock Clock, ttl time.Duration) *Wizard {
	return &Wizard{store: store, clock: clock, ttl: ttl}
}

// Start resumes the live draft or creates a fresh one. resumed reports
// which happened. An expired draft is replaced, never resumed.
func (w *Wizard) Start(ctx context.Context) (d Draft, resumed bool, err error) {
	if err := ctx.Err(); err != nil {
		return Draft{}, false, err
	}
	now := w.clock.Now()

	saved, err := w.store.UpdateDraft(func(cur storage.Draft, found bool) (storage.Draft, error) {
		if found && now.Before(cur.ExpiresAt) {
			resumed = true
			return cur, nil
		}
		return w.newDraft(now)
	})
	if err != nil {
		return Draft{}, false, fmt.Errorf("starting check-in: %w", err)
	}
	d, err = fromStorage(saved)
	if err != nil {
		return Draft{}, false, err
	}
	return d, resumed, nil
}

// Draft returns the live draft. Expired drafts are deleted and reported as
// ErrNoDraft.
func (w *Wizard) Draft(ctx context.Context) (Draft, error) {
	if err := ctx.Err(); err != nil {
		return Draft{}, err
	}
	sd, err := w.store.GetDraft()
	if errors.Is(err, storage.ErrNotFound) {
		return Draft{}, ErrNoDraft
	}
	if err != nil {
		return Draft{}, fmt.Errorf("loading draft: %w", err)
	}
	if !w.clock.Now().Before(sd.ExpiresAt) {
		if err := w.store.DeleteDraft(); err != nil {
			return Draft{}, fmt.Errorf("discarding expired draft: %w", err)
		}
		slog.Info("discarded expired check-in draft", "draft_id", sd.ID, "expired_at", sd.ExpiresAt)
		return Draft{}, ErrNoDraft
	}
	return fromStorage(sd)
}

// Abandon discards the in-progress draft, if any.
func (w *Wizard) Abandon(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := w.store.DeleteDraft(); err != nil {
		return fmt.Errorf("abandoning check-in: %w", err)
	}
	return nil
}

// Submit validates fields against the step's schema and merges them into the
// draft. The first step starts a draft when none is live; any later step
// requires its predecessor to be completed. Submitting the last step
// finalizes the check-in.
func (w *Wizard) Submit(ctx context.Context, step Step, fields map[string]any) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	schema, ok := Schema(step)
	if !ok {
		return Result{}, ErrUnknownStep
	}
	fields = form.WithDefaults(schema, fields)
	if err := form.Validate(schema, fields); err != nil {
		return Result{}, err
	}

	now := w.clock.Now()
	idx := indexOf(step)

	saved, err := w.store.UpdateDraft(func(cur storage.Draft, found bool) (storage.Draft, error) {
		if !found || !now.Before(cur.ExpiresAt) {
			if idx != 0 {
				return storage.Draft{}, ErrNoDraft
			}
			fresh, err := w.newDraft(now)
			if err != nil {
				return storage.Draft{}, err
			}
			cur = fresh
		}

		d, err := fromStorage(cur)
		if err != nil {
			return storage.Draft{}, err
		}
		if idx > 0 && !slices.Contains(d.CompletedSteps, Order[idx-1]) {
			return storage.Draft{}, fmt.Errorf("%w: %s must come before %s", ErrStepOutOfOrder, Order[idx-1], step)
		}

		d.Entry, err = logentry.Merge(d.Entry, fields)
		if err != nil {
			return storage.Draft{}, err
		}
		if !slices.Contains(d.CompletedSteps, step) {
			d.CompletedSteps = append(d.CompletedSteps, step)
		}
		d.UpdatedAt = now
		d.ExpiresAt = now.Add(w.ttl)
		return toStorage(d)
	})
	if err != nil {
		return Result{}, err
	}

	d, err := fromStorage(saved)
	if err != nil {
		return Result{}, err
	}
	if step != StepEmotion {
		return Result{Draft: d, Next: Next(step)}, nil
	}

	rec, ins, err := w.finalize(d, now)
	if err != nil {
		return Result{}, err
	}
	return Result{Draft: d, Record: &rec, Insight: &ins}, nil
}

// finalize stamps the date, carries the current baseline photo reference,
// commits the record in place of the draft, and derives its insight over
// the history including it.
func (w *Wizard) finalize(d Draft, now time.Time) (logentry.Record, insight.Insight, error) {
	photoRef, err := w.store.BaselinePhotoRef()
	if err != nil {
		return logentry.Record{}, insight.Insight{}, fmt.Errorf("reading baseline photo: %w", err)
	}

	rec := logentry.Record{
		ID:        uuid.New().String(),
		Date:      now.Format(logentry.DateLayout),
		CreatedAt: now,
		Entry:     d.Entry,
		PhotoRef:  photoRef,
	}
	sr, err := logentry.ToStorage(rec)
	if err != nil {
		return logentry.Record{}, insight.Insight{}, err
	}

	committed, err := w.store.CommitDraft(d.ID, sr)
	if errors.Is(err, storage.ErrNotFound) {
		// Another submission finalized this draft first.
		return logentry.Record{}, insight.Insight{}, ErrNoDraft
	}
	if err != nil {
		return logentry.Record{}, insight.Insight{}, fmt.Errorf("committing check-in: %w", err)
	}
	rec.Seq = committed.Seq

	stored, err := w.store.ListRecords()
	if err != nil {
		return logentry.Record{}, insight.Insight{}, fmt.Errorf("loading history: %w", err)
	}
	history, err := logentry.FromStorageList(stored)
	if err != nil {
		return logentry.Record{}, insight.Insight{}, err
	}

	slog.Info("check-in finalized", "record_id", rec.ID, "date", rec.Date)
	return rec, insight.Evaluate(rec, history), nil
}

func (w *Wizard) newDraft(now time.Time) (storage.Draft, error) {
	return toStorage(Draft{
		ID:             uuid.New().String(),
		CompletedSteps: []Step{},
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      now.Add(w.ttl),
	})
}

func toStorage(d Draft) (storage.Draft, error) {
	entry, err := json.Marshal(d.Entry)
	if err != nil {
		return storage.Draft{}, fmt.Errorf("encoding draft entry: %w", err)
	}
	steps := d.CompletedSteps
	if steps == nil {
		steps = []Step{}
	}
	stepsJSON, err := json.Marshal(steps)
	if err != nil {
		return storage.Draft{}, fmt.Errorf("encoding draft steps: %w", err)
	}
	return storage.Draft{
		ID:        d.ID,
		EntryJSON: string(entry),
		StepsJSON: string(stepsJSON),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
		ExpiresAt: d.ExpiresAt,
	}, nil
}

func fromStorage(sd storage.Draft) (Draft, error) {
	d := Draft{
		ID:        sd.ID,
		CreatedAt: sd.CreatedAt,
		UpdatedAt: sd.UpdatedAt,
		ExpiresAt: sd.ExpiresAt,
	}
	if err := json.Unmarshal([]byte(sd.EntryJSON), &d.Entry); err != nil {
		return Draft{}, fmt.Errorf("decoding draft entry: %w", err)
	}
	if err := json.Unmarshal([]byte(sd.StepsJSON), &d.CompletedSteps); err != nil {
		return Draft{}, fmt.Errorf("decoding draft steps: %w", err)
	}
	return d, nil
}
