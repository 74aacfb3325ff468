package checkin

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/dermind/dermind/internal/form"
	"github.com/dermind/dermind/internal/insight"
	"github.com/dermind/dermind/internal/logentry"
	"github.com/dermind/dermind/internal/storage"
)

type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func setup(t *testing.T) (*Wizard, *storage.Store, *mockClock) {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	clock := &mockClock{now: time.Date(2026, 10, 17, 20, 30, 0, 0, time.UTC)}
	return NewWizardWithClock(s, clock, 24*time.Hour), s, clock
}

func intPtr(i int) *int { return &i }

var validBarrier = map[string]any{
	"moisturized": "No",
	"newProduct":  "No",
	"sweatWash":   "Didn't sweat",
	"sunscreen":   "N/A",
}

var validLifestyle = map[string]any{
	"sleepHours":   "5-6",
	"sleepQuality": "restless",
	"stressLevel":  float64(8),
	"caffeine":     "high",
	"exercise":     "none",
}

func submit(t *testing.T, w *Wizard, step Step, fields map[string]any) Result {
	t.Helper()
	res, err := w.Submit(context.Background(), step, fields)
	if err != nil {
		t.Fatalf("Submit(%s): %v", step, err)
	}
	return res
}

func TestStart_CreatesThenResumes(t *testing.T) {
	w, _, _ := setup(t)
	ctx := context.Background()

	d1, resumed, err := w.Start(ctx)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if resumed {
		t.Error("first Start should not resume")
	}
	if d1.NextStep() != StepStatus {
		t.Errorf("NextStep = %q, want status", d1.NextStep())
	}

	submit(t, w, StepStatus, map[string]any{"itchLevel": 3})

	d2, resumed, err := w.Start(ctx)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !resumed || d2.ID != d1.ID {
		t.Errorf("expected resume of %s, got %s (resumed=%v)", d1.ID, d2.ID, resumed)
	}
	if d2.NextStep() != StepBarrier {
		t.Errorf("NextStep = %q, want barrier", d2.NextStep())
	}
}

func TestStart_ExpiredDraftIsReplaced(t *testing.T) {
	w, _, clock := setup(t)
	ctx := context.Background()

	submit(t, w, StepStatus, map[string]any{"itchLevel": 9})
	old, _ := w.Draft(ctx)

	clock.Advance(25 * time.Hour)

	d, resumed, err := w.Start(ctx)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if resumed || d.ID == old.ID {
		t.Error("expired draft must not be resumed")
	}
	if d.Entry.ItchLevel != nil {
		t.Errorf("stale fields resurfaced: %+v", d.Entry)
	}
}

func TestDraft_ExpiredIsDiscarded(t *testing.T) {
	w, s, clock := setup(t)
	ctx := context.Background()

	submit(t, w, StepStatus, map[string]any{"itchLevel": 2})
	clock.Advance(24 * time.Hour)

	if _, err := w.Draft(ctx); !errors.Is(err, ErrNoDraft) {
		t.Fatalf("Draft = %v, want ErrNoDraft", err)
	}
	if _, err := s.GetDraft(); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expired draft still stored: %v", err)
	}
}

func TestSubmit_OutOfOrder(t *testing.T) {
	w, _, _ := setup(t)
	ctx := context.Background()

	if _, err := w.Submit(ctx, StepBarrier, validBarrier); !errors.Is(err, ErrNoDraft) {
		t.Errorf("barrier without draft = %v, want ErrNoDraft", err)
	}

	submit(t, w, StepStatus, map[string]any{})

	if _, err := w.Submit(ctx, StepLifestyle, validLifestyle); !errors.Is(err, ErrStepOutOfOrder) {
		t.Errorf("lifestyle before barrier = %v, want ErrStepOutOfOrder", err)
	}
}

func TestSubmit_ValidationBlocks(t *testing.T) {
	w, s, _ := setup(t)
	ctx := context.Background()
	submit(t, w, StepStatus, map[string]any{"itchLevel": 4})

	_, err := w.Submit(ctx, StepBarrier, map[string]any{"moisturized": "Yes", "newProduct": "Yes"})
	var verr *form.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	want := []string{"productType", "sweatWash", "sunscreen"}
	if diff := cmp.Diff(want, verr.Missing); diff != "" {
		t.Errorf("missing mismatch (-want +got):\n%s", diff)
	}

	d, _ := s.GetDraft()
	if strings.Contains(d.EntryJSON, "moisturized") {
		t.Errorf("rejected fields were persisted: %s", d.EntryJSON)
	}
}

func TestSubmit_UnknownStep(t *testing.T) {
	w, _, _ := setup(t)
	if _, err := w.Submit(context.Background(), Step("diet"), nil); !errors.Is(err, ErrUnknownStep) {
		t.Errorf("err = %v, want ErrUnknownStep", err)
	}
}

func TestSubmit_ResubmitOverwrites(t *testing.T) {
	w, _, _ := setup(t)
	submit(t, w, StepStatus, map[string]any{"itchLevel": 4, "flareToday": "no"})
	res := submit(t, w, StepStatus, map[string]any{"itchLevel": 6})

	if res.Draft.Entry.Itch() != 6 {
		t.Errorf("itch = %d, want 6", res.Draft.Entry.Itch())
	}
	if res.Draft.Entry.FlareToday != "no" {
		t.Errorf("flareToday lost on resubmit: %q", res.Draft.Entry.FlareToday)
	}
	if len(res.Draft.CompletedSteps) != 1 {
		t.Errorf("CompletedSteps = %v", res.Draft.CompletedSteps)
	}
}

// TestFullPass walks all five steps and checks the finalized record holds the
// union of every step's fields.
func TestFullPass(t *testing.T) {
	w, s, _ := setup(t)
	ctx := context.Background()

	if _, err := s.SetBaselinePhoto("data:image/jpeg;base64,aGVsbG8="); err != nil {
		t.Fatal(err)
	}
	photoRef, _ := s.BaselinePhotoRef()

	res := submit(t, w, StepStatus, map[string]any{"itchLevel": 8})
	if res.Next != StepBarrier {
		t.Errorf("Next = %q", res.Next)
	}
	submit(t, w, StepBarrier, validBarrier)
	submit(t, w, StepLifestyle, validLifestyle)
	submit(t, w, StepTriggers, map[string]any{"foodTriggers": []any{"Dairy"}})
	res = submit(t, w, StepEmotion, map[string]any{"confidence": "Low"})

	if res.Record == nil || res.Insight == nil {
		t.Fatal("emotion step should finalize")
	}

	wantEntry := logentry.Entry{
		ItchLevel:    intPtr(8),
		Moisturized:  "No",
		NewProduct:   "No",
		SweatWash:    "Didn't sweat",
		Sunscreen:    "N/A",
		SleepHours:   "5-6",
		SleepQuality: "restless",
		StressLevel:  intPtr(8),
		Caffeine:     "high",
		Exercise:     "none",
		FoodTriggers: []string{"Dairy"},
		Confidence:   "Low",
	}
	if diff := cmp.Diff(wantEntry, res.Record.Entry); diff != "" {
		t.Errorf("record entry mismatch (-want +got):\n%s", diff)
	}
	if res.Record.Date != "2026-10-17" {
		t.Errorf("Date = %q", res.Record.Date)
	}
	if res.Record.PhotoRef != photoRef {
		t.Errorf("PhotoRef = %q, want %q", res.Record.PhotoRef, photoRef)
	}

	if res.Insight.Score < 8 || res.Insight.Band != insight.BandHigh {
		t.Errorf("insight = %+v, want high band score >= 8", res.Insight)
	}
	if res.Insight.Tip != insight.TipMoisturizer {
		t.Errorf("Tip = %q", res.Insight.Tip)
	}

	if _, err := w.Draft(ctx); !errors.Is(err, ErrNoDraft) {
		t.Errorf("draft should be gone after finalize, got %v", err)
	}
	records, _ := s.ListRecords()
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}

	// A second emotion submission has nothing left to finalize.
	if _, err := w.Submit(ctx, StepEmotion, map[string]any{"confidence": "Good"}); !errors.Is(err, ErrNoDraft) {
		t.Errorf("second finalize = %v, want ErrNoDraft", err)
	}
	records, _ = s.ListRecords()
	if len(records) != 1 {
		t.Errorf("records = %d after duplicate finalize, want 1", len(records))
	}
}

func TestAbandon(t *testing.T) {
	w, _, _ := setup(t)
	ctx := context.Background()

	submit(t, w, StepStatus, map[string]any{"itchLevel": 1})
	if err := w.Abandon(ctx); err != nil {
		t.Fatalf("Abandon: %v", err)
	}
	if _, err := w.Draft(ctx); !errors.Is(err, ErrNoDraft) {
		t.Errorf("Draft after abandon = %v, want ErrNoDraft", err)
	}
	// Abandoning twice is harmless.
	if err := w.Abandon(ctx); err != nil {
		t.Errorf("second Abandon: %v", err)
	}
}

func TestSchemas(t *testing.T) {
	all := Schemas()
	if len(all) != len(Order) {
		t.Fatalf("Schemas = %d, want %d", len(all), len(Order))
	}
	for i, s := range all {
		if s.Step != string(Order[i]) {
			t.Errorf("schema %d = %q, want %q", i, s.Step, Order[i])
		}
	}
	if _, err := ParseStep("lifestyle"); err != nil {
		t.Errorf("ParseStep(lifestyle): %v", err)
	}
	if _, err := ParseStep("nope"); !errors.Is(err, ErrUnknownStep) {
		t.Errorf("ParseStep(nope) = %v", err)
	}
	if Next(StepEmotion) != "" {
		t.Error("nothing follows emotion")
	}
}

func TestSubmit_ItchDefaultsToSliderStart(t *testing.T) {
	w, _, _ := setup(t)

	res := submit(t, w, StepStatus, map[string]any{"flareToday": "no"})
	if res.Draft.Entry.ItchLevel == nil || *res.Draft.Entry.ItchLevel != defaultItch {
		t.Errorf("ItchLevel = %v, want %d", res.Draft.Entry.ItchLevel, defaultItch)
	}

	res = submit(t, w, StepStatus, map[string]any{"itchLevel": 0})
	if res.Draft.Entry.ItchLevel == nil || *res.Draft.Entry.ItchLevel != 0 {
		t.Errorf("explicit 0 overridden: ItchLevel = %v", res.Draft.Entry.ItchLevel)
	}
}
