package settings

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dermind/dermind/internal/profile"
	"github.com/dermind/dermind/internal/storage"
)

const stateKey = "onboarding.state"

func setup(t *testing.T) (*Service, *storage.Store, *profile.Manager) {
	t.Helper()
	st, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	mgr := profile.NewManager(st)
	return NewService(mgr, st, stateKey), st, mgr
}

func seedAll(t *testing.T, st *storage.Store, mgr *profile.Manager) {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Second)
	if err := mgr.SetFields(map[string]any{
		profile.KeyDisplayName: "Sana",
		profile.KeyLocation:    "Lahore",
		profile.KeyConditions:  []string{"Eczema"},
	}); err != nil {
		t.Fatal(err)
	}
	st.SetState(stateKey, `{"step":"consent"}`)
	st.SaveDraft(storage.Draft{ID: "d1", CreatedAt: now, UpdatedAt: now, ExpiresAt: now.Add(time.Hour)})
	st.AppendRecord(storage.Record{ID: "r1", Date: "2026-10-17", CreatedAt: now, EntryJSON: "{}"})
	st.SetBaselinePhoto("data:image/png;base64,aGVsbG8=")
}

func TestSetDisplayName(t *testing.T) {
	svc, _, mgr := setup(t)
	ctx := context.Background()

	got, err := svc.SetDisplayName(ctx, "  Sana  ")
	if err != nil {
		t.Fatalf("SetDisplayName: %v", err)
	}
	if got != "Sana" {
		t.Errorf("returned %q, want trimmed", got)
	}
	p, _ := mgr.GetProfile()
	if p.DisplayName != "Sana" {
		t.Errorf("DisplayName = %q", p.DisplayName)
	}

	if _, err := svc.SetDisplayName(ctx, "   "); !errors.Is(err, ErrEmptyName) {
		t.Errorf("blank name = %v, want ErrEmptyName", err)
	}
	if ErrEmptyName.Error() != "Please enter a valid name." {
		t.Errorf("message = %q", ErrEmptyName.Error())
	}
	p, _ = mgr.GetProfile()
	if p.DisplayName != "Sana" {
		t.Errorf("blank name must not overwrite, got %q", p.DisplayName)
	}
}

func TestReset_Unconfirmed(t *testing.T) {
	svc, st, mgr := setup(t)
	seedAll(t, st, mgr)

	for _, kind := range []ResetKind{ResetOnboarding, ResetAll} {
		if err := svc.Reset(context.Background(), kind, false); !errors.Is(err, ErrNotConfirmed) {
			t.Errorf("Reset(%s, false) = %v, want ErrNotConfirmed", kind, err)
		}
	}

	p, _ := mgr.GetProfile()
	if p.DisplayName != "Sana" {
		t.Error("unconfirmed reset must not change the profile")
	}
	records, _ := st.ListRecords()
	if len(records) != 1 {
		t.Error("unconfirmed reset must not change history")
	}
}

func TestReset_Onboarding(t *testing.T) {
	svc, st, mgr := setup(t)
	seedAll(t, st, mgr)
	mgr.GetProfile() // warm the cache

	if err := svc.Reset(context.Background(), ResetOnboarding, true); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	p, _ := mgr.GetProfile()
	if p.DisplayName != "" || p.Location != "" || len(p.Conditions) != 0 {
		t.Errorf("identity not cleared: %+v", p)
	}
	if _, err := st.GetState(stateKey); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("onboarding state remains: %v", err)
	}
	records, _ := st.ListRecords()
	if len(records) != 1 {
		t.Errorf("history must survive an onboarding reset, got %d records", len(records))
	}
	if _, err := st.BaselinePhoto(); err != nil {
		t.Errorf("photo must survive an onboarding reset: %v", err)
	}
}

func TestReset_All(t *testing.T) {
	svc, st, mgr := setup(t)
	seedAll(t, st, mgr)
	mgr.GetProfile() // warm the cache

	if err := svc.Reset(context.Background(), ResetAll, true); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	p, _ := mgr.GetProfile()
	if p.DisplayName != "" {
		t.Errorf("cached profile survived wipe: %+v", p)
	}
	records, _ := st.ListRecords()
	if len(records) != 0 {
		t.Errorf("records remain: %d", len(records))
	}
	if _, err := st.GetDraft(); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("draft remains: %v", err)
	}
	if _, err := st.BaselinePhoto(); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("photo remains: %v", err)
	}
}

func TestParseResetKind(t *testing.T) {
	if k, err := ParseResetKind("all"); err != nil || k != ResetAll {
		t.Errorf("ParseResetKind(all) = %q, %v", k, err)
	}
	if _, err := ParseResetKind("everything"); !errors.Is(err, ErrUnknownReset) {
		t.Errorf("err = %v, want ErrUnknownReset", err)
	}
}

func TestConfirmationText(t *testing.T) {
	if !strings.Contains(ConfirmationText(ResetOnboarding), "Introduction page") {
		t.Errorf("onboarding prompt = %q", ConfirmationText(ResetOnboarding))
	}
	if !strings.HasPrefix(ConfirmationText(ResetAll), "⚠️ DANGER") {
		t.Errorf("all prompt = %q", ConfirmationText(ResetAll))
	}
	if ConfirmationText("other") != "" {
		t.Error("unknown kind should have no prompt")
	}
}
