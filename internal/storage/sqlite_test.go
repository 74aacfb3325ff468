package storage

import (
	"errors"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestMigrationsIdempotent runs Open twice on the same database and verifies
// the schema_version count stays correct (migration not re-applied).
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

func TestMigrationsOrdered(t *testing.T) {
	s := openTestStore(t)

	versions, err := s.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("expected 2 applied migrations, got %v", versions)
	}
	for i := 1; i < len(versions); i++ {
		if versions[i] <= versions[i-1] {
			t.Errorf("migrations not in ascending order: %v", versions)
			break
		}
	}
}

func TestProfileKeyRoundTrip(t *testing.T) {
	s := openTestStore(t)

	if err := s.SetProfileKey("name", "Ayesha"); err != nil {
		t.Fatalf("SetProfileKey: %v", err)
	}
	if err := s.SetProfileKey("name", "Sana"); err != nil {
		t.Fatalf("SetProfileKey overwrite: %v", err)
	}

	got, err := s.GetProfileKey("name")
	if err != nil {
		t.Fatalf("GetProfileKey: %v", err)
	}
	if got != "Sana" {
		t.Errorf("name = %q, want %q", got, "Sana")
	}

	if _, err := s.GetProfileKey("missing"); err != ErrNotFound {
		t.Errorf("missing key error = %v, want ErrNotFound", err)
	}
}

func TestSetAndDeleteProfileKeys(t *testing.T) {
	s := openTestStore(t)

	err := s.SetProfileKeys(map[string]string{
		"name":       "Sana",
		"skinTone":   "#c68642",
		"conditions": `["Eczema"]`,
	})
	if err != nil {
		t.Fatalf("SetProfileKeys: %v", err)
	}

	if err := s.DeleteProfileKeys("name", "not-there"); err != nil {
		t.Fatalf("DeleteProfileKeys: %v", err)
	}

	all, err := s.GetAllProfileKeys()
	if err != nil {
		t.Fatalf("GetAllProfileKeys: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 keys, got %v", all)
	}
	if _, ok := all["name"]; ok {
		t.Error("name should have been deleted")
	}
	if all["conditions"] != `["Eczema"]` {
		t.Errorf("conditions = %q", all["conditions"])
	}
}

func TestStateRoundTrip(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.GetState("onboarding.state"); err != ErrNotFound {
		t.Fatalf("GetState on empty = %v, want ErrNotFound", err)
	}
	if err := s.SetState("onboarding.state", `{"step":"consent"}`); err != nil {
		t.Fatalf("SetState: %v", err)
	}
	got, err := s.GetState("onboarding.state")
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if got != `{"step":"consent"}` {
		t.Errorf("state = %q", got)
	}
	if err := s.DeleteState("onboarding.state"); err != nil {
		t.Fatalf("DeleteState: %v", err)
	}
	if _, err := s.GetState("onboarding.state"); err != ErrNotFound {
		t.Errorf("after delete = %v, want ErrNotFound", err)
	}
}

func newDraft(id string, now time.Time, ttl time.Duration) Draft {
	return Draft{
		ID:        id,
		EntryJSON: "{}",
		StepsJSON: "[]",
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

func TestDraftSaveGetDelete(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)

	if _, err := s.GetDraft(); err != ErrNotFound {
		t.Fatalf("GetDraft on empty = %v, want ErrNotFound", err)
	}

	d := newDraft("d1", now, time.Hour)
	d.EntryJSON = `{"itchLevel":4}`
	if err := s.SaveDraft(d); err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}

	got, err := s.GetDraft()
	if err != nil {
		t.Fatalf("GetDraft: %v", err)
	}
	if got.ID != "d1" || got.EntryJSON != `{"itchLevel":4}` {
		t.Errorf("draft = %+v", got)
	}
	if !got.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, now.Add(time.Hour))
	}

	// A second save replaces the single slot.
	if err := s.SaveDraft(newDraft("d2", now, time.Hour)); err != nil {
		t.Fatalf("SaveDraft replace: %v", err)
	}
	got, _ = s.GetDraft()
	if got.ID != "d2" {
		t.Errorf("draft ID = %q, want d2", got.ID)
	}

	if err := s.DeleteDraft(); err != nil {
		t.Fatalf("DeleteDraft: %v", err)
	}
	if _, err := s.GetDraft(); err != ErrNotFound {
		t.Errorf("after delete = %v, want ErrNotFound", err)
	}
}

func TestUpdateDraft(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)

	_, err := s.UpdateDraft(func(cur Draft, found bool) (Draft, error) {
		if found {
			t.Error("expected no draft")
		}
		return newDraft("d1", now, time.Hour), nil
	})
	if err != nil {
		t.Fatalf("UpdateDraft create: %v", err)
	}

	_, err = s.UpdateDraft(func(cur Draft, found bool) (Draft, error) {
		if !found || cur.ID != "d1" {
			t.Errorf("found = %v, cur.ID = %q", found, cur.ID)
		}
		cur.EntryJSON = `{"moisturized":"No"}`
		return cur, nil
	})
	if err != nil {
		t.Fatalf("UpdateDraft modify: %v", err)
	}

	sentinel := errors.New("boom")
	_, err = s.UpdateDraft(func(cur Draft, found bool) (Draft, error) {
		return Draft{}, sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("UpdateDraft error = %v, want sentinel", err)
	}

	got, err := s.GetDraft()
	if err != nil {
		t.Fatalf("GetDraft: %v", err)
	}
	if got.EntryJSON != `{"moisturized":"No"}` {
		t.Errorf("EntryJSON = %q, failed update must not be persisted", got.EntryJSON)
	}
}

func TestDeleteExpiredDrafts(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)

	if err := s.SaveDraft(newDraft("d1", now.Add(-2*time.Hour), time.Hour)); err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}
	n, err := s.DeleteExpiredDrafts(now)
	if err != nil {
		t.Fatalf("DeleteExpiredDrafts: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}

	if err := s.SaveDraft(newDraft("d2", now, time.Hour)); err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}
	n, err = s.DeleteExpiredDrafts(now)
	if err != nil {
		t.Fatalf("DeleteExpiredDrafts: %v", err)
	}
	if n != 0 {
		t.Errorf("deleted = %d, want 0 for live draft", n)
	}
}

func TestCommitDraftOnce(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)

	if err := s.SaveDraft(newDraft("d1", now, time.Hour)); err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}

	rec := Record{ID: "r1", Date: "2026-10-17", CreatedAt: now, EntryJSON: `{"itchLevel":8}`}
	got, err := s.CommitDraft("d1", rec)
	if err != nil {
		t.Fatalf("CommitDraft: %v", err)
	}
	if got.Seq == 0 {
		t.Error("expected Seq to be assigned")
	}
	if _, err := s.GetDraft(); err != ErrNotFound {
		t.Errorf("draft still present after commit: %v", err)
	}

	rec.ID = "r2"
	if _, err := s.CommitDraft("d1", rec); err != ErrNotFound {
		t.Errorf("second commit = %v, want ErrNotFound", err)
	}

	records, err := s.ListRecords()
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
}

func TestRecordsOrderAndDelete(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)

	for _, id := range []string{"a", "b", "c", "d"} {
		if _, err := s.AppendRecord(Record{ID: id, Date: "2026-10-17", CreatedAt: now, EntryJSON: "{}"}); err != nil {
			t.Fatalf("AppendRecord(%s): %v", id, err)
		}
	}

	if err := s.DeleteRecord("b"); err != nil {
		t.Fatalf("DeleteRecord: %v", err)
	}
	if err := s.DeleteRecord("b"); err != ErrNotFound {
		t.Errorf("second delete = %v, want ErrNotFound", err)
	}

	records, err := s.ListRecords()
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	var ids []string
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	if len(ids) != 3 || ids[0] != "a" || ids[1] != "c" || ids[2] != "d" {
		t.Errorf("ids = %v, want [a c d]", ids)
	}

	recent, err := s.RecentRecords(2)
	if err != nil {
		t.Fatalf("RecentRecords: %v", err)
	}
	if len(recent) != 2 || recent[0].ID != "c" || recent[1].ID != "d" {
		t.Errorf("recent = %+v, want [c d]", recent)
	}

	got, err := s.GetRecord("d")
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if !got.CreatedAt.Equal(now) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, now)
	}
}

func TestBaselinePhoto(t *testing.T) {
	s := openTestStore(t)

	ref, err := s.BaselinePhotoRef()
	if err != nil || ref != "" {
		t.Fatalf("BaselinePhotoRef on empty = %q, %v", ref, err)
	}

	p, err := s.SetBaselinePhoto("data:image/png;base64,aGVsbG8=")
	if err != nil {
		t.Fatalf("SetBaselinePhoto: %v", err)
	}
	if len(p.Ref) != len("photo:")+12 {
		t.Errorf("Ref = %q", p.Ref)
	}

	got, err := s.BaselinePhoto()
	if err != nil {
		t.Fatalf("BaselinePhoto: %v", err)
	}
	if got.Ref != p.Ref || got.DataURL != p.DataURL {
		t.Errorf("photo = %+v, want %+v", got, p)
	}

	if err := s.ClearBaselinePhoto(); err != nil {
		t.Fatalf("ClearBaselinePhoto: %v", err)
	}
	if _, err := s.BaselinePhoto(); err != ErrNotFound {
		t.Errorf("after clear = %v, want ErrNotFound", err)
	}
}

func TestSetBaselinePhoto_Invalid(t *testing.T) {
	s := openTestStore(t)

	for _, u := range []string{
		"",
		"https://example.com/a.png",
		"data:text/plain;base64,aGVsbG8=",
		"data:image/png,aGVsbG8=",
		"data:image/png;base64,%%%",
		"data:image/;base64,aGVsbG8=",
	} {
		if _, err := s.SetBaselinePhoto(u); err != ErrInvalidPhoto {
			t.Errorf("SetBaselinePhoto(%q) = %v, want ErrInvalidPhoto", u, err)
		}
	}
}

func TestWipeAll(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)

	s.SetProfileKey("name", "Sana")
	s.SetState("onboarding.state", "{}")
	s.SaveDraft(newDraft("d1", now, time.Hour))
	s.AppendRecord(Record{ID: "r1", Date: "2026-10-17", CreatedAt: now, EntryJSON: "{}"})
	s.SetBaselinePhoto("data:image/png;base64,aGVsbG8=")

	if err := s.WipeAll(); err != nil {
		t.Fatalf("WipeAll: %v", err)
	}

	keys, _ := s.GetAllProfileKeys()
	if len(keys) != 0 {
		t.Errorf("profile keys remain: %v", keys)
	}
	if _, err := s.GetState("onboarding.state"); err != ErrNotFound {
		t.Errorf("state remains: %v", err)
	}
	if _, err := s.GetDraft(); err != ErrNotFound {
		t.Errorf("draft remains: %v", err)
	}
	records, _ := s.ListRecords()
	if len(records) != 0 {
		t.Errorf("records remain: %d", len(records))
	}
	if _, err := s.BaselinePhoto(); err != ErrNotFound {
		t.Errorf("photo remains: %v", err)
	}
}
