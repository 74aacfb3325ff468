package profile

import (
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// --- Mock store ---

type mockStore struct {
	mu   sync.Mutex
	data map[string]string

	getAllCalls int
}

func newMockStore() *mockStore {
	return &mockStore{data: make(map[string]string)}
}

func (m *mockStore) SetProfileKey(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *mockStore) SetProfileKeys(values map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range values {
		m.data[k] = v
	}
	return nil
}

func (m *mockStore) GetAllProfileKeys() (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getAllCalls++
	cp := make(map[string]string, len(m.data))
	for k, v := range m.data {
		cp[k] = v
	}
	return cp, nil
}

func (m *mockStore) DeleteProfileKeys(keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

// --- Mock clock ---

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

// --- Tests ---

func TestGetProfile_Empty(t *testing.T) {
	mgr := NewManager(newMockStore())

	p, err := mgr.GetProfile()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.DisplayName != "" {
		t.Errorf("expected empty name, got %q", p.DisplayName)
	}
	if p.Conditions == nil || len(p.Conditions) != 0 {
		t.Errorf("expected empty (non-nil) conditions, got %#v", p.Conditions)
	}
	if p.OnboardingComplete {
		t.Error("expected onboarding incomplete")
	}
}

func TestSetFields_RoundTrip(t *testing.T) {
	store := newMockStore()
	mgr := NewManager(store)

	err := mgr.SetFields(map[string]any{
		KeyDisplayName:        "Sana",
		KeyUserType:           "adult",
		KeyGender:             "female",
		KeySkinTone:           "#c68642",
		KeyLocation:           "Islamabad",
		KeyConditions:         []string{"Acne", "Other: rosacea"},
		KeyConsentMedical:     true,
		KeyConsentAI:          true,
		KeyDiagnoses:          []string{"PCOS"},
		KeyOnboardingComplete: true,
	})
	if err != nil {
		t.Fatalf("SetFields error: %v", err)
	}

	if store.data[KeyConsentAI] != "true" {
		t.Errorf("bool stored as %q, want %q", store.data[KeyConsentAI], "true")
	}
	if store.data[KeyConditions] != `["Acne","Other: rosacea"]` {
		t.Errorf("list stored as %q", store.data[KeyConditions])
	}

	got, err := mgr.GetProfile()
	if err != nil {
		t.Fatalf("GetProfile error: %v", err)
	}
	want := Profile{
		DisplayName:        "Sana",
		UserType:           "adult",
		Gender:             "female",
		SkinTone:           "#c68642",
		Location:           "Islamabad",
		Conditions:         []string{"Acne", "Other: rosacea"},
		Triggers:           []string{},
		ConsentMedical:     true,
		ConsentAI:          true,
		Diagnoses:          []string{"PCOS"},
		OnboardingComplete: true,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("profile mismatch (-want +got):\n%s", diff)
	}
}

func TestGetProfile_MalformedKeySkipped(t *testing.T) {
	store := newMockStore()
	store.data[KeyConditions] = "not json"
	store.data[KeyConsentAI] = "maybe"
	store.data[KeyDisplayName] = "Sana"

	p, err := NewManager(store).GetProfile()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Conditions) != 0 {
		t.Errorf("expected malformed conditions to be skipped, got %v", p.Conditions)
	}
	if p.ConsentAI {
		t.Error("expected malformed flag to read as false")
	}
	if p.DisplayName != "Sana" {
		t.Errorf("DisplayName = %q", p.DisplayName)
	}
}

func TestGetProfile_ReturnsCopy(t *testing.T) {
	mgr := NewManager(newMockStore())
	mgr.SetField(KeyConditions, []string{"Eczema"})

	p, _ := mgr.GetProfile()
	p.Conditions[0] = "mutated"

	again, _ := mgr.GetProfile()
	if again.Conditions[0] != "Eczema" {
		t.Errorf("cached profile was mutated: %v", again.Conditions)
	}
}

func TestClearFields(t *testing.T) {
	mgr := NewManager(newMockStore())
	mgr.SetField(KeyDisplayName, "Sana")
	mgr.SetField(KeyLocation, "Lahore")

	if _, err := mgr.GetProfile(); err != nil {
		t.Fatal(err)
	}
	if err := mgr.ClearFields(KeyDisplayName); err != nil {
		t.Fatalf("ClearFields: %v", err)
	}

	p, _ := mgr.GetProfile()
	if p.DisplayName != "" {
		t.Errorf("DisplayName = %q after clear", p.DisplayName)
	}
	if p.Location != "Lahore" {
		t.Errorf("Location = %q, should survive", p.Location)
	}
}

func TestSummary_Defaults(t *testing.T) {
	lines, err := NewManager(newMockStore()).Summary()
	if err != nil {
		t.Fatalf("Summary error: %v", err)
	}

	want := []SummaryLine{
		{Label: "Name", Value: "Not set"},
		{Label: "Managing", Value: "Not specified"},
		{Label: "Skin tone", Value: "Not selected"},
		{Label: "Location", Value: "Unknown"},
		{Label: "Profile", Value: "Not specified"},
		{Label: "Gender", Value: "Not specified"},
		{Label: "Sensitivities", Value: "None reported"},
	}
	if diff := cmp.Diff(want, lines); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
}

func TestSummary_ChildWithMedical(t *testing.T) {
	mgr := NewManager(newMockStore())
	mgr.SetFields(map[string]any{
		KeyUserType:   "child",
		KeyAgeGroup:   "4-7",
		KeyConditions: []string{"Eczema", "Psoriasis"},
		KeyDiagnoses:  []string{"None"},
	})

	lines, err := mgr.Summary()
	if err != nil {
		t.Fatal(err)
	}
	byLabel := map[string]string{}
	for _, l := range lines {
		byLabel[l.Label] = l.Value
	}
	if byLabel["Age group"] != "4-7" {
		t.Errorf("Age group = %q", byLabel["Age group"])
	}
	if _, ok := byLabel["Gender"]; ok {
		t.Error("child summary should not include gender")
	}
	if byLabel["Managing"] != "Eczema, Psoriasis" {
		t.Errorf("Managing = %q", byLabel["Managing"])
	}
	if byLabel["Diagnoses"] != "None" {
		t.Errorf("Diagnoses = %q", byLabel["Diagnoses"])
	}
}

func TestCacheTTL(t *testing.T) {
	store := newMockStore()
	clock := &mockClock{now: time.Now()}
	mgr := NewManagerWithClock(store, clock, 60*time.Second)

	mgr.SetField(KeyDisplayName, "Sana")

	mgr.GetProfile()
	mgr.GetProfile()

	store.mu.Lock()
	calls := store.getAllCalls
	store.mu.Unlock()

	if calls != 1 {
		t.Errorf("expected 1 store call (cache hit on second), got %d", calls)
	}
}

func TestCacheInvalidation(t *testing.T) {
	store := newMockStore()
	clock := &mockClock{now: time.Now()}
	ttl := 60 * time.Second
	mgr := NewManagerWithClock(store, clock, ttl)

	mgr.SetField(KeyDisplayName, "Sana")

	mgr.GetProfile()

	// Advance past TTL
	clock.Advance(ttl + time.Second)

	mgr.GetProfile()

	mgr.Invalidate()
	mgr.GetProfile()

	store.mu.Lock()
	calls := store.getAllCalls
	store.mu.Unlock()

	if calls != 3 {
		t.Errorf("expected 3 store calls (expired, then invalidated), got %d", calls)
	}
}
