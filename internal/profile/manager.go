package profile

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ProfileStore defines the storage operations the Manager needs.
// Implemented by storage.Store.
type ProfileStore interface {
	SetProfileKey(key, value string) error
	SetProfileKeys(values map[string]string) error
	GetAllProfileKeys() (map[string]string, error)
	DeleteProfileKeys(keys ...string) error
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Manager provides cached, structured access to the user profile stored in SQLite.
type Manager struct {
	store ProfileStore
	clock Clock
	ttl   time.Duration

	mu       sync.RWMutex
	cached   *Profile
	cachedAt time.Time
}

// NewManager creates a Manager with a 60-second cache TTL.
func NewManager(store ProfileStore) *Manager {
	return &Manager{
		store: store,
		clock: realClock{},
		ttl:   60 * time.Second,
	}
}

// NewManagerWithClock creates a Manager with a custom clock (for testing).
func NewManagerWithClock(store ProfileStore, clock Clock, ttl time.Duration) *Manager {
	return &Manager{
		store: store,
		clock: clock,
		ttl:   ttl,
	}
}

// GetProfile reads all profile keys from storage (or cache) and assembles
// a structured Profile. Returns a zero-value Profile on empty store.
func (m *Manager) GetProfile() (Profile, error) {
	// Fast path: read lock for cache hit.
	m.mu.RLock()
	if m.cached != nil && m.clock.Now().Before(m.cachedAt.Add(m.ttl)) {
		p := deepCopyProfile(m.cached)
		m.mu.RUnlock()
		return p, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock.
	if m.cached != nil && m.clock.Now().Before(m.cachedAt.Add(m.ttl)) {
		return deepCopyProfile(m.cached), nil
	}

	keys, err := m.store.GetAllProfileKeys()
	if err != nil {
		return Profile{}, fmt.Errorf("loading profile keys: %w", err)
	}

	p := buildProfile(keys)
	m.cached = &p
	m.cachedAt = m.clock.Now()
	return deepCopyProfile(&p), nil
}

// SetField persists a profile key and invalidates the cache.
func (m *Manager) SetField(key string, value any) error {
	str, err := encodeValue(value)
	if err != nil {
		return fmt.Errorf("encoding value for key %q: %w", key, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.SetProfileKey(key, str); err != nil {
		return fmt.Errorf("setting profile key %q: %w", key, err)
	}

	m.cached = nil
	return nil
}

// SetFields persists several keys in one write and invalidates the cache once.
func (m *Manager) SetFields(values map[string]any) error {
	encoded := make(map[string]string, len(values))
	for k, v := range values {
		str, err := encodeValue(v)
		if err != nil {
			return fmt.Errorf("encoding value for key %q: %w", k, err)
		}
		encoded[k] = str
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.SetProfileKeys(encoded); err != nil {
		return fmt.Errorf("setting profile keys: %w", err)
	}

	m.cached = nil
	return nil
}

// ClearFields deletes the given keys and invalidates the cache.
func (m *Manager) ClearFields(keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.DeleteProfileKeys(keys...); err != nil {
		return fmt.Errorf("clearing profile keys: %w", err)
	}

	m.cached = nil
	return nil
}

// Invalidate drops the cached profile, e.g. after a store-wide wipe.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	m.cached = nil
	m.mu.Unlock()
}

// Summary returns the baseline summary lines shown once onboarding is done.
func (m *Manager) Summary() ([]SummaryLine, error) {
	p, err := m.GetProfile()
	if err != nil {
		return nil, fmt.Errorf("getting profile for summary: %w", err)
	}
	return summarize(p), nil
}

func summarize(p Profile) []SummaryLine {
	lines := []SummaryLine{
		{Label: "Name", Value: orDefault(p.DisplayName, "Not set")},
		{Label: "Managing", Value: joinOrDefault(p.Conditions, "Not specified")},
		{Label: "Skin tone", Value: orDefault(p.SkinTone, "Not selected")},
		{Label: "Location", Value: orDefault(p.Location, "Unknown")},
		{Label: "Profile", Value: orDefault(p.UserType, "Not specified")},
	}
	if p.UserType == "child" {
		lines = append(lines, SummaryLine{Label: "Age group", Value: orDefault(p.AgeGroup, "Not specified")})
	} else {
		lines = append(lines, SummaryLine{Label: "Gender", Value: orDefault(p.Gender, "Not specified")})
	}
	lines = append(lines, SummaryLine{Label: "Sensitivities", Value: joinOrDefault(p.Triggers, "None reported")})

	if p.HormonalBreakouts != "" || p.Menstruation != "" || len(p.Diagnoses) > 0 {
		lines = append(lines,
			SummaryLine{Label: "Hormonal breakouts", Value: orDefault(p.HormonalBreakouts, "Not specified")},
			SummaryLine{Label: "Menstruation", Value: orDefault(p.Menstruation, "Not specified")},
			SummaryLine{Label: "Diagnoses", Value: joinOrDefault(p.Diagnoses, "None")},
		)
	}
	return lines
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func joinOrDefault(vs []string, def string) string {
	if len(vs) == 0 {
		return def
	}
	return strings.Join(vs, ", ")
}

// encodeValue stores strings raw, bools as "true"/"false" and anything else as JSON.
func encodeValue(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case bool:
		return strconv.FormatBool(v), nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}

func deepCopyProfile(p *Profile) Profile {
	if p == nil {
		return Profile{}
	}
	cp := *p
	cp.Conditions = copyStrings(p.Conditions)
	cp.Triggers = copyStrings(p.Triggers)
	cp.Diagnoses = copyStrings(p.Diagnoses)
	return cp
}

func copyStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

// buildProfile assembles a Profile from flat key-value pairs.
// List values are stored as JSON arrays, flags as "true"/"false".
// Missing lists become empty lists.
func buildProfile(keys map[string]string) Profile {
	p := Profile{
		DisplayName:       keys[KeyDisplayName],
		UserType:          keys[KeyUserType],
		AgeGroup:          keys[KeyAgeGroup],
		Gender:            keys[KeyGender],
		SkinTone:          keys[KeySkinTone],
		Location:          keys[KeyLocation],
		HormonalBreakouts: keys[KeyHormonalBreakouts],
		Menstruation:      keys[KeyMenstruation],
		Conditions:        []string{},
		Triggers:          []string{},
	}

	unmarshalProfileKey(keys, KeyConditions, &p.Conditions)
	unmarshalProfileKey(keys, KeyTriggers, &p.Triggers)
	unmarshalProfileKey(keys, KeyDiagnoses, &p.Diagnoses)

	p.ConsentMedical = parseFlag(keys, KeyConsentMedical)
	p.ConsentAI = parseFlag(keys, KeyConsentAI)
	p.OnboardingComplete = parseFlag(keys, KeyOnboardingComplete)

	return p
}

// unmarshalProfileKey unmarshals a JSON value from keys into target, logging
// a warning if the value is present but malformed.
func unmarshalProfileKey(keys map[string]string, key string, target any) {
	v, ok := keys[key]
	if !ok || v == "" {
		return
	}
	if err := json.Unmarshal([]byte(v), target); err != nil {
		slog.Warn("malformed profile key, skipping", "key", key, "error", err)
	}
}

func parseFlag(keys map[string]string, key string) bool {
	v, ok := keys[key]
	if !ok {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("malformed profile flag, treating as false", "key", key, "value", v)
		return false
	}
	return b
}
