// Package logentry holds the daily log entry shared by the check-in wizard,
// the insight rules and the history view.
package logentry

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dermind/dermind/internal/storage"
)

// Entry is one day's check-in. Fields are grouped by the wizard step that
// writes them. Unset values are omitted when serialized.
type Entry struct {
	// status
	ItchLevel    *int   `json:"itchLevel,omitempty"`
	SleepImpact  string `json:"sleepImpact,omitempty"`
	Inflammation string `json:"inflammation,omitempty"`
	FlareToday   string `json:"flareToday,omitempty"`
	FlareZone    string `json:"flareZone,omitempty"`

	// barrier
	Moisturized string `json:"moisturized,omitempty"`
	NewProduct  string `json:"newProduct,omitempty"`
	ProductType string `json:"productType,omitempty"`
	SweatWash   string `json:"sweatWash,omitempty"`
	Sunscreen   string `json:"sunscreen,omitempty"`

	// lifestyle
	SleepHours   string `json:"sleepHours,omitempty"`
	SleepQuality string `json:"sleepQuality,omitempty"`
	StressLevel  *int   `json:"stressLevel,omitempty"`
	Menstruating string `json:"menstruating,omitempty"`
	Caffeine     string `json:"caffeine,omitempty"`
	Exercise     string `json:"exercise,omitempty"`

	// triggers
	FoodTriggers   []string `json:"foodTriggers,omitempty"`
	ReactedAfter   string   `json:"reactedAfter,omitempty"`
	EnvExposures   []string `json:"envExposures,omitempty"`
	AvoidedHelpful string   `json:"avoidedHelpful,omitempty"`

	// emotion
	Confidence   string `json:"confidence,omitempty"`
	SocialImpact string `json:"socialImpact,omitempty"`
}

// Itch returns the itch level, or 0 when unset.
func (e Entry) Itch() int {
	if e.ItchLevel == nil {
		return 0
	}
	return *e.ItchLevel
}

// Stress returns the stress level, or 0 when unset.
func (e Entry) Stress() int {
	if e.StressLevel == nil {
		return 0
	}
	return *e.StressLevel
}

// HasFoodTrigger reports whether tag is an exact member of FoodTriggers.
func (e Entry) HasFoodTrigger(tag string) bool {
	for _, t := range e.FoodTriggers {
		if t == tag {
			return true
		}
	}
	return false
}

// Merge overlays fields onto e, keyed by their JSON names. Keys present in
// fields replace the current value; all other keys are left alone.
func Merge(e Entry, fields map[string]any) (Entry, error) {
	base, err := toMap(e)
	if err != nil {
		return Entry{}, err
	}
	for k, v := range fields {
		base[k] = v
	}
	data, err := json.Marshal(base)
	if err != nil {
		return Entry{}, fmt.Errorf("encoding merged entry: %w", err)
	}
	var out Entry
	if err := json.Unmarshal(data, &out); err != nil {
		return Entry{}, fmt.Errorf("decoding merged entry: %w", err)
	}
	return out, nil
}

func toMap(e Entry) (map[string]any, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encoding entry: %w", err)
	}
	m := map[string]any{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding entry: %w", err)
	}
	return m, nil
}

// Line is one human-readable row of a record summary.
type Line struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

var lineOrder = []struct {
	key   string
	label string
}{
	{"itchLevel", "Itch level"},
	{"sleepImpact", "Sleep impact"},
	{"inflammation", "Inflammation"},
	{"flareToday", "Flare today"},
	{"flareZone", "Flare zone"},
	{"moisturized", "Moisturized"},
	{"newProduct", "New product"},
	{"productType", "Product type"},
	{"sweatWash", "Sweat wash"},
	{"sunscreen", "Sunscreen"},
	{"sleepHours", "Sleep hours"},
	{"sleepQuality", "Sleep quality"},
	{"stressLevel", "Stress level"},
	{"menstruating", "Menstruating"},
	{"caffeine", "Caffeine"},
	{"exercise", "Exercise"},
	{"foodTriggers", "Food triggers"},
	{"reactedAfter", "Reacted after"},
	{"envExposures", "Env exposures"},
	{"avoidedHelpful", "Avoided helpful"},
	{"confidence", "Confidence"},
	{"socialImpact", "Social impact"},
}

// Lines projects the set fields of e into ordered label/value rows.
// Lists are joined with ", ".
func (e Entry) Lines() []Line {
	m, err := toMap(e)
	if err != nil {
		return nil
	}
	var lines []Line
	for _, f := range lineOrder {
		v, ok := m[f.key]
		if !ok {
			continue
		}
		lines = append(lines, Line{Label: f.label, Value: formatValue(v)})
	}
	return lines
}

func formatValue(v any) string {
	switch val := v.(type) {
	case []any:
		parts := make([]string, 0, len(val))
		for _, p := range val {
			parts = append(parts, fmt.Sprint(p))
		}
		return strings.Join(parts, ", ")
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}

// Record is a finalized entry in the history.
type Record struct {
	ID        string    `json:"id"`
	Seq       int64     `json:"seq"`
	Date      string    `json:"date"` // local calendar day, "2006-01-02"
	CreatedAt time.Time `json:"createdAt"`
	Entry     Entry     `json:"entry"`
	PhotoRef  string    `json:"baselinePhotoRef,omitempty"`
}

// DateLayout is the format of Record.Date.
const DateLayout = "2006-01-02"

// FromStorage decodes a stored record.
func FromStorage(r storage.Record) (Record, error) {
	var e Entry
	if err := json.Unmarshal([]byte(r.EntryJSON), &e); err != nil {
		return Record{}, fmt.Errorf("decoding record %s: %w", r.ID, err)
	}
	return Record{
		ID:        r.ID,
		Seq:       r.Seq,
		Date:      r.Date,
		CreatedAt: r.CreatedAt,
		Entry:     e,
		PhotoRef:  r.PhotoRef,
	}, nil
}

// FromStorageList decodes a list of stored records, preserving order.
func FromStorageList(rs []storage.Record) ([]Record, error) {
	out := make([]Record, 0, len(rs))
	for _, r := range rs {
		rec, err := FromStorage(r)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// ToStorage encodes rec for the store.
func ToStorage(rec Record) (storage.Record, error) {
	data, err := json.Marshal(rec.Entry)
	if err != nil {
		return storage.Record{}, fmt.Errorf("encoding entry: %w", err)
	}
	return storage.Record{
		Seq:       rec.Seq,
		ID:        rec.ID,
		Date:      rec.Date,
		CreatedAt: rec.CreatedAt,
		EntryJSON: string(data),
		PhotoRef:  rec.PhotoRef,
	}, nil
}
