// Package insight derives the flare score, pattern hint and tip shown after
// each check-in. Everything here is a fixed rule table over the entry and the
// recent history; nothing is learned or persisted.
package insight

import (
	"fmt"

	"github.com/dermind/dermind/internal/logentry"
)

// Band buckets a score for display.
type Band string

const (
	BandLow      Band = "low"
	BandModerate Band = "moderate"
	BandHigh     Band = "high"
)

// Insight is the derived view of one record in the context of its history.
type Insight struct {
	Score       int    `json:"score"`
	Band        Band   `json:"band"`
	PatternHint string `json:"patternHint"`
	Tip         string `json:"tip"`
}

// Weights scale the three score components.
type Weights struct {
	Itch     int
	Severity int
	Sleep    int
}

// DefaultWeights sums the components unscaled.
var DefaultWeights = Weights{Itch: 1, Severity: 1, Sleep: 1}

const (
	maxScore = 10

	// windowSize is how many of the most recent records pattern rules consider.
	windowSize = 4
	// hintThreshold is the co-occurrence count a rule must reach within the window.
	hintThreshold = 2

	highStress = 7
	highItch   = 7
)

// sleepPenalties covers every sleep string the check-in screens have used.
// Variants are kept side by side rather than normalized.
var sleepPenalties = map[string]int{
	"poor":             2,
	"Could not sleep":  2,
	"Couldn not sleep": 2,
	"Couldn't sleep":   2,
	"interrupted":      1,
	"Woke once":        1,
	"restless":         1,
}

// SleepPenalty returns 0, 1 or 2 for a sleep impact or quality string.
func SleepPenalty(s string) int {
	return sleepPenalties[s]
}

// poorSleep reports whether the entry's sleep carries the full penalty.
func poorSleep(e logentry.Entry) bool {
	return SleepPenalty(e.SleepImpact) == 2 || SleepPenalty(e.SleepQuality) == 2
}

func severity(e logentry.Entry) int {
	s := 0
	if e.Inflammation == "yes" {
		s++
	}
	if e.FlareToday == "yes" {
		s++
	}
	return s
}

// Score computes the 0-10 flare score with DefaultWeights.
func Score(e logentry.Entry) int {
	return DefaultWeights.Score(e)
}

// Score computes the flare score clamped to 0-10.
func (w Weights) Score(e logentry.Entry) int {
	sleep := SleepPenalty(e.SleepImpact)
	if q := SleepPenalty(e.SleepQuality); q > sleep {
		sleep = q
	}
	raw := w.Itch*e.Itch() + w.Severity*severity(e) + w.Sleep*sleep
	return clamp(raw, 0, maxScore)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// BandFor maps a score to its display band.
func BandFor(score int) Band {
	switch {
	case score >= 8:
		return BandHigh
	case score >= 5:
		return BandModerate
	default:
		return BandLow
	}
}

// FallbackHint is shown when no pattern rule reaches its threshold.
const FallbackHint = "Keep logging daily so Dermind can spot your patterns."

// PatternHint scans the last four records of history (oldest first) and
// returns the hint of the first rule reaching the threshold.
func PatternHint(history []logentry.Record) string {
	window := history
	if len(window) > windowSize {
		window = window[len(window)-windowSize:]
	}
	total := len(window)

	// Rule 1: poor sleep together with a skipped moisturizer.
	if n := count(window, func(e logentry.Entry) bool {
		return poorSleep(e) && e.Moisturized == "No"
	}); n >= hintThreshold {
		return fmt.Sprintf("%d out of your last %d logs followed poor sleep and skipped moisturizer.", n, total)
	}

	// Rule 2: a food trigger together with high stress, triggers in first-seen order.
	for _, tag := range foodTriggersInOrder(window) {
		if n := count(window, func(e logentry.Entry) bool {
			return e.HasFoodTrigger(tag) && e.Stress() >= highStress
		}); n >= hintThreshold {
			return fmt.Sprintf("%s showed up alongside high stress in %d of your last %d logs.", tag, n, total)
		}
	}

	// Rule 3: high itch on days the moisturizer was skipped.
	if n := count(window, func(e logentry.Entry) bool {
		return e.Itch() >= highItch && e.Moisturized == "No"
	}); n >= hintThreshold {
		return fmt.Sprintf("High itch followed a skipped moisturizer in %d of your last %d logs.", n, total)
	}

	return FallbackHint
}

func count(records []logentry.Record, match func(logentry.Entry) bool) int {
	n := 0
	for _, r := range records {
		if match(r.Entry) {
			n++
		}
	}
	return n
}

func foodTriggersInOrder(records []logentry.Record) []string {
	seen := map[string]bool{}
	var tags []string
	for _, r := range records {
		for _, t := range r.Entry.FoodTriggers {
			if t == "None" || seen[t] {
				continue
			}
			seen[t] = true
			tags = append(tags, t)
		}
	}
	return tags
}

const (
	TipMoisturizer = "Tonight might be a good night for a barrier-rich moisturizer and minimal actives."
	TipStress      = "Stress ran high today. Try a few minutes of slow breathing before bed to calm your skin and mind."
	TipBarrier     = "Your skin had a rough day. Keep your routine gentle and skip new products until things settle."
	TipGeneric     = "Nice work checking in. Consistent logs help Dermind learn what keeps your skin calm."
)

// Tip picks the first matching entry from a fixed decision list.
func Tip(e logentry.Entry, score int) string {
	switch {
	case e.Moisturized == "No":
		return TipMoisturizer
	case e.Stress() >= highStress:
		return TipStress
	case score > 5:
		return TipBarrier
	default:
		return TipGeneric
	}
}

// Evaluate derives the insight for rec given the history that includes it.
func Evaluate(rec logentry.Record, history []logentry.Record) Insight {
	score := Score(rec.Entry)
	return Insight{
		Score:       score,
		Band:        BandFor(score),
		PatternHint: PatternHint(history),
		Tip:         Tip(rec.Entry, score),
	}
}
