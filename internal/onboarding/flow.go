// Package onboarding collects the baseline profile one step at a time and
// writes it to the profile store once consent is given.
package onboarding

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/dermind/dermind/internal/form"
)

var (
	ErrUnknownStep    = errors.New("unknown onboarding step")
	ErrStepOutOfOrder = errors.New("onboarding step not reachable yet")
	ErrComplete       = errors.New("onboarding already complete")
)

type Step string

const (
	StepIntro      Step = "intro"
	StepUserType   Step = "user_type"
	StepAdult      Step = "adult"
	StepChild      Step = "child"
	StepConditions Step = "conditions"
	StepMedical    Step = "medical"
	StepConsent    Step = "consent"
	StepSummary    Step = "summary"
)

const missingFieldsMessage = "Please fill out all fields."

var skinTones = []string{"#f9dcc4", "#e0ac69", "#c68642", "#8d5524", "#4b3621", "#2a1a0b"}

// hormonalConditions route adult women to the medical-history step.
var hormonalConditions = []string{"Acne", "Urticaria (Hives)"}

var schemas = map[Step]form.Schema{
	StepIntro: {
		Step:  string(StepIntro),
		Title: "Let's get to know you",
		Fields: []form.Field{
			{Name: "displayName", Label: "Your name", Kind: form.KindText, Required: true},
			{Name: "triggers", Label: "Known triggers", Kind: form.KindMulti,
				Options: []string{"Sun", "Pollen", "Dust", "Cosmetics", "Food", "Sleep", "Stress", "Humidity"}},
		},
	},
	StepUserType: {
		Step:  string(StepUserType),
		Title: "Who is this profile for?",
		Fields: []form.Field{
			{Name: "userType", Label: "Profile type", Kind: form.KindChoice,
				Options: []string{"adult", "child"}, Required: true},
		},
	},
	StepAdult: {
		Step:           string(StepAdult),
		Title:          "About you",
		MissingMessage: missingFieldsMessage,
		Fields: []form.Field{
			{Name: "gender", Label: "Gender", Kind: form.KindChoice,
				Options: []string{"female", "male", "other", "prefer_not_to_say"}, Required: true},
			{Name: "skinTone", Label: "Skin tone", Kind: form.KindChoice, Options: skinTones, Required: true},
			{Name: "location", Label: "City", Kind: form.KindText, Required: true},
		},
	},
	StepChild: {
		Step:           string(StepChild),
		Title:          "About your child",
		MissingMessage: missingFieldsMessage,
		Fields: []form.Field{
			{Name: "ageGroup", Label: "Age group", Kind: form.KindChoice,
				Options: []string{"0-3", "4-7", "8-12"}, Required: true},
			{Name: "skinTone", Label: "Skin tone", Kind: form.KindChoice, Options: skinTones, Required: true},
			{Name: "location", Label: "City", Kind: form.KindText, Required: true},
			{Name: "conditions", Label: "Conditions", Kind: form.KindMulti,
				Options: []string{"Eczema", "Psoriasis", "Acne", "Urticaria", "Seborrheic Dermatitis", "not sure", "Other"}},
			{Name: "otherCondition", Label: "Other condition", Kind: form.KindText},
		},
	},
	StepConditions: {
		Step:  string(StepConditions),
		Title: "What are you managing?",
		Fields: []form.Field{
			{Name: "conditions", Label: "Conditions", Kind: form.KindMulti,
				Options: []string{"Eczema", "Psoriasis", "Acne", "Urticaria (Hives)", "Seborrheic Dermatitis", "I'm not sure"}},
			{Name: "otherCondition", Label: "Other condition", Kind: form.KindText},
		},
	},
	StepMedical: {
		Step:  string(StepMedical),
		Title: "Medical history",
		Fields: []form.Field{
			{Name: "hormonalBreakouts", Label: "Do you get hormonal breakouts?", Kind: form.KindChoice,
				Options: []string{"yes", "no", "not_sure"}},
			{Name: "menstruation", Label: "Menstruation", Kind: form.KindChoice,
				Options: []string{"yes", "no", "birth_control", "dont_menstruate"}},
			{Name: "diagnoses", Label: "Diagnoses", Kind: form.KindMulti,
				Options:   []string{"PCOS", "Thyroid disorder", "Autoimmune disorder", "Diabetes / Insulin resistance", "None"},
				Exclusive: "None"},
		},
	},
	StepConsent: {
		Step:  string(StepConsent),
		Title: "Consent",
		Fields: []form.Field{
			{Name: "consentMedical", Label: "I understand Dermind is not a medical diagnosis", Kind: form.KindBool, Required: true},
			{Name: "consentAI", Label: "I agree to let Dermind analyse my logs", Kind: form.KindBool, Required: true},
		},
	},
}

// Schema returns the declarative description of a step.
func Schema(step Step) (form.Schema, bool) {
	s, ok := schemas[step]
	return s, ok
}

// ParseStep validates a step name.
func ParseStep(name string) (Step, error) {
	s := Step(name)
	if _, ok := schemas[s]; !ok {
		return "", ErrUnknownStep
	}
	return s, nil
}

// State is the onboarding progress: the current step, the steps already
// passed, and every value collected so far.
type State struct {
	Step      Step           `json:"step"`
	Completed []Step         `json:"completed"`
	Values    map[string]any `json:"values"`
}

// NewState starts onboarding at the intro step.
func NewState() State {
	return State{Step: StepIntro, Completed: []Step{}, Values: map[string]any{}}
}

// Done reports whether all input steps have been passed.
func (s State) Done() bool {
	return s.Step == StepSummary
}

func (s State) str(key string) string {
	v, _ := s.Values[key].(string)
	return v
}

func (s State) list(key string) []string {
	v, _ := form.AsStrings(s.Values[key])
	return v
}

// NeedsMedical reports whether the medical-history step applies: an adult
// woman who selected a hormonal condition.
func (s State) NeedsMedical() bool {
	if s.str("userType") != "adult" || s.str("gender") != "female" || s.str("ageGroup") == "child" {
		return false
	}
	for _, c := range s.list("conditions") {
		if slices.Contains(hormonalConditions, c) {
			return true
		}
	}
	return false
}

// Next computes the step that follows step given the values collected.
func Next(s State, step Step) Step {
	switch step {
	case StepIntro:
		return StepUserType
	case StepUserType:
		if s.str("userType") == "child" {
			return StepChild
		}
		return StepAdult
	case StepAdult:
		return StepConditions
	case StepChild:
		return StepConsent
	case StepConditions:
		if s.NeedsMedical() {
			return StepMedical
		}
		return StepConsent
	case StepMedical:
		return StepConsent
	default:
		return StepSummary
	}
}

// Submit validates fields for step and advances the state. Only the current
// step or one already passed may be submitted; resubmitting an earlier step
// recomputes the path from there.
func Submit(s State, step Step, fields map[string]any) (State, error) {
	schema, ok := Schema(step)
	if !ok {
		return s, ErrUnknownStep
	}
	if s.Done() {
		return s, ErrComplete
	}
	if step != s.Step && !slices.Contains(s.Completed, step) {
		return s, fmt.Errorf("%w: current step is %s", ErrStepOutOfOrder, s.Step)
	}
	if err := form.Validate(schema, fields); err != nil {
		return s, err
	}

	next := State{
		Completed: slices.Clone(s.Completed),
		Values:    make(map[string]any, len(s.Values)+len(fields)),
	}
	for k, v := range s.Values {
		next.Values[k] = v
	}
	for k, v := range fields {
		next.Values[k] = v
	}

	switch step {
	case StepAdult:
		next.Values["ageGroup"] = "adult"
	case StepConditions, StepChild:
		next.Values["conditions"] = normalizeConditions(next.list("conditions"), next.str("otherCondition"))
		delete(next.Values, "otherCondition")
	}

	// Passing an earlier step again drops everything after it.
	if i := slices.Index(next.Completed, step); i >= 0 {
		next.Completed = next.Completed[:i]
	}
	next.Completed = append(next.Completed, step)
	next.Step = Next(next, step)
	return next, nil
}

// normalizeConditions replaces the bare "Other" option with "Other: <text>"
// when free text was given.
func normalizeConditions(selected []string, other string) []string {
	out := make([]string, 0, len(selected)+1)
	for _, c := range selected {
		if c == "Other" && strings.TrimSpace(other) != "" {
			continue
		}
		out = append(out, c)
	}
	if text := strings.TrimSpace(other); text != "" {
		out = append(out, "Other: "+text)
	}
	return out
}
