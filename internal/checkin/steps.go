package checkin

import "github.com/dermind/dermind/internal/form"

// Step names the wizard screens in their fixed order.
type Step string

const (
	StepStatus    Step = "status"
	StepBarrier   Step = "barrier"
	StepLifestyle Step = "lifestyle"
	StepTriggers  Step = "triggers"
	StepEmotion   Step = "emotion"
)

// Order is the fixed sequence of the daily check-in.
var Order = []Step{StepStatus, StepBarrier, StepLifestyle, StepTriggers, StepEmotion}

// defaultItch is where the itch slider starts.
const defaultItch = 5

// NoneOption is the exclusive sentinel of the multi-select groups.
const NoneOption = "None"

var schemas = map[Step]form.Schema{
	StepStatus: {
		Step:  string(StepStatus),
		Title: "How is your skin today?",
		Fields: []form.Field{
			{Name: "itchLevel", Label: "Itch level", Kind: form.KindRange, Min: 0, Max: 10, Default: defaultItch},
			{Name: "sleepImpact", Label: "Did itching affect your sleep?", Kind: form.KindChoice,
				Options: []string{"rested", "interrupted", "poor"}},
			{Name: "inflammation", Label: "Visible inflammation?", Kind: form.KindChoice,
				Options: []string{"yes", "no"}},
			{Name: "flareToday", Label: "Are you flaring today?", Kind: form.KindChoice,
				Options: []string{"yes", "no", "unsure"}},
			{Name: "flareZone", Label: "Where?", Kind: form.KindChoice,
				Options: []string{"Face", "Neck", "Arms", "Legs", "Hands", "Torso", "Scalp", "Multiple areas"}},
		},
	},
	StepBarrier: {
		Step:  string(StepBarrier),
		Title: "Skincare & barrier",
		Fields: []form.Field{
			{Name: "moisturized", Label: "Did you moisturize today?", Kind: form.KindChoice,
				Options: []string{"Yes", "No", "Sometimes"}, Required: true},
			{Name: "newProduct", Label: "Did you try a new product?", Kind: form.KindChoice,
				Options: []string{"Yes", "No"}, Required: true},
			{Name: "productType", Label: "What kind of product?", Kind: form.KindText,
				RequiredWhen: &form.Condition{Field: "newProduct", Equals: "Yes"}},
			{Name: "sweatWash", Label: "Did you wash after sweating?", Kind: form.KindChoice,
				Options: []string{"Yes", "Washed late", "Didn't sweat"}, Required: true},
			{Name: "sunscreen", Label: "Did you wear sunscreen?", Kind: form.KindChoice,
				Options: []string{"Yes", "No", "N/A"}, Required: true},
		},
	},
	StepLifestyle: {
		Step:  string(StepLifestyle),
		Title: "Lifestyle",
		Fields: []form.Field{
			{Name: "sleepHours", Label: "Hours slept", Kind: form.KindChoice,
				Options: []string{"<5", "5-6", "6-8", ">8"}, Required: true},
			{Name: "sleepQuality", Label: "Sleep quality", Kind: form.KindChoice,
				Options: []string{"restful", "okay", "restless", "poor"}, Required: true},
			{Name: "stressLevel", Label: "Stress level", Kind: form.KindRange, Min: 0, Max: 10},
			{Name: "menstruating", Label: "Are you menstruating today?", Kind: form.KindChoice,
				Options: []string{"yes", "no", "irregular"}},
			{Name: "caffeine", Label: "Caffeine", Kind: form.KindChoice,
				Options: []string{"none", "low", "moderate", "high"}, Required: true},
			{Name: "exercise", Label: "Exercise", Kind: form.KindChoice,
				Options: []string{"none", "light", "moderate", "intense"}, Required: true},
		},
	},
	StepTriggers: {
		Step:  string(StepTriggers),
		Title: "Possible triggers",
		Fields: []form.Field{
			{Name: "foodTriggers", Label: "Foods eaten", Kind: form.KindMulti,
				Options:   []string{"Dairy", "Gluten", "Nuts", "Spicy", "Citrus", "Chocolate", "Seafood", "Eggs", NoneOption},
				Exclusive: NoneOption},
			{Name: "reactedAfter", Label: "Did you react after eating?", Kind: form.KindChoice,
				Options: []string{"Yes", "No", "Not sure"}},
			{Name: "envExposures", Label: "Environmental exposures", Kind: form.KindMulti,
				Options: []string{"Dust", "Fragrance", "Smoke", "New Fabric", "Pet Hair", "Heat", "Cold", "Sweat", "Pollen"}},
			{Name: "avoidedHelpful", Label: "Did you avoid anything that usually helps?", Kind: form.KindText},
		},
	},
	StepEmotion: {
		Step:  string(StepEmotion),
		Title: "How are you feeling?",
		Fields: []form.Field{
			{Name: "confidence", Label: "Confidence in your skin", Kind: form.KindChoice,
				Options: []string{"Very low", "Low", "Neutral", "Good", "Great"}},
			{Name: "socialImpact", Label: "Did your skin affect your social plans?", Kind: form.KindChoice,
				Options: []string{"Not at all", "A little", "Yes"}},
		},
	},
}

// Schema returns the declarative description of a step.
func Schema(step Step) (form.Schema, bool) {
	s, ok := schemas[step]
	return s, ok
}

// Schemas returns all step schemas in wizard order.
func Schemas() []form.Schema {
	out := make([]form.Schema, 0, len(Order))
	for _, s := range Order {
		out = append(out, schemas[s])
	}
	return out
}

// ParseStep validates a step name.
func ParseStep(name string) (Step, error) {
	s := Step(name)
	if _, ok := schemas[s]; !ok {
		return "", ErrUnknownStep
	}
	return s, nil
}

func indexOf(step Step) int {
	for i, s := range Order {
		if s == step {
			return i
		}
	}
	return -1
}

// Next returns the step after step, or "" after the last one.
func Next(step Step) Step {
	i := indexOf(step)
	if i < 0 || i+1 >= len(Order) {
		return ""
	}
	return Order[i+1]
}
