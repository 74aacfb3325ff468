package profile

// Profile is the user's baseline: who they are, what they are managing, and
// what they have consented to. Collected once during onboarding.
type Profile struct {
	DisplayName string   `json:"displayName"`
	UserType    string   `json:"userType"` // "adult" or "child"
	AgeGroup    string   `json:"ageGroup"`
	Gender      string   `json:"gender"`
	SkinTone    string   `json:"skinTone"` // color token, e.g. "#c68642"
	Location    string   `json:"location"`
	Conditions  []string `json:"conditions"`
	Triggers    []string `json:"triggers"`

	ConsentMedical bool `json:"consentMedical"`
	ConsentAI      bool `json:"consentAI"`

	HormonalBreakouts string   `json:"hormonalBreakouts,omitempty"`
	Menstruation      string   `json:"menstruation,omitempty"`
	Diagnoses         []string `json:"diagnoses,omitempty"`

	OnboardingComplete bool `json:"onboardingComplete"`
}

// Flat storage keys for the profile fields.
const (
	KeyDisplayName        = "name"
	KeyUserType           = "userType"
	KeyAgeGroup           = "ageGroup"
	KeyGender             = "gender"
	KeySkinTone           = "skinTone"
	KeyLocation           = "location"
	KeyConditions         = "conditions"
	KeyTriggers           = "triggers"
	KeyConsentMedical     = "consentMedical"
	KeyConsentAI          = "consentAI"
	KeyHormonalBreakouts  = "hormonalBreakouts"
	KeyMenstruation       = "menstruation"
	KeyDiagnoses          = "diagnoses"
	KeyOnboardingComplete = "onboardingComplete"
)

// IdentityKeys are the keys cleared by an onboarding reset.
var IdentityKeys = []string{
	KeyDisplayName,
	KeyUserType,
	KeyAgeGroup,
	KeyGender,
	KeySkinTone,
	KeyLocation,
	KeyConditions,
	KeyTriggers,
	KeyConsentMedical,
	KeyConsentAI,
	KeyHormonalBreakouts,
	KeyMenstruation,
	KeyDiagnoses,
	KeyOnboardingComplete,
}

// SummaryLine is one row of the baseline summary screen.
type SummaryLine struct {
	Label string `json:"label"`
	Value string `json:"value"`
}
