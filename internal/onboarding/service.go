package onboarding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/dermind/dermind/internal/profile"
	"github.com/dermind/dermind/internal/storage"
)

// StateKey is where in-progress onboarding is kept between requests.
const StateKey = "onboarding.state"

// StateStore persists the in-progress State. Implemented by storage.Store.
type StateStore interface {
	GetState(key string) (string, error)
	SetState(key, value string) error
	DeleteState(key string) error
}

// ProfileWriter receives the finished profile. Implemented by profile.Manager.
type ProfileWriter interface {
	GetProfile() (profile.Profile, error)
	SetFields(values map[string]any) error
	ClearFields(keys ...string) error
}

type Service struct {
	store    StateStore
	profiles ProfileWriter
}

func NewService(store StateStore, profiles ProfileWriter) *Service {
	return &Service{store: store, profiles: profiles}
}

// State returns the saved progress. With nothing saved it is the summary
// step once a profile has been completed, else a fresh State.
func (s *Service) State(ctx context.Context) (State, error) {
	if err := ctx.Err(); err != nil {
		return State{}, err
	}
	raw, err := s.store.GetState(StateKey)
	if errors.Is(err, storage.ErrNotFound) {
		p, err := s.profiles.GetProfile()
		if err != nil {
			return State{}, fmt.Errorf("loading profile: %w", err)
		}
		if p.OnboardingComplete {
			return State{Step: StepSummary, Completed: []Step{}, Values: map[string]any{}}, nil
		}
		return NewState(), nil
	}
	if err != nil {
		return State{}, fmt.Errorf("loading onboarding state: %w", err)
	}
	var st State
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		slog.Warn("malformed onboarding state, starting over", "error", err)
		return NewState(), nil
	}
	if st.Values == nil {
		st.Values = map[string]any{}
	}
	return st, nil
}

// Submit applies one step. When the step completes the flow, the profile is
// written and the saved progress is cleared.
func (s *Service) Submit(ctx context.Context, step Step, fields map[string]any) (State, error) {
	st, err := s.State(ctx)
	if err != nil {
		return State{}, err
	}
	next, err := Submit(st, step, fields)
	if err != nil {
		return st, err
	}

	if next.Done() {
		if err := s.Complete(ctx, next); err != nil {
			return st, err
		}
		return next, nil
	}

	data, err := json.Marshal(next)
	if err != nil {
		return State{}, fmt.Errorf("encoding onboarding state: %w", err)
	}
	if err := s.store.SetState(StateKey, string(data)); err != nil {
		return State{}, fmt.Errorf("saving onboarding state: %w", err)
	}
	return next, nil
}

// Complete writes the collected profile, marks onboarding complete and
// clears the saved progress.
func (s *Service) Complete(ctx context.Context, st State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !st.Done() {
		return fmt.Errorf("%w: current step is %s", ErrStepOutOfOrder, st.Step)
	}
	// The new answers replace the old profile; keys off the new path must not linger.
	if err := s.profiles.ClearFields(profile.IdentityKeys...); err != nil {
		return fmt.Errorf("clearing previous profile: %w", err)
	}
	if err := s.profiles.SetFields(ProfileFields(st)); err != nil {
		return fmt.Errorf("writing profile: %w", err)
	}
	if err := s.store.DeleteState(StateKey); err != nil {
		return fmt.Errorf("clearing onboarding state: %w", err)
	}
	slog.Info("onboarding complete", "user_type", st.str("userType"))
	return nil
}

// Reset starts onboarding over from the intro step. The saved profile is
// kept until the new pass completes.
func (s *Service) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(NewState())
	if err != nil {
		return fmt.Errorf("encoding onboarding state: %w", err)
	}
	if err := s.store.SetState(StateKey, string(data)); err != nil {
		return fmt.Errorf("saving onboarding state: %w", err)
	}
	return nil
}

// ProfileFields maps collected values onto profile keys. Fields that do not
// apply to the chosen profile type are left out.
func ProfileFields(st State) map[string]any {
	out := map[string]any{
		profile.KeyDisplayName:        st.str("displayName"),
		profile.KeyUserType:           st.str("userType"),
		profile.KeyAgeGroup:           st.str("ageGroup"),
		profile.KeySkinTone:           st.str("skinTone"),
		profile.KeyLocation:           st.str("location"),
		profile.KeyConditions:         nonNil(st.list("conditions")),
		profile.KeyTriggers:           nonNil(st.list("triggers")),
		profile.KeyConsentMedical:     st.Values["consentMedical"] == true,
		profile.KeyConsentAI:          st.Values["consentAI"] == true,
		profile.KeyOnboardingComplete: true,
	}
	if st.str("userType") == "adult" {
		out[profile.KeyGender] = st.str("gender")
	}
	if st.NeedsMedical() && slices.Contains(st.Completed, StepMedical) {
		out[profile.KeyHormonalBreakouts] = st.str("hormonalBreakouts")
		out[profile.KeyMenstruation] = st.str("menstruation")
		out[profile.KeyDiagnoses] = nonNil(st.list("diagnoses"))
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
