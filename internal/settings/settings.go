// Package settings edits the display name and performs the two confirmed
// resets.
package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dermind/dermind/internal/profile"
)

var (
	ErrEmptyName    = errors.New("Please enter a valid name.")
	ErrNotConfirmed = errors.New("reset not confirmed")
	ErrUnknownReset = errors.New("unknown reset kind")
)

// ResetKind selects what a reset clears.
type ResetKind string

const (
	// ResetOnboarding clears the profile-identifying keys only.
	ResetOnboarding ResetKind = "onboarding"
	// ResetAll clears profile, history, drafts, onboarding progress and the baseline photo.
	ResetAll ResetKind = "all"
)

// ParseResetKind validates a reset kind name.
func ParseResetKind(s string) (ResetKind, error) {
	switch k := ResetKind(s); k {
	case ResetOnboarding, ResetAll:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownReset, s)
	}
}

// ConfirmationText is the prompt shown before a reset.
func ConfirmationText(kind ResetKind) string {
	switch kind {
	case ResetOnboarding:
		return "Are you sure you want to reset your name and go back to the Introduction page?"
	case ResetAll:
		return "⚠️ DANGER: Are you absolutely sure you want to wipe ALL your saved logs and history? This cannot be undone."
	default:
		return ""
	}
}

// Profiles is the slice of profile.Manager that settings needs.
type Profiles interface {
	SetField(key string, value any) error
	ClearFields(keys ...string) error
	Invalidate()
}

// Store is the slice of storage.Store that settings needs.
type Store interface {
	DeleteState(key string) error
	WipeAll() error
}

type Service struct {
	profiles Profiles
	store    Store
	stateKey string
}

// NewService creates a Service. onboardingStateKey is cleared by an
// onboarding reset so the flow restarts from the intro.
func NewService(profiles Profiles, store Store, onboardingStateKey string) *Service {
	return &Service{profiles: profiles, store: store, stateKey: onboardingStateKey}
}

// SetDisplayName stores the trimmed name. Blank names are rejected.
func (s *Service) SetDisplayName(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyName
	}
	if err := s.profiles.SetField(profile.KeyDisplayName, name); err != nil {
		return "", err
	}
	return name, nil
}

// Reset performs a confirmed reset. Nothing changes unless confirmed is true.
func (s *Service) Reset(ctx context.Context, kind ResetKind, confirmed bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !confirmed {
		return ErrNotConfirmed
	}

	switch kind {
	case ResetOnboarding:
		if err := s.profiles.ClearFields(profile.IdentityKeys...); err != nil {
			return err
		}
		if err := s.store.DeleteState(s.stateKey); err != nil {
			return fmt.Errorf("clearing onboarding state: %w", err)
		}
	case ResetAll:
		if err := s.store.WipeAll(); err != nil {
			return fmt.Errorf("wiping data: %w", err)
		}
		s.profiles.Invalidate()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownReset, kind)
	}

	slog.Warn("data reset", "kind", kind)
	return nil
}
