package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dermind/dermind/internal/checkin"
	"github.com/dermind/dermind/internal/environment"
	"github.com/dermind/dermind/internal/form"
	"github.com/dermind/dermind/internal/history"
	"github.com/dermind/dermind/internal/onboarding"
	"github.com/dermind/dermind/internal/profile"
	"github.com/dermind/dermind/internal/settings"
	"github.com/dermind/dermind/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB
const maxPhotoBodySize = 10 << 20  // 10MB

// EnvironmentClient abstracts the outside-conditions lookups.
type EnvironmentClient interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) string
	Snapshot(ctx context.Context) (environment.Snapshot, error)
}

// Deps holds everything the HTTP and MCP surfaces call into.
type Deps struct {
	Store       *storage.Store
	Profile     *profile.Manager
	Onboarding  *onboarding.Service
	Wizard      *checkin.Wizard
	History     *history.Service
	Settings    *settings.Service
	Environment EnvironmentClient // optional; environment routes return 503 when nil
}

// NewDeps wires the services around one store.
func NewDeps(store *storage.Store, draftTTL time.Duration, env EnvironmentClient) Deps {
	profiles := profile.NewManager(store)
	return Deps{
		Store:       store,
		Profile:     profiles,
		Onboarding:  onboarding.NewService(store, profiles),
		Wizard:      checkin.NewWizard(store, draftTTL),
		History:     history.NewService(store),
		Settings:    settings.NewService(profiles, store, onboarding.StateKey),
		Environment: env,
	}
}

// NewHandler returns the REST API the screens and the CLI drive.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Get("/profile", handleGetProfile(deps))
	r.Patch("/profile", handlePatchProfile(deps))
	r.Get("/profile/summary", handleProfileSummary(deps))

	r.Get("/onboarding", handleGetOnboarding(deps))
	r.Post("/onboarding/{step}", handleOnboardingStep(deps))
	r.Delete("/onboarding", handleResetOnboarding(deps))

	r.Get("/checkin/steps", handleCheckinSteps)
	r.Post("/checkin/start", handleCheckinStart(deps))
	r.Get("/checkin/draft", handleGetDraft(deps))
	r.Delete("/checkin/draft", handleAbandonDraft(deps))
	r.Post("/checkin/toggle", handleToggle)
	r.Post("/checkin/{step}", handleCheckinStep(deps))

	r.Get("/history", handleHistory(deps))
	r.Delete("/history/{index}", handleDeleteHistory(deps))
	r.Get("/insights/latest", handleLatestInsight(deps))
	r.Get("/dashboard", handleDashboard(deps))

	r.Post("/settings/reset", handleReset(deps))

	r.Get("/environment", handleEnvironment(deps))
	r.Get("/environment/geocode", handleGeocode(deps))

	r.Put("/photo", handlePutPhoto(deps))
	r.Get("/photo", handleGetPhoto(deps))
	r.Delete("/photo", handleDeletePhoto(deps))

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// decodeFields reads a JSON object body. An empty body yields an empty map.
func decodeFields(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	fields := map[string]any{}
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil && !errors.Is(err, io.EOF) {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return nil, false
	}
	return fields, true
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

// serviceError maps domain errors onto status codes. Validation failures
// carry the per-field detail alongside the usual envelope.
func serviceError(w http.ResponseWriter, err error, action string) {
	var verr *form.ValidationError
	switch {
	case errors.As(err, &verr):
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{
				"message": verr.Error(),
				"type":    "validation_error",
				"step":    verr.Step,
				"missing": verr.Missing,
				"invalid": verr.Invalid,
			},
		})
	case errors.Is(err, settings.ErrEmptyName):
		httpError(w, http.StatusUnprocessableEntity, "validation_error", "%s", err.Error())
	case errors.Is(err, storage.ErrNotFound),
		errors.Is(err, checkin.ErrNoDraft),
		errors.Is(err, history.ErrIndexOutOfRange):
		httpError(w, http.StatusNotFound, "not_found", "%v", err)
	case errors.Is(err, checkin.ErrStepOutOfOrder),
		errors.Is(err, onboarding.ErrStepOutOfOrder),
		errors.Is(err, onboarding.ErrComplete):
		httpError(w, http.StatusConflict, "conflict", "%v", err)
	case errors.Is(err, checkin.ErrUnknownStep),
		errors.Is(err, onboarding.ErrUnknownStep),
		errors.Is(err, settings.ErrUnknownReset),
		errors.Is(err, storage.ErrInvalidPhoto):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "failed to %s: %v", action, err)
	}
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
