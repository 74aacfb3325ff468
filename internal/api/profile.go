package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dermind/dermind/internal/form"
	"github.com/dermind/dermind/internal/onboarding"
	"github.com/dermind/dermind/internal/settings"
	"github.com/dermind/dermind/internal/storage"
)

type patchProfileRequest struct {
	DisplayName *string `json:"displayName"`
}

type onboardingResponse struct {
	State  onboarding.State `json:"state"`
	Schema *form.Schema     `json:"schema,omitempty"`
}

type photoRequest struct {
	DataURL string `json:"dataUrl"`
}

type photoResponse struct {
	DataURL   string    `json:"dataUrl,omitempty"`
	Ref       string    `json:"ref"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func handleGetProfile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := deps.Profile.GetProfile()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get profile: %v", err)
			return
		}
		writeJSON(w, p)
	}
}

// handlePatchProfile only edits the display name; every other profile field
// is owned by onboarding.
func handlePatchProfile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req patchProfileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.DisplayName == nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "displayName is required")
			return
		}

		name, err := deps.Settings.SetDisplayName(r.Context(), *req.DisplayName)
		if err != nil {
			serviceError(w, err, "update name")
			return
		}
		writeJSON(w, map[string]string{
			"status":      "updated",
			"displayName": name,
			"message":     "Name updated successfully!",
		})
	}
}

func handleProfileSummary(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lines, err := deps.Profile.Summary()
		if err != nil {
			serviceError(w, err, "summarize profile")
			return
		}
		writeJSON(w, lines)
	}
}

func onboardingView(st onboarding.State) onboardingResponse {
	resp := onboardingResponse{State: st}
	if s, ok := onboarding.Schema(st.Step); ok {
		resp.Schema = &s
	}
	return resp
}

func handleGetOnboarding(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := deps.Onboarding.State(r.Context())
		if err != nil {
			serviceError(w, err, "load onboarding")
			return
		}
		writeJSON(w, onboardingView(st))
	}
}

func handleOnboardingStep(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		step, err := onboarding.ParseStep(chi.URLParam(r, "step"))
		if err != nil {
			serviceError(w, err, "submit onboarding step")
			return
		}
		fields, ok := decodeFields(w, r)
		if !ok {
			return
		}

		st, err := deps.Onboarding.Submit(r.Context(), step, fields)
		if err != nil {
			serviceError(w, err, "submit onboarding step")
			return
		}
		writeJSON(w, onboardingView(st))
	}
}

func handleResetOnboarding(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Onboarding.Reset(r.Context()); err != nil {
			serviceError(w, err, "reset onboarding")
			return
		}
		writeJSON(w, map[string]string{"status": "reset"})
	}
}

var resetMessages = map[settings.ResetKind]string{
	settings.ResetOnboarding: "Onboarding data cleared.",
	settings.ResetAll:        "All data successfully wiped. You are starting fresh!",
}

// handleReset requires confirm=true. Without it the response is a 409
// carrying the confirmation prompt to show the user.
func handleReset(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, err := settings.ParseResetKind(r.URL.Query().Get("kind"))
		if err != nil {
			serviceError(w, err, "reset")
			return
		}
		confirmed, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))

		err = deps.Settings.Reset(r.Context(), kind, confirmed)
		if errors.Is(err, settings.ErrNotConfirmed) {
			httpError(w, http.StatusConflict, "confirmation_required", "%s", settings.ConfirmationText(kind))
			return
		}
		if err != nil {
			serviceError(w, err, "reset")
			return
		}
		writeJSON(w, map[string]string{"status": "reset", "kind": string(kind), "message": resetMessages[kind]})
	}
}

func handleEnvironment(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Environment == nil {
			httpError(w, http.StatusServiceUnavailable, "api_error", "environment lookups are not configured")
			return
		}
		snap, err := deps.Environment.Snapshot(r.Context())
		if err != nil {
			serviceError(w, err, "fetch environment")
			return
		}
		writeJSON(w, snap)
	}
}

func handleGeocode(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Environment == nil {
			httpError(w, http.StatusServiceUnavailable, "api_error", "environment lookups are not configured")
			return
		}
		lat, errLat := strconv.ParseFloat(strings.TrimSpace(r.URL.Query().Get("lat")), 64)
		lon, errLon := strconv.ParseFloat(strings.TrimSpace(r.URL.Query().Get("lon")), 64)
		if errLat != nil || errLon != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "lat and lon must be numbers")
			return
		}
		writeJSON(w, map[string]string{"location": deps.Environment.ReverseGeocode(r.Context(), lat, lon)})
	}
}

func handlePutPhoto(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxPhotoBodySize)
		defer r.Body.Close()

		var req photoRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		p, err := deps.Store.SetBaselinePhoto(req.DataURL)
		if err != nil {
			serviceError(w, err, "save photo")
			return
		}
		writeJSON(w, photoResponse{Ref: p.Ref, UpdatedAt: p.UpdatedAt})
	}
}

func handleGetPhoto(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := deps.Store.BaselinePhoto()
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "no baseline photo saved")
			return
		}
		if err != nil {
			serviceError(w, err, "load photo")
			return
		}
		writeJSON(w, photoResponse{DataURL: p.DataURL, Ref: p.Ref, UpdatedAt: p.UpdatedAt})
	}
}

func handleDeletePhoto(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Store.ClearBaselinePhoto(); err != nil {
			serviceError(w, err, "delete photo")
			return
		}
		writeJSON(w, map[string]string{"status": "deleted"})
	}
}
