package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dermind/dermind/internal/checkin"
	"github.com/dermind/dermind/internal/form"
)

type draftResponse struct {
	Draft   checkin.Draft `json:"draft"`
	Next    checkin.Step  `json:"next"`
	Resumed bool          `json:"resumed"`
}

type toggleRequest struct {
	Selected []string `json:"selected"`
	Option   string   `json:"option"`
	Sentinel string   `json:"sentinel"`
}

func handleCheckinSteps(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, checkin.Schemas())
}

func handleCheckinStart(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, resumed, err := deps.Wizard.Start(r.Context())
		if err != nil {
			serviceError(w, err, "start check-in")
			return
		}
		writeJSON(w, draftResponse{Draft: d, Next: d.NextStep(), Resumed: resumed})
	}
}

func handleGetDraft(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := deps.Wizard.Draft(r.Context())
		if err != nil {
			serviceError(w, err, "load check-in")
			return
		}
		writeJSON(w, draftResponse{Draft: d, Next: d.NextStep(), Resumed: true})
	}
}

func handleAbandonDraft(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Wizard.Abandon(r.Context()); err != nil {
			serviceError(w, err, "abandon check-in")
			return
		}
		writeJSON(w, map[string]string{"status": "abandoned"})
	}
}

// handleToggle applies the "None" mutual-exclusion rule to a multi-select
// group so clients do not have to reimplement it.
func handleToggle(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	var req toggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return
	}
	if req.Option == "" {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "option is required")
		return
	}
	if req.Sentinel == "" {
		req.Sentinel = checkin.NoneOption
	}
	writeJSON(w, map[string][]string{
		"selected": form.ToggleOption(req.Selected, req.Option, req.Sentinel),
	})
}

func handleCheckinStep(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		step, err := checkin.ParseStep(chi.URLParam(r, "step"))
		if err != nil {
			serviceError(w, err, "submit check-in step")
			return
		}
		fields, ok := decodeFields(w, r)
		if !ok {
			return
		}

		res, err := deps.Wizard.Submit(r.Context(), step, fields)
		if err != nil {
			serviceError(w, err, "submit check-in step")
			return
		}
		writeJSON(w, res)
	}
}
