package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dermind/dermind/internal/environment"
	"github.com/dermind/dermind/internal/history"
	"github.com/dermind/dermind/internal/insight"
	"github.com/dermind/dermind/internal/logentry"
	"github.com/dermind/dermind/internal/storage"
)

// LatestInsight is the summary screen for the most recent record.
type LatestInsight struct {
	Record  logentry.Record `json:"record"`
	Lines   []logentry.Line `json:"lines"`
	Insight insight.Insight `json:"insight"`
}

// Dashboard is the home screen.
type Dashboard struct {
	Greeting    string                `json:"greeting"`
	Latest      *LatestInsight        `json:"latest,omitempty"`
	Environment *environment.Snapshot `json:"environment,omitempty"`
	LogCount    int                   `json:"logCount"`
}

func handleHistory(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		window, err := history.ParseWindow(r.URL.Query().Get("window"))
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		view, err := deps.History.View(r.Context(), history.Query{
			Window:  window,
			Trigger: r.URL.Query().Get("trigger"),
		})
		if err != nil {
			serviceError(w, err, "load history")
			return
		}
		if limit := parseIntParam(r, "limit", 0, 0); limit > 0 && len(view.Items) > limit {
			view.Items = view.Items[:limit]
		}
		writeJSON(w, view)
	}
}

func handleDeleteHistory(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		idx, err := strconv.Atoi(chi.URLParam(r, "index"))
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "index must be an integer")
			return
		}
		rec, err := deps.History.DeleteDisplayed(r.Context(), idx)
		if err != nil {
			serviceError(w, err, "delete history record")
			return
		}
		writeJSON(w, map[string]any{"status": "deleted", "record": rec})
	}
}

// latestInsight evaluates the newest record against the history ending at it.
func latestInsight(deps Deps, r *http.Request) (*LatestInsight, int, error) {
	rec, all, err := deps.History.Latest(r.Context())
	if errors.Is(err, storage.ErrNotFound) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	return &LatestInsight{
		Record:  rec,
		Lines:   rec.Entry.Lines(),
		Insight: insight.Evaluate(rec, all),
	}, len(all), nil
}

func handleLatestInsight(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		latest, _, err := latestInsight(deps, r)
		if err != nil {
			serviceError(w, err, "load latest insight")
			return
		}
		if latest == nil {
			httpError(w, http.StatusNotFound, "not_found", "no check-ins logged yet")
			return
		}
		writeJSON(w, latest)
	}
}

func handleDashboard(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := deps.Profile.GetProfile()
		if err != nil {
			serviceError(w, err, "load profile")
			return
		}
		latest, count, err := latestInsight(deps, r)
		if err != nil {
			serviceError(w, err, "load latest insight")
			return
		}

		dash := Dashboard{Greeting: Greeting(p.DisplayName), Latest: latest, LogCount: count}
		if deps.Environment != nil {
			if snap, err := deps.Environment.Snapshot(r.Context()); err == nil {
				dash.Environment = &snap
			}
		}
		writeJSON(w, dash)
	}
}

// Greeting is the dashboard heading.
func Greeting(name string) string {
	if name == "" {
		return "Hello 👋"
	}
	return "Hello, " + name + " 👋"
}
