package runs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kilianp07/antsid/infra/store"
)

// Store is the read side of the calibration run store.
type Store interface {
	ListRuns(ctx context.Context) ([]store.RunInfo, error)
	LatestRun(ctx context.Context) (string, error)
	ListResults(ctx context.Context, runID string) ([]store.Record, error)
}

// NewHandler exposes stored runs:
//
//	GET /api/runs              list of runs, most recent first
//	GET /api/runs/{id}/params  parameter ensemble of a run ("latest" allowed)
//
// Requests must include an Authorization header with "Bearer <token>" when token is non-empty.
func NewHandler(s Store, token string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/runs", func(w http.ResponseWriter, r *http.Request) {
		runs, err := s.ListRuns(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if runs == nil {
			runs = []store.RunInfo{}
		}
		writeJSON(w, runs)
	})
	mux.HandleFunc("GET /api/runs/{id}/params", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if id == "latest" {
			latest, err := s.LatestRun(r.Context())
			if err != nil {
				writeError(w, err)
				return
			}
			id = latest
		}
		recs, err := s.ListResults(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, recs)
	})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		mux.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrRunNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
