package runs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/antsid/core/discharge"
	"github.com/kilianp07/antsid/infra/store"
)

type memStore struct {
	runs    []store.RunInfo
	results map[string][]store.Record
}

func (m *memStore) ListRuns(context.Context) ([]store.RunInfo, error) { return m.runs, nil }

func (m *memStore) LatestRun(context.Context) (string, error) {
	if len(m.runs) == 0 {
		return "", store.ErrRunNotFound
	}
	return m.runs[0].ID, nil
}

func (m *memStore) ListResults(_ context.Context, id string) ([]store.Record, error) {
	recs, ok := m.results[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrRunNotFound, id)
	}
	return recs, nil
}

func newMemStore() *memStore {
	return &memStore{
		runs: []store.RunInfo{{ID: "r2", Started: time.Now(), Members: 1, Fitted: 1}, {ID: "r1"}},
		results: map[string][]store.Record{
			"r2": {{RunID: "r2", Member: "m1", Params: discharge.Params{SIDSens: 1e-5, FastRate: 20, Temp0: 4, TempThresh: 4}}},
		},
	}
}

func get(t *testing.T, h http.Handler, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHandler_Runs(t *testing.T) {
	h := NewHandler(newMemStore(), "tok")

	rr := get(t, h, "/api/runs", "tok")
	require.Equal(t, http.StatusOK, rr.Code)
	var runs []store.RunInfo
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &runs))
	assert.Len(t, runs, 2)

	rr = get(t, h, "/api/runs/latest/params", "tok")
	require.Equal(t, http.StatusOK, rr.Code)
	var recs []store.Record
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, 20.0, recs[0].Params.FastRate)

	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/runs/r9/params", "tok").Code)
	assert.Equal(t, http.StatusUnauthorized, get(t, h, "/api/runs", "").Code)
}

func TestHandler_NoToken(t *testing.T) {
	h := NewHandler(&memStore{}, "")
	rr := get(t, h, "/api/runs", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, "[]", rr.Body.String())
	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/runs/latest/params", "").Code)
}
