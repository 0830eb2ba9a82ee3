package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/querybench/querybench/pkg/indexstore"
	"github.com/querybench/querybench/pkg/summary"
)

// errorResponse is a standard error payload.
type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON encodes v as JSON and writes it to w.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encoding response", http.StatusInternalServerError)
	}
}

// handleHealth returns server health status.
func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleConfig returns the public server configuration.
func (s *server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	storageResp := map[string]any{"backend": "none"}

	switch {
	case s.storageCfg != nil && s.storageCfg.S3 != nil:
		storageResp = map[string]any{
			"backend": "s3",
			"bucket":  s.storageCfg.S3.Bucket,
			"prefix":  s.storageCfg.S3.Prefix,
		}
	case s.storageCfg != nil && s.storageCfg.Local != nil:
		storageResp = map[string]any{"backend": "local"}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"storage": storageResp,
		"indexing": map[string]any{
			"enabled": s.cfg.Indexing != nil && s.cfg.Indexing.Enabled,
		},
	})
}

// runEntry is one indexed run in the /runs response, with the
// serialized top-slowest list decoded back to a struct.
type runEntry struct {
	*indexstore.Run
	TopSlowest []summary.SlowQuery `json:"top_slowest_queries,omitempty"`
}

// handleListRuns returns the indexed runs, newest first. The result can
// be narrowed with the engine and config_key query parameters.
func (s *server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	var (
		runs []indexstore.Run
		err  error
	)

	switch {
	case r.URL.Query().Get("config_key") != "":
		runs, err = s.indexStore.ListRuns(
			r.Context(), r.URL.Query().Get("config_key"),
		)
	case r.URL.Query().Get("engine") != "":
		runs, err = s.indexStore.ListRunsByEngine(
			r.Context(), r.URL.Query().Get("engine"),
		)
	default:
		runs, err = s.indexStore.ListAllRuns(r.Context())
	}

	if err != nil {
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"listing runs: " + err.Error()})

		return
	}

	entries := make([]runEntry, 0, len(runs))

	for i := range runs {
		entries = append(entries, runEntry{
			Run:        &runs[i],
			TopSlowest: runs[i].TopSlowest(),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"generated": time.Now().Unix(),
		"runs":      entries,
	})
}

// handleListConfigKeys returns the distinct configuration keys present
// in the index.
func (s *server) handleListConfigKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := s.indexStore.ListConfigKeys(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"listing config keys: " + err.Error()})

		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"config_keys": keys})
}

// handleGetSummary serves a run's summary document straight from
// result storage. The run query parameter is the run's storage key.
func (s *server) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	runKey := r.URL.Query().Get("run")
	if runKey == "" {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{"run query parameter is required"})

		return
	}

	data, err := s.reader.GetFile(r.Context(), runKey+"/"+summary.FileName)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"reading summary: " + err.Error()})

		return
	}

	if data == nil {
		writeJSON(w, http.StatusNotFound,
			errorResponse{"summary not found for run " + runKey})

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
