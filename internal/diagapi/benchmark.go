package diagapi

import (
	"encoding/json"
	"net/http"
	"time"
)

const (
	defaultScenarios = 10
	defaultTargetMS  = 2000
	maxScenarios     = 500
)

// benchmarkRequest is the inbound shape for POST /api/v1/benchmark.
type benchmarkRequest struct {
	Scenarios int   `json:"scenarios,omitempty"`
	TargetMS  int64 `json:"target_ms,omitempty"`
}

func (a *API) handleBenchmark(w http.ResponseWriter, r *http.Request) {
	if a.bench == nil {
		http.Error(w, `{"error":"benchmark not configured"}`, http.StatusServiceUnavailable)
		return
	}

	var req benchmarkRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid payload"}`, http.StatusBadRequest)
		return
	}
	if req.Scenarios == 0 {
		req.Scenarios = defaultScenarios
	}
	if req.TargetMS == 0 {
		req.TargetMS = defaultTargetMS
	}
	if req.Scenarios < 0 || req.Scenarios > maxScenarios {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "scenarios must be between 1 and 500",
		})
		return
	}
	if req.TargetMS < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "target_ms must be positive",
		})
		return
	}

	report, err := a.bench.Run(r.Context(), req.Scenarios, time.Duration(req.TargetMS)*time.Millisecond)
	if err != nil {
		a.logger.Error(r.Context(), err, "benchmark run failed", "scenarios", req.Scenarios)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, report)
}
