package httpx

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rishabhdvn/Secure-Collab/internal/store"
)

type RunsAPI struct{ DB *store.Postgres }

type runResponse struct {
	JobID      string    `json:"jobId"`
	Username   string    `json:"username"`
	Language   string    `json:"language"`
	Status     string    `json:"status"`
	ExitCode   int       `json:"exitCode"`
	DurationMS int64     `json:"durationMs"`
	CreatedAt  time.Time `json:"createdAt"`
}

// List returns recent execution history, newest first
func (a *RunsAPI) List(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	runs, err := a.DB.ListRuns(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := make([]runResponse, 0, len(runs))
	for _, run := range runs {
		resp = append(resp, runResponse{
			JobID:      run.JobID,
			Username:   run.Username,
			Language:   run.Language,
			Status:     run.Status,
			ExitCode:   run.ExitCode,
			DurationMS: run.DurationMS,
			CreatedAt:  run.CreatedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
