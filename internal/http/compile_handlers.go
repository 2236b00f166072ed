package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rishabhdvn/Secure-Collab/internal/exec"
	"github.com/rishabhdvn/Secure-Collab/pkg/ratelimit"
)

// Submitter accepts a validated run request. The exec Broker implements it.
type Submitter interface {
	Submit(req exec.Request) (string, error)
}

type CompileAPI struct {
	Broker Submitter
	Runs   *ratelimit.Limiter // per-connection submission limiter
}

type compileResp struct {
	JobID    string `json:"jobId"`
	SocketID string `json:"socketId"`
}

type errorResp struct {
	Error string `json:"error"`
}

// Compile accepts a submission and acknowledges it with 202. Execution
// output arrives on the submitting websocket, not in this response.
func (a *CompileAPI) Compile(w http.ResponseWriter, r *http.Request) {
	var req exec.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	if req.SocketID != "" && !a.Runs.Allow(req.SocketID) {
		writeError(w, http.StatusTooManyRequests, "too many submissions")
		return
	}

	jobID, err := a.Broker.Submit(req)
	switch {
	case errors.Is(err, exec.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, exec.ErrJobAlreadyRunning):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(compileResp{JobID: jobID, SocketID: req.SocketID})
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(errorResp{Error: msg})
}
