package exec

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rishabhdvn/Secure-Collab/pkg/metrics"
)

// ErrJobAlreadyRunning rejects a submission while the connection's previous
// job is still alive. Rejection, not preemption: the client resubmits once
// the running job finishes.
var ErrJobAlreadyRunning = errors.New("a job is already running for this connection")

// State is the per-connection execution lifecycle.
type State int

const (
	StateIdle State = iota
	StateStarting
	StateRunning
	StateExited
	StateKilled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	case StateKilled:
		return "killed"
	}
	return "unknown"
}

// RunRecord summarizes one finished job for the optional history store.
type RunRecord struct {
	JobID        string
	ConnectionID string
	Username     string
	Language     string
	Status       string // exited, killed, spawn_failure
	ExitCode     int
	Duration     time.Duration
}

type job struct {
	id       string
	lang     Language
	dir      string
	username string
	proc     Process
	state    State
	started  time.Time
}

// Supervisor owns every live process handle, keyed by connection ID. All
// transitions go through it; nothing else signals or inspects a process.
type Supervisor struct {
	log    *slog.Logger
	sink   Sink
	record func(RunRecord)

	mu   sync.Mutex
	jobs map[string]*job
}

func NewSupervisor(log *slog.Logger, sink Sink) *Supervisor {
	return &Supervisor{log: log, sink: sink, jobs: map[string]*job{}}
}

// SetSink installs the output sink after construction; the hub and the
// supervisor point at each other, so one side has to be wired late.
func (s *Supervisor) SetSink(sink Sink) { s.sink = sink }

// SetRecorder installs a fire-and-forget callback for finished runs.
func (s *Supervisor) SetRecorder(fn func(RunRecord)) { s.record = fn }

// reserve claims the connection's single job slot. Valid only from Idle.
func (s *Supervisor) reserve(connID string, j *job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing := s.jobs[connID]; existing != nil {
		return ErrJobAlreadyRunning
	}
	j.state = StateStarting
	j.started = time.Now()
	s.jobs[connID] = j
	return nil
}

// attach binds the spawned process and moves the job to Running.
func (s *Supervisor) attach(connID string, j *job, proc Process) {
	s.mu.Lock()
	if s.jobs[connID] != j {
		// Connection vanished while the container was starting; tear the
		// orphan down instead of leaking it.
		s.mu.Unlock()
		proc.Kill()
		return
	}
	j.proc = proc
	j.state = StateRunning
	s.mu.Unlock()

	s.log.Info("job.running", "conn", connID, "job", j.id, "language", j.lang.Name)
	go s.watch(connID, j)
}

// ForwardInput writes one line of program input to the connection's job.
// Best effort: no job, or a job not yet running, is a no-op.
func (s *Supervisor) ForwardInput(connID, text string) {
	s.mu.Lock()
	j := s.jobs[connID]
	var proc Process
	if j != nil && j.state == StateRunning {
		proc = j.proc
	}
	s.mu.Unlock()

	if proc == nil {
		return
	}
	if _, err := proc.Write([]byte(text + "\n")); err != nil {
		s.log.Debug("job.stdin", "conn", connID, "err", err)
	}
}

// OnDisconnect kills the connection's job, if any. Idempotent: duplicate
// disconnects and disconnects racing a natural exit are both safe.
func (s *Supervisor) OnDisconnect(connID string) {
	s.mu.Lock()
	j := s.jobs[connID]
	if j == nil || j.state == StateKilled {
		s.mu.Unlock()
		return
	}
	j.state = StateKilled
	proc := j.proc
	s.mu.Unlock()

	s.log.Info("job.killed", "conn", connID, "job", j.id)
	if proc != nil {
		proc.Kill()
	}
	// A job killed before attach has no watcher; reclaim it here.
	if proc == nil {
		s.mu.Lock()
		if s.jobs[connID] == j {
			delete(s.jobs, connID)
		}
		s.mu.Unlock()
		s.cleanup(j)
		s.finishRecord(connID, j, "killed", -1)
	}
}

// failLaunch reports a spawn failure as a diagnostic output event and
// returns the slot to Idle. The job ends Exited without ever running.
func (s *Supervisor) failLaunch(connID string, j *job, diagnostic string) {
	s.mu.Lock()
	if s.jobs[connID] == j {
		j.state = StateExited
		delete(s.jobs, connID)
	}
	s.mu.Unlock()

	s.sink.SendOutput(connID, diagnostic)
	s.sink.SendOutput(connID, doneMarker)
	s.cleanup(j)
	s.finishRecord(connID, j, "spawn_failure", -1)
}

// Shutdown kills every live job; used on server exit.
func (s *Supervisor) Shutdown() {
	s.mu.Lock()
	conns := make([]string, 0, len(s.jobs))
	for connID := range s.jobs {
		conns = append(conns, connID)
	}
	s.mu.Unlock()
	for _, connID := range conns {
		s.OnDisconnect(connID)
	}
}

// StateOf reports the connection's current lifecycle state.
func (s *Supervisor) StateOf(connID string) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j := s.jobs[connID]; j != nil {
		return j.state
	}
	return StateIdle
}

// cleanup removes the job's scratch directory and any build artifacts.
// Failures are operator noise only; they never reach the client and never
// block the next submission.
func (s *Supervisor) cleanup(j *job) {
	for _, artifact := range j.lang.Artifacts {
		_ = os.Remove(filepath.Join(j.dir, artifact))
	}
	if err := os.RemoveAll(j.dir); err != nil {
		s.log.Warn("job.cleanup", "job", j.id, "dir", j.dir, "err", err)
	}
}

func (s *Supervisor) finishRecord(connID string, j *job, status string, exitCode int) {
	metrics.Jobs.WithLabelValues(j.lang.Name, status).Inc()
	if status == "exited" {
		metrics.JobDuration.Observe(time.Since(j.started).Seconds())
	}
	if s.record == nil {
		return
	}
	s.record(RunRecord{
		JobID:        j.id,
		ConnectionID: connID,
		Username:     j.username,
		Language:     j.lang.Name,
		Status:       status,
		ExitCode:     exitCode,
		Duration:     time.Since(j.started),
	})
}
