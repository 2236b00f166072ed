package exec

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/rishabhdvn/Secure-Collab/pkg/metrics"
)

// NameLookup resolves a connection's display name for run records.
type NameLookup interface {
	Username(connID string) (string, bool)
}

// Broker accepts validated submissions, materializes source in a per-job
// scratch directory, and hands the launched process to the Supervisor.
// Acceptance is synchronous; everything after runs async via the Output
// Relay.
type Broker struct {
	log     *slog.Logger
	engine  Engine
	sup     *Supervisor
	names   NameLookup
	scratch string

	launchTimeout time.Duration
}

func NewBroker(log *slog.Logger, engine Engine, sup *Supervisor, names NameLookup, scratch string) *Broker {
	return &Broker{
		log:           log,
		engine:        engine,
		sup:           sup,
		names:         names,
		scratch:       scratch,
		launchTimeout: 30 * time.Second,
	}
}

// Submit validates the request and claims the connection's job slot. No
// file or process work happens before both checks pass. Returns the job
// ID; output arrives asynchronously on the submitting connection.
func (b *Broker) Submit(req Request) (string, error) {
	lang, err := req.Validate()
	if err != nil {
		metrics.Jobs.WithLabelValues("none", "rejected").Inc()
		return "", err
	}

	username, _ := b.names.Username(req.SocketID)
	j := &job{
		id:       uuid.NewString(),
		lang:     lang,
		username: username,
	}
	j.dir = filepath.Join(b.scratch, j.id)

	if err := b.sup.reserve(req.SocketID, j); err != nil {
		metrics.Jobs.WithLabelValues(lang.Name, "rejected").Inc()
		return "", err
	}

	b.log.Info("job.accepted", "conn", req.SocketID, "job", j.id, "language", lang.Name)
	go b.launch(req.SocketID, j, req.Code)
	return j.id, nil
}

// launch materializes the source and starts the container. A failure at
// any step is a SpawnFailure: the connection gets a diagnostic plus the
// terminal marker, and the slot returns to Idle.
func (b *Broker) launch(connID string, j *job, code string) {
	if err := b.materialize(j, code); err != nil {
		b.log.Error("job.materialize", "job", j.id, "err", err)
		b.sup.failLaunch(connID, j, "failed to prepare source: "+err.Error()+"\n")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.launchTimeout)
	defer cancel()

	proc, err := b.engine.Launch(ctx, j.lang, j.dir)
	if err != nil {
		b.log.Error("job.launch", "job", j.id, "err", err)
		b.sup.failLaunch(connID, j, "failed to start sandbox: "+err.Error()+"\n")
		return
	}
	b.sup.attach(connID, j, proc)
}

// materialize writes the entry file into the job directory. Stale entry
// and build artifacts are purged first: the directory is fresh per job,
// but a leftover from a reused path must never leak into the mount.
func (b *Broker) materialize(j *job, code string) error {
	if err := os.MkdirAll(j.dir, 0o755); err != nil {
		return fmt.Errorf("scratch dir: %w", err)
	}
	stale := append([]string{j.lang.Entry}, j.lang.Artifacts...)
	for _, name := range stale {
		_ = os.Remove(filepath.Join(j.dir, name))
	}
	if err := os.WriteFile(filepath.Join(j.dir, j.lang.Entry), []byte(code), 0o644); err != nil {
		return fmt.Errorf("write source: %w", err)
	}
	return nil
}
