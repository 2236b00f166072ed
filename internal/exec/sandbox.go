package exec

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/stdcopy"
)

// Process is one live sandboxed execution. Output delivers interleaved
// stdout/stderr chunks in arrival order and is closed when both streams
// end; Wait delivers the exit code exactly once.
type Process interface {
	io.Writer // stdin
	Output() <-chan []byte
	Wait() <-chan int
	Kill()
}

// Engine launches isolated processes for validated jobs.
type Engine interface {
	Launch(ctx context.Context, lang Language, jobDir string) (Process, error)
}

// Limits are the resource caps applied to every container.
type Limits struct {
	MemoryBytes int64
	NanoCPUs    int64
	Pids        int64
}

// Docker runs jobs in one container each: no network, the job directory
// bind-mounted as the working directory, stdin kept open for program input.
type Docker struct {
	cli    *client.Client
	limits Limits
	log    *slog.Logger
}

// NewDocker builds a client from the environment and verifies the daemon
// is reachable. An unreachable daemon is not fatal here; each launch will
// surface its own diagnostic.
func NewDocker(ctx context.Context, limits Limits, log *slog.Logger) (*Docker, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}
	if _, err := cli.Ping(ctx); err != nil {
		log.Warn("sandbox.ping", "err", err)
	}
	return &Docker{cli: cli, limits: limits, log: log}, nil
}

func (d *Docker) Launch(ctx context.Context, lang Language, jobDir string) (Process, error) {
	pids := d.limits.Pids
	cfg := &container.Config{
		Image:           lang.Image,
		Cmd:             lang.Run,
		WorkingDir:      "/code",
		AttachStdin:     true,
		AttachStdout:    true,
		AttachStderr:    true,
		OpenStdin:       true,
		NetworkDisabled: true,
	}
	host := &container.HostConfig{
		Binds:       []string{jobDir + ":/code"},
		NetworkMode: "none",
		Resources: container.Resources{
			Memory:     d.limits.MemoryBytes,
			MemorySwap: d.limits.MemoryBytes, // no swap headroom
			NanoCPUs:   d.limits.NanoCPUs,
			PidsLimit:  &pids,
		},
	}

	name := "collab-" + filepath.Base(jobDir)
	created, err := d.cli.ContainerCreate(ctx, cfg, host, nil, nil, name)
	if err != nil {
		return nil, fmt.Errorf("container create: %w", err)
	}

	attach, err := d.cli.ContainerAttach(ctx, created.ID, container.AttachOptions{
		Stream: true,
		Stdin:  true,
		Stdout: true,
		Stderr: true,
	})
	if err != nil {
		d.remove(created.ID)
		return nil, fmt.Errorf("container attach: %w", err)
	}

	if err := d.cli.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		attach.Close()
		d.remove(created.ID)
		return nil, fmt.Errorf("container start: %w", err)
	}

	p := &dockerProcess{
		engine:      d,
		containerID: created.ID,
		attach:      attach,
		out:         make(chan []byte, 16),
		exit:        make(chan int, 1),
	}
	go p.pump()
	go p.wait()
	return p, nil
}

func (d *Docker) remove(containerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := d.cli.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true}); err != nil && !errdefs.IsNotFound(err) {
		d.log.Warn("sandbox.remove", "container", containerID, "err", err)
	}
}

type dockerProcess struct {
	engine      *Docker
	containerID string
	attach      types.HijackedResponse
	out         chan []byte
	exit        chan int
	killOnce    sync.Once
}

// Write forwards program input to the container's stdin.
func (p *dockerProcess) Write(b []byte) (int, error) {
	return p.attach.Conn.Write(b)
}

func (p *dockerProcess) Output() <-chan []byte { return p.out }
func (p *dockerProcess) Wait() <-chan int      { return p.exit }

// Kill force-removes the container; safe to call more than once and safe
// to race with natural exit.
func (p *dockerProcess) Kill() {
	p.killOnce.Do(func() {
		p.attach.Close()
		p.engine.remove(p.containerID)
	})
}

// pump demultiplexes the attached stream into interleaved chunks. StdCopy
// writes stdout and stderr frames to the same sink, preserving arrival
// order, and returns when the container closes both streams.
func (p *dockerProcess) pump() {
	w := &chunkWriter{ch: p.out}
	_, _ = stdcopy.StdCopy(w, w, p.attach.Reader)
	close(p.out)
}

// wait resolves the exit code. A wait error (forced removal included)
// reports -1.
func (p *dockerProcess) wait() {
	statusCh, errCh := p.engine.cli.ContainerWait(context.Background(), p.containerID, container.WaitConditionNotRunning)
	select {
	case status := <-statusCh:
		p.exit <- int(status.StatusCode)
		p.engine.remove(p.containerID)
	case <-errCh:
		p.exit <- -1
	}
}

// chunkWriter copies each write onto a channel; Write never fails so
// StdCopy drains the full stream.
type chunkWriter struct {
	ch chan []byte
}

func (w *chunkWriter) Write(b []byte) (int, error) {
	chunk := make([]byte, len(b))
	copy(chunk, b)
	w.ch <- chunk
	return len(b), nil
}
