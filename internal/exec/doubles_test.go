package exec

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeProc stands in for a sandboxed container.
type fakeProc struct {
	mu     sync.Mutex
	stdin  bytes.Buffer
	killed bool

	out      chan []byte
	exit     chan int
	doneOnce sync.Once
}

func newFakeProc() *fakeProc {
	return &fakeProc{
		out:  make(chan []byte, 16),
		exit: make(chan int, 1),
	}
}

func (p *fakeProc) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stdin.Write(b)
}

func (p *fakeProc) Output() <-chan []byte { return p.out }
func (p *fakeProc) Wait() <-chan int      { return p.exit }

// Kill marks the process killed; if it already exited naturally this is a
// no-op, matching a forced container removal racing a clean exit.
func (p *fakeProc) Kill() {
	p.mu.Lock()
	p.killed = true
	p.mu.Unlock()
	p.terminate(137)
}

func (p *fakeProc) emit(s string) { p.out <- []byte(s) }

func (p *fakeProc) finish(code int) { p.terminate(code) }

func (p *fakeProc) terminate(code int) {
	p.doneOnce.Do(func() {
		close(p.out)
		p.exit <- code
	})
}

func (p *fakeProc) wasKilled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.killed
}

func (p *fakeProc) stdinString() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stdin.String()
}

// fakeSink collects output events per connection.
type fakeSink struct {
	mu     sync.Mutex
	events map[string][]string
}

func newFakeSink() *fakeSink { return &fakeSink{events: map[string][]string{}} }

func (s *fakeSink) SendOutput(connID, output string) {
	s.mu.Lock()
	s.events[connID] = append(s.events[connID], output)
	s.mu.Unlock()
}

func (s *fakeSink) outputs(connID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events[connID]))
	copy(out, s.events[connID])
	return out
}

// fakeEngine hands out a prepared process, or fails.
type fakeEngine struct {
	mu    sync.Mutex
	proc  *fakeProc
	err   error
	dirs  []string
	langs []Language
}

func (e *fakeEngine) Launch(_ context.Context, lang Language, jobDir string) (Process, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dirs = append(e.dirs, jobDir)
	e.langs = append(e.langs, lang)
	if e.err != nil {
		return nil, e.err
	}
	return e.proc, nil
}

func (e *fakeEngine) launches() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.dirs))
	copy(out, e.dirs)
	return out
}

type fakeNames struct{}

func (fakeNames) Username(string) (string, bool) { return "alice", true }
