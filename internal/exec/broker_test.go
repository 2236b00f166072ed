package exec

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBroker(t *testing.T, engine Engine) (*Broker, *Supervisor, *fakeSink) {
	t.Helper()
	sink := newFakeSink()
	sup := NewSupervisor(testLogger(), sink)
	broker := NewBroker(testLogger(), engine, sup, fakeNames{}, t.TempDir())
	return broker, sup, sink
}

func TestSubmitRejectsBeforeAnyWork(t *testing.T) {
	engine := &fakeEngine{proc: newFakeProc()}
	broker, sup, _ := newTestBroker(t, engine)

	_, err := broker.Submit(Request{Code: "puts 1", Language: "ruby", SocketID: "c1"})
	require.ErrorIs(t, err, ErrInvalidRequest)

	// Rejection must leave no trace: no scratch files, no spawn, no job slot
	entries, readErr := os.ReadDir(broker.scratch)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
	assert.Empty(t, engine.launches())
	assert.Equal(t, StateIdle, sup.StateOf("c1"))
}

func TestSubmitRunsJobToCompletion(t *testing.T) {
	proc := newFakeProc()
	engine := &fakeEngine{proc: proc}
	broker, sup, sink := newTestBroker(t, engine)

	var records []RunRecord
	var recMu sync.Mutex
	sup.SetRecorder(func(r RunRecord) {
		recMu.Lock()
		records = append(records, r)
		recMu.Unlock()
	})

	jobID, err := broker.Submit(Request{Code: "print(1)", Language: "python", SocketID: "c1"})
	require.NoError(t, err)
	require.NotEmpty(t, jobID)

	require.Eventually(t, func() bool {
		return sup.StateOf("c1") == StateRunning
	}, time.Second, 5*time.Millisecond)

	// Source materialized under a per-job directory before launch
	dirs := engine.launches()
	require.Len(t, dirs, 1)
	src, err := os.ReadFile(filepath.Join(dirs[0], "Main.py"))
	require.NoError(t, err)
	assert.Equal(t, "print(1)", string(src))

	proc.emit("1\n")
	require.Eventually(t, func() bool {
		out := sink.outputs("c1")
		return len(out) == 1 && out[0] == "1\n"
	}, time.Second, 5*time.Millisecond)

	proc.finish(0)

	// Exactly one terminal marker, after the program output
	require.Eventually(t, func() bool {
		return len(sink.outputs("c1")) == 2
	}, time.Second, 5*time.Millisecond)
	out := sink.outputs("c1")
	assert.Equal(t, doneMarker, out[1])

	require.Eventually(t, func() bool {
		return sup.StateOf("c1") == StateIdle
	}, time.Second, 5*time.Millisecond)

	// Scratch directory reclaimed, run recorded
	require.Eventually(t, func() bool {
		recMu.Lock()
		defer recMu.Unlock()
		_, statErr := os.Stat(dirs[0])
		return os.IsNotExist(statErr) && len(records) == 1
	}, time.Second, 5*time.Millisecond)

	recMu.Lock()
	defer recMu.Unlock()
	assert.Equal(t, "exited", records[0].Status)
	assert.Equal(t, 0, records[0].ExitCode)
	assert.Equal(t, "python", records[0].Language)
	assert.Equal(t, "alice", records[0].Username)
}

func TestSecondSubmissionRejectedWhileRunning(t *testing.T) {
	proc := newFakeProc()
	engine := &fakeEngine{proc: proc}
	broker, sup, _ := newTestBroker(t, engine)

	_, err := broker.Submit(Request{Code: "print(1)", Language: "python", SocketID: "c1"})
	require.NoError(t, err)

	_, err = broker.Submit(Request{Code: "print(2)", Language: "python", SocketID: "c1"})
	require.ErrorIs(t, err, ErrJobAlreadyRunning)

	// c1 must hold its proc before the fake engine is rearmed for c2
	require.Eventually(t, func() bool {
		return sup.StateOf("c1") == StateRunning
	}, time.Second, 5*time.Millisecond)

	// A different connection is not affected by c1's slot
	proc2 := newFakeProc()
	engine.mu.Lock()
	engine.proc = proc2
	engine.mu.Unlock()
	_, err = broker.Submit(Request{Code: "print(3)", Language: "python", SocketID: "c2"})
	require.NoError(t, err)

	proc.finish(0)
	proc2.finish(0)
	require.Eventually(t, func() bool {
		return sup.StateOf("c1") == StateIdle && sup.StateOf("c2") == StateIdle
	}, time.Second, 5*time.Millisecond)

	// Slot is free again after exit
	proc3 := newFakeProc()
	engine.mu.Lock()
	engine.proc = proc3
	engine.mu.Unlock()
	_, err = broker.Submit(Request{Code: "print(4)", Language: "python", SocketID: "c1"})
	require.NoError(t, err)

	// Settle the last job so its goroutines are done before TempDir cleanup
	require.Eventually(t, func() bool {
		return sup.StateOf("c1") == StateRunning
	}, time.Second, 5*time.Millisecond)
	proc3.finish(0)
	require.Eventually(t, func() bool {
		return sup.StateOf("c1") == StateIdle
	}, time.Second, 5*time.Millisecond)
}

func TestSpawnFailureReportsDiagnostic(t *testing.T) {
	engine := &fakeEngine{err: errors.New("docker daemon unreachable")}
	broker, sup, sink := newTestBroker(t, engine)

	var records []RunRecord
	var recMu sync.Mutex
	sup.SetRecorder(func(r RunRecord) {
		recMu.Lock()
		records = append(records, r)
		recMu.Unlock()
	})

	_, err := broker.Submit(Request{Code: "print(1)", Language: "python", SocketID: "c1"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(sink.outputs("c1")) == 2
	}, time.Second, 5*time.Millisecond)

	out := sink.outputs("c1")
	assert.Contains(t, out[0], "docker daemon unreachable")
	assert.Equal(t, doneMarker, out[1])
	assert.Equal(t, StateIdle, sup.StateOf("c1"))

	require.Eventually(t, func() bool {
		recMu.Lock()
		defer recMu.Unlock()
		return len(records) == 1
	}, time.Second, 5*time.Millisecond)
	recMu.Lock()
	defer recMu.Unlock()
	assert.Equal(t, "spawn_failure", records[0].Status)
}

func TestStaleArtifactsPurgedBeforeWrite(t *testing.T) {
	proc := newFakeProc()
	engine := &fakeEngine{proc: proc}
	sink := newFakeSink()
	sup := NewSupervisor(testLogger(), sink)
	scratch := t.TempDir()
	broker := NewBroker(testLogger(), engine, sup, fakeNames{}, scratch)

	lang, _ := Lookup("cpp")
	j := &job{id: "fixed", lang: lang, dir: filepath.Join(scratch, "fixed")}

	// Seed leftovers from a previous occupant of the same path
	require.NoError(t, os.MkdirAll(j.dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(j.dir, "Main"), []byte("old-binary"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(j.dir, "Main.cpp"), []byte("old source"), 0o644))

	require.NoError(t, broker.materialize(j, "int main() { return 0; }"))

	src, err := os.ReadFile(filepath.Join(j.dir, "Main.cpp"))
	require.NoError(t, err)
	assert.Equal(t, "int main() { return 0; }", string(src))

	_, statErr := os.Stat(filepath.Join(j.dir, "Main"))
	assert.True(t, os.IsNotExist(statErr))
}
