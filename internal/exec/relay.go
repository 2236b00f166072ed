package exec

// Sink receives output events for a connection. The websocket hub
// implements it; events for a connection that no longer exists are
// dropped there, not here.
type Sink interface {
	SendOutput(connID, output string)
}

// doneMarker is the synthetic final output event. Clients treat it as
// "no more output will arrive for this run".
const doneMarker = "\n=== Code Execution Complete ===\n"

// watch relays the process's interleaved stdout/stderr to the owning
// connection, then settles the job once the process exits. Runs for the
// lifetime of one job.
func (s *Supervisor) watch(connID string, j *job) {
	for chunk := range j.proc.Output() {
		s.sink.SendOutput(connID, string(chunk))
	}
	exitCode := <-j.proc.Wait()

	s.mu.Lock()
	killed := j.state == StateKilled
	if !killed {
		j.state = StateExited
	}
	if s.jobs[connID] == j {
		delete(s.jobs, connID)
	}
	s.mu.Unlock()

	status := "exited"
	if killed {
		// The owner is gone; no terminal marker, just teardown.
		status = "killed"
	} else {
		s.sink.SendOutput(connID, doneMarker)
	}

	s.log.Info("job.done", "conn", connID, "job", j.id, "status", status, "exit", exitCode)
	s.cleanup(j)
	s.finishRecord(connID, j, status, exitCode)
}
