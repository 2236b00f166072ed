package store

import "time"

// Run is one recorded execution job.
type Run struct {
	ID           int64
	JobID        string
	ConnectionID string
	Username     string
	Language     string
	Status       string
	ExitCode     int
	DurationMS   int64
	CreatedAt    time.Time
}
